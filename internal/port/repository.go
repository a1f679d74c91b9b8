package port

import (
	"context"
	"time"

	"github.com/khanhng-dev/gridstore/internal/domain"
)

// ChunkStore persists file content as sequences of fixed-size chunks.
type ChunkStore interface {
	// BeginWrite allocates a write handle for a new file ID. It fails
	// with domain.ErrDuplicateFile if the ID already has chunks.
	BeginWrite(ctx context.Context, fileID string, chunkSize int64) (ChunkWriter, error)

	// OpenRead returns a lazy reader over the chunks of a finalized
	// record, in ascending sequence order.
	OpenRead(ctx context.Context, record *domain.FileRecord) (ChunkReader, error)

	// DeleteAll removes every chunk for the file ID. Deleting a file
	// with no chunks is a no-op.
	DeleteAll(ctx context.Context, fileID string) error

	// HasChunks reports whether any chunk exists for the file ID.
	HasChunks(ctx context.Context, fileID string) (bool, error)

	// ListFileIDs returns the distinct file IDs that own at least one
	// chunk. Used by the orphan sweeper.
	ListFileIDs(ctx context.Context) ([]string, error)
}

// ChunkWriter is a single-use handle that appends sequential chunks for
// one file. Implementations assign sequence numbers internally; callers
// must not write concurrently on one handle.
type ChunkWriter interface {
	// WriteChunk durably persists the next chunk before returning. It
	// fails with domain.ErrChunkTooLarge when the payload exceeds the
	// chunk size the handle was opened with.
	WriteChunk(ctx context.Context, data []byte) error

	// Finalize seals the handle and returns (total bytes, chunk count).
	// Any later WriteChunk or Finalize fails with domain.ErrInvalidState.
	Finalize() (int64, int, error)
}

// ChunkReader yields chunk payloads one at a time. Next returns io.EOF
// after the last chunk. Abandoning a stream early only requires Close.
type ChunkReader interface {
	Next(ctx context.Context) ([]byte, error)
	// Reset restarts the stream from sequence zero.
	Reset()
	Close() error
}

// Catalog owns file metadata records. The chunk store never touches
// these; consistency between the two is the pipelines' job.
type Catalog interface {
	// Create inserts a pending record with a freshly assigned ID.
	Create(ctx context.Context, filename, contentType string, chunkSize int64) (*domain.FileRecord, error)

	// Finalize transitions a pending record to complete, recording its
	// total length and chunk count. It fails with domain.ErrInvalidState
	// if the record is absent or not pending.
	Finalize(ctx context.Context, id string, length int64, chunks int) error

	// Get returns the record for an ID or domain.ErrFileNotFound.
	Get(ctx context.Context, id string) (*domain.FileRecord, error)

	// FindByFilename returns the most recently created record carrying
	// the filename, or domain.ErrFileNotFound.
	FindByFilename(ctx context.Context, filename string) (*domain.FileRecord, error)

	// ListAll returns all live records in insertion order.
	ListAll(ctx context.Context) ([]*domain.FileRecord, error)

	// ListPendingBefore returns pending records created before the
	// cutoff. Used by the orphan sweeper to reap crashed uploads.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*domain.FileRecord, error)

	// Remove deletes a record, failing with domain.ErrFileNotFound if
	// it is absent.
	Remove(ctx context.Context, id string) error
}

// IDGenerator allocates unique file IDs.
type IDGenerator interface {
	Next() (int64, error)
}
