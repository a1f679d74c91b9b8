package port

import (
	"context"
	"io"

	"github.com/khanhng-dev/gridstore/internal/domain"
)

// FileService is the business surface the HTTP boundary calls. It maps
// one-to-one onto the four logical operations of the service: store,
// list, fetch-by-name, delete-by-id.
type FileService interface {
	// Upload consumes the reader to EOF, persists the content in
	// chunks, and returns the finalized record. Partial state left by a
	// failed upload is rolled back before the error is returned.
	Upload(ctx context.Context, filename, contentType string, reader io.Reader) (*domain.FileRecord, error)

	// Open resolves a filename to its record and an unconsumed chunk
	// reader. Callers own the reader and must Close it.
	Open(ctx context.Context, filename string) (*domain.FileRecord, ChunkReader, error)

	// List returns all live records in insertion order.
	List(ctx context.Context) ([]*domain.FileRecord, error)

	// Delete removes a file's chunks and then its record.
	Delete(ctx context.Context, id string) error
}
