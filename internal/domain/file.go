package domain

import (
	"errors"
	"time"
)

var (
	// ErrFileNotFound is returned when no file record matches a lookup.
	ErrFileNotFound = errors.New("file not found")
	// ErrChunkNotFound is returned when an expected chunk is missing,
	// including the window where a delete removed chunks but the record
	// still exists.
	ErrChunkNotFound = errors.New("chunk not found")
	// ErrDuplicateFile is returned when a write is started for a file ID
	// that already has chunks.
	ErrDuplicateFile = errors.New("file already has chunks")
	// ErrInvalidState is returned when a lifecycle transition is applied
	// to a record or handle that is not in the required state.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrInvalidFilename is returned when an upload carries a filename
	// the catalog cannot index, such as one containing a NUL byte.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrStorageUnavailable is returned when the underlying store cannot
	// be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// FileStatus is the lifecycle state of a stored file.
type FileStatus string

const (
	// StatusPending marks a record whose upload has not finished. Pending
	// files are never externally visible through retrieval.
	StatusPending FileStatus = "pending"
	// StatusComplete marks a record whose chunk set is sealed.
	StatusComplete FileStatus = "complete"
)

// FileRecord describes one logical stored file. The catalog owns these
// records exclusively; the chunk store never mutates them.
type FileRecord struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	Length      int64      `json:"length"`
	ChunkSize   int64      `json:"chunk_size"`
	Chunks      int        `json:"chunks"`
	Status      FileStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Readable reports whether the record may serve reads. Only complete
// files are exposed; a pending record behaves as if it does not exist.
func (r *FileRecord) Readable() bool {
	return r.Status == StatusComplete
}
