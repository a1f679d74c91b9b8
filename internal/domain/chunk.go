package domain

import (
	"errors"

	"github.com/spaolacci/murmur3"
)

var (
	// ErrChunkTooLarge is returned when a chunk payload exceeds the
	// chunk size fixed at file creation.
	ErrChunkTooLarge = errors.New("chunk exceeds configured chunk size")
	// ErrChecksumMismatch is returned when stored chunk bytes no longer
	// match their recorded checksum.
	ErrChecksumMismatch = errors.New("chunk checksum mismatch")
)

// Chunk is one fixed-size block of a file's bytes, addressed by the
// owning file ID and a zero-based sequence number. Only the final chunk
// of a file may be shorter than the file's chunk size.
type Chunk struct {
	FileID   string
	Sequence int
	Data     []byte
	Checksum uint32
}

// NewChunk builds a chunk and stamps its integrity checksum.
func NewChunk(fileID string, sequence int, data []byte, chunkSize int64) (*Chunk, error) {
	if int64(len(data)) > chunkSize {
		return nil, ErrChunkTooLarge
	}

	return &Chunk{
		FileID:   fileID,
		Sequence: sequence,
		Data:     data,
		Checksum: murmur3.Sum32(data),
	}, nil
}

// Validate checks the chunk payload against its recorded checksum.
func (c *Chunk) Validate() error {
	if murmur3.Sum32(c.Data) != c.Checksum {
		return ErrChecksumMismatch
	}
	return nil
}
