package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/khanhng-dev/gridstore/internal/domain"
	"github.com/khanhng-dev/gridstore/internal/port"
)

// rollbackTimeout bounds compensating cleanup after a failed upload; a
// canceled request context must not be able to skip the rollback.
const rollbackTimeout = 1 * time.Minute

// uploadService walks an upload through its states: catalog create,
// sequential chunk streaming, chunk-store finalize, catalog finalize.
// A failure in any state rolls back chunks and record before the error
// surfaces, so no partial file is ever externally visible.
type uploadService struct {
	core *FileServiceImpl
}

// newUploadService creates the upload use-case service.
func newUploadService(core *FileServiceImpl) *uploadService {
	return &uploadService{core: core}
}

// upload performs the full workflow from inbound stream to finalized
// record.
func (s *uploadService) upload(ctx context.Context, filename, contentType string, reader io.Reader) (*domain.FileRecord, error) {
	// The filename index uses NUL as its key separator, so a filename
	// carrying one could shadow another file's index entry.
	if strings.ContainsRune(filename, '\x00') {
		return nil, fmt.Errorf("%w: filename contains NUL byte", domain.ErrInvalidFilename)
	}

	record, err := s.core.catalog.Create(ctx, filename, contentType, s.core.chunkSize())
	if err != nil {
		return nil, err
	}

	logger.Infow("Upload started", "file_id", record.ID, "filename", filename, "content_type", contentType)

	handle, err := s.core.chunks.BeginWrite(ctx, record.ID, record.ChunkSize)
	if err != nil {
		s.rollback(record.ID)
		return nil, err
	}

	length, chunks, err := s.streamChunks(ctx, handle, reader)
	if err != nil {
		logger.Errorw("Upload failed", "file_id", record.ID, "error", err.Error())
		s.rollback(record.ID)
		return nil, err
	}

	if err := s.core.catalog.Finalize(ctx, record.ID, length, chunks); err != nil {
		logger.Errorw("Upload finalize failed", "file_id", record.ID, "error", err.Error())
		s.rollback(record.ID)
		return nil, err
	}

	record.Length = length
	record.Chunks = chunks
	record.Status = domain.StatusComplete

	logger.Infow("Upload completed", "file_id", record.ID, "chunks", chunks, "size_bytes", length)
	return record, nil
}

// streamChunks reads the inbound stream in chunk-size buffers and
// writes each one as it fills. Writes within one upload stay strictly
// sequential; the reader's pace is the only back-pressure needed. A
// zero-byte stream finalizes with zero chunks.
func (s *uploadService) streamChunks(ctx context.Context, handle port.ChunkWriter, reader io.Reader) (int64, int, error) {
	buffer := s.core.pool.Get().(*[]byte)
	defer s.core.pool.Put(buffer)

	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		readN, readErr := io.ReadFull(reader, *buffer)
		if readN > 0 {
			if err := handle.WriteChunk(ctx, (*buffer)[:readN]); err != nil {
				return 0, 0, err
			}
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return 0, 0, fmt.Errorf("read upload stream: %w", readErr)
		}
	}

	return handle.Finalize()
}

// rollback removes the chunks and record of a failed upload. It runs
// on its own context so a client disconnect cannot cancel the cleanup;
// failures are logged and left for the orphan sweeper.
func (s *uploadService) rollback(fileID string) {
	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()

	logger.Infow("Upload rollback started", "file_id", fileID)

	if err := s.core.chunks.DeleteAll(ctx, fileID); err != nil {
		logger.Warnw("Upload rollback chunk delete failed", "file_id", fileID, "error", err.Error())
	}
	if err := s.core.catalog.Remove(ctx, fileID); err != nil {
		logger.Warnw("Upload rollback record removal failed", "file_id", fileID, "error", err.Error())
	}
}
