package service

import (
	"context"

	"github.com/anthanhphan/gosdk/logger"
)

// deletionService coordinates removal of a file's chunks and record.
type deletionService struct {
	core *FileServiceImpl
}

// newDeletionService creates the deletion use-case service.
func newDeletionService(core *FileServiceImpl) *deletionService {
	return &deletionService{core: core}
}

// delete removes a file by ID. Chunks go first, record second: a crash
// between the two leaves a record whose reads find no chunks and fail
// as not-found, never a record-less chunk set that nothing can reach.
// Deleting an unknown ID is a defined not-found error, not a no-op.
func (s *deletionService) delete(ctx context.Context, id string) error {
	record, err := s.core.catalog.Get(ctx, id)
	if err != nil {
		return err
	}

	// Chunk keys carry the canonical record ID; the deletes below use
	// record.ID so both halves always name the same file.
	if err := s.core.chunks.DeleteAll(ctx, record.ID); err != nil {
		logger.Errorw("Chunk deletion failed", "file_id", record.ID, "error", err.Error())
		return err
	}
	if err := s.core.catalog.Remove(ctx, record.ID); err != nil {
		logger.Errorw("Record removal failed after chunk deletion", "file_id", record.ID, "error", err.Error())
		return err
	}

	logger.Infow("File deleted", "file_id", record.ID, "filename", record.Filename, "size_bytes", record.Length)
	return nil
}
