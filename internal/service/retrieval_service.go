package service

import (
	"context"
	"fmt"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/khanhng-dev/gridstore/internal/domain"
	"github.com/khanhng-dev/gridstore/internal/port"
)

// retrievalService resolves filenames to records and chunk streams.
type retrievalService struct {
	core *FileServiceImpl
}

// newRetrievalService creates the retrieval use-case service.
func newRetrievalService(core *FileServiceImpl) *retrievalService {
	return &retrievalService{core: core}
}

// open resolves a filename and hands back an unconsumed chunk reader.
// Pending files behave exactly like absent ones: only a finalized
// chunk set is ever externally visible.
func (s *retrievalService) open(ctx context.Context, filename string) (*domain.FileRecord, port.ChunkReader, error) {
	record, err := s.core.catalog.FindByFilename(ctx, filename)
	if err != nil {
		return nil, nil, err
	}
	if !record.Readable() {
		return nil, nil, fmt.Errorf("%w: %q has no finalized content", domain.ErrFileNotFound, filename)
	}

	reader, err := s.core.chunks.OpenRead(ctx, record)
	if err != nil {
		return nil, nil, err
	}

	logger.Infow("Read stream opened", "file_id", record.ID, "filename", filename, "chunks", record.Chunks)
	return record, reader, nil
}
