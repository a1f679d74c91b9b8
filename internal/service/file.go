package service

import (
	"context"
	"io"
	"sync"

	"github.com/khanhng-dev/gridstore/internal/config"
	"github.com/khanhng-dev/gridstore/internal/domain"
	"github.com/khanhng-dev/gridstore/internal/port"
)

// FileServiceImpl is the facade that wires use-case services for the
// four file operations: store, list, fetch-by-name, delete-by-id.
type FileServiceImpl struct {
	cfg     *config.Config
	catalog port.Catalog
	chunks  port.ChunkStore
	pool    *sync.Pool

	uploadUseCase    *uploadService
	retrievalUseCase *retrievalService
	deletionUseCase  *deletionService
}

// Ensure FileServiceImpl implements port.FileService.
var _ port.FileService = (*FileServiceImpl)(nil)

// NewFileService builds the file service facade and all use-case
// services.
func NewFileService(cfg *config.Config, catalog port.Catalog, chunks port.ChunkStore) *FileServiceImpl {
	svc := &FileServiceImpl{
		cfg:     cfg,
		catalog: catalog,
		chunks:  chunks,
		pool: &sync.Pool{
			New: func() interface{} {
				// One reusable chunk buffer per in-flight upload read.
				b := make([]byte, cfg.App.ChunkSize)
				return &b
			},
		},
	}

	svc.uploadUseCase = newUploadService(svc)
	svc.retrievalUseCase = newRetrievalService(svc)
	svc.deletionUseCase = newDeletionService(svc)

	return svc
}

// Upload delegates upload orchestration to the upload use-case service.
func (s *FileServiceImpl) Upload(ctx context.Context, filename, contentType string, reader io.Reader) (*domain.FileRecord, error) {
	return s.uploadUseCase.upload(ctx, filename, contentType, reader)
}

// Open delegates filename resolution and chunk streaming setup to the
// retrieval use-case service.
func (s *FileServiceImpl) Open(ctx context.Context, filename string) (*domain.FileRecord, port.ChunkReader, error) {
	return s.retrievalUseCase.open(ctx, filename)
}

// List returns all live records in insertion order.
func (s *FileServiceImpl) List(ctx context.Context) ([]*domain.FileRecord, error) {
	return s.catalog.ListAll(ctx)
}

// Delete delegates coordinated removal to the deletion use-case
// service.
func (s *FileServiceImpl) Delete(ctx context.Context, id string) error {
	return s.deletionUseCase.delete(ctx, id)
}

// chunkSize resolves the configured chunk size with a safe default.
func (s *FileServiceImpl) chunkSize() int64 {
	if s.cfg.App.ChunkSize > 0 {
		return s.cfg.App.ChunkSize
	}
	return 1 * 1024 * 1024
}
