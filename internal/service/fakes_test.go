package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/khanhng-dev/gridstore/internal/domain"
	"github.com/khanhng-dev/gridstore/internal/port"
)

// fakeBackend implements port.Catalog and port.ChunkStore in memory
// and records the order of mutating calls, so tests can assert the
// chunks-before-record ordering of deletes and rollbacks.
type fakeBackend struct {
	mu      sync.Mutex
	nextID  int64
	order   []string
	records map[string]*domain.FileRecord
	chunks  map[string][][]byte
	ops     []string

	createErr   error
	finalizeErr error
	// writeErrAt fails the chunk write with that sequence number;
	// negative means never fail.
	writeErrAt int
}

var (
	_ port.Catalog    = (*fakeBackend)(nil)
	_ port.ChunkStore = (*fakeBackend)(nil)
)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID:     100,
		records:    make(map[string]*domain.FileRecord),
		chunks:     make(map[string][][]byte),
		writeErrAt: -1,
	}
}

func (b *fakeBackend) logOp(op string) {
	b.ops = append(b.ops, op)
}

func (b *fakeBackend) Create(_ context.Context, filename, contentType string, chunkSize int64) (*domain.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}

	b.nextID++
	record := &domain.FileRecord{
		ID:          strconv.FormatInt(b.nextID, 10),
		Filename:    filename,
		ContentType: contentType,
		ChunkSize:   chunkSize,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	b.records[record.ID] = record
	b.order = append(b.order, record.ID)
	b.logOp("create:" + record.ID)
	return record, nil
}

func (b *fakeBackend) Finalize(_ context.Context, id string, length int64, chunks int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalizeErr != nil {
		return b.finalizeErr
	}

	record, ok := b.records[id]
	if !ok || record.Status != domain.StatusPending {
		return fmt.Errorf("%w: finalize %s", domain.ErrInvalidState, id)
	}
	record.Length = length
	record.Chunks = chunks
	record.Status = domain.StatusComplete
	b.logOp("finalize:" + id)
	return nil
}

func (b *fakeBackend) Get(_ context.Context, id string) (*domain.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", domain.ErrFileNotFound, id)
	}
	copied := *record
	return &copied, nil
}

func (b *fakeBackend) FindByFilename(_ context.Context, filename string) (*domain.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.order) - 1; i >= 0; i-- {
		record, ok := b.records[b.order[i]]
		if ok && record.Filename == filename {
			copied := *record
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: filename %q", domain.ErrFileNotFound, filename)
}

func (b *fakeBackend) ListAll(_ context.Context) ([]*domain.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var records []*domain.FileRecord
	for _, id := range b.order {
		if record, ok := b.records[id]; ok {
			copied := *record
			records = append(records, &copied)
		}
	}
	return records, nil
}

func (b *fakeBackend) ListPendingBefore(_ context.Context, cutoff time.Time) ([]*domain.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var stale []*domain.FileRecord
	for _, id := range b.order {
		record, ok := b.records[id]
		if ok && record.Status == domain.StatusPending && record.CreatedAt.Before(cutoff) {
			copied := *record
			stale = append(stale, &copied)
		}
	}
	return stale, nil
}

func (b *fakeBackend) Remove(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.records[id]; !ok {
		return fmt.Errorf("%w: id %s", domain.ErrFileNotFound, id)
	}
	delete(b.records, id)
	b.logOp("remove:" + id)
	return nil
}

func (b *fakeBackend) BeginWrite(_ context.Context, fileID string, chunkSize int64) (port.ChunkWriter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks[fileID]) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateFile, fileID)
	}
	return &fakeWriter{backend: b, fileID: fileID, chunkSize: chunkSize}, nil
}

func (b *fakeBackend) OpenRead(_ context.Context, record *domain.FileRecord) (port.ChunkReader, error) {
	return &fakeReader{backend: b, record: record}, nil
}

func (b *fakeBackend) DeleteAll(_ context.Context, fileID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.chunks, fileID)
	b.logOp("deleteChunks:" + fileID)
	return nil
}

func (b *fakeBackend) HasChunks(_ context.Context, fileID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks[fileID]) > 0, nil
}

func (b *fakeBackend) ListFileIDs(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ids []string
	for id := range b.chunks {
		ids = append(ids, id)
	}
	return ids, nil
}

// content returns the concatenated stored bytes for a file.
func (b *fakeBackend) content(fileID string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []byte
	for _, chunk := range b.chunks[fileID] {
		out = append(out, chunk...)
	}
	return out
}

type fakeWriter struct {
	backend   *fakeBackend
	fileID    string
	chunkSize int64
	next      int
	total     int64
	sealed    bool
}

func (w *fakeWriter) WriteChunk(_ context.Context, data []byte) error {
	if w.sealed {
		return fmt.Errorf("%w: sealed handle", domain.ErrInvalidState)
	}
	if int64(len(data)) > w.chunkSize {
		return domain.ErrChunkTooLarge
	}

	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()

	if w.backend.writeErrAt == w.next {
		return fmt.Errorf("disk on fire at chunk %d", w.next)
	}
	w.backend.chunks[w.fileID] = append(w.backend.chunks[w.fileID], append([]byte(nil), data...))
	w.backend.logOp(fmt.Sprintf("writeChunk:%s:%d", w.fileID, w.next))
	w.next++
	w.total += int64(len(data))
	return nil
}

func (w *fakeWriter) Finalize() (int64, int, error) {
	if w.sealed {
		return 0, 0, fmt.Errorf("%w: sealed handle", domain.ErrInvalidState)
	}
	w.sealed = true
	return w.total, w.next, nil
}

type fakeReader struct {
	backend *fakeBackend
	record  *domain.FileRecord
	next    int
	closed  bool
}

func (r *fakeReader) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.next >= r.record.Chunks {
		return nil, io.EOF
	}

	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()

	stored := r.backend.chunks[r.record.ID]
	if r.next >= len(stored) {
		return nil, fmt.Errorf("%w: %s sequence %d", domain.ErrChunkNotFound, r.record.ID, r.next)
	}
	data := stored[r.next]
	r.next++
	return data, nil
}

func (r *fakeReader) Reset() { r.next = 0 }

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}
