package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/khanhng-dev/gridstore/internal/domain"
	"github.com/khanhng-dev/gridstore/internal/port"
	"github.com/khanhng-dev/gridstore/pkg/resilience"
)

const (
	chunkKeyPrefix = "chunk:"
	// deleteBatchSize bounds the keys deleted in one badger transaction.
	deleteBatchSize = 64
)

// ChunkStore implements port.ChunkStore on badger. Chunks are addressed
// by (file ID, sequence number); sequence numbers are assigned by write
// handles and are contiguous from zero for every finalized file.
type ChunkStore struct {
	store         *Store
	compression   bool
	deleteWorkers int
}

// Ensure ChunkStore implements port.ChunkStore.
var _ port.ChunkStore = (*ChunkStore)(nil)

// NewChunkStore builds a chunk store on the shared badger handle.
func NewChunkStore(store *Store, compression bool, deleteWorkers int) *ChunkStore {
	if deleteWorkers <= 0 {
		deleteWorkers = 4
	}
	return &ChunkStore{
		store:         store,
		compression:   compression,
		deleteWorkers: deleteWorkers,
	}
}

func chunkKey(fileID string, sequence int) []byte {
	return []byte(fmt.Sprintf("%s%s:%08d", chunkKeyPrefix, fileID, sequence))
}

func chunkPrefix(fileID string) []byte {
	return []byte(chunkKeyPrefix + fileID + ":")
}

// BeginWrite allocates a write handle for fileID. A file ID that
// already owns chunks is rejected with domain.ErrDuplicateFile.
func (cs *ChunkStore) BeginWrite(ctx context.Context, fileID string, chunkSize int64) (port.ChunkWriter, error) {
	exists, err := cs.HasChunks(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateFile, fileID)
	}

	return &writeHandle{
		cs:        cs,
		fileID:    fileID,
		chunkSize: chunkSize,
	}, nil
}

// OpenRead returns a lazy reader over the record's chunk set.
func (cs *ChunkStore) OpenRead(ctx context.Context, record *domain.FileRecord) (port.ChunkReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &chunkReader{cs: cs, record: record}, nil
}

// DeleteAll removes every chunk owned by fileID. The prefix scan and
// the deletes run in separate transactions; deletion of an absent file
// is a no-op so the operation stays idempotent.
func (cs *ChunkStore) DeleteAll(ctx context.Context, fileID string) error {
	keys, err := cs.collectChunkKeys(fileID)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	pool := resilience.NewWorkerPool(cs.deleteWorkers, cs.deleteWorkers*2)

	var deleteErr error
	var errOnce sync.Once
	reportErr := func(err error) {
		if err != nil {
			errOnce.Do(func() { deleteErr = err })
		}
	}

	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		if err := pool.Submit(ctx, func() {
			reportErr(cs.deleteBatch(batch))
		}); err != nil {
			reportErr(err)
			break
		}
	}

	pool.Close()
	pool.Wait()
	return deleteErr
}

// HasChunks reports whether fileID owns at least one chunk.
func (cs *ChunkStore) HasChunks(_ context.Context, fileID string) (bool, error) {
	var exists bool
	err := cs.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := chunkPrefix(fileID)
		it.Seek(prefix)
		exists = it.ValidForPrefix(prefix)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("chunk existence check for %s: %w", fileID, err)
	}
	return exists, nil
}

// ListFileIDs returns the distinct file IDs owning chunks, sorted for
// deterministic sweeps.
func (cs *ChunkStore) ListFileIDs(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := cs.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(chunkKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, chunkKeyPrefix)
			if idx := strings.LastIndexByte(rest, ':'); idx > 0 {
				seen[rest[:idx]] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list chunk file ids: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (cs *ChunkStore) collectChunkKeys(fileID string) ([][]byte, error) {
	var keys [][]byte
	err := cs.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := chunkPrefix(fileID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect chunk keys for %s: %w", fileID, err)
	}
	return keys, nil
}

func (cs *ChunkStore) deleteBatch(keys [][]byte) error {
	return cs.store.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete chunk %s: %w", key, err)
			}
		}
		return nil
	})
}

// writeHandle appends sequential chunks for one file. It is not safe
// for concurrent use; chunk writes within one upload are ordered by
// contract.
type writeHandle struct {
	cs        *ChunkStore
	fileID    string
	chunkSize int64
	next      int
	total     int64
	sealed    bool
}

// WriteChunk persists the next chunk. The write is committed (and
// fsynced when the store runs with SyncWrites) before returning.
func (h *writeHandle) WriteChunk(ctx context.Context, data []byte) error {
	if h.sealed {
		return fmt.Errorf("%w: write after finalize on %s", domain.ErrInvalidState, h.fileID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	chunk, err := domain.NewChunk(h.fileID, h.next, data, h.chunkSize)
	if err != nil {
		return err
	}
	frame, err := encodeFrame(chunk, h.cs.compression)
	if err != nil {
		return err
	}

	err = h.cs.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(h.fileID, h.next), frame)
	})
	if err != nil {
		return fmt.Errorf("write chunk %d of %s: %w", h.next, h.fileID, err)
	}

	h.next++
	h.total += int64(len(data))
	return nil
}

// Finalize seals the handle and returns total bytes and chunk count.
func (h *writeHandle) Finalize() (int64, int, error) {
	if h.sealed {
		return 0, 0, fmt.Errorf("%w: finalize called twice on %s", domain.ErrInvalidState, h.fileID)
	}
	h.sealed = true
	return h.total, h.next, nil
}

// chunkReader lazily reads a finalized file chunk by chunk using point
// lookups, so no badger iterator is held across consumer suspensions.
type chunkReader struct {
	cs     *ChunkStore
	record *domain.FileRecord
	next   int
	closed bool
}

// Next returns the next chunk payload, io.EOF past the last chunk, or
// domain.ErrChunkNotFound when a chunk below the expected count is
// gone, which happens when a concurrent delete raced this reader.
func (r *chunkReader) Next(ctx context.Context) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("%w: read on closed chunk reader", domain.ErrInvalidState)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.next >= r.record.Chunks {
		return nil, io.EOF
	}

	var frame []byte
	err := r.cs.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(r.record.ID, r.next))
		if err != nil {
			return err
		}
		frame, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s sequence %d", domain.ErrChunkNotFound, r.record.ID, r.next)
	}
	if err != nil {
		return nil, fmt.Errorf("read chunk %d of %s: %w", r.next, r.record.ID, err)
	}

	chunk, err := decodeFrame(r.record.ID, r.next, frame)
	if err != nil {
		return nil, err
	}

	r.next++
	return chunk.Data, nil
}

// Reset restarts the stream from sequence zero.
func (r *chunkReader) Reset() {
	r.next = 0
}

// Close releases the reader. Point reads hold no open transaction, so
// this only blocks further use.
func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}
