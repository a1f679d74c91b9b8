package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/khanhng-dev/gridstore/internal/domain"
	"github.com/khanhng-dev/gridstore/internal/port"
)

const (
	recordKeyPrefix = "file:"
	nameKeyPrefix   = "name:"
	// nameKeySep separates filename from the padded ID in index keys.
	// The upload pipeline rejects filenames containing NUL, so the
	// separator never collides with filename bytes and a filename that
	// is a prefix of another cannot match the longer one's entries.
	nameKeySep = "\x00"
	// idKeyWidth is the fixed width of padded IDs inside keys. A
	// snowflake ID never exceeds 19 decimal digits.
	idKeyWidth = 20
)

// Catalog implements port.Catalog on badger. Records are stored as JSON
// under zero-padded ID keys, plus a filename index entry per record so
// duplicate-filename lookups resolve without a full scan.
type Catalog struct {
	store *Store
	ids   port.IDGenerator
}

// Ensure Catalog implements port.Catalog.
var _ port.Catalog = (*Catalog)(nil)

// NewCatalog builds a catalog on the shared badger handle. The ID
// generator owns file ID assignment.
func NewCatalog(store *Store, ids port.IDGenerator) *Catalog {
	return &Catalog{store: store, ids: ids}
}

func recordKey(id string) []byte {
	return []byte(recordKeyPrefix + padID(id))
}

func nameKey(filename, id string) []byte {
	return []byte(nameKeyPrefix + filename + nameKeySep + padID(id))
}

func namePrefix(filename string) []byte {
	return []byte(nameKeyPrefix + filename + nameKeySep)
}

// Create inserts a pending record with a freshly assigned ID and a
// filename index entry. It only fails when the store is unusable.
func (c *Catalog) Create(_ context.Context, filename, contentType string, chunkSize int64) (*domain.FileRecord, error) {
	id, err := c.ids.Next()
	if err != nil {
		return nil, fmt.Errorf("assign file id: %w", err)
	}

	record := &domain.FileRecord{
		ID:          strconv.FormatInt(id, 10),
		Filename:    filename,
		ContentType: contentType,
		ChunkSize:   chunkSize,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if err := c.putRecord(record); err != nil {
		return nil, fmt.Errorf("%w: create record for %q: %v", domain.ErrStorageUnavailable, filename, err)
	}
	return record, nil
}

// Finalize transitions a pending record to complete exactly once,
// sealing its length and chunk count.
func (c *Catalog) Finalize(_ context.Context, id string, length int64, chunks int) error {
	return c.store.db.Update(func(txn *badger.Txn) error {
		record, err := getRecord(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: finalize of unknown file %s", domain.ErrInvalidState, id)
		}
		if err != nil {
			return err
		}
		if record.Status != domain.StatusPending {
			return fmt.Errorf("%w: finalize of %s file %s", domain.ErrInvalidState, record.Status, id)
		}

		record.Length = length
		record.Chunks = chunks
		record.Status = domain.StatusComplete

		value, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", id, err)
		}
		return txn.Set(recordKey(id), value)
	})
}

// Get returns the record for id or domain.ErrFileNotFound.
func (c *Catalog) Get(_ context.Context, id string) (*domain.FileRecord, error) {
	var record *domain.FileRecord
	err := c.store.db.View(func(txn *badger.Txn) error {
		var err error
		record, err = getRecord(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: id %s", domain.ErrFileNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// FindByFilename resolves a filename to its most recently created
// record. Index keys embed the padded ID, so a reverse scan of the
// filename's prefix yields the newest entry first.
func (c *Catalog) FindByFilename(ctx context.Context, filename string) (*domain.FileRecord, error) {
	var id string
	err := c.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := namePrefix(filename)
		// Seek past the last possible key under the prefix.
		it.Seek(append(append([]byte(nil), prefix...), 0xff))
		if !it.ValidForPrefix(prefix) {
			return badger.ErrKeyNotFound
		}

		value, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		id = string(value)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: filename %q", domain.ErrFileNotFound, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("filename lookup %q: %w", filename, err)
	}

	return c.Get(ctx, id)
}

// ListAll returns every live record in insertion order.
func (c *Catalog) ListAll(_ context.Context) ([]*domain.FileRecord, error) {
	var records []*domain.FileRecord
	err := c.store.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(recordKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var record domain.FileRecord
			if err := json.Unmarshal(value, &record); err != nil {
				return fmt.Errorf("decode record %s: %w", it.Item().Key(), err)
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// ListPendingBefore returns pending records created before cutoff.
func (c *Catalog) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*domain.FileRecord, error) {
	records, err := c.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var stale []*domain.FileRecord
	for _, record := range records {
		if record.Status == domain.StatusPending && record.CreatedAt.Before(cutoff) {
			stale = append(stale, record)
		}
	}
	return stale, nil
}

// Remove deletes a record and its filename index entry.
func (c *Catalog) Remove(_ context.Context, id string) error {
	err := c.store.db.Update(func(txn *badger.Txn) error {
		record, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(recordKey(id)); err != nil {
			return err
		}
		return txn.Delete(nameKey(record.Filename, id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: id %s", domain.ErrFileNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("remove record %s: %w", id, err)
	}
	return nil
}

func (c *Catalog) putRecord(record *domain.FileRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}

	return c.store.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(recordKey(record.ID), value); err != nil {
			return err
		}
		return txn.Set(nameKey(record.Filename, record.ID), []byte(record.ID))
	})
}

func getRecord(txn *badger.Txn, id string) (*domain.FileRecord, error) {
	item, err := txn.Get(recordKey(id))
	if err != nil {
		return nil, err
	}

	var record domain.FileRecord
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &record)
	})
	if err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	// Zero-padding in keys means "007" and "7" hit the same record key.
	// Only the canonical ID resolves; chunk keys use the raw ID, so an
	// alias accepted here would let deletes split record from chunks.
	if record.ID != id {
		return nil, badger.ErrKeyNotFound
	}
	return &record, nil
}
