// Package badgerstore persists the two logical collections of the
// service, file records and file chunks, in a single BadgerDB instance.
//
// Key layout:
//
//	file:<padded-id>            JSON-encoded domain.FileRecord
//	name:<filename>\x00<padded-id>  filename index entry, value = raw id
//	chunk:<id>:<padded-seq>     framed chunk payload
//
// File IDs are zero-padded in keys so that lexicographic key order is
// insertion order (snowflake IDs are time-ordered).
package badgerstore

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/khanhng-dev/gridstore/internal/domain"
)

// Config controls the backing BadgerDB instance.
type Config struct {
	// DataDir is the badger directory.
	DataDir string
	// SyncWrites forces an fsync before a chunk write is acknowledged.
	SyncWrites bool
}

// Store owns the badger handle shared by the chunk store and the
// catalog. Open it once at process start and Close it on shutdown.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the badger database. Failure here means the
// process cannot serve any request.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.DataDir).
		WithLogger(nil).
		WithSyncWrites(cfg.SyncWrites)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %s: %v", domain.ErrStorageUnavailable, cfg.DataDir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the badger handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// padID left-pads a decimal file ID to fixed width so IDs sort
// lexicographically in creation order inside keys.
func padID(id string) string {
	if len(id) >= idKeyWidth {
		return id
	}
	return strings.Repeat("0", idKeyWidth-len(id)) + id
}
