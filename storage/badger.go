package storage

import (
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

type BadgerStore struct {
	db      *badger.DB
	mutex   sync.Mutex
	closing bool
}

// NewBadgerStore opens the journal under dir, or in memory when dir is empty.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	db, err := openDB(dir)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{
		db: db,
	}, nil
}

func (store *BadgerStore) Close() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.closing {
		return nil
	}
	store.closing = true
	return store.db.Close()
}

func openDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts = opts.WithSyncWrites(true)
	}
	opts = opts.WithCompression(options.None)
	opts = opts.WithBlockCacheSize(0)
	opts = opts.WithIndexCacheSize(0)
	opts = opts.WithMetricsEnabled(false)
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithNumVersionsToKeep(1)
	return badger.Open(opts)
}
