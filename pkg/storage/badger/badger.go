package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/tinysense/sensord/pkg/storage"
)

// Store implements storage.Store using BadgerDB (LSM tree).
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration.
type Config struct {
	// Path to store database files.
	Path string

	// InMemory mode (for testing).
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = small-footprint
	// defaults). The node writes a few KB-to-MB documents, so the default is
	// deliberately tiny.
	MaxMemoryMB int64
}

// New creates a BadgerDB store.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// BadgerDB's defaults assume a server workload (64 MB memtable, multi-GB
	// value logs). The node persists a couple of snapshot documents, so
	// everything is bounded tightly.
	var memTableSize int64
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3 // ~33% for memtable
	} else {
		// 16 MB memtable is the floor for decent flush behavior.
		memTableSize = 16 * 1024 * 1024
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(2).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumCompactors(1).
		WithValueThreshold(1024).
		WithValueLogFileSize(16 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db}, nil
}

// Write stores a document under key as a full overwrite.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write document %q: %w", key, err)
	}
	return nil
}

// Read returns the document stored under key, or storage.ErrNotFound.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %q: %w", key, err)
	}
	return data, nil
}

// Close cleanly shuts down the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs one round of value log garbage collection. Badger returns an
// error when no rewrite was needed; callers treat that as a no-op.
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}
