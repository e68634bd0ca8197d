// Package storage defines the small keyed document store the node persists
// its snapshots into. The node writes a handful of documents (data snapshot,
// alert config), each as a full overwrite.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound reports a read of a document that has never been written.
var ErrNotFound = errors.New("storage: document not found")

// Store is the durable storage contract.
// Implementations: memory (testing), badger (production).
type Store interface {
	// Write stores a document under key, replacing any previous value.
	Write(ctx context.Context, key string, data []byte) error

	// Read returns the document stored under key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Close cleanly shuts down the store.
	Close() error
}
