// Package store provides the small key-value layer backing the
// marketplace data collaborator: a BadgerDB implementation for on-disk
// use, an in-memory implementation for tests, and a typed Bucket wrapper
// that msgpack-encodes records under hierarchical keys.
package store

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("store: not found")

// Key is a hierarchical path, e.g. Key{"catalog", "sku-001"}. Segments
// must not contain '/'.
type Key []string

// String returns the encoded form of the key.
func (k Key) String() string {
	return strings.Join(k, "/")
}

func encodeKey(k Key) []byte {
	return []byte(k.String())
}

func decodeKey(b []byte) Key {
	return Key(strings.Split(string(b), "/"))
}

// Entry is a key-value pair yielded by Scan.
type Entry struct {
	Key   Key
	Value []byte
}

// KV is the storage contract shared by the Badger and memory backends.
type KV interface {
	// Get retrieves the value for a key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Put stores a key-value pair, overwriting any existing value.
	Put(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// Scan iterates entries under the given key prefix in lexicographic
	// order of the encoded key.
	Scan(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Close releases the backend.
	Close() error
}
