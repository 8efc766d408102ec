package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/vmihailenco/msgpack/v5"
)

// Bucket is a typed view over a KV prefix. Records are msgpack-encoded.
type Bucket[T any] struct {
	kv     KV
	prefix Key
}

// NewBucket creates a bucket rooted at the given prefix.
func NewBucket[T any](kv KV, prefix ...string) *Bucket[T] {
	return &Bucket[T]{kv: kv, prefix: Key(prefix)}
}

func (b *Bucket[T]) key(id string) Key {
	return append(append(Key(nil), b.prefix...), id)
}

// Get decodes the record stored under id.
func (b *Bucket[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	raw, err := b.kv.Get(ctx, b.key(id))
	if err != nil {
		return v, err
	}
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("store: decode %s: %w", b.key(id), err)
	}
	return v, nil
}

// Put encodes and stores a record under id.
func (b *Bucket[T]) Put(ctx context.Context, id string, v T) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", b.key(id), err)
	}
	return b.kv.Put(ctx, b.key(id), raw)
}

// Delete removes the record under id.
func (b *Bucket[T]) Delete(ctx context.Context, id string) error {
	return b.kv.Delete(ctx, b.key(id))
}

// All iterates every record in the bucket, keyed by id.
func (b *Bucket[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for e, err := range b.kv.Scan(ctx, b.prefix) {
			var v T
			if err == nil {
				err = msgpack.Unmarshal(e.Value, &v)
			}
			if !yield(v, err) {
				return
			}
		}
	}
}
