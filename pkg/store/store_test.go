package store

import (
	"context"
	"errors"
	"testing"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	b, err := OpenBadger("")
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return map[string]KV{
		"memory": NewMemory(),
		"badger": b,
	}
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("get missing", func(t *testing.T) {
				if _, err := kv.Get(ctx, Key{"x", "missing"}); !errors.Is(err, ErrNotFound) {
					t.Errorf("err=%v", err)
				}
			})

			t.Run("put get delete", func(t *testing.T) {
				k := Key{"catalog", "sku-1"}
				if err := kv.Put(ctx, k, []byte("cement")); err != nil {
					t.Fatalf("put: %v", err)
				}
				v, err := kv.Get(ctx, k)
				if err != nil || string(v) != "cement" {
					t.Fatalf("get: %q %v", v, err)
				}
				if err := kv.Delete(ctx, k); err != nil {
					t.Fatalf("delete: %v", err)
				}
				if _, err := kv.Get(ctx, k); !errors.Is(err, ErrNotFound) {
					t.Errorf("err=%v", err)
				}
				// Deleting again is fine.
				if err := kv.Delete(ctx, k); err != nil {
					t.Errorf("second delete: %v", err)
				}
			})

			t.Run("scan respects segment boundary", func(t *testing.T) {
				kv.Put(ctx, Key{"proj", "a"}, []byte("1"))
				kv.Put(ctx, Key{"proj", "b"}, []byte("2"))
				kv.Put(ctx, Key{"projects", "c"}, []byte("3"))
				var ids []string
				for e, err := range kv.Scan(ctx, Key{"proj"}) {
					if err != nil {
						t.Fatalf("scan: %v", err)
					}
					ids = append(ids, e.Key[len(e.Key)-1])
				}
				if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
					t.Errorf("ids=%v", ids)
				}
			})
		})
	}
}

type record struct {
	Name  string `msgpack:"name"`
	Cents int64  `msgpack:"cents"`
}

func TestBucket(t *testing.T) {
	ctx := context.Background()
	b := NewBucket[record](NewMemory(), "catalog")

	if err := b.Put(ctx, "sku-9", record{Name: "rebar 12mm", Cents: 18950}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := b.Get(ctx, "sku-9")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "rebar 12mm" || got.Cents != 18950 {
		t.Errorf("got=%+v", got)
	}

	var n int
	for _, err := range b.All(ctx) {
		if err != nil {
			t.Fatalf("all: %v", err)
		}
		n++
	}
	if n != 1 {
		t.Errorf("n=%d", n)
	}

	if err := b.Delete(ctx, "sku-9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Get(ctx, "sku-9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err=%v", err)
	}
}
