package tool

import (
	"context"
	"errors"
	"testing"
)

type echoArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func TestInvoke(t *testing.T) {
	tl := MustNew("echo", "echoes the query", func(_ context.Context, a echoArgs) (any, error) {
		return a.Query, nil
	})

	t.Run("well-formed args", func(t *testing.T) {
		got, err := tl.Invoke(context.Background(), `{"query":"cement","limit":5}`)
		if err != nil {
			t.Fatalf("invoke: %v", err)
		}
		if got != "cement" {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("empty args decode as zero value", func(t *testing.T) {
		got, err := tl.Invoke(context.Background(), "")
		if err != nil {
			t.Fatalf("invoke: %v", err)
		}
		if got != "" {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("repairs malformed model JSON", func(t *testing.T) {
		got, err := tl.Invoke(context.Background(), `{'query': 'rebar',}`)
		if err != nil {
			t.Fatalf("invoke: %v", err)
		}
		if got != "rebar" {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("handler error propagates", func(t *testing.T) {
		wantErr := errors.New("boom")
		failing := MustNew("fail", "", func(_ context.Context, _ echoArgs) (any, error) {
			return nil, wantErr
		})
		if _, err := failing.Invoke(context.Background(), "{}"); !errors.Is(err, wantErr) {
			t.Errorf("err=%v", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	a := MustNew("a", "first", func(_ context.Context, _ struct{}) (any, error) { return nil, nil })
	b := MustNew("b", "second", func(_ context.Context, _ struct{}) (any, error) { return nil, nil })

	t.Run("lookup and order", func(t *testing.T) {
		r, err := NewRegistry(a, b)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if _, ok := r.Lookup("a"); !ok {
			t.Error("a not found")
		}
		if _, ok := r.Lookup("nonexistent"); ok {
			t.Error("phantom tool")
		}
		m := r.Manifest()
		if len(m) != 2 || m[0].Name != "a" || m[1].Name != "b" {
			t.Errorf("manifest=%v", m)
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		if _, err := NewRegistry(a, a); err == nil {
			t.Error("want error")
		}
	})
}
