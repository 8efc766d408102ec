// Package tool defines the copilot's tool surface: named, described,
// schema-typed actions the remote agent may invoke during a live session.
//
// A Tool binds a Go argument type to a JSON schema derived from it, so
// the manifest sent at session setup and the decoder applied to incoming
// argument payloads can never drift apart.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// Tool is a single named action with a typed argument schema.
type Tool struct {
	Name        string
	Description string

	// Argument is the JSON schema for the tool's argument object.
	Argument *jsonschema.Schema

	invoke func(ctx context.Context, rawArgs string) (any, error)
}

// New builds a Tool whose argument schema is derived from Args. The
// handler receives decoded arguments; decode failures surface as handler
// errors, not panics.
func New[Args any](name, description string, fn func(ctx context.Context, args Args) (any, error)) (*Tool, error) {
	schema, err := jsonschema.For[Args](nil)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return &Tool{
		Name:        name,
		Description: description,
		Argument:    schema,
		invoke: func(ctx context.Context, rawArgs string) (any, error) {
			var args Args
			if err := unmarshalArgs([]byte(rawArgs), &args); err != nil {
				return nil, fmt.Errorf("tool %s: decode args %q: %w", name, rawArgs, err)
			}
			return fn(ctx, args)
		},
	}, nil
}

// MustNew is New, panicking on schema derivation failure.
func MustNew[Args any](name, description string, fn func(ctx context.Context, args Args) (any, error)) *Tool {
	t, err := New(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// Invoke decodes rawArgs and runs the handler.
func (t *Tool) Invoke(ctx context.Context, rawArgs string) (any, error) {
	if rawArgs == "" {
		rawArgs = "{}"
	}
	return t.invoke(ctx, rawArgs)
}

// unmarshalArgs decodes model-produced JSON, attempting a repair pass on
// syntax errors before giving up. Models occasionally emit truncated or
// single-quoted JSON.
func unmarshalArgs(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}
