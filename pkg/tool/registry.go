package tool

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Declaration is the wire form of a tool sent to the agent at session
// setup.
type Declaration struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// Registry is a fixed set of tools, looked up by name at dispatch time.
type Registry struct {
	order []string
	tools map[string]*Tool
}

// NewRegistry builds a registry. Duplicate names are an error: the agent
// addresses tools purely by name.
func NewRegistry(tools ...*Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.tools[t.Name]; dup {
			return nil, fmt.Errorf("tool: duplicate name %q", t.Name)
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r, nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Manifest returns wire declarations in registration order.
func (r *Registry) Manifest() []Declaration {
	out := make([]Declaration, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Declaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Argument,
		})
	}
	return out
}
