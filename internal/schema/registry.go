package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_registry.yaml
var defaultRegistry []byte

// Registry is the ordered list of known source formats. Order matters: equal
// match scores resolve to the earliest registered definition.
type Registry struct {
	defs []*Definition
	byID map[string]*Definition
}

// Parse decodes a registry from YAML: a list of mapping objects, one per
// definition. Unknown keys and invalid definitions are errors.
func Parse(data []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var defs []*Definition
	if err := dec.Decode(&defs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("parsing schema registry: empty document")
		}
		return nil, fmt.Errorf("parsing schema registry: %w", err)
	}
	if len(defs) == 0 {
		return nil, errors.New("parsing schema registry: no definitions")
	}

	r := &Registry{byID: make(map[string]*Definition, len(defs))}
	for i, d := range defs {
		if d == nil {
			return nil, fmt.Errorf("schema registry entry %d is empty", i)
		}
		if err := d.compile(); err != nil {
			return nil, fmt.Errorf("schema registry entry %d: %w", i, err)
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("schema registry entry %d: duplicate id %q", i, d.ID)
		}
		r.byID[d.ID] = d
		r.defs = append(r.defs, d)
	}
	return r, nil
}

// Load reads a registry file from disk.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema registry: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Default returns the built-in registry. Panics if the embedded file is invalid.
func Default() *Registry {
	r, err := Parse(defaultRegistry)
	if err != nil {
		panic("invalid built-in schema registry: " + err.Error())
	}
	return r
}

// DefaultYAML returns the built-in registry source, for scaffolding a
// user-editable copy.
func DefaultYAML() []byte {
	return bytes.Clone(defaultRegistry)
}

// All returns all definitions in registration order.
func (r *Registry) All() []*Definition {
	return r.defs
}

// Get returns the definition for id, or nil.
func (r *Registry) Get(id string) *Definition {
	return r.byID[id]
}
