// Package schemas provides an explicit schema/type registry for envelope
// payloads. Model bodies travel through the engine as serialized JSON; the
// registry is the only place they are resolved to concrete Go types, by
// schema name, never by runtime reflection on the payload.
package schemas

import (
	"encoding/json"
	"sync"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/model"
)

// Schema describes one registered model type.
type Schema struct {
	// Name is the schema name carried by envelopes.
	Name string

	// New returns a fresh, addressable decode target for one body.
	New func() any

	// Validate optionally checks a decoded body beyond JSON well-formedness.
	// A nil Validate accepts every decodable body.
	Validate func(v any) error
}

// Registry is a thread-safe name-to-schema lookup table.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]Schema),
	}
}

// Register adds or replaces a schema by name.
func (r *Registry) Register(s Schema) error {
	if s.Name == "" {
		return &errors.ValidationError{
			Field:   "name",
			Message: "schema name cannot be empty",
		}
	}
	if s.New == nil {
		return &errors.ValidationError{
			Field:   "new",
			Value:   s.Name,
			Message: "schema decode factory cannot be nil",
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Name] = s
	return nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the registered schema names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// Decode resolves the envelope's schema and decodes its body into a fresh
// instance of the registered type. An unregistered schema, a malformed
// body, or a failed validation all yield a SerializationError.
func (r *Registry) Decode(env model.Envelope) (any, error) {
	s, ok := r.Lookup(env.Schema)
	if !ok {
		return nil, errors.NewSerializationError(env.Schema, env.ID, "schema not registered", errors.ErrSchemaUnknown)
	}

	target := s.New()
	if err := json.Unmarshal(env.Body, target); err != nil {
		return nil, errors.NewSerializationError(env.Schema, env.ID, err.Error(), err)
	}

	if s.Validate != nil {
		if err := s.Validate(target); err != nil {
			return nil, errors.NewSerializationError(env.Schema, env.ID, err.Error(), err)
		}
	}

	return target, nil
}
