// Package memory provides an in-memory store adapter for testing and
// temporary operations. It implements the full store.Adapter contract,
// including the pending-mutation writer extension, guarded by a single
// mutex so concurrent pipeline calls are safe.
package memory

import (
	"context"
	"sync"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/model"
	"github.com/ebbworks/ebbsync/pkg/store"
)

// Store is an in-memory store.Adapter.
type Store struct {
	mu       sync.RWMutex
	bodies   map[model.Key]model.Envelope
	metadata map[model.Key]model.Metadata
	pending  map[model.Key]model.PendingMutation
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		bodies:   make(map[model.Key]model.Envelope),
		metadata: make(map[model.Key]model.Metadata),
		pending:  make(map[model.Key]model.PendingMutation),
	}
}

var (
	_ store.Adapter       = (*Store)(nil)
	_ store.PendingWriter = (*Store)(nil)
)

// Metadata implements store.Adapter.
func (s *Store) Metadata(ctx context.Context, keys []model.Key) (map[model.Key]model.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.Key]model.Metadata, len(keys))
	for _, key := range keys {
		if md, ok := s.metadata[key]; ok {
			out[key] = md
		}
	}
	return out, nil
}

// Pending implements store.Adapter.
func (s *Store) Pending(ctx context.Context, keys []model.Key) (map[model.Key]model.PendingMutation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.Key]model.PendingMutation, len(keys))
	for _, key := range keys {
		if p, ok := s.pending[key]; ok {
			out[key] = p
		}
	}
	return out, nil
}

// SaveModel implements store.Adapter.
func (s *Store) SaveModel(ctx context.Context, env model.Envelope) (model.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return model.Envelope{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bodies[env.Key()] = env
	return env, nil
}

// DeleteModel implements store.Adapter. Deleting an absent body returns a
// not-found error, which Ignorable classifies as safe to drop.
func (s *Store) DeleteModel(ctx context.Context, key model.Key, expect *model.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bodies[key]; !ok {
		return errors.NewNotFoundError("model", key.String())
	}
	if expect != nil {
		if current, ok := s.metadata[key]; !ok || current.Version != expect.Version {
			return errors.ErrPreconditionFailed
		}
	}

	delete(s.bodies, key)
	return nil
}

// SaveMetadata implements store.Adapter.
func (s *Store) SaveMetadata(ctx context.Context, rec model.Record, expect *model.Metadata) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expect != nil {
		if current, ok := s.metadata[rec.Key]; !ok || current.Version != expect.Version {
			return model.Record{}, errors.ErrPreconditionFailed
		}
	}

	s.metadata[rec.Key] = rec.Metadata
	return rec, nil
}

// Transaction implements store.Adapter. The memory store has no real
// transaction machinery; fn runs against the store itself and its net
// effect is visible atomically enough for a single process.
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Adapter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

// Ignorable implements store.Adapter. Missing records are the only
// ignorable condition for the memory store.
func (s *Store) Ignorable(err error) bool {
	return errors.IsNotFound(err)
}

// SavePending implements store.PendingWriter.
func (s *Store) SavePending(ctx context.Context, p model.PendingMutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[p.Key] = p
	return nil
}

// DeletePending implements store.PendingWriter.
func (s *Store) DeletePending(ctx context.Context, key model.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
	return nil
}

// Body returns the stored body for key, if present. Test helper.
func (s *Store) Body(key model.Key) (model.Envelope, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env, ok := s.bodies[key]
	return env, ok
}

// Meta returns the stored metadata for key, if present. Test helper.
func (s *Store) Meta(key model.Key) (model.Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.metadata[key]
	return md, ok
}

// Len returns the number of stored bodies. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bodies)
}
