// Package ebbsync is an offline-first reconciliation engine. It merges
// batches of remote model mutations into a local store while preserving
// unsynced local changes: conflicts are resolved by version metadata,
// pending local edits are never overwritten, and every input item is
// accounted for with exactly one outcome event.
package ebbsync

import (
	"context"
	"sync"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/model"
	"github.com/ebbworks/ebbsync/pkg/reconcile"
)

// Engine reconciles remote mutation batches into a local store and
// reports outcomes through hooks and the configured event sink.
type Engine interface {
	// Reconcile merges one batch into the store and blocks until the run
	// finishes. Only one run may be active at a time; a second call
	// while a run is in flight returns ErrRunInProgress.
	Reconcile(ctx context.Context, batch []model.RemoteModel) (*reconcile.Result, error)

	// OnApplied registers a callback for fully applied models.
	OnApplied(AppliedHook)

	// OnDropped registers a callback for dropped items.
	OnDropped(DroppedHook)

	// OnFinished registers a callback for run completion.
	OnFinished(FinishedHook)
}

// engine is the internal implementation of the Engine interface.
type engine struct {
	mu      sync.Mutex
	running bool

	config *config
	hooks  *hooks
}

// New creates a new Engine with the given options.
func New(opts ...Option) (Engine, error) {
	e := &engine{
		config: defaultConfig(),
		hooks:  newHooks(),
	}

	if err := e.options(opts...); err != nil {
		return nil, err
	}

	return e, nil
}

// Reconcile merges one batch into the store.
func (e *engine) Reconcile(ctx context.Context, batch []model.RemoteModel) (*reconcile.Result, error) {
	if !e.begin() {
		return nil, errors.ErrRunInProgress
	}
	defer e.end()

	sink := e.hooks.sink(e.config.sink)
	runner := reconcile.NewRunner(e.config.store, sink, e.config.registry, *e.config.logger)
	return runner.Run(ctx, batch)
}

// OnApplied registers a callback for fully applied models.
func (e *engine) OnApplied(fn AppliedHook) {
	e.hooks.OnApplied(fn)
}

// OnDropped registers a callback for dropped items.
func (e *engine) OnDropped(fn DroppedHook) {
	e.hooks.OnDropped(fn)
}

// OnFinished registers a callback for run completion.
func (e *engine) OnFinished(fn FinishedHook) {
	e.hooks.OnFinished(fn)
}

// begin claims the single-run slot. The engine is not a queue; callers
// serialize batches themselves.
func (e *engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *engine) end() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
}
