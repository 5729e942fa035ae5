package ebbsync

import (
	"sync"

	"github.com/ebbworks/ebbsync/pkg/events"
	"github.com/ebbworks/ebbsync/pkg/model"
)

// Hook function types for reconciliation events
type (
	// AppliedHook is called when a remote model is fully applied
	AppliedHook func(applied model.AppliedModel)

	// DroppedHook is called when an item is dropped without a full apply
	DroppedHook func(key model.Key, reason events.Reason, err error)

	// FinishedHook is called once per run when the run completes
	FinishedHook func(err error)
)

// hooks manages event callbacks for reconciliation outcomes
type hooks struct {
	mu         sync.RWMutex
	onApplied  []AppliedHook
	onDropped  []DroppedHook
	onFinished []FinishedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnApplied registers a callback for applied models
func (h *hooks) OnApplied(fn AppliedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onApplied = append(h.onApplied, fn)
}

// OnDropped registers a callback for dropped items
func (h *hooks) OnDropped(fn DroppedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDropped = append(h.onDropped, fn)
}

// OnFinished registers a callback for run completion
func (h *hooks) OnFinished(fn FinishedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFinished = append(h.onFinished, fn)
}

// sink wraps the configured sink so registered hooks observe every
// outcome event before it is forwarded.
func (h *hooks) sink(next events.Sink) events.Sink {
	return &hookSink{hooks: h, next: next}
}

// hookSink dispatches events to hooks and then to the wrapped sink.
type hookSink struct {
	hooks *hooks
	next  events.Sink
}

// Send implements events.Sink.
func (s *hookSink) Send(e events.Event) {
	s.hooks.mu.RLock()
	defer s.hooks.mu.RUnlock()

	switch e.Kind {
	case events.KindApplied:
		if e.Applied != nil {
			for _, hook := range s.hooks.onApplied {
				hook(*e.Applied)
			}
		}
	case events.KindDropped:
		for _, hook := range s.hooks.onDropped {
			hook(e.Key, e.Reason, e.Err)
		}
	}

	if s.next != nil {
		s.next.Send(e)
	}
}

// Finish implements events.Sink.
func (s *hookSink) Finish(err error) {
	s.hooks.mu.RLock()
	defer s.hooks.mu.RUnlock()

	for _, hook := range s.hooks.onFinished {
		hook(err)
	}

	if s.next != nil {
		s.next.Finish(err)
	}
}
