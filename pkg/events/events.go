// Package events defines the outcome stream a reconciliation run produces.
// Every remote model in an input batch maps to exactly one terminal Event,
// and a run delivers exactly one finish signal after its last event.
package events

import "github.com/ebbworks/ebbsync/pkg/model"

// Kind discriminates the outcome variants.
type Kind string

// Outcome kinds.
const (
	// KindApplied means the body mutation and its metadata were persisted.
	KindApplied Kind = "applied"

	// KindDropped means the body was not applied. The reason says why;
	// a drop is not necessarily a failure (see ReasonConflict).
	KindDropped Kind = "dropped"
)

// Reason explains why an item was dropped.
type Reason string

// Drop reasons.
const (
	// ReasonStale means the remote version did not supersede local metadata.
	ReasonStale Reason = "stale"

	// ReasonConflict means a pending local mutation blocked the body apply.
	// The item's sync metadata is still merged; "dropped" here denotes
	// "body not applied", not "operation failed".
	ReasonConflict Reason = "conflict"

	// ReasonIgnorableStoreError means the store failed in a way the
	// adapter classified as safe to treat as a drop.
	ReasonIgnorableStoreError Reason = "ignorable_store_error"

	// ReasonFatalError means the item failed to apply; siblings proceed.
	ReasonFatalError Reason = "fatal_error"

	// ReasonAdapterUnavailable means the storage adapter was unreachable
	// for the whole batch; every unresolved item is dropped with it.
	ReasonAdapterUnavailable Reason = "adapter_unavailable"
)

// Event is the terminal outcome for one remote model.
type Event struct {
	Kind Kind

	// Key identifies the model the event is about.
	Key model.Key

	// Applied is set when Kind is KindApplied.
	Applied *model.AppliedModel

	// Reason is set when Kind is KindDropped.
	Reason Reason

	// Err carries the underlying cause for error-flavored drops. It is
	// nil for ReasonStale and ReasonConflict.
	Err error
}

// NewApplied creates an applied outcome event.
func NewApplied(applied model.AppliedModel) Event {
	return Event{
		Kind:    KindApplied,
		Key:     applied.Key(),
		Applied: &applied,
	}
}

// NewDropped creates a dropped outcome event.
func NewDropped(key model.Key, reason Reason, err error) Event {
	return Event{
		Kind:   KindDropped,
		Key:    key,
		Reason: reason,
		Err:    err,
	}
}

// IsFailure reports whether the drop represents an actual error rather
// than local precedence or staleness.
func (e Event) IsFailure() bool {
	switch e.Reason {
	case ReasonIgnorableStoreError, ReasonFatalError, ReasonAdapterUnavailable:
		return true
	}
	return false
}

// Sink consumes the ordered outcome stream of a run. Events arrive
// serialized in emission order; Finish is called exactly once per run,
// after the last event, with the run-fatal error if any.
//
// Implementations must not retain the Event's Applied pointer past the
// call if they mutate it; the engine treats outcomes as immutable.
type Sink interface {
	Send(event Event)
	Finish(err error)
}
