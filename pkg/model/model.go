// Package model defines the data types that flow through a reconciliation
// run: remote model envelopes, sync metadata, pending local mutations, and
// the applied records produced by a successful merge.
//
// All values in this package are plain data. They are created from an
// incoming batch at the start of a run, transformed in memory, and discarded
// when the run finishes; only persisted metadata (and applied bodies)
// survive in the store.
package model

import (
	"encoding/json"

	"github.com/agentstation/utc"
)

// Key identifies one model instance within a schema.
type Key struct {
	Schema string `json:"schema" yaml:"schema"`
	ID     string `json:"id" yaml:"id"`
}

// String returns the canonical "schema/id" form used in logs and errors.
func (k Key) String() string {
	return k.Schema + "/" + k.ID
}

// Envelope is the typed carrier for an opaque model payload. The body is
// kept serialized; decoding happens only through an explicit schema
// registry, never through runtime reflection on the payload itself.
type Envelope struct {
	Schema string          `json:"schema" yaml:"schema"`
	ID     string          `json:"id" yaml:"id"`
	Body   json.RawMessage `json:"body,omitempty" yaml:"body,omitempty"`
}

// Key returns the identity of the enveloped model.
func (e Envelope) Key() Key {
	return Key{Schema: e.Schema, ID: e.ID}
}

// Metadata tracks the synchronization state of one model instance.
type Metadata struct {
	// Version is the monotonic remote version number. A remote change is
	// applied locally only when its version is strictly greater than the
	// last version recorded here.
	Version int64 `json:"version" yaml:"version"`

	// LastChangedAt is when the remote side last changed the model.
	LastChangedAt utc.Time `json:"last_changed_at" yaml:"last_changed_at"`

	// Deleted marks a remote tombstone.
	Deleted bool `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

// NewerThan reports whether m supersedes other under the monotonic
// version rule.
func (m Metadata) NewerThan(other Metadata) bool {
	return m.Version > other.Version
}

// RemoteModel is one incoming mutation from the remote side: an envelope
// plus the sync metadata describing it. Read-only input for one run.
type RemoteModel struct {
	Envelope Envelope `json:"model" yaml:"model"`
	Metadata Metadata `json:"sync_metadata" yaml:"sync_metadata"`
}

// Key returns the identity of the remote model.
func (r RemoteModel) Key() Key {
	return r.Envelope.Key()
}

// Record is the persisted form of sync metadata, keyed by schema and id.
type Record struct {
	Key      Key      `json:"key" yaml:"key"`
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// MutationKind describes the type of a pending local mutation.
type MutationKind string

// Pending mutation kinds.
const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// PendingMutation is a local change that has not yet been pushed to the
// remote side. During reconciliation its presence blocks body overwrites
// for the same key; only a membership test is ever performed on it.
type PendingMutation struct {
	Key      Key          `json:"key" yaml:"key"`
	Kind     MutationKind `json:"kind" yaml:"kind"`
	QueuedAt utc.Time     `json:"queued_at" yaml:"queued_at"`
}

// AppliedModel is the post-write record for a fully applied disposition:
// the saved envelope combined with the sync metadata that was persisted
// for it. It is what downstream consumers are notified with.
type AppliedModel struct {
	Envelope Envelope `json:"model" yaml:"model"`
	Metadata Metadata `json:"sync_metadata" yaml:"sync_metadata"`
}

// Key returns the identity of the applied model.
func (a AppliedModel) Key() Key {
	return a.Envelope.Key()
}

// Keys extracts the identity of every remote model in batch, preserving
// input order. Used to issue the batched metadata and pending-mutation
// queries.
func Keys(batch []RemoteModel) []Key {
	keys := make([]Key, len(batch))
	for i, r := range batch {
		keys[i] = r.Key()
	}
	return keys
}
