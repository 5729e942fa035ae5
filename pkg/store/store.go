// Package store defines the storage adapter boundary the reconciliation
// engine consumes. The engine never touches a storage implementation
// directly: everything it needs from persistence — batched metadata and
// pending-mutation lookups, body writes, metadata writes, a transaction
// boundary, and an error classification — goes through the Adapter
// interface. Reference implementations live in the memory and sqlite
// subpackages.
package store

import (
	"context"

	"github.com/ebbworks/ebbsync/pkg/model"
)

// Adapter is the consumed collaborator interface for the local store.
//
// Query methods take the full key set for a batch and return maps; keys
// with no record are simply absent from the result. Write methods accept
// an optional precondition: when expect is non-nil, the write succeeds
// only if the currently persisted metadata matches it.
type Adapter interface {
	// Metadata returns the last known sync metadata for the given keys.
	Metadata(ctx context.Context, keys []model.Key) (map[model.Key]model.Metadata, error)

	// Pending returns the outstanding local mutations for the given keys.
	Pending(ctx context.Context, keys []model.Key) (map[model.Key]model.PendingMutation, error)

	// SaveModel creates or updates a model body and returns the saved
	// envelope.
	SaveModel(ctx context.Context, env model.Envelope) (model.Envelope, error)

	// DeleteModel removes a model body by key.
	DeleteModel(ctx context.Context, key model.Key, expect *model.Metadata) error

	// SaveMetadata persists a sync metadata record and returns the saved
	// form.
	SaveMetadata(ctx context.Context, rec model.Record, expect *model.Metadata) (model.Record, error)

	// Transaction runs fn against a transaction-bound adapter. The net
	// effect of the calls made inside fn becomes visible to readers
	// atomically when fn returns nil.
	Transaction(ctx context.Context, fn func(tx Adapter) error) error

	// Ignorable classifies a storage error: ignorable errors are safe to
	// treat as a per-item drop, everything else is fatal for the item.
	Ignorable(err error) bool
}

// PendingWriter is an optional extension implemented by adapters that can
// record local outbound mutations. The engine itself only reads pending
// mutations; the CLI and tests use this to seed them.
type PendingWriter interface {
	SavePending(ctx context.Context, p model.PendingMutation) error
	DeletePending(ctx context.Context, key model.Key) error
}
