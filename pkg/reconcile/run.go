// Package reconcile implements the reconciliation pipeline: resolving
// remote mutations into dispositions, guarding pending local edits,
// applying bodies and metadata concurrently, and reporting one outcome
// event per input item through an accountable emitter under an explicit
// run lifecycle.
package reconcile

import (
	"context"

	"github.com/agentstation/utc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/events"
	"github.com/ebbworks/ebbsync/pkg/model"
	"github.com/ebbworks/ebbsync/pkg/schemas"
	"github.com/ebbworks/ebbsync/pkg/store"
)

// Runner executes reconciliation runs against a store adapter. The
// adapter handle is optional: a nil store is the adapter-unavailable
// error path, never a silent no-op.
type Runner struct {
	store    store.Adapter
	sink     events.Sink
	registry *schemas.Registry
	logger   zerolog.Logger
}

// NewRunner creates a runner. The sink falls back to a no-op sink when
// nil; a nil registry skips body validation and treats payloads as
// opaque.
func NewRunner(adapter store.Adapter, sink events.Sink, registry *schemas.Registry, logger zerolog.Logger) *Runner {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Runner{store: adapter, sink: sink, registry: registry, logger: logger}
}

// Run reconciles one batch of remote mutations into the local store and
// blocks until the run reaches its terminal state. The returned error is
// non-nil only for run-fatal conditions; cancellation is not an error to
// the caller.
func (r *Runner) Run(ctx context.Context, batch []model.RemoteModel) (*Result, error) {
	result := &Result{
		RunID:     uuid.New(),
		StartedAt: utc.Now(),
		Total:     len(batch),
	}

	log := r.logger.With().Str("run_id", result.RunID.String()).Logger()
	log.Info().Int("batch_size", len(batch)).Msg("reconciliation run started")

	machine := NewMachine(log)
	em := NewEmitter(r.sink, model.Keys(batch))
	machine.Post(Action{Kind: ActionStarted})

	switch {
	case ctx.Err() != nil:
		// Canceled before any stage ran: zero storage calls, zero
		// outcome events, just the completion signal.
		result.Canceled = true
		em.Finish(nil)
		machine.Post(Action{Kind: ActionReconciled})

	case r.store == nil:
		err := errors.ErrAdapterUnavailable
		log.Error().Err(err).Msg("no storage adapter for run")
		em.DrainUnresolved(events.ReasonAdapterUnavailable, err)
		em.Finish(err)
		machine.Post(Action{Kind: ActionErrored, Err: err})

	default:
		err := r.store.Transaction(ctx, func(tx store.Adapter) error {
			return r.reconcile(ctx, tx, batch, em, result, log)
		})
		switch {
		case result.Canceled || errors.IsCanceled(err):
			result.Canceled = true
			em.Finish(nil)
			machine.Post(Action{Kind: ActionReconciled})
		case err != nil:
			log.Error().Err(err).Msg("reconciliation run failed")
			em.DrainUnresolved(events.ReasonAdapterUnavailable, err)
			em.Finish(err)
			machine.Post(Action{Kind: ActionErrored, Err: err})
		default:
			em.Finish(nil)
			machine.Post(Action{Kind: ActionReconciled})
		}
	}

	result.Err = machine.Wait()
	result.State = machine.Final()
	result.Applied = em.AppliedCount()
	result.Dropped = em.DroppedCounts()
	result.FinishedAt = utc.Now()

	log.Info().
		Int("applied", result.Applied).
		Int("dropped", result.DroppedTotal()).
		Bool("canceled", result.Canceled).
		Dur("duration", result.Duration()).
		Msg("reconciliation run finished")

	return result, result.Err
}

// reconcile drives the pipeline stages inside the transaction boundary.
// Cancellation is checked at each stage entry and short-circuits to
// success; errors returned from here are run-fatal.
func (r *Runner) reconcile(ctx context.Context, tx store.Adapter, batch []model.RemoteModel,
	em *Emitter, result *Result, log zerolog.Logger) error {

	if ctx.Err() != nil {
		result.Canceled = true
		return nil
	}

	local, err := tx.Metadata(ctx, model.Keys(batch))
	if err != nil {
		return err
	}

	res := Resolve(batch, local)
	for _, key := range res.Stale {
		em.Dropped(key, events.ReasonStale, nil)
	}
	log.Debug().
		Int("dispositions", len(res.Dispositions)).
		Int("stale", len(res.Stale)).
		Msg("batch resolved")

	if ctx.Err() != nil {
		result.Canceled = true
		return nil
	}

	keys := make([]model.Key, len(res.Dispositions))
	for i, d := range res.Dispositions {
		keys[i] = d.Key()
	}
	pending, err := tx.Pending(ctx, keys)
	if err != nil {
		return err
	}

	part := Guard(res.Dispositions, pending)
	log.Debug().
		Int("to_apply", len(part.ToApply)).
		Int("metadata_only", len(part.MetadataOnly)).
		Msg("pending-mutation guard applied")

	ap := &applier{store: tx, registry: r.registry, emitter: em, logger: log}

	if ctx.Err() != nil {
		result.Canceled = true
		return nil
	}
	ap.mergeMetadataOnly(ctx, part.MetadataOnly)

	if ctx.Err() != nil {
		result.Canceled = true
		return nil
	}
	ap.applyAll(ctx, part.ToApply)

	// Cancellation can also arrive mid-apply: workers return without
	// settling their items, so the run must still report canceled.
	if ctx.Err() != nil {
		result.Canceled = true
	}

	return nil
}
