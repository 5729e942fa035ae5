package reconcile

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/events"
	"github.com/ebbworks/ebbsync/pkg/model"
	"github.com/ebbworks/ebbsync/pkg/schemas"
	"github.com/ebbworks/ebbsync/pkg/store"
)

// applier executes the body and metadata writes for one run. All of its
// calls go through the transaction-bound adapter, and every item it
// touches settles with exactly one emitter outcome.
type applier struct {
	store    store.Adapter
	registry *schemas.Registry
	emitter  *Emitter
	logger   zerolog.Logger
}

// applyAll fans out one worker per disposition and waits for all of them
// to settle. Items are independent: one item's failure never cancels a
// sibling.
func (a *applier) applyAll(ctx context.Context, dispositions []Disposition) {
	var wg sync.WaitGroup
	for _, d := range dispositions {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.applyOne(ctx, d)
		}()
	}
	wg.Wait()
}

// applyOne performs the body write for a disposition, then its metadata
// write. The metadata write happens after the body apply resolves as a
// success or an ignorable drop; a fatal body failure leaves the local
// metadata untouched so a later batch retries the item.
func (a *applier) applyOne(ctx context.Context, d Disposition) {
	key := d.Key()
	log := a.logger.With().
		Str("schema", key.Schema).
		Str("model", key.ID).
		Str("op", d.Op.String()).
		Logger()

	saved, err := a.applyBody(ctx, d)
	if err != nil {
		if errors.IsCanceled(err) {
			return
		}
		if !a.store.Ignorable(err) {
			log.Error().Err(err).Msg("body apply failed")
			a.emitter.Dropped(key, events.ReasonFatalError, err)
			return
		}
		log.Debug().Err(err).Msg("body apply dropped as ignorable")
	}

	ignorableDrop := err != nil

	if werr := a.writeMetadata(ctx, d); werr != nil {
		if errors.IsCanceled(werr) {
			return
		}
		reason := events.ReasonFatalError
		if a.store.Ignorable(werr) {
			reason = events.ReasonIgnorableStoreError
		}
		// The body write is retained; a future batch with an equal or
		// newer version re-establishes consistent metadata.
		log.Error().Err(werr).Msg("metadata write failed after body apply")
		a.emitter.Dropped(key, reason, werr)
		return
	}

	if ignorableDrop {
		a.emitter.Dropped(key, events.ReasonIgnorableStoreError, err)
		return
	}

	log.Debug().Int64("version", d.Remote.Metadata.Version).Msg("model applied")
	a.emitter.Applied(model.AppliedModel{Envelope: saved, Metadata: d.Remote.Metadata})
}

// applyBody issues the store call for the disposition's operation and
// returns the persisted envelope for creates and updates.
func (a *applier) applyBody(ctx context.Context, d Disposition) (model.Envelope, error) {
	switch d.Op {
	case OpDelete:
		return d.Remote.Envelope, a.store.DeleteModel(ctx, d.Key(), nil)
	default:
		if a.registry != nil {
			if _, err := a.registry.Decode(d.Remote.Envelope); err != nil {
				return model.Envelope{}, err
			}
		}
		return a.store.SaveModel(ctx, d.Remote.Envelope)
	}
}
