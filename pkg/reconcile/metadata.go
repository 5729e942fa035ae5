package reconcile

import (
	"context"
	"sync"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/events"
	"github.com/ebbworks/ebbsync/pkg/model"
)

// writeMetadata persists the remote sync metadata for one disposition.
func (a *applier) writeMetadata(ctx context.Context, d Disposition) error {
	rec := model.Record{Key: d.Key(), Metadata: d.Remote.Metadata}
	_, err := a.store.SaveMetadata(ctx, rec, nil)
	return err
}

// mergeMetadataOnly fans out metadata writes for conflicted dispositions
// and waits. The body stays untouched; each item settles as a conflict
// drop when the write succeeds, or with the store's classification when
// it fails. "Dropped" here means "body not applied", not "operation
// failed".
func (a *applier) mergeMetadataOnly(ctx context.Context, dispositions []Disposition) {
	var wg sync.WaitGroup
	for _, d := range dispositions {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()

			key := d.Key()
			if err := a.writeMetadata(ctx, d); err != nil {
				if errors.IsCanceled(err) {
					return
				}
				reason := events.ReasonFatalError
				if a.store.Ignorable(err) {
					reason = events.ReasonIgnorableStoreError
				}
				a.logger.Error().Err(err).
					Str("schema", key.Schema).
					Str("model", key.ID).
					Msg("metadata-only merge failed")
				a.emitter.Dropped(key, reason, err)
				return
			}

			a.logger.Debug().
				Str("schema", key.Schema).
				Str("model", key.ID).
				Int64("version", d.Remote.Metadata.Version).
				Msg("metadata merged around pending local mutation")
			a.emitter.Dropped(key, events.ReasonConflict, nil)
		}()
	}
	wg.Wait()
}
