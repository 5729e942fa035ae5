package reconcile_test

import (
	"context"
	"testing"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/events"
	"github.com/ebbworks/ebbsync/pkg/logging"
	"github.com/ebbworks/ebbsync/pkg/model"
	"github.com/ebbworks/ebbsync/pkg/reconcile"
	"github.com/ebbworks/ebbsync/pkg/store"
	"github.com/ebbworks/ebbsync/pkg/store/memory"
)

func newTestRunner(adapter store.Adapter) (*reconcile.Runner, *events.CaptureSink) {
	sink := events.NewCaptureSink()
	return reconcile.NewRunner(adapter, sink, nil, *logging.NewNopLogger()), sink
}

func TestRunCreatesNewModel(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	runner, sink := newTestRunner(s)

	result, err := runner.Run(ctx, []model.RemoteModel{remote("a", 2, false)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, reconcile.StateFinished, result.State)

	_, ok := s.Body(noteKey("a"))
	assert.True(t, ok, "body must be persisted")
	md, ok := s.Meta(noteKey("a"))
	require.True(t, ok, "metadata must be persisted")
	assert.Equal(t, int64(2), md.Version)

	require.Len(t, sink.Events(), 1)
	assert.Equal(t, events.KindApplied, sink.Events()[0].Kind)
	assert.Equal(t, 1, sink.FinishCount())
}

func TestRunDropsStaleWithoutStorageWrite(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, err := s.SaveMetadata(ctx, model.Record{
		Key:      noteKey("b"),
		Metadata: model.Metadata{Version: 3, LastChangedAt: utc.Now()},
	}, nil)
	require.NoError(t, err)

	runner, sink := newTestRunner(s)
	result, err := runner.Run(ctx, []model.RemoteModel{remote("b", 3, false)})
	require.NoError(t, err)

	assert.Zero(t, result.Applied)
	assert.Equal(t, 1, result.Dropped[events.ReasonStale])
	require.Len(t, sink.Events(), 1)
	assert.Equal(t, events.ReasonStale, sink.Events()[0].Reason)

	_, ok := s.Body(noteKey("b"))
	assert.False(t, ok, "stale items must not touch the body")
	md, _ := s.Meta(noteKey("b"))
	assert.Equal(t, int64(3), md.Version, "stale items must not rewrite metadata")
}

func TestRunGuardsPendingMutation(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.SavePending(ctx, model.PendingMutation{
		Key:      noteKey("c"),
		Kind:     model.MutationUpdate,
		QueuedAt: utc.Now(),
	}))

	runner, sink := newTestRunner(s)
	result, err := runner.Run(ctx, []model.RemoteModel{remote("c", 5, false)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Dropped[events.ReasonConflict])

	_, ok := s.Body(noteKey("c"))
	assert.False(t, ok, "pending mutation must block the body apply")
	md, ok := s.Meta(noteKey("c"))
	require.True(t, ok, "metadata must still be merged")
	assert.Equal(t, int64(5), md.Version)

	require.Len(t, sink.Events(), 1)
	assert.Equal(t, events.ReasonConflict, sink.Events()[0].Reason)
}

func TestRunIgnorableDeleteStillReconciles(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	runner, sink := newTestRunner(s)

	// d does not exist locally; the delete fails as not-found, which the
	// memory adapter classifies as ignorable.
	result, err := runner.Run(ctx, []model.RemoteModel{remote("d", 4, true)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Dropped[events.ReasonIgnorableStoreError])
	assert.Equal(t, reconcile.StateFinished, result.State)
	assert.True(t, result.IsSuccess())

	md, ok := s.Meta(noteKey("d"))
	require.True(t, ok, "metadata is written after an ignorable drop")
	assert.True(t, md.Deleted)

	require.Len(t, sink.Events(), 1)
	assert.Equal(t, events.ReasonIgnorableStoreError, sink.Events()[0].Reason)
}

func TestRunWithoutAdapterDropsWholeBatch(t *testing.T) {
	runner, sink := newTestRunner(nil)

	batch := []model.RemoteModel{
		remote("a", 1, false),
		remote("b", 2, false),
		remote("c", 3, true),
	}
	result, err := runner.Run(context.Background(), batch)

	assert.True(t, errors.IsAdapterUnavailable(err))
	assert.Equal(t, len(batch), result.Dropped[events.ReasonAdapterUnavailable])
	assert.Equal(t, reconcile.StateFinished, result.State)
	assert.False(t, result.IsSuccess())

	assert.Len(t, sink.Events(), len(batch))
	assert.Equal(t, 1, sink.FinishCount())
	assert.ErrorIs(t, sink.Err(), errors.ErrAdapterUnavailable)
}

func TestRunAccountability(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, err := s.SaveMetadata(ctx, model.Record{
		Key:      noteKey("stale"),
		Metadata: model.Metadata{Version: 9, LastChangedAt: utc.Now()},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, s.SavePending(ctx, model.PendingMutation{
		Key: noteKey("busy"), Kind: model.MutationCreate, QueuedAt: utc.Now(),
	}))

	batch := []model.RemoteModel{
		remote("new", 1, false),
		remote("stale", 2, false),
		remote("busy", 3, false),
		remote("gone", 4, true),
	}

	runner, sink := newTestRunner(s)
	result, err := runner.Run(ctx, batch)
	require.NoError(t, err)

	assert.Len(t, sink.Events(), len(batch), "every input item settles exactly one event")
	assert.Equal(t, len(batch), result.Applied+result.DroppedTotal())
}

func TestRunIdempotence(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	batch := []model.RemoteModel{
		remote("a", 2, false),
		remote("b", 5, false),
	}

	runner, _ := newTestRunner(s)
	first, err := runner.Run(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 2, first.Applied)

	runner2, sink2 := newTestRunner(s)
	second, err := runner2.Run(ctx, batch)
	require.NoError(t, err)

	assert.Zero(t, second.Applied)
	assert.Equal(t, len(batch), second.Dropped[events.ReasonStale])
	for _, e := range sink2.Events() {
		assert.Equal(t, events.ReasonStale, e.Reason)
	}
}

func TestRunCancellationBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := memory.New()
	runner, sink := newTestRunner(s)

	result, err := runner.Run(ctx, []model.RemoteModel{remote("a", 1, false)})
	require.NoError(t, err, "cancellation is not an error to the caller")

	assert.True(t, result.Canceled)
	assert.Equal(t, reconcile.StateFinished, result.State)
	assert.Empty(t, sink.Events(), "no outcome events on pre-start cancellation")
	assert.Equal(t, 1, sink.FinishCount(), "completion signal still fires")
	assert.Equal(t, 0, s.Len(), "no storage calls may happen")
}

// cancelingStore cancels the run context from inside the body write,
// simulating shutdown arriving while the apply stage is in flight.
type cancelingStore struct {
	*memory.Store
	cancel context.CancelFunc
}

func (c *cancelingStore) SaveModel(ctx context.Context, env model.Envelope) (model.Envelope, error) {
	c.cancel()
	return model.Envelope{}, ctx.Err()
}

func (c *cancelingStore) Transaction(ctx context.Context, fn func(tx store.Adapter) error) error {
	return fn(c)
}

func TestRunCancellationDuringApply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &cancelingStore{Store: memory.New(), cancel: cancel}
	runner, sink := newTestRunner(s)

	result, err := runner.Run(ctx, []model.RemoteModel{remote("a", 1, false)})
	require.NoError(t, err, "cancellation is not an error to the caller")

	assert.True(t, result.Canceled, "cancellation arriving mid-apply must be reported")
	assert.Equal(t, reconcile.StateFinished, result.State)
	assert.Zero(t, result.Applied)
	assert.Empty(t, sink.Events(), "canceled workers settle no outcome events")
	assert.Equal(t, 1, sink.FinishCount())
}

// metadataFailingStore simulates a store whose batch metadata query
// cannot be served at all.
type metadataFailingStore struct {
	*memory.Store
}

func (f *metadataFailingStore) Metadata(ctx context.Context, keys []model.Key) (map[model.Key]model.Metadata, error) {
	return nil, errors.New("connection lost")
}

func (f *metadataFailingStore) Transaction(ctx context.Context, fn func(tx store.Adapter) error) error {
	return fn(f)
}

func TestRunMetadataQueryFailureIsRunFatal(t *testing.T) {
	s := &metadataFailingStore{Store: memory.New()}
	runner, sink := newTestRunner(s)

	batch := []model.RemoteModel{remote("a", 1, false), remote("b", 2, false)}
	result, err := runner.Run(context.Background(), batch)

	require.Error(t, err)
	assert.False(t, result.IsSuccess())
	assert.Equal(t, len(batch), result.Dropped[events.ReasonAdapterUnavailable])
	assert.Len(t, sink.Events(), len(batch))
}

// metadataWriteStumblingStore accepts body writes but fails every
// per-item metadata write with the given error.
type metadataWriteStumblingStore struct {
	*memory.Store
	err error
}

func (f *metadataWriteStumblingStore) SaveMetadata(ctx context.Context, rec model.Record, expect *model.Metadata) (model.Record, error) {
	return model.Record{}, f.err
}

func (f *metadataWriteStumblingStore) Transaction(ctx context.Context, fn func(tx store.Adapter) error) error {
	return fn(f)
}

func TestRunMetadataWriteFailureKeepsBody(t *testing.T) {
	ctx := context.Background()

	t.Run("fatal classification", func(t *testing.T) {
		s := &metadataWriteStumblingStore{
			Store: memory.New(),
			err:   errors.NewStoreError("metadata", "note", "a", false, errors.New("disk full")),
		}
		runner, sink := newTestRunner(s)

		result, err := runner.Run(ctx, []model.RemoteModel{remote("a", 2, false)})
		require.NoError(t, err, "an item-scoped metadata failure is not run-fatal")

		assert.Zero(t, result.Applied)
		assert.Equal(t, 1, result.Dropped[events.ReasonFatalError])

		_, ok := s.Body(noteKey("a"))
		assert.True(t, ok, "the applied body is retained")
		_, ok = s.Meta(noteKey("a"))
		assert.False(t, ok, "no metadata record was persisted")

		require.Len(t, sink.Events(), 1)
		assert.Equal(t, events.ReasonFatalError, sink.Events()[0].Reason)
	})

	t.Run("ignorable classification", func(t *testing.T) {
		s := &metadataWriteStumblingStore{
			Store: memory.New(),
			err:   errors.NewNotFoundError("metadata record", "note/a"),
		}
		runner, sink := newTestRunner(s)

		result, err := runner.Run(ctx, []model.RemoteModel{remote("a", 2, false)})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Dropped[events.ReasonIgnorableStoreError])
		require.Len(t, sink.Events(), 1)
		assert.Equal(t, events.ReasonIgnorableStoreError, sink.Events()[0].Reason)
	})
}

// bodyFailingStore rejects the body write for one key while serving the
// rest of the batch normally.
type bodyFailingStore struct {
	*memory.Store
	fail model.Key
}

func (f *bodyFailingStore) SaveModel(ctx context.Context, env model.Envelope) (model.Envelope, error) {
	if env.Key() == f.fail {
		return model.Envelope{}, errors.NewStoreError("save", env.Schema, env.ID, false, errors.New("corrupt page"))
	}
	return f.Store.SaveModel(ctx, env)
}

func (f *bodyFailingStore) Transaction(ctx context.Context, fn func(tx store.Adapter) error) error {
	return fn(f)
}

func TestRunFatalBodyFailureIsolatedToItem(t *testing.T) {
	ctx := context.Background()
	s := &bodyFailingStore{Store: memory.New(), fail: noteKey("bad")}
	runner, sink := newTestRunner(s)

	batch := []model.RemoteModel{
		remote("bad", 1, false),
		remote("good", 2, false),
	}
	result, err := runner.Run(ctx, batch)
	require.NoError(t, err, "an item-scoped body failure is not run-fatal")

	assert.Equal(t, 1, result.Applied, "siblings proceed past a fatal item")
	assert.Equal(t, 1, result.Dropped[events.ReasonFatalError])

	_, ok := s.Body(noteKey("good"))
	assert.True(t, ok)
	md, ok := s.Meta(noteKey("good"))
	require.True(t, ok)
	assert.Equal(t, int64(2), md.Version)

	_, ok = s.Meta(noteKey("bad"))
	assert.False(t, ok, "a fatal body failure leaves metadata untouched")

	assert.Len(t, sink.Events(), len(batch))
}

func TestRunEmptyBatch(t *testing.T) {
	runner, sink := newTestRunner(memory.New())

	result, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Zero(t, result.Total)
	assert.Zero(t, result.Applied)
	assert.Empty(t, sink.Events())
	assert.Equal(t, 1, sink.FinishCount())
}
