package reconcile_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/events"
	"github.com/ebbworks/ebbsync/pkg/model"
	"github.com/ebbworks/ebbsync/pkg/reconcile"
)

func TestEmitterAccountability(t *testing.T) {
	sink := events.NewCaptureSink()
	keys := []model.Key{noteKey("a"), noteKey("b"), noteKey("c")}
	em := reconcile.NewEmitter(sink, keys)

	em.Applied(model.AppliedModel{Envelope: model.Envelope{Schema: "note", ID: "a"}})
	em.Dropped(noteKey("b"), events.ReasonStale, nil)
	em.Dropped(noteKey("c"), events.ReasonConflict, nil)

	assert.Zero(t, em.Outstanding())
	assert.Len(t, sink.Events(), len(keys))
	assert.Equal(t, 1, em.AppliedCount())
}

func TestEmitterIgnoresDoubleSettle(t *testing.T) {
	sink := events.NewCaptureSink()
	em := reconcile.NewEmitter(sink, []model.Key{noteKey("a")})

	em.Dropped(noteKey("a"), events.ReasonStale, nil)
	em.Dropped(noteKey("a"), events.ReasonFatalError, errors.New("again"))
	em.Applied(model.AppliedModel{Envelope: model.Envelope{Schema: "note", ID: "a"}})

	assert.Len(t, sink.Events(), 1)
	assert.Equal(t, events.ReasonStale, sink.Events()[0].Reason)
}

func TestEmitterDuplicateKeysOwedSeparately(t *testing.T) {
	sink := events.NewCaptureSink()
	em := reconcile.NewEmitter(sink, []model.Key{noteKey("a"), noteKey("a")})

	em.Dropped(noteKey("a"), events.ReasonStale, nil)
	assert.Equal(t, 1, em.Outstanding())

	em.Dropped(noteKey("a"), events.ReasonStale, nil)
	assert.Zero(t, em.Outstanding())
	assert.Len(t, sink.Events(), 2)
}

func TestEmitterDrainUnresolved(t *testing.T) {
	sink := events.NewCaptureSink()
	em := reconcile.NewEmitter(sink, []model.Key{noteKey("a"), noteKey("b"), noteKey("c")})

	em.Dropped(noteKey("a"), events.ReasonStale, nil)
	em.DrainUnresolved(events.ReasonAdapterUnavailable, errors.ErrAdapterUnavailable)

	assert.Zero(t, em.Outstanding())
	require.Len(t, sink.Events(), 3)
	assert.Equal(t, 2, em.DroppedCounts()[events.ReasonAdapterUnavailable])
}

func TestEmitterFinishOnce(t *testing.T) {
	sink := events.NewCaptureSink()
	em := reconcile.NewEmitter(sink, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			em.Finish(nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sink.FinishCount())
}
