package reconcile

import (
	"sync"

	"github.com/ebbworks/ebbsync/pkg/events"
	"github.com/ebbworks/ebbsync/pkg/model"
)

// Emitter forwards the terminal outcome of every batch item to the event
// sink. It keeps an accountability ledger of the keys still owed an
// event: each input item gets exactly one outcome, concurrent emissions
// serialize onto the sink in arrival order, and Finish fires at most
// once per run.
type Emitter struct {
	mu          sync.Mutex
	sink        events.Sink
	outstanding map[model.Key]int
	counts      map[events.Reason]int
	applied     int
	finishOnce  sync.Once
}

// NewEmitter creates an emitter owing one event per key in the batch.
func NewEmitter(sink events.Sink, keys []model.Key) *Emitter {
	outstanding := make(map[model.Key]int, len(keys))
	for _, k := range keys {
		outstanding[k]++
	}
	return &Emitter{
		sink:        sink,
		outstanding: outstanding,
		counts:      make(map[events.Reason]int),
	}
}

// Applied emits an applied outcome for the model.
func (e *Emitter) Applied(applied model.AppliedModel) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.settle(applied.Key()) {
		return
	}
	e.applied++
	e.sink.Send(events.NewApplied(applied))
}

// Dropped emits a dropped outcome for the key.
func (e *Emitter) Dropped(key model.Key, reason events.Reason, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drop(key, reason, err)
}

// DrainUnresolved emits a dropped outcome for every key still owed an
// event, in no particular order. Used when a run-fatal condition stops
// the pipeline before the remaining items could settle.
func (e *Emitter) DrainUnresolved(reason events.Reason, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, n := range e.outstanding {
		for i := 0; i < n; i++ {
			e.counts[reason]++
			e.sink.Send(events.NewDropped(key, reason, err))
		}
		delete(e.outstanding, key)
	}
}

// Finish signals run completion to the sink. Repeated calls are no-ops.
func (e *Emitter) Finish(err error) {
	e.finishOnce.Do(func() {
		e.sink.Finish(err)
	})
}

// Outstanding returns the number of items still owed an event.
func (e *Emitter) Outstanding() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, c := range e.outstanding {
		n += c
	}
	return n
}

// AppliedCount returns the number of applied outcomes emitted.
func (e *Emitter) AppliedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applied
}

// DroppedCounts returns a copy of the per-reason drop tallies.
func (e *Emitter) DroppedCounts() map[events.Reason]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[events.Reason]int, len(e.counts))
	for r, n := range e.counts {
		out[r] = n
	}
	return out
}

func (e *Emitter) drop(key model.Key, reason events.Reason, err error) {
	if !e.settle(key) {
		return
	}
	e.counts[reason]++
	e.sink.Send(events.NewDropped(key, reason, err))
}

// settle consumes one owed event for key; a key with nothing owed emits
// nothing, keeping the ledger balanced even if a stage double-reports.
func (e *Emitter) settle(key model.Key) bool {
	n, ok := e.outstanding[key]
	if !ok || n == 0 {
		return false
	}
	if n == 1 {
		delete(e.outstanding, key)
	} else {
		e.outstanding[key] = n - 1
	}
	return true
}
