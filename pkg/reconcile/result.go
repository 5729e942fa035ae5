package reconcile

import (
	"fmt"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/ebbworks/ebbsync/pkg/events"
)

// Result summarizes one reconciliation run.
type Result struct {
	RunID      uuid.UUID
	StartedAt  utc.Time
	FinishedAt utc.Time

	// Total is the input batch size.
	Total int

	// Applied counts items whose body and metadata were both persisted.
	Applied int

	// Dropped tallies items that did not get a full apply, by reason.
	Dropped map[events.Reason]int

	// Canceled reports that the run was cut short cooperatively.
	Canceled bool

	// State is the terminal lifecycle state.
	State State

	// Err is the run-fatal error, if the run ended in error.
	Err error
}

// DroppedTotal returns the number of dropped items across all reasons.
func (r *Result) DroppedTotal() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// IsSuccess reports whether the run completed without a run-fatal error.
func (r *Result) IsSuccess() bool {
	return r.Err == nil
}

// Duration returns the wall time the run took.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns a one-line human-readable account of the run.
func (r *Result) Summary() string {
	if r.Err != nil {
		return fmt.Sprintf("run %s failed after %s: %v (applied %d, dropped %d of %d)",
			r.RunID, r.Duration().Round(time.Millisecond), r.Err, r.Applied, r.DroppedTotal(), r.Total)
	}
	if r.Canceled {
		return fmt.Sprintf("run %s canceled after %s (applied %d, dropped %d of %d)",
			r.RunID, r.Duration().Round(time.Millisecond), r.Applied, r.DroppedTotal(), r.Total)
	}
	return fmt.Sprintf("run %s reconciled %d items in %s (applied %d, dropped %d)",
		r.RunID, r.Total, r.Duration().Round(time.Millisecond), r.Applied, r.DroppedTotal())
}
