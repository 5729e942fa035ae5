package reconcile

import (
	"github.com/rs/zerolog"

	"github.com/ebbworks/ebbsync/pkg/errors"
)

// State is a run lifecycle state.
type State int

// Run lifecycle states.
const (
	StateWaiting State = iota
	StateReconciling
	StateReconciled
	StateInError
	StateFinished
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateReconciling:
		return "reconciling"
	case StateReconciled:
		return "reconciled"
	case StateInError:
		return "in_error"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// ActionKind identifies a lifecycle action.
type ActionKind int

// Lifecycle actions.
const (
	ActionStarted ActionKind = iota
	ActionReconciled
	ActionErrored
)

// String returns the action name.
func (k ActionKind) String() string {
	switch k {
	case ActionStarted:
		return "started"
	case ActionReconciled:
		return "reconciled"
	case ActionErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Action is a posted lifecycle event. Err is set only for ActionErrored.
type Action struct {
	Kind ActionKind
	Err  error
}

// Transition is the pure lifecycle transition function. It is total:
// every (state, action) pair either yields the next state or an
// invariant error for combinations a correct pipeline never produces.
func Transition(s State, a Action) (State, error) {
	switch s {
	case StateWaiting:
		if a.Kind == ActionStarted {
			return StateReconciling, nil
		}
	case StateReconciling:
		switch a.Kind {
		case ActionReconciled:
			return StateReconciled, nil
		case ActionErrored:
			return StateInError, nil
		}
	}
	return s, errors.NewInvariantError(s.String(), a.Kind.String())
}

// Machine serializes lifecycle transitions. Actions posted from
// concurrently completing work are consumed by a single goroutine in
// emission order, so the first Errored after Reconciling wins and later
// actions are dropped once the run is finished.
type Machine struct {
	actions chan Action
	done    chan struct{}
	logger  zerolog.Logger

	// written only by the consumer goroutine, read after done closes
	final State
	err   error
}

// NewMachine creates a machine in StateWaiting and starts its consumer.
func NewMachine(logger zerolog.Logger) *Machine {
	m := &Machine{
		actions: make(chan Action, 8),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go m.consume()
	return m
}

func (m *Machine) consume() {
	state := StateWaiting
	for a := range m.actions {
		next, err := Transition(state, a)
		if err != nil {
			m.logger.Error().Err(err).
				Str("state", state.String()).
				Str("action", a.Kind.String()).
				Msg("invalid lifecycle transition")
			m.final = StateFinished
			m.err = err
			close(m.done)
			return
		}

		m.logger.Debug().
			Str("from", state.String()).
			Str("to", next.String()).
			Str("action", a.Kind.String()).
			Msg("run transition")
		state = next

		// Reconciled and InError advance straight to the terminal state.
		switch state {
		case StateReconciled:
			m.final = StateFinished
			close(m.done)
			return
		case StateInError:
			m.final = StateFinished
			m.err = a.Err
			close(m.done)
			return
		}
	}
}

// Post submits an action. Actions posted after the run finished are
// dropped.
func (m *Machine) Post(a Action) {
	select {
	case <-m.done:
	case m.actions <- a:
	}
}

// Wait blocks until the run reaches its terminal state and returns the
// run error, if any.
func (m *Machine) Wait() error {
	<-m.done
	return m.err
}

// Final reports the terminal state. Valid only after Wait returns.
func (m *Machine) Final() State {
	return m.final
}
