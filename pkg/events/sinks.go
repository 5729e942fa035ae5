package events

import "sync"

// NopSink discards every event and finish signal. It is the engine default
// when no sink is configured.
type NopSink struct{}

// Send implements Sink.
func (NopSink) Send(Event) {}

// Finish implements Sink.
func (NopSink) Finish(error) {}

// CaptureSink records every event and finish signal it receives. It is
// safe for concurrent use and intended for tests and diagnostics.
type CaptureSink struct {
	mu       sync.Mutex
	events   []Event
	finished int
	err      error
}

// NewCaptureSink creates an empty capturing sink.
func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

// Send implements Sink.
func (s *CaptureSink) Send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Finish implements Sink.
func (s *CaptureSink) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished++
	s.err = err
}

// Events returns a copy of the captured events in arrival order.
func (s *CaptureSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// FinishCount returns how many finish signals arrived. A correct run
// produces exactly one.
func (s *CaptureSink) FinishCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Err returns the error delivered with the finish signal, if any.
func (s *CaptureSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ByReason counts captured dropped events per reason.
func (s *CaptureSink) ByReason() map[Reason]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Reason]int)
	for _, e := range s.events {
		if e.Kind == KindDropped {
			counts[e.Reason]++
		}
	}
	return counts
}

// AppliedCount counts captured applied events.
func (s *CaptureSink) AppliedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Kind == KindApplied {
			n++
		}
	}
	return n
}
