package cache

import "context"

// State of a Stat slot.
type State int

const (
	StateEmpty State = iota
	StateComputed
	StateStale
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateComputed:
		return "computed"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Observer is told whether a Stat read was served from cache.
type Observer interface {
	StatHit(name string)
	StatMiss(name string)
}

// Stat memoizes one derived value for a single owner across processing
// cycles. A cycle is Begin, any number of Get calls, then End.
//
// Begin compares the incoming fingerprint with the one recorded by the
// previous End and marks the slot Stale on mismatch. Invalidate marks it
// Stale unconditionally. A Stale or Empty slot recomputes on the next Get;
// a failed computation leaves the slot untouched.
//
// A Stat is not safe for concurrent use. Its owner serializes access.
type Stat[T any] struct {
	name     string
	observer Observer

	state       State
	value       T
	computedFor string
	recorded    string
}

// NewStat returns an Empty slot. observer may be nil.
func NewStat[T any](name string, observer Observer) *Stat[T] {
	return &Stat[T]{name: name, observer: observer}
}

// Name returns the slot name.
func (s *Stat[T]) Name() string {
	return s.name
}

// State reports the current state.
func (s *Stat[T]) State() State {
	return s.state
}

// Begin starts a cycle for fingerprint.
func (s *Stat[T]) Begin(fingerprint string) {
	if s.state == StateComputed && fingerprint != s.recorded {
		s.state = StateStale
	}
}

// Get returns the cached value for fingerprint, computing it when the slot
// is not Computed for that fingerprint.
func (s *Stat[T]) Get(ctx context.Context, fingerprint string, compute func(context.Context) (T, error)) (T, error) {
	if s.state == StateComputed && s.computedFor == fingerprint {
		if s.observer != nil {
			s.observer.StatHit(s.name)
		}
		return s.value, nil
	}
	if s.observer != nil {
		s.observer.StatMiss(s.name)
	}

	v, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.value = v
	s.computedFor = fingerprint
	s.state = StateComputed
	return v, nil
}

// End records fingerprint as the one this cycle ran with.
func (s *Stat[T]) End(fingerprint string) {
	s.recorded = fingerprint
}

// Invalidate marks a computed slot Stale ("data changed").
func (s *Stat[T]) Invalidate() {
	if s.state == StateComputed {
		s.state = StateStale
	}
}
