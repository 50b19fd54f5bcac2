package backoff

import (
	"math"
	"time"
)

// Default values for the reconnect policy.
const (
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMaxAttempts  = 5
)

// Policy holds the configured bounds of the retry schedule.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		MaxAttempts:  DefaultMaxAttempts,
	}
}

// State is the retry bookkeeping carried by a connection.
type State struct {
	Policy

	Attempt      int
	CurrentDelay time.Duration
}

// NewState returns a state positioned at attempt zero.
func NewState(p Policy) State {
	s := State{Policy: p}
	Reset(&s)
	return s
}

// NextDelay returns min(InitialDelay * 2^Attempt, MaxDelay).
func NextDelay(s State) time.Duration {
	return DelayFor(s.Policy, s.Attempt)
}

// DelayFor returns the delay for a given attempt number.
func DelayFor(p Policy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if p.InitialDelay <= 0 {
		return 0
	}

	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			break
		}
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}

	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Reset moves the state back to attempt zero.
func Reset(s *State) {
	s.Attempt = 0
	s.CurrentDelay = s.InitialDelay
}

// Exhausted reports whether no automatic retry is left.
func Exhausted(s State) bool {
	return s.Attempt >= s.MaxAttempts
}
