// Package resilience provides the circuit breaker that guards the watcher's
// calls to the transcription and LLM services.
//
// [Breaker] is a classic three-state breaker: closed while calls succeed,
// open after a run of consecutive failures, and half-open after a cooldown,
// when a single probe call decides whether to close again or re-open. A dead
// backend is rejected immediately with [ErrCircuitOpen] instead of being
// retried on every poll tick.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] when the breaker is open
// and the cooldown has not yet elapsed, or while a half-open probe is
// already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [Breaker].
type State int

const (
	// StateClosed is the normal operating state. All calls are forwarded.
	StateClosed State = iota

	// StateOpen indicates the breaker has tripped due to consecutive
	// failures. Calls are rejected immediately with [ErrCircuitOpen] until
	// the cooldown elapses.
	StateOpen

	// StateHalfOpen is the probe state entered after the cooldown. One call
	// is allowed through; if it succeeds the breaker closes, otherwise it
	// re-opens.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Defaults applied by [New] when config fields are zero.
const (
	DefaultFailures = 3
	DefaultCooldown = 30 * time.Second
)

// Config holds tuning knobs for a [Breaker].
type Config struct {
	// Name is a human-readable label used in log messages.
	Name string

	// Failures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 3.
	Failures int

	// Cooldown is how long the breaker stays open before allowing a
	// half-open probe. Default: 30s.
	Cooldown time.Duration
}

// Option configures a [Breaker] beyond its [Config].
type Option func(*Breaker)

// WithClock replaces the breaker's time source. Tests use this to drive
// cooldown expiry without sleeping.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// Breaker implements the three-state circuit breaker pattern.
type Breaker struct {
	name     string
	failures int
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	state    State
	fails    int       // consecutive failures while closed
	openedAt time.Time // when the breaker last opened
	probing  bool      // a half-open probe is in flight
}

// New creates a [Breaker] with the supplied configuration. Zero-value config
// fields are replaced with defaults.
func New(cfg Config, opts ...Option) *Breaker {
	if cfg.Failures <= 0 {
		cfg.Failures = DefaultFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	b := &Breaker{
		name:     cfg.Name,
		failures: cfg.Failures,
		cooldown: cfg.Cooldown,
		now:      time.Now,
		state:    StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs fn if the breaker allows it. When ctx is already cancelled
// the context error is returned without calling fn or touching the failure
// counters. In the open state it returns [ErrCircuitOpen] without calling
// fn; after the cooldown a single probe call is permitted.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = false
		slog.Info("circuit breaker half-open", "name", b.name)
	}
	if b.state == StateHalfOpen {
		if b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	return err
}

// onFailure handles failure accounting. Must be called with b.mu held.
func (b *Breaker) onFailure() {
	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = b.now()
		b.fails = b.failures
		b.probing = false
		slog.Warn("circuit breaker re-opened after failed probe", "name", b.name)
		return
	}

	b.fails++
	if b.state == StateClosed && b.fails >= b.failures {
		b.state = StateOpen
		b.openedAt = b.now()
		slog.Warn("circuit breaker opened",
			"name", b.name,
			"consecutive_failures", b.fails)
	}
}

// onSuccess handles success accounting. Must be called with b.mu held.
func (b *Breaker) onSuccess() {
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.fails = 0
		b.probing = false
		slog.Info("circuit breaker closed after successful probe", "name", b.name)
		return
	}
	b.fails = 0
}

// State returns the current [State] of the breaker. If the breaker is open
// and the cooldown has elapsed, the returned state is [StateHalfOpen]; the
// actual transition happens on the next [Breaker.Execute] call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset manually forces the breaker back to [StateClosed], clearing all
// failure counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.fails = 0
	b.probing = false
	slog.Info("circuit breaker manually reset", "name", b.name)
}
