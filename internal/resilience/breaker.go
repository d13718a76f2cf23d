// Package resilience keeps upload processing alive when an LLM or embeddings
// backend misbehaves. A [Breaker] tracks consecutive failures per backend and
// stops calling one that keeps timing out; a [Failover] chain routes each call
// to the first backend whose breaker admits it.
//
// The tuning assumes batch transcript work, not interactive traffic: a single
// chunking call can take tens of seconds and costs real money, so a tripped
// backend rests for a full minute and one successful probe is enough to put it
// back in rotation.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the backend is resting.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// BreakerState is the breaker's operating mode.
type BreakerState int

const (
	// BreakerClosed admits every call.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects every call until the cooldown elapses.
	BreakerOpen

	// BreakerProbing admits a bounded number of trial calls to decide
	// whether the backend has recovered.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. The zero value gets defaults suited to
// slow, expensive provider calls.
type BreakerConfig struct {
	// Name labels the backend in log output.
	Name string

	// Trip is the number of consecutive failures that opens the breaker.
	// Default: 3.
	Trip int

	// Cooldown is how long an open breaker rests before probing the
	// backend again. Default: 1m.
	Cooldown time.Duration

	// Probes is how many consecutive trial calls must succeed before the
	// breaker closes, and also the cap on in-flight trials. Default: 1.
	Probes int
}

// Breaker is a consecutive-failure circuit breaker for one backend.
type Breaker struct {
	name     string
	trip     int
	cooldown time.Duration
	probes   int

	mu       sync.Mutex
	state    BreakerState
	fails    int
	openedAt time.Time
	inFlight int
	wins     int
}

// NewBreaker creates a [Breaker], filling zero config fields with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Trip <= 0 {
		cfg.Trip = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	return &Breaker{
		name:     cfg.Name,
		trip:     cfg.Trip,
		cooldown: cfg.Cooldown,
		probes:   cfg.Probes,
	}
}

// Do runs fn unless the breaker refuses it, and feeds the outcome back into
// the failure accounting. While open it returns [ErrBreakerOpen] without
// calling fn.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	callErr := fn()
	b.settle(probe, callErr)
	return callErr
}

// admit decides whether a call may proceed and whether it counts as a probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return false, nil
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return false, ErrBreakerOpen
		}
		b.state = BreakerProbing
		b.inFlight = 0
		b.wins = 0
		slog.Info("cooldown elapsed, probing backend", "backend", b.name)
	}

	if b.inFlight >= b.probes {
		return false, ErrBreakerOpen
	}
	b.inFlight++
	return true, nil
}

// settle records a call outcome.
func (b *Breaker) settle(probe bool, callErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if callErr == nil {
		if !probe {
			b.fails = 0
			return
		}
		b.wins++
		if b.wins >= b.probes {
			b.state = BreakerClosed
			b.fails = 0
			slog.Info("backend recovered, breaker closed", "backend", b.name)
		}
		return
	}

	b.openedAt = time.Now()
	if probe {
		b.state = BreakerOpen
		slog.Warn("probe failed, breaker reopened", "backend", b.name)
		return
	}
	b.fails++
	if b.state == BreakerClosed && b.fails >= b.trip {
		b.state = BreakerOpen
		slog.Warn("backend tripped breaker",
			"backend", b.name,
			"consecutive_failures", b.fails)
	}
}

// State reports the breaker's mode. An open breaker whose cooldown has
// elapsed reports [BreakerProbing]; the transition itself happens on the
// next [Breaker.Do].
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.cooldown {
		return BreakerProbing
	}
	return b.state
}

// Reset forces the breaker closed and clears the failure accounting.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.fails = 0
	b.inFlight = 0
	b.wins = 0
	slog.Info("breaker manually reset", "backend", b.name)
}
