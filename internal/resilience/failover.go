package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoHealthyBackend is returned when every backend in a [Failover] chain
// failed or was refused by its breaker.
var ErrNoHealthyBackend = errors.New("resilience: no healthy backend")

// FailoverConfig configures the breaker created for each backend in a chain.
type FailoverConfig struct {
	Breaker BreakerConfig
}

type backend[T any] struct {
	name    string
	impl    T
	breaker *Breaker
}

// Failover chains a primary backend with optional stand-ins of the same
// type. Each backend has its own [Breaker]; calls go to the first one whose
// breaker admits them. Safe for concurrent use once assembled.
type Failover[T any] struct {
	backends []backend[T]
	cfg      FailoverConfig
}

// NewFailover creates a chain with primary as the preferred backend. Add
// stand-ins with [Failover.Add] before handing the chain out.
func NewFailover[T any](primary T, name string, cfg FailoverConfig) *Failover[T] {
	f := &Failover[T]{cfg: cfg}
	f.Add(name, primary)
	return f
}

// Add appends a backend. Backends are tried in insertion order.
func (f *Failover[T]) Add(name string, impl T) {
	bc := f.cfg.Breaker
	bc.Name = name
	f.backends = append(f.backends, backend[T]{
		name:    name,
		impl:    impl,
		breaker: NewBreaker(bc),
	})
}

// TryResult calls fn against each backend in order until one succeeds.
// Backends with an open breaker are skipped. When none succeed it returns
// [ErrNoHealthyBackend] wrapped around the last error.
//
// A package-level function because Go methods cannot carry their own type
// parameters.
func TryResult[T, R any](f *Failover[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range f.backends {
		be := &f.backends[i]
		var result R
		err := be.breaker.Do(func() error {
			var callErr error
			result, callErr = fn(be.impl)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("backend resting, trying next", "backend", be.name)
		} else {
			slog.Warn("backend failed, trying next",
				"backend", be.name, "error", err)
		}
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrNoHealthyBackend, lastErr)
}
