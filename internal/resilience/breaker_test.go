package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend unavailable")

func TestNewBreakerDefaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "openai"})
	if b.trip != 3 {
		t.Errorf("trip = %d, want 3", b.trip)
	}
	if b.cooldown != time.Minute {
		t.Errorf("cooldown = %v, want 1m", b.cooldown)
	}
	if b.probes != 1 {
		t.Errorf("probes = %d, want 1", b.probes)
	}
	if b.State() != BreakerClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
}

func TestBreakerClosedAdmitsCalls(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "openai"})
	called := false
	if err := b.Do(func() error { called = true; return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "openai", Trip: 3, Cooldown: time.Hour})

	for range 3 {
		_ = b.Do(func() error { return errBackend })
	}
	if b.State() != BreakerOpen {
		t.Fatalf("state = %v, want open after 3 failures", b.State())
	}

	err := b.Do(func() error {
		t.Fatal("fn called while breaker open")
		return nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen", err)
	}
}

func TestBreakerSuccessClearsFailureStreak(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "openai", Trip: 3})

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return nil })

	// The streak restarted, so two more failures must not trip it.
	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	if b.State() != BreakerClosed {
		t.Fatalf("state = %v, want closed after streak reset", b.State())
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "openai", Trip: 2, Cooldown: 10 * time.Millisecond})

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	if b.State() != BreakerOpen {
		t.Fatal("expected open")
	}

	time.Sleep(15 * time.Millisecond)
	if b.State() != BreakerProbing {
		t.Fatalf("state = %v, want probing after cooldown", b.State())
	}
}

func TestBreakerClosesAfterSuccessfulProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "openai", Trip: 2, Cooldown: 10 * time.Millisecond})

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	time.Sleep(15 * time.Millisecond)

	// One successful probe is enough with the default probe count.
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Fatalf("state = %v, want closed after probe", b.State())
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "openai", Trip: 2, Cooldown: 10 * time.Millisecond})

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	time.Sleep(15 * time.Millisecond)

	if err := b.Do(func() error { return errBackend }); err == nil {
		t.Fatal("expected probe error")
	}

	// The cooldown restarted, so the very next call is refused.
	err := b.Do(func() error { return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen right after failed probe", err)
	}
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "openai", Trip: 2, Cooldown: time.Hour})

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	if b.State() != BreakerOpen {
		t.Fatal("expected open")
	}

	b.Reset()
	if b.State() != BreakerClosed {
		t.Fatalf("state = %v, want closed after reset", b.State())
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do after reset: %v", err)
	}
}

func TestBreakerStateString(t *testing.T) {
	tests := []struct {
		state BreakerState
		want  string
	}{
		{BreakerClosed, "closed"},
		{BreakerOpen, "open"},
		{BreakerProbing, "probing"},
		{BreakerState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("BreakerState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
