package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/katha-archive/katha/pkg/provider/llm"
	llmmock "github.com/katha-archive/katha/pkg/provider/llm/mock"
)

func TestLLMFailoverPrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{Response: "hello from primary"}
	standin := &llmmock.Provider{Response: "hello from standin"}

	f := NewLLMFailover(primary, "primary", FailoverConfig{})
	f.Add("standin", standin)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hello from primary" {
		t.Fatalf("content = %q, want primary response", resp.Content)
	}
	if standin.CallCount() != 0 {
		t.Fatalf("standin called %d times, want 0", standin.CallCount())
	}
}

func TestLLMFailoverFailsOver(t *testing.T) {
	primary := &llmmock.Provider{Err: errBackend}
	standin := &llmmock.Provider{Response: "hello from standin"}

	f := NewLLMFailover(primary, "primary", FailoverConfig{})
	f.Add("standin", standin)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hello from standin" {
		t.Fatalf("content = %q, want standin response", resp.Content)
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.CallCount())
	}
}

func TestLLMFailoverAllFail(t *testing.T) {
	f := NewLLMFailover(&llmmock.Provider{Err: errBackend}, "primary", FailoverConfig{})

	_, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrNoHealthyBackend) {
		t.Fatalf("err = %v, want ErrNoHealthyBackend", err)
	}
}

func TestLLMFailoverBreakerSkipsPrimary(t *testing.T) {
	primary := &llmmock.Provider{Err: errBackend}
	standin := &llmmock.Provider{Response: "ok"}

	f := NewLLMFailover(primary, "primary", FailoverConfig{
		Breaker: BreakerConfig{Trip: 2},
	})
	f.Add("standin", standin)

	// Trip the primary's breaker.
	for range 3 {
		if _, err := f.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}

	// While the breaker rests the primary is skipped entirely.
	before := primary.CallCount()
	if _, err := f.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if primary.CallCount() != before {
		t.Fatal("primary called while breaker open")
	}
}
