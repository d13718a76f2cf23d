package resilience

import (
	"context"

	"github.com/katha-archive/katha/pkg/provider/llm"
)

// LLMFailover implements [llm.Provider] over a [Failover] chain so that
// chunking and enrichment keep working when the preferred model backend is
// down or tripped.
type LLMFailover struct {
	chain *Failover[llm.Provider]
}

var _ llm.Provider = (*LLMFailover)(nil)

// NewLLMFailover creates a chain with primary as the preferred backend.
func NewLLMFailover(primary llm.Provider, name string, cfg FailoverConfig) *LLMFailover {
	return &LLMFailover{chain: NewFailover(primary, name, cfg)}
}

// Add registers a stand-in model backend.
func (f *LLMFailover) Add(name string, provider llm.Provider) {
	f.chain.Add(name, provider)
}

// Complete routes the request to the first healthy backend.
func (f *LLMFailover) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return TryResult(f.chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
