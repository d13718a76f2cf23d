// Package mock provides a configurable in-memory llm.Provider for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/katha-archive/katha/pkg/provider/llm"
)

// Provider is a test double for llm.Provider. Configure it with a fixed
// Response, a queue of Responses consumed in order, or a CompleteFunc for
// full control. The zero value returns an empty completion.
type Provider struct {
	mu sync.Mutex

	// Response is returned by every Complete call when Responses and
	// CompleteFunc are unset.
	Response string

	// Responses is consumed one element per Complete call. When exhausted,
	// Complete falls back to Response.
	Responses []string

	// Err, when set, is returned by every Complete call.
	Err error

	// CompleteFunc overrides all other behaviour when non-nil.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// Requests records every request received, in order.
	Requests []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, req)

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("mock: %w", err)
	}

	content := p.Response
	if len(p.Responses) > 0 {
		content = p.Responses[0]
		p.Responses = p.Responses[1:]
	}

	return &llm.CompletionResponse{
		Content: content,
		Usage: llm.Usage{
			PromptTokens:     len(req.Messages),
			CompletionTokens: 1,
			TotalTokens:      len(req.Messages) + 1,
		},
	}, nil
}

// CallCount returns how many Complete calls the provider has received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
