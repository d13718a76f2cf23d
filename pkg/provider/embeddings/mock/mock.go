// Package mock provides a deterministic in-memory embeddings.Provider for tests.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/katha-archive/katha/pkg/provider/embeddings"
)

// Provider is a test double for embeddings.Provider. Unless overridden it
// returns a deterministic vector derived from the input text, so equal texts
// embed equally and different texts (almost always) differ. The zero value is
// usable with 8 dimensions.
type Provider struct {
	mu sync.Mutex

	// Dims is the vector length. Zero means 8.
	Dims int

	// Model is returned by ModelID. Empty means "mock-embed".
	Model string

	// Err, when set, is returned by every Embed and EmbedBatch call.
	Err error

	// EmbedFunc overrides the deterministic vector when non-nil.
	EmbedFunc func(text string) []float32

	// Texts records every text embedded, across both Embed and EmbedBatch,
	// in submission order.
	Texts []string
}

var _ embeddings.Provider = (*Provider)(nil)

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([][]float32, len(texts))
	for i, t := range texts {
		p.Texts = append(p.Texts, t)
		if p.EmbedFunc != nil {
			result[i] = p.EmbedFunc(t)
			continue
		}
		result[i] = p.vectorFor(t)
	}
	return result, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dims <= 0 {
		return 8
	}
	return p.Dims
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	if p.Model == "" {
		return "mock-embed"
	}
	return p.Model
}

// vectorFor hashes the text into a fixed pseudo-random vector.
func (p *Provider) vectorFor(text string) []float32 {
	dims := p.Dims
	if dims <= 0 {
		dims = 8
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>32)) / (1 << 31)
	}
	return vec
}
