package resilience

import (
	"context"

	"github.com/katha-archive/katha/pkg/provider/embeddings"
)

// EmbeddingsFailover implements [embeddings.Provider] over a [Failover]
// chain. Every backend must produce vectors of the same dimensionality and
// model family; mixing spaces would make stored and query vectors
// incomparable.
type EmbeddingsFailover struct {
	chain   *Failover[embeddings.Provider]
	primary embeddings.Provider
}

var _ embeddings.Provider = (*EmbeddingsFailover)(nil)

// NewEmbeddingsFailover creates a chain with primary as the preferred
// backend.
func NewEmbeddingsFailover(primary embeddings.Provider, name string, cfg FailoverConfig) *EmbeddingsFailover {
	return &EmbeddingsFailover{
		chain:   NewFailover(primary, name, cfg),
		primary: primary,
	}
}

// Add registers a stand-in embeddings backend.
func (f *EmbeddingsFailover) Add(name string, provider embeddings.Provider) {
	f.chain.Add(name, provider)
}

// Embed computes a vector via the first healthy backend.
func (f *EmbeddingsFailover) Embed(ctx context.Context, text string) ([]float32, error) {
	return TryResult(f.chain, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch computes vectors via the first healthy backend.
func (f *EmbeddingsFailover) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return TryResult(f.chain, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions reports the primary's dimensionality. Static metadata does not
// participate in failover.
func (f *EmbeddingsFailover) Dimensions() int {
	return f.primary.Dimensions()
}

// ModelID reports the primary's model identifier.
func (f *EmbeddingsFailover) ModelID() string {
	return f.primary.ModelID()
}
