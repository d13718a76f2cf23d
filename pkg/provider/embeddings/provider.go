// Package embeddings defines the Provider interface for vector embedding backends.
//
// An embeddings provider maps text to dense float32 vectors (e.g., OpenAI
// text-embedding-3 or a local Ollama model). Katha embeds every enriched
// transcript chunk before storage and embeds search queries at request time;
// both sides must use the same provider instance so vectors share a space.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (returned by Dimensions). Vectors from different instances
// must not be mixed in one similarity computation unless both use the same
// model.
type Provider interface {
	// Embed computes the embedding vector for a single text string. The text is
	// passed through verbatim; any model-specific prefix (e.g., "query: " for
	// nomic-embed-text) is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for a slice of texts, batching provider calls
	// where the backend allows it. The result has the same length and order as
	// texts. On error the entire result is nil; partial results are not exposed.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces, constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier, e.g.
	// "text-embedding-3-small". Used for logging and for refusing to search a
	// collection written with a different model.
	ModelID() string
}
