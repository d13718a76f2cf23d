// Package server exposes the Katha HTTP API: transcript upload, semantic
// search, archive browsing, and per-transcript enrichment endpoints, plus
// liveness, readiness, and Prometheus metrics routes.
package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/katha-archive/katha/internal/config"
	"github.com/katha-archive/katha/internal/enrich"
	"github.com/katha-archive/katha/internal/ingest"
	"github.com/katha-archive/katha/internal/observe"
	"github.com/katha-archive/katha/pkg/provider/embeddings"
	"github.com/katha-archive/katha/pkg/vectorstore"
)

// defaultMaxUploadBytes bounds multipart upload size when the config does
// not set one.
const defaultMaxUploadBytes = 32 << 20

// Ingestor runs the upload pipeline. Satisfied by [*ingest.Pipeline].
type Ingestor interface {
	Run(ctx context.Context, filename string, data []byte, meta ingest.Metadata) (*ingest.Result, error)
}

// Store is the subset of the vector store the API serves from. Satisfied by
// [*vectorstore.Store].
type Store interface {
	Ping(ctx context.Context) error
	Search(ctx context.Context, embedding []float32, topK int, filter vectorstore.Filter) ([]vectorstore.SearchResult, error)
	ListByTranscript(ctx context.Context, name string, limit, offset int) ([]vectorstore.Record, error)
	UpdatePayload(ctx context.Context, id uuid.UUID, patch map[string]any) error
	DeleteTranscript(ctx context.Context, name string) (int64, error)
	ListTranscripts(ctx context.Context) ([]vectorstore.TranscriptInfo, error)
}

// Options tunes the server surface.
type Options struct {
	// Mode controls how much validation detail upload responses carry.
	Mode config.ValidationMode

	// MaxUploadBytes caps the multipart form size. Zero means
	// defaultMaxUploadBytes.
	MaxUploadBytes int64
}

// Server holds the handler dependencies. Construct with [New] and mount via
// [Server.Handler].
type Server struct {
	ingestor Ingestor
	store    Store
	embedder embeddings.Provider
	entities *enrich.EntityExtractor
	bio      *enrich.BioExtractor
	opts     Options
	metrics  *observe.Metrics
}

// New creates a Server. entities and bio may be nil when no LLM provider is
// configured; their endpoints then answer 503. metrics may be nil, in which
// case the package default instruments are used.
func New(ingestor Ingestor, store Store, embedder embeddings.Provider, entities *enrich.EntityExtractor, bio *enrich.BioExtractor, opts Options, metrics *observe.Metrics) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		ingestor: ingestor,
		store:    store,
		embedder: embedder,
		entities: entities,
		bio:      bio,
		opts:     opts,
		metrics:  metrics,
	}
}

// Handler returns the full route tree wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /transcripts", s.handleUpload)
	mux.HandleFunc("GET /transcripts", s.handleListTranscripts)
	mux.HandleFunc("GET /transcripts/{name}/chunks", s.handleListChunks)
	mux.HandleFunc("DELETE /transcripts/{name}", s.handleDeleteTranscript)
	mux.HandleFunc("POST /transcripts/{name}/entities", s.handleExtractEntities)
	mux.HandleFunc("POST /transcripts/{name}/bio", s.handleExtractBio)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /metadata", s.handleMetadata)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}
