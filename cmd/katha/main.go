// Command katha is the main entry point for the Katha transcript archive
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/katha-archive/katha/internal/config"
	"github.com/katha-archive/katha/internal/enrich"
	"github.com/katha-archive/katha/internal/ingest"
	"github.com/katha-archive/katha/internal/observe"
	"github.com/katha-archive/katha/internal/resilience"
	"github.com/katha-archive/katha/internal/server"
	"github.com/katha-archive/katha/internal/transcript"
	"github.com/katha-archive/katha/internal/validate"
	"github.com/katha-archive/katha/pkg/provider/embeddings"
	ollamaembed "github.com/katha-archive/katha/pkg/provider/embeddings/ollama"
	oaembed "github.com/katha-archive/katha/pkg/provider/embeddings/openai"
	"github.com/katha-archive/katha/pkg/provider/llm"
	"github.com/katha-archive/katha/pkg/provider/llm/anyllm"
	"github.com/katha-archive/katha/pkg/vectorstore"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watchConfig := flag.Bool("watch-config", false, "reload validation and ingest settings when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "katha: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "katha: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("katha starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if providers.Embeddings == nil {
		slog.Error("no embeddings provider configured")
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.SetupTelemetry(ctx, observe.TelemetryConfig{
		ServiceName: "katha",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Vector store ──────────────────────────────────────────────────────────
	dims := cfg.Storage.EmbeddingDimensions
	if dims <= 0 {
		dims = providers.Embeddings.Dimensions()
	}
	store, err := vectorstore.New(ctx, cfg.Storage.PostgresDSN, dims)
	if err != nil {
		slog.Error("failed to open vector store", "err", err)
		return 1
	}
	defer store.Close()
	slog.Info("vector store ready",
		"dimensions", dims,
		"embedding_model", providers.Embeddings.ModelID(),
	)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	ingestor := &swappableIngestor{}
	ingestor.set(buildPipeline(cfg, providers, store, metrics))

	// ── Config watcher (optional) ─────────────────────────────────────────────
	if *watchConfig {
		watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
			diff := config.Compare(old, updated)
			if diff.RequiresRestart() {
				slog.Warn("config change requires a restart to take effect")
				return
			}
			ingestor.set(buildPipeline(updated, providers, store, metrics))
			slog.Info("config reloaded, new uploads use updated settings")
		})
		if err != nil {
			slog.Error("failed to start config watcher", "err", err)
			return 1
		}
		defer watcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	var entityExtractor *enrich.EntityExtractor
	var bioExtractor *enrich.BioExtractor
	if providers.LLM != nil {
		entityExtractor = enrich.NewEntityExtractor(providers.LLM)
	}
	if providers.Bio != nil {
		bioExtractor = enrich.NewBioExtractor(providers.Bio)
	}

	api := server.New(ingestor, store, providers.Embeddings, entityExtractor, bioExtractor,
		server.Options{
			Mode:           cfg.Validation.Mode,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}, metrics)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      api.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // LLM chunking of long transcripts is slow
	}

	printStartupSummary(cfg)

	serveErr := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		serveErr <- err
	}()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("serve error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// providerSet holds the instantiated providers named in the config.
type providerSet struct {
	LLM        llm.Provider
	Bio        llm.Provider
	Embeddings embeddings.Provider
}

// swappableIngestor lets the config watcher replace the pipeline without
// restarting the HTTP server.
type swappableIngestor struct {
	p atomic.Pointer[ingest.Pipeline]
}

func (s *swappableIngestor) set(p *ingest.Pipeline) { s.p.Store(p) }

func (s *swappableIngestor) Run(ctx context.Context, filename string, data []byte, meta ingest.Metadata) (*ingest.Result, error) {
	return s.p.Load().Run(ctx, filename, data, meta)
}

// buildPipeline assembles the ingest pipeline from the current config.
func buildPipeline(cfg *config.Config, providers *providerSet, store *vectorstore.Store, metrics *observe.Metrics) *ingest.Pipeline {
	chunker := enrich.NewChunker(providers.LLM, transcript.SplitterConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})
	return ingest.New(chunker, providers.Embeddings, store, ingest.Options{
		Mode: cfg.Validation.Mode,
		Thresholds: validate.Thresholds{
			MinTextCoverage:     cfg.Validation.MinTextCoverage,
			MinTimelineCoverage: cfg.Validation.MinTimelineCoverage,
			GapTolerance:        cfg.Validation.GapToleranceSeconds,
			DuplicateSimilarity: cfg.Validation.DuplicateSimilarity,
		},
		DefaultCategory: cfg.Ingest.DefaultCategory,
		DefaultSpeaker:  cfg.Ingest.DefaultSpeaker,
	}, metrics)
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider category names to the implementations that
// ship with Katha. Used for startup logging.
var builtinProviders = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})

	// Debug log of all registered providers.
	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates all providers named in cfg using the registry.
// The LLM provider is optional; without one, uploads fall back to the window
// splitter and the enrichment endpoints are disabled. The bio extraction
// provider falls back to the main LLM provider when not set separately.
// Every provider is wrapped in a circuit breaker so a flapping backend fails
// fast instead of stalling uploads.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = resilience.NewLLMFailover(p, name, resilience.FailoverConfig{})
		slog.Info("provider created", "kind", "llm", "name", name)
	}

	if name := cfg.Providers.Bio.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.Bio)
		if err != nil {
			return nil, fmt.Errorf("create bio provider %q: %w", name, err)
		}
		ps.Bio = resilience.NewLLMFailover(p, name, resilience.FailoverConfig{})
		slog.Info("provider created", "kind", "bio", "name", name)
	} else {
		ps.Bio = ps.LLM
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = resilience.NewEmbeddingsFailover(p, name, resilience.FailoverConfig{})
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Katha — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Bio LLM", cfg.Providers.Bio.Name, cfg.Providers.Bio.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	fmt.Printf("║  Validation mode : %-19s ║\n", cfg.Validation.Mode)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
