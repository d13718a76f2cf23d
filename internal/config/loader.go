package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must not be negative"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.Bio.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, fmt.Errorf("providers.embeddings is required; chunks cannot be stored or searched without embeddings"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; ingests will use the window splitter and skip enrichment")
	}

	if cfg.Storage.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("storage.postgres_dsn is required"))
	}
	if cfg.Storage.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("storage.embedding_dimensions must not be negative"))
	} else if cfg.Storage.EmbeddingDimensions == 0 {
		slog.Warn("storage.embedding_dimensions is not set; the embeddings provider's reported dimension will be used")
	}

	if cfg.Ingest.ChunkSize < 0 || cfg.Ingest.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("ingest.chunk_size and ingest.chunk_overlap must not be negative"))
	}
	if cfg.Ingest.ChunkSize > 0 && cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		errs = append(errs, fmt.Errorf("ingest.chunk_overlap (%d) must be smaller than ingest.chunk_size (%d)", cfg.Ingest.ChunkOverlap, cfg.Ingest.ChunkSize))
	}

	if cfg.Validation.Mode != "" && !cfg.Validation.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("validation.mode %q is invalid; valid values: strict, warn, detailed", cfg.Validation.Mode))
	}
	for _, pct := range []struct {
		name  string
		value float64
	}{
		{"validation.min_text_coverage", cfg.Validation.MinTextCoverage},
		{"validation.min_timeline_coverage", cfg.Validation.MinTimelineCoverage},
	} {
		if pct.value < 0 || pct.value > 100 {
			errs = append(errs, fmt.Errorf("%s %.1f is out of range [0, 100]", pct.name, pct.value))
		}
	}
	if cfg.Validation.GapToleranceSeconds < 0 {
		errs = append(errs, fmt.Errorf("validation.gap_tolerance_seconds must not be negative"))
	}
	if cfg.Validation.DuplicateSimilarity < 0 || cfg.Validation.DuplicateSimilarity > 1 {
		errs = append(errs, fmt.Errorf("validation.duplicate_similarity %.2f is out of range [0, 1]", cfg.Validation.DuplicateSimilarity))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
