// Package ingest orchestrates the transcript upload pipeline: parse the
// subtitle file, segment it into chunks, validate chunk coverage against the
// original cues, embed the chunks, and write everything to the vector store.
//
// The pipeline owns the consequence of a failed validation. In strict mode a
// report with errors rejects the upload; in warn mode findings are logged and
// the upload proceeds; in detailed mode the full report travels back to the
// caller alongside the stored result.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/katha-archive/katha/internal/config"
	"github.com/katha-archive/katha/internal/enrich"
	"github.com/katha-archive/katha/internal/observe"
	"github.com/katha-archive/katha/internal/transcript"
	"github.com/katha-archive/katha/internal/validate"
	"github.com/katha-archive/katha/pkg/provider/embeddings"
	"github.com/katha-archive/katha/pkg/vectorstore"
)

// defaultEmbedBatch is the number of chunk texts sent to the embeddings
// provider per call. Batches are embedded concurrently, bounded by
// embedConcurrency.
const (
	defaultEmbedBatch = 64
	embedConcurrency  = 4
)

// Store is the subset of the vector store the pipeline needs. Satisfied by
// [*vectorstore.Store].
type Store interface {
	Upsert(ctx context.Context, records []vectorstore.Record) error
}

// Metadata carries the operator-supplied upload form fields. Zero-value
// fields fall back to the pipeline defaults where one exists.
type Metadata struct {
	TranscriptName string
	Date           string
	Category       string
	Location       string
	Speaker        string
	EventName      string
	EventCode      string
	MiscTags       []string
}

// Result is the outcome of one successful (or warn-mode tolerated) upload.
type Result struct {
	TranscriptName string
	ChunkCount     int

	// UsedFallback is true when the LLM chunker was unavailable and the
	// window splitter produced the chunks.
	UsedFallback bool

	GlobalTags []string

	// Report is the coverage validation outcome, always populated.
	Report *validate.Report
}

// ValidationError rejects an upload in strict mode. It wraps the report so
// the transport layer can render it.
type ValidationError struct {
	Report *validate.Report
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ingest: validation failed with %d errors", len(e.Report.Errors))
}

// Options tunes a [Pipeline]. The zero value uses warn mode and the
// validator defaults.
type Options struct {
	Mode       config.ValidationMode
	Thresholds validate.Thresholds

	// DefaultCategory and DefaultSpeaker fill empty Metadata fields. A
	// DefaultCategory outside [enrich.SatsangCategories] is replaced with
	// "Miscellaneous"; uploads with an unrecognised category fall back to
	// the default with a warning.
	DefaultCategory string
	DefaultSpeaker  string

	// EmbedBatchSize is the number of texts per embeddings call. Zero means
	// defaultEmbedBatch.
	EmbedBatchSize int
}

// Pipeline runs the upload flow. Safe for concurrent use; every Run is
// independent.
type Pipeline struct {
	chunker  *enrich.Chunker
	embedder embeddings.Provider
	store    Store
	opts     Options
	metrics  *observe.Metrics
}

// New creates a Pipeline. metrics may be nil, in which case the package
// default instruments are used.
func New(chunker *enrich.Chunker, embedder embeddings.Provider, store Store, opts Options, metrics *observe.Metrics) *Pipeline {
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = defaultEmbedBatch
	}
	if opts.Mode == "" {
		opts.Mode = config.ValidationWarn
	}
	if !enrich.IsKnownCategory(opts.DefaultCategory) {
		opts.DefaultCategory = "Miscellaneous"
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		opts:     opts,
		metrics:  metrics,
	}
}

// Run ingests one subtitle file. filename selects the parser by extension
// (.srt or .vtt); meta stamps every stored chunk. A strict-mode validation
// failure returns a [*ValidationError]; unparseable timestamps return a
// wrapped [*transcript.FormatError].
func (p *Pipeline) Run(ctx context.Context, filename string, data []byte, meta Metadata) (*Result, error) {
	start := time.Now()
	p.metrics.ActiveIngestions.Add(ctx, 1)
	defer p.metrics.ActiveIngestions.Add(ctx, -1)

	res, err := p.run(ctx, filename, data, meta)

	p.metrics.IngestDuration.Record(ctx, time.Since(start).Seconds())
	switch {
	case err == nil:
		p.metrics.RecordIngestion(ctx, "ok")
	case isValidationError(err):
		p.metrics.RecordIngestion(ctx, "rejected")
	default:
		p.metrics.RecordIngestion(ctx, "error")
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, filename string, data []byte, meta Metadata) (*Result, error) {
	cues, err := parseByExtension(filename, data)
	if err != nil {
		return nil, err
	}
	meta = p.applyDefaults(meta, filename)

	log := observe.Logger(ctx).With(slog.String("transcript", meta.TranscriptName))

	chunked, err := p.chunker.Chunk(ctx, cues)
	if err != nil {
		return nil, fmt.Errorf("ingest: chunking %q: %w", meta.TranscriptName, err)
	}
	if chunked.Fallback {
		p.metrics.ChunkerFallbacks.Add(ctx, 1)
	}

	report, err := p.opts.Thresholds.Validate(cues, chunked.Chunks)
	if err != nil {
		return nil, fmt.Errorf("ingest: validating %q: %w", meta.TranscriptName, err)
	}
	for range report.Errors {
		p.metrics.RecordValidationFailure(ctx, "coverage")
	}

	result := &Result{
		TranscriptName: meta.TranscriptName,
		ChunkCount:     len(chunked.Chunks),
		UsedFallback:   chunked.Fallback,
		GlobalTags:     chunked.GlobalTags,
		Report:         report,
	}

	if !report.CoverageComplete {
		log.Warn("coverage validation incomplete",
			slog.Int("errors", len(report.Errors)),
			slog.Int("warnings", len(report.Warnings)),
			slog.Float64("text_coverage_pct", report.TextCoveragePct),
			slog.Float64("timeline_coverage_pct", report.TimelineCoveragePct))
		if p.opts.Mode == config.ValidationStrict && len(report.Errors) > 0 {
			return result, &ValidationError{Report: report}
		}
	}

	vectors, err := p.embedChunks(ctx, chunked.Chunks)
	if err != nil {
		p.metrics.RecordProviderError(ctx, p.embedder.ModelID(), "embeddings")
		return nil, fmt.Errorf("ingest: embedding %q: %w", meta.TranscriptName, err)
	}

	records, err := buildRecords(meta, chunked, vectors)
	if err != nil {
		return nil, err
	}

	storeStart := time.Now()
	if err := p.store.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("ingest: storing %q: %w", meta.TranscriptName, err)
	}
	p.metrics.StoreDuration.Record(ctx, time.Since(storeStart).Seconds())
	p.metrics.ChunksStored.Add(ctx, int64(len(records)))

	log.Info("transcript ingested",
		slog.Int("chunks", len(records)),
		slog.Bool("fallback", chunked.Fallback))
	return result, nil
}

// applyDefaults fills empty metadata fields from the pipeline options and
// derives the transcript name and date when absent.
func (p *Pipeline) applyDefaults(meta Metadata, filename string) Metadata {
	if meta.TranscriptName == "" {
		base := filepath.Base(filename)
		meta.TranscriptName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if meta.Date == "" {
		meta.Date = time.Now().Format("2006-01-02")
	}
	if meta.Category == "" {
		meta.Category = p.opts.DefaultCategory
	} else if !enrich.IsKnownCategory(meta.Category) {
		// Same tolerance as the config loader's unknown-provider warning:
		// flag the likely typo, then file the transcript somewhere findable.
		slog.Warn("unrecognised category, filing under default",
			slog.String("category", meta.Category),
			slog.String("default", p.opts.DefaultCategory))
		meta.Category = p.opts.DefaultCategory
	}
	if meta.Speaker == "" {
		meta.Speaker = p.opts.DefaultSpeaker
	}
	return meta
}

// embedChunks embeds all chunk texts in concurrent batches. The returned
// slice is index-aligned with chunks.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []transcript.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embedStart := time.Now()
	defer func() {
		p.metrics.EmbeddingDuration.Record(ctx, time.Since(embedStart).Seconds())
	}()

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for lo := 0; lo < len(texts); lo += p.opts.EmbedBatchSize {
		hi := min(lo+p.opts.EmbedBatchSize, len(texts))
		g.Go(func() error {
			batch, err := p.embedder.EmbedBatch(gctx, texts[lo:hi])
			if err != nil {
				return err
			}
			copy(vectors[lo:hi], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// buildRecords assembles store records with stamped payloads. Timestamps
// were already validated, so a parse failure here indicates a bug upstream.
func buildRecords(meta Metadata, chunked enrich.ChunkResult, vectors [][]float32) ([]vectorstore.Record, error) {
	records := make([]vectorstore.Record, len(chunked.Chunks))
	for i, c := range chunked.Chunks {
		startTS, err := transcript.ParseTimestamp(c.Start)
		if err != nil {
			return nil, fmt.Errorf("ingest: chunk %d: %w", i, err)
		}
		endTS, err := transcript.ParseTimestamp(c.End)
		if err != nil {
			return nil, fmt.Errorf("ingest: chunk %d: %w", i, err)
		}

		records[i] = vectorstore.Record{
			TranscriptName: meta.TranscriptName,
			Index:          i,
			Content:        c.Text,
			StartSeconds:   startTS.Seconds(),
			EndSeconds:     endTS.Seconds(),
			Embedding:      vectors[i],
			Payload: vectorstore.Payload{
				OriginalText:   c.Text,
				Timestamp:      c.Start + " - " + c.End,
				TranscriptName: meta.TranscriptName,
				Date:           meta.Date,
				Category:       meta.Category,
				Location:       meta.Location,
				Speaker:        meta.Speaker,
				EventName:      meta.EventName,
				EventCode:      meta.EventCode,
				MiscTags:       meta.MiscTags,
				Summary:        c.Summary,
				Tags:           c.Tags,
				GlobalTags:     chunked.GlobalTags,
			},
		}
	}
	return records, nil
}

// parseByExtension picks the subtitle parser from the filename extension.
func parseByExtension(filename string, data []byte) ([]transcript.Cue, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".srt":
		return transcript.ParseSRT(bytes.NewReader(data))
	case ".vtt":
		return transcript.ParseVTT(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("ingest: unsupported file type %q (want .srt or .vtt)", filepath.Ext(filename))
	}
}

func isValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
