// Package vectorstore provides the PostgreSQL + pgvector chunk store backing
// the Katha transcript archive.
//
// Every enriched transcript chunk is stored as one row: a UUID point ID, the
// embedded content, its timeline span in seconds, the embedding vector, and a
// JSONB payload carrying the full metadata document. The pgvector extension
// must be available in the target database; [Migrate] installs it via
// CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := vectorstore.New(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Upsert(ctx, records)
//	results, _ := store.Search(ctx, queryVec, 10, vectorstore.Filter{Category: "Pravachan"})
package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Record is one stored chunk row.
type Record struct {
	// ID is the point ID. Zero value means the caller wants one assigned;
	// Upsert fills it with a fresh UUID.
	ID uuid.UUID

	TranscriptName string

	// Index is the chunk's position within its transcript, used for ordered
	// listing.
	Index int

	// Content is the text the embedding was computed from.
	Content string

	// StartSeconds and EndSeconds are the chunk's normalised timeline span.
	StartSeconds float64
	EndSeconds   float64

	Embedding []float32

	Payload Payload

	CreatedAt time.Time
}

// SearchResult pairs a Record with its cosine distance from the query vector.
// Lower distance means more similar. Record is embedded so callers can read
// chunk fields directly off the result.
type SearchResult struct {
	Record
	Distance float64
}

// Filter narrows Search and listing operations. Zero-value fields are not
// applied. String fields match payload keys exactly; BioCategory matches
// chunks whose has_<BioCategory> payload flag is true.
type Filter struct {
	TranscriptName string
	Category       string
	Location       string
	Speaker        string
	EventCode      string
	Date           string
	BioCategory    string
}

// TranscriptInfo summarises one stored transcript.
type TranscriptInfo struct {
	Name       string    `json:"name"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Store is the PostgreSQL-backed chunk store. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the PostgreSQL database at dsn,
// registers pgvector types on every connection, and runs [Migrate].
//
// embeddingDimensions must match the output dimension of the configured
// embedding provider.
func New(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so vector columns can
	// be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vectorstore: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vectorstore: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("vectorstore: ping: %w", err)
	}
	return nil
}

const upsertSQL = `
	INSERT INTO chunks
	    (id, transcript_name, chunk_index, content, start_seconds, end_seconds, embedding, payload)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
	    transcript_name = EXCLUDED.transcript_name,
	    chunk_index     = EXCLUDED.chunk_index,
	    content         = EXCLUDED.content,
	    start_seconds   = EXCLUDED.start_seconds,
	    end_seconds     = EXCLUDED.end_seconds,
	    embedding       = EXCLUDED.embedding,
	    payload         = EXCLUDED.payload`

// Upsert writes records in one round trip using a pipelined batch. Records
// with a zero ID receive a fresh UUID before insert; rows with an existing ID
// are fully replaced.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range records {
		if records[i].ID == uuid.Nil {
			records[i].ID = uuid.New()
		}
		r := records[i]
		batch.Queue(upsertSQL,
			r.ID,
			r.TranscriptName,
			r.Index,
			r.Content,
			r.StartSeconds,
			r.EndSeconds,
			pgvector.NewVector(r.Embedding),
			r.Payload,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("vectorstore: upsert: %w", err)
		}
	}
	return nil
}

// Search finds the topK chunks whose embeddings are closest (cosine distance)
// to the query embedding, optionally narrowed by filter. Results are ordered
// by ascending distance.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}

	args := []any{pgvector.NewVector(embedding)} // $1 = query vector
	where := buildFilter(filter, &args)

	args = append(args, topK)
	q := fmt.Sprintf(`
		SELECT id, transcript_name, chunk_index, content, start_seconds, end_seconds,
		       embedding, payload, created_at,
		       embedding <=> $1 AS distance
		FROM   chunks
		%s
		ORDER  BY distance
		LIMIT  $%d`, where, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchResult, error) {
		var (
			sr  SearchResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&sr.Record.ID,
			&sr.Record.TranscriptName,
			&sr.Record.Index,
			&sr.Record.Content,
			&sr.Record.StartSeconds,
			&sr.Record.EndSeconds,
			&vec,
			&sr.Record.Payload,
			&sr.Record.CreatedAt,
			&sr.Distance,
		); err != nil {
			return SearchResult{}, err
		}
		sr.Record.Embedding = vec.Slice()
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scan rows: %w", err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// ListByTranscript returns the chunks of one transcript ordered by chunk
// index, paginated by limit and offset. Embeddings are not returned; listing
// is a metadata operation.
func (s *Store) ListByTranscript(ctx context.Context, name string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `
		SELECT id, transcript_name, chunk_index, content, start_seconds, end_seconds, payload, created_at
		FROM   chunks
		WHERE  transcript_name = $1
		ORDER  BY chunk_index
		LIMIT  $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, q, name, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list by transcript: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(
			&r.ID,
			&r.TranscriptName,
			&r.Index,
			&r.Content,
			&r.StartSeconds,
			&r.EndSeconds,
			&r.Payload,
			&r.CreatedAt,
		)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scan rows: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// UpdatePayload merges patch into the stored payload of the chunk with the
// given ID, overwriting only the keys present in patch. Returns an error
// when no such chunk exists.
func (s *Store) UpdatePayload(ctx context.Context, id uuid.UUID, patch map[string]any) error {
	const q = `UPDATE chunks SET payload = payload || $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, patch)
	if err != nil {
		return fmt.Errorf("vectorstore: update payload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vectorstore: update payload: chunk %s not found", id)
	}
	return nil
}

// DeleteTranscript removes every chunk belonging to the named transcript and
// returns how many rows were deleted.
func (s *Store) DeleteTranscript(ctx context.Context, name string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE transcript_name = $1`, name)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: delete transcript: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListTranscripts returns one summary per stored transcript, newest first.
func (s *Store) ListTranscripts(ctx context.Context) ([]TranscriptInfo, error) {
	const q = `
		SELECT transcript_name, count(*), min(created_at)
		FROM   chunks
		GROUP  BY transcript_name
		ORDER  BY min(created_at) DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list transcripts: %w", err)
	}

	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TranscriptInfo, error) {
		var ti TranscriptInfo
		err := row.Scan(&ti.Name, &ti.ChunkCount, &ti.IngestedAt)
		return ti, err
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scan rows: %w", err)
	}
	if infos == nil {
		infos = []TranscriptInfo{}
	}
	return infos, nil
}

// buildFilter appends filter conditions to args and returns the WHERE clause,
// or an empty string when no conditions apply.
func buildFilter(filter Filter, args *[]any) string {
	next := func(v any) string {
		*args = append(*args, v)
		return fmt.Sprintf("$%d", len(*args))
	}

	var conditions []string
	if filter.TranscriptName != "" {
		conditions = append(conditions, "transcript_name = "+next(filter.TranscriptName))
	}
	if filter.Category != "" {
		conditions = append(conditions, "payload->>'category' = "+next(filter.Category))
	}
	if filter.Location != "" {
		conditions = append(conditions, "payload->>'location' = "+next(filter.Location))
	}
	if filter.Speaker != "" {
		conditions = append(conditions, "payload->>'speaker' = "+next(filter.Speaker))
	}
	if filter.EventCode != "" {
		conditions = append(conditions, "payload->>'event_code' = "+next(filter.EventCode))
	}
	if filter.Date != "" {
		conditions = append(conditions, "payload->>'date' = "+next(filter.Date))
	}
	if filter.BioCategory != "" {
		conditions = append(conditions, "payload->>"+next("has_"+filter.BioCategory)+" = 'true'")
	}

	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, "\n  AND ")
}
