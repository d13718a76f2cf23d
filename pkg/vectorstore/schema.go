package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlChunks returns the chunk table DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
    id               UUID             PRIMARY KEY,
    transcript_name  TEXT             NOT NULL,
    chunk_index      INT              NOT NULL DEFAULT 0,
    content          TEXT             NOT NULL,
    start_seconds    DOUBLE PRECISION NOT NULL DEFAULT 0,
    end_seconds      DOUBLE PRECISION NOT NULL DEFAULT 0,
    embedding        vector(%d),
    payload          JSONB            NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ      NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chunks_transcript_name
    ON chunks (transcript_name);

CREATE INDEX IF NOT EXISTS idx_chunks_transcript_index
    ON chunks (transcript_name, chunk_index);

CREATE INDEX IF NOT EXISTS idx_chunks_payload
    ON chunks USING GIN (payload);

CREATE INDEX IF NOT EXISTS idx_chunks_embedding
    ON chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the chunks table, the pgvector extension, and
// all indexes exist. It is idempotent and safe to call on every start.
//
// embeddingDimensions must match the configured embedding model (e.g., 1536
// for OpenAI text-embedding-3-small, 768 for nomic-embed-text). Changing it
// after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if embeddingDimensions <= 0 {
		return fmt.Errorf("vectorstore migrate: embedding dimensions must be positive, got %d", embeddingDimensions)
	}
	if _, err := pool.Exec(ctx, ddlChunks(embeddingDimensions)); err != nil {
		return fmt.Errorf("vectorstore migrate: %w", err)
	}
	return nil
}
