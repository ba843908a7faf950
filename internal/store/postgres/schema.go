// Package postgres provides a PostgreSQL-backed implementation of
// [store.Store].
//
// Caption sentences are persisted as a JSONB document per transcription; the
// engine always rewrites the full sentence list, so a normalised word table
// would only add write amplification. History entries live in their own
// append-only table.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	rec, err := st.GetTranscription(ctx, id)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscriptions = `
CREATE TABLE IF NOT EXISTS transcriptions (
    id            UUID         PRIMARY KEY,
    title         TEXT         NOT NULL DEFAULT '',
    language      TEXT         NOT NULL DEFAULT '',
    status        TEXT         NOT NULL DEFAULT 'aligned',
    sentences     JSONB        NOT NULL DEFAULT '[]',
    pending_text  TEXT         NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcriptions_status_updated
    ON transcriptions (status, updated_at);
`

const ddlHistory = `
CREATE TABLE IF NOT EXISTS transcription_history (
    id                UUID         PRIMARY KEY,
    transcription_id  UUID         NOT NULL REFERENCES transcriptions (id) ON DELETE CASCADE,
    action            TEXT         NOT NULL,
    detail            TEXT         NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_history_transcription
    ON transcription_history (transcription_id, created_at);
`

// Migrate creates or ensures all required database tables exist. It is
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlTranscriptions,
		ddlHistory,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
