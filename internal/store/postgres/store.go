package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skein-media/retime/internal/caption"
	"github.com/skein-media/retime/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed transcription store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, and runs [Migrate] to ensure all required
// tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// GetTranscription implements [store.Store].
func (s *Store) GetTranscription(ctx context.Context, id uuid.UUID) (*store.TranscriptionRecord, error) {
	const q = `
		SELECT id, title, language, status, sentences, pending_text, created_at, updated_at
		FROM   transcriptions
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get transcription: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get transcription: %w", err)
	}
	return &rec, nil
}

// SaveTranscription implements [store.Store]. It upserts the full record.
func (s *Store) SaveTranscription(ctx context.Context, rec *store.TranscriptionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Status == "" {
		rec.Status = store.StatusAligned
	}

	sentences, err := json.Marshal(rec.Sentences)
	if err != nil {
		return fmt.Errorf("postgres store: marshal sentences: %w", err)
	}

	const q = `
		INSERT INTO transcriptions
		    (id, title, language, status, sentences, pending_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE SET
		    title        = EXCLUDED.title,
		    language     = EXCLUDED.language,
		    status       = EXCLUDED.status,
		    sentences    = EXCLUDED.sentences,
		    pending_text = EXCLUDED.pending_text,
		    updated_at   = now()`

	_, err = s.pool.Exec(ctx, q,
		rec.ID,
		rec.Title,
		rec.Language,
		string(rec.Status),
		sentences,
		rec.PendingText,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save transcription: %w", err)
	}
	return nil
}

// ReplaceCaptions implements [store.Store].
func (s *Store) ReplaceCaptions(ctx context.Context, id uuid.UUID, sentences []caption.Sentence) error {
	data, err := json.Marshal(sentences)
	if err != nil {
		return fmt.Errorf("postgres store: marshal sentences: %w", err)
	}

	const q = `
		UPDATE transcriptions
		SET    sentences = $2, pending_text = '', status = $3, updated_at = now()
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, id, data, string(store.StatusAligned))
	if err != nil {
		return fmt.Errorf("postgres store: replace captions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendHistory implements [store.Store].
func (s *Store) AppendHistory(ctx context.Context, entry store.HistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	const q = `
		INSERT INTO transcription_history (id, transcription_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, q,
		entry.ID,
		entry.TranscriptionID,
		entry.Action,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: append history: %w", err)
	}
	return nil
}

// ListPending implements [store.Store].
func (s *Store) ListPending(ctx context.Context, limit int) ([]store.TranscriptionRecord, error) {
	q := `
		SELECT id, title, language, status, sentences, pending_text, created_at, updated_at
		FROM   transcriptions
		WHERE  status = $1
		ORDER  BY updated_at`
	args := []any{string(store.StatusPending)}

	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list pending: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if records == nil {
		records = []store.TranscriptionRecord{}
	}
	return records, nil
}

// History returns all history entries for a transcription, oldest first.
func (s *Store) History(ctx context.Context, transcriptionID uuid.UUID) ([]store.HistoryEntry, error) {
	const q = `
		SELECT id, transcription_id, action, detail, created_at
		FROM   transcription_history
		WHERE  transcription_id = $1
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, transcriptionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: history: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.HistoryEntry, error) {
		var e store.HistoryEntry
		err := row.Scan(&e.ID, &e.TranscriptionID, &e.Action, &e.Detail, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan history: %w", err)
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	return entries, nil
}

// scanRecord scans one transcriptions row, unmarshalling the JSONB sentence
// document.
func scanRecord(row pgx.CollectableRow) (store.TranscriptionRecord, error) {
	var (
		rec       store.TranscriptionRecord
		status    string
		sentences []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Language,
		&status,
		&sentences,
		&rec.PendingText,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return store.TranscriptionRecord{}, err
	}
	rec.Status = store.Status(status)
	if len(sentences) > 0 {
		if err := json.Unmarshal(sentences, &rec.Sentences); err != nil {
			return store.TranscriptionRecord{}, fmt.Errorf("unmarshal sentences: %w", err)
		}
	}
	return rec, nil
}
