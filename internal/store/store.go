// Package store defines the persistence boundary for transcriptions and
// their realignment history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/skein-media/retime/internal/caption"
)

// ErrNotFound is returned when a transcription ID is unknown.
var ErrNotFound = errors.New("store: transcription not found")

// Status is the realignment lifecycle state of a transcription.
type Status string

const (
	// StatusPending marks a transcription with corrected text waiting to be
	// realigned.
	StatusPending Status = "pending"

	// StatusAligned marks a transcription whose captions reflect the latest
	// correction.
	StatusAligned Status = "aligned"

	// StatusFailed marks a transcription whose last realignment attempt
	// errored.
	StatusFailed Status = "failed"
)

// TranscriptionRecord is a persisted transcription: its caption sentences
// plus the editing state around them.
type TranscriptionRecord struct {
	ID       uuid.UUID
	Title    string
	Language string
	Status   Status

	// Sentences is the current timed caption list.
	Sentences []caption.Sentence

	// PendingText is corrected text awaiting realignment, one sentence per
	// line. Empty when nothing is queued.
	PendingText string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HistoryEntry records one mutation of a transcription's captions.
type HistoryEntry struct {
	ID              uuid.UUID
	TranscriptionID uuid.UUID

	// Action names the operation, e.g. "realign", "reshape", "rewrite".
	Action string

	// Detail is a human-readable summary (replacement counts, strategies).
	Detail string

	CreatedAt time.Time
}

// Store is the persistence abstraction. Implementations must be safe for
// concurrent use.
type Store interface {
	// GetTranscription returns the record with the given ID, or ErrNotFound.
	GetTranscription(ctx context.Context, id uuid.UUID) (*TranscriptionRecord, error)

	// SaveTranscription inserts or fully replaces the record. The store owns
	// UpdatedAt; callers need not set it.
	SaveTranscription(ctx context.Context, rec *TranscriptionRecord) error

	// ReplaceCaptions swaps the sentence list of an existing record, clears
	// any pending text, and marks the record aligned.
	ReplaceCaptions(ctx context.Context, id uuid.UUID, sentences []caption.Sentence) error

	// AppendHistory records a mutation. The store assigns ID and CreatedAt
	// when unset.
	AppendHistory(ctx context.Context, entry HistoryEntry) error

	// ListPending returns up to limit records in StatusPending, oldest
	// update first.
	ListPending(ctx context.Context, limit int) ([]TranscriptionRecord, error)
}
