package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skein-media/retime/internal/caption"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store used in tests and when no database is
// configured. All methods are safe for concurrent use. Data does not survive
// a restart.
type MemStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*TranscriptionRecord
	history []HistoryEntry
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[uuid.UUID]*TranscriptionRecord),
	}
}

// GetTranscription implements Store.
func (m *MemStore) GetTranscription(_ context.Context, id uuid.UUID) (*TranscriptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneRecord(rec)
	return &cp, nil
}

// SaveTranscription implements Store.
func (m *MemStore) SaveTranscription(_ context.Context, rec *TranscriptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneRecord(rec)
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
		rec.ID = cp.ID
	}
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		if existing, ok := m.records[cp.ID]; ok {
			cp.CreatedAt = existing.CreatedAt
		} else {
			cp.CreatedAt = now
		}
	}
	cp.UpdatedAt = now

	m.records[cp.ID] = &cp
	return nil
}

// ReplaceCaptions implements Store.
func (m *MemStore) ReplaceCaptions(_ context.Context, id uuid.UUID, sentences []caption.Sentence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Sentences = cloneSentences(sentences)
	rec.PendingText = ""
	rec.Status = StatusAligned
	rec.UpdatedAt = time.Now()
	return nil
}

// AppendHistory implements Store.
func (m *MemStore) AppendHistory(_ context.Context, entry HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.history = append(m.history, entry)
	return nil
}

// ListPending implements Store.
func (m *MemStore) ListPending(_ context.Context, limit int) ([]TranscriptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []TranscriptionRecord
	for _, rec := range m.records {
		if rec.Status == StatusPending {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// History returns a copy of all recorded history entries, oldest first.
func (m *MemStore) History() []HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

func cloneRecord(rec *TranscriptionRecord) TranscriptionRecord {
	cp := *rec
	cp.Sentences = cloneSentences(rec.Sentences)
	return cp
}

func cloneSentences(sentences []caption.Sentence) []caption.Sentence {
	out := make([]caption.Sentence, len(sentences))
	for i, s := range sentences {
		cp := s
		cp.Words = make([]caption.Word, len(s.Words))
		copy(cp.Words, s.Words)
		out[i] = cp
	}
	return out
}
