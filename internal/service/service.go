// Package service orchestrates the caption pipeline: audio transcription,
// correction submission, timing realignment, and sentence reshaping.
//
// The Service struct owns no goroutines of its own — every operation is a
// synchronous call against the store and the configured providers. Batch
// processing ([Service.ProcessPending]) fans out over a bounded worker group.
//
// For testing, inject mock providers and the in-memory store via functional
// options.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/skein-media/retime/internal/caption"
	"github.com/skein-media/retime/internal/caption/align"
	"github.com/skein-media/retime/internal/caption/segment"
	"github.com/skein-media/retime/internal/observe"
	"github.com/skein-media/retime/internal/store"
	"github.com/skein-media/retime/pkg/provider/rewrite"
	"github.com/skein-media/retime/pkg/provider/stt"
)

// ErrNoSTTProvider is returned by [Service.Transcribe] when no STT provider
// was configured.
var ErrNoSTTProvider = errors.New("service: no stt provider configured")

// ErrNoRewriteProvider is returned by [Service.RewriteAndRealign] when no
// rewrite provider was configured.
var ErrNoRewriteProvider = errors.New("service: no rewrite provider configured")

// ErrNothingPending is returned by [Service.Realign] when the transcription
// has no pending corrected text to align against.
var ErrNothingPending = errors.New("service: no pending correction")

// ErrRewriteFellBack is returned by [Service.RewriteAndRealign] when the
// rewrite provider fell back to the original text. The stored captions are
// left untouched.
var ErrRewriteFellBack = errors.New("service: rewrite provider fell back to original text")

// Service coordinates the store, the providers, and the caption engines.
type Service struct {
	store   store.Store
	metrics *observe.Metrics
	logger  *slog.Logger

	sttName string
	stt     stt.Provider

	rewriteName string
	rewrite     rewrite.Provider

	// mu guards the hot-reloadable engine configuration.
	mu      sync.RWMutex
	aligner *align.Aligner
	segOpts segment.Options

	workers int
}

// Option is a functional option for [New]. Use these to inject providers and
// test doubles.
type Option func(*Service)

// WithSTT configures the speech-to-text provider. The name is used in log
// messages and metric attributes.
func WithSTT(name string, p stt.Provider) Option {
	return func(s *Service) {
		s.sttName = name
		s.stt = p
	}
}

// WithRewrite configures the text correction provider. The name is used in
// log messages and metric attributes.
func WithRewrite(name string, p rewrite.Provider) Option {
	return func(s *Service) {
		s.rewriteName = name
		s.rewrite = p
	}
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger overrides the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithAlignerOptions configures the realignment engine.
func WithAlignerOptions(opts ...align.Option) Option {
	return func(s *Service) { s.aligner = align.New(opts...) }
}

// WithSegmentOptions configures the reshaping engine.
func WithSegmentOptions(opts segment.Options) Option {
	return func(s *Service) { s.segOpts = opts }
}

// WithWorkers sets the batch worker count for [Service.ProcessPending].
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New creates a Service backed by st. Providers are optional: operations that
// need a missing provider return a sentinel error.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		aligner: align.New(),
		workers: 4,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SetAlignerOptions swaps the realignment engine configuration. Safe to call
// while batch processing is running; in-flight alignments finish with the old
// configuration.
func (s *Service) SetAlignerOptions(opts ...align.Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aligner = align.New(opts...)
}

// SetSegmentOptions swaps the reshaping engine configuration.
func (s *Service) SetSegmentOptions(opts segment.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segOpts = opts
}

func (s *Service) currentAligner() *align.Aligner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aligner
}

func (s *Service) currentSegOpts() segment.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.segOpts
}

// TranscribeRequest carries the inputs for [Service.Transcribe].
type TranscribeRequest struct {
	// Title labels the new transcription record.
	Title string

	// Language is the BCP-47 hint passed to the STT provider. Optional.
	Language string

	// Keywords bias recognition towards domain vocabulary. Optional.
	Keywords []string

	// Audio is the encoded audio stream. Read exactly once.
	Audio io.Reader
}

// Transcribe runs the audio through the STT provider and stores the resulting
// timed captions as a new transcription record.
func (s *Service) Transcribe(ctx context.Context, req TranscribeRequest) (*store.TranscriptionRecord, error) {
	if s.stt == nil {
		return nil, ErrNoSTTProvider
	}

	start := time.Now()
	result, err := s.stt.Transcribe(ctx, req.Audio, stt.TranscribeConfig{
		Language: req.Language,
		Keywords: req.Keywords,
	})
	s.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.sttName, "stt", "error")
		s.metrics.RecordProviderError(ctx, s.sttName, "stt")
		return nil, fmt.Errorf("service: transcribe: %w", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.sttName, "stt", "ok")

	rec := &store.TranscriptionRecord{
		Title:     req.Title,
		Language:  result.Language,
		Status:    store.StatusAligned,
		Sentences: result.Sentences(),
	}
	if rec.Language == "" {
		rec.Language = req.Language
	}
	if err := s.store.SaveTranscription(ctx, rec); err != nil {
		return nil, fmt.Errorf("service: save transcription: %w", err)
	}

	s.appendHistory(ctx, rec.ID, "transcribed",
		fmt.Sprintf("%d sentences, %d words, provider %s",
			len(rec.Sentences), len(result.Words), s.sttName))

	s.logger.Info("transcription stored",
		"id", rec.ID,
		"title", rec.Title,
		"sentences", len(rec.Sentences),
		"words", len(result.Words),
		"provider", s.sttName)
	return rec, nil
}

// SubmitCorrection stores corrected text against the transcription and marks
// it pending. The actual realignment happens in [Service.Realign], either
// directly or through the batch loop.
func (s *Service) SubmitCorrection(ctx context.Context, id uuid.UUID, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("service: submit correction: %w", align.ErrEmptyCorrectedText)
	}

	rec, err := s.store.GetTranscription(ctx, id)
	if err != nil {
		return fmt.Errorf("service: submit correction: %w", err)
	}

	rec.PendingText = text
	rec.Status = store.StatusPending
	if err := s.store.SaveTranscription(ctx, rec); err != nil {
		return fmt.Errorf("service: submit correction: %w", err)
	}

	s.appendHistory(ctx, id, "correction_submitted",
		fmt.Sprintf("%d characters", len(text)))
	return nil
}

// Realign aligns the transcription's pending corrected text against its
// stored captions and replaces them with the result. On engine failure the
// record is marked failed and the captions are left untouched.
func (s *Service) Realign(ctx context.Context, id uuid.UUID) (*align.Result, error) {
	rec, err := s.store.GetTranscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: realign: %w", err)
	}
	if strings.TrimSpace(rec.PendingText) == "" {
		return nil, ErrNothingPending
	}

	s.metrics.ActiveJobs.Add(ctx, 1)
	defer s.metrics.ActiveJobs.Add(ctx, -1)

	start := time.Now()
	res, err := s.currentAligner().AlignResult(rec.Sentences, rec.PendingText)
	s.metrics.AlignDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.markFailed(ctx, rec, "realign_failed", err)
		return nil, fmt.Errorf("service: realign: %w", err)
	}

	if err := s.store.ReplaceCaptions(ctx, id, res.Sentences); err != nil {
		return nil, fmt.Errorf("service: realign: %w", err)
	}

	s.metrics.RecordAlignment(ctx, res.Stats.Replaced, res.Stats.Kept, res.Stats.SkippedTokens)
	s.appendHistory(ctx, id, "realigned",
		fmt.Sprintf("replaced %d, kept %d, skipped %d, dropped lines %d, unconsumed %d",
			res.Stats.Replaced, res.Stats.Kept, res.Stats.SkippedTokens,
			res.Stats.DroppedLines, res.Stats.UnconsumedWords))

	s.logger.Info("captions realigned",
		"id", id,
		"sentences", len(res.Sentences),
		"replaced", res.Stats.Replaced,
		"kept", res.Stats.Kept,
		"skipped", res.Stats.SkippedTokens)
	return res, nil
}

// Reshape re-segments the transcription's captions with the current
// segmentation options and replaces them with the result.
func (s *Service) Reshape(ctx context.Context, id uuid.UUID) ([]caption.Sentence, error) {
	rec, err := s.store.GetTranscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: reshape: %w", err)
	}

	start := time.Now()
	reshaped, stats, err := segment.ReshapeWithStats(rec.Sentences, s.currentSegOpts())
	s.metrics.ReshapeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("service: reshape: %w", err)
	}

	if err := s.store.ReplaceCaptions(ctx, id, reshaped); err != nil {
		return nil, fmt.Errorf("service: reshape: %w", err)
	}

	s.metrics.RecordReshape(ctx, stats.SentencesSplit, stats.SentencesMerged)
	s.appendHistory(ctx, id, "reshaped",
		fmt.Sprintf("%d sentences in, %d out, split %d, merged %d",
			len(rec.Sentences), len(reshaped), stats.SentencesSplit, stats.SentencesMerged))

	s.logger.Info("captions reshaped",
		"id", id,
		"before", len(rec.Sentences),
		"after", len(reshaped),
		"split", stats.SentencesSplit,
		"merged", stats.SentencesMerged)
	return reshaped, nil
}

// RewriteAndRealign sends the transcription's current text through the
// rewrite provider and realigns the captions against the corrected version.
// When the provider falls back to the original text the captions are left
// untouched and [ErrRewriteFellBack] is returned.
func (s *Service) RewriteAndRealign(ctx context.Context, id uuid.UUID, glossary []string) (*align.Result, error) {
	if s.rewrite == nil {
		return nil, ErrNoRewriteProvider
	}

	rec, err := s.store.GetTranscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: rewrite: %w", err)
	}
	if len(rec.Sentences) == 0 {
		return nil, fmt.Errorf("service: rewrite: %w", align.ErrNoCaptions)
	}

	req := rewrite.Request{
		Text:     sentencesToText(rec.Sentences),
		Language: rec.Language,
		Glossary: glossary,
	}

	start := time.Now()
	res, err := s.rewrite.Rewrite(ctx, req)
	s.metrics.RewriteDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.rewriteName, "rewrite", "error")
		s.metrics.RecordProviderError(ctx, s.rewriteName, "rewrite")
		return nil, fmt.Errorf("service: rewrite: %w", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.rewriteName, "rewrite", "ok")

	if res.Fallback {
		s.appendHistory(ctx, id, "rewrite_fallback", "provider returned unusable output")
		s.logger.Warn("rewrite provider fell back, captions unchanged",
			"id", id, "provider", s.rewriteName)
		return nil, ErrRewriteFellBack
	}

	if err := s.SubmitCorrection(ctx, id, res.Text); err != nil {
		return nil, err
	}
	return s.Realign(ctx, id)
}

// ProcessPending realigns every pending transcription, at most limit records
// per call, fanning out over the configured worker count. Per-record failures
// are logged and counted but do not abort the batch; the only error returned
// is a store listing failure.
func (s *Service) ProcessPending(ctx context.Context, limit int) (processed int, failed int, err error) {
	recs, err := s.store.ListPending(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("service: list pending: %w", err)
	}
	if len(recs) == 0 {
		return 0, 0, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, rec := range recs {
		g.Go(func() error {
			_, alignErr := s.Realign(gctx, rec.ID)
			mu.Lock()
			defer mu.Unlock()
			if alignErr != nil {
				failed++
				s.logger.Error("batch realign failed",
					"id", rec.ID, "error", alignErr)
				return nil // keep the batch going
			}
			processed++
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; Wait only observes ctx

	if err := ctx.Err(); err != nil {
		return processed, failed, err
	}
	return processed, failed, nil
}

// markFailed flips the record to the failed state and logs the reason.
// Best-effort: a store error here is logged, not returned, so the original
// engine error stays the primary failure.
func (s *Service) markFailed(ctx context.Context, rec *store.TranscriptionRecord, action string, cause error) {
	rec.Status = store.StatusFailed
	if err := s.store.SaveTranscription(ctx, rec); err != nil {
		s.logger.Error("failed to mark transcription failed",
			"id", rec.ID, "error", err)
	}
	s.appendHistory(ctx, rec.ID, action, cause.Error())
}

// appendHistory writes an audit entry. Best-effort: history is advisory and
// must never fail the operation that produced it.
func (s *Service) appendHistory(ctx context.Context, id uuid.UUID, action, detail string) {
	err := s.store.AppendHistory(ctx, store.HistoryEntry{
		TranscriptionID: id,
		Action:          action,
		Detail:          detail,
	})
	if err != nil {
		s.logger.Warn("failed to append history entry",
			"id", id, "action", action, "error", err)
	}
}

// sentencesToText renders sentences one per line, the layout the rewrite
// prompt contract expects.
func sentencesToText(sentences []caption.Sentence) string {
	lines := make([]string, len(sentences))
	for i, s := range sentences {
		lines[i] = s.Text
	}
	return strings.Join(lines, "\n")
}
