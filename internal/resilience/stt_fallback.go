package resilience

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/skein-media/retime/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// STT backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs the audio through the first healthy provider. The audio is
// buffered up front so that a failed primary does not leave the fallbacks with
// a partially consumed reader.
func (f *STTFallback) Transcribe(ctx context.Context, audio io.Reader, cfg stt.TranscribeConfig) (*stt.Result, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("resilience: buffer audio: %w", err)
	}
	return ExecuteWithResult(f.group, func(p stt.Provider) (*stt.Result, error) {
		return p.Transcribe(ctx, bytes.NewReader(data), cfg)
	})
}
