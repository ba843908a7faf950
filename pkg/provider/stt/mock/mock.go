// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to verify that the caller transcribes with the expected
// TranscribeConfig and to feed a controlled Result into the pipeline.
//
// Example:
//
//	p := &mock.Provider{Result: &stt.Result{Text: "hello world"}}
//	res, _ := p.Transcribe(ctx, audio, cfg)
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/skein-media/retime/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is a copy of the bytes read from the audio reader.
	Audio []byte
	// Cfg is the TranscribeConfig passed to Transcribe.
	Cfg stt.TranscribeConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe. If nil, Transcribe returns an empty
	// Result.
	Result *stt.Result

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe drains audio, records the call, and returns Result, TranscribeErr.
func (p *Provider) Transcribe(ctx context.Context, audio io.Reader, cfg stt.TranscribeConfig) (*stt.Result, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Audio: data, Cfg: cfg})
	if p.TranscribeErr != nil {
		return nil, p.TranscribeErr
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &stt.Result{}, nil
}

// TranscribeCallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) TranscribeCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
