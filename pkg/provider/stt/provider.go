// Package stt defines the Provider interface for speech-to-text backends.
//
// The engine's contract with transcription is narrow: given audio, return a
// timed word list. Providers wrap a batch transcription service (a local
// whisper-server, Deepgram's pre-recorded API) and return an explicit,
// validated [Result] — never a dynamic SDK payload. [Result.Sentences]
// converts the flat word stream into canonical caption sentences so fresh
// transcriptions enter the realignment engine in the same shape as persisted
// ones.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"io"
)

// TranscribeConfig carries recognition hints for a single transcription call.
type TranscribeConfig struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en",
	// "de-DE"). Empty lets the provider auto-detect, if supported.
	Language string

	// Keywords lists vocabulary hints that increase recognition probability
	// for uncommon words. Providers without keyword support ignore it.
	Keywords []string
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe submits the audio read from audio and returns the timed
	// word list. The audio container format is provider-specific; both
	// bundled providers accept WAV.
	//
	// Returns an error if the request fails, the response cannot be
	// decoded, or ctx is cancelled. The returned Result is validated.
	Transcribe(ctx context.Context, audio io.Reader, cfg TranscribeConfig) (*Result, error)
}
