package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/skein-media/retime/internal/caption/segment"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":     {"deepgram", "whisper", "mock"},
	"rewrite": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.PollIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("server.poll_interval_seconds %.2f must not be negative", cfg.Server.PollIntervalSeconds))
	}
	if cfg.Server.BatchWorkers < 0 {
		errs = append(errs, fmt.Errorf("server.batch_workers %d must not be negative", cfg.Server.BatchWorkers))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("rewrite", cfg.Providers.Rewrite.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		validateProviderName("stt", fb.Name)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name must not be empty", i))
		}
	}
	for i, fb := range cfg.Providers.RewriteFallbacks {
		validateProviderName("rewrite", fb.Name)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.rewrite_fallbacks[%d].name must not be empty", i))
		}
	}
	if len(cfg.Providers.STTFallbacks) > 0 && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallbacks requires a primary providers.stt"))
	}
	if len(cfg.Providers.RewriteFallbacks) > 0 && cfg.Providers.Rewrite.Name == "" {
		errs = append(errs, errors.New("providers.rewrite_fallbacks requires a primary providers.rewrite"))
	}

	// Storage availability
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; using the in-memory store, data is lost on restart")
	}

	// Align thresholds
	if cfg.Align.ComplexityThreshold < 0 || cfg.Align.ComplexityThreshold > 1 {
		errs = append(errs, fmt.Errorf("align.complexity_threshold %.2f is out of range [0, 1]", cfg.Align.ComplexityThreshold))
	}
	if cfg.Align.FuzzyThreshold < 0 || cfg.Align.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("align.fuzzy_threshold %.2f is out of range [0, 1]", cfg.Align.FuzzyThreshold))
	}

	// Segment strategies and bounds
	if s := cfg.Segment.SplitStrategy; s != "" && !segment.SplitStrategy(s).IsValid() {
		errs = append(errs, fmt.Errorf("segment.split_strategy %q is invalid; valid values: by-words, by-duration, by-punctuation, smart", s))
	}
	if s := cfg.Segment.MergeStrategy; s != "" && !segment.MergeStrategy(s).IsValid() {
		errs = append(errs, fmt.Errorf("segment.merge_strategy %q is invalid; valid values: conservative, balanced, aggressive", s))
	}
	if cfg.Segment.MinWords > 0 && cfg.Segment.MaxWords > 0 && cfg.Segment.MaxWords < cfg.Segment.MinWords {
		errs = append(errs, fmt.Errorf("segment.max_words %d is smaller than segment.min_words %d", cfg.Segment.MaxWords, cfg.Segment.MinWords))
	}
	if cfg.Segment.MinSeconds > 0 && cfg.Segment.MaxSeconds > 0 && cfg.Segment.MaxSeconds < cfg.Segment.MinSeconds {
		errs = append(errs, fmt.Errorf("segment.max_seconds %.2f is smaller than segment.min_seconds %.2f", cfg.Segment.MaxSeconds, cfg.Segment.MinSeconds))
	}
	if cfg.Segment.MinCharacters > 0 && cfg.Segment.MaxCharacters > 0 && cfg.Segment.MaxCharacters < cfg.Segment.MinCharacters {
		errs = append(errs, fmt.Errorf("segment.max_characters %d is smaller than segment.min_characters %d", cfg.Segment.MaxCharacters, cfg.Segment.MinCharacters))
	}
	if cfg.Segment.MinWordConfidence < 0 || cfg.Segment.MinWordConfidence > 1 {
		errs = append(errs, fmt.Errorf("segment.min_word_confidence %.2f is out of range [0, 1]", cfg.Segment.MinWordConfidence))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
