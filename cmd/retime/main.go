// Command retime is the caption realignment server. It polls the store for
// transcriptions with pending corrections, realigns their timing, and serves
// metrics and health endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/skein-media/retime/internal/caption/align"
	"github.com/skein-media/retime/internal/config"
	"github.com/skein-media/retime/internal/health"
	"github.com/skein-media/retime/internal/observe"
	"github.com/skein-media/retime/internal/resilience"
	"github.com/skein-media/retime/internal/service"
	"github.com/skein-media/retime/internal/store"
	"github.com/skein-media/retime/internal/store/postgres"
	"github.com/skein-media/retime/pkg/provider/rewrite"
	"github.com/skein-media/retime/pkg/provider/rewrite/anyllm"
	oairewrite "github.com/skein-media/retime/pkg/provider/rewrite/openai"
	"github.com/skein-media/retime/pkg/provider/stt"
	"github.com/skein-media/retime/pkg/provider/stt/deepgram"
	"github.com/skein-media/retime/pkg/provider/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "retime: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "retime: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("retime starting",
		"config", *configPath,
		"metrics_addr", cfg.Server.MetricsAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "retime",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Store ─────────────────────────────────────────────────────────────────
	var st store.Store
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pgStore, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pgStore.Close()
		st = pgStore
		slog.Info("using postgres store")
	} else {
		st = store.NewMemStore()
		slog.Info("using in-memory store")
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Service ───────────────────────────────────────────────────────────────
	svcOpts := []service.Option{
		service.WithMetrics(metrics),
		service.WithLogger(logger),
		service.WithAlignerOptions(alignerOptions(cfg.Align, logger)...),
		service.WithSegmentOptions(cfg.Segment.SegmentOptions()),
		service.WithWorkers(cfg.Server.Workers()),
	}
	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			slog.Error("failed to create stt provider", "name", name, "err", err)
			return 1
		}
		if fbs := cfg.Providers.STTFallbacks; len(fbs) > 0 {
			group := resilience.NewSTTFallback(p, name, resilience.FallbackConfig{})
			for _, fb := range fbs {
				fp, err := reg.CreateSTT(fb)
				if err != nil {
					slog.Error("failed to create stt fallback", "name", fb.Name, "err", err)
					return 1
				}
				group.AddFallback(fb.Name, fp)
			}
			p = group
			slog.Info("stt failover enabled", "fallbacks", len(fbs))
		}
		svcOpts = append(svcOpts, service.WithSTT(name, p))
		slog.Info("provider created", "kind", "stt", "name", name)
	}
	if name := cfg.Providers.Rewrite.Name; name != "" {
		p, err := reg.CreateRewrite(cfg.Providers.Rewrite)
		if err != nil {
			slog.Error("failed to create rewrite provider", "name", name, "err", err)
			return 1
		}
		if fbs := cfg.Providers.RewriteFallbacks; len(fbs) > 0 {
			group := resilience.NewRewriteFallback(p, name, resilience.FallbackConfig{})
			for _, fb := range fbs {
				fp, err := reg.CreateRewrite(fb)
				if err != nil {
					slog.Error("failed to create rewrite fallback", "name", fb.Name, "err", err)
					return 1
				}
				group.AddFallback(fb.Name, fp)
			}
			p = group
			slog.Info("rewrite failover enabled", "fallbacks", len(fbs))
		}
		svcOpts = append(svcOpts, service.WithRewrite(name, p))
		slog.Info("provider created", "kind", "rewrite", "name", name)
	}
	svc := service.New(st, svcOpts...)

	// ── Metrics + health HTTP server ──────────────────────────────────────────
	var httpServer *http.Server
	if addr := cfg.Server.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		health.New(health.Checker{
			Name: "store",
			Check: func(ctx context.Context) error {
				_, err := st.ListPending(ctx, 1)
				return err
			},
		}).Register(mux)

		httpServer = &http.Server{
			Addr:    addr,
			Handler: observe.Middleware(metrics)(mux),
		}
		go func() {
			slog.Info("metrics server listening", "addr", addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	intervalCh := make(chan time.Duration, 1)
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Any() {
			return
		}
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.AlignChanged {
			svc.SetAlignerOptions(alignerOptions(new.Align, logger)...)
			slog.Info("align configuration reloaded")
		}
		if d.SegmentChanged {
			svc.SetSegmentOptions(new.Segment.SegmentOptions())
			slog.Info("segment configuration reloaded")
		}
		if d.PollIntervalChanged {
			select {
			case intervalCh <- new.Server.PollInterval():
			default:
			}
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	slog.Info("server ready — press Ctrl+C to shut down")

	// ── Poll loop ─────────────────────────────────────────────────────────────
	batchLimit := cfg.Server.Workers() * 4
	ticker := time.NewTicker(cfg.Server.PollInterval())
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case d := <-intervalCh:
			ticker.Reset(d)
			slog.Info("poll interval changed", "interval", d)
		case <-ticker.C:
			processed, failed, err := svc.ProcessPending(ctx, batchLimit)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("batch processing error", "err", err)
				continue
			}
			if processed > 0 || failed > 0 {
				slog.Info("batch processed", "realigned", processed, "failed", failed)
			}
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	if httpServer != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── Rewrite ───────────────────────────────────────────────────────────────

	// openai uses the native SDK for full control over request parameters.
	reg.RegisterRewrite("openai", func(entry config.ProviderEntry) (rewrite.Provider, error) {
		var opts []oairewrite.Option
		if entry.BaseURL != "" {
			opts = append(opts, oairewrite.WithBaseURL(entry.BaseURL))
		}
		return oairewrite.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends go through any-llm. anthropic, gemini, deepseek,
	// mistral, groq, llamacpp, llamafile share the APIKey + BaseURL pattern.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterRewrite(providerName, func(entry config.ProviderEntry) (rewrite.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterRewrite("ollama", func(entry config.ProviderEntry) (rewrite.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar lets the config
// watcher adjust verbosity at runtime.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// alignerOptions converts the align config into engine options, attaching the
// process logger when issue logging is requested.
func alignerOptions(ac config.AlignConfig, logger *slog.Logger) []align.Option {
	opts := ac.AlignerOptions()
	if ac.LogIssues {
		opts = append(opts, align.WithIssueLogging(logger))
	}
	return opts
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
