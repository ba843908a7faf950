package resilience

import (
	"context"

	"github.com/skein-media/retime/pkg/provider/rewrite"
)

// RewriteFallback implements [rewrite.Provider] with automatic failover across
// multiple correction backends. Each backend has its own circuit breaker; when
// the primary fails or its breaker is open, the next healthy fallback is tried.
type RewriteFallback struct {
	group *FallbackGroup[rewrite.Provider]
}

// Compile-time interface assertion.
var _ rewrite.Provider = (*RewriteFallback)(nil)

// NewRewriteFallback creates a [RewriteFallback] with primary as the preferred
// backend.
func NewRewriteFallback(primary rewrite.Provider, primaryName string, cfg FallbackConfig) *RewriteFallback {
	return &RewriteFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional rewrite provider as a fallback.
func (f *RewriteFallback) AddFallback(name string, provider rewrite.Provider) {
	f.group.AddFallback(name, provider)
}

// Rewrite sends the request to the first healthy provider and returns its
// result. If the primary fails, subsequent fallbacks are tried.
func (f *RewriteFallback) Rewrite(ctx context.Context, req rewrite.Request) (*rewrite.Result, error) {
	return ExecuteWithResult(f.group, func(p rewrite.Provider) (*rewrite.Result, error) {
		return p.Rewrite(ctx, req)
	})
}
