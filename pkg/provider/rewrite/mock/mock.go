// Package mock provides a test double for the rewrite.Provider interface.
//
// Use Provider to feed controlled corrected text into the pipeline and to
// inspect the requests the caller made.
package mock

import (
	"context"
	"sync"

	"github.com/skein-media/retime/pkg/provider/rewrite"
)

// RewriteCall records a single invocation of Provider.Rewrite.
type RewriteCall struct {
	// Ctx is the context passed to Rewrite.
	Ctx context.Context
	// Req is the request passed to Rewrite.
	Req rewrite.Request
}

// Provider is a mock implementation of rewrite.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Rewrite. If nil, Rewrite echoes the request text
	// back unchanged.
	Result *rewrite.Result

	// RewriteErr, if non-nil, is returned as the error from Rewrite.
	RewriteErr error

	// RewriteCalls records every call to Rewrite.
	RewriteCalls []RewriteCall
}

// Rewrite records the call and returns Result, RewriteErr.
func (p *Provider) Rewrite(ctx context.Context, req rewrite.Request) (*rewrite.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RewriteCalls = append(p.RewriteCalls, RewriteCall{Ctx: ctx, Req: req})
	if p.RewriteErr != nil {
		return nil, p.RewriteErr
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &rewrite.Result{Text: req.Text}, nil
}

// RewriteCallCount returns the number of Rewrite calls. Thread-safe.
func (p *Provider) RewriteCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.RewriteCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RewriteCalls = nil
}

// Ensure Provider implements rewrite.Provider at compile time.
var _ rewrite.Provider = (*Provider)(nil)
