package render

import (
	"context"
	"fmt"
	"time"

	"github.com/tldrprivacy/policyscout/internal/model"
)

// WaitPolicy selects how long a render waits for the page to settle.
type WaitPolicy int

const (
	// WaitFast waits until the document body is available.
	WaitFast WaitPolicy = iota

	// WaitSettled waits until the page's network activity has almost stopped.
	WaitSettled
)

// String returns a short name for logging.
func (w WaitPolicy) String() string {
	switch w {
	case WaitFast:
		return "fast"
	case WaitSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Options controls a single render.
type Options struct {
	// Wait is the readiness condition.
	Wait WaitPolicy

	// Timeout bounds the whole session. Zero means no timeout beyond ctx.
	Timeout time.Duration
}

// Renderer renders a page and returns its text and links.
//
// Implementations must release every resource they acquire before Render
// returns, on success and on failure. Failures are reported as *RenderError.
type Renderer interface {
	Render(ctx context.Context, url string, opts Options) (*model.Page, error)
}

// RenderError reports a navigation, timeout or network failure.
type RenderError struct {
	// URL is the address that failed to render.
	URL string

	// Wait is the policy the failed attempt used.
	Wait WaitPolicy

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s (%s): %v", e.URL, e.Wait, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// withTimeout applies opts.Timeout to ctx when set.
func withTimeout(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	return context.WithCancel(ctx)
}
