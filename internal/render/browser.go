package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/tldrprivacy/policyscout/internal/model"
)

// Viewport used for every session.
const (
	viewportWidth  = 1366
	viewportHeight = 768
)

// textScript returns the visible text of the body, or "" for documents
// without one.
const textScript = `document.body ? document.body.innerText : ""`

// anchorsScript returns every anchor in document order.
const anchorsScript = `Array.from(document.querySelectorAll("a")).map(a => ({
	text: (a.innerText || "").trim(),
	href: a.href || ""
}))`

// ErrBrowserClosed is returned by Render after Close.
var ErrBrowserClosed = errors.New("browser is closed")

// Browser renders pages in headless Chrome.
//
// Design decision: One Chrome process is shared by all renders and each
// Render call opens its own browser context. Starting Chrome costs far more
// than a context, while separate contexts keep cookies and storage from one
// site out of the next.
type Browser struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	logger        *slog.Logger

	closeOnce sync.Once
	closed    atomic.Bool
}

// browserConfig collects BrowserOption values.
type browserConfig struct {
	execPath  string
	userAgent string
	headless  bool
	noSandbox bool
	logger    *slog.Logger
}

// BrowserOption configures a Browser.
type BrowserOption func(*browserConfig)

// WithExecPath sets the Chrome binary. Empty uses chromedp's lookup.
func WithExecPath(path string) BrowserOption {
	return func(c *browserConfig) {
		c.execPath = path
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) BrowserOption {
	return func(c *browserConfig) {
		c.userAgent = ua
	}
}

// WithHeadless toggles headless mode. Enabled by default.
func WithHeadless(headless bool) BrowserOption {
	return func(c *browserConfig) {
		c.headless = headless
	}
}

// WithNoSandbox disables the Chrome sandbox, which containers usually need.
func WithNoSandbox(noSandbox bool) BrowserOption {
	return func(c *browserConfig) {
		c.noSandbox = noSandbox
	}
}

// WithBrowserLogger sets the logger.
func WithBrowserLogger(logger *slog.Logger) BrowserOption {
	return func(c *browserConfig) {
		c.logger = logger
	}
}

// NewBrowser starts Chrome and returns a Browser ready to render.
// The process lives until Close is called or ctx is cancelled.
func NewBrowser(ctx context.Context, opts ...BrowserOption) (*Browser, error) {
	cfg := &browserConfig{
		userAgent: DefaultUserAgent,
		headless:  true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.UserAgent(cfg.userAgent),
		chromedp.WindowSize(viewportWidth, viewportHeight),
		chromedp.Flag("headless", cfg.headless),
	)
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if cfg.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Run with no actions starts the process so launch errors surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	return &Browser{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		logger:        cfg.logger,
	}, nil
}

// Close shuts Chrome down. It is safe to call more than once.
func (b *Browser) Close() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.cancelBrowser()
		b.cancelAlloc()
	})
}

// Render loads pageURL in a fresh browser context and extracts its text
// and anchors.
func (b *Browser) Render(ctx context.Context, pageURL string, opts Options) (*model.Page, error) {
	if b.closed.Load() {
		return nil, &RenderError{URL: pageURL, Wait: opts.Wait, Err: ErrBrowserClosed}
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	defer cancelTab()

	// The tab must also stop when the caller's context does.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	runCtx, cancel := withTimeout(tabCtx, opts)
	defer cancel()

	var (
		text  string
		links []model.Link
	)

	actions := []chromedp.Action{
		chromedp.EmulateViewport(viewportWidth, viewportHeight),
	}
	actions = append(actions, navigate(runCtx, pageURL, opts.Wait)...)
	actions = append(actions,
		chromedp.Evaluate(textScript, &text),
		chromedp.Evaluate(anchorsScript, &links),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &RenderError{URL: pageURL, Wait: opts.Wait, Err: err}
	}

	kept := links[:0]
	for _, l := range links {
		if l.Href != "" {
			kept = append(kept, l)
		}
	}

	b.logger.Debug("rendered page", "url", pageURL, "wait", opts.Wait, "chars", len(text), "links", len(kept))

	return &model.Page{URL: pageURL, Text: text, Links: kept}, nil
}

// navigate returns the actions that load pageURL and wait per policy.
func navigate(ctx context.Context, pageURL string, wait WaitPolicy) []chromedp.Action {
	if wait != WaitSettled {
		return []chromedp.Action{
			chromedp.Navigate(pageURL),
			chromedp.WaitReady("body"),
		}
	}

	idle := make(chan struct{}, 1)
	var started atomic.Bool
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok {
			return
		}
		switch e.Name {
		case "init":
			started.Store(true)
		case "networkAlmostIdle":
			if !started.Load() {
				return
			}
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	return []chromedp.Action{
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(pageURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			select {
			case <-idle:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
		chromedp.WaitReady("body"),
	}
}
