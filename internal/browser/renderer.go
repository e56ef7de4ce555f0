// Package browser renders pages through headless Chrome for adapters whose
// hosts block plain HTTP clients. It implements fetch.Renderer.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Config holds renderer settings. ProxyURL may differ from the HTTP client's
// proxy.
type Config struct {
	Timeout   time.Duration
	ProxyURL  string
	UserAgent string
}

// Renderer drives one headless Chrome process. Create once per run and Close
// when the run finishes.
type Renderer struct {
	cfg           Config
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        zerolog.Logger
}

// New launches a headless Chrome allocator. The browser process itself starts
// lazily on the first Render.
func New(cfg Config, logger zerolog.Logger) *Renderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-sync", true),
	)
	if cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Renderer{
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger.With().Str("component", "browser").Logger(),
	}
}

// Render navigates to the URL in a fresh tab and returns the rendered HTML
// once the document body is ready.
func (r *Renderer) Render(ctx context.Context, pageURL string) (string, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()

	timeout := r.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	runCtx, runCancel := context.WithTimeout(tabCtx, timeout)
	defer runCancel()

	r.logger.Debug().Str("url", pageURL).Msg("Rendering page with headless browser")

	actions := []chromedp.Action{}
	if r.cfg.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(r.cfg.UserAgent))
	}

	var html string
	actions = append(actions,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}

// Close shuts down the Chrome process.
func (r *Renderer) Close() {
	r.browserCancel()
	r.allocCancel()
}
