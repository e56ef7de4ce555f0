// Package fetch provides the adversarial HTTP client used by retailer
// adapters: retries with exponential backoff, per-adapter request pacing,
// anti-bot challenge detection, transparent gzip for sitemaps, and an
// optional headless-browser escalation.
package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultUserAgent identifies the crawler honestly, with a contact address.
const DefaultUserAgent = "WorthItBot/1.0 (+https://worthit.tech; research-price-comparison; contact=ops@worthit.tech)"

// Statuses retried with backoff. Everything else non-2xx fails immediately.
var retryableStatuses = map[int]bool{
	403: true, 408: true, 425: true, 429: true,
	500: true, 502: true, 503: true, 504: true,
}

// IsRetryableStatus reports whether an HTTP status is worth another attempt.
func IsRetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// Config holds per-adapter fetch settings.
type Config struct {
	Timeout      time.Duration
	RequestDelay time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	ProxyURL     string
	UserAgent    string
}

// DefaultConfig mirrors the adapter defaults: 15s timeout, 2 retries,
// 600ms backoff base, no pacing.
func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 600 * time.Millisecond,
		UserAgent:    DefaultUserAgent,
	}
}

// Renderer is the external "render URL to HTML" capability used for
// challenged pages. Implemented by internal/browser.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// Archiver persists raw fetched page bodies. Implemented by
// storage.Snapshots.
type Archiver interface {
	SavePage(ctx context.Context, retailer, pageURL, body string) error
}

// Client fetches page text with retries, pacing and challenge detection.
// One client per adapter instance; it is not shared across runs.
type Client struct {
	httpClient *http.Client
	cfg        Config
	renderer   Renderer
	archive    Archiver
	retailer   string
	lastReq    time.Time
}

// NewClient builds a client from config. An invalid proxy URL is ignored in
// favour of the environment proxy settings.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		if proxy, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxy)
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		cfg: cfg,
	}
}

// SetRenderer attaches the browser fallback. When set, a failed or
// challenged FetchText escalates to a render before giving up.
func (c *Client) SetRenderer(r Renderer) {
	c.renderer = r
}

// SetArchive attaches a snapshot archive. Every successfully fetched page
// body is saved best-effort; archive failures never fail the fetch.
func (c *Client) SetArchive(a Archiver, retailer string) {
	c.archive = a
	c.retailer = retailer
}

// Config returns the client's fetch configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// FetchText fetches a URL and returns its body, retrying challenge shells
// with backoff and escalating to the renderer when one is attached.
func (c *Client) FetchText(ctx context.Context, pageURL string) (string, error) {
	text, err := c.fetchTextDirect(ctx, pageURL)
	if err == nil {
		c.snapshot(ctx, pageURL, text)
		return text, nil
	}

	if c.renderer != nil {
		html, rerr := c.renderer.Render(ctx, pageURL)
		if rerr == nil && !LooksLikeChallenge(html) {
			c.snapshot(ctx, pageURL, html)
			return html, nil
		}
	}
	return "", err
}

func (c *Client) snapshot(ctx context.Context, pageURL, body string) {
	if c.archive == nil {
		return
	}
	_ = c.archive.SavePage(ctx, c.retailer, pageURL, body)
}

func (c *Client) fetchTextDirect(ctx context.Context, pageURL string) (string, error) {
	attempts := c.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		body, _, err := c.get(ctx, pageURL)
		if err != nil {
			return "", err
		}
		text := string(body)
		if !LooksLikeChallenge(text) {
			return text, nil
		}
		if attempt < attempts-1 {
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", &Error{Kind: KindChallenge, URL: pageURL, Attempts: attempts}
}

// FetchSitemap fetches a sitemap URL, transparently decompressing gzip
// payloads (".gz" suffix or gzip content type). No challenge handling:
// sitemaps are XML, not rendered pages.
func (c *Client) FetchSitemap(ctx context.Context, sitemapURL string) (string, error) {
	body, resp, err := c.get(ctx, sitemapURL)
	if err != nil {
		return "", err
	}

	contentType := ""
	if resp != nil {
		contentType = strings.ToLower(resp.Header.Get("Content-Type"))
	}
	gzipped := strings.HasSuffix(strings.ToLower(sitemapURL), ".gz") ||
		strings.Contains(contentType, "gzip")

	if gzipped {
		reader, gzErr := gzip.NewReader(bytes.NewReader(body))
		if gzErr == nil {
			if decompressed, readErr := io.ReadAll(reader); readErr == nil {
				body = decompressed
			}
			reader.Close()
		}
		// A payload that looked gzipped but was not falls through raw.
	}
	return string(body), nil
}

// get performs one logical GET with pacing, status classification and
// transport-level retries.
func (c *Client) get(ctx context.Context, pageURL string) ([]byte, *http.Response, error) {
	attempts := c.cfg.MaxRetries + 1
	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.pace(ctx); err != nil {
			return nil, nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, nil, &Error{Kind: KindPermanent, URL: pageURL, Attempts: attempt + 1, Err: err}
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "*/*")

		resp, err := c.httpClient.Do(req)
		c.lastReq = time.Now()
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			lastErr = err
			lastStatus = 0
			if attempt < attempts-1 {
				if serr := c.sleep(ctx, c.backoff(attempt)); serr != nil {
					return nil, nil, serr
				}
				continue
			}
			break
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				lastErr = readErr
				lastStatus = resp.StatusCode
				if attempt < attempts-1 {
					if serr := c.sleep(ctx, c.backoff(attempt)); serr != nil {
						return nil, nil, serr
					}
					continue
				}
				break
			}
			return body, resp, nil
		}

		lastStatus = resp.StatusCode
		lastErr = nil
		if !IsRetryableStatus(resp.StatusCode) {
			return nil, nil, &Error{Kind: KindPermanent, URL: pageURL, Attempts: attempt + 1, LastStatus: resp.StatusCode}
		}
		if attempt < attempts-1 {
			if serr := c.sleep(ctx, c.backoff(attempt)); serr != nil {
				return nil, nil, serr
			}
		}
	}

	return nil, nil, &Error{Kind: KindTransient, URL: pageURL, Attempts: attempts, LastStatus: lastStatus, Err: lastErr}
}

// pace enforces the minimum inter-request gap by sleeping the remainder.
func (c *Client) pace(ctx context.Context) error {
	if c.cfg.RequestDelay <= 0 || c.lastReq.IsZero() {
		return nil
	}
	elapsed := time.Since(c.lastReq)
	if elapsed >= c.cfg.RequestDelay {
		return nil
	}
	return c.sleep(ctx, c.cfg.RequestDelay-elapsed)
}

// backoff is base * 2^attempt with up to 25% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	base := c.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}
	delay := float64(base) * math.Pow(2, float64(attempt))
	jitter := rand.Float64() * 0.25 * delay
	return time.Duration(delay + jitter)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
