package crawl

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/fwojciec/siteclone"
)

// Capturer runs the per-URL capture pipeline on a renderer:
// load, settle, extract, quality gate and fingerprint.
type Capturer struct {
	Policy     *siteclone.CrawlPolicy
	Links      siteclone.LinkExtractor
	Extractor  siteclone.Extractor
	Normalizer siteclone.ContentNormalizer

	// Optional collaborators.
	Frameworks  siteclone.FrameworkDetector
	Sanitizer   siteclone.Sanitizer
	RateLimiter siteclone.DomainLimiter
	Logger      *slog.Logger

	// Screenshots captures a PNG per page.
	Screenshots bool

	// HoverTriggers are menu trigger texts hovered during settling when
	// the policy enables HoverOnCapture.
	HoverTriggers []string
}

// Snapshot is a loaded and settled page.
type Snapshot struct {
	URL        string
	HTML       string
	Links      []siteclone.DiscoveredLink
	Screenshot []byte
}

// Capture is a page that passed the quality gate.
type Capture struct {
	URL         string
	Title       string
	HTML        string // markup to persist, sanitized when enabled
	Links       []siteclone.DiscoveredLink
	Fingerprint Fingerprint
	Screenshot  []byte
}

// Capture loads and processes rawURL.
func (c *Capturer) Capture(ctx context.Context, r siteclone.Renderer, rawURL string, timeout time.Duration) (*Capture, error) {
	snap, err := c.Load(ctx, r, rawURL, timeout)
	if err != nil {
		return nil, err
	}
	return c.Process(snap)
}

// Load navigates to rawURL, settles the page and reads its markup and
// links. Navigation and settle failures, including expiry of either
// phase's timeout, are returned as EPAGELOAD.
func (c *Capturer) Load(ctx context.Context, r siteclone.Renderer, rawURL string, timeout time.Duration) (*Snapshot, error) {
	if c.RateLimiter != nil {
		if u, err := url.Parse(rawURL); err == nil {
			if err := c.RateLimiter.Wait(ctx, u.Host); err != nil {
				return nil, err
			}
		}
	}

	if err := r.Navigate(ctx, rawURL, c.Policy.WaitStrategy, timeout); err != nil {
		return nil, c.loadError(ctx, "load", rawURL, err)
	}

	settleCtx := ctx
	if c.Policy.SettleTimeout > 0 {
		var cancel context.CancelFunc
		settleCtx, cancel = context.WithTimeout(ctx, c.Policy.SettleTimeout)
		defer cancel()
	}
	if err := c.settle(settleCtx, r); err != nil {
		return nil, c.loadError(ctx, "settle", rawURL, err)
	}

	html, err := r.HTML(ctx)
	if err != nil {
		return nil, c.loadError(ctx, "read", rawURL, err)
	}

	finalURL := rawURL
	if current, err := r.URL(ctx); err == nil && current != "" {
		finalURL = current
	}

	snap := &Snapshot{URL: finalURL, HTML: html}
	if c.Links != nil {
		links, err := c.Links.ExtractLinks(html, finalURL)
		if err != nil {
			c.logger().Debug("extract links", "url", finalURL, "err", err)
		}
		snap.Links = links
	}
	if c.Screenshots {
		shot, err := r.Screenshot(ctx)
		if err != nil {
			c.logger().Debug("screenshot", "url", finalURL, "err", err)
		}
		snap.Screenshot = shot
	}
	return snap, nil
}

// Process extracts content from a snapshot, rejects thin pages with
// ELOWCONTENT and fingerprints the normalized main content. The full page
// is fingerprinted when the extractor finds no main content.
func (c *Capturer) Process(snap *Snapshot) (*Capture, error) {
	extracted, err := c.Extractor.Extract(snap.HTML)
	if err != nil {
		return nil, siteclone.Errorf(siteclone.ELOWCONTENT, "extract %s: %v", snap.URL, err)
	}
	if n := len([]rune(extracted.Text)); n < c.Policy.MinContentLength {
		return nil, siteclone.Errorf(siteclone.ELOWCONTENT, "%s has %d characters of content, need %d", snap.URL, n, c.Policy.MinContentLength)
	}

	source := extracted.ContentHTML
	if strings.TrimSpace(source) == "" {
		source = snap.HTML
	}
	normalized, err := c.Normalizer.Normalize(source)
	if err != nil {
		return nil, err
	}

	out := snap.HTML
	if c.Policy.SanitizeHTML && c.Sanitizer != nil {
		if out, err = c.Sanitizer.Sanitize(snap.HTML); err != nil {
			return nil, err
		}
	}

	return &Capture{
		URL:         snap.URL,
		Title:       extracted.Title,
		HTML:        out,
		Links:       snap.Links,
		Fingerprint: NewFingerprint(normalized),
		Screenshot:  snap.Screenshot,
	}, nil
}

// loadError classifies a navigation or settle failure. Caller cancellation
// passes through unchanged; anything else is a retryable page load error.
func (c *Capturer) loadError(ctx context.Context, op, rawURL string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
		return ctxErr
	}
	return siteclone.Errorf(siteclone.EPAGELOAD, "%s %s: %v", op, rawURL, err)
}

func (c *Capturer) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}
