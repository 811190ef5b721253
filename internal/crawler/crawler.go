// Package crawler walks a single site politely: same origin only, paced
// requests, bounded page count, and retries with backoff for transient
// failures.
package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/log"
	"github.com/sitebrain/sitebrain/internal/security"
)

// PageHandler receives each successfully fetched HTML page. Returning an
// error marks the page failed but does not stop the crawl.
type PageHandler func(pageURL *url.URL, body []byte) error

// Stats summarizes one crawl run.
type Stats struct {
	Fetched int
	Failed  int
	Skipped int
}

// Crawler drives a colly collector over the configured site.
type Crawler struct {
	cfg     *config.Config
	logger  log.Logger
	handler PageHandler
	retry   RetryPolicy
	agents  *agentPool

	mu       sync.Mutex
	fetched  int
	failed   int
	skipped  int
	attempts map[string]int
}

// New creates a Crawler that feeds fetched pages to handler. The site URL
// is vetted up front so the crawl can never target a forbidden host.
func New(cfg *config.Config, logger log.Logger, handler PageHandler) (*Crawler, error) {
	if handler == nil {
		return nil, fmt.Errorf("crawler needs a page handler")
	}
	if err := security.NewURLGuard().Validate(cfg.SiteURL); err != nil {
		return nil, fmt.Errorf("site url rejected: %w", err)
	}
	return &Crawler{
		cfg:      cfg,
		logger:   logger,
		handler:  handler,
		retry:    DefaultRetryPolicy(),
		agents:   newAgentPool(cfg.UserAgents),
		attempts: make(map[string]int),
	}, nil
}

// SetRetryPolicy replaces the default retry policy. Call before Run.
func (c *Crawler) SetRetryPolicy(p RetryPolicy) {
	c.retry = p
}

// Run crawls from the configured seed URLs until the page budget is spent
// or the frontier is empty. Cancelling ctx stops new requests; the page
// in flight completes.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	site, err := url.Parse(c.cfg.SiteURL)
	if err != nil {
		return Stats{}, fmt.Errorf("parsing site url %q: %w", c.cfg.SiteURL, err)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(site.Hostname()),
	)
	collector.SetRequestTimeout(time.Duration(c.cfg.FetchTimeout) * time.Millisecond)

	minDelay := time.Duration(c.cfg.CrawlDelayMin) * time.Millisecond
	maxDelay := time.Duration(c.cfg.CrawlDelayMax) * time.Millisecond
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       minDelay,
		RandomDelay: maxDelay - minDelay,
	}); err != nil {
		return Stats{}, fmt.Errorf("configuring crawl rate: %w", err)
	}

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil || c.budgetSpent() {
			r.Abort()
			return
		}
		r.Headers.Set("User-Agent", c.agents.pick())
	})

	collector.OnResponse(func(r *colly.Response) {
		if !isHTML(r.Headers.Get("Content-Type")) {
			c.count(func() { c.skipped++ })
			return
		}
		if err := c.handler(r.Request.URL, r.Body); err != nil {
			c.logger.Warn("page handler failed",
				"url", r.Request.URL.String(),
				"error", err)
			c.count(func() { c.failed++ })
			return
		}
		c.count(func() { c.fetched++ })
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		// Visit enforces the domain allowlist and skips seen URLs.
		_ = e.Request.Visit(normalizeLink(link))
	})

	collector.OnError(func(r *colly.Response, err error) {
		c.onError(ctx, r, err)
	})

	for _, seed := range c.cfg.SeedURLs() {
		if ctx.Err() != nil {
			break
		}
		if err := collector.Visit(seed); err != nil {
			c.logger.Warn("seed not visitable", "url", seed, "error", err)
		}
	}
	collector.Wait()

	stats := c.stats()
	c.logger.Info("crawl finished",
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"skipped", stats.Skipped)
	return stats, ctx.Err()
}

// onError retries transient failures and gives up on terminal ones. A 404
// is terminal for that page but never fails the crawl.
func (c *Crawler) onError(ctx context.Context, r *colly.Response, err error) {
	u := r.Request.URL.String()

	if r.StatusCode == http.StatusNotFound {
		c.logger.Debug("page not found", "url", u)
		c.count(func() { c.skipped++ })
		return
	}
	if r.StatusCode >= 400 && r.StatusCode < 500 && r.StatusCode != http.StatusTooManyRequests {
		c.logger.Warn("page rejected", "url", u, "status", r.StatusCode)
		c.count(func() { c.failed++ })
		return
	}

	c.mu.Lock()
	c.attempts[u]++
	attempt := c.attempts[u]
	c.mu.Unlock()

	if c.retry.Exhausted(attempt) || ctx.Err() != nil {
		c.logger.Warn("page failed after retries",
			"url", u,
			"attempts", attempt,
			"error", err)
		c.count(func() { c.failed++ })
		return
	}

	delay := c.retry.Delay(attempt + 1)
	c.logger.Debug("retrying page",
		"url", u,
		"attempt", attempt,
		"delay", delay)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		c.count(func() { c.failed++ })
		return
	}
	if err := r.Request.Retry(); err != nil {
		c.count(func() { c.failed++ })
	}
}

// budgetSpent counts every distinct URL the crawl resolved, including
// 404s and handler failures. Only successful pages would let an
// error-heavy site drag the crawl through its whole frontier.
func (c *Crawler) budgetSpent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetched+c.failed+c.skipped >= c.cfg.MaxPages
}

func (c *Crawler) count(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

func (c *Crawler) stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Fetched: c.fetched, Failed: c.failed, Skipped: c.skipped}
}

// normalizeLink strips fragments so anchors on one page do not multiply
// into distinct frontier entries.
func normalizeLink(link string) string {
	if idx := strings.IndexByte(link, '#'); idx >= 0 {
		link = link[:idx]
	}
	return link
}

func isHTML(contentType string) bool {
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml")
}
