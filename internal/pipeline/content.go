package pipeline

import (
	"context"
	"net/url"
	"time"

	"github.com/ppiankov/verity/internal/cache"
	"github.com/ppiankov/verity/internal/extract"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/util"
	"github.com/ppiankov/verity/internal/worker"
)

// ContentFetcher returns the readable text of a source, or "" when the
// source is unreachable, disallowed or empty.
type ContentFetcher struct {
	fetcher   *Fetcher
	extractor *extract.TextExtractor
	robots    *util.RobotsChecker
	limiter   *worker.Limiter
	cache     cache.Cache
	cacheTTL  time.Duration
	maxChars  int
}

// NewContentFetcher wraps fetcher with text extraction limited to maxChars
func NewContentFetcher(fetcher *Fetcher, maxChars int) *ContentFetcher {
	if maxChars <= 0 {
		maxChars = extract.DefaultMaxChars
	}
	return &ContentFetcher{
		fetcher:   fetcher,
		extractor: extract.NewTextExtractor(maxChars),
		cache:     cache.Nop{},
		maxChars:  maxChars,
	}
}

// WithRobots makes the fetcher honour robots.txt
func (c *ContentFetcher) WithRobots(robots *util.RobotsChecker) *ContentFetcher {
	c.robots = robots
	return c
}

// WithLimiter applies per-domain rate limits
func (c *ContentFetcher) WithLimiter(limiter *worker.Limiter) *ContentFetcher {
	c.limiter = limiter
	return c
}

// WithCache stores extracted text for ttl
func (c *ContentFetcher) WithCache(store cache.Cache, ttl time.Duration) *ContentFetcher {
	if store != nil {
		c.cache = store
	}
	c.cacheTTL = ttl
	return c
}

// FetchText downloads rawURL and extracts its text. Failures are logged
// and reported as "".
func (c *ContentFetcher) FetchText(ctx context.Context, rawURL string) string {
	logger := logging.From(ctx).With("url", rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		logger.Warn("skipping source with unsupported url")
		return ""
	}

	key := cache.PageKey(rawURL, c.maxChars)
	if data, ok := c.cache.Get(key); ok {
		logger.Debug("page cache hit")
		return string(data)
	}

	var crawlDelay time.Duration
	if c.robots != nil {
		allowed, delay, err := c.robots.CanFetch(ctx, rawURL)
		if err != nil {
			logger.Debug("robots check failed", "error", err)
		}
		if !allowed {
			logger.Warn("robots.txt disallows source")
			return ""
		}
		crawlDelay = delay
	}

	if c.limiter != nil {
		if err := c.limiter.WaitWithDelay(ctx, rawURL, crawlDelay); err != nil {
			logger.Warn("rate limiter wait aborted", "error", err)
			return ""
		}
	}

	result, err := c.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		logger.Warn("fetch failed", "error", err)
		return ""
	}

	if !extract.IsSupportedContentType(result.ContentType) {
		logger.Warn("unsupported content type", "content_type", result.ContentType)
		return ""
	}

	page, err := c.extractor.Extract(result.HTML, result.FinalURL, result.ContentType)
	if err != nil {
		logger.Warn("extract failed", "error", err)
		return ""
	}

	if page.Text != "" {
		if err := c.cache.Set(key, []byte(page.Text), c.cacheTTL); err != nil {
			logger.Debug("page cache write failed", "error", err)
		}
	}
	return page.Text
}
