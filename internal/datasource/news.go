package datasource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/tradelens/internal/cache"
	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/pkg/models"
)

// News reads headlines from a set of RSS or Atom feeds.
type News struct {
	feeds   []string
	limiter *RateLimiter
	cache   cache.Cache
	ttl     time.Duration
}

// NewsOption configures News.
type NewsOption func(*News)

// WithNewsCache caches merged headlines for ttl.
func WithNewsCache(c cache.Cache, ttl time.Duration) NewsOption {
	return func(n *News) { n.cache, n.ttl = c, ttl }
}

// WithRateLimiter replaces the default per-minute limiter.
func WithRateLimiter(rl *RateLimiter) NewsOption {
	return func(n *News) { n.limiter = rl }
}

// NewNews creates a feed reader over feeds.
func NewNews(feeds []string, opts ...NewsOption) *News {
	n := &News{
		feeds:   feeds,
		limiter: PerMinute(30),
		ttl:     10 * time.Minute,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the data source name.
func (n *News) Name() string { return "rss" }

// Headlines returns the newest items across all feeds. Failing feeds are
// skipped; an error is returned only when every feed failed.
func (n *News) Headlines(ctx context.Context, limit int) ([]models.NewsItem, error) {
	if len(n.feeds) == 0 {
		return nil, ErrNoFeeds
	}
	key := cache.LatestNewsPrefix + "rss"
	var items []models.NewsItem
	if n.cache != nil && n.cache.Get(ctx, key, &items) == nil {
		return clip(items, limit), nil
	}

	results := make([][]models.NewsItem, len(n.feeds))
	errs := make([]error, len(n.feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, feedURL := range n.feeds {
		g.Go(func() error {
			results[i], errs[i] = n.fetch(gctx, feedURL)
			if errs[i] != nil {
				logger.Warn(ctx, "news feed failed", "feed", feedURL, "error", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i := range n.feeds {
		if errs[i] != nil {
			failed++
			continue
		}
		items = append(items, results[i]...)
	}
	if failed == len(n.feeds) {
		return nil, fmt.Errorf("all %d news feeds failed: %w", failed, errs[0])
	}

	sortByDate(items)
	if n.cache != nil {
		if err := n.cache.Set(ctx, key, items, n.ttl); err != nil {
			logger.Warn(ctx, "news cache write failed", "error", err)
		}
	}
	return clip(items, limit), nil
}

// ForSymbol returns headlines that mention symbol or a known alias of it.
func (n *News) ForSymbol(ctx context.Context, symbol string, limit int) ([]models.NewsItem, error) {
	all, err := n.Headlines(ctx, 0)
	if err != nil {
		return nil, err
	}
	keywords := symbolKeywords(symbol)
	var out []models.NewsItem
	for _, it := range all {
		if matchesAny(it.Title+" "+it.Summary, keywords) {
			out = append(out, it)
		}
	}
	return clip(out, limit), nil
}

// FormatHeadlines renders items as a bullet list for a prompt.
func FormatHeadlines(items []models.NewsItem) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("- %s (%s)", it.Title, it.Source)
	}
	return strings.Join(lines, "\n")
}

// --- Internal helpers ---

func (n *News) fetch(ctx context.Context, feedURL string) ([]models.NewsItem, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := doGet(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	source := feed.Title
	if source == "" {
		if u, err := url.Parse(feedURL); err == nil {
			source = u.Host
		}
	}
	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		ni := models.NewsItem{
			Title:   strings.TrimSpace(it.Title),
			Summary: cleanHTML(it.Description),
			Link:    it.Link,
			Source:  source,
		}
		if it.PublishedParsed != nil {
			ni.PublishedAt = it.PublishedParsed.UTC()
		}
		items = append(items, ni)
	}
	return items, nil
}

// cleanHTML strips HTML tags from a feed description.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// symbolKeywords returns search keywords for a symbol.
// For example, "BTCUSD" → ["btcusd", "btc", "bitcoin"].
func symbolKeywords(symbol string) []string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	keywords := []string{s}

	base := s
	for _, quote := range []string{"-usd", "/usd", "usdt", "usd"} {
		if b, ok := strings.CutSuffix(s, quote); ok && b != "" {
			base = b
			break
		}
	}
	if base != s {
		keywords = append(keywords, base)
	}

	nameMap := map[string][]string{
		"btc":  {"bitcoin"},
		"eth":  {"ethereum", "ether"},
		"sol":  {"solana"},
		"xrp":  {"ripple"},
		"aapl": {"apple"},
		"msft": {"microsoft"},
		"tsla": {"tesla"},
		"nvda": {"nvidia"},
		"amzn": {"amazon"},
		"goog": {"alphabet", "google"},
		"xau":  {"gold"},
		"eur":  {"euro"},
		"gbp":  {"sterling", "pound"},
		"jpy":  {"yen"},
	}
	if extra, ok := nameMap[base]; ok {
		keywords = append(keywords, extra...)
	}
	return keywords
}

// matchesAny checks if text contains any of the keywords (case-insensitive).
func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// sortByDate sorts items newest first; undated items go last.
func sortByDate(items []models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}

func clip(items []models.NewsItem, limit int) []models.NewsItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
