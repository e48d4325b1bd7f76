package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/tradelens/internal/cache"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>%s</title>
  <link>https://example.com</link>
  <description>test feed</description>
  %s
</channel>
</rss>`

func rssItem(title, desc, pub string) string {
	return fmt.Sprintf(`<item><title>%s</title><description><![CDATA[%s]]></description><link>https://example.com/%d</link><pubDate>%s</pubDate></item>`,
		title, desc, len(title), pub)
}

func newFeedServer(t *testing.T, title string, items ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, title, strings.Join(items, "\n"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// ════════════════════════════════════════════════════════════════════
// Headlines
// ════════════════════════════════════════════════════════════════════

func TestHeadlines_MergesAndSortsNewestFirst(t *testing.T) {
	a, _ := newFeedServer(t, "Wire A",
		rssItem("Old story", "<p>old</p>", "Mon, 02 Jan 2026 10:00:00 GMT"),
		rssItem("Newest story", "<b>fresh</b> news", "Wed, 04 Jan 2026 10:00:00 GMT"),
	)
	b, _ := newFeedServer(t, "Wire B",
		rssItem("Middle story", "mid", "Tue, 03 Jan 2026 10:00:00 GMT"),
	)

	n := NewNews([]string{a.URL, b.URL})
	items, err := n.Headlines(context.Background(), 0)
	if err != nil {
		t.Fatalf("Headlines: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	want := []string{"Newest story", "Middle story", "Old story"}
	for i, w := range want {
		if items[i].Title != w {
			t.Errorf("items[%d] = %q, want %q", i, items[i].Title, w)
		}
	}
	if items[0].Summary != "fresh news" {
		t.Errorf("summary = %q, want HTML stripped", items[0].Summary)
	}
	if items[1].Source != "Wire B" {
		t.Errorf("source = %q, want Wire B", items[1].Source)
	}
}

func TestHeadlines_Limit(t *testing.T) {
	srv, _ := newFeedServer(t, "Wire",
		rssItem("one", "", "Mon, 02 Jan 2026 10:00:00 GMT"),
		rssItem("two", "", "Tue, 03 Jan 2026 10:00:00 GMT"),
	)
	items, err := NewNews([]string{srv.URL}).Headlines(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "two" {
		t.Fatalf("got %+v, want only the newest item", items)
	}
}

func TestHeadlines_SkipsFailingFeed(t *testing.T) {
	good, _ := newFeedServer(t, "Wire", rssItem("ok", "", "Mon, 02 Jan 2026 10:00:00 GMT"))
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()

	items, err := NewNews([]string{bad.URL, good.URL}).Headlines(context.Background(), 0)
	if err != nil {
		t.Fatalf("Headlines: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
}

func TestHeadlines_AllFeedsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer bad.Close()

	_, err := NewNews([]string{bad.URL}).Headlines(context.Background(), 0)
	if err == nil {
		t.Fatal("expected error when every feed fails")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error %q should carry the HTTP status", err)
	}
}

func TestHeadlines_NoFeeds(t *testing.T) {
	if _, err := NewNews(nil).Headlines(context.Background(), 0); err != ErrNoFeeds {
		t.Fatalf("err = %v, want ErrNoFeeds", err)
	}
}

func TestHeadlines_Cached(t *testing.T) {
	srv, hits := newFeedServer(t, "Wire", rssItem("cached", "", "Mon, 02 Jan 2026 10:00:00 GMT"))
	n := NewNews([]string{srv.URL}, WithNewsCache(cache.NewMemory(), time.Minute))

	for range 3 {
		if _, err := n.Headlines(context.Background(), 0); err != nil {
			t.Fatal(err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("feed fetched %d times, want 1", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// ForSymbol
// ════════════════════════════════════════════════════════════════════

func TestForSymbol_MatchesAliases(t *testing.T) {
	srv, _ := newFeedServer(t, "Crypto Wire",
		rssItem("Bitcoin breaks resistance", "", "Mon, 02 Jan 2026 10:00:00 GMT"),
		rssItem("Ethereum upgrade", "", "Tue, 03 Jan 2026 10:00:00 GMT"),
		rssItem("Markets quiet", "BTC flat overnight", "Wed, 04 Jan 2026 10:00:00 GMT"),
	)
	items, err := NewNews([]string{srv.URL}).ForSymbol(context.Background(), "BTCUSD", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	if items[0].Title != "Markets quiet" {
		t.Errorf("items[0] = %q, want summary match first", items[0].Title)
	}
}

func TestSymbolKeywords(t *testing.T) {
	tests := []struct {
		symbol string
		want   []string
	}{
		{"AAPL", []string{"aapl", "apple"}},
		{"BTC-USD", []string{"btc-usd", "btc", "bitcoin"}},
		{"ETHUSDT", []string{"ethusdt", "eth", "ethereum", "ether"}},
		{"XYZ", []string{"xyz"}},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			got := symbolKeywords(tt.symbol)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("symbolKeywords(%q) = %v, want %v", tt.symbol, got, tt.want)
			}
		})
	}
}

func TestFormatHeadlines(t *testing.T) {
	srv, _ := newFeedServer(t, "Wire", rssItem("Rates hold", "", "Mon, 02 Jan 2026 10:00:00 GMT"))
	items, _ := NewNews([]string{srv.URL}).Headlines(context.Background(), 0)
	if got := FormatHeadlines(items); got != "- Rates hold (Wire)" {
		t.Errorf("FormatHeadlines = %q", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Rate limiter
// ════════════════════════════════════════════════════════════════════

func TestRateLimiter_AllowsBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)
	ctx := context.Background()
	for i := range 3 {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
}

func TestRateLimiter_RespectsContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	_ = rl.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Fatal("expected context error once the bucket is empty")
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)
	_ = rl.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("expected refill, got %v", err)
	}
}
