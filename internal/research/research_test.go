package research

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/seenimoa/tradelens/internal/cache"
	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

type mockProvider struct {
	chatFunc func(ctx context.Context, msgs []llm.Message, opts *llm.ChatOptions) (*llm.Response, error)
}

func (m *mockProvider) Name() string                 { return "mock" }
func (m *mockProvider) Models() []string             { return []string{"mock-1"} }
func (m *mockProvider) Ping(_ context.Context) error { return nil }
func (m *mockProvider) Chat(ctx context.Context, msgs []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
	return m.chatFunc(ctx, msgs, opts)
}

func replying(content string, calls *atomic.Int32) *mockProvider {
	return &mockProvider{chatFunc: func(context.Context, []llm.Message, *llm.ChatOptions) (*llm.Response, error) {
		if calls != nil {
			calls.Add(1)
		}
		return &llm.Response{Content: content}, nil
	}}
}

func failing(err error) *mockProvider {
	return &mockProvider{chatFunc: func(context.Context, []llm.Message, *llm.ChatOptions) (*llm.Response, error) {
		return nil, err
	}}
}

type fakeHeadlines struct {
	items []models.NewsItem
	err   error
}

func (f fakeHeadlines) Headlines(context.Context, int) ([]models.NewsItem, error) {
	return f.items, f.err
}

// ════════════════════════════════════════════════════════════════════
// SuggestSymbols
// ════════════════════════════════════════════════════════════════════

func TestSuggestSymbols(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"array with chatter", `Here you go: [{"symbol":"BTC","name":"Bitcoin","market":"crypto","popular":true},{"symbol":"","name":"blank"}]`, []string{"BTC"}},
		{"single object", `{"symbol":"AAPL","name":"Apple","market":"US Stocks"}`, []string{"AAPL"}},
		{"no json", `I could not find anything.`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Config{Provider: replying(tt.reply, nil)})
			got, err := svc.SuggestSymbols(context.Background(), "bit")
			if err != nil {
				t.Fatalf("SuggestSymbols: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %v", got, tt.want)
			}
			for i, w := range tt.want {
				if got[i].Symbol != w {
					t.Errorf("got[%d] = %s, want %s", i, got[i].Symbol, w)
				}
			}
		})
	}
}

func TestSuggestSymbols_NormalizesMarketAndCaches(t *testing.T) {
	var calls atomic.Int32
	svc := NewService(Config{
		Provider: replying(`[{"symbol":"EURUSD","name":"Euro","market":"FOREX"},{"symbol":"X","market":"Moon"}]`, &calls),
		Cache:    cache.NewMemory(),
	})
	ctx := context.Background()
	got, err := svc.SuggestSymbols(ctx, "eur")
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Market != models.MarketForex || got[1].Market != models.MarketOther {
		t.Errorf("markets = %s, %s", got[0].Market, got[1].Market)
	}
	if _, err := svc.SuggestSymbols(ctx, "EUR"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want cached second lookup", calls.Load())
	}
}

func TestSuggestSymbols_Errors(t *testing.T) {
	ctx := context.Background()
	if got, err := NewService(Config{}).SuggestSymbols(ctx, "  "); got != nil || err != nil {
		t.Errorf("empty query = %v, %v", got, err)
	}
	if _, err := NewService(Config{}).SuggestSymbols(ctx, "btc"); !errors.Is(err, apperr.AIUnavailable) {
		t.Errorf("no provider: %v", err)
	}
	if _, err := NewService(Config{Provider: replying(`[{"symbol": 5}]`, nil)}).SuggestSymbols(ctx, "btc"); !errors.Is(err, apperr.Validation) {
		t.Errorf("bad json: %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// LatestNews
// ════════════════════════════════════════════════════════════════════

func TestLatestNews_FromWebSearch(t *testing.T) {
	var webSearch bool
	p := &mockProvider{chatFunc: func(_ context.Context, _ []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
		webSearch = opts.WebSearch
		return &llm.Response{Content: "```json\n[{\"title\":\"Fed holds\",\"summary\":\"s\",\"link\":\"https://x\",\"source\":\"Wire\"}]\n```"}, nil
	}}
	svc := NewService(Config{Provider: p, Headlines: fakeHeadlines{items: []models.NewsItem{{Title: "rss"}}}})
	got, err := svc.LatestNews(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !webSearch {
		t.Error("news call should enable web search")
	}
	if len(got) != 1 || got[0].Title != "Fed holds" {
		t.Errorf("got %+v", got)
	}
}

func TestLatestNews_FallsBackToRSS(t *testing.T) {
	rss := fakeHeadlines{items: []models.NewsItem{{Title: "Oil slides", Source: "Feed"}}}
	tests := []struct {
		name     string
		provider llm.LLMProvider
	}{
		{"provider down", failing(llm.ErrProviderDown)},
		{"garbage reply", replying("no news today", nil)},
		{"no provider", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Config{Provider: tt.provider, Headlines: rss})
			got, err := svc.LatestNews(context.Background())
			if err != nil {
				t.Fatalf("LatestNews: %v", err)
			}
			if len(got) != 1 || got[0].Title != "Oil slides" {
				t.Errorf("got %+v, want RSS items", got)
			}
		})
	}
}

func TestLatestNews_BothFail(t *testing.T) {
	svc := NewService(Config{
		Provider:  failing(llm.ErrRateLimit),
		Headlines: fakeHeadlines{err: errors.New("feeds down")},
	})
	if _, err := svc.LatestNews(context.Background()); !errors.Is(err, apperr.Transient) {
		t.Fatalf("err = %v, want the provider's transient error", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Compare
// ════════════════════════════════════════════════════════════════════

const compareReply = `{"keyMetrics":[{"metric":"Current trend","symbolAValue":"Bullish","symbolBValue":"Neutral"}],
"comparativeSummary":"BTC leads.","recommendation":"BTC for aggressive investors.","proRecommendation":"Momentum","conRecommendation":"Volatility"}`

func TestCompare(t *testing.T) {
	var schemaCall, searchCall bool
	var prompt string
	p := &mockProvider{chatFunc: func(_ context.Context, msgs []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
		if opts.WebSearch {
			searchCall = true
			return &llm.Response{Content: "BTC ETF inflows, ETH upgrade delayed."}, nil
		}
		schemaCall = opts.ResponseSchema != nil
		prompt = msgs[len(msgs)-1].Content
		return &llm.Response{Content: compareReply}, nil
	}}
	svc := NewService(Config{Provider: p})

	got, err := svc.Compare(context.Background(), "BTC", "ETH", models.TimeframeWeekly, models.RiskAggressive)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !searchCall || !schemaCall {
		t.Errorf("search=%v schema=%v, want both", searchCall, schemaCall)
	}
	if !strings.Contains(prompt, "ETH upgrade delayed") || !strings.Contains(prompt, "Aggressive") {
		t.Error("prompt should carry the web context and the risk label")
	}
	if got.SymbolA != "BTC" || got.SymbolB != "ETH" || got.Timeframe != models.TimeframeWeekly || len(got.KeyMetrics) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestCompare_WebContextIsBestEffort(t *testing.T) {
	var prompt string
	p := &mockProvider{chatFunc: func(_ context.Context, msgs []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
		if opts.WebSearch {
			return nil, llm.ErrProviderDown
		}
		prompt = msgs[len(msgs)-1].Content
		return &llm.Response{Content: compareReply}, nil
	}}
	if _, err := NewService(Config{Provider: p}).Compare(context.Background(), "BTC", "ETH", "", ""); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !strings.Contains(prompt, "No additional web information found.") {
		t.Error("failed web step should fall back to the no-context text")
	}
}

func TestCompare_Errors(t *testing.T) {
	ctx := context.Background()
	svc := NewService(Config{Provider: replying(`{"keyMetrics":[]}`, nil)})
	tests := []struct {
		name string
		a, b string
		want error
	}{
		{"missing symbol", "BTC", "", apperr.Validation},
		{"same symbol", "btc", "BTC", apperr.Validation},
		{"incomplete reply", "BTC", "ETH", apperr.Validation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Compare(ctx, tt.a, tt.b, "", ""); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// HotSymbols
// ════════════════════════════════════════════════════════════════════

func TestHotSymbols_Cached(t *testing.T) {
	var calls atomic.Int32
	reply := `[{"symbol":"SOL","name":"Solana","market":"Crypto","reason":"ETF chatter","keyMetrics":[{"metric":"24h","value":"+8%"}],"detailedAnalysis":"..."}]`
	svc := NewService(Config{Provider: replying(reply, &calls), Cache: cache.NewMemory()})
	ctx := context.Background()

	for range 2 {
		got, err := svc.HotSymbols(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Symbol != "SOL" || got[0].KeyMetrics[0].Value != "+8%" {
			t.Errorf("got %+v", got)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestHotSymbols_InvalidReply(t *testing.T) {
	svc := NewService(Config{Provider: replying("markets are hot today", nil)})
	if _, err := svc.HotSymbols(context.Background()); !errors.Is(err, apperr.Validation) {
		t.Fatalf("err = %v, want validation", err)
	}
}
