// Package research holds the web-grounded helpers around the main analysis:
// symbol suggestions, global headlines, two-symbol comparisons and the list
// of trending symbols.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/tradelens/internal/cache"
	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/internal/prompts"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Headlines is the RSS fallback for LatestNews.
type Headlines interface {
	Headlines(ctx context.Context, limit int) ([]models.NewsItem, error)
}

// Config holds the collaborators of a Service. Only Provider is required.
type Config struct {
	Provider    llm.LLMProvider
	Headlines   Headlines
	Cache       cache.Cache
	ChatOptions *llm.ChatOptions
	NewsTTL     time.Duration
	HotTTL      time.Duration
	NewsLimit   int
}

// Service implements the research helpers.
type Service struct {
	cfg Config
}

// NewService creates a research service.
func NewService(cfg Config) *Service {
	if cfg.NewsTTL <= 0 {
		cfg.NewsTTL = 30 * time.Minute
	}
	if cfg.HotTTL <= 0 {
		cfg.HotTTL = time.Hour
	}
	if cfg.NewsLimit <= 0 {
		cfg.NewsLimit = 5
	}
	return &Service{cfg: cfg}
}

var errNoProvider = apperr.New(apperr.KindAIUnavailable, "The AI engine is not initialised. Add an API key and try again.", nil)

// ── Suggestions ──

// SuggestSymbols returns symbols matching query. A reply without any JSON
// yields an empty list.
func (s *Service) SuggestSymbols(ctx context.Context, query string) ([]models.FinancialSymbol, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	key := cache.SuggestPrefix + strings.ToLower(query)
	var out []models.FinancialSymbol
	if s.cached(ctx, key, &out) {
		return out, nil
	}

	text, err := s.search(ctx, prompts.SuggestSystem, prompts.Suggest(query), prompts.CallSuggest)
	if err != nil {
		return nil, err
	}
	raw, ok := llm.ExtractJSONArray(text)
	if !ok {
		logger.Warn(ctx, "no JSON in symbol suggestions", "query", query)
		return []models.FinancialSymbol{}, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, apperr.New(apperr.KindValidation, "Could not read the symbol suggestions. The AI response may be invalid.", err)
	}
	out = slices.DeleteFunc(out, func(f models.FinancialSymbol) bool { return strings.TrimSpace(f.Symbol) == "" })
	for i := range out {
		out[i].Market = normalizeMarket(out[i].Market)
	}
	s.store(ctx, key, out, s.cfg.NewsTTL)
	return out, nil
}

// ── Headlines ──

// LatestNews returns global financial headlines from a web-search call. The
// RSS feeds are read concurrently and replace the answer when the call fails
// or returns nothing usable.
func (s *Service) LatestNews(ctx context.Context) ([]models.NewsItem, error) {
	key := cache.LatestNewsPrefix + "global"
	var out []models.NewsItem
	if s.cached(ctx, key, &out) {
		return out, nil
	}

	var (
		aiItems  []models.NewsItem
		aiErr    error
		rssItems []models.NewsItem
		rssErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		aiItems, aiErr = s.aiNews(gctx)
		return nil
	})
	if s.cfg.Headlines != nil {
		g.Go(func() error {
			rssItems, rssErr = s.cfg.Headlines.Headlines(gctx, s.cfg.NewsLimit)
			return nil
		})
	}
	_ = g.Wait()

	if aiErr == nil && len(aiItems) > 0 {
		s.store(ctx, key, aiItems, s.cfg.NewsTTL)
		return aiItems, nil
	}
	if aiErr != nil {
		logger.Warn(ctx, "web headlines failed", "error", aiErr)
	}
	if s.cfg.Headlines != nil && rssErr == nil && len(rssItems) > 0 {
		return rssItems, nil
	}
	if rssErr != nil {
		logger.Warn(ctx, "rss headlines failed", "error", rssErr)
	}
	if aiErr != nil {
		return nil, aiErr
	}
	return []models.NewsItem{}, nil
}

func (s *Service) aiNews(ctx context.Context) ([]models.NewsItem, error) {
	text, err := s.search(ctx, "", prompts.LatestNews(), prompts.CallLatestNews)
	if err != nil {
		return nil, err
	}
	raw, ok := llm.ExtractJSONArray(text)
	if !ok {
		return nil, apperr.New(apperr.KindValidation, "Could not fetch financial news. The AI returned an unexpected format.", nil)
	}
	var items []models.NewsItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, apperr.New(apperr.KindValidation, "Could not fetch financial news. The AI returned an unexpected format.", err)
	}
	items = slices.DeleteFunc(items, func(n models.NewsItem) bool { return strings.TrimSpace(n.Title) == "" })
	if len(items) > s.cfg.NewsLimit {
		items = items[:s.cfg.NewsLimit]
	}
	return items, nil
}

// ── Comparison ──

// CompareSchema is the structured-output contract of Compare.
func CompareSchema() *llm.JSONSchema {
	metric := llm.ObjectSchema("One compared metric.", map[string]*llm.JSONSchema{
		"metric":       llm.StringProp("Metric name."),
		"symbolAValue": llm.StringProp("Value for the first symbol."),
		"symbolBValue": llm.StringProp("Value for the second symbol."),
	}, "metric", "symbolAValue", "symbolBValue")
	return llm.ObjectSchema("Side-by-side comparison of two symbols.", map[string]*llm.JSONSchema{
		"keyMetrics":         llm.ArrayProp("Head-to-head metrics.", metric),
		"comparativeSummary": llm.StringProp("Key differences and similarities."),
		"recommendation":     llm.StringProp("Recommended asset and why."),
		"proRecommendation":  llm.StringProp("Main strength of the recommended asset."),
		"conRecommendation":  llm.StringProp("Main weakness of the recommended asset."),
	}, "keyMetrics", "comparativeSummary", "recommendation", "proRecommendation", "conRecommendation")
}

// Compare contrasts two symbols for a timeframe and risk profile. The web
// context step is best effort.
func (s *Service) Compare(ctx context.Context, a, b string, tf models.Timeframe, risk models.RiskProfile) (*models.ComparativeAnalysisResult, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return nil, apperr.New(apperr.KindValidation, "Pick two symbols to compare.", nil)
	}
	if strings.EqualFold(a, b) {
		return nil, apperr.New(apperr.KindValidation, "Pick two different symbols to compare.", nil)
	}
	if s.cfg.Provider == nil {
		return nil, errNoProvider
	}
	if tf == "" {
		tf = models.TimeframeDaily
	}
	if risk == "" {
		risk = models.RiskBalanced
	}

	webContext, err := s.search(ctx, "", prompts.CompareSearch(a, b), prompts.CallCompare)
	if err != nil {
		logger.Warn(ctx, "comparison web context failed", "a", a, "b", b, "error", err)
		webContext = prompts.NoWebContext
	}

	opts := s.options()
	opts.ResponseMIMEType = "application/json"
	opts.ResponseSchema = CompareSchema()
	resp, err := s.cfg.Provider.Chat(ctx, []llm.Message{
		llm.SystemMessage(prompts.CompareSystem),
		llm.UserMessage(prompts.Compare(a, b, tf, risk, webContext)),
	}, opts)
	if err != nil {
		return nil, llm.Classify(err, "The comparison failed. Please try again.")
	}

	invalid := func(err error) error {
		return apperr.New(apperr.KindValidation, "The comparison returned by the AI was not valid JSON.", err)
	}
	raw, ok := llm.ExtractJSONObject(resp.Content)
	if !ok {
		return nil, invalid(fmt.Errorf("no JSON object in reply"))
	}
	var out models.ComparativeAnalysisResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, invalid(err)
	}
	if strings.TrimSpace(out.ComparativeSummary) == "" || strings.TrimSpace(out.Recommendation) == "" {
		return nil, invalid(fmt.Errorf("summary or recommendation missing"))
	}
	out.SymbolA, out.SymbolB, out.Timeframe, out.RiskProfile = a, b, tf, risk
	return &out, nil
}

// ── Hot symbols ──

// HotSymbols returns the trending symbols, cached for the hot TTL.
func (s *Service) HotSymbols(ctx context.Context) ([]models.HotSymbol, error) {
	var out []models.HotSymbol
	if s.cached(ctx, cache.HotSymbolsKey, &out) {
		return out, nil
	}
	text, err := s.search(ctx, prompts.HotSystem, prompts.Hot(), prompts.CallHot)
	if err != nil {
		return nil, err
	}
	invalid := func(err error) error {
		return apperr.New(apperr.KindValidation, "Could not load the trending symbols. Please try again.", err)
	}
	raw, ok := llm.ExtractJSONArray(text)
	if !ok {
		return nil, invalid(fmt.Errorf("no JSON array in reply"))
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, invalid(err)
	}
	out = slices.DeleteFunc(out, func(h models.HotSymbol) bool { return strings.TrimSpace(h.Symbol) == "" })
	for i := range out {
		out[i].Market = normalizeMarket(out[i].Market)
	}
	s.store(ctx, cache.HotSymbolsKey, out, s.cfg.HotTTL)
	return out, nil
}

// ── Helpers ──

// search sends one web-search-grounded call and returns the reply text.
func (s *Service) search(ctx context.Context, system, prompt, call string) (string, error) {
	if s.cfg.Provider == nil {
		return "", errNoProvider
	}
	var msgs []llm.Message
	if system != "" {
		msgs = append(msgs, llm.SystemMessage(system))
	}
	msgs = append(msgs, llm.UserMessage(prompt))

	opts := s.options()
	opts.WebSearch = true
	op := logger.StartOperation(ctx, "research."+call)
	resp, err := s.cfg.Provider.Chat(op.Context(), msgs, opts)
	if err != nil {
		op.EndWithError(err)
		return "", llm.Classify(err, "The web search failed. Please try again.")
	}
	op.End("sources", len(resp.Sources))
	return resp.Content, nil
}

func (s *Service) options() *llm.ChatOptions {
	if s.cfg.ChatOptions == nil {
		return &llm.ChatOptions{}
	}
	opts := *s.cfg.ChatOptions
	return &opts
}

func (s *Service) cached(ctx context.Context, key string, dest any) bool {
	if s.cfg.Cache == nil {
		return false
	}
	return s.cfg.Cache.Get(ctx, key, dest) == nil
}

func (s *Service) store(ctx context.Context, key string, v any, ttl time.Duration) {
	if s.cfg.Cache == nil {
		return
	}
	if err := s.cfg.Cache.Set(ctx, key, v, ttl); err != nil {
		logger.Warn(ctx, "research cache write failed", "key", key, "error", err)
	}
}

func normalizeMarket(m models.MarketType) models.MarketType {
	for _, known := range []models.MarketType{
		models.MarketCrypto, models.MarketForex, models.MarketUSStocks, models.MarketIranBourse, models.MarketOther,
	} {
		if strings.EqualFold(string(m), string(known)) {
			return known
		}
	}
	return models.MarketOther
}
