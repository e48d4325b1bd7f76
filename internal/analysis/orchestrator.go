// Package analysis runs the two-phase reasoning-engine analysis of a symbol:
// a best-effort web news summary followed by one schema-constrained call
// over the assembled context. Validated results become history records and
// feed the knowledge base.
package analysis

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/tradelens/internal/cache"
	"github.com/seenimoa/tradelens/internal/catalog"
	"github.com/seenimoa/tradelens/internal/datasource"
	"github.com/seenimoa/tradelens/internal/events"
	"github.com/seenimoa/tradelens/internal/knowledge"
	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/internal/prompts"
	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Request holds the user's analysis parameters.
type Request struct {
	Symbol      string             `json:"symbol"`
	Timeframe   models.Timeframe   `json:"timeframe"`
	Timezone    string             `json:"timezone"`
	RiskProfile models.RiskProfile `json:"riskProfile"`
	Strategies  []string           `json:"strategies,omitempty"`
	Indicators  []string           `json:"indicators,omitempty"`
}

// ArtifactSource lists the archived files of a symbol.
type ArtifactSource interface {
	ListFor(ctx context.Context, symbol string) ([]models.Artifact, error)
}

// HeadlineSource returns RSS headlines mentioning a symbol.
type HeadlineSource interface {
	ForSymbol(ctx context.Context, symbol string, limit int) ([]models.NewsItem, error)
}

// OrchestratorConfig holds the collaborators of an Orchestrator. Provider,
// History, Saved, Archive, Knowledge and Techniques are required.
type OrchestratorConfig struct {
	Provider   llm.LLMProvider
	History    *store.Collection[models.AnalysisRecord, *models.AnalysisRecord]
	Saved      *store.Collection[models.SavedAnalysisRecord, *models.SavedAnalysisRecord]
	Archive    ArtifactSource
	Knowledge  *knowledge.Service
	Techniques *knowledge.Techniques

	// Optional.
	Headlines HeadlineSource
	Cache     cache.Cache
	Events    events.Publisher

	ChatOptions     *llm.ChatOptions
	KnowledgeLimit  int
	HeadlineLimit   int
	NewsTTL         time.Duration
	Timeout         time.Duration
	DefaultTimezone string
	Now             func() time.Time
}

// Orchestrator runs at most one analysis at a time and remembers the record
// currently on display.
type Orchestrator struct {
	cfg      OrchestratorConfig
	inFlight atomic.Bool

	mu         sync.RWMutex
	active     *models.AnalysisRecord
	activeKind models.RecordKind
}

// NewOrchestrator creates an Orchestrator, filling defaults for unset limits.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.KnowledgeLimit <= 0 {
		cfg.KnowledgeLimit = 5
	}
	if cfg.HeadlineLimit <= 0 {
		cfg.HeadlineLimit = 5
	}
	if cfg.NewsTTL <= 0 {
		cfg.NewsTTL = 30 * time.Minute
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Events = events.OrNop(cfg.Events)
	return &Orchestrator{cfg: cfg}
}

// Busy reports whether an analysis is running.
func (o *Orchestrator) Busy() bool { return o.inFlight.Load() }

// SetProvider swaps the reasoning engine, e.g. after the user saved a key.
func (o *Orchestrator) SetProvider(p llm.LLMProvider) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.Provider = p
}

func (o *Orchestrator) provider() llm.LLMProvider {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg.Provider
}

// Run performs a complete analysis and stores it in history. A call made
// while another analysis runs returns ErrAnalysisInFlight without touching
// the provider.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.AnalysisRecord, error) {
	provider := o.provider()
	if provider == nil {
		return nil, ErrNoProvider
	}
	req.Symbol = strings.TrimSpace(req.Symbol)
	if req.Symbol == "" {
		return nil, ErrNoSymbol
	}
	if err := o.normalize(&req); err != nil {
		return nil, err
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrAnalysisInFlight
	}
	defer o.inFlight.Store(false)

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	op := logger.StartOperation(ctx, "analysis.run",
		"symbol", req.Symbol, "timeframe", req.Timeframe, "risk", req.RiskProfile)
	ctx = op.Context()
	o.cfg.Events.Publish(ctx, events.New(events.AnalysisStarted, req))

	rec, err := o.run(ctx, provider, req)
	if err != nil {
		op.EndWithError(err)
		o.cfg.Events.Publish(ctx, events.New(events.AnalysisFailed, map[string]string{
			"symbol": req.Symbol,
			"error":  apperr.UserMessage(err),
		}))
		return nil, err
	}
	op.End("record_id", rec.ID, "signal", rec.Analysis.Signal)
	return rec, nil
}

func (o *Orchestrator) normalize(req *Request) error {
	if req.Timeframe == "" {
		req.Timeframe = models.TimeframeDaily
	} else if _, err := models.ParseTimeframe(string(req.Timeframe)); err != nil {
		return apperr.New(apperr.KindValidation, err.Error(), err)
	}
	if req.RiskProfile == "" {
		req.RiskProfile = models.RiskBalanced
	} else if _, err := models.ParseRiskProfile(string(req.RiskProfile)); err != nil {
		return apperr.New(apperr.KindValidation, err.Error(), err)
	}
	if req.Timezone == "" {
		req.Timezone = o.cfg.DefaultTimezone
	}
	if len(req.Strategies) == 0 && len(req.Indicators) == 0 {
		sel := catalog.DefaultSelection(req.Timeframe, req.RiskProfile)
		req.Strategies, req.Indicators = sel.Strategies, sel.Indicators
	}
	return nil
}

// assembled is the read-only context of one analysis.
type assembled struct {
	knowledge  string
	techniques []models.LearnedTechnique
	files      []models.Artifact
	strategies []string
	indicators []string
}

func (o *Orchestrator) run(ctx context.Context, provider llm.LLMProvider, req Request) (*models.AnalysisRecord, error) {
	in, err := o.assemble(ctx, req)
	if err != nil {
		return nil, err
	}

	news, sources := o.news(ctx, provider, req.Symbol)
	o.cfg.Events.Publish(ctx, events.New(events.AnalysisNews, map[string]any{
		"symbol":  req.Symbol,
		"sources": len(sources),
	}))

	prompt := prompts.Analysis(prompts.AnalysisInput{
		Symbol:      req.Symbol,
		Timeframe:   req.Timeframe,
		Timezone:    req.Timezone,
		RiskProfile: req.RiskProfile,
		Strategies:  in.strategies,
		Indicators:  in.indicators,
		Techniques:  in.techniques,
		Knowledge:   in.knowledge,
		News:        news,
		Files:       in.files,
	})

	opts := o.chatOptions()
	opts.ResponseMIMEType = "application/json"
	opts.ResponseSchema = responseSchema

	messages := []llm.Message{
		llm.SystemMessage(prompts.AnalysisSystem),
		llm.UserMessage(prompt, attachments(ctx, in.files)...),
	}
	resp, err := provider.Chat(ctx, messages, opts)
	if err != nil {
		return nil, llm.Classify(err, "The analysis request failed. Please try again.")
	}

	result, err := Decode(resp.Content)
	if err != nil {
		logger.Warn(ctx, "analysis response rejected", "symbol", req.Symbol, "error", err)
		return nil, err
	}

	rec := &models.AnalysisRecord{
		Timestamp:   o.cfg.Now().UTC(),
		Symbol:      req.Symbol,
		Timeframe:   req.Timeframe,
		Timezone:    req.Timezone,
		RiskProfile: req.RiskProfile,
		FilesUsed:   in.files,
		Analysis:    *result,
		Sources:     sources,
		Prompt:      prompt,
	}
	if _, err := o.cfg.History.Add(ctx, rec); err != nil {
		return nil, err
	}
	o.cfg.Knowledge.DeriveAndStore(ctx, rec)
	o.setActive(rec, models.RecordHistory)
	o.cfg.Events.Publish(ctx, events.New(events.AnalysisCompleted, map[string]any{
		"id":     rec.ID,
		"symbol": rec.Symbol,
		"signal": rec.Analysis.Signal,
	}))
	return rec, nil
}

// assemble gathers knowledge, techniques and artifacts concurrently.
func (o *Orchestrator) assemble(ctx context.Context, req Request) (assembled, error) {
	var (
		in    assembled
		items []models.KnowledgeItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = o.cfg.Knowledge.ForContext(gctx, req.Symbol, req.Timeframe, o.cfg.KnowledgeLimit)
		return err
	})
	g.Go(func() error {
		var err error
		in.techniques, err = o.cfg.Techniques.Selected(gctx, req.Strategies, req.Indicators)
		return err
	})
	g.Go(func() error {
		var err error
		in.files, err = o.cfg.Archive.ListFor(gctx, req.Symbol)
		return err
	})
	if err := g.Wait(); err != nil {
		return in, err
	}

	in.knowledge = knowledge.FormatContext(items)
	known := make(map[string]bool)
	for _, t := range catalog.Filter(slices.Concat(req.Strategies, req.Indicators)) {
		known[strings.ToLower(t.Name)] = true
	}
	for _, t := range in.techniques {
		known[strings.ToLower(t.Name)] = true
	}
	keep := func(names []string) []string {
		var out []string
		for _, n := range names {
			if known[strings.ToLower(n)] {
				out = append(out, n)
			} else {
				logger.Warn(ctx, "unknown technique ignored", "name", n)
			}
		}
		return out
	}
	in.strategies = keep(req.Strategies)
	in.indicators = keep(req.Indicators)
	return in, nil
}

// newsEntry is the cached result of the news phase.
type newsEntry struct {
	Summary string                   `json:"summary"`
	Sources []models.GroundingSource `json:"sources"`
}

// news runs the web-search phase. It never fails: errors fall back to
// prompts.NoNews with no sources.
func (o *Orchestrator) news(ctx context.Context, provider llm.LLMProvider, symbol string) (string, []models.GroundingSource) {
	key := cache.NewsSummaryPrefix + strings.ToUpper(symbol)
	var entry newsEntry

	if o.cfg.Cache == nil || o.cfg.Cache.Get(ctx, key, &entry) != nil {
		entry = newsEntry{Summary: prompts.NoNews}
		opts := o.chatOptions()
		opts.WebSearch = true
		resp, err := provider.Chat(ctx, []llm.Message{llm.UserMessage(prompts.News(symbol))}, opts)
		switch {
		case err != nil:
			logger.Warn(ctx, "news phase failed, continuing without news", "symbol", symbol, "error", err)
		case strings.TrimSpace(resp.Content) == "":
			logger.Warn(ctx, "news phase returned no text", "symbol", symbol)
		default:
			entry.Summary = strings.TrimSpace(resp.Content)
			entry.Sources = groundingSources(resp.Sources)
			if o.cfg.Cache != nil {
				if err := o.cfg.Cache.Set(ctx, key, entry, o.cfg.NewsTTL); err != nil {
					logger.Warn(ctx, "news cache write failed", "error", err)
				}
			}
		}
	}

	if o.cfg.Headlines != nil {
		items, err := o.cfg.Headlines.ForSymbol(ctx, symbol, o.cfg.HeadlineLimit)
		if err != nil {
			logger.Debug(ctx, "rss headlines unavailable", "error", err)
		} else if len(items) > 0 {
			entry.Summary += "\n\nRecent headlines:\n" + datasource.FormatHeadlines(items)
		}
	}
	return entry.Summary, entry.Sources
}

func groundingSources(src []llm.Source) []models.GroundingSource {
	out := make([]models.GroundingSource, 0, len(src))
	for _, s := range src {
		out = append(out, models.GroundingSource{Web: &models.WebSource{URI: s.URI, Title: s.Title}})
	}
	return out
}

// attachments decodes the archived chart images of files.
func attachments(ctx context.Context, files []models.Artifact) []llm.Attachment {
	var out []llm.Attachment
	for _, f := range files {
		if f.Category != models.CategoryChartImage && !f.IsImage() {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			logger.Warn(ctx, "skipping undecodable image", "file", f.Name, "error", err)
			continue
		}
		out = append(out, llm.Attachment{MIMEType: f.MimeType, Data: data})
	}
	return out
}

func (o *Orchestrator) chatOptions() *llm.ChatOptions {
	if o.cfg.ChatOptions == nil {
		return &llm.ChatOptions{}
	}
	opts := *o.cfg.ChatOptions
	opts.Stop = slices.Clone(opts.Stop)
	return &opts
}

// ── Active record ──

func (o *Orchestrator) setActive(rec *models.AnalysisRecord, kind models.RecordKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := *rec
	o.active, o.activeKind = &cp, kind
}

// Active returns the record on display and the collection it came from.
func (o *Orchestrator) Active() (*models.AnalysisRecord, models.RecordKind, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.active == nil {
		return nil, "", false
	}
	cp := *o.active
	return &cp, o.activeKind, true
}

// SetActive loads a stored record and puts it on display.
func (o *Orchestrator) SetActive(ctx context.Context, kind models.RecordKind, id int64) (*models.AnalysisRecord, error) {
	var rec models.AnalysisRecord
	switch kind {
	case models.RecordSaved:
		saved, err := o.cfg.Saved.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		rec = saved.AnalysisRecord
		rec.ID = saved.ID
	default:
		kind = models.RecordHistory
		h, err := o.cfg.History.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		rec = h
	}
	o.setActive(&rec, kind)
	return &rec, nil
}

// ClearActive drops the displayed record if it is kind/id.
func (o *Orchestrator) ClearActive(kind models.RecordKind, id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil && o.activeKind == kind && o.active.ID == id {
		o.active, o.activeKind = nil, ""
	}
}

// ── Follow-ups ──

// WhatIf asks how scenario would change the analysis of a history record.
func (o *Orchestrator) WhatIf(ctx context.Context, recordID int64, scenario string) (string, error) {
	provider := o.provider()
	if provider == nil {
		return "", ErrNoProvider
	}
	scenario = strings.TrimSpace(scenario)
	if scenario == "" {
		return "", apperr.New(apperr.KindValidation, "Describe the scenario to analyse.", nil)
	}
	rec, err := o.cfg.History.Get(ctx, recordID)
	if err != nil {
		return "", err
	}
	prompt, err := prompts.WhatIf(&rec.Analysis, scenario)
	if err != nil {
		return "", err
	}
	resp, err := provider.Chat(ctx, []llm.Message{
		llm.SystemMessage(prompts.WhatIfSystem),
		llm.UserMessage(prompt),
	}, o.chatOptions())
	if err != nil {
		return "", llm.Classify(err, "The scenario analysis failed. Please try again.")
	}
	return strings.TrimSpace(resp.Content), nil
}

// Save copies a history record, chat included, into the saved analyses
// under name and puts the copy on display.
func (o *Orchestrator) Save(ctx context.Context, historyID int64, name string) (*models.SavedAnalysisRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.KindValidation, "Give the analysis a name.", nil)
	}
	rec, err := o.cfg.History.Get(ctx, historyID)
	if err != nil {
		return nil, err
	}
	saved := &models.SavedAnalysisRecord{
		AnalysisRecord:  rec,
		Name:            name,
		SourceHistoryID: rec.ID,
	}
	saved.ID = 0
	saved.Timestamp = o.cfg.Now().UTC()
	if _, err := o.cfg.Saved.Add(ctx, saved); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	active := saved.AnalysisRecord
	o.setActive(&active, models.RecordSaved)
	return saved, nil
}
