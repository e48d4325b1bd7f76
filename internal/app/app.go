// Package app wires configuration, persistence, the reasoning engine and
// the domain services into one container shared by the API server and the
// CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenimoa/tradelens/internal/analysis"
	"github.com/seenimoa/tradelens/internal/archive"
	"github.com/seenimoa/tradelens/internal/backup"
	"github.com/seenimoa/tradelens/internal/cache"
	"github.com/seenimoa/tradelens/internal/chat"
	"github.com/seenimoa/tradelens/internal/config"
	"github.com/seenimoa/tradelens/internal/datasource"
	"github.com/seenimoa/tradelens/internal/events"
	"github.com/seenimoa/tradelens/internal/knowledge"
	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/internal/research"
	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/internal/watchlist"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

var errNoProvider = apperr.New(apperr.KindAIUnavailable,
	"The AI engine is not initialised. Add an API key and try again.", nil)

type options struct {
	store    *store.Store
	cache    cache.Cache
	provider llm.LLMProvider
	events   events.Publisher
}

// Option overrides a collaborator, mostly for tests.
type Option func(*options)

// WithStore uses s instead of opening cfg.Store.
func WithStore(s *store.Store) Option { return func(o *options) { o.store = s } }

// WithCache uses c instead of building one from cfg.Redis.
func WithCache(c cache.Cache) Option { return func(o *options) { o.cache = c } }

// WithProvider uses p instead of building a router from cfg.LLM.
func WithProvider(p llm.LLMProvider) Option { return func(o *options) { o.provider = p } }

// WithPublisher sends progress events to p.
func WithPublisher(p events.Publisher) Option { return func(o *options) { o.events = p } }

// App holds every service of a running TradeLens instance.
type App struct {
	Config *config.Config
	Store  *store.Store
	Cache  cache.Cache
	Events events.Publisher

	router   *llm.Router
	provider llm.LLMProvider

	News       *datasource.News
	Archive    *archive.Manager
	Analysis   *analysis.Orchestrator
	Chat       *chat.Service
	Research   *research.Service
	Backup     *backup.Service
	Knowledge  *knowledge.Service
	Techniques *knowledge.Techniques
	Staging    *knowledge.Staging
	Extractor  *knowledge.Extractor
	Watchlist  *watchlist.Service
}

// New builds the container. A missing AI key is not an error: services that
// need the engine report it as unavailable until a key is configured.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Events: events.OrNop(o.events)}

	a.Store = o.store
	if a.Store == nil {
		s, err := store.Open(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		a.Store = s
	}

	a.Cache = o.cache
	if a.Cache == nil {
		a.Cache = cache.New(ctx, cfg.Redis)
	}

	a.provider = o.provider
	if a.provider == nil {
		router, err := llm.NewRouterFromConfig(cfg)
		switch {
		case err == nil:
			a.router = router
			a.provider = router
		case errors.Is(err, llm.ErrNoProviders):
			logger.Warn(ctx, "no AI provider configured; analysis is disabled")
		default:
			a.Store.Close()
			return nil, fmt.Errorf("LLM setup failed: %w", err)
		}
	}

	chatOpts := &llm.ChatOptions{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}

	a.News = datasource.NewNews(cfg.News.Feeds,
		datasource.WithNewsCache(a.Cache, cfg.Redis.NewsTTL),
		datasource.WithRateLimiter(datasource.PerMinute(cfg.News.RatePerMin)))

	a.Knowledge = knowledge.NewService(a.Store.Knowledge)
	a.Techniques = knowledge.NewTechniques(a.Store.Techniques)
	a.Staging = knowledge.NewStaging(a.Store.Techniques)
	a.Watchlist = watchlist.New(a.Store.Watchlist)

	archiveOpts := []archive.Option{archive.WithPublisher(a.Events)}
	var categorizer archive.Categorizer
	if a.provider != nil {
		categorizer = archive.NewLLMCategorizer(a.provider, cfg.Analysis.CategorizeMaxChars)
		a.Extractor = knowledge.NewExtractor(a.provider, cfg.Analysis.ExtractMaxChars)
		archiveOpts = append(archiveOpts, archive.WithTechniqueSink(a.Extractor.Sink(a.Staging, a.Events)))
	}
	a.Archive = archive.NewManager(a.Store.Artifacts, categorizer, archiveOpts...)

	a.Analysis = analysis.NewOrchestrator(analysis.OrchestratorConfig{
		Provider:        a.provider,
		History:         a.Store.History,
		Saved:           a.Store.Saved,
		Archive:         a.Archive,
		Knowledge:       a.Knowledge,
		Techniques:      a.Techniques,
		Headlines:       a.News,
		Cache:           a.Cache,
		Events:          a.Events,
		ChatOptions:     chatOpts,
		KnowledgeLimit:  cfg.Analysis.KnowledgeLimit,
		HeadlineLimit:   cfg.News.MaxItems,
		NewsTTL:         cfg.Redis.NewsTTL,
		Timeout:         cfg.Analysis.Timeout,
		DefaultTimezone: cfg.Analysis.DefaultTimezone,
	})
	a.Chat = chat.NewService(a.provider, a.Store.History, a.Store.Saved, chatOpts)
	a.Research = research.NewService(research.Config{
		Provider:    a.provider,
		Headlines:   a.News,
		Cache:       a.Cache,
		ChatOptions: chatOpts,
		NewsTTL:     cfg.Redis.NewsTTL,
		HotTTL:      cfg.Redis.HotTTL,
		NewsLimit:   cfg.News.MaxItems,
	})
	a.Backup = backup.NewService(a.Store, a.Archive)

	if err := a.restoreProvider(ctx); err != nil {
		logger.Warn(ctx, "saved provider preference ignored", "error", err)
	}
	return a, nil
}

// HasProvider reports whether a reasoning engine is available.
func (a *App) HasProvider() bool { return a.provider != nil }

// Providers lists the registered engine names.
func (a *App) Providers() []string {
	if a.router == nil {
		if a.provider != nil {
			return []string{a.provider.Name()}
		}
		return nil
	}
	return a.router.ProviderNames()
}

// Ping checks the reachability of every registered engine.
func (a *App) Ping(ctx context.Context) map[string]error {
	if a.router != nil {
		return a.router.HealthCheck(ctx)
	}
	if a.provider != nil {
		return map[string]error{a.provider.Name(): a.provider.Ping(ctx)}
	}
	return nil
}

// UseProvider makes name the primary engine.
func (a *App) UseProvider(name string) error {
	if a.router == nil {
		if a.provider != nil && a.provider.Name() == name {
			return nil
		}
		return errNoProvider
	}
	if err := a.router.Use(name); err != nil {
		return apperr.New(apperr.KindConfiguration, fmt.Sprintf("Provider %q has no API key configured.", name), err)
	}
	return nil
}

// SetPreferences stores p and switches the engine when p names one.
func (a *App) SetPreferences(ctx context.Context, p models.Preferences) error {
	if p.Provider != "" {
		if err := a.UseProvider(p.Provider); err != nil {
			return err
		}
	}
	return a.Store.SetPreferences(ctx, p)
}

func (a *App) restoreProvider(ctx context.Context) error {
	if a.router == nil {
		return nil
	}
	p, err := a.Store.Preferences(ctx)
	if err != nil || p.Provider == "" {
		return err
	}
	return a.UseProvider(p.Provider)
}

// Discover searches the web for techniques the catalog does not have yet
// and stages them for review.
func (a *App) Discover(ctx context.Context) (knowledge.Batch, error) {
	if a.Extractor == nil {
		return knowledge.Batch{}, errNoProvider
	}
	existing, err := a.Techniques.List(ctx)
	if err != nil {
		return knowledge.Batch{}, err
	}
	found, err := a.Extractor.Discover(ctx, existing)
	if err != nil {
		return knowledge.Batch{}, err
	}
	batch := a.Staging.NewBatch(found)
	if len(found) > 0 {
		a.Events.Publish(ctx, events.New(events.TechniquesStaged, batch))
	}
	return batch, nil
}

// Learn extracts techniques from a file's text and stages them.
func (a *App) Learn(ctx context.Context, name, text string) (knowledge.Batch, error) {
	if a.Extractor == nil {
		return knowledge.Batch{}, errNoProvider
	}
	found := a.Extractor.FromText(ctx, name, text)
	return a.Staging.NewBatch(found), nil
}

// Close waits for background extraction and releases the cache and store.
func (a *App) Close() error {
	a.Archive.Wait()
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
