package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/tradelens/internal/config"
	"github.com/seenimoa/tradelens/internal/logger"
)

// Router routes LLM requests to the selected provider and falls back to the
// next one only when a provider is unreachable. Rate limits, credential
// problems and invalid models are surfaced to the caller unchanged.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]LLMProvider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the number of extra attempts per provider for
// network failures. Rate-limited calls are never retried.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// NewRouter creates a new LLM router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]LLMProvider),
		primary:    primary,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (LLMProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Use switches the primary provider. It fails if name is not registered.
func (r *Router) Use(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: provider %q not registered", ErrNoProviders, name)
	}
	r.primary = name
	return nil
}

// Primary returns the primary provider.
func (r *Router) Primary() (LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[r.primary]
	if !ok {
		return nil, fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p, nil
}

// Chat routes a chat request through the provider chain.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	chain := r.providerChain()
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	tried := 0
	for _, providerName := range chain {
		provider, ok := r.GetProvider(providerName)
		if !ok {
			continue
		}
		tried++

		resp, err := r.chatWithRetry(ctx, provider, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrProviderDown) {
			return nil, err
		}
		logger.Warn(ctx, "llm provider unreachable, trying next", "provider", providerName, "error", err)
	}

	if tried == 0 {
		return nil, ErrNoProviders
	}
	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// HealthCheck pings all registered providers and returns their status.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]LLMProvider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, provider := range providers {
		wg.Add(1)
		go func(n string, p LLMProvider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[n] = err
			mu.Unlock()
		}(name, provider)
	}

	wg.Wait()
	return results
}

// Name returns the name of the primary provider (satisfies LLMProvider).
func (r *Router) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return "router/" + r.primary
}

// Models returns the union of models from all registered providers (satisfies LLMProvider).
func (r *Router) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []string
	seen := make(map[string]bool)
	for _, p := range r.providers {
		for _, m := range p.Models() {
			if !seen[m] {
				seen[m] = true
				all = append(all, m)
			}
		}
	}
	return all
}

// Ping checks the primary provider's health (satisfies LLMProvider).
func (r *Router) Ping(ctx context.Context) error {
	p, err := r.Primary()
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

// ProviderNames returns the names of all registered providers.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// ── Internal Helpers ──

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) chatWithRetry(ctx context.Context, provider LLMProvider,
	messages []Message, opts *ChatOptions) (*Response, error) {

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := provider.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !errors.Is(err, ErrProviderDown) || IsRateLimit(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// NewRouterFromConfig creates a Router with every provider the config has
// credentials for. Each provider is wrapped for tracing.
func NewRouterFromConfig(cfg *config.Config) (*Router, error) {
	router := NewRouter(cfg.LLM.Primary)
	client := cfg.LLM.Timeout

	var fallbacks []string
	register := func(p LLMProvider) {
		router.RegisterProvider(Observe(p))
		if p.Name() != cfg.LLM.Primary {
			fallbacks = append(fallbacks, p.Name())
		}
	}

	if cfg.LLM.GeminiKey != "" {
		opts := []GeminiOption{WithGeminiModel(modelFor(ProviderGemini, cfg.LLM.Model))}
		if client > 0 {
			opts = append(opts, WithGeminiHTTPClient(httpClient(client)))
		}
		if p, err := NewGeminiProvider(cfg.LLM.GeminiKey, opts...); err == nil {
			register(p)
		}
	}

	if cfg.LLM.OpenAIKey != "" {
		opts := []OpenAIOption{WithOpenAIModel(modelFor(ProviderOpenAI, cfg.LLM.Model))}
		if client > 0 {
			opts = append(opts, WithOpenAIHTTPClient(httpClient(client)))
		}
		if p, err := NewOpenAIProvider(cfg.LLM.OpenAIKey, opts...); err == nil {
			register(p)
		}
	}

	if cfg.LLM.AnthropicKey != "" {
		opts := []AnthropicOption{WithAnthropicModel(modelFor(ProviderAnthropic, cfg.LLM.Model))}
		if client > 0 {
			opts = append(opts, WithAnthropicHTTPClient(httpClient(client)))
		}
		if cfg.LLM.AnthropicURL != "" {
			opts = append(opts, WithAnthropicBaseURL(cfg.LLM.AnthropicURL))
		}
		if p, err := NewAnthropicProvider(cfg.LLM.AnthropicKey, opts...); err == nil {
			register(p)
		}
	}

	if cfg.LLM.OllamaURL != "" {
		if p, err := NewOllamaProvider(cfg.LLM.OllamaURL,
			WithOllamaModel(modelFor(ProviderOllama, cfg.LLM.Model))); err == nil {
			register(p)
		}
	}

	if len(router.ProviderNames()) == 0 {
		return nil, ErrNoProviders
	}
	if _, ok := router.GetProvider(cfg.LLM.Primary); !ok {
		router.primary = fallbacks[0]
		fallbacks = fallbacks[1:]
	}
	router.fallbacks = fallbacks
	return router, nil
}

// modelFor keeps the configured model only when it belongs to provider.
func modelFor(provider, model string) string {
	switch provider {
	case ProviderGemini:
		if strings.HasPrefix(model, "gemini") {
			return model
		}
		return "gemini-2.5-flash"
	case ProviderOpenAI:
		if strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") {
			return model
		}
		return "gpt-4o"
	case ProviderAnthropic:
		if strings.HasPrefix(model, "claude") {
			return model
		}
		return "claude-sonnet-4-20250514"
	case ProviderOllama:
		if strings.Contains(model, ":") {
			return model
		}
		return "qwen2.5:7b"
	}
	return model
}
