package app

import (
	"context"
	"testing"

	"github.com/seenimoa/tradelens/internal/cache"
	"github.com/seenimoa/tradelens/internal/config"
	"github.com/seenimoa/tradelens/internal/events"
	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/internal/store"
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

func newApp(t *testing.T, p llm.LLMProvider, pub events.Publisher) *App {
	t.Helper()
	opts := []Option{
		WithStore(store.New(store.NewMemory())),
		WithCache(cache.NewMemory()),
		WithPublisher(pub),
	}
	if p != nil {
		opts = append(opts, WithProvider(p))
	}
	a, err := New(context.Background(), &config.Config{}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

// ════════════════════════════════════════════════════════════════════
// Construction
// ════════════════════════════════════════════════════════════════════

func TestNew_WithoutProvider(t *testing.T) {
	a := newApp(t, nil, nil)
	defer a.Close()

	if a.HasProvider() {
		t.Error("no keys configured, HasProvider should be false")
	}
	if len(a.Providers()) != 0 {
		t.Errorf("providers = %v", a.Providers())
	}
	if a.Extractor != nil {
		t.Error("extractor needs an engine")
	}
	if a.Ping(context.Background()) != nil {
		t.Error("ping without engines should report nothing")
	}
	for name, svc := range map[string]any{
		"archive": a.Archive, "analysis": a.Analysis, "chat": a.Chat, "research": a.Research,
		"backup": a.Backup, "knowledge": a.Knowledge, "watchlist": a.Watchlist, "news": a.News,
	} {
		if svc == nil {
			t.Errorf("%s service not built", name)
		}
	}
}

func TestNew_WithProvider(t *testing.T) {
	a := newApp(t, &mockProvider{}, nil)
	defer a.Close()

	if !a.HasProvider() || a.Extractor == nil {
		t.Fatal("engine-backed services should be wired")
	}
	if got := a.Providers(); len(got) != 1 || got[0] != "mock" {
		t.Errorf("providers = %v", got)
	}
	if errs := a.Ping(context.Background()); errs["mock"] != nil {
		t.Errorf("ping = %v", errs)
	}
}

// ════════════════════════════════════════════════════════════════════
// Provider selection
// ════════════════════════════════════════════════════════════════════

func TestUseProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.LLMProvider
		use      string
		wantKind apperr.Kind
	}{
		{"same engine", &mockProvider{}, "mock", ""},
		{"other engine", &mockProvider{}, "gemini", apperr.KindAIUnavailable},
		{"no engine", nil, "gemini", apperr.KindAIUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newApp(t, tt.provider, nil)
			defer a.Close()
			err := a.UseProvider(tt.use)
			if tt.wantKind == "" {
				if err != nil {
					t.Errorf("UseProvider: %v", err)
				}
				return
			}
			if apperr.KindOf(err) != tt.wantKind {
				t.Errorf("kind = %q, want %q", apperr.KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestSetPreferences(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, &mockProvider{}, nil)
	defer a.Close()

	want := models.Preferences{Provider: "mock", DefaultTimeframe: models.TimeframeWeekly}
	if err := a.SetPreferences(ctx, want); err != nil {
		t.Fatalf("SetPreferences: %v", err)
	}
	got, err := a.Store.Preferences(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Provider != "mock" || got.DefaultTimeframe != models.TimeframeWeekly {
		t.Errorf("preferences = %+v", got)
	}

	// An unknown engine is rejected and the stored preferences are kept.
	if err := a.SetPreferences(ctx, models.Preferences{Provider: "openai"}); err == nil {
		t.Error("switching to an unconfigured engine should fail")
	}
	got, _ = a.Store.Preferences(ctx)
	if got.Provider != "mock" {
		t.Errorf("provider = %q, want mock", got.Provider)
	}
}

// ════════════════════════════════════════════════════════════════════
// Technique discovery
// ════════════════════════════════════════════════════════════════════

func TestDiscover_NoProvider(t *testing.T) {
	a := newApp(t, nil, nil)
	defer a.Close()

	if _, err := a.Discover(context.Background()); apperr.KindOf(err) != apperr.KindAIUnavailable {
		t.Errorf("Discover err = %v", err)
	}
	if _, err := a.Learn(context.Background(), "notes.txt", "buy the dip"); apperr.KindOf(err) != apperr.KindAIUnavailable {
		t.Errorf("Learn err = %v", err)
	}
}

func TestDiscover_StagesAndPublishes(t *testing.T) {
	rec := &events.Recorder{}
	p := &mockProvider{chatFunc: func(context.Context, []llm.Message, *llm.ChatOptions) (*llm.Response, error) {
		return &llm.Response{Content: `[{"name":"Wyckoff Spring","type":"strategy","description":"False breakdown below range support."}]`}, nil
	}}
	a := newApp(t, p, rec)
	defer a.Close()

	batch, err := a.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(batch.Items) != 1 {
		t.Fatalf("staged = %d, want 1", len(batch.Items))
	}
	if _, err := a.Staging.Get(batch.ID); err != nil {
		t.Error("batch should be held for review")
	}
	if types := rec.Types(); len(types) != 1 || types[0] != events.TechniquesStaged {
		t.Errorf("events = %v", types)
	}
}

func TestDiscover_EngineFailure(t *testing.T) {
	p := &mockProvider{chatFunc: func(context.Context, []llm.Message, *llm.ChatOptions) (*llm.Response, error) {
		return nil, llm.ErrProviderDown
	}}
	a := newApp(t, p, nil)
	defer a.Close()

	if _, err := a.Discover(context.Background()); err == nil {
		t.Error("an engine failure should surface")
	}
}

func TestClose(t *testing.T) {
	a := newApp(t, nil, nil)
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
