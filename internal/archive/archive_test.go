package archive

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/tradelens/internal/events"
	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test helpers
// ════════════════════════════════════════════════════════════════════

type mockCategorizer struct {
	calls atomic.Int32
	fn    func(n int32, text string) (models.FileCategory, error)
}

func (m *mockCategorizer) Categorize(_ context.Context, text string) (models.FileCategory, error) {
	n := m.calls.Add(1)
	if m.fn != nil {
		return m.fn(n, text)
	}
	return models.CategoryMarketData, nil
}

type sinkRecorder struct {
	mu    sync.Mutex
	names []string
}

func (s *sinkRecorder) sink(_ context.Context, a models.Artifact) error {
	s.mu.Lock()
	s.names = append(s.names, a.Name)
	s.mu.Unlock()
	return nil
}

func (s *sinkRecorder) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

func newManager(t *testing.T, c Categorizer, opts ...Option) *Manager {
	t.Helper()
	st := store.New(store.NewMemory())
	return NewManager(st.Artifacts, c, opts...)
}

func textFile(name, body string) RawFile {
	return RawFile{Name: name, MimeType: "text/csv", Data: []byte(body)}
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// ════════════════════════════════════════════════════════════════════
// Ingest
// ════════════════════════════════════════════════════════════════════

func TestIngestAddsTextFile(t *testing.T) {
	cat := &mockCategorizer{}
	rec := &sinkRecorder{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(t, cat, WithTechniqueSink(rec.sink), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	report, err := m.Ingest(ctx, "BTC", []RawFile{textFile("prices.csv", "date,close\n2024-01-01,42000")})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	m.Wait()

	if len(report.Added) != 1 {
		t.Fatalf("want 1 added, got %+v", report)
	}
	a := report.Added[0]
	if a.ID == 0 || a.Symbol != "BTC" || a.Category != models.CategoryMarketData {
		t.Errorf("unexpected artifact: %+v", a)
	}
	if a.ContentHash != hashContent("date,close\n2024-01-01,42000") || len(a.ContentHash) != 64 {
		t.Errorf("content hash: %q", a.ContentHash)
	}
	if !a.UploadedAt.Equal(fixed) {
		t.Errorf("UploadedAt = %v", a.UploadedAt)
	}
	if got := rec.got(); len(got) != 1 || got[0] != "prices.csv" {
		t.Errorf("sink should receive the new text file, got %v", got)
	}
}

func TestIngestImage(t *testing.T) {
	cat := &mockCategorizer{}
	rec := &sinkRecorder{}
	m := newManager(t, cat, WithTechniqueSink(rec.sink))

	report, err := m.Ingest(context.Background(), "BTC", []RawFile{{Name: "chart.png", Data: pngBytes}})
	if err != nil {
		t.Fatal(err)
	}
	m.Wait()

	a := report.Added[0]
	if a.MimeType != "image/png" {
		t.Errorf("mime should be sniffed, got %q", a.MimeType)
	}
	if a.Category != models.CategoryChartImage {
		t.Errorf("category = %q", a.Category)
	}
	if a.Content != base64.StdEncoding.EncodeToString(pngBytes) {
		t.Error("image content should be base64")
	}
	if cat.calls.Load() != 0 {
		t.Error("images must not be sent to the categorizer")
	}
	if len(rec.got()) != 0 {
		t.Error("images must not trigger technique extraction")
	}
}

func TestIngestDedupOrder(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, &mockCategorizer{})

	if _, err := m.Ingest(ctx, "ETH", []RawFile{textFile("a.csv", "one"), textFile("b.csv", "two")}); err != nil {
		t.Fatal(err)
	}

	report, err := m.Ingest(ctx, "ETH", []RawFile{
		textFile("c.csv", "three"), // add
		textFile("d.csv", "three"), // duplicate within batch
		textFile("e.csv", "one"),   // duplicate of a.csv
		textFile("b.csv", "two"),   // unchanged
		textFile("a.csv", "ONE"),   // update
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Added) != 1 || report.Added[0].Name != "c.csv" {
		t.Errorf("added: %+v", report.Added)
	}
	if len(report.Updated) != 1 || report.Updated[0].Name != "a.csv" {
		t.Errorf("updated: %+v", report.Updated)
	}
	kinds := map[string]string{}
	for _, ig := range report.Ignored {
		kinds[ig.Name] = ig.Kind
	}
	want := map[string]string{
		"d.csv": IgnoredDuplicateBatch,
		"e.csv": IgnoredDuplicateExisting,
		"b.csv": IgnoredUnchanged,
	}
	for name, kind := range want {
		if kinds[name] != kind {
			t.Errorf("%s: kind %q, want %q", name, kinds[name], kind)
		}
	}
	for _, ig := range report.Ignored {
		if ig.Kind == IgnoredDuplicateExisting && !strings.Contains(ig.Reason, `"a.csv"`) {
			t.Errorf("duplicate reason should name the existing file: %q", ig.Reason)
		}
	}
}

func TestIngestUpdateKeepsID(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, &mockCategorizer{})

	first, _ := m.Ingest(ctx, "AAPL", []RawFile{textFile("notes.txt", "v1")})
	second, err := m.Ingest(ctx, "AAPL", []RawFile{textFile("notes.txt", "v2")})
	if err != nil {
		t.Fatal(err)
	}
	if second.Updated[0].ID != first.Added[0].ID {
		t.Errorf("update should keep id %d, got %d", first.Added[0].ID, second.Updated[0].ID)
	}
	list, _ := m.ListFor(ctx, "AAPL")
	if len(list) != 1 || list[0].Content != "v2" {
		t.Errorf("ListFor after update: %+v", list)
	}
}

func TestIngestUpdateReleasesOldContent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, &mockCategorizer{})

	m.Ingest(ctx, "AAPL", []RawFile{textFile("a.txt", "one")})
	report, err := m.Ingest(ctx, "AAPL", []RawFile{textFile("a.txt", "two"), textFile("b.txt", "one")})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Updated) != 1 || len(report.Added) != 1 || len(report.Ignored) != 0 {
		t.Fatalf("report = %+v, want a.txt updated and b.txt added", report)
	}
	list, _ := m.ListFor(ctx, "AAPL")
	if len(list) != 2 || list[1].Name != "b.txt" || list[1].Content != "one" {
		t.Errorf("ListFor = %+v", list)
	}
}

func TestIngestSameContentOtherSymbol(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, &mockCategorizer{})

	m.Ingest(ctx, "AAPL", []RawFile{textFile("x.csv", "same")})
	report, _ := m.Ingest(ctx, "MSFT", []RawFile{textFile("y.csv", "same")})
	if len(report.Added) != 1 {
		t.Errorf("dedup is per symbol, got %+v", report)
	}
}

func TestIngestCategorizerFailureFallsBackToOther(t *testing.T) {
	cat := &mockCategorizer{fn: func(int32, string) (models.FileCategory, error) {
		return "", errors.New("model returned nonsense")
	}}
	m := newManager(t, cat)

	report, err := m.Ingest(context.Background(), "BTC", []RawFile{textFile("x.txt", "hello")})
	if err != nil {
		t.Fatal(err)
	}
	if report.Added[0].Category != models.CategoryOther {
		t.Errorf("category = %q, want other", report.Added[0].Category)
	}
}

func TestIngestRateLimitAbortsBatch(t *testing.T) {
	cat := &mockCategorizer{fn: func(n int32, _ string) (models.FileCategory, error) {
		if n == 3 {
			return "", fmt.Errorf("gemini: %w", llm.ErrRateLimit)
		}
		return models.CategoryNews, nil
	}}
	rec := &events.Recorder{}
	m := newManager(t, cat, WithPublisher(rec))
	ctx := context.Background()

	var files []RawFile
	for i := 1; i <= 5; i++ {
		files = append(files, textFile(fmt.Sprintf("f%d.txt", i), fmt.Sprintf("body %d", i)))
	}
	report, err := m.Ingest(ctx, "BTC", files)

	if !errors.Is(err, apperr.Transient) {
		t.Fatalf("want transient error, got %v", err)
	}
	if apperr.UserMessage(err) != RateLimitMessage {
		t.Errorf("message = %q", apperr.UserMessage(err))
	}
	if len(report.Added) != 2 {
		t.Errorf("want 2 files processed before the limit, got %d", len(report.Added))
	}
	if cat.calls.Load() != 3 {
		t.Errorf("files after the failure must not be touched, calls = %d", cat.calls.Load())
	}
	list, _ := m.ListFor(ctx, "BTC")
	if len(list) != 2 {
		t.Errorf("archive should hold 2 files, got %d", len(list))
	}
	if types := rec.Types(); len(types) != 3 || types[2] != events.IngestFile {
		t.Errorf("events: %v", types)
	}
}

func TestIngestRateLimitByStatusText(t *testing.T) {
	cat := &mockCategorizer{fn: func(int32, string) (models.FileCategory, error) {
		return "", errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")
	}}
	m := newManager(t, cat)
	_, err := m.Ingest(context.Background(), "BTC", []RawFile{textFile("a.txt", "a")})
	if apperr.KindOf(err) != apperr.KindTransient {
		t.Errorf("want transient, got %v", err)
	}
}

func TestIngestPerFileErrorContinues(t *testing.T) {
	m := newManager(t, &mockCategorizer{})
	report, err := m.Ingest(context.Background(), "BTC", []RawFile{
		{Name: "empty.txt", MimeType: "text/plain"},
		textFile("ok.csv", "fine"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Errors) != 1 || report.Errors[0].Name != "empty.txt" {
		t.Errorf("errors: %+v", report.Errors)
	}
	if len(report.Added) != 1 {
		t.Errorf("processing should continue after a per-file error")
	}
}

func TestIngestDoesNotWaitForSink(t *testing.T) {
	release := make(chan struct{})
	var failed atomic.Bool
	sink := func(context.Context, models.Artifact) error {
		<-release
		failed.Store(true)
		return errors.New("extraction failed")
	}
	m := newManager(t, &mockCategorizer{}, WithTechniqueSink(sink))

	done := make(chan error, 1)
	go func() {
		_, err := m.Ingest(context.Background(), "BTC", []RawFile{textFile("s.txt", "strategy")})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sink failure must not fail ingest: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Ingest blocked on the technique sink")
	}
	close(release)
	m.Wait()
	if !failed.Load() {
		t.Error("sink should have run")
	}
}

func TestIngestRequiresSymbol(t *testing.T) {
	m := newManager(t, &mockCategorizer{})
	_, err := m.Ingest(context.Background(), "", []RawFile{textFile("a", "b")})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("want validation error, got %v", err)
	}
}

func TestIngestHTML(t *testing.T) {
	cat := &mockCategorizer{}
	var seen string
	cat.fn = func(_ int32, text string) (models.FileCategory, error) {
		seen = text
		return models.CategoryNews, nil
	}
	m := newManager(t, cat)

	html := `<html><head><script>alert(1)</script></head><body><h1>Fed  holds</h1><p>Rates &amp; bonds</p></body></html>`
	report, err := m.Ingest(context.Background(), "SPY", []RawFile{{Name: "article.html", MimeType: "text/html", Data: []byte(html)}})
	if err != nil {
		t.Fatal(err)
	}
	content := report.Added[0].Content
	if strings.Contains(content, "<") || strings.Contains(content, "alert") {
		t.Errorf("markup should be stripped: %q", content)
	}
	if !strings.Contains(content, "Fed holds") || !strings.Contains(content, "Rates & bonds") {
		t.Errorf("text should survive: %q", content)
	}
	if seen != content {
		t.Error("categorizer should see the cleaned text")
	}
}

// ════════════════════════════════════════════════════════════════════
// Maintenance
// ════════════════════════════════════════════════════════════════════

func TestRemoveAndList(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, &mockCategorizer{})
	m.Ingest(ctx, "BTC", []RawFile{textFile("a.csv", "1"), textFile("b.csv", "2")})
	m.Ingest(ctx, "ETH", []RawFile{textFile("c.csv", "3")})

	if err := m.Remove(ctx, "BTC", "missing.csv"); err != nil {
		t.Errorf("removing an absent file should be a no-op: %v", err)
	}
	if err := m.Remove(ctx, "BTC", "a.csv"); err != nil {
		t.Fatal(err)
	}
	list, _ := m.ListFor(ctx, "BTC")
	if len(list) != 1 || list[0].Name != "b.csv" {
		t.Errorf("ListFor: %+v", list)
	}
	all, _ := m.List(ctx)
	if len(all) != 2 {
		t.Errorf("List: %d", len(all))
	}

	if err := m.ReplaceAll(ctx, []models.Artifact{{Name: "z.csv", Symbol: "SOL"}}); err != nil {
		t.Fatal(err)
	}
	all, _ = m.List(ctx)
	if len(all) != 1 || all[0].Symbol != "SOL" {
		t.Errorf("ReplaceAll: %+v", all)
	}
	if err := m.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	all, _ = m.List(ctx)
	if len(all) != 0 {
		t.Error("ClearAll should empty the archive")
	}
}

// ════════════════════════════════════════════════════════════════════
// LLM categorizer
// ════════════════════════════════════════════════════════════════════

type mockProvider struct {
	chatFunc func(ctx context.Context, msgs []llm.Message, opts *llm.ChatOptions) (*llm.Response, error)
}

func (m *mockProvider) Name() string                 { return "mock" }
func (m *mockProvider) Models() []string             { return []string{"mock-1"} }
func (m *mockProvider) Ping(_ context.Context) error { return nil }
func (m *mockProvider) Chat(ctx context.Context, msgs []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
	return m.chatFunc(ctx, msgs, opts)
}

func TestLLMCategorizer(t *testing.T) {
	var userLen int
	p := &mockProvider{chatFunc: func(_ context.Context, msgs []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
		if opts.ResponseSchema == nil || len(opts.ResponseSchema.Enum) != len(models.FileCategories) {
			t.Errorf("schema should enumerate the categories: %+v", opts.ResponseSchema)
		}
		userLen = strings.Count(msgs[1].Content, "x")
		return &llm.Response{Content: "```json\n\"Personal Strategy\"\n```"}, nil
	}}
	c := NewLLMCategorizer(p, 4000)

	got, err := c.Categorize(context.Background(), strings.Repeat("x", 6000))
	if err != nil {
		t.Fatal(err)
	}
	if got != models.CategoryPersonalStrategy {
		t.Errorf("got %q", got)
	}
	if userLen != 4000 {
		t.Errorf("content should be truncated to 4000, got %d", userLen)
	}
}

func TestLLMCategorizerUnknown(t *testing.T) {
	p := &mockProvider{chatFunc: func(context.Context, []llm.Message, *llm.ChatOptions) (*llm.Response, error) {
		return &llm.Response{Content: `"recipes"`}, nil
	}}
	if _, err := NewLLMCategorizer(p, 0).Categorize(context.Background(), "x"); err == nil {
		t.Error("unknown category should be an error")
	}
}
