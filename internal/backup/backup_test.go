package backup

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

func seeded(t *testing.T) (*store.Store, *Service) {
	t.Helper()
	ctx := context.Background()
	s := store.New(store.NewMemory())
	must := func(_ int64, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.History.Add(ctx, &models.AnalysisRecord{Symbol: "BTCUSD", Timeframe: models.TimeframeDaily}))
	must(s.Saved.Add(ctx, &models.SavedAnalysisRecord{AnalysisRecord: models.AnalysisRecord{Symbol: "BTCUSD"}, Name: "keep"}))
	must(s.Artifacts.Add(ctx, &models.Artifact{Name: "a.csv", Symbol: "BTCUSD", Content: "x"}))
	must(s.Watchlist.Add(ctx, &models.WatchlistItem{Symbol: "BTCUSD"}))
	must(s.Watchlist.Add(ctx, &models.WatchlistItem{Symbol: "ETHUSD"}))
	must(s.Knowledge.Add(ctx, &models.KnowledgeItem{Type: models.KnowledgeInsight, Content: "insight", Symbol: "BTCUSD"}))
	must(s.Techniques.Add(ctx, &models.LearnedTechnique{Name: "Turtle", Type: models.TechniqueStrategy, Description: "d"}))
	if err := s.SetPreferences(ctx, models.Preferences{TourCompleted: true, Timezone: "Asia/Tehran"}); err != nil {
		t.Fatal(err)
	}
	svc := NewService(s, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s, svc
}

// ════════════════════════════════════════════════════════════════════
// Export
// ════════════════════════════════════════════════════════════════════

func TestExport(t *testing.T) {
	_, svc := seeded(t)
	doc, err := svc.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(doc.History) != 1 || len(doc.SavedAnalyses) != 1 || len(doc.ArchivedFiles) != 1 ||
		len(doc.Watchlist) != 2 || len(doc.KnowledgeItems) != 1 || len(doc.Techniques) != 1 {
		t.Errorf("doc = %+v", doc)
	}
	if !doc.Preferences.TourCompleted {
		t.Error("preferences should carry tourCompleted")
	}

	raw, _ := json.Marshal(doc)
	var keys map[string]json.RawMessage
	_ = json.Unmarshal(raw, &keys)
	for _, c := range Categories {
		if _, ok := keys[string(c)]; !ok {
			t.Errorf("exported document missing key %q", c)
		}
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src, svc := seeded(t)
	ctx := context.Background()
	doc, _ := svc.Export(ctx)
	raw, _ := json.Marshal(doc)

	dst := store.New(store.NewMemory())
	report, err := NewService(dst, nil).Import(ctx, raw, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(report.Applied) != len(Categories) || len(report.Skipped) != 0 {
		t.Errorf("report = %+v", report)
	}
	want, _ := src.Watchlist.GetAll(ctx)
	got, _ := dst.Watchlist.GetAll(ctx)
	if len(got) != len(want) || got[1].Symbol != "ETHUSD" || got[1].ID != want[1].ID {
		t.Errorf("watchlist = %+v, want %+v", got, want)
	}
	p, _ := dst.Preferences(ctx)
	if !p.TourCompleted || p.Timezone != "Asia/Tehran" {
		t.Errorf("preferences = %+v", p)
	}
}

// ════════════════════════════════════════════════════════════════════
// Import
// ════════════════════════════════════════════════════════════════════

func TestImport_SelectiveReplace(t *testing.T) {
	s, svc := seeded(t)
	ctx := context.Background()
	raw := `{"watchlist":[{"id":9,"symbol":"SOLUSD"}],"history":[]}`

	report, err := svc.Import(ctx, []byte(raw), []Category{Watchlist})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Applied[Watchlist] != 1 {
		t.Errorf("report = %+v", report)
	}
	wl, _ := s.Watchlist.GetAll(ctx)
	if len(wl) != 1 || wl[0].Symbol != "SOLUSD" {
		t.Errorf("watchlist = %+v, want exactly the imported entry", wl)
	}
	hist, _ := s.History.GetAll(ctx)
	if len(hist) != 1 {
		t.Error("unselected history must be untouched")
	}
}

func TestImport_MalformedCategorySkipped(t *testing.T) {
	s, svc := seeded(t)
	ctx := context.Background()
	raw := `{
		"watchlist": {"not": "a list"},
		"techniques": [{"name":"x"}],
		"knowledgeItems": [{"type":"Insight","content":"fresh","symbol":"ETHUSD"}]
	}`
	report, err := svc.Import(ctx, []byte(raw), []Category{Watchlist, Techniques, Knowledge, Saved})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Applied[Knowledge] != 1 {
		t.Errorf("knowledge should apply: %+v", report)
	}
	for _, c := range []Category{Watchlist, Techniques, Saved} {
		if !slices.Contains(report.Skipped, c) {
			t.Errorf("%s should be skipped", c)
		}
	}
	if len(report.Warnings) != 3 {
		t.Errorf("warnings = %v", report.Warnings)
	}
	if !strings.Contains(strings.Join(report.Warnings, "\n"), "not present") {
		t.Error("missing category should be reported as not present")
	}

	wl, _ := s.Watchlist.GetAll(ctx)
	techs, _ := s.Techniques.GetAll(ctx)
	if len(wl) != 2 || len(techs) != 1 {
		t.Error("skipped categories must keep their old contents")
	}
	items, _ := s.Knowledge.GetAll(ctx)
	if len(items) != 1 || items[0].Content != "fresh" {
		t.Errorf("knowledge = %+v", items)
	}
}

func TestImport_DuplicateIDsGetFreshOnes(t *testing.T) {
	s, svc := seeded(t)
	ctx := context.Background()
	raw := `{"watchlist":[{"id":3,"symbol":"A"},{"id":3,"symbol":"B"}]}`
	if _, err := svc.Import(ctx, []byte(raw), []Category{Watchlist}); err != nil {
		t.Fatal(err)
	}
	wl, _ := s.Watchlist.GetAll(ctx)
	if len(wl) != 2 || wl[0].ID == wl[1].ID {
		t.Errorf("watchlist = %+v", wl)
	}
}

func TestImport_ArtifactHashRecomputed(t *testing.T) {
	s, svc := seeded(t)
	ctx := context.Background()
	raw := `{"archivedFiles":[
		{"name":"p.csv","symbol":"BTCUSD","content":"date,close","contentHash":"forged"},
		{"name":"q.csv","symbol":"BTCUSD","content":"date,open"}
	]}`
	if _, err := svc.Import(ctx, []byte(raw), []Category{Artifacts}); err != nil {
		t.Fatal(err)
	}
	arts, _ := s.Artifacts.GetAll(ctx)
	if len(arts) != 2 {
		t.Fatalf("artifacts = %+v", arts)
	}
	for _, a := range arts {
		if a.ContentHash != models.HashContent(a.Content) {
			t.Errorf("%s: hash %q does not match its content", a.Name, a.ContentHash)
		}
	}
}

func TestImport_InvalidDocument(t *testing.T) {
	_, svc := seeded(t)
	for _, raw := range []string{"", "not json", "[1,2]", "null"} {
		if _, err := svc.Import(context.Background(), []byte(raw), nil); !errors.Is(err, apperr.Validation) {
			t.Errorf("Import(%q) err = %v, want validation", raw, err)
		}
	}
}

func TestParseCategories(t *testing.T) {
	all, err := ParseCategories(nil)
	if err != nil || len(all) != len(Categories) {
		t.Errorf("empty selection = %v, %v", all, err)
	}
	got, err := ParseCategories([]string{"watchlist", " preferences"})
	if err != nil || len(got) != 2 || got[1] != Preferences {
		t.Errorf("got %v, %v", got, err)
	}
	if _, err := ParseCategories([]string{"everything"}); !errors.Is(err, apperr.Validation) {
		t.Errorf("unknown category err = %v", err)
	}
}
