package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/tradelens/internal/app"
	"github.com/seenimoa/tradelens/internal/cache"
	"github.com/seenimoa/tradelens/internal/config"
	"github.com/seenimoa/tradelens/internal/events"
	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
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

func analysisJSON(t *testing.T) string {
	t.Helper()
	candles := make([]any, 0, 4)
	for i, d := range []string{"2024-03-01T00:00:00Z", "2024-03-02T00:00:00Z", "2024-03-03T00:00:00Z", "2024-03-04T00:00:00Z"} {
		candles = append(candles, map[string]any{
			"date": d, "open": 100.0 + float64(i), "high": 112.0, "low": 95.0, "close": 104.0 + float64(i), "volume": 1000.0,
		})
	}
	raw, err := json.Marshal(map[string]any{
		"symbol":          "BTCUSD",
		"timeframe":       "daily",
		"timezone":        "UTC",
		"trend":           "Uptrend",
		"summary":         "Momentum is building.",
		"signal":          "buy",
		"sentiment":       "Bullish",
		"sentimentScore":  55.0,
		"newsSummary":     "ETF inflows continue.",
		"patterns":        []any{},
		"indicators": map[string]any{
			"rsi":       map[string]any{"value": 61.0, "signal": "Neutral", "description": "Room to run"},
			"macd":      map[string]any{"signal": "Bullish crossover", "description": "Fresh cross"},
			"bollinger": map[string]any{"signal": "Upper band", "description": "Riding the band"},
		},
		"strategy": map[string]any{
			"primary": map[string]any{
				"title": "Breakout", "description": "Buy the break",
				"entryConditions": []any{"Close above 105"}, "exitConditions": []any{"Close below 96"},
			},
			"riskManagement":         map[string]any{"positionSizing": "1% risk", "riskRewardRatio": "1:3"},
			"simulatedBacktestNotes": "Worked in 2023.",
		},
		"buyTargets":      []any{105.0},
		"sellTargets":     []any{120.0},
		"stopLoss":        96.0,
		"prediction":      "Higher within two weeks.",
		"riskLevel":       "medium",
		"confidence":      70.0,
		"candlestickData": candles,
		"priceChartData": []any{
			map[string]any{"date": "2024-03-05T00:00:00Z", "price": 109.0, "type": "predicted"},
			map[string]any{"date": "2024-03-06T00:00:00Z", "price": 112.0, "type": "predicted"},
		},
		"learnedInsights": "Flags after ETF news resolve upward.",
		"keyTakeaways":    []any{"Trend intact"},
		"proTip":          "Wait for the daily close.",
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

// engine answers search calls with news, schema calls with an analysis and
// everything else as a chat reply.
func engine(t *testing.T) *mockProvider {
	analysis := analysisJSON(t)
	return &mockProvider{chatFunc: func(_ context.Context, _ []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
		switch {
		case opts != nil && opts.WebSearch:
			return &llm.Response{Content: "ETF inflows continue."}, nil
		case opts != nil && opts.ResponseSchema != nil:
			return &llm.Response{Content: analysis}, nil
		default:
			return &llm.Response{Content: "Support sits near 96."}, nil
		}
	}}
}

func testConfig() *config.Config {
	return &config.Config{
		Store:    config.StoreConfig{Driver: "memory"},
		Analysis: config.AnalysisConfig{DefaultTimezone: "UTC", Timeout: time.Minute},
	}
}

func testServer(t *testing.T, p llm.LLMProvider) *Server {
	t.Helper()
	hub := NewWSHub()
	opts := []app.Option{
		app.WithStore(store.New(store.NewMemory())),
		app.WithCache(cache.NewMemory()),
		app.WithPublisher(hub),
	}
	if p != nil {
		opts = append(opts, app.WithProvider(p))
	}
	a, err := app.New(context.Background(), testConfig(), opts...)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return NewServer(a, hub)
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// decodeData re-decodes the envelope's data into v.
func decodeData(t *testing.T, resp APIResponse, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func analyze(t *testing.T, srv *Server) models.AnalysisRecord {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{Symbol: "BTCUSD", Timeframe: "daily"})
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out models.AnalysisRecord
	decodeData(t, decodeResponse(t, rec), &out)
	return out
}

// ════════════════════════════════════════════════════════════════════
// Health
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv := testServer(t, engine(t))
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := do(t, srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		resp := decodeResponse(t, rec)
		data := resp.Data.(map[string]any)
		if data["status"] != "ok" || data["ai"] != true {
			t.Errorf("%s data = %v", path, data)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Analysis
// ════════════════════════════════════════════════════════════════════

func TestAnalyze(t *testing.T) {
	srv := testServer(t, engine(t))
	rec := analyze(t, srv)
	if rec.ID == 0 || rec.Symbol != "BTCUSD" {
		t.Errorf("record = %d %q", rec.ID, rec.Symbol)
	}
	if rec.Analysis.Signal != models.SignalBuy {
		t.Errorf("signal = %q", rec.Analysis.Signal)
	}

	active := do(t, srv, http.MethodGet, "/api/v1/analysis/active", nil)
	if active.Code != http.StatusOK {
		t.Fatalf("active status = %d", active.Code)
	}
	var got ActiveResponse
	decodeData(t, decodeResponse(t, active), &got)
	if got.Kind != models.RecordHistory || got.Record.ID != rec.ID {
		t.Errorf("active = %s %d", got.Kind, got.Record.ID)
	}
}

func TestAnalyze_Validation(t *testing.T) {
	srv := testServer(t, engine(t))
	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing symbol", AnalyzeRequest{}, http.StatusUnprocessableEntity},
		{"bad timeframe", AnalyzeRequest{Symbol: "BTCUSD", Timeframe: "hourly"}, http.StatusUnprocessableEntity},
		{"bad risk", AnalyzeRequest{Symbol: "BTCUSD", RiskProfile: "yolo"}, http.StatusUnprocessableEntity},
		{"bad json", "{not json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/analyze", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if resp := decodeResponse(t, rec); resp.Success || resp.Error == "" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestAnalyze_NoProvider(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{Symbol: "BTCUSD"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if resp := decodeResponse(t, rec); !strings.Contains(resp.Error, "API key") {
		t.Errorf("error = %q", resp.Error)
	}
}

// ════════════════════════════════════════════════════════════════════
// History, chat and reports
// ════════════════════════════════════════════════════════════════════

func TestHistoryLifecycle(t *testing.T) {
	srv := testServer(t, engine(t))
	first := analyze(t, srv)
	second := analyze(t, srv)

	list := do(t, srv, http.MethodGet, "/api/v1/history", nil)
	var recs []models.AnalysisRecord
	decodeData(t, decodeResponse(t, list), &recs)
	if len(recs) != 2 || recs[0].ID != second.ID {
		t.Fatalf("history should be newest first, got %d records", len(recs))
	}

	get := do(t, srv, http.MethodGet, "/api/v1/history/"+itoa(first.ID), nil)
	if get.Code != http.StatusOK {
		t.Errorf("get status = %d", get.Code)
	}

	if rec := do(t, srv, http.MethodDelete, "/api/v1/history/"+itoa(first.ID), nil); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/history/"+itoa(first.ID), nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/history/abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", rec.Code)
	}
}

func TestSaveAndChat(t *testing.T) {
	srv := testServer(t, engine(t))
	rec := analyze(t, srv)

	save := do(t, srv, http.MethodPost, "/api/v1/history/"+itoa(rec.ID)+"/save", SaveRequest{Name: "BTC breakout"})
	if save.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body %s", save.Code, save.Body.String())
	}
	var saved models.SavedAnalysisRecord
	decodeData(t, decodeResponse(t, save), &saved)

	send := do(t, srv, http.MethodPost, "/api/v1/saved/"+itoa(saved.ID)+"/chat", ChatRequest{Message: "Where is support?"})
	if send.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body %s", send.Code, send.Body.String())
	}
	var reply models.ChatMessage
	decodeData(t, decodeResponse(t, send), &reply)
	if reply.Role != models.ChatModel || reply.Text() != "Support sits near 96." {
		t.Errorf("reply = %+v", reply)
	}

	msgs := do(t, srv, http.MethodGet, "/api/v1/saved/"+itoa(saved.ID)+"/chat", nil)
	var turns []models.ChatMessage
	decodeData(t, decodeResponse(t, msgs), &turns)
	if len(turns) != 2 {
		t.Errorf("turns = %d, want 2", len(turns))
	}

	// The history copy is untouched.
	hist := do(t, srv, http.MethodGet, "/api/v1/history/"+itoa(rec.ID)+"/chat", nil)
	decodeData(t, decodeResponse(t, hist), &turns)
	if len(turns) != 0 {
		t.Errorf("history turns = %d, want 0", len(turns))
	}

	if empty := do(t, srv, http.MethodPost, "/api/v1/saved/"+itoa(saved.ID)+"/chat", ChatRequest{Message: "  "}); empty.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty message = %d, want 422", empty.Code)
	}
}

func TestReportAndChart(t *testing.T) {
	srv := testServer(t, engine(t))
	rec := analyze(t, srv)
	base := "/api/v1/history/" + itoa(rec.ID)

	html := do(t, srv, http.MethodGet, base+"/report", nil)
	if html.Code != http.StatusOK || !strings.HasPrefix(html.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("report = %d %s", html.Code, html.Header().Get("Content-Type"))
	}
	if !strings.Contains(html.Body.String(), "BTCUSD") {
		t.Error("report should name the symbol")
	}

	txt := do(t, srv, http.MethodGet, base+"/report?format=text&sections=summary", nil)
	if !strings.HasPrefix(txt.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("text report content type = %s", txt.Header().Get("Content-Type"))
	}
	if bad := do(t, srv, http.MethodGet, base+"/report?sections=bogus", nil); bad.Code != http.StatusBadRequest {
		t.Errorf("unknown section = %d, want 400", bad.Code)
	}

	png := do(t, srv, http.MethodGet, base+"/chart.png", nil)
	if png.Code != http.StatusOK {
		t.Fatalf("chart status = %d, body %s", png.Code, png.Body.String())
	}
	if !bytes.HasPrefix(png.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("chart should be a PNG")
	}
}

// ════════════════════════════════════════════════════════════════════
// Watchlist and preferences
// ════════════════════════════════════════════════════════════════════

func TestWatchlist(t *testing.T) {
	srv := testServer(t, nil)

	add := do(t, srv, http.MethodPost, "/api/v1/watchlist", WatchlistRequest{Symbol: "btcusd"})
	if add.Code != http.StatusCreated {
		t.Fatalf("add status = %d", add.Code)
	}
	var item models.WatchlistItem
	decodeData(t, decodeResponse(t, add), &item)
	if item.Symbol != "BTCUSD" {
		t.Errorf("symbol = %q, want upper-cased", item.Symbol)
	}

	dup := do(t, srv, http.MethodPost, "/api/v1/watchlist", WatchlistRequest{Symbol: "BTCUSD"})
	if dup.Code != http.StatusOK {
		t.Errorf("duplicate status = %d, want 200", dup.Code)
	}

	list := do(t, srv, http.MethodGet, "/api/v1/watchlist", nil)
	var items []models.WatchlistItem
	decodeData(t, decodeResponse(t, list), &items)
	if len(items) != 1 {
		t.Errorf("items = %d, want 1", len(items))
	}

	if rm := do(t, srv, http.MethodDelete, "/api/v1/watchlist/BTCUSD", nil); rm.Code != http.StatusOK {
		t.Errorf("remove status = %d", rm.Code)
	}
	if rm := do(t, srv, http.MethodDelete, "/api/v1/watchlist/BTCUSD", nil); rm.Code != http.StatusNotFound {
		t.Errorf("second remove = %d, want 404", rm.Code)
	}
}

func TestPreferences(t *testing.T) {
	srv := testServer(t, engine(t))

	put := do(t, srv, http.MethodPut, "/api/v1/preferences", models.Preferences{
		Provider:           "mock",
		DefaultTimeframe:   models.TimeframeWeekly,
		DefaultRiskProfile: models.RiskConservative,
	})
	if put.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", put.Code, put.Body.String())
	}

	get := do(t, srv, http.MethodGet, "/api/v1/preferences", nil)
	var p models.Preferences
	decodeData(t, decodeResponse(t, get), &p)
	if p.DefaultTimeframe != models.TimeframeWeekly || p.DefaultRiskProfile != models.RiskConservative {
		t.Errorf("preferences = %+v", p)
	}

	bad := do(t, srv, http.MethodPut, "/api/v1/preferences", map[string]string{"timeframe": "hourly"})
	if bad.Code == http.StatusOK {
		t.Error("an unknown timeframe should be rejected")
	}
}

// ════════════════════════════════════════════════════════════════════
// Research and catalog
// ════════════════════════════════════════════════════════════════════

func TestCatalog(t *testing.T) {
	srv := testServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/catalog?timeframe=daily&risk=aggressive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var cat CatalogResponse
	decodeData(t, decodeResponse(t, rec), &cat)
	if len(cat.Strategies) == 0 || len(cat.Indicators) == 0 {
		t.Error("catalog should list built-in techniques")
	}
	if cat.Suggested == nil {
		t.Error("a timeframe should produce a suggested selection")
	}

	if bad := do(t, srv, http.MethodGet, "/api/v1/catalog?timeframe=hourly", nil); bad.Code != http.StatusBadRequest {
		t.Errorf("bad timeframe = %d, want 400", bad.Code)
	}
}

func TestResearch_NoProvider(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/compare", CompareRequest{SymbolA: "BTCUSD", SymbolB: "ETHUSD"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("compare status = %d, want 503", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/v1/techniques/discover", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("discover status = %d, want 503", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Backup and configuration
// ════════════════════════════════════════════════════════════════════

func TestExportImport(t *testing.T) {
	srv := testServer(t, engine(t))
	analyze(t, srv)
	do(t, srv, http.MethodPost, "/api/v1/watchlist", WatchlistRequest{Symbol: "ETHUSD"})

	exp := do(t, srv, http.MethodGet, "/api/v1/export", nil)
	if exp.Code != http.StatusOK {
		t.Fatalf("export status = %d", exp.Code)
	}
	if cd := exp.Header().Get("Content-Disposition"); !strings.Contains(cd, "tradelens-backup-") {
		t.Errorf("content disposition = %q", cd)
	}
	doc := exp.Body.String()

	other := testServer(t, nil)
	imp := do(t, other, http.MethodPost, "/api/v1/import?only=watchlist", doc)
	if imp.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", imp.Code, imp.Body.String())
	}

	list := do(t, other, http.MethodGet, "/api/v1/watchlist", nil)
	var items []models.WatchlistItem
	decodeData(t, decodeResponse(t, list), &items)
	if len(items) != 1 || items[0].Symbol != "ETHUSD" {
		t.Errorf("watchlist = %+v", items)
	}
	hist := do(t, other, http.MethodGet, "/api/v1/history", nil)
	var recs []models.AnalysisRecord
	decodeData(t, decodeResponse(t, hist), &recs)
	if len(recs) != 0 {
		t.Errorf("history was not selected, got %d records", len(recs))
	}

	if bad := do(t, other, http.MethodPost, "/api/v1/import", "not a backup"); bad.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid document = %d, want 422", bad.Code)
	}
	if bad := do(t, other, http.MethodPost, "/api/v1/import?only=bogus", doc); bad.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown category = %d, want 422", bad.Code)
	}
}

func TestConfigKeys(t *testing.T) {
	srv := testServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/api/v1/config/keys", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var keys KeysResponse
	decodeData(t, decodeResponse(t, rec), &keys)
	if keys.AIReady {
		t.Error("no provider configured, AI should not be ready")
	}
	if keys.StoreDriver != "memory" || keys.Cache != "memory" {
		t.Errorf("backends = %q %q", keys.StoreDriver, keys.Cache)
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket hub
// ════════════════════════════════════════════════════════════════════

func TestWSHub_Broadcast(t *testing.T) {
	hub := NewWSHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{hub: hub, send: make(chan WSMessage, 4)}
	hub.Register(client)

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("clients = %d, want 1", hub.ClientCount())
	}

	hub.Publish(ctx, events.New(events.AnalysisStarted, map[string]string{"symbol": "BTCUSD"}))
	select {
	case msg := <-client.send:
		if msg.Type != events.AnalysisStarted {
			t.Errorf("type = %q", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	hub.Unregister(client)
	if _, ok := <-client.send; ok {
		t.Error("send should be closed after unregister")
	}
}

func TestWSHub_AnalysisEvents(t *testing.T) {
	srv := testServer(t, engine(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.wsHub.Run(ctx)

	client := &WSClient{hub: srv.wsHub, send: make(chan WSMessage, 16)}
	srv.wsHub.Register(client)

	analyze(t, srv)

	var types []string
	timeout := time.After(time.Second)
	for len(types) < 3 {
		select {
		case msg := <-client.send:
			types = append(types, msg.Type)
		case <-timeout:
			t.Fatalf("events = %v", types)
		}
	}
	if types[0] != events.AnalysisStarted || types[len(types)-1] != events.AnalysisCompleted {
		t.Errorf("events = %v", types)
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
