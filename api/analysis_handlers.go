package api

import (
	"bytes"
	"errors"
	"net/http"
	"slices"

	"github.com/seenimoa/tradelens/internal/analysis"
	"github.com/seenimoa/tradelens/internal/report"
	"github.com/seenimoa/tradelens/pkg/models"
)

const (
	recordHistory = models.RecordHistory
	recordSaved   = models.RecordSaved
)

// AnalyzeRequest is the body for POST /api/v1/analyze.
type AnalyzeRequest struct {
	Symbol      string   `json:"symbol"`
	Timeframe   string   `json:"timeframe,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	RiskProfile string   `json:"riskProfile,omitempty"`
	Strategies  []string `json:"strategies,omitempty"`
	Indicators  []string `json:"indicators,omitempty"`
}

// ActiveRequest selects the record shown as the current analysis.
type ActiveRequest struct {
	Kind models.RecordKind `json:"kind"`
	ID   int64             `json:"id"`
}

// ActiveResponse is the current analysis and where it lives.
type ActiveResponse struct {
	Kind   models.RecordKind      `json:"kind"`
	Record *models.AnalysisRecord `json:"record"`
}

// WhatIfRequest is the body for POST /api/v1/analysis/whatif.
type WhatIfRequest struct {
	ID       int64  `json:"id"`
	Scenario string `json:"scenario"`
}

// SaveRequest is the body for POST /api/v1/history/{id}/save.
type SaveRequest struct {
	Name string `json:"name"`
}

// ChatRequest is the body of a follow-up chat turn.
type ChatRequest struct {
	Message string `json:"message"`
}

// ============================================================
// Analysis
// ============================================================

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := s.app.Analysis.Run(r.Context(), analysis.Request{
		Symbol:      req.Symbol,
		Timeframe:   models.Timeframe(req.Timeframe),
		Timezone:    req.Timezone,
		RiskProfile: models.RiskProfile(req.RiskProfile),
		Strategies:  req.Strategies,
		Indicators:  req.Indicators,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, rec)
}

func (s *Server) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{
		"busy":      s.app.Analysis.Busy(),
		"ai":        s.app.HasProvider(),
		"providers": s.app.Providers(),
	})
}

func (s *Server) handleGetActive(w http.ResponseWriter, r *http.Request) {
	rec, kind, ok := s.app.Analysis.Active()
	if !ok {
		writeError(w, http.StatusNotFound, "no active analysis")
		return
	}
	writeOK(w, ActiveResponse{Kind: kind, Record: rec})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req ActiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := s.app.Analysis.SetActive(r.Context(), req.Kind, req.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, ActiveResponse{Kind: req.Kind, Record: rec})
}

func (s *Server) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	var req WhatIfRequest
	if !decodeBody(w, r, &req) {
		return
	}
	answer, err := s.app.Analysis.WhatIf(r.Context(), req.ID, req.Scenario)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, map[string]string{"answer": answer})
}

// ============================================================
// History
// ============================================================

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.app.Store.History.GetAll(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	slices.Reverse(recs)
	writeOK(w, recs)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.app.Store.History.GetAll(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := s.app.Store.History.Clear(r.Context()); err != nil {
		writeAppError(w, r, err)
		return
	}
	for _, rec := range recs {
		s.app.Analysis.ClearActive(recordHistory, rec.ID)
	}
	writeOK(w, map[string]int{"deleted": len(recs)})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	rec, err := s.app.Store.History.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, rec)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.Store.History.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.app.Analysis.ClearActive(recordHistory, id)
	writeOK(w, map[string]int64{"deleted": id})
}

func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req SaveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	saved, err := s.app.Analysis.Save(r.Context(), id, req.Name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: saved})
}

// ============================================================
// Saved analyses
// ============================================================

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	recs, err := s.app.Store.Saved.GetAll(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	slices.Reverse(recs)
	writeOK(w, recs)
}

func (s *Server) handleGetSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	rec, err := s.app.Store.Saved.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, rec)
}

func (s *Server) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.Store.Saved.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.app.Analysis.ClearActive(recordSaved, id)
	writeOK(w, map[string]int64{"deleted": id})
}

// ============================================================
// Chat
// ============================================================

func (s *Server) handleChatMessages(kind models.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		msgs, err := s.app.Chat.Messages(r.Context(), kind, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if msgs == nil {
			msgs = []models.ChatMessage{}
		}
		writeOK(w, msgs)
	}
}

func (s *Server) handleChatSend(kind models.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		var req ChatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		reply, err := s.app.Chat.Send(r.Context(), kind, id, req.Message)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeOK(w, reply)
	}
}

// ============================================================
// Reports
// ============================================================

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	rec, err := s.app.Store.History.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	cfg := report.DefaultReportConfig()
	if cfg.Sections, err = report.ParseSections(splitList(r.URL.Query().Get("sections"))); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("format") == string(report.FormatText) {
		txt, err := report.GenerateText(&rec, cfg)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(txt)) //nolint:errcheck
		return
	}

	html, err := report.GenerateHTML(&rec, cfg)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html)) //nolint:errcheck
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	rec, err := s.app.Store.History.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.ProjectionPNG(&buf, &rec, report.DefaultChartConfig()); err != nil {
		if errors.Is(err, report.ErrNotEnoughData) {
			writeError(w, http.StatusUnprocessableEntity, "this analysis has no price data to chart")
			return
		}
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(buf.Bytes()) //nolint:errcheck
}
