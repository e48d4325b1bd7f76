package api

import (
	"net/http"

	"github.com/seenimoa/tradelens/internal/catalog"
	"github.com/seenimoa/tradelens/pkg/models"
)

// CompareRequest is the body for POST /api/v1/compare.
type CompareRequest struct {
	SymbolA     string `json:"symbolA"`
	SymbolB     string `json:"symbolB"`
	Timeframe   string `json:"timeframe,omitempty"`
	RiskProfile string `json:"riskProfile,omitempty"`
}

// CatalogResponse lists the built-in techniques and, when a timeframe is
// given, the suggested selection for it.
type CatalogResponse struct {
	Strategies []catalog.Technique `json:"strategies"`
	Indicators []catalog.Technique `json:"indicators"`
	Suggested  *catalog.Selection  `json:"suggested,omitempty"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	resp := CatalogResponse{
		Strategies: catalog.Strategies(),
		Indicators: catalog.Indicators(),
	}
	if tfParam := r.URL.Query().Get("timeframe"); tfParam != "" {
		tf, err := models.ParseTimeframe(tfParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		risk := models.RiskBalanced
		if rp := r.URL.Query().Get("risk"); rp != "" {
			if risk, err = models.ParseRiskProfile(rp); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		sel := catalog.DefaultSelection(tf, risk)
		resp.Suggested = &sel
	}
	writeOK(w, resp)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	syms, err := s.app.Research.SuggestSymbols(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if syms == nil {
		syms = []models.FinancialSymbol{}
	}
	writeOK(w, syms)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.Research.LatestNews(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if items == nil {
		items = []models.NewsItem{}
	}
	writeOK(w, items)
}

func (s *Server) handleHot(w http.ResponseWriter, r *http.Request) {
	hot, err := s.app.Research.HotSymbols(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, hot)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.app.Research.Compare(r.Context(), req.SymbolA, req.SymbolB,
		models.Timeframe(req.Timeframe), models.RiskProfile(req.RiskProfile))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, res)
}
