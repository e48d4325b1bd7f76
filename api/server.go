// Package api provides the HTTP REST API server for TradeLens.
//
// It exposes endpoints for analysis, history and saved records, follow-up
// chat, the file archive, learned techniques, knowledge, research helpers,
// backups and a WebSocket progress stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/tradelens/internal/app"
	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/pkg/apperr"
)

// Version is reported by /health. Set by the CLI at startup.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	app    *app.App
	wsHub  *WSHub
}

// NewServer creates a configured API server over a. hub must be the
// publisher a was built with so that service events reach WebSocket clients.
func NewServer(a *app.App, hub *WSHub) *Server {
	if hub == nil {
		hub = NewWSHub()
	}
	s := &Server{app: a, wsHub: hub}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server and the WebSocket hub, and shuts
// both down gracefully on SIGINT or SIGTERM.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.requestTimeout() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.wsHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "api server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info(context.Background(), "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// requestTimeout leaves room for a full analysis run.
func (s *Server) requestTimeout() time.Duration {
	if t := s.app.Config.Analysis.Timeout; t > 0 {
		return t + 30*time.Second
	}
	return 5 * time.Minute
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.app.Config.API.CORSOrigins) > 0 {
		origins = s.app.Config.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket sits outside the timeout middleware.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout()))

			// Analysis
			r.Post("/analyze", s.handleAnalyze)
			r.Get("/analysis/status", s.handleAnalysisStatus)
			r.Get("/analysis/active", s.handleGetActive)
			r.Post("/analysis/active", s.handleSetActive)
			r.Post("/analysis/whatif", s.handleWhatIf)

			// History and saved analyses
			r.Get("/history", s.handleListHistory)
			r.Delete("/history", s.handleClearHistory)
			r.Get("/history/{id}", s.handleGetHistory)
			r.Delete("/history/{id}", s.handleDeleteHistory)
			r.Post("/history/{id}/save", s.handleSaveHistory)
			r.Get("/history/{id}/chat", s.handleChatMessages(recordHistory))
			r.Post("/history/{id}/chat", s.handleChatSend(recordHistory))
			r.Get("/history/{id}/report", s.handleReport)
			r.Get("/history/{id}/chart.png", s.handleChart)

			r.Get("/saved", s.handleListSaved)
			r.Get("/saved/{id}", s.handleGetSaved)
			r.Delete("/saved/{id}", s.handleDeleteSaved)
			r.Get("/saved/{id}/chat", s.handleChatMessages(recordSaved))
			r.Post("/saved/{id}/chat", s.handleChatSend(recordSaved))

			// Archive
			r.Get("/archive", s.handleListArchive)
			r.Delete("/archive", s.handleClearArchive)
			r.Get("/archive/{symbol}", s.handleListArchiveFor)
			r.Post("/archive/{symbol}", s.handleIngest)
			r.Delete("/archive/{symbol}/{name}", s.handleRemoveArtifact)

			// Learned techniques and review staging
			r.Get("/techniques", s.handleListTechniques)
			r.Post("/techniques", s.handleAddTechnique)
			r.Put("/techniques/{id}", s.handleUpdateTechnique)
			r.Delete("/techniques/{id}", s.handleDeleteTechnique)
			r.Post("/techniques/discover", s.handleDiscover)
			r.Post("/techniques/learn", s.handleLearn)
			r.Get("/techniques/staged", s.handleListStaged)
			r.Get("/techniques/staged/{batch}", s.handleGetStaged)
			r.Post("/techniques/staged/{batch}/toggle", s.handleStagedItem(stagedToggle))
			r.Post("/techniques/staged/{batch}/reject", s.handleStagedItem(stagedReject))
			r.Post("/techniques/staged/{batch}/edit", s.handleStagedEdit)
			r.Post("/techniques/staged/{batch}/accept", s.handleStagedAccept)

			// Knowledge
			r.Get("/knowledge", s.handleListKnowledge)
			r.Put("/knowledge/{id}", s.handleUpdateKnowledge)
			r.Delete("/knowledge/{id}", s.handleDeleteKnowledge)

			// Watchlist and preferences
			r.Get("/watchlist", s.handleListWatchlist)
			r.Post("/watchlist", s.handleAddWatchlist)
			r.Delete("/watchlist/{symbol}", s.handleRemoveWatchlist)
			r.Get("/preferences", s.handleGetPreferences)
			r.Put("/preferences", s.handlePutPreferences)

			// Research
			r.Get("/catalog", s.handleCatalog)
			r.Get("/symbols/suggest", s.handleSuggest)
			r.Get("/news", s.handleNews)
			r.Get("/hot", s.handleHot)
			r.Post("/compare", s.handleCompare)

			// Backup
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)

			// Configuration
			r.Get("/config/keys", s.handleGetConfigKeys)
		})
	})

	return r
}

// ============================================================
// Envelope
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn(context.Background(), "failed to write JSON response", "error", err)
	}
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{Success: false, Error: msg})
}

// writeAppError maps a classified error to its status and user message.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorWithErr(r.Context(), "request failed", err, "path", r.URL.Path)
	}
	writeError(w, status, apperr.UserMessage(err))
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// idParam parses a positive integer URL parameter.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// splitList parses a comma-separated query value.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ============================================================
// Health
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{
		"status":    "ok",
		"version":   Version,
		"ai":        s.app.HasProvider(),
		"providers": s.app.Providers(),
		"clients":   s.wsHub.ClientCount(),
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}
