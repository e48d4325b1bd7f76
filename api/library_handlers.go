package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/tradelens/internal/archive"
	"github.com/seenimoa/tradelens/internal/backup"
	"github.com/seenimoa/tradelens/internal/knowledge"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// maxUploadBytes bounds one multipart upload.
const maxUploadBytes = 64 << 20

// StagedItemRequest addresses one item of a staged batch.
type StagedItemRequest struct {
	Index     int                      `json:"index"`
	Technique *models.LearnedTechnique `json:"technique,omitempty"`
}

// KnowledgeUpdate is the body for PUT /api/v1/knowledge/{id}.
type KnowledgeUpdate struct {
	Content string `json:"content"`
}

// WatchlistRequest is the body for POST /api/v1/watchlist.
type WatchlistRequest struct {
	Symbol string `json:"symbol"`
}

// ============================================================
// Archive
// ============================================================

func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.Archive.List(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, list)
}

func (s *Server) handleClearArchive(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Archive.ClearAll(r.Context()); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleListArchiveFor(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.Archive.ListFor(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, list)
}

// handleIngest archives the files of a multipart upload (field "files").
// A rate limit mid-batch answers 429 with the partial report as data.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	files := make([]archive.RawFile, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		files = append(files, f)
	}

	rep, err := s.app.Archive.Ingest(r.Context(), chi.URLParam(r, "symbol"), files)
	if err != nil {
		writeJSON(w, apperr.HTTPStatus(err), APIResponse{Success: false, Data: rep, Error: apperr.UserMessage(err)})
		return
	}
	writeOK(w, rep)
}

func readUpload(fh *multipart.FileHeader) (archive.RawFile, error) {
	f, err := fh.Open()
	if err != nil {
		return archive.RawFile{}, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return archive.RawFile{}, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}
	return archive.RawFile{Name: fh.Filename, MimeType: fh.Header.Get("Content-Type"), Data: data}, nil
}

func (s *Server) handleRemoveArtifact(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Archive.Remove(r.Context(), chi.URLParam(r, "symbol"), chi.URLParam(r, "name")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, nil)
}

// ============================================================
// Techniques
// ============================================================

func (s *Server) handleListTechniques(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.Techniques.List(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, list)
}

func (s *Server) handleAddTechnique(w http.ResponseWriter, r *http.Request) {
	var t models.LearnedTechnique
	if !decodeBody(w, r, &t) {
		return
	}
	added, err := s.app.Techniques.AddManual(r.Context(), t)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: added})
}

func (s *Server) handleUpdateTechnique(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var t models.LearnedTechnique
	if !decodeBody(w, r, &t) {
		return
	}
	updated, err := s.app.Techniques.Update(r.Context(), id, t)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, updated)
}

func (s *Server) handleDeleteTechnique(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.Techniques.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, map[string]int64{"deleted": id})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	batch, err := s.app.Discover(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, batch)
}

// handleLearn stages techniques found in an uploaded text file (field "file").
func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	fhs := r.MultipartForm.File["file"]
	if len(fhs) == 0 {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	f, err := readUpload(fhs[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	batch, err := s.app.Learn(r.Context(), f.Name, string(f.Data))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, batch)
}

func (s *Server) handleListStaged(w http.ResponseWriter, r *http.Request) {
	pending := s.app.Staging.Pending()
	if pending == nil {
		pending = []knowledge.Batch{}
	}
	writeOK(w, pending)
}

func (s *Server) handleGetStaged(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "batch")
	if !ok {
		return
	}
	b, err := s.app.Staging.Get(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, b)
}

type stagedOp func(st *knowledge.Staging, batch int64, index int) (knowledge.Batch, error)

var (
	stagedToggle stagedOp = (*knowledge.Staging).Toggle
	stagedReject stagedOp = (*knowledge.Staging).Reject
)

func (s *Server) handleStagedItem(op stagedOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "batch")
		if !ok {
			return
		}
		var req StagedItemRequest
		if !decodeBody(w, r, &req) {
			return
		}
		b, err := op(s.app.Staging, id, req.Index)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeOK(w, b)
	}
}

func (s *Server) handleStagedEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "batch")
	if !ok {
		return
	}
	var req StagedItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Technique == nil {
		writeError(w, http.StatusBadRequest, "technique is required")
		return
	}
	b, err := s.app.Staging.Edit(id, req.Index, *req.Technique)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, b)
}

func (s *Server) handleStagedAccept(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "batch")
	if !ok {
		return
	}
	added, err := s.app.Staging.Accept(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if added == nil {
		added = []models.LearnedTechnique{}
	}
	writeOK(w, added)
}

// ============================================================
// Knowledge
// ============================================================

func (s *Server) handleListKnowledge(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.Knowledge.List(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if sym := strings.TrimSpace(r.URL.Query().Get("symbol")); sym != "" {
		filtered := items[:0]
		for _, it := range items {
			if strings.EqualFold(it.Symbol, sym) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	writeOK(w, items)
}

func (s *Server) handleUpdateKnowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req KnowledgeUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.app.Knowledge.Update(r.Context(), id, req.Content)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, item)
}

func (s *Server) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.Knowledge.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, map[string]int64{"deleted": id})
}

// ============================================================
// Watchlist and preferences
// ============================================================

func (s *Server) handleListWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.Watchlist.List(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, items)
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	var req WatchlistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := s.app.Watchlist.Add(r.Context(), req.Symbol)
	switch {
	case errors.Is(err, apperr.Duplicate):
		writeOK(w, item)
	case err != nil:
		writeAppError(w, r, err)
	default:
		writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: item})
	}
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Watchlist.Remove(r.Context(), chi.URLParam(r, "symbol")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Store.Preferences(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, p)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var p models.Preferences
	if !decodeBody(w, r, &p) {
		return
	}
	if p.DefaultTimeframe != "" {
		if _, err := models.ParseTimeframe(string(p.DefaultTimeframe)); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	if p.DefaultRiskProfile != "" {
		if _, err := models.ParseRiskProfile(string(p.DefaultRiskProfile)); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	if err := s.app.SetPreferences(r.Context(), p); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, p)
}

// ============================================================
// Backup
// ============================================================

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.app.Backup.Export(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	name := fmt.Sprintf("tradelens-backup-%s.json", doc.ExportedAt.Format("2006-01-02"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// handleImport applies a backup document. ?only=history,watchlist limits
// the categories; all are applied otherwise.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	selected, err := backup.ParseCategories(splitList(r.URL.Query().Get("only")))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read backup document")
		return
	}
	rep, err := s.app.Backup.Import(r.Context(), raw, selected)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, rep)
}
