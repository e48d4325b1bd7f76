// Package backup exports every TradeLens collection as one JSON document and
// imports such documents back, category by category.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Category is a top-level key of a backup document.
type Category string

const (
	History     Category = "history"
	Saved       Category = "savedAnalyses"
	Artifacts   Category = "archivedFiles"
	Watchlist   Category = "watchlist"
	Knowledge   Category = "knowledgeItems"
	Techniques  Category = "techniques"
	Preferences Category = "preferences"
)

// Categories lists every category in document order.
var Categories = []Category{History, Saved, Artifacts, Watchlist, Knowledge, Techniques, Preferences}

// ParseCategories validates a list of category names. An empty list selects
// every category.
func ParseCategories(names []string) ([]Category, error) {
	if len(names) == 0 {
		return slices.Clone(Categories), nil
	}
	out := make([]Category, 0, len(names))
	for _, n := range names {
		c := Category(strings.TrimSpace(n))
		if !slices.Contains(Categories, c) {
			return nil, apperr.Newf(apperr.KindValidation, "unknown backup category %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}

// Document is the backup file layout.
type Document struct {
	ExportedAt     time.Time                    `json:"exportedAt"`
	History        []models.AnalysisRecord      `json:"history"`
	SavedAnalyses  []models.SavedAnalysisRecord `json:"savedAnalyses"`
	ArchivedFiles  []models.Artifact            `json:"archivedFiles"`
	Watchlist      []models.WatchlistItem       `json:"watchlist"`
	KnowledgeItems []models.KnowledgeItem       `json:"knowledgeItems"`
	Techniques     []models.LearnedTechnique    `json:"techniques"`
	Preferences    models.Preferences           `json:"preferences"`
}

// ImportReport tells which categories were applied and why others were not.
type ImportReport struct {
	Applied  map[Category]int `json:"applied"`
	Skipped  []Category       `json:"skipped,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// ArtifactReplacer swaps the archive contents. The archive manager serialises
// this with ingestion.
type ArtifactReplacer interface {
	ReplaceAll(ctx context.Context, items []models.Artifact) error
}

// Service runs exports and imports over a store.
type Service struct {
	store     *store.Store
	artifacts ArtifactReplacer
	now       func() time.Time
}

// NewService creates a backup service. artifacts may be nil, in which case
// archived files are replaced directly in the store.
func NewService(s *store.Store, artifacts ArtifactReplacer) *Service {
	if artifacts == nil {
		artifacts = s.Artifacts
	}
	return &Service{store: s, artifacts: artifacts, now: time.Now}
}

// Export reads every collection into one document.
func (s *Service) Export(ctx context.Context) (*Document, error) {
	doc := &Document{ExportedAt: s.now().UTC()}
	var err error
	if doc.History, err = s.store.History.GetAll(ctx); err != nil {
		return nil, err
	}
	if doc.SavedAnalyses, err = s.store.Saved.GetAll(ctx); err != nil {
		return nil, err
	}
	if doc.ArchivedFiles, err = s.store.Artifacts.GetAll(ctx); err != nil {
		return nil, err
	}
	if doc.Watchlist, err = s.store.Watchlist.GetAll(ctx); err != nil {
		return nil, err
	}
	if doc.KnowledgeItems, err = s.store.Knowledge.GetAll(ctx); err != nil {
		return nil, err
	}
	if doc.Techniques, err = s.store.Techniques.GetAll(ctx); err != nil {
		return nil, err
	}
	if doc.Preferences, err = s.store.Preferences(ctx); err != nil {
		return nil, err
	}
	logger.Info(ctx, "backup exported",
		"history", len(doc.History), "saved", len(doc.SavedAnalyses), "files", len(doc.ArchivedFiles),
		"watchlist", len(doc.Watchlist), "knowledge", len(doc.KnowledgeItems), "techniques", len(doc.Techniques))
	return doc, nil
}

// Import applies the selected categories of raw. Each applied category fully
// replaces its collection; unselected categories are left alone. A selected
// category that is missing or malformed is skipped with a warning.
func (s *Service) Import(ctx context.Context, raw []byte, selected []Category) (ImportReport, error) {
	report := ImportReport{Applied: make(map[Category]int)}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return report, apperr.New(apperr.KindValidation, "The backup file is invalid or could not be read.", err)
	}
	if len(selected) == 0 {
		selected = Categories
	}

	for _, c := range Categories {
		if !slices.Contains(selected, c) {
			continue
		}
		body, ok := doc[string(c)]
		if !ok || string(body) == "null" {
			report.skip(c, fmt.Sprintf("%s: not present in the backup", c))
			continue
		}
		n, err := s.apply(ctx, c, body)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindPersistence {
				return report, err
			}
			report.skip(c, fmt.Sprintf("%s: %v", c, err))
			continue
		}
		report.Applied[c] = n
	}
	logger.Info(ctx, "backup imported", "applied", len(report.Applied), "skipped", len(report.Skipped))
	return report, nil
}

func (r *ImportReport) skip(c Category, warning string) {
	r.Skipped = append(r.Skipped, c)
	r.Warnings = append(r.Warnings, warning)
}

func (s *Service) apply(ctx context.Context, c Category, body json.RawMessage) (int, error) {
	switch c {
	case History:
		return replace(ctx, body, checkRecord, s.store.History.ReplaceAll)
	case Saved:
		return replace(ctx, body, func(r *models.SavedAnalysisRecord) error {
			if strings.TrimSpace(r.Name) == "" {
				return fmt.Errorf("saved analysis without a name")
			}
			return checkRecord(&r.AnalysisRecord)
		}, s.store.Saved.ReplaceAll)
	case Artifacts:
		return replace(ctx, body, func(a *models.Artifact) error {
			if a.Name == "" || a.Symbol == "" {
				return fmt.Errorf("archived file without name or symbol")
			}
			a.ContentHash = models.HashContent(a.Content)
			return nil
		}, s.artifacts.ReplaceAll)
	case Watchlist:
		return replace(ctx, body, func(w *models.WatchlistItem) error {
			if strings.TrimSpace(w.Symbol) == "" {
				return fmt.Errorf("watchlist entry without a symbol")
			}
			return nil
		}, s.store.Watchlist.ReplaceAll)
	case Knowledge:
		return replace(ctx, body, func(k *models.KnowledgeItem) error {
			if k.Content == "" {
				return fmt.Errorf("knowledge item without content")
			}
			return nil
		}, s.store.Knowledge.ReplaceAll)
	case Techniques:
		return replace(ctx, body, func(t *models.LearnedTechnique) error {
			c := models.TechniqueCandidate{Name: t.Name, Type: t.Type, Description: t.Description}
			if !c.Complete() {
				return fmt.Errorf("technique without name, type or description")
			}
			return nil
		}, s.store.Techniques.ReplaceAll)
	case Preferences:
		var p models.Preferences
		if err := json.Unmarshal(body, &p); err != nil {
			return 0, fmt.Errorf("malformed: %w", err)
		}
		return 1, s.store.SetPreferences(ctx, p)
	}
	return 0, fmt.Errorf("unknown category")
}

func checkRecord(r *models.AnalysisRecord) error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("analysis record without a symbol")
	}
	return nil
}

// replace decodes body as a list of T, validates every entry and swaps the
// collection. Duplicate ids are cleared so the store assigns fresh ones.
func replace[T any, P store.Entity[T]](ctx context.Context, body json.RawMessage,
	check func(P) error, replaceAll func(context.Context, []T) error) (int, error) {

	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return 0, fmt.Errorf("malformed: %w", err)
	}
	seen := make(map[int64]bool, len(items))
	for i := range items {
		p := P(&items[i])
		if err := check(p); err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
		if id := p.GetID(); id > 0 {
			if seen[id] {
				p.SetID(0)
			}
			seen[id] = true
		}
	}
	if err := replaceAll(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}
