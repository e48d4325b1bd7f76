// Package knowledge turns completed analyses into reusable knowledge items
// and uploaded or discovered text into learned-technique candidates.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Derive builds the knowledge items of one analysis record. All items share
// a single timestamp. The record must already carry its store id.
func Derive(rec *models.AnalysisRecord, now time.Time) []models.KnowledgeItem {
	res := &rec.Analysis
	item := func(typ models.KnowledgeType, content string) models.KnowledgeItem {
		return models.KnowledgeItem{
			SourceAnalysisID: rec.ID,
			Type:             typ,
			Content:          content,
			Symbol:           rec.Symbol,
			Timeframe:        rec.Timeframe,
			Timestamp:        now,
		}
	}

	var items []models.KnowledgeItem
	if res.HasNewInsight() {
		items = append(items, item(models.KnowledgeInsight, res.LearnedInsights))
	}
	if res.Strategy != nil {
		if raw, err := json.MarshalIndent(res.Strategy, "", "  "); err == nil {
			items = append(items, item(models.KnowledgeStrategy, string(raw)))
		}
	}
	for _, p := range res.Patterns {
		items = append(items, item(models.KnowledgePattern,
			fmt.Sprintf("Pattern: %s - Implication: %s - Description: %s", p.Name, p.Implication, p.Description)))
	}
	return items
}

// Service stores and retrieves knowledge items.
type Service struct {
	items *store.Collection[models.KnowledgeItem, *models.KnowledgeItem]
	now   func() time.Time
}

// NewService creates a knowledge service over the knowledge collection.
func NewService(items *store.Collection[models.KnowledgeItem, *models.KnowledgeItem]) *Service {
	return &Service{items: items, now: time.Now}
}

// DeriveAndStore derives the record's items and stores them. Failures are
// logged and never returned: the analysis that triggered them stands.
func (s *Service) DeriveAndStore(ctx context.Context, rec *models.AnalysisRecord) []models.KnowledgeItem {
	items := Derive(rec, s.now().UTC())
	stored := make([]models.KnowledgeItem, 0, len(items))
	for i := range items {
		if _, err := s.items.Add(ctx, &items[i]); err != nil {
			logger.ErrorWithErr(ctx, "knowledge: store failed", err, "analysis_id", rec.ID, "type", items[i].Type)
			continue
		}
		stored = append(stored, items[i])
	}
	logger.Debug(ctx, "knowledge derived", "analysis_id", rec.ID, "items", len(stored))
	return stored
}

// ForContext returns up to n items for symbol and timeframe, newest first.
func (s *Service) ForContext(ctx context.Context, symbol string, tf models.Timeframe, n int) ([]models.KnowledgeItem, error) {
	all, err := s.items.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.KnowledgeItem
	for _, k := range all {
		if k.Symbol == symbol && k.Timeframe == tf {
			out = append(out, k)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// FormatContext renders items as the prompt excerpt, one per line.
func FormatContext(items []models.KnowledgeItem) string {
	lines := make([]string, len(items))
	for i, k := range items {
		lines[i] = fmt.Sprintf("- %s: %s", k.Type, k.Content)
	}
	return strings.Join(lines, "\n")
}

// List returns every knowledge item.
func (s *Service) List(ctx context.Context) ([]models.KnowledgeItem, error) {
	return s.items.GetAll(ctx)
}

// Update edits the content of an item.
func (s *Service) Update(ctx context.Context, id int64, content string) (models.KnowledgeItem, error) {
	k, err := s.items.Get(ctx, id)
	if err != nil {
		return k, err
	}
	k.Content = content
	return k, s.items.Update(ctx, &k)
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.items.Delete(ctx, id)
}
