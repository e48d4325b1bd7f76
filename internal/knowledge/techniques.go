package knowledge

import (
	"context"
	"strings"
	"time"

	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Techniques manages the permanent learned-technique catalog.
type Techniques struct {
	items *store.Collection[models.LearnedTechnique, *models.LearnedTechnique]
}

// NewTechniques wraps the technique collection.
func NewTechniques(items *store.Collection[models.LearnedTechnique, *models.LearnedTechnique]) *Techniques {
	return &Techniques{items: items}
}

// List returns every learned technique.
func (t *Techniques) List(ctx context.Context) ([]models.LearnedTechnique, error) {
	return t.items.GetAll(ctx)
}

// Selected returns the learned techniques whose name appears in the matching
// selection list: strategies for Strategy, indicators for Indicator.
func (t *Techniques) Selected(ctx context.Context, strategies, indicators []string) ([]models.LearnedTechnique, error) {
	all, err := t.items.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.LearnedTechnique
	for _, tech := range all {
		names := indicators
		if tech.Type == models.TechniqueStrategy {
			names = strategies
		}
		for _, n := range names {
			if strings.EqualFold(n, tech.Name) {
				out = append(out, tech)
				break
			}
		}
	}
	return out, nil
}

// AddManual stores a technique the user typed in.
func (t *Techniques) AddManual(ctx context.Context, tech models.LearnedTechnique) (models.LearnedTechnique, error) {
	if err := validate(tech); err != nil {
		return tech, err
	}
	tech.ID = 0
	tech.Source = models.SourceManual
	tech.SourceFileName = ""
	tech.CreatedAt = time.Now().UTC()
	t.warnDuplicate(ctx, tech.Name)
	_, err := t.items.Add(ctx, &tech)
	return tech, err
}

// Update edits name, type, description and parameters of a technique.
func (t *Techniques) Update(ctx context.Context, id int64, edit models.LearnedTechnique) (models.LearnedTechnique, error) {
	if err := validate(edit); err != nil {
		return edit, err
	}
	cur, err := t.items.Get(ctx, id)
	if err != nil {
		return cur, err
	}
	cur.Name, cur.Type, cur.Description, cur.Parameters = edit.Name, edit.Type, edit.Description, edit.Parameters
	return cur, t.items.Update(ctx, &cur)
}

// Delete removes a technique.
func (t *Techniques) Delete(ctx context.Context, id int64) error {
	return t.items.Delete(ctx, id)
}

func (t *Techniques) warnDuplicate(ctx context.Context, name string) {
	all, err := t.items.GetAll(ctx)
	if err != nil {
		return
	}
	for _, x := range all {
		if strings.EqualFold(x.Name, name) {
			logger.Warn(ctx, "knowledge: technique name already exists", "name", name, "existing_id", x.ID)
			return
		}
	}
}

func validate(t models.LearnedTechnique) error {
	c := models.TechniqueCandidate{Name: t.Name, Type: t.Type, Description: t.Description}
	if !c.Complete() {
		return apperr.Newf(apperr.KindValidation, "A technique needs a name, a type and a description.")
	}
	if t.Type != models.TechniqueStrategy && t.Type != models.TechniqueIndicator {
		return apperr.Newf(apperr.KindValidation, "Technique type must be Strategy or Indicator.")
	}
	return nil
}
