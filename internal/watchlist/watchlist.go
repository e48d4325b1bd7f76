// Package watchlist keeps the symbols the user follows.
package watchlist

import (
	"context"
	"strings"
	"time"

	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Service manages the watchlist collection. Symbols are stored upper-case
// and appear at most once.
type Service struct {
	items *store.Collection[models.WatchlistItem, *models.WatchlistItem]
	now   func() time.Time
}

// New wraps the watchlist collection.
func New(items *store.Collection[models.WatchlistItem, *models.WatchlistItem]) *Service {
	return &Service{items: items, now: time.Now}
}

// List returns the watchlist in insertion order.
func (s *Service) List(ctx context.Context) ([]models.WatchlistItem, error) {
	return s.items.GetAll(ctx)
}

// Add appends symbol. Adding a symbol already present returns the existing
// entry with a Duplicate error.
func (s *Service) Add(ctx context.Context, symbol string) (models.WatchlistItem, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return models.WatchlistItem{}, apperr.New(apperr.KindValidation, "Enter a symbol to watch.", nil)
	}
	if existing, ok, err := s.find(ctx, symbol); err != nil {
		return models.WatchlistItem{}, err
	} else if ok {
		return existing, apperr.Newf(apperr.KindDuplicate, "%s is already on the watchlist.", symbol)
	}

	item := models.WatchlistItem{Symbol: symbol, AddedAt: s.now().UTC()}
	if _, err := s.items.Add(ctx, &item); err != nil {
		return models.WatchlistItem{}, err
	}
	return item, nil
}

// Remove deletes symbol from the watchlist.
func (s *Service) Remove(ctx context.Context, symbol string) error {
	symbol = normalize(symbol)
	item, ok, err := s.find(ctx, symbol)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "%s is not on the watchlist.", symbol)
	}
	return s.items.Delete(ctx, item.ID)
}

// Contains reports whether symbol is watched.
func (s *Service) Contains(ctx context.Context, symbol string) (bool, error) {
	_, ok, err := s.find(ctx, normalize(symbol))
	return ok, err
}

func (s *Service) find(ctx context.Context, symbol string) (models.WatchlistItem, bool, error) {
	all, err := s.items.GetAll(ctx)
	if err != nil {
		return models.WatchlistItem{}, false, err
	}
	for _, it := range all {
		if it.Symbol == symbol {
			return it, true, nil
		}
	}
	return models.WatchlistItem{}, false, nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
