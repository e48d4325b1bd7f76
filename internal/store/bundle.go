package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/seenimoa/tradelens/internal/config"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Collection names, also used as backup category keys where they coincide.
const (
	CollArtifacts   = "archivedFiles"
	CollHistory     = "history"
	CollSaved       = "savedAnalyses"
	CollWatchlist   = "watchlist"
	CollKnowledge   = "knowledgeItems"
	CollTechniques  = "techniques"
	CollPreferences = "preferences"
)

// Store bundles every TradeLens collection over one Backend.
type Store struct {
	backend Backend

	Artifacts  *Collection[models.Artifact, *models.Artifact]
	History    *Collection[models.AnalysisRecord, *models.AnalysisRecord]
	Saved      *Collection[models.SavedAnalysisRecord, *models.SavedAnalysisRecord]
	Watchlist  *Collection[models.WatchlistItem, *models.WatchlistItem]
	Knowledge  *Collection[models.KnowledgeItem, *models.KnowledgeItem]
	Techniques *Collection[models.LearnedTechnique, *models.LearnedTechnique]
}

// New wraps backend with typed collections.
func New(backend Backend) *Store {
	return &Store{
		backend:    backend,
		Artifacts:  NewCollection[models.Artifact](backend, CollArtifacts),
		History:    NewCollection[models.AnalysisRecord](backend, CollHistory),
		Saved:      NewCollection[models.SavedAnalysisRecord](backend, CollSaved),
		Watchlist:  NewCollection[models.WatchlistItem](backend, CollWatchlist),
		Knowledge:  NewCollection[models.KnowledgeItem](backend, CollKnowledge),
		Techniques: NewCollection[models.LearnedTechnique](backend, CollTechniques),
	}
}

// Open builds the backend selected by cfg.Driver.
func Open(cfg config.StoreConfig) (*Store, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Driver {
	case "memory":
		b = NewMemory()
	case "sqlite", "":
		b, err = OpenSQLite(cfg.SQLitePath)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("store: postgres driver selected but no DSN configured")
		}
		b, err = OpenPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return New(b), nil
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

// Preferences returns the stored preferences, or defaults when none exist.
func (s *Store) Preferences(ctx context.Context) (models.Preferences, error) {
	var p models.Preferences
	docs, err := s.backend.List(ctx, CollPreferences)
	if err != nil {
		return p, wrapErr(ctx, CollPreferences, "get", err)
	}
	if len(docs) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(docs[len(docs)-1].Data, &p); err != nil {
		return p, fmt.Errorf("store: decode preferences: %w", err)
	}
	return p, nil
}

// SetPreferences replaces the stored preferences.
func (s *Store) SetPreferences(ctx context.Context, p models.Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.backend.Replace(ctx, CollPreferences, []Document{{ID: 1, Data: data}}); err != nil {
		return wrapErr(ctx, CollPreferences, "set", err)
	}
	return nil
}
