package api

import (
	"net/http"

	"github.com/seenimoa/tradelens/internal/config"
)

// KeysResponse is returned by GET /api/v1/config/keys.
type KeysResponse struct {
	Keys        []config.KeyStatus `json:"keys"`
	AIReady     bool               `json:"aiReady"`
	Providers   []string           `json:"providers"`
	StoreDriver string             `json:"storeDriver"`
	Cache       string             `json:"cache"`
}

// handleGetConfigKeys reports which credentials are set, masked, and which
// engines and backends are in use. Secrets never leave the process.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Config
	cacheKind := "memory"
	if cfg.Redis.Enabled {
		cacheKind = "redis"
	}
	writeOK(w, KeysResponse{
		Keys:        config.CheckAPIKeys(cfg),
		AIReady:     s.app.HasProvider(),
		Providers:   s.app.Providers(),
		StoreDriver: cfg.Store.Driver,
		Cache:       cacheKind,
	})
}
