// Package cache provides short-lived storage for web-derived results (news
// summaries, hot-symbol lists) so repeated requests within a TTL do not cost
// another reasoning-engine call. Values are stored as JSON.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/seenimoa/tradelens/internal/config"
	"github.com/seenimoa/tradelens/internal/logger"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a JSON value cache with per-entry TTL.
type Cache interface {
	// Get decodes the value stored under key into dest. It returns ErrMiss
	// when nothing is stored.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key namespaces used by TradeLens.
const (
	NewsSummaryPrefix = "news:summary:"
	HotSymbolsKey     = "research:hot"
	LatestNewsPrefix  = "research:news:"
	SuggestPrefix     = "research:suggest:"
)

// New returns a Redis cache when enabled and reachable, otherwise an
// in-memory cache.
func New(ctx context.Context, cfg config.RedisConfig) Cache {
	if !cfg.Enabled {
		return NewMemory()
	}
	rc, err := NewRedis(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		logger.Warn(ctx, "redis unavailable, falling back to memory cache", "addr", cfg.Addr, "error", err)
		return NewMemory()
	}
	logger.Info(ctx, "connected to redis", "addr", cfg.Addr)
	return rc
}
