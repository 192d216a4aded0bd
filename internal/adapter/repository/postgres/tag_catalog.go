package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/user/question-service/internal/adapter/metrics"
	"github.com/user/question-service/internal/domain"
)

type catalogEntry struct {
	exists    bool
	expiresAt time.Time
}

// TagCatalog implements domain.TagCatalog using PostgreSQL as the source
// of truth and an in-memory, time-based per-slug cache.
type TagCatalog struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[string]catalogEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.APIMetrics
}

// NewTagCatalog creates a new instance of the PostgreSQL tag catalog.
func NewTagCatalog(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.APIMetrics) *TagCatalog {
	return &TagCatalog{
		db:       db,
		logger:   logger.With("component", "tag_catalog"),
		cache:    make(map[string]catalogEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// AreTagsValid reports whether every slug exists in the catalog. A failed
// catalog lookup returns domain.ErrCatalogUnavailable so callers cannot
// mistake "could not check" for "tag does not exist".
func (c *TagCatalog) AreTagsValid(ctx context.Context, slugs []string) (bool, error) {
	if len(slugs) == 0 {
		return true, nil
	}

	// 1. Serve what we can from the cache with a read lock.
	now := time.Now()
	var unknown []string
	c.mu.RLock()
	for _, slug := range slugs {
		entry, found := c.cache[slug]
		if !found || now.After(entry.expiresAt) {
			unknown = append(unknown, slug)
			continue
		}
		if !entry.exists {
			c.mu.RUnlock()
			if c.metrics != nil {
				c.metrics.TagCacheHits.Inc()
			}
			return false, nil
		}
	}
	c.mu.RUnlock()

	if len(unknown) == 0 {
		if c.metrics != nil {
			c.metrics.TagCacheHits.Inc()
		}
		return true, nil
	}

	if c.metrics != nil {
		c.metrics.TagCacheMisses.Inc()
	}

	// 2. Resolve the remainder against the database.
	rows, err := c.db.QueryContext(ctx, `SELECT slug FROM tags WHERE slug = ANY($1)`, pq.Array(unknown))
	if err != nil {
		c.logger.Error("failed to query tag catalog", "error", err)
		return false, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(unknown))
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return false, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
		}
		found[slug] = true
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	// 3. Cache both hits and confirmed misses.
	expiresAt := time.Now().Add(c.cacheTTL)
	c.mu.Lock()
	for _, slug := range unknown {
		c.cache[slug] = catalogEntry{exists: found[slug], expiresAt: expiresAt}
	}
	c.mu.Unlock()

	for _, slug := range unknown {
		if !found[slug] {
			return false, nil
		}
	}
	return true, nil
}
