package loadboard

import (
	"context"
	"log/slog"

	"loadscout-backend/services/store"

	"gorm.io/gorm"
)

// DedupCache maps sourceId to the last persisted posting. It is rebuilt
// from a full store read at the start of every run and never persisted,
// so no state leaks across invocations.
type DedupCache struct {
	loads map[string]store.Load
}

// LoadDedupCache reads the whole posting collection into memory. A read
// failure degrades to an empty cache: every row will go through detail
// extraction, which is slow but correct.
func LoadDedupCache(ctx context.Context, db *gorm.DB) *DedupCache {
	cache := &DedupCache{loads: map[string]store.Load{}}

	var all []store.Load
	err := store.WithRetry(ctx, func() error {
		return db.WithContext(ctx).Find(&all).Error
	})
	if err != nil {
		slog.WarnContext(ctx, "could not load dedup cache, starting empty", "err", err)
		return cache
	}

	for _, l := range all {
		cache.loads[l.SourceID] = l
	}
	slog.InfoContext(ctx, "loaded dedup cache", "postings", len(cache.loads))
	return cache
}

func (c *DedupCache) Get(sourceID string) (store.Load, bool) {
	l, ok := c.loads[sourceID]
	return l, ok
}

func (c *DedupCache) Len() int {
	return len(c.loads)
}
