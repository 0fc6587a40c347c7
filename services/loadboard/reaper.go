package loadboard

import (
	"context"
	"log/slog"

	"loadscout-backend/services/store"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ReapStale deletes persisted postings that were not observed during
// this run. The operation is deliberately biased toward preserving
// data: an empty run is treated as suspect and skipped, and a stale set
// at or above the ceiling means the run itself was probably partial, so
// nothing is deleted. Failures are logged, never propagated; a missed
// cleanup is recovered by the next full run.
func ReapStale(ctx context.Context, db *gorm.DB, observed []store.Load, ceiling int) {
	ctx, span := tracer.Start(ctx, "reapStale")
	defer span.End()

	if len(observed) == 0 {
		slog.WarnContext(ctx, "no postings observed this run, skipping stale cleanup for safety")
		return
	}

	// this step runs after a potentially long scrape
	if err := store.Reconnect(ctx, db); err != nil {
		slog.ErrorContext(ctx, "store unreachable, skipping stale cleanup", "err", err)
		return
	}

	var persisted []string
	err := store.WithRetry(ctx, func() error {
		return db.WithContext(ctx).Model(&store.Load{}).Pluck("source_id", &persisted).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "could not list persisted postings", "err", err)
		return
	}

	seen := make(map[string]bool, len(observed))
	for _, l := range observed {
		seen[l.SourceID] = true
	}

	var stale []string
	for _, id := range persisted {
		if !seen[id] {
			stale = append(stale, id)
		}
	}
	span.SetAttributes(
		attribute.Int("persisted", len(persisted)),
		attribute.Int("stale", len(stale)),
	)

	switch {
	case len(stale) == 0:
		slog.InfoContext(ctx, "no stale postings found")
	case len(stale) < ceiling:
		err := store.WithRetry(ctx, func() error {
			return db.WithContext(ctx).Where("source_id IN ?", stale).Delete(&store.Load{}).Error
		})
		if err != nil {
			slog.ErrorContext(ctx, "stale cleanup failed", "err", err)
			return
		}
		slog.InfoContext(ctx, "removed stale postings", "count", len(stale))
	default:
		slog.WarnContext(ctx, "stale set implausibly large, refusing to delete",
			"stale", len(stale), "ceiling", ceiling)
	}
}
