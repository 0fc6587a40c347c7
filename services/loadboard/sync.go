package loadboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"loadscout-backend/services/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Synchronizer accumulates processed postings and flushes them in
// bounded batches. Writes are at-least-once: the unique sourceId index
// plus upsert-style updates make a re-delivered batch idempotent, and a
// batch that cannot be written at all lands in a local backup file
// instead of failing the run.
type Synchronizer struct {
	db *gorm.DB

	batchSize   int
	insertBatch int
	insertPause time.Duration
	backupDir   string

	pending []store.Load
}

func NewSynchronizer(db *gorm.DB, cfg Config) *Synchronizer {
	return &Synchronizer{
		db:          db,
		batchSize:   cfg.BatchSize,
		insertBatch: cfg.InsertBatchSize,
		insertPause: cfg.InsertPause,
		backupDir:   cfg.BackupDir,
	}
}

// Add queues a posting and flushes when the batch bound is reached.
func (s *Synchronizer) Add(ctx context.Context, load store.Load) {
	s.pending = append(s.pending, load)
	if len(s.pending) >= s.batchSize {
		s.flush(ctx)
	}
}

// Flush writes out any remainder. Called once at run end.
func (s *Synchronizer) Flush(ctx context.Context) {
	if len(s.pending) > 0 {
		s.flush(ctx)
	}
}

func (s *Synchronizer) flush(ctx context.Context) {
	batch := s.pending
	s.pending = nil

	if err := s.sync(ctx, batch); err != nil {
		slog.ErrorContext(ctx, "batch sync failed", "size", len(batch), "err", err)
		s.writeBackup(ctx, batch)
	}
}

func (s *Synchronizer) sync(ctx context.Context, batch []store.Load) error {
	ctx, span := tracer.Start(ctx, "syncBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(batch)))

	ids := make([]string, 0, len(batch))
	for _, l := range batch {
		ids = append(ids, l.SourceID)
	}

	var existingIDs []string
	err := store.WithRetry(ctx, func() error {
		return s.db.WithContext(ctx).
			Model(&store.Load{}).
			Where("source_id IN ?", ids).
			Pluck("source_id", &existingIDs).Error
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "existence query failed")
		return err
	}

	existing := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	var fresh, known []store.Load
	for _, l := range batch {
		if existing[l.SourceID] {
			known = append(known, l)
		} else {
			fresh = append(fresh, l)
		}
	}
	slog.InfoContext(ctx, "synchronizing batch",
		"total", len(batch), "new", len(fresh), "updates", len(known))

	if len(fresh) > 0 {
		if err := s.insertLoads(ctx, fresh); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert failed")
			return err
		}
	}
	if len(known) > 0 {
		if err := s.updateLoads(ctx, known); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
			return err
		}
	}
	return nil
}

// insertLoads writes new postings in fixed-size sub-batches. A
// sub-batch that exhausts its retries falls back to individual inserts
// so one bad record cannot block its siblings; a duplicate-key failure
// there is benign, the record already exists.
func (s *Synchronizer) insertLoads(ctx context.Context, loads []store.Load) error {
	for start := 0; start < len(loads); start += s.insertBatch {
		end := start + s.insertBatch
		if end > len(loads) {
			end = len(loads)
		}
		chunk := loads[start:end]

		err := store.WithRetry(ctx, func() error {
			return s.db.WithContext(ctx).Create(&chunk).Error
		})
		if err != nil {
			slog.WarnContext(ctx, "sub-batch insert failed, retrying rows individually",
				"size", len(chunk), "err", err)
			for i := range chunk {
				row := chunk[i]
				row.ID = 0
				ierr := store.WithRetry(ctx, func() error {
					return s.db.WithContext(ctx).Create(&row).Error
				})
				if ierr == nil || isDuplicateKey(ierr) {
					continue
				}
				slog.ErrorContext(ctx, "could not insert posting",
					"source_id", row.SourceID, "err", ierr)
			}
		}

		// bound the request rate against the store
		select {
		case <-time.After(s.insertPause):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// updateLoads refreshes existing postings in one upsert keyed by the
// sourceId index; updated_at advances on every observation, cache hits
// included.
func (s *Synchronizer) updateLoads(ctx context.Context, loads []store.Load) error {
	rows := make([]store.Load, len(loads))
	copy(rows, loads)
	for i := range rows {
		rows[i].ID = 0
	}
	return store.WithRetry(ctx, func() error {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"origin_city", "origin_state", "origin_zip", "origin_lat", "origin_lng",
				"destination_city", "destination_state", "destination_zip",
				"destination_lat", "destination_lng",
				"miles", "truck_type", "weight", "pieces",
				"pickup_date", "delivery_date_time",
				"broker_name", "broker_email", "broker_notes",
				"updated_at",
			}),
		}).Create(&rows).Error
	})
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// writeBackup dumps a failed batch to a timestamped local file for
// manual recovery. In-memory state is not rolled back.
func (s *Synchronizer) writeBackup(ctx context.Context, batch []store.Load) {
	raw, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		slog.ErrorContext(ctx, "could not serialize failed batch", "err", err)
		return
	}

	name := fmt.Sprintf("failed_batch_%s.json", time.Now().UTC().Format("2006-01-02T15-04-05"))
	path := filepath.Join(s.backupDir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		slog.ErrorContext(ctx, "could not write batch backup", "path", path, "err", err)
		return
	}
	slog.WarnContext(ctx, "wrote emergency backup for failed batch", "path", path, "size", len(batch))
}
