package loadboard

import (
	"context"
	"log/slog"
	"time"

	"loadscout-backend/lib/scrapers/sylectus"
	"loadscout-backend/services/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("services/loadboard")

type Config struct {
	// batch bounds for the synchronizer
	BatchSize       int           `json:"batch_size"`
	InsertBatchSize int           `json:"insert_batch_size"`
	InsertPause     time.Duration `json:"insert_pause"`
	BackupDir       string        `json:"backup_dir"`

	// refuse to reap a stale set at or above this size
	StaleCeiling int `json:"stale_ceiling"`

	// minimum spacing between row extractions against the portal
	RowInterval time.Duration `json:"row_interval"`
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = 25
	}
	if c.InsertBatchSize == 0 {
		c.InsertBatchSize = 10
	}
	if c.InsertPause == 0 {
		c.InsertPause = time.Second
	}
	if c.StaleCeiling == 0 {
		c.StaleCeiling = 500
	}
	if c.RowInterval == 0 {
		c.RowInterval = 100 * time.Millisecond
	}
	return c
}

// Portal is the board surface the pipeline drives. *sylectus.Client is
// the production implementation.
type Portal interface {
	AcquireSession(ctx context.Context) error
	Board(ctx context.Context) ([]sylectus.RawRow, error)
	OpenDetail(ctx context.Context, rowIndex int) (*sylectus.Popup, error)
	Expired(p *sylectus.Popup) bool
	BrokerEmail(p *sylectus.Popup) string
	BrokerNotes(p *sylectus.Popup) string
}

// Service runs the scrape-and-reconcile pipeline: one browsing context,
// one row at a time, batched writes, stale cleanup at the end.
type Service struct {
	db      *gorm.DB
	portal  Portal
	cfg     Config
	metrics runMetrics
}

func NewService(db *gorm.DB, portal Portal, cfg Config) *Service {
	return &Service{db: db, portal: portal, cfg: cfg.withDefaults(), metrics: newRunMetrics()}
}

// RunStats are the per-run counters reported when a scrape finishes.
type RunStats struct {
	Total              int
	New                int
	Cached             int
	Expired            int
	EmptyRows          int
	PopupFailures      int
	ExtractionFailures int
	Elapsed            time.Duration
}

// Run executes one full scrape pass. Portal failures before the row
// loop are fatal; everything row-level is counted and skipped.
func (s *Service) Run(ctx context.Context) (RunStats, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	start := time.Now()
	var stats RunStats

	if err := s.portal.AcquireSession(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session acquisition failed")
		return stats, err
	}

	cache := LoadDedupCache(ctx, s.db)

	rows, err := s.portal.Board(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing extraction failed")
		return stats, err
	}
	slog.InfoContext(ctx, "processing board", "rows", len(rows), "cached_postings", cache.Len())

	sync := NewSynchronizer(s.db, s.cfg)
	limiter := rate.NewLimiter(rate.Every(s.cfg.RowInterval), 1)
	var observed []store.Load

	for _, row := range rows {
		if err := limiter.Wait(ctx); err != nil {
			return stats, err
		}

		if !row.HasBroker() {
			stats.EmptyRows++
			continue
		}

		sourceID := Fingerprint(row)

		var load store.Load
		if cached, hit := cache.Get(sourceID); hit {
			load = loadFromCached(cached)
			stats.Cached++
		} else {
			var ok bool
			load, ok = s.extractDetail(ctx, row, sourceID, &stats)
			if !ok {
				continue
			}
			stats.New++
		}

		observed = append(observed, load)
		sync.Add(ctx, load)
	}

	sync.Flush(ctx)

	stats.Total = len(observed)
	span.SetAttributes(
		attribute.Int("total", stats.Total),
		attribute.Int("new", stats.New),
		attribute.Int("cached", stats.Cached),
	)

	ReapStale(ctx, s.db, observed, s.cfg.StaleCeiling)

	stats.Elapsed = time.Since(start)
	s.metrics.record(ctx, stats)
	slog.InfoContext(ctx, "scrape pass finished",
		"total", stats.Total, "new", stats.New, "cached", stats.Cached,
		"expired", stats.Expired, "empty", stats.EmptyRows,
		"popup_failures", stats.PopupFailures,
		"extraction_failures", stats.ExtractionFailures,
		"elapsed", stats.Elapsed)
	return stats, nil
}

// extractDetail opens the row's popup and reads broker contact fields.
// The bool result reports whether a posting was produced; failures are
// counted on stats and the row is skipped.
func (s *Service) extractDetail(ctx context.Context, row sylectus.RawRow, sourceID string, stats *RunStats) (store.Load, bool) {
	popup, err := s.portal.OpenDetail(ctx, row.Index)
	if err != nil {
		slog.WarnContext(ctx, "could not trigger detail popup",
			"broker", row.BrokerName, "err", err)
		stats.PopupFailures++
		return store.Load{}, false
	}
	if popup == nil {
		slog.WarnContext(ctx, "no popup appeared", "broker", row.BrokerName)
		stats.PopupFailures++
		return store.Load{}, false
	}

	if s.portal.Expired(popup) {
		slog.DebugContext(ctx, "posting expired", "broker", row.BrokerName)
		stats.Expired++
		return store.Load{}, false
	}

	email := s.portal.BrokerEmail(popup)
	notes := s.portal.BrokerNotes(popup)
	if email == sylectus.NotAvailable && notes == sylectus.NotAvailable {
		// popup likely never rendered; keep the posting with sentinels
		slog.WarnContext(ctx, "no detail data extracted", "broker", row.BrokerName)
		stats.ExtractionFailures++
	}

	load := loadFromRow(row, sourceID, email, notes)
	store.ResolveGeo(s.db, &load.Origin)
	store.ResolveGeo(s.db, &load.Destination)
	return load, true
}
