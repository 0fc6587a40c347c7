package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (or creates) the sqlite store and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Load{}, &Alert{}, &ZipCode{}); err != nil {
		return nil, err
	}
	return db, nil
}

const (
	retryAttempts = 3
	retryBase     = time.Second
)

// WithRetry runs a store operation with bounded retry and linearly
// increasing backoff (base delay times the attempt number). The last
// error surfaces to the caller once attempts are exhausted. Duplicate
// key violations are permanent and surface immediately.
func WithRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		if attempt == retryAttempts {
			break
		}
		wait := retryBase * time.Duration(attempt)
		slog.WarnContext(ctx, "store operation failed, retrying",
			"attempt", attempt, "backoff", wait, "err", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Reconnect pings the underlying connection with retry. Long scrapes can
// outlive an idle connection; callers ping defensively before running a
// destructive step.
func Reconnect(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return WithRetry(ctx, func() error {
		return sqlDB.PingContext(ctx)
	})
}

// ResolveGeo fills a place's coordinates from the zip-code table, first
// by zip, then by city and state. Unresolved places keep zero
// coordinates, which downstream geo matching treats as missing data.
func ResolveGeo(db *gorm.DB, p *Place) {
	if p.HasGeo() {
		return
	}
	var zc ZipCode
	if p.Zip != "" {
		if err := db.Where("zip = ?", p.Zip).First(&zc).Error; err == nil {
			p.Lat, p.Lng = zc.Lat, zc.Lng
			return
		}
	}
	if p.City == "" || p.State == "" {
		return
	}
	err := db.Where("city = ? COLLATE NOCASE AND state_id = ?", p.City, p.State).
		Order("population DESC").
		First(&zc).Error
	if err == nil {
		p.Lat, p.Lng = zc.Lat, zc.Lng
	}
}
