package loadboard

import (
	"context"
	"testing"
	"time"

	"loadscout-backend/lib/testutil"
	"loadscout-backend/services/store"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig(t *testing.T) Config {
	return Config{
		BatchSize:       25,
		InsertBatchSize: 10,
		InsertPause:     time.Millisecond,
		BackupDir:       t.TempDir(),
	}.withDefaults()
}

func countLoads(t *testing.T, db *gorm.DB, sourceID string) int64 {
	var n int64
	err := db.Model(&store.Load{}).Where("source_id = ?", sourceID).Count(&n).Error
	require.NoError(t, err)
	return n
}

func TestSyncIdempotence(t *testing.T) {
	db, cleanup := testutil.SetupService(t, "services/loadboard/sync")
	defer cleanup()
	ctx := context.Background()

	batch := []store.Load{
		{SourceID: "src-1", BrokerName: "Acme", TruckType: "Sprinter", Miles: 781},
		{SourceID: "src-2", BrokerName: "Bravo", TruckType: "Straight Truck", Miles: 1004},
	}

	s := NewSynchronizer(db, testConfig(t))
	require.NoError(t, s.sync(ctx, batch))

	var first store.Load
	require.NoError(t, db.Where("source_id = ?", "src-1").First(&first).Error)
	require.Equal(t, "Acme", first.BrokerName)

	// the same batch again must update in place, never duplicate
	time.Sleep(10 * time.Millisecond)
	batch[0].TruckType = "Large Straight"
	require.NoError(t, s.sync(ctx, batch))

	require.EqualValues(t, 1, countLoads(t, db, "src-1"))
	require.EqualValues(t, 1, countLoads(t, db, "src-2"))

	var second store.Load
	require.NoError(t, db.Where("source_id = ?", "src-1").First(&second).Error)
	require.Equal(t, "Large Straight", second.TruckType)
	require.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestSyncDuplicateWithinBatch(t *testing.T) {
	db, cleanup := testutil.SetupService(t, "services/loadboard/sync")
	defer cleanup()
	ctx := context.Background()

	// the portal occasionally lists the same posting twice; the
	// sub-batch insert fails and the individual fallback treats the
	// duplicate as benign
	batch := []store.Load{
		{SourceID: "dup-1", BrokerName: "Acme"},
		{SourceID: "dup-1", BrokerName: "Acme"},
	}

	s := NewSynchronizer(db, testConfig(t))
	require.NoError(t, s.sync(ctx, batch))
	require.EqualValues(t, 1, countLoads(t, db, "dup-1"))
}

func TestAddFlushesFullBatches(t *testing.T) {
	db, cleanup := testutil.SetupService(t, "services/loadboard/sync")
	defer cleanup()
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.BatchSize = 3
	s := NewSynchronizer(db, cfg)

	s.Add(ctx, store.Load{SourceID: "a"})
	s.Add(ctx, store.Load{SourceID: "b"})

	var n int64
	require.NoError(t, db.Model(&store.Load{}).Count(&n).Error)
	require.EqualValues(t, 0, n)

	s.Add(ctx, store.Load{SourceID: "c"})
	require.NoError(t, db.Model(&store.Load{}).Count(&n).Error)
	require.EqualValues(t, 3, n)

	// remainder only goes out on the final flush
	s.Add(ctx, store.Load{SourceID: "d"})
	s.Flush(ctx)
	require.NoError(t, db.Model(&store.Load{}).Count(&n).Error)
	require.EqualValues(t, 4, n)
}
