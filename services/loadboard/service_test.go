package loadboard

import (
	"context"
	"testing"
	"time"

	"loadscout-backend/lib/scrapers/sylectus"
	"loadscout-backend/lib/testutil"
	"loadscout-backend/services/store"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakePortal struct {
	rows        []sylectus.RawRow
	detailCalls []int
}

func (f *fakePortal) AcquireSession(ctx context.Context) error { return nil }

func (f *fakePortal) Board(ctx context.Context) ([]sylectus.RawRow, error) { return f.rows, nil }

func (f *fakePortal) OpenDetail(ctx context.Context, rowIndex int) (*sylectus.Popup, error) {
	f.detailCalls = append(f.detailCalls, rowIndex)
	return &sylectus.Popup{}, nil
}

func (f *fakePortal) Expired(*sylectus.Popup) bool { return false }

func (f *fakePortal) BrokerEmail(*sylectus.Popup) string { return "dispatch@acme.example" }

func (f *fakePortal) BrokerNotes(*sylectus.Popup) string { return "call before pickup" }

func boardRows() []sylectus.RawRow {
	return []sylectus.RawRow{
		{
			Index:                  0,
			OriginAndPickup:        "Dallas, TX 75201\n01/02 08:00",
			DestinationAndDelivery: "Miami, FL\n01/03 17:00",
			TruckAndMiles:          "SPRINTER\n1,300",
			PiecesAndWeight:        "2\n1,500",
			BrokerName:             "Acme Logistics",
		},
		{
			Index:                  1,
			OriginAndPickup:        "Chicago, IL\n01/04 09:00",
			DestinationAndDelivery: "Atlanta, GA\n01/05 12:00",
			TruckAndMiles:          "CARGO VAN\n715",
			PiecesAndWeight:        "1\n800",
			BrokerName:             "Bravo Freight",
		},
		// filler row without a broker anchor
		{Index: 2},
	}
}

func runConfig(t *testing.T) Config {
	return Config{
		BackupDir:   t.TempDir(),
		InsertPause: time.Millisecond,
		RowInterval: time.Millisecond,
	}
}

func TestRunSkipsDetailForCachedRows(t *testing.T) {
	db, cleanup := testutil.SetupService(t, "services/loadboard/run")
	defer cleanup()

	rows := boardRows()
	cached := loadFromRow(rows[0], Fingerprint(rows[0]), "dispatch@acme.example", "call before pickup")
	require.NoError(t, db.Create(&cached).Error)

	portal := &fakePortal{rows: rows}
	stats, err := NewService(db, portal, runConfig(t)).Run(context.Background())
	require.NoError(t, err)

	// only the uncached row opened a popup
	require.Equal(t, []int{1}, portal.detailCalls)
	require.Equal(t, 1, stats.Cached)
	require.Equal(t, 1, stats.New)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.EmptyRows)

	var n int64
	require.NoError(t, db.Model(&store.Load{}).Count(&n).Error)
	require.EqualValues(t, 2, n)
}

func TestRunExtractsEveryUncachedRow(t *testing.T) {
	db, cleanup := testutil.SetupService(t, "services/loadboard/run")
	defer cleanup()

	portal := &fakePortal{rows: boardRows()}
	stats, err := NewService(db, portal, runConfig(t)).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []int{0, 1}, portal.detailCalls)
	require.Equal(t, 2, stats.New)
	require.Zero(t, stats.Cached)
}

func TestRunExportsMetrics(t *testing.T) {
	db, cleanup := testutil.SetupService(t, "services/loadboard/run")
	defer cleanup()

	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	portal := &fakePortal{rows: boardRows()}
	_, err := NewService(db, portal, runConfig(t)).Run(context.Background())
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				sums[m.Name] = total
			}
		}
	}
	require.EqualValues(t, 2, sums["postings_observed"])
	require.EqualValues(t, 2, sums["postings_new"])
	require.EqualValues(t, 0, sums["postings_cached"])
	require.EqualValues(t, 1, sums["empty_rows"])
}
