package loadboard

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// runMetrics exports the per-run pipeline counters through the
// configured meter provider, alongside the run summary log.
type runMetrics struct {
	total              metric.Int64Counter
	fresh              metric.Int64Counter
	cached             metric.Int64Counter
	expired            metric.Int64Counter
	emptyRows          metric.Int64Counter
	popupFailures      metric.Int64Counter
	extractionFailures metric.Int64Counter
	runSeconds         metric.Float64Gauge
}

// instruments resolve against the meter provider current at Service
// construction, so services built after telemetry setup export for real.
func newRunMetrics() runMetrics {
	meter := otel.Meter("services/loadboard")
	m := runMetrics{}
	m.total, _ = meter.Int64Counter("postings_observed")
	m.fresh, _ = meter.Int64Counter("postings_new")
	m.cached, _ = meter.Int64Counter("postings_cached")
	m.expired, _ = meter.Int64Counter("postings_expired")
	m.emptyRows, _ = meter.Int64Counter("empty_rows")
	m.popupFailures, _ = meter.Int64Counter("popup_failures")
	m.extractionFailures, _ = meter.Int64Counter("extraction_failures")
	m.runSeconds, _ = meter.Float64Gauge("run_seconds")
	return m
}

func (m runMetrics) record(ctx context.Context, stats RunStats) {
	m.total.Add(ctx, int64(stats.Total))
	m.fresh.Add(ctx, int64(stats.New))
	m.cached.Add(ctx, int64(stats.Cached))
	m.expired.Add(ctx, int64(stats.Expired))
	m.emptyRows.Add(ctx, int64(stats.EmptyRows))
	m.popupFailures.Add(ctx, int64(stats.PopupFailures))
	m.extractionFailures.Add(ctx, int64(stats.ExtractionFailures))
	m.runSeconds.Record(ctx, stats.Elapsed.Seconds())
}
