package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

var (
	MPages = stats.Int64("twin/query/pages", "Number of query pages fetched", stats.UnitDimensionless)

	MTwinsQueried = stats.Int64("twin/query/twins", "Number of twins returned by queries", stats.UnitDimensionless)

	MUpdates = stats.Int64("twin/update/count", "Number of twin updates", stats.UnitDimensionless)

	MUpdateLatencyMs = stats.Float64("twin/update/latency", "The latency in milliseconds per twin update", stats.UnitMilliseconds)
)

var (
	KeyStatus, _ = tag.NewKey("status")
	KeyClass, _  = tag.NewKey("device_class")
)

var (
	PagesView = &view.View{
		Name:        "twin/query/pages",
		Measure:     MPages,
		Description: "Number of query pages fetched",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyStatus},
	}

	TwinsQueriedView = &view.View{
		Name:        "twin/query/twins",
		Measure:     MTwinsQueried,
		Description: "Number of twins returned by queries",
		Aggregation: view.Sum(),
		TagKeys:     []tag.Key{KeyClass},
	}

	UpdatesView = &view.View{
		Name:        "twin/update/count",
		Measure:     MUpdates,
		Description: "Number of twin updates",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyStatus},
	}

	UpdateLatencyView = &view.View{
		Name:        "twin/update/latency",
		Measure:     MUpdateLatencyMs,
		Description: "The distribution of twin update latencies",
		Aggregation: view.Distribution(0, 25, 50, 75, 100, 200, 400, 600, 800, 1000, 2000, 4000, 6000),
		TagKeys:     []tag.Key{KeyStatus},
	}
)

var registerOnce sync.Once

// Register registers views. Safe to call more than once.
func Register() (err error) {
	registerOnce.Do(func() {
		err = view.Register(PagesView, TwinsQueriedView, UpdatesView, UpdateLatencyView)
	})

	return err
}

// NewExporter creates prometheus exporter. It's an http.Handler serving the
// scrape endpoint.
func NewExporter(namespace string) (*prometheus.Exporter, error) {
	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	return pe, nil
}

func status(err error) string {
	if err != nil {
		return StatusFailed
	}

	return StatusOK
}

// RecordPage records fetched query page.
func RecordPage(ctx context.Context, deviceClass string, twins int, err error) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyStatus, status(err))}, MPages.M(1))

	if err == nil {
		_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyClass, deviceClass)}, MTwinsQueried.M(int64(twins)))
	}
}

// RecordUpdate records finished twin update started at start.
func RecordUpdate(ctx context.Context, start time.Time, err error) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyStatus, status(err))},
		MUpdates.M(1),
		MUpdateLatencyMs.M(sinceInMilliseconds(start)),
	)
}

func sinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e6
}
