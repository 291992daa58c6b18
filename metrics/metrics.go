package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var defaultSecondsDistribution = view.Distribution(0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200)

var (
	Outcome, _  = tag.NewKey("outcome")
	Route, _    = tag.NewKey("route")
	Site, _     = tag.NewKey("site")
	Category, _ = tag.NewKey("category")
)

var (
	CDRInfo = stats.Int64("info", "Arbitrary counter to tag padme cdr info", stats.UnitDimensionless)

	TransferResult   = stats.Int64("transfer/result", "Count the file transfers by outcome", stats.UnitDimensionless)
	TransferDuration = stats.Float64("transfer/duration_s", "Duration of a file transfer", stats.UnitSeconds)
	TransferBytes    = stats.Int64("transfer/bytes", "Bytes copied by successful transfers", stats.UnitBytes)

	VerifyEntries = stats.Int64("verify/entries", "Count the compared files by category", stats.UnitDimensionless)

	DeleteRounds = stats.Int64("delete/rounds", "Rounds needed to delete a run", stats.UnitDimensionless)
)

var (
	InfoView = &view.View{
		Name:        "info",
		Description: "padme cdr information",
		Measure:     CDRInfo,
		Aggregation: view.LastValue(),
		TagKeys:     []tag.Key{},
	}

	TransferResultView = &view.View{
		Name:        "transfer_result",
		Description: "count of file transfers by outcome",
		TagKeys:     []tag.Key{Route, Outcome},
		Measure:     TransferResult,
		Aggregation: view.Count(),
	}

	TransferDurationView = &view.View{
		Name:        "transfer_duration_seconds",
		TagKeys:     []tag.Key{Route},
		Measure:     TransferDuration,
		Aggregation: defaultSecondsDistribution,
	}

	TransferBytesView = &view.View{
		Name:        "transfer_bytes",
		TagKeys:     []tag.Key{Route},
		Measure:     TransferBytes,
		Aggregation: view.Sum(),
	}

	VerifyEntriesView = &view.View{
		Name:        "verify_entries",
		Description: "count of compared files by category",
		TagKeys:     []tag.Key{Category},
		Measure:     VerifyEntries,
		Aggregation: view.Sum(),
	}

	DeleteRoundsView = &view.View{
		Name:        "delete_rounds",
		TagKeys:     []tag.Key{Site},
		Measure:     DeleteRounds,
		Aggregation: view.LastValue(),
	}
)

var CDRViews = []*view.View{
	InfoView,
	TransferResultView,
	TransferDurationView,
	TransferBytesView,
	VerifyEntriesView,
	DeleteRoundsView,
}

type TimeParser func(time.Time) float64

func Timer(ctx context.Context, m *stats.Float64Measure, fn TimeParser) func() {
	start := time.Now()
	return func() {
		stats.Record(ctx, m.M(fn(start)))
	}
}

func SinceInSeconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e9
}

// RouteName renders a source/destination pair as used by the route tag, e.g. "grid->shell-tape".
func RouteName(src, dst string) string {
	return src + "->" + dst
}
