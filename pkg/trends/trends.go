package trends

import (
	"errors"
	"fmt"
	"time"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
)

// ErrInconsistentBounds means a freshly computed bound for a date came out
// lower than the previous day's stored bound. Bounds only ever grow in this
// domain, so this indicates upstream data corruption. It is surfaced, never
// silently clamped.
var ErrInconsistentBounds = errors.New("inconsistent trend bounds")

// MetricScan is the raw aggregate for one metric over the materialized
// per-date view (latest capture per player on that day, definite account
// types only). A field is -1 when no included player tracked the metric.
type MetricScan struct {
	Metric   metrics.Key
	MaxRank  int64
	MinValue int64
	MaxValue int64
	Players  int64
}

// EmptyScan is the scan for a metric no included player tracked that day.
func EmptyScan(metric metrics.Key) MetricScan {
	return MetricScan{Metric: metric, MaxRank: -1, MinValue: -1, MaxValue: -1}
}

// ComputeBounds folds one day's raw scan onto the previous day's stored
// bounds. The previous day acts as a floor: a quieter day never shrinks the
// global maximums (see the carried-forward rule), and a raw minimum below the
// stored one is corruption, not a new bound. Pass prev == nil for the very
// first aggregated date.
//
// The returned datapoint has Sum set to the pending sentinel; the sum pass
// fills it in once the bounds are durable.
func ComputeBounds(date time.Time, prev *model.TrendDatapoint, scan MetricScan) (model.TrendDatapoint, error) {
	out := model.TrendDatapoint{
		Metric:   scan.Metric,
		Date:     date.UTC().Truncate(24 * time.Hour),
		MaxRank:  scan.MaxRank,
		MinValue: scan.MinValue,
		MaxValue: scan.MaxValue,
		Sum:      model.SumPending,
	}

	if prev == nil {
		return out, nil
	}

	if prev.MaxRank > out.MaxRank {
		out.MaxRank = prev.MaxRank
	}
	if prev.MaxValue > out.MaxValue {
		out.MaxValue = prev.MaxValue
	}

	switch {
	case out.MinValue == -1:
		out.MinValue = prev.MinValue
	case prev.MinValue > -1 && out.MinValue < prev.MinValue:
		return model.TrendDatapoint{}, fmt.Errorf(
			"%w: %s min value %d on %s is below the stored %d for the previous day",
			ErrInconsistentBounds, scan.Metric, out.MinValue, out.Date.Format("2006-01-02"), prev.MinValue)
	case prev.MinValue > -1:
		out.MinValue = prev.MinValue
	}

	return out, nil
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// MissingDates returns, in ascending order, every date from since up to and
// including today whose stored datapoint count falls short of the full
// catalog. Counts come from the trend datapoint store; comparing expected
// (numDates × numMetrics) against actual rows finds holes without rescanning
// the snapshot table.
func MissingDates(since, today time.Time, stored map[time.Time]int, metricsPerDay int) []time.Time {
	var out []time.Time
	for d := Day(since); !d.After(Day(today)); d = d.AddDate(0, 0, 1) {
		if stored[d] < metricsPerDay {
			out = append(out, d)
		}
	}
	return out
}
