package delta

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
)

var (
	// ErrInsufficientData means fewer than two snapshots exist in the
	// requested window. Absence of data is never reported as a zero delta.
	ErrInsufficientData = errors.New("insufficient data for this period")

	// ErrInvalidPeriod means the named period is not one of day/week/month/year.
	ErrInvalidPeriod = errors.New("invalid period")
)

// Period is a named fixed-duration window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

var periodDurations = map[Period]time.Duration{
	PeriodDay:   24 * time.Hour,
	PeriodWeek:  7 * 24 * time.Hour,
	PeriodMonth: 31 * 24 * time.Hour,
	PeriodYear:  365 * 24 * time.Hour,
}

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if _, ok := periodDurations[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

// Duration returns the fixed window length for the period.
func (p Period) Duration() (time.Duration, error) {
	d, ok := periodDurations[p]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
	return d, nil
}

// Range is an explicit [Start, End] timestamp window.
type Range struct {
	Start time.Time
	End   time.Time
}

// RangeForPeriod builds a window ending now for the given period.
func RangeForPeriod(p Period, now time.Time) (Range, error) {
	d, err := p.Duration()
	if err != nil {
		return Range{}, err
	}
	return Range{Start: now.Add(-d), End: now}, nil
}

// Progress holds start/end/gained for one dimension of one metric.
// Start and End use the wire representation, so -1 means untracked; the end
// value is reported as captured, never substituted.
type Progress struct {
	Start  int64 `json:"start"`
	End    int64 `json:"end"`
	Gained int64 `json:"gained"`
}

// MetricDelta is the computed gain for a single metric.
type MetricDelta struct {
	Metric  metrics.Key `json:"metric"`
	Measure string      `json:"measure"`
	Rank    Progress    `json:"rank"`
	Value   Progress    `json:"value"`
}

// Result is a full per-metric delta for one player over one window.
type Result struct {
	PlayerID int64
	StartsAt time.Time
	EndsAt   time.Time
	Metrics  map[metrics.Key]MetricDelta
}

// SnapshotSource is the slice of the snapshot store the calculator needs.
type SnapshotSource interface {
	FindFirstInRange(ctx context.Context, playerID int64, start, end time.Time) (*model.Snapshot, error)
	FindLastInRange(ctx context.Context, playerID int64, start, end time.Time) (*model.Snapshot, error)
}

// BaselineSource resolves a player's pre-tracking baseline values.
type BaselineSource interface {
	GetBaseline(ctx context.Context, playerID int64) (*model.Baseline, error)
}

// Calculator computes gains between the first and last snapshot of a window,
// substituting baseline values where the first snapshot predates tracking.
type Calculator struct {
	Snapshots SnapshotSource
	Baselines BaselineSource
	Logger    *zap.Logger
}

// ComputeForPeriod computes the delta over a named period ending at now.
func (c *Calculator) ComputeForPeriod(ctx context.Context, playerID int64, period Period, now time.Time) (*Result, error) {
	r, err := RangeForPeriod(period, now)
	if err != nil {
		return nil, err
	}
	return c.Compute(ctx, playerID, r, nil)
}

// Compute computes the per-metric delta over an explicit range. A pre-fetched
// baseline may be passed to avoid a redundant lookup; pass nil to let the
// calculator resolve it.
func (c *Calculator) Compute(ctx context.Context, playerID int64, r Range, baseline *model.Baseline) (*Result, error) {
	first, err := c.Snapshots.FindFirstInRange(ctx, playerID, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("find first snapshot: %w", err)
	}
	last, err := c.Snapshots.FindLastInRange(ctx, playerID, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("find last snapshot: %w", err)
	}

	if first == nil || last == nil || first.CreatedAt.Equal(last.CreatedAt) {
		return nil, fmt.Errorf("%w: player %d between %s and %s",
			ErrInsufficientData, playerID, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}

	if baseline == nil && c.Baselines != nil {
		baseline, err = c.Baselines.GetBaseline(ctx, playerID)
		if err != nil {
			return nil, fmt.Errorf("get baseline: %w", err)
		}
	}

	result := &Result{
		PlayerID: playerID,
		StartsAt: first.CreatedAt,
		EndsAt:   last.CreatedAt,
		Metrics:  make(map[metrics.Key]MetricDelta, metrics.Count()),
	}

	for _, metric := range metrics.All() {
		result.Metrics[metric.Key] = computeMetricDelta(metric, first.Stat(metric.Key), last.Stat(metric.Key), baseline.Stat(metric.Key))
	}

	return result, nil
}

// computeMetricDelta applies the substitution rules for a single metric:
//   - an untracked start value falls back to the baseline value;
//   - the end value is never substituted;
//   - an untracked start rank on a skill yields gained rank 0, since rank
//     movement is meaningless before the player was ranked;
//   - an untracked start rank elsewhere falls back to the baseline rank.
func computeMetricDelta(metric metrics.Metric, start, end, baseline model.Stat) MetricDelta {
	d := MetricDelta{Metric: metric.Key, Measure: metric.MeasureName()}

	startValue := start.Value
	if startValue == nil {
		startValue = baseline.Value
	}
	d.Value.Start = start.WireValue()
	d.Value.End = end.WireValue()
	if end.Value != nil {
		base := int64(0)
		if startValue != nil {
			base = *startValue
		}
		d.Value.Gained = *end.Value - base
	}

	startRank := start.Rank
	skill := metric.Type == metrics.TypeSkill
	if startRank == nil && !skill {
		startRank = baseline.Rank
	}
	d.Rank.Start = start.WireRank()
	d.Rank.End = end.WireRank()
	if end.Rank != nil && startRank != nil {
		d.Rank.Gained = *end.Rank - *startRank
	}

	return d
}

// LeaderboardEntry is one row of a gained-value leaderboard.
type LeaderboardEntry struct {
	PlayerID int64       `json:"playerId"`
	Metric   metrics.Key `json:"metric"`
	Gained   int64       `json:"gained"`
	StartsAt time.Time   `json:"startsAt"`
	EndsAt   time.Time   `json:"endsAt"`
}

// ComputeLeaderboard runs the delta over a set of players for one metric and
// orders the rows by gained descending, player id ascending for determinism.
// Players without enough snapshots in the window are skipped rather than
// listed with a zero gain.
func (c *Calculator) ComputeLeaderboard(ctx context.Context, playerIDs []int64, metric metrics.Key, r Range) ([]LeaderboardEntry, error) {
	if !metrics.IsValid(metric) {
		return nil, fmt.Errorf("%w: %q", metrics.ErrInvalidMetric, metric)
	}

	entries := make([]LeaderboardEntry, 0, len(playerIDs))
	for _, playerID := range playerIDs {
		result, err := c.Compute(ctx, playerID, r, nil)
		if err != nil {
			if errors.Is(err, ErrInsufficientData) {
				continue
			}
			return nil, err
		}
		entries = append(entries, LeaderboardEntry{
			PlayerID: playerID,
			Metric:   metric,
			Gained:   result.Metrics[metric].Value.Gained,
			StartsAt: result.StartsAt,
			EndsAt:   result.EndsAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Gained != entries[j].Gained {
			return entries[i].Gained > entries[j].Gained
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})

	return entries, nil
}
