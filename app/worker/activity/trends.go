package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/wise-old-man/wise-old-man-sub005/app/worker/types"
	trenddata "github.com/wise-old-man/wise-old-man-sub005/pkg/db/trenddata"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/trends"
)

// TrendDateWorkflowName is resolved at start time so the starter activity
// does not import the workflow package.
const TrendDateWorkflowName = "TrendDateWorkflow"

// ComputeTrendBounds aggregates one day's per-metric bounds and replaces the
// day's datapoint rows. Metrics with no captures that day carry the previous
// day's bounds forward. The sum column is left pending; the sum pass fills it
// in once the day's bounds exist.
func (ac *Context) ComputeTrendBounds(ctx context.Context, in types.ActivityComputeTrendBoundsInput) (types.ActivityComputeTrendBoundsOutput, error) {
	start := time.Now()
	day := trends.Day(in.Date)

	scans, err := ac.Snapshots.ScanBoundsForDate(ctx, day)
	if err != nil {
		return types.ActivityComputeTrendBoundsOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to scan snapshot bounds for %s", day.Format("2006-01-02")), "bounds_scan_error", err)
	}
	scanByMetric := make(map[metrics.Key]trends.MetricScan, len(scans))
	for _, s := range scans {
		scanByMetric[s.Metric] = s
	}

	prevRows, err := ac.TrendData.GetForDate(ctx, day.AddDate(0, 0, -1))
	if err != nil {
		return types.ActivityComputeTrendBoundsOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to load previous bounds for %s", day.Format("2006-01-02")), "bounds_read_error", err)
	}
	prevByMetric := make(map[metrics.Key]*model.TrendDatapoint, len(prevRows))
	for i := range prevRows {
		prevByMetric[prevRows[i].Metric] = &prevRows[i]
	}

	// Bounds math is independent per metric, fan it out on the shared pool.
	all := metrics.All()
	rows := make([]model.TrendDatapoint, len(all))
	pool := ac.trendBoundsPool()
	group := pool.NewGroupContext(ctx)
	for i, m := range all {
		i, key := i, m.Key
		group.SubmitErr(func() error {
			scan, ok := scanByMetric[key]
			if !ok {
				scan = trends.EmptyScan(key)
			}
			dp, boundsErr := trends.ComputeBounds(day, prevByMetric[key], scan)
			if boundsErr != nil {
				return fmt.Errorf("%s: %w", key, boundsErr)
			}
			rows[i] = dp
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if errors.Is(err, trends.ErrInconsistentBounds) {
			// Stored data contradicts the monotonicity guarantee. Retrying
			// cannot fix it, someone has to look at the table.
			return types.ActivityComputeTrendBoundsOutput{}, sdktemporal.NewNonRetryableApplicationError(
				fmt.Sprintf("inconsistent stored bounds for %s", day.Format("2006-01-02")), "inconsistent_bounds", err)
		}
		return types.ActivityComputeTrendBoundsOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to compute bounds for %s", day.Format("2006-01-02")), "bounds_error", err)
	}

	if err := ac.TrendData.ReplaceForDate(ctx, day, rows); err != nil {
		return types.ActivityComputeTrendBoundsOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to write bounds for %s", day.Format("2006-01-02")), "bounds_write_error", err)
	}

	ac.Logger.Info("Computed trend bounds",
		zap.String("date", day.Format("2006-01-02")),
		zap.Int("metrics", len(rows)))

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	return types.ActivityComputeTrendBoundsOutput{
		Metrics:    len(rows),
		DurationMs: durationMs,
	}, nil
}

// ComputeTrendSum fills in the day's per-metric sums. It refuses to run
// before the day's bounds exist and are complete; the workflow orders the
// passes, so hitting the gate means a retry raced ahead of the bounds write.
func (ac *Context) ComputeTrendSum(ctx context.Context, in types.ActivityComputeTrendSumInput) (types.ActivityComputeTrendSumOutput, error) {
	start := time.Now()
	day := trends.Day(in.Date)

	stored, err := ac.TrendData.GetForDate(ctx, day)
	if err != nil {
		return types.ActivityComputeTrendSumOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to load bounds for %s", day.Format("2006-01-02")), "sum_read_error", err)
	}
	// The bounds pass writes the whole catalog in one batch, so a short row
	// count means it has not run for this day yet. Individual rows may carry
	// the untracked sentinel forever (nobody plays that metric), which is
	// fine; those keep their pending sum.
	if len(stored) < metrics.Count() {
		return types.ActivityComputeTrendSumOutput{}, sdktemporal.NewApplicationError(
			fmt.Sprintf("bounds not stored for %s yet (%d of %d metrics)", day.Format("2006-01-02"), len(stored), metrics.Count()), "bounds_pending")
	}

	sums, err := ac.Snapshots.SumForDate(ctx, day)
	if err != nil {
		return types.ActivityComputeTrendSumOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to sum snapshot values for %s", day.Format("2006-01-02")), "sum_scan_error", err)
	}

	if err := ac.TrendData.SetSums(ctx, day, sums); err != nil {
		if errors.Is(err, trenddata.ErrNotFound) {
			return types.ActivityComputeTrendSumOutput{}, sdktemporal.NewApplicationError(
				fmt.Sprintf("bounds disappeared for %s", day.Format("2006-01-02")), "bounds_pending")
		}
		return types.ActivityComputeTrendSumOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to write sums for %s", day.Format("2006-01-02")), "sum_write_error", err)
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	return types.ActivityComputeTrendSumOutput{
		Metrics:    len(sums),
		DurationMs: durationMs,
	}, nil
}

// FindMissingTrendDates returns the days since the given date that have no
// complete set of datapoint rows, in ascending order.
func (ac *Context) FindMissingTrendDates(ctx context.Context, in types.ActivityFindMissingTrendDatesInput) (types.ActivityFindMissingTrendDatesOutput, error) {
	start := time.Now()

	counts, err := ac.TrendData.CountsSince(ctx, trends.Day(in.Since))
	if err != nil {
		return types.ActivityFindMissingTrendDatesOutput{}, sdktemporal.NewApplicationErrorWithCause(
			"failed to count stored trend datapoints", "trend_count_error", err)
	}

	today := trends.Day(time.Now().UTC())
	missing := trends.MissingDates(trends.Day(in.Since), today, counts, metrics.Count())

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	return types.ActivityFindMissingTrendDatesOutput{
		Missing:    missing,
		DurationMs: durationMs,
	}, nil
}

// StartTrendDateWorkflow starts the trend workflow for a date on the trends
// queue. An already running workflow for the same date is a no-op, which
// keeps catch-up and chaining from double-processing a day.
func (ac *Context) StartTrendDateWorkflow(ctx context.Context, in types.ActivityStartTrendDateInput) (types.ActivityStartTrendDateOutput, error) {
	start := time.Now()
	day := trends.Day(in.Date)

	options := client.StartWorkflowOptions{
		ID:        ac.TemporalClient.GetTrendDateWorkflowId(day),
		TaskQueue: ac.TemporalClient.GetTrendsQueue(),
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 1.2,
			MaximumInterval:    5 * time.Second,
			MaximumAttempts:    0,
		},
	}

	_, err := ac.TemporalClient.TClient.ExecuteWorkflow(ctx, options, TrendDateWorkflowName, types.WorkflowTrendDateInput{
		Date:       day,
		ChainUntil: trends.Day(in.ChainUntil),
	})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			durationMs := float64(time.Since(start).Microseconds()) / 1000.0
			return types.ActivityStartTrendDateOutput{Started: false, DurationMs: durationMs}, nil
		}
		return types.ActivityStartTrendDateOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to start trend workflow for %s", day.Format("2006-01-02")), "workflow_start_error", err)
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	return types.ActivityStartTrendDateOutput{Started: true, DurationMs: durationMs}, nil
}
