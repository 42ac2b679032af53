package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/wise-old-man/wise-old-man-sub005/app/worker/types"
)

// defaultCatchupDays is the scan window when a catch-up run carries no
// explicit bound.
const defaultCatchupDays = 30

// TrendDateWorkflow aggregates one day: bounds first, sums second, then
// hands off to the next day. The bounds pass for D reads D-1's stored rows,
// so days run strictly in order; instead of polling on a delay, each day's
// workflow starts the next day's workflow once its own writes landed.
func (wc *Context) TrendDateWorkflow(ctx workflow.Context, in types.WorkflowTrendDateInput) error {
	retry := &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 1.5,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    0,
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         retry,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var boundsOut types.ActivityComputeTrendBoundsOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.ComputeTrendBounds, types.ActivityComputeTrendBoundsInput{
		Date: in.Date,
	}).Get(ctx, &boundsOut); err != nil {
		return err
	}

	var sumOut types.ActivityComputeTrendSumOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.ComputeTrendSum, types.ActivityComputeTrendSumInput{
		Date: in.Date,
	}).Get(ctx, &sumOut); err != nil {
		return err
	}

	next := in.Date.AddDate(0, 0, 1)
	if next.After(in.ChainUntil) {
		return nil
	}
	return workflow.ExecuteActivity(ctx, wc.ActivityContext.StartTrendDateWorkflow, types.ActivityStartTrendDateInput{
		Date:       next,
		ChainUntil: in.ChainUntil,
	}).Get(ctx, nil)
}

// TrendCatchupWorkflow finds days with missing datapoint rows and starts the
// chain at the earliest one. Later gaps are covered by the chain itself since
// every day up to the last missing date is reprocessed in order, which is
// idempotent for already complete days.
func (wc *Context) TrendCatchupWorkflow(ctx workflow.Context, in types.WorkflowTrendCatchupInput) error {
	since := in.Since
	if since.IsZero() {
		days := in.HorizonDays
		if days <= 0 {
			days = defaultCatchupDays
		}
		since = workflow.Now(ctx).UTC().AddDate(0, 0, -days)
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 1.5,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    10,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var missingOut types.ActivityFindMissingTrendDatesOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.FindMissingTrendDates, types.ActivityFindMissingTrendDatesInput{
		Since: since,
	}).Get(ctx, &missingOut); err != nil {
		return err
	}
	if len(missingOut.Missing) == 0 {
		return nil
	}

	return workflow.ExecuteActivity(ctx, wc.ActivityContext.StartTrendDateWorkflow, types.ActivityStartTrendDateInput{
		Date:       missingOut.Missing[0],
		ChainUntil: missingOut.Missing[len(missingOut.Missing)-1],
	}).Get(ctx, nil)
}
