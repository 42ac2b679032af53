package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/wise-old-man/wise-old-man-sub005/app/worker/types"
)

// PlayerUpdateWorkflow runs the per-snapshot pipeline: persist the capture,
// evaluate achievements against the previous capture, then recompute the
// player's period deltas. Each step is idempotent, so the workflow retries
// activities without bounds.
func (wc *Context) PlayerUpdateWorkflow(ctx workflow.Context, in types.WorkflowPlayerUpdateInput) error {
	retry := &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 1.5,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    0,
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         retry,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	recordInput := types.ActivityRecordSnapshotInput{
		PlayerID:   in.PlayerID,
		PlayerType: in.PlayerType,
		Snapshot:   in.Snapshot,
	}
	var recordOut types.ActivityRecordSnapshotOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.RecordSnapshot, recordInput).Get(ctx, &recordOut); err != nil {
		return err
	}

	// Achievements read the previous capture, so this runs after the insert
	// but compares against history strictly before the new capture time.
	evalInput := types.ActivityEvaluateAchievementsInput{
		PlayerID: in.PlayerID,
		Snapshot: in.Snapshot,
	}
	var evalOut types.ActivityEvaluateAchievementsOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.EvaluatePlayerAchievements, evalInput).Get(ctx, &evalOut); err != nil {
		return err
	}

	deltaInput := types.ActivityComputeDeltasInput{
		PlayerID: in.PlayerID,
		Periods:  wc.Config.DeltaPeriods,
	}
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.ComputePlayerDeltas, deltaInput).Get(ctx, nil); err != nil {
		return err
	}

	// An imported capture extends history backwards, which may bound a
	// previously unknown-date crossing. Kick off reconciliation for the player.
	if in.Snapshot != nil && in.Snapshot.ImportedAt != nil {
		return workflow.ExecuteActivity(ctx, wc.ActivityContext.StartReconcileWorkflow, types.ActivityStartReconcileInput{
			PlayerID: in.PlayerID,
		}).Get(ctx, nil)
	}
	return nil
}

// ReconcileWorkflow re-dates a player's unknown-date achievements. Started
// after imports that extend a player's history backwards.
func (wc *Context) ReconcileWorkflow(ctx workflow.Context, in types.WorkflowReconcileInput) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 1.5,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    10,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	return workflow.ExecuteActivity(ctx, wc.ActivityContext.ReconcilePlayerAchievements, types.ActivityReconcileAchievementsInput{
		PlayerID: in.PlayerID,
	}).Get(ctx, nil)
}
