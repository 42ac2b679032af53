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
	"github.com/wise-old-man/wise-old-man-sub005/pkg/achievements"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/delta"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
)

// ReconcileWorkflowName is resolved at start time so the starter activity
// does not import the workflow package.
const ReconcileWorkflowName = "ReconcileWorkflow"

// RecordSnapshot persists a freshly captured snapshot. The snapshot store is
// append-only, so retries of the same capture are harmless duplicates that
// boundary queries collapse by created_at.
func (ac *Context) RecordSnapshot(ctx context.Context, in types.ActivityRecordSnapshotInput) (types.ActivityRecordSnapshotOutput, error) {
	start := time.Now()

	if in.Snapshot == nil {
		return types.ActivityRecordSnapshotOutput{}, sdktemporal.NewNonRetryableApplicationError(
			"snapshot payload is required", "invalid_input", nil)
	}

	playerType := model.PlayerType(in.PlayerType)
	if err := ac.Snapshots.InsertSnapshots(ctx, playerType, []*model.Snapshot{in.Snapshot}); err != nil {
		return types.ActivityRecordSnapshotOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to insert snapshot for player %d", in.PlayerID), "snapshot_insert_error", err)
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	return types.ActivityRecordSnapshotOutput{
		CreatedAt:  in.Snapshot.CreatedAt,
		DurationMs: durationMs,
	}, nil
}

// EvaluatePlayerAchievements detects crossings between the previous snapshot
// and the new one, writes them, and raises the player's baseline. On the
// player's first snapshot every already-satisfied definition is written with
// an unknown date. New achievements are published to the Redis stream.
func (ac *Context) EvaluatePlayerAchievements(ctx context.Context, in types.ActivityEvaluateAchievementsInput) (types.ActivityEvaluateAchievementsOutput, error) {
	start := time.Now()

	if in.Snapshot == nil {
		return types.ActivityEvaluateAchievementsOutput{}, sdktemporal.NewNonRetryableApplicationError(
			"snapshot payload is required", "invalid_input", nil)
	}

	current := in.Snapshot
	previous, err := ac.previousSnapshot(ctx, in.PlayerID, current.CreatedAt)
	if err != nil {
		return types.ActivityEvaluateAchievementsOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to load previous snapshot for player %d", in.PlayerID), "snapshot_read_error", err)
	}

	var toCreate []model.Achievement
	firstSnapshot := previous == nil
	if firstSnapshot {
		toCreate = achievements.MissingPrior(current)
		if err := ac.raiseBaseline(ctx, current); err != nil {
			return types.ActivityEvaluateAchievementsOutput{}, sdktemporal.NewApplicationErrorWithCause(
				fmt.Sprintf("failed to upsert baseline for player %d", in.PlayerID), "baseline_upsert_error", err)
		}
	} else {
		toCreate = achievements.NewlyCompleted(previous, current, current.CreatedAt)
	}

	if len(toCreate) > 0 {
		if err := ac.Players.CreateAchievements(ctx, toCreate); err != nil {
			return types.ActivityEvaluateAchievementsOutput{}, sdktemporal.NewApplicationErrorWithCause(
				fmt.Sprintf("failed to create achievements for player %d", in.PlayerID), "achievement_insert_error", err)
		}
		if ac.RedisClient != nil {
			ac.RedisClient.PublishAchievements(ctx, toCreate)
		}
		ac.Logger.Info("Created achievements",
			zap.Int64("playerId", in.PlayerID),
			zap.Int("count", len(toCreate)),
			zap.Bool("firstSnapshot", firstSnapshot))
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	return types.ActivityEvaluateAchievementsOutput{
		Created:       len(toCreate),
		FirstSnapshot: firstSnapshot,
		DurationMs:    durationMs,
	}, nil
}

// ReconcilePlayerAchievements re-dates unknown-date achievements against the
// player's full history.
func (ac *Context) ReconcilePlayerAchievements(ctx context.Context, in types.ActivityReconcileAchievementsInput) (types.ActivityReconcileAchievementsOutput, error) {
	start := time.Now()

	ev := &achievements.Evaluator{
		Snapshots:    ac.Snapshots,
		Achievements: ac.Players,
		Logger:       ac.Logger,
	}
	reconciled, err := ev.Reconcile(ctx, in.PlayerID)
	if err != nil {
		return types.ActivityReconcileAchievementsOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to reconcile achievements for player %d", in.PlayerID), "reconcile_error", err)
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	return types.ActivityReconcileAchievementsOutput{
		Reconciled: reconciled,
		DurationMs: durationMs,
	}, nil
}

// ComputePlayerDeltas computes the player's gains for each requested period.
// A period with fewer than two snapshots yields no entry rather than a
// zero-filled delta.
func (ac *Context) ComputePlayerDeltas(ctx context.Context, in types.ActivityComputeDeltasInput) (types.ActivityComputeDeltasOutput, error) {
	start := time.Now()

	calc := &delta.Calculator{
		Snapshots: ac.Snapshots,
		Baselines: ac.Players,
		Logger:    ac.Logger,
	}

	now := time.Now().UTC()
	results := make(map[delta.Period]*delta.Result, len(in.Periods))
	for _, period := range in.Periods {
		res, err := calc.ComputeForPeriod(ctx, in.PlayerID, period, now)
		if err != nil {
			if errors.Is(err, delta.ErrInsufficientData) {
				continue
			}
			if errors.Is(err, delta.ErrInvalidPeriod) {
				return types.ActivityComputeDeltasOutput{}, sdktemporal.NewNonRetryableApplicationError(
					fmt.Sprintf("invalid period %q", period), "invalid_period", err)
			}
			return types.ActivityComputeDeltasOutput{}, sdktemporal.NewApplicationErrorWithCause(
				fmt.Sprintf("failed to compute %s delta for player %d", period, in.PlayerID), "delta_error", err)
		}
		results[period] = res
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	return types.ActivityComputeDeltasOutput{
		Results:    results,
		DurationMs: durationMs,
	}, nil
}

// StartReconcileWorkflow starts the reconciliation workflow for a player on
// the players queue. A reconciliation already in flight for the same player
// is a no-op.
func (ac *Context) StartReconcileWorkflow(ctx context.Context, in types.ActivityStartReconcileInput) (types.ActivityStartReconcileOutput, error) {
	start := time.Now()

	options := client.StartWorkflowOptions{
		ID:        ac.TemporalClient.GetReconcileWorkflowId(in.PlayerID),
		TaskQueue: ac.TemporalClient.GetPlayersQueue(),
	}

	_, err := ac.TemporalClient.TClient.ExecuteWorkflow(ctx, options, ReconcileWorkflowName, types.WorkflowReconcileInput{
		PlayerID: in.PlayerID,
	})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			durationMs := float64(time.Since(start).Microseconds()) / 1000.0
			return types.ActivityStartReconcileOutput{Started: false, DurationMs: durationMs}, nil
		}
		return types.ActivityStartReconcileOutput{}, sdktemporal.NewApplicationErrorWithCause(
			fmt.Sprintf("failed to start reconciliation for player %d", in.PlayerID), "workflow_start_error", err)
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	return types.ActivityStartReconcileOutput{Started: true, DurationMs: durationMs}, nil
}

// previousSnapshot returns the latest snapshot strictly before cutoff, or nil
// when the player has no earlier history.
func (ac *Context) previousSnapshot(ctx context.Context, playerID int64, cutoff time.Time) (*model.Snapshot, error) {
	prev, err := ac.Snapshots.FindLastInRange(ctx, playerID, time.Time{}, cutoff.Add(-time.Nanosecond))
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// raiseBaseline lifts the player's baseline to the tracked stats of the given
// snapshot. The store only ever raises values, so a stale retry cannot
// regress the baseline.
func (ac *Context) raiseBaseline(ctx context.Context, snapshot *model.Snapshot) error {
	baseline := &model.Baseline{
		PlayerID:  snapshot.PlayerID,
		Stats:     snapshot.Stats,
		UpdatedAt: time.Now().UTC(),
	}
	return ac.Players.UpsertBaseline(ctx, baseline)
}
