package types

import (
	"time"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/delta"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
)

// WorkflowPlayerUpdateInput carries a freshly captured snapshot through the
// per-player update pipeline.
type WorkflowPlayerUpdateInput struct {
	PlayerID   int64           `json:"playerId"`
	PlayerType string          `json:"playerType"`
	Snapshot   *model.Snapshot `json:"snapshot"`
}

// WorkflowReconcileInput identifies the player whose unknown-date
// achievements should be re-dated.
type WorkflowReconcileInput struct {
	PlayerID int64 `json:"playerId"`
}

// ActivityRecordSnapshotInput contains the snapshot to persist.
type ActivityRecordSnapshotInput struct {
	PlayerID   int64           `json:"playerId"`
	PlayerType string          `json:"playerType"`
	Snapshot   *model.Snapshot `json:"snapshot"`
}

// ActivityRecordSnapshotOutput reports the persisted capture time.
type ActivityRecordSnapshotOutput struct {
	CreatedAt  time.Time `json:"createdAt"`
	DurationMs float64   `json:"durationMs"` // Execution time in milliseconds
}

// ActivityEvaluateAchievementsInput contains the parameters for achievement
// evaluation after a new snapshot lands.
type ActivityEvaluateAchievementsInput struct {
	PlayerID int64           `json:"playerId"`
	Snapshot *model.Snapshot `json:"snapshot"`
}

// ActivityEvaluateAchievementsOutput reports how many achievements were
// created and whether this was the player's first tracked snapshot.
type ActivityEvaluateAchievementsOutput struct {
	Created       int     `json:"created"`
	FirstSnapshot bool    `json:"firstSnapshot"`
	DurationMs    float64 `json:"durationMs"` // Execution time in milliseconds
}

// ActivityReconcileAchievementsInput identifies the player to reconcile.
type ActivityReconcileAchievementsInput struct {
	PlayerID int64 `json:"playerId"`
}

// ActivityReconcileAchievementsOutput reports how many unknown-date rows
// received a concrete date.
type ActivityReconcileAchievementsOutput struct {
	Reconciled int     `json:"reconciled"`
	DurationMs float64 `json:"durationMs"` // Execution time in milliseconds
}

// ActivityStartReconcileInput identifies the player whose reconciliation
// workflow should be started.
type ActivityStartReconcileInput struct {
	PlayerID int64 `json:"playerId"`
}

// ActivityStartReconcileOutput reports whether a new workflow execution was
// started; false means one was already running for this player.
type ActivityStartReconcileOutput struct {
	Started    bool    `json:"started"`
	DurationMs float64 `json:"durationMs"` // Execution time in milliseconds
}

// ActivityComputeDeltasInput contains the parameters for per-period delta
// computation.
type ActivityComputeDeltasInput struct {
	PlayerID int64          `json:"playerId"`
	Periods  []delta.Period `json:"periods"`
}

// ActivityComputeDeltasOutput carries one delta result per requested period.
// Periods with fewer than two snapshots in range are omitted.
type ActivityComputeDeltasOutput struct {
	Results    map[delta.Period]*delta.Result `json:"results"`
	DurationMs float64                        `json:"durationMs"` // Execution time in milliseconds
}
