package workflow

import (
	"github.com/wise-old-man/wise-old-man-sub005/app/worker/activity"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/delta"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/temporal"
)

// Registered workflow names.
const (
	PlayerUpdateWorkflowName = "PlayerUpdateWorkflow"
	ReconcileWorkflowName    = activity.ReconcileWorkflowName
	TrendDateWorkflowName    = activity.TrendDateWorkflowName
	TrendCatchupWorkflowName = "TrendCatchupWorkflow"
)

// Config holds the workflow configuration.
type Config struct {
	// DeltaPeriods are the periods recomputed after every snapshot.
	DeltaPeriods []delta.Period
}

// DefaultConfig recomputes every named period.
func DefaultConfig() Config {
	return Config{
		DeltaPeriods: []delta.Period{delta.PeriodDay, delta.PeriodWeek, delta.PeriodMonth, delta.PeriodYear},
	}
}

// Context holds the workflow context.
type Context struct {
	TemporalClient  *temporal.Client
	ActivityContext *activity.Context
	Config          Config
}
