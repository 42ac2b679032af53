package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/wise-old-man/wise-old-man-sub005/app/worker/activity"
	"github.com/wise-old-man/wise-old-man-sub005/app/worker/types"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/delta"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/temporal"
)

type mockPlayerActivities struct {
	mu    sync.Mutex
	calls []string

	reconciled int
	periods    []delta.Period
}

func (m *mockPlayerActivities) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockPlayerActivities) RecordSnapshot(_ context.Context, in types.ActivityRecordSnapshotInput) (types.ActivityRecordSnapshotOutput, error) {
	m.record("RecordSnapshot")
	return types.ActivityRecordSnapshotOutput{CreatedAt: in.Snapshot.CreatedAt, DurationMs: 1}, nil
}

func (m *mockPlayerActivities) EvaluatePlayerAchievements(_ context.Context, _ types.ActivityEvaluateAchievementsInput) (types.ActivityEvaluateAchievementsOutput, error) {
	m.record("EvaluatePlayerAchievements")
	return types.ActivityEvaluateAchievementsOutput{Created: 2, DurationMs: 1}, nil
}

func (m *mockPlayerActivities) ComputePlayerDeltas(_ context.Context, in types.ActivityComputeDeltasInput) (types.ActivityComputeDeltasOutput, error) {
	m.record("ComputePlayerDeltas")
	m.mu.Lock()
	m.periods = in.Periods
	m.mu.Unlock()
	return types.ActivityComputeDeltasOutput{Results: map[delta.Period]*delta.Result{}, DurationMs: 1}, nil
}

func (m *mockPlayerActivities) ReconcilePlayerAchievements(_ context.Context, _ types.ActivityReconcileAchievementsInput) (types.ActivityReconcileAchievementsOutput, error) {
	m.record("ReconcilePlayerAchievements")
	return types.ActivityReconcileAchievementsOutput{Reconciled: m.reconciled, DurationMs: 1}, nil
}

func (m *mockPlayerActivities) StartReconcileWorkflow(_ context.Context, _ types.ActivityStartReconcileInput) (types.ActivityStartReconcileOutput, error) {
	m.record("StartReconcileWorkflow")
	return types.ActivityStartReconcileOutput{Started: true, DurationMs: 1}, nil
}

func playerTestContext() Context {
	return Context{
		TemporalClient: &temporal.Client{
			PlayersQueue:        "players",
			ReconcileWorkflowId: "player:reconcile:%d",
		},
		ActivityContext: &activity.Context{},
		Config:          DefaultConfig(),
	}
}

func TestPlayerUpdateWorkflow_RunsPipelineInOrder(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	mock := &mockPlayerActivities{}
	wfCtx := playerTestContext()

	env.RegisterWorkflow(wfCtx.PlayerUpdateWorkflow)
	env.RegisterActivity(mock.RecordSnapshot)
	env.RegisterActivity(mock.EvaluatePlayerAchievements)
	env.RegisterActivity(mock.ComputePlayerDeltas)

	snapshot := &model.Snapshot{
		PlayerID:  7,
		CreatedAt: time.Date(2021, 8, 1, 12, 0, 0, 0, time.UTC),
		Stats: map[metrics.Key]model.Stat{
			metrics.Attack: model.TrackedStat(1000, 13_100_000),
		},
	}
	env.ExecuteWorkflow(wfCtx.PlayerUpdateWorkflow, types.WorkflowPlayerUpdateInput{
		PlayerID:   7,
		PlayerType: string(model.PlayerTypeRegular),
		Snapshot:   snapshot,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	assert.Equal(t, []string{"RecordSnapshot", "EvaluatePlayerAchievements", "ComputePlayerDeltas"}, mock.calls)
	assert.Equal(t, wfCtx.Config.DeltaPeriods, mock.periods)
}

func TestPlayerUpdateWorkflow_ImportedSnapshotStartsReconcile(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	mock := &mockPlayerActivities{}
	wfCtx := playerTestContext()

	env.RegisterWorkflow(wfCtx.PlayerUpdateWorkflow)
	env.RegisterActivity(mock.RecordSnapshot)
	env.RegisterActivity(mock.EvaluatePlayerAchievements)
	env.RegisterActivity(mock.ComputePlayerDeltas)
	env.RegisterActivity(mock.StartReconcileWorkflow)

	importedAt := time.Date(2021, 8, 2, 9, 0, 0, 0, time.UTC)
	snapshot := &model.Snapshot{
		PlayerID:   7,
		CreatedAt:  time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC),
		ImportedAt: &importedAt,
		Stats: map[metrics.Key]model.Stat{
			metrics.Attack: model.TrackedStat(1000, 13_100_000),
		},
	}
	env.ExecuteWorkflow(wfCtx.PlayerUpdateWorkflow, types.WorkflowPlayerUpdateInput{
		PlayerID:   7,
		PlayerType: string(model.PlayerTypeRegular),
		Snapshot:   snapshot,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	assert.Equal(t, []string{"RecordSnapshot", "EvaluatePlayerAchievements", "ComputePlayerDeltas", "StartReconcileWorkflow"}, mock.calls)
}

func TestReconcileWorkflow(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	mock := &mockPlayerActivities{reconciled: 3}
	wfCtx := playerTestContext()

	env.RegisterWorkflow(wfCtx.ReconcileWorkflow)
	env.RegisterActivity(mock.ReconcilePlayerAchievements)

	env.ExecuteWorkflow(wfCtx.ReconcileWorkflow, types.WorkflowReconcileInput{PlayerID: 7})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, []string{"ReconcilePlayerAchievements"}, mock.calls)
}
