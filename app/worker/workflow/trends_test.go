package workflow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/wise-old-man/wise-old-man-sub005/app/worker/activity"
	"github.com/wise-old-man/wise-old-man-sub005/app/worker/types"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/temporal"
)

// mockTrendActivities stands in for the activity context. Method names must
// match the real ones so the test environment resolves them.
type mockTrendActivities struct {
	boundsCalls  atomic.Int32
	sumCalls     atomic.Int32
	startCalls   atomic.Int32
	missingCalls atomic.Int32

	missing      []time.Time
	startedDates []time.Time
	chainUntils  []time.Time
	sinces       []time.Time
}

func (m *mockTrendActivities) ComputeTrendBounds(_ context.Context, in types.ActivityComputeTrendBoundsInput) (types.ActivityComputeTrendBoundsOutput, error) {
	m.boundsCalls.Add(1)
	return types.ActivityComputeTrendBoundsOutput{Metrics: 83, DurationMs: 1}, nil
}

func (m *mockTrendActivities) ComputeTrendSum(_ context.Context, in types.ActivityComputeTrendSumInput) (types.ActivityComputeTrendSumOutput, error) {
	m.sumCalls.Add(1)
	return types.ActivityComputeTrendSumOutput{Metrics: 83, DurationMs: 1}, nil
}

func (m *mockTrendActivities) StartTrendDateWorkflow(_ context.Context, in types.ActivityStartTrendDateInput) (types.ActivityStartTrendDateOutput, error) {
	m.startCalls.Add(1)
	m.startedDates = append(m.startedDates, in.Date)
	m.chainUntils = append(m.chainUntils, in.ChainUntil)
	return types.ActivityStartTrendDateOutput{Started: true, DurationMs: 1}, nil
}

func (m *mockTrendActivities) FindMissingTrendDates(_ context.Context, in types.ActivityFindMissingTrendDatesInput) (types.ActivityFindMissingTrendDatesOutput, error) {
	m.missingCalls.Add(1)
	m.sinces = append(m.sinces, in.Since)
	return types.ActivityFindMissingTrendDatesOutput{Missing: m.missing, DurationMs: 1}, nil
}

func trendTestContext() Context {
	return Context{
		TemporalClient: &temporal.Client{
			TrendsQueue:         "trends",
			TrendDateWorkflowId: "trends:date:%s",
		},
		ActivityContext: &activity.Context{},
		Config:          DefaultConfig(),
	}
}

var (
	trendDay  = time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)
	trendNext = trendDay.AddDate(0, 0, 1)
)

func TestTrendDateWorkflow_ChainsToNextDay(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	mock := &mockTrendActivities{}
	wfCtx := trendTestContext()

	env.RegisterWorkflow(wfCtx.TrendDateWorkflow)
	env.RegisterActivity(mock.ComputeTrendBounds)
	env.RegisterActivity(mock.ComputeTrendSum)
	env.RegisterActivity(mock.StartTrendDateWorkflow)

	env.ExecuteWorkflow(wfCtx.TrendDateWorkflow, types.WorkflowTrendDateInput{
		Date:       trendDay,
		ChainUntil: trendNext,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	assert.Equal(t, int32(1), mock.boundsCalls.Load())
	assert.Equal(t, int32(1), mock.sumCalls.Load())
	require.Equal(t, int32(1), mock.startCalls.Load())
	assert.Equal(t, trendNext, mock.startedDates[0])
	assert.Equal(t, trendNext, mock.chainUntils[0])
}

func TestTrendDateWorkflow_StopsAtChainEnd(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	mock := &mockTrendActivities{}
	wfCtx := trendTestContext()

	env.RegisterWorkflow(wfCtx.TrendDateWorkflow)
	env.RegisterActivity(mock.ComputeTrendBounds)
	env.RegisterActivity(mock.ComputeTrendSum)
	env.RegisterActivity(mock.StartTrendDateWorkflow)

	// The last day of the chain does not hand off.
	env.ExecuteWorkflow(wfCtx.TrendDateWorkflow, types.WorkflowTrendDateInput{
		Date:       trendDay,
		ChainUntil: trendDay,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	assert.Equal(t, int32(1), mock.boundsCalls.Load())
	assert.Equal(t, int32(1), mock.sumCalls.Load())
	assert.Equal(t, int32(0), mock.startCalls.Load())
}

func TestTrendCatchupWorkflow_StartsEarliestMissingDate(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	gapStart := trendDay
	gapEnd := trendDay.AddDate(0, 0, 5)
	mock := &mockTrendActivities{
		// A non-contiguous gap: the chain still walks every day in between.
		missing: []time.Time{gapStart, trendDay.AddDate(0, 0, 2), gapEnd},
	}
	wfCtx := trendTestContext()

	env.RegisterWorkflow(wfCtx.TrendCatchupWorkflow)
	env.RegisterActivity(mock.FindMissingTrendDates)
	env.RegisterActivity(mock.StartTrendDateWorkflow)

	env.ExecuteWorkflow(wfCtx.TrendCatchupWorkflow, types.WorkflowTrendCatchupInput{
		Since: trendDay.AddDate(0, 0, -10),
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	assert.Equal(t, int32(1), mock.missingCalls.Load())
	require.Equal(t, int32(1), mock.startCalls.Load())
	assert.Equal(t, gapStart, mock.startedDates[0])
	assert.Equal(t, gapEnd, mock.chainUntils[0])
}

func TestTrendCatchupWorkflow_DerivesWindowFromHorizon(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	startedAt := time.Date(2021, 7, 10, 12, 0, 0, 0, time.UTC)
	env.SetStartTime(startedAt)

	mock := &mockTrendActivities{}
	wfCtx := trendTestContext()

	env.RegisterWorkflow(wfCtx.TrendCatchupWorkflow)
	env.RegisterActivity(mock.FindMissingTrendDates)
	env.RegisterActivity(mock.StartTrendDateWorkflow)

	// A schedule-started run carries no explicit window, only the horizon.
	env.ExecuteWorkflow(wfCtx.TrendCatchupWorkflow, types.WorkflowTrendCatchupInput{
		HorizonDays: 7,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	require.Equal(t, int32(1), mock.missingCalls.Load())
	assert.Equal(t, startedAt.AddDate(0, 0, -7), mock.sinces[0])
}

func TestTrendCatchupWorkflow_NothingMissing(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	mock := &mockTrendActivities{}
	wfCtx := trendTestContext()

	env.RegisterWorkflow(wfCtx.TrendCatchupWorkflow)
	env.RegisterActivity(mock.FindMissingTrendDates)
	env.RegisterActivity(mock.StartTrendDateWorkflow)

	env.ExecuteWorkflow(wfCtx.TrendCatchupWorkflow, types.WorkflowTrendCatchupInput{
		Since: trendDay,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	assert.Equal(t, int32(1), mock.missingCalls.Load())
	assert.Equal(t, int32(0), mock.startCalls.Load())
}
