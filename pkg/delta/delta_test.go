package delta

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
)

type fakeSnapshots struct {
	// first/last per player; nil entries mean no capture in range
	first map[int64]*model.Snapshot
	last  map[int64]*model.Snapshot
}

func (f *fakeSnapshots) FindFirstInRange(_ context.Context, playerID int64, _, _ time.Time) (*model.Snapshot, error) {
	return f.first[playerID], nil
}

func (f *fakeSnapshots) FindLastInRange(_ context.Context, playerID int64, _, _ time.Time) (*model.Snapshot, error) {
	return f.last[playerID], nil
}

type fakeBaselines struct {
	baselines map[int64]*model.Baseline
}

func (f *fakeBaselines) GetBaseline(_ context.Context, playerID int64) (*model.Baseline, error) {
	if b, ok := f.baselines[playerID]; ok {
		return b, nil
	}
	return &model.Baseline{PlayerID: playerID}, nil
}

func snapshotAt(playerID int64, at time.Time, stats map[metrics.Key]model.Stat) *model.Snapshot {
	return &model.Snapshot{PlayerID: playerID, CreatedAt: at, Stats: stats}
}

func calculatorFor(first, last *model.Snapshot, baseline *model.Baseline) *Calculator {
	id := first.PlayerID
	baselines := map[int64]*model.Baseline{}
	if baseline != nil {
		baselines[id] = baseline
	}
	return &Calculator{
		Snapshots: &fakeSnapshots{
			first: map[int64]*model.Snapshot{id: first},
			last:  map[int64]*model.Snapshot{id: last},
		},
		Baselines: &fakeBaselines{baselines: baselines},
		Logger:    zap.NewNop(),
	}
}

var (
	t0 = time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(48 * time.Hour)
)

func TestComputeTrackedGain(t *testing.T) {
	first := snapshotAt(1, t0, map[metrics.Key]model.Stat{
		metrics.Attack: model.TrackedStat(5000, 1_000_000),
	})
	last := snapshotAt(1, t1, map[metrics.Key]model.Stat{
		metrics.Attack: model.TrackedStat(4600, 1_250_000),
	})

	calc := calculatorFor(first, last, nil)
	res, err := calc.Compute(context.Background(), 1, Range{Start: t0, End: t1}, nil)
	require.NoError(t, err)

	d := res.Metrics[metrics.Attack]
	assert.Equal(t, Progress{Start: 1_000_000, End: 1_250_000, Gained: 250_000}, d.Value)
	assert.Equal(t, Progress{Start: 5000, End: 4600, Gained: -400}, d.Rank)
	assert.Equal(t, metrics.MeasureExperience, d.Measure)
	assert.Equal(t, t0, res.StartsAt)
	assert.Equal(t, t1, res.EndsAt)
}

func TestComputeBaselineSubstitutesUntrackedStartValue(t *testing.T) {
	// The boss was unranked at the window start but the player had kills
	// before tracking began; those kills must not count as gained.
	first := snapshotAt(1, t0, map[metrics.Key]model.Stat{
		metrics.Zulrah: model.NewStat(-1, -1),
	})
	last := snapshotAt(1, t1, map[metrics.Key]model.Stat{
		metrics.Zulrah: model.TrackedStat(80_000, 120),
	})
	baseline := &model.Baseline{PlayerID: 1, Stats: map[metrics.Key]model.Stat{
		metrics.Zulrah: model.TrackedStat(90_000, 100),
	}}

	calc := calculatorFor(first, last, baseline)
	res, err := calc.Compute(context.Background(), 1, Range{Start: t0, End: t1}, nil)
	require.NoError(t, err)

	d := res.Metrics[metrics.Zulrah]
	// Start is reported as captured, gained uses the baseline.
	assert.Equal(t, Progress{Start: -1, End: 120, Gained: 20}, d.Value)
	// Non-skill rank falls back to the baseline rank too.
	assert.Equal(t, Progress{Start: -1, End: 80_000, Gained: -10_000}, d.Rank)
}

func TestComputeEndValueNeverSubstituted(t *testing.T) {
	first := snapshotAt(1, t0, map[metrics.Key]model.Stat{
		metrics.Zulrah: model.TrackedStat(90_000, 100),
	})
	// The player dropped off the hiscores at the window end.
	last := snapshotAt(1, t1, map[metrics.Key]model.Stat{
		metrics.Zulrah: model.NewStat(-1, -1),
	})
	baseline := &model.Baseline{PlayerID: 1, Stats: map[metrics.Key]model.Stat{
		metrics.Zulrah: model.TrackedStat(90_000, 100),
	}}

	calc := calculatorFor(first, last, baseline)
	res, err := calc.Compute(context.Background(), 1, Range{Start: t0, End: t1}, nil)
	require.NoError(t, err)

	d := res.Metrics[metrics.Zulrah]
	assert.Equal(t, Progress{Start: 100, End: -1, Gained: 0}, d.Value)
	assert.Equal(t, Progress{Start: 90_000, End: -1, Gained: 0}, d.Rank)
}

func TestComputeSkillUntrackedStartRankGainsZero(t *testing.T) {
	first := snapshotAt(1, t0, map[metrics.Key]model.Stat{
		metrics.Hunter: model.NewStat(-1, 40_000),
	})
	last := snapshotAt(1, t1, map[metrics.Key]model.Stat{
		metrics.Hunter: model.TrackedStat(300_000, 55_000),
	})
	// Even with a baseline rank available, rank movement is meaningless
	// before the skill was ranked.
	baseline := &model.Baseline{PlayerID: 1, Stats: map[metrics.Key]model.Stat{
		metrics.Hunter: model.TrackedStat(500_000, 40_000),
	}}

	calc := calculatorFor(first, last, baseline)
	res, err := calc.Compute(context.Background(), 1, Range{Start: t0, End: t1}, nil)
	require.NoError(t, err)

	d := res.Metrics[metrics.Hunter]
	assert.Equal(t, int64(0), d.Rank.Gained)
	assert.Equal(t, int64(15_000), d.Value.Gained)
}

func TestComputeInsufficientData(t *testing.T) {
	only := snapshotAt(1, t0, map[metrics.Key]model.Stat{
		metrics.Attack: model.TrackedStat(1, 1),
	})

	// A single capture serves as both boundaries.
	calc := calculatorFor(only, only, nil)
	_, err := calc.Compute(context.Background(), 1, Range{Start: t0, End: t1}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)

	// No captures at all.
	calc.Snapshots = &fakeSnapshots{first: map[int64]*model.Snapshot{}, last: map[int64]*model.Snapshot{}}
	_, err = calc.Compute(context.Background(), 1, Range{Start: t0, End: t1}, nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestPeriods(t *testing.T) {
	p, err := ParsePeriod("week")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)

	_, err = ParsePeriod("fortnight")
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	d, err := PeriodMonth.Duration()
	require.NoError(t, err)
	assert.Equal(t, 31*24*time.Hour, d)

	r, err := RangeForPeriod(PeriodDay, t1)
	require.NoError(t, err)
	assert.Equal(t, t1.Add(-24*time.Hour), r.Start)
	assert.Equal(t, t1, r.End)
}

func TestComputeLeaderboardOrdering(t *testing.T) {
	mk := func(id int64, startExp, endExp int64) (first, last *model.Snapshot) {
		first = snapshotAt(id, t0, map[metrics.Key]model.Stat{
			metrics.Slayer: model.TrackedStat(1000, startExp),
		})
		last = snapshotAt(id, t1, map[metrics.Key]model.Stat{
			metrics.Slayer: model.TrackedStat(900, endExp),
		})
		return first, last
	}

	firsts := map[int64]*model.Snapshot{}
	lasts := map[int64]*model.Snapshot{}
	firsts[1], lasts[1] = mk(1, 100, 400) // gained 300
	firsts[2], lasts[2] = mk(2, 100, 600) // gained 500
	firsts[3], lasts[3] = mk(3, 100, 400) // gained 300, ties with player 1
	// Player 4 has a single capture and must be skipped, not listed at zero.
	firsts[4] = snapshotAt(4, t0, map[metrics.Key]model.Stat{metrics.Slayer: model.TrackedStat(1, 1)})
	lasts[4] = firsts[4]

	calc := &Calculator{
		Snapshots: &fakeSnapshots{first: firsts, last: lasts},
		Baselines: &fakeBaselines{baselines: map[int64]*model.Baseline{}},
		Logger:    zap.NewNop(),
	}

	entries, err := calc.ComputeLeaderboard(context.Background(), []int64{1, 2, 3, 4}, metrics.Slayer, Range{Start: t0, End: t1})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, int64(2), entries[0].PlayerID)
	assert.Equal(t, int64(500), entries[0].Gained)
	// Tie broken by ascending player id.
	assert.Equal(t, int64(1), entries[1].PlayerID)
	assert.Equal(t, int64(3), entries[2].PlayerID)
}

func TestComputeLeaderboardInvalidMetric(t *testing.T) {
	calc := &Calculator{
		Snapshots: &fakeSnapshots{},
		Baselines: &fakeBaselines{},
		Logger:    zap.NewNop(),
	}
	_, err := calc.ComputeLeaderboard(context.Background(), []int64{1}, "nope", Range{Start: t0, End: t1})
	assert.ErrorIs(t, err, metrics.ErrInvalidMetric)
}
