package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
)

func TestNewStatMapsSentinelToNil(t *testing.T) {
	s := NewStat(-1, -1)
	assert.Nil(t, s.Rank)
	assert.Nil(t, s.Value)
	assert.Equal(t, UntrackedMark, s.WireRank())
	assert.Equal(t, UntrackedMark, s.WireValue())

	s = NewStat(-1, 5000)
	assert.Nil(t, s.Rank)
	assert.NotNil(t, s.Value)
	assert.Equal(t, int64(5000), *s.Value)

	s = TrackedStat(12, 34)
	assert.Equal(t, int64(12), s.RankOr(-1))
	assert.Equal(t, int64(34), s.ValueOr(-1))
}

func TestSnapshotStatAbsentMetric(t *testing.T) {
	var nilSnapshot *Snapshot
	assert.Nil(t, nilSnapshot.Stat(metrics.Attack).Value)

	s := &Snapshot{PlayerID: 1, Stats: map[metrics.Key]Stat{
		metrics.Attack: TrackedStat(100, 200),
	}}
	assert.Equal(t, int64(200), *s.Stat(metrics.Attack).Value)
	assert.Nil(t, s.Stat(metrics.Magic).Value)
}

func TestAchievementDateUnknown(t *testing.T) {
	a := Achievement{CreatedAt: UnknownDate}
	assert.True(t, a.DateUnknown())

	a.CreatedAt = time.Time{}
	assert.True(t, a.DateUnknown())

	a.CreatedAt = time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, a.DateUnknown())
}

func TestTrendDatapointBoundsComplete(t *testing.T) {
	dp := TrendDatapoint{MaxRank: 10, MinValue: 0, MaxValue: 100, Sum: SumPending}
	assert.True(t, dp.BoundsComplete())

	dp.MinValue = -1
	assert.False(t, dp.BoundsComplete())
}

func TestPlayerTypeDefinite(t *testing.T) {
	assert.False(t, PlayerTypeUnknown.Definite())
	assert.True(t, PlayerTypeRegular.Definite())
	assert.True(t, PlayerTypeIronman.Definite())
	assert.True(t, PlayerTypeHardcore.Definite())
	assert.True(t, PlayerTypeUltimate.Definite())
}
