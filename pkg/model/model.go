package model

import (
	"time"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
)

// UntrackedMark is the wire-level sentinel the hiscores use for "this metric
// was not ranked/tracked at capture time". It only ever appears in stored
// rows; in-memory models use nil instead.
const UntrackedMark int64 = -1

// Stat is one metric reading inside a snapshot. Rank and Value are nil when
// the metric was untracked at capture time, so arithmetic on the stored
// sentinel cannot happen by accident.
type Stat struct {
	Rank  *int64
	Value *int64
}

// NewStat builds a Stat from wire-level rank/value, mapping the untracked
// sentinel to nil.
func NewStat(rank, value int64) Stat {
	var s Stat
	if rank != UntrackedMark {
		s.Rank = &rank
	}
	if value != UntrackedMark {
		s.Value = &value
	}
	return s
}

// TrackedStat builds a Stat with both fields present.
func TrackedStat(rank, value int64) Stat {
	return Stat{Rank: &rank, Value: &value}
}

// RankOr returns the rank, or def when untracked.
func (s Stat) RankOr(def int64) int64 {
	if s.Rank == nil {
		return def
	}
	return *s.Rank
}

// ValueOr returns the value, or def when untracked.
func (s Stat) ValueOr(def int64) int64 {
	if s.Value == nil {
		return def
	}
	return *s.Value
}

// WireRank returns the stored representation of the rank.
func (s Stat) WireRank() int64 { return s.RankOr(UntrackedMark) }

// WireValue returns the stored representation of the value.
func (s Stat) WireValue() int64 { return s.ValueOr(UntrackedMark) }

// Snapshot is one timestamped capture of all tracked metrics for a player.
// Snapshots are immutable once persisted.
type Snapshot struct {
	PlayerID   int64
	CreatedAt  time.Time
	ImportedAt *time.Time
	Stats      map[metrics.Key]Stat
}

// Stat returns the reading for the given metric, untracked when absent.
func (s *Snapshot) Stat(key metrics.Key) Stat {
	if s == nil || s.Stats == nil {
		return Stat{}
	}
	return s.Stats[key]
}

// Baseline holds the best known rank/value per metric from before or at the
// player's first tracked snapshot. Values only ever go up.
type Baseline struct {
	PlayerID  int64
	Stats     map[metrics.Key]Stat
	UpdatedAt time.Time
}

// Stat returns the baseline reading for the given metric.
func (b *Baseline) Stat(key metrics.Key) Stat {
	if b == nil || b.Stats == nil {
		return Stat{}
	}
	return b.Stats[key]
}

// UnknownDate is the CreatedAt sentinel for achievements whose crossing
// predates the player's tracked history.
var UnknownDate = time.Unix(0, 0).UTC()

// Achievement records that a player crossed a named threshold.
// At most one achievement exists per (player, type).
type Achievement struct {
	PlayerID  int64
	Type      string
	Metric    metrics.Key
	Threshold int64
	CreatedAt time.Time
}

// DateUnknown reports whether the crossing time could not be determined
// from available history.
func (a Achievement) DateUnknown() bool {
	return a.CreatedAt.Equal(UnknownDate) || a.CreatedAt.IsZero()
}

// SumPending is the stored sum for a trend datapoint whose sum pass has not
// run yet.
const SumPending int64 = -1

// TrendDatapoint holds the global per-metric aggregate bounds for one day.
// Bounds never decrease from one day to the next.
type TrendDatapoint struct {
	Metric   metrics.Key
	Date     time.Time
	MaxRank  int64
	MinValue int64
	MaxValue int64
	Sum      int64
}

// BoundsComplete reports whether all three bounds have been computed.
func (t TrendDatapoint) BoundsComplete() bool {
	return t.MaxRank > -1 && t.MinValue > -1 && t.MaxValue > -1
}

// PlayerType classifies an account. Trend aggregation only includes players
// whose type has been resolved to something definite.
type PlayerType string

const (
	PlayerTypeUnknown  PlayerType = "unknown"
	PlayerTypeRegular  PlayerType = "regular"
	PlayerTypeIronman  PlayerType = "ironman"
	PlayerTypeHardcore PlayerType = "hardcore"
	PlayerTypeUltimate PlayerType = "ultimate"
)

// Definite reports whether the type has been resolved.
func (t PlayerType) Definite() bool {
	return t != PlayerTypeUnknown && t != ""
}

// PlayerStatus tracks whether a player is still being updated.
type PlayerStatus string

const (
	PlayerStatusActive   PlayerStatus = "active"
	PlayerStatusArchived PlayerStatus = "archived"
	PlayerStatusBanned   PlayerStatus = "banned"
)

// Player is a tracked account.
type Player struct {
	ID           int64
	Username     string
	DisplayName  string
	Type         PlayerType
	Status       PlayerStatus
	RegisteredAt time.Time
	UpdatedAt    time.Time
}
