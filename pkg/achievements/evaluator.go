package achievements

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
)

// HistorySource is the slice of the snapshot store the evaluator needs.
type HistorySource interface {
	FindAllInRange(ctx context.Context, playerID int64, start, end time.Time) ([]*model.Snapshot, error)
}

// Store persists achievements. Replace must delete the old row and insert the
// new one inside a single transaction, so a partial replacement is never
// observable.
type Store interface {
	FindByPlayer(ctx context.Context, playerID int64) ([]model.Achievement, error)
	FindUnknownDate(ctx context.Context, playerID int64) ([]model.Achievement, error)
	CreateAchievements(ctx context.Context, achievements []model.Achievement) error
	Replace(ctx context.Context, playerID int64, achievementType string, updated model.Achievement) error
}

// Evaluator detects threshold crossings between snapshots and reconciles
// unknown-date achievements against newly available history.
type Evaluator struct {
	Snapshots    HistorySource
	Achievements Store
	Logger       *zap.Logger
}

// NewlyCompleted returns the achievements crossed between two consecutive
// snapshots. The crossing date is "now" unless the previous snapshot shows
// the metric as untracked, in which case the crossing predates tracking and
// the date is unknown.
func NewlyCompleted(previous, current *model.Snapshot, now time.Time) []model.Achievement {
	if previous == nil || current == nil {
		return nil
	}

	var out []model.Achievement
	for _, def := range Definitions() {
		if def.ValidateSnapshot(previous) || !def.ValidateSnapshot(current) {
			continue
		}

		createdAt := now
		if previous.Stat(def.Metric).Value == nil {
			createdAt = model.UnknownDate
		}

		out = append(out, model.Achievement{
			PlayerID:  current.PlayerID,
			Type:      def.Type,
			Metric:    def.Metric,
			Threshold: def.Threshold,
			CreatedAt: createdAt,
		})
	}
	return out
}

// MissingPrior returns the achievements a player's very first tracked
// snapshot already satisfies. With no earlier snapshot to bound the crossing,
// all of them carry the unknown-date sentinel.
func MissingPrior(first *model.Snapshot) []model.Achievement {
	if first == nil {
		return nil
	}

	var out []model.Achievement
	for _, def := range Definitions() {
		if !def.ValidateSnapshot(first) {
			continue
		}
		out = append(out, model.Achievement{
			PlayerID:  first.PlayerID,
			Type:      def.Type,
			Metric:    def.Metric,
			Threshold: def.Threshold,
			CreatedAt: model.UnknownDate,
		})
	}
	return out
}

// Reconcile rescans a player's full snapshot history looking for the true
// crossing date of each unknown-date achievement. The earliest adjacent pair
// where the definition newly validates yields the date, taken as the earlier
// of the two capture times. That lower bound under-estimates the actual
// crossing time; downstream consumers depend on this exact semantic, so it is
// kept as-is.
//
// Finding no bounding pair is a normal outcome: the achievement stays
// unknown-dated and a later import may resolve it. Reconcile is re-entrant
// and idempotent; it replaces rows rather than appending, and it never
// regresses a known date back to unknown.
func (e *Evaluator) Reconcile(ctx context.Context, playerID int64) (int, error) {
	unknown, err := e.Achievements.FindUnknownDate(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("find unknown-date achievements: %w", err)
	}
	if len(unknown) == 0 {
		return 0, nil
	}

	history, err := e.Snapshots.FindAllInRange(ctx, playerID, time.Time{}, time.Now())
	if err != nil {
		return 0, fmt.Errorf("load snapshot history: %w", err)
	}
	if len(history) < 2 {
		return 0, nil
	}

	reconciled := 0
	for _, achievement := range unknown {
		def, ok := DefinitionByType(achievement.Type)
		if !ok {
			// Definition no longer exists (retired template); leave the row.
			e.Logger.Warn("No definition for stored achievement",
				zap.String("type", achievement.Type),
				zap.Int64("playerId", playerID))
			continue
		}

		date, found := findCrossingDate(def, history)
		if !found {
			continue
		}

		updated := achievement
		updated.CreatedAt = date
		if err := e.Achievements.Replace(ctx, playerID, achievement.Type, updated); err != nil {
			return reconciled, fmt.Errorf("replace achievement %q: %w", achievement.Type, err)
		}
		reconciled++
	}

	if reconciled > 0 {
		e.Logger.Info("Reconciled achievement dates",
			zap.Int64("playerId", playerID),
			zap.Int("reconciled", reconciled),
			zap.Int("remaining", len(unknown)-reconciled))
	}

	return reconciled, nil
}

// findCrossingDate walks adjacent snapshot pairs in chronological order and
// returns the bounding date of the first pair where the definition newly
// validates.
func findCrossingDate(def Definition, history []*model.Snapshot) (time.Time, bool) {
	for i := 0; i+1 < len(history); i++ {
		prev, next := history[i], history[i+1]
		if def.ValidateSnapshot(prev) || !def.ValidateSnapshot(next) {
			continue
		}
		// The previous snapshot must actually track the metric, otherwise the
		// crossing still predates available history.
		if prev.Stat(def.Metric).Value == nil {
			continue
		}
		return minTime(prev.CreatedAt, next.CreatedAt), true
	}
	return time.Time{}, false
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
