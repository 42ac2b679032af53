package activity

import (
	"context"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	playerstore "github.com/wise-old-man/wise-old-man-sub005/pkg/db/players"
	trendstore "github.com/wise-old-man/wise-old-man-sub005/pkg/db/trenddata"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/metrics"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/trends"
)

// In-memory stand-ins for the three stores. They implement just enough of
// the semantics the activities rely on: chronological snapshot ordering,
// achievement (player, type) uniqueness and versioned trend rows.

type fakeSnapshotStore struct {
	snapshots []*model.Snapshot
	scans     map[time.Time][]trends.MetricScan
	sums      map[time.Time]map[metrics.Key]int64
}

func (f *fakeSnapshotStore) InitializeDB(context.Context) error { return nil }
func (f *fakeSnapshotStore) Close() error                       { return nil }

func (f *fakeSnapshotStore) InsertSnapshots(_ context.Context, _ model.PlayerType, snapshots []*model.Snapshot) error {
	f.snapshots = append(f.snapshots, snapshots...)
	sort.Slice(f.snapshots, func(i, j int) bool {
		return f.snapshots[i].CreatedAt.Before(f.snapshots[j].CreatedAt)
	})
	return nil
}

func (f *fakeSnapshotStore) inRange(playerID int64, start, end time.Time) []*model.Snapshot {
	var out []*model.Snapshot
	for _, s := range f.snapshots {
		if s.PlayerID != playerID || s.CreatedAt.Before(start) || s.CreatedAt.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (f *fakeSnapshotStore) FindFirstInRange(_ context.Context, playerID int64, start, end time.Time) (*model.Snapshot, error) {
	in := f.inRange(playerID, start, end)
	if len(in) == 0 {
		return nil, nil
	}
	return in[0], nil
}

func (f *fakeSnapshotStore) FindLastInRange(_ context.Context, playerID int64, start, end time.Time) (*model.Snapshot, error) {
	in := f.inRange(playerID, start, end)
	if len(in) == 0 {
		return nil, nil
	}
	return in[len(in)-1], nil
}

func (f *fakeSnapshotStore) FindAllInRange(_ context.Context, playerID int64, start, end time.Time) ([]*model.Snapshot, error) {
	return f.inRange(playerID, start, end), nil
}

func (f *fakeSnapshotStore) ScanBoundsForDate(_ context.Context, date time.Time) ([]trends.MetricScan, error) {
	return f.scans[trends.Day(date)], nil
}

func (f *fakeSnapshotStore) SumForDate(_ context.Context, date time.Time) (map[metrics.Key]int64, error) {
	sums := f.sums[trends.Day(date)]
	if sums == nil {
		sums = map[metrics.Key]int64{}
	}
	return sums, nil
}

type fakeTrendStore struct {
	rows map[time.Time]map[metrics.Key]model.TrendDatapoint
}

func newFakeTrendStore() *fakeTrendStore {
	return &fakeTrendStore{rows: map[time.Time]map[metrics.Key]model.TrendDatapoint{}}
}

func (f *fakeTrendStore) InitializeDB(context.Context) error { return nil }
func (f *fakeTrendStore) Close() error                       { return nil }

func (f *fakeTrendStore) Get(_ context.Context, metric metrics.Key, date time.Time) (*model.TrendDatapoint, error) {
	day := trends.Day(date)
	if dp, ok := f.rows[day][metric]; ok {
		return &dp, nil
	}
	return nil, trendstore.ErrNotFound
}

func (f *fakeTrendStore) GetForDate(_ context.Context, date time.Time) ([]model.TrendDatapoint, error) {
	day := trends.Day(date)
	out := make([]model.TrendDatapoint, 0, len(f.rows[day]))
	for _, dp := range f.rows[day] {
		out = append(out, dp)
	}
	return out, nil
}

func (f *fakeTrendStore) ReplaceForDate(_ context.Context, date time.Time, rows []model.TrendDatapoint) error {
	day := trends.Day(date)
	byMetric := make(map[metrics.Key]model.TrendDatapoint, len(rows))
	for _, dp := range rows {
		byMetric[dp.Metric] = dp
	}
	f.rows[day] = byMetric
	return nil
}

func (f *fakeTrendStore) SetSums(_ context.Context, date time.Time, sums map[metrics.Key]int64) error {
	day := trends.Day(date)
	stored, ok := f.rows[day]
	if !ok || len(stored) == 0 {
		return trendstore.ErrNotFound
	}
	// Metrics absent from sums keep the pending sentinel, as the real store
	// does.
	for metric, dp := range stored {
		if sum, has := sums[metric]; has {
			dp.Sum = sum
			stored[metric] = dp
		}
	}
	return nil
}

func (f *fakeTrendStore) CountsSince(_ context.Context, since time.Time) (map[time.Time]int, error) {
	out := map[time.Time]int{}
	for day, byMetric := range f.rows {
		if day.Before(trends.Day(since)) {
			continue
		}
		out[day] = len(byMetric)
	}
	return out, nil
}

type fakePlayerStore struct {
	players      map[int64]*model.Player
	baselines    map[int64]*model.Baseline
	achievements map[int64]map[string]model.Achievement
}

func newFakePlayerStore() *fakePlayerStore {
	return &fakePlayerStore{
		players:      map[int64]*model.Player{},
		baselines:    map[int64]*model.Baseline{},
		achievements: map[int64]map[string]model.Achievement{},
	}
}

func (f *fakePlayerStore) InitializeDB(context.Context) error { return nil }
func (f *fakePlayerStore) Close()                             {}

func (f *fakePlayerStore) GetPlayer(_ context.Context, playerID int64) (*model.Player, error) {
	if p, ok := f.players[playerID]; ok {
		return p, nil
	}
	return nil, playerstore.ErrNotFound
}

func (f *fakePlayerStore) GetPlayerByUsername(_ context.Context, username string) (*model.Player, error) {
	for _, p := range f.players {
		if p.Username == username {
			return p, nil
		}
	}
	return nil, playerstore.ErrNotFound
}

func (f *fakePlayerStore) UpsertPlayer(_ context.Context, player *model.Player) (int64, error) {
	f.players[player.ID] = player
	return player.ID, nil
}

func (f *fakePlayerStore) GetBaseline(_ context.Context, playerID int64) (*model.Baseline, error) {
	if b, ok := f.baselines[playerID]; ok {
		return b, nil
	}
	return &model.Baseline{PlayerID: playerID}, nil
}

func (f *fakePlayerStore) UpsertBaseline(_ context.Context, baseline *model.Baseline) error {
	existing, ok := f.baselines[baseline.PlayerID]
	if !ok {
		f.baselines[baseline.PlayerID] = baseline
		return nil
	}
	// Values only ever go up.
	for key, stat := range baseline.Stats {
		prev := existing.Stats[key]
		if stat.ValueOr(-1) > prev.ValueOr(-1) {
			existing.Stats[key] = stat
		}
	}
	return nil
}

func (f *fakePlayerStore) FindByPlayer(_ context.Context, playerID int64) ([]model.Achievement, error) {
	var out []model.Achievement
	for _, a := range f.achievements[playerID] {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakePlayerStore) FindUnknownDate(_ context.Context, playerID int64) ([]model.Achievement, error) {
	var out []model.Achievement
	for _, a := range f.achievements[playerID] {
		if a.DateUnknown() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakePlayerStore) CreateAchievements(_ context.Context, achievements []model.Achievement) error {
	for _, a := range achievements {
		rows, ok := f.achievements[a.PlayerID]
		if !ok {
			rows = map[string]model.Achievement{}
			f.achievements[a.PlayerID] = rows
		}
		if _, exists := rows[a.Type]; exists {
			continue
		}
		rows[a.Type] = a
	}
	return nil
}

func (f *fakePlayerStore) Replace(_ context.Context, playerID int64, achievementType string, updated model.Achievement) error {
	rows := f.achievements[playerID]
	existing, ok := rows[achievementType]
	if !ok || !existing.DateUnknown() {
		return nil
	}
	rows[updated.Type] = updated
	return nil
}

func testContext(snapshots *fakeSnapshotStore, trendsDb *fakeTrendStore, players *fakePlayerStore) *Context {
	return &Context{
		Logger:      zap.NewNop(),
		Snapshots:   snapshots,
		TrendData:   trendsDb,
		Players:     players,
		PlayerCache: xsync.NewMap[int64, *model.Player](),
	}
}
