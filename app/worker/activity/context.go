package activity

import (
	"context"
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	playerstore "github.com/wise-old-man/wise-old-man-sub005/pkg/db/players"
	snapshotstore "github.com/wise-old-man/wise-old-man-sub005/pkg/db/snapshots"
	trendstore "github.com/wise-old-man/wise-old-man-sub005/pkg/db/trenddata"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/redis"
	temporalclient "github.com/wise-old-man/wise-old-man-sub005/pkg/temporal"
)

type Context struct {
	Logger *zap.Logger
	// Stores
	Snapshots snapshotstore.Store
	TrendData trendstore.Store
	Players   playerstore.Store
	// Players is read on every snapshot, so keep a process-local cache.
	PlayerCache *xsync.Map[int64, *model.Player]
	// For scheduling workflows
	TemporalClient *temporalclient.Client
	// For publishing real-time events
	RedisClient *redis.Client
	// TrendMaxParallelism allows overriding the default bounds pool size.
	TrendMaxParallelism int
	trendPoolOnce       sync.Once
	trendPool           pond.Pool
}

// GetPlayer returns the player row, caching positive lookups.
func (ac *Context) GetPlayer(ctx context.Context, playerID int64) (*model.Player, error) {
	if p, ok := ac.PlayerCache.Load(playerID); ok {
		return p, nil
	}
	p, err := ac.Players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	ac.PlayerCache.Store(playerID, p)
	return p, nil
}

// trendBoundsPool returns a shared worker pool for per-metric bounds writes.
// Pool size defaults to two workers per CPU with a cap.
func (ac *Context) trendBoundsPool() pond.Pool {
	ac.trendPoolOnce.Do(func() {
		maxWorkers := TrendParallelism(ac.TrendMaxParallelism)
		ac.trendPool = pond.NewPool(maxWorkers)
	})
	return ac.trendPool
}

// TrendParallelism calculates the pool size for the per-metric bounds pass.
func TrendParallelism(override int) int {
	if override > 0 {
		if override > 64 {
			return 64
		}
		return override
	}

	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	parallelism := n * 2
	if parallelism < 2 {
		parallelism = 2
	}
	if parallelism > 64 {
		parallelism = 64
	}
	return parallelism
}
