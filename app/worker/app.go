package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/wise-old-man/wise-old-man-sub005/app/worker/activity"
	"github.com/wise-old-man/wise-old-man-sub005/app/worker/types"
	"github.com/wise-old-man/wise-old-man-sub005/app/worker/workflow"
	playerstore "github.com/wise-old-man/wise-old-man-sub005/pkg/db/players"
	snapshotstore "github.com/wise-old-man/wise-old-man-sub005/pkg/db/snapshots"
	trendstore "github.com/wise-old-man/wise-old-man-sub005/pkg/db/trenddata"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/logging"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/model"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/redis"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/temporal"
	"github.com/wise-old-man/wise-old-man-sub005/pkg/utils"
)

type App struct {
	PlayersWorker  worker.Worker
	TrendsWorker   worker.Worker
	TemporalClient *temporal.Client
	Logger         *zap.Logger

	// Cron periodically flushes the player cache so account type changes
	// are picked up.
	Cron           *cron.Cron
	CacheFlushSpec string

	// Catch-up runs on a Temporal schedule ensured at startup.
	CatchupInterval    time.Duration
	CatchupHorizonDays int

	ActivityContext *activity.Context

	// Server serves liveness and readiness probes.
	Server *http.Server
}

// Start starts both workers, the catch-up scheduler and the health server,
// then blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.PlayersWorker.Start(); err != nil {
		a.Logger.Fatal("Unable to start players worker", zap.Error(err))
	}
	if err := a.TrendsWorker.Start(); err != nil {
		a.Logger.Fatal("Unable to start trends worker", zap.Error(err))
	}
	a.Cron.Start()
	a.Logger.Info("Cache flush scheduler started", zap.String("cronSpec", a.CacheFlushSpec))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Health server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.Stop()
}

// Stop stops the workers, the scheduler and the health server.
func (a *App) Stop() {
	<-a.Cron.Stop().Done()
	a.PlayersWorker.Stop()
	a.TrendsWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("Goodbye!")
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	dbName := utils.Env("CLICKHOUSE_DB", "wiseoldman")
	snapshotsDb, err := snapshotstore.New(ctx, logger, dbName)
	if err != nil {
		logger.Fatal("Unable to initialize snapshot store", zap.Error(err))
	}

	trendsDb, err := trendstore.New(ctx, logger, dbName)
	if err != nil {
		logger.Fatal("Unable to initialize trend store", zap.Error(err))
	}

	playersDb, err := playerstore.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize player store", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	redisClient, err := redis.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish redis connection", zap.Error(err))
	}

	activityContext := &activity.Context{
		Logger:         logger,
		Snapshots:      snapshotsDb,
		TrendData:      trendsDb,
		Players:        playersDb,
		PlayerCache:    xsync.NewMap[int64, *model.Player](),
		TemporalClient: temporalClient,
		RedisClient:    redisClient,
	}
	workflowContext := workflow.Context{
		TemporalClient:  temporalClient,
		ActivityContext: activityContext,
		Config:          workflow.DefaultConfig(),
	}

	playersWorker := worker.New(
		temporalClient.TClient,
		temporalClient.GetPlayersQueue(),
		worker.Options{
			MaxConcurrentWorkflowTaskPollers:       10,
			MaxConcurrentActivityTaskPollers:       10,
			MaxConcurrentWorkflowTaskExecutionSize: 500,
			MaxConcurrentActivityExecutionSize:     1000,
			WorkerStopTimeout:                      1 * time.Minute,
		},
	)
	playersWorker.RegisterWorkflowWithOptions(
		workflowContext.PlayerUpdateWorkflow,
		temporalworkflow.RegisterOptions{Name: workflow.PlayerUpdateWorkflowName},
	)
	playersWorker.RegisterWorkflowWithOptions(
		workflowContext.ReconcileWorkflow,
		temporalworkflow.RegisterOptions{Name: workflow.ReconcileWorkflowName},
	)
	playersWorker.RegisterActivity(activityContext.RecordSnapshot)
	playersWorker.RegisterActivity(activityContext.EvaluatePlayerAchievements)
	playersWorker.RegisterActivity(activityContext.ReconcilePlayerAchievements)
	playersWorker.RegisterActivity(activityContext.ComputePlayerDeltas)
	playersWorker.RegisterActivity(activityContext.StartReconcileWorkflow)

	// Trend days run in order, one workflow at a time is plenty.
	trendsWorker := worker.New(
		temporalClient.TClient,
		temporalClient.GetTrendsQueue(),
		worker.Options{
			MaxConcurrentWorkflowTaskPollers: 5,
			MaxConcurrentActivityTaskPollers: 5,
			WorkerStopTimeout:                1 * time.Minute,
		},
	)
	trendsWorker.RegisterWorkflowWithOptions(
		workflowContext.TrendDateWorkflow,
		temporalworkflow.RegisterOptions{Name: workflow.TrendDateWorkflowName},
	)
	trendsWorker.RegisterWorkflowWithOptions(
		workflowContext.TrendCatchupWorkflow,
		temporalworkflow.RegisterOptions{Name: workflow.TrendCatchupWorkflowName},
	)
	trendsWorker.RegisterActivity(activityContext.ComputeTrendBounds)
	trendsWorker.RegisterActivity(activityContext.ComputeTrendSum)
	trendsWorker.RegisterActivity(activityContext.FindMissingTrendDates)
	trendsWorker.RegisterActivity(activityContext.StartTrendDateWorkflow)

	app := &App{
		PlayersWorker:      playersWorker,
		TrendsWorker:       trendsWorker,
		TemporalClient:     temporalClient,
		Logger:             logger,
		CacheFlushSpec:     utils.Env("PLAYER_CACHE_FLUSH_CRON", "0 0 * * * *"),
		CatchupInterval:    time.Duration(utils.EnvInt("TREND_CATCHUP_INTERVAL_MINUTES", 10)) * time.Minute,
		CatchupHorizonDays: utils.EnvInt("TREND_CATCHUP_DAYS", 30),
		ActivityContext:    activityContext,
	}
	if err := app.ensureCatchupSchedule(ctx); err != nil {
		logger.Fatal("Unable to ensure trend catch-up schedule", zap.Error(err))
	}
	app.setupScheduler()
	app.setupServer()

	return app
}

// ensureCatchupSchedule creates the recurring trend catch-up schedule if it
// does not already exist. The payload carries only the horizon; each run
// derives its own scan window, so the schedule never goes stale.
func (a *App) ensureCatchupSchedule(ctx context.Context) error {
	id := a.TemporalClient.TrendCatchupScheduleID
	handle := a.TemporalClient.TSClient.GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err == nil {
		a.Logger.Info("Trend catch-up schedule already exists", zap.String("id", id))
		return nil
	} else {
		var notFound *serviceerror.NotFound
		if !errors.As(err, &notFound) {
			return err
		}
	}

	a.Logger.Info("Creating trend catch-up schedule",
		zap.String("id", id),
		zap.Duration("interval", a.CatchupInterval))
	_, err := a.TemporalClient.TSClient.Create(ctx, client.ScheduleOptions{
		ID:   id,
		Spec: a.TemporalClient.GetScheduleSpec(a.CatchupInterval),
		Action: &client.ScheduleWorkflowAction{
			Workflow:                 workflow.TrendCatchupWorkflowName,
			Args:                     []interface{}{types.WorkflowTrendCatchupInput{HorizonDays: a.CatchupHorizonDays}},
			TaskQueue:                a.TemporalClient.GetTrendsQueue(),
			WorkflowExecutionTimeout: 10 * time.Minute,
			WorkflowTaskTimeout:      2 * time.Minute,
		},
	})
	return err
}

// setupScheduler arms the periodic player cache flush. Cached rows only hold
// id, username and account type; flushing keeps type reclassifications from
// sticking for the life of the process.
func (a *App) setupScheduler() {
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	_, err := a.Cron.AddFunc(a.CacheFlushSpec, func() {
		size := a.ActivityContext.PlayerCache.Size()
		a.ActivityContext.PlayerCache.Clear()
		a.Logger.Debug("Flushed player cache", zap.Int("entries", size))
	})
	if err != nil {
		a.Logger.Fatal("Invalid cache flush cron spec", zap.String("cronSpec", a.CacheFlushSpec), zap.Error(err))
	}
}

// setupServer sets up the HTTP server for liveness and readiness probes.
func (a *App) setupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3002")

	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if _, err := a.TemporalClient.Health(req.Context()); err != nil {
			w.WriteHeader(503)
			return
		}
		if a.ActivityContext.RedisClient != nil {
			if err := a.ActivityContext.RedisClient.Health(req.Context()); err != nil {
				w.WriteHeader(503)
				return
			}
		}
		w.WriteHeader(200)
	})).Methods("GET")

	a.Server = &http.Server{Addr: addr, Handler: r}
}
