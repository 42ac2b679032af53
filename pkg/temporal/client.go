package temporal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go.temporal.io/api/enums/v1"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/wise-old-man/wise-old-man-sub005/pkg/utils"
)

type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	Namespace string

	// Task Queues
	PlayersQueue string // players - per-player delta/achievement/reconcile jobs
	TrendsQueue  string // trends - date-ordered trend bounds and sum jobs

	// Schedule IDs
	TrendCatchupScheduleID string

	// Workflow IDs
	ReconcileWorkflowId string
	TrendDateWorkflowId string
}

type Health struct {
	ConnectionOK bool                      `json:"connection_ok"`
	PlayersQueue []*taskqueuepb.PollerInfo `json:"players_queue"`
	TrendsQueue  []*taskqueuepb.PollerInfo `json:"trends_queue"`
}

func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", "wiseoldman")
	loggerWrapper := NewZapAdapter(logger)

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))
	tClient, err := Dial(ctx, host, ns, loggerWrapper)
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		return nil, err
	}

	return &Client{
		TClient:   tClient,
		TSClient:  tClient.ScheduleClient(),
		Namespace: ns,
		// for now this is just hardcoded, could be configurable if we need it
		PlayersQueue: "players",
		TrendsQueue:  "trends",
		// schedule IDs
		TrendCatchupScheduleID: "trends:catchup",
		// workflow IDs
		ReconcileWorkflowId: "player:reconcile:%d",
		TrendDateWorkflowId: "trends:date:%s",
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// GetPlayersQueue returns the per-player jobs queue.
func (c *Client) GetPlayersQueue() string { return c.PlayersQueue }

// GetTrendsQueue returns the trend aggregation queue.
func (c *Client) GetTrendsQueue() string { return c.TrendsQueue }

// GetReconcileWorkflowId returns the workflow ID for a player reconciliation run.
func (c *Client) GetReconcileWorkflowId(playerID int64) string {
	return fmt.Sprintf(c.ReconcileWorkflowId, playerID)
}

// GetTrendDateWorkflowId returns the workflow ID for one date's trend run.
func (c *Client) GetTrendDateWorkflowId(date time.Time) string {
	return fmt.Sprintf(c.TrendDateWorkflowId, date.UTC().Format("2006-01-02"))
}

// GetScheduleSpec returns a schedule spec for the given interval.
func (c *Client) GetScheduleSpec(interval time.Duration) client.ScheduleSpec {
	return client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
}

// Health returns the health of the Temporal client.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h := Health{ConnectionOK: true}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	svc := c.TClient.WorkflowService()
	if svc != nil {
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.PlayersQueue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.PlayersQueue = rep.GetPollers()
		}
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.TrendsQueue},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.TrendsQueue = rep.GetPollers()
		}
	}
	return h, nil
}
