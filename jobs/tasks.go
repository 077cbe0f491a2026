package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// StockRefresher sweeps open requisition lines against fresh product data.
type StockRefresher interface {
	RefreshStockStatuses(ctx context.Context) (int, error)
}

// BidRescorer re-applies the current scoring weights to one bid's
// evaluated lines.
type BidRescorer interface {
	RescoreBidItems(ctx context.Context, bidID int64) (int, error)
}

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockRefresh re-derives requisition stock statuses from fresh
	// product snapshots.
	TaskStockRefresh = "requisition:stock_refresh"
	// TaskBidRescore recomputes evaluation overalls after a scoring
	// configuration change.
	TaskBidRescore = "bid:rescore"
)

// NewStockRefreshTask builds the periodic stock refresh task.
func NewStockRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskStockRefresh, nil, asynq.Queue(QueueDefault))
}

// NewStockRefreshHandler sweeps every open requisition line.
func NewStockRefreshHandler(svc StockRefresher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		refreshed, err := svc.RefreshStockStatuses(ctx)
		if err != nil {
			logger.Error("stock refresh", slog.Any("error", err))
			return err
		}
		logger.Info("stock refresh", slog.Int("refreshed", refreshed))
		return nil
	}
}

// BidRescorePayload names the bid whose evaluated lines are rescored.
type BidRescorePayload struct {
	BidID int64 `json:"bid_id"`
}

// NewBidRescoreTask builds a rescore task for one bid.
func NewBidRescoreTask(bidID int64) (*asynq.Task, error) {
	data, err := json.Marshal(BidRescorePayload{BidID: bidID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBidRescore, data, asynq.Queue(QueueDefault)), nil
}

// NewBidRescoreHandler re-applies the current scoring weights to the
// evaluated lines of the named bid.
func NewBidRescoreHandler(svc BidRescorer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload BidRescorePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		rescored, err := svc.RescoreBidItems(ctx, payload.BidID)
		if err != nil {
			logger.Error("bid rescore", slog.Int64("bid_id", payload.BidID), slog.Any("error", err))
			return err
		}
		logger.Info("bid rescore", slog.Int64("bid_id", payload.BidID), slog.Int("rescored", rescored))
		return nil
	}
}
