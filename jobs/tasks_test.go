package jobs

import (
	"context"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubRescorer struct {
	bidIDs []int64
}

func (s *stubRescorer) RescoreBidItems(ctx context.Context, bidID int64) (int, error) {
	s.bidIDs = append(s.bidIDs, bidID)
	return 2, nil
}

type stubRefresher struct {
	calls int
}

func (s *stubRefresher) RefreshStockStatuses(ctx context.Context) (int, error) {
	s.calls++
	return 3, nil
}

func TestBidRescoreHandler(t *testing.T) {
	task, err := NewBidRescoreTask(42)
	require.NoError(t, err)
	require.Equal(t, TaskBidRescore, task.Type())

	svc := &stubRescorer{}
	handler := NewBidRescoreHandler(svc, slog.Default())
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, []int64{42}, svc.bidIDs)
}

func TestBidRescoreHandlerBadPayload(t *testing.T) {
	handler := NewBidRescoreHandler(&stubRescorer{}, slog.Default())
	err := handler(context.Background(), asynq.NewTask(TaskBidRescore, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestStockRefreshHandler(t *testing.T) {
	svc := &stubRefresher{}
	handler := NewStockRefreshHandler(svc, slog.Default())
	require.NoError(t, handler(context.Background(), NewStockRefreshTask()))
	require.Equal(t, 1, svc.calls)
}
