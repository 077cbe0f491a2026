package requisition

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/procurehub/internal/observability"
)

type stubRefreshQueue struct {
	calls int
}

func (q *stubRefreshQueue) EnqueueStockRefresh(ctx context.Context) error {
	q.calls++
	return nil
}

func TestStockRefreshEndpointQueuesSweep(t *testing.T) {
	svc := NewService(newMemoryReqRepo(), &stubProducts{}, nil, nil)
	queue := &stubRefreshQueue{}
	h := NewHandler(nil, svc, queue, observability.NewMetrics())
	r := chi.NewRouter()
	h.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/requisitions/stock-refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, 1, queue.calls)
}

func TestStockRefreshEndpointWithoutQueue(t *testing.T) {
	svc := NewService(newMemoryReqRepo(), &stubProducts{}, nil, nil)
	h := NewHandler(nil, svc, nil, observability.NewMetrics())
	r := chi.NewRouter()
	h.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/requisitions/stock-refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
