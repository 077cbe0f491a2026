package bid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/procurehub/internal/observability"
	"github.com/procurehub/procurehub/internal/shared"
)

type stubRescoreQueue struct {
	enqueued []int64
}

func (q *stubRescoreQueue) EnqueueBidRescore(ctx context.Context, bidID int64) error {
	q.enqueued = append(q.enqueued, bidID)
	return nil
}

func newBidTestServer(t *testing.T, svc *Service, queue RescoreQueue) *httptest.Server {
	t.Helper()
	h := NewHandler(nil, svc, queue, observability.NewMetrics())
	r := chi.NewRouter()
	h.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRescoreEndpointQueuesWork(t *testing.T) {
	repo := newMemoryBidRepo()
	repo.bids[8] = Bid{ID: 8, Number: "BID-8", Status: StatusUnderEvaluation}
	queue := &stubRescoreQueue{}
	srv := newBidTestServer(t, NewService(repo, nil, nil, ScoringConfig{}), queue)

	resp, err := http.Post(srv.URL+"/bids/8/rescore", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []int64{8}, queue.enqueued)

	resp, err = http.Post(srv.URL+"/bids/999/rescore", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Len(t, queue.enqueued, 1)
}

func TestRescoreEndpointWithoutQueue(t *testing.T) {
	repo := newMemoryBidRepo()
	repo.bids[8] = Bid{ID: 8, Number: "BID-8", Status: StatusUnderEvaluation}
	srv := newBidTestServer(t, NewService(repo, nil, nil, ScoringConfig{}), nil)

	resp, err := http.Post(srv.URL+"/bids/8/rescore", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestApprovalHistoryEndpoint(t *testing.T) {
	repo := newMemoryBidRepo()
	repo.bids[9] = Bid{ID: 9, Number: "BID-9", Status: StatusUnderEvaluation, Amount: 1000}
	svc := NewService(repo, &memoryApprovals{}, nil, ScoringConfig{})
	srv := newBidTestServer(t, svc, nil)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{BidID: 9, Next: StatusAwarded, Role: RoleManager, ActorID: 2})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/bids/9/approvals")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Approvals []shared.ApprovalLog `json:"approvals"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Approvals, 2)
	require.Equal(t, shared.ApprovalSubmit, body.Approvals[0].Action)
	require.Equal(t, shared.ApprovalApprove, body.Approvals[1].Action)
}
