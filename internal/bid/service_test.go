package bid

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/procurehub/internal/shared"
)

type memoryBidRepo struct {
	bids   map[int64]Bid
	items  map[int64]Item
	nextID int64
}

type memoryBidTx struct {
	repo *memoryBidRepo
}

func newMemoryBidRepo() *memoryBidRepo {
	return &memoryBidRepo{
		bids:  make(map[int64]Bid),
		items: make(map[int64]Item),
	}
}

func (r *memoryBidRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryBidTx{repo: r})
}

func (r *memoryBidRepo) GetBid(ctx context.Context, id int64) (Bid, error) {
	b, ok := r.bids[id]
	if !ok {
		return Bid{}, ErrNotFound
	}
	return b, nil
}

func (r *memoryBidRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (r *memoryBidRepo) ListItems(ctx context.Context, bidID int64) ([]Item, error) {
	var items []Item
	for _, item := range r.items {
		if item.BidID == bidID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (tx *memoryBidTx) CreateItem(ctx context.Context, item Item) (int64, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryBidTx) UpdateItem(ctx context.Context, item Item) error {
	current, ok := tx.repo.items[item.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != item.Version {
		return shared.ErrVersionConflict
	}
	item.Version++
	tx.repo.items[item.ID] = item
	return nil
}

func (tx *memoryBidTx) UpdateBidStatus(ctx context.Context, id int64, status Status, version int64) error {
	b, ok := tx.repo.bids[id]
	if !ok {
		return ErrNotFound
	}
	if b.Version != version {
		return shared.ErrVersionConflict
	}
	b.Status = status
	b.Version++
	tx.repo.bids[id] = b
	return nil
}

func TestBidItemLifecycle(t *testing.T) {
	repo := newMemoryBidRepo()
	svc := NewService(repo, nil, nil, ScoringConfig{})
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{
		BidID:        1,
		RFQItemID:    10,
		ProductID:    100,
		UnitPrice:    50,
		Quantity:     20,
		DeliveryDays: 14,
		Scores:       ComplianceScores{Technical: 90, Quality: 90, Documentation: 90},
		Warranty:     Warranty{PeriodMonths: 12},
	})
	require.NoError(t, err)
	require.NotZero(t, item.ID)
	require.InDelta(t, 1000, item.Total, 1e-9)
	require.Equal(t, ComplianceFull, item.SpecCompliance)
	require.InDelta(t, 90, item.Scores.Overall, 1e-9)

	item, err = svc.AddDeviation(ctx, item.ID, Deviation{Aspect: "coating", Description: "different supplier"})
	require.NoError(t, err)
	require.Equal(t, CompliancePartial, item.SpecCompliance)

	item, err = svc.SetAlternativeProduct(ctx, item.ID, Alternative{ProductID: 101, OriginalPrice: 50, AlternativePrice: 45})
	require.NoError(t, err)
	require.Equal(t, ComplianceAlternative, item.SpecCompliance)
	require.InDelta(t, -5, item.Alternative.PriceDifference, 1e-9)

	item, err = svc.SetEvaluationScores(ctx, item.ID, EvaluationInput{
		Technical: 80, Financial: 70, Delivery: 90, Quality: 85, Compliance: 60,
		EvaluatedBy: 5,
	})
	require.NoError(t, err)
	require.InDelta(t, 78.25, item.Evaluation.Overall, 1e-9)

	_, metrics, err := svc.ItemMetrics(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, RiskHigh, metrics.RiskLevel)
}

func TestBidItemVersionConflictSurfaces(t *testing.T) {
	repo := newMemoryBidRepo()
	svc := NewService(repo, nil, nil, ScoringConfig{})
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{BidID: 1, ProductID: 2, UnitPrice: 10, Quantity: 1})
	require.NoError(t, err)

	// A write carrying a stale version must fail, not clobber.
	stale := repo.items[item.ID]
	stale.Version--
	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateItem(ctx, stale)
	})
	require.ErrorIs(t, err, shared.ErrVersionConflict)
}

func TestChangeStatusFlow(t *testing.T) {
	repo := newMemoryBidRepo()
	repo.bids[1] = Bid{ID: 1, Number: "BID-1", Status: StatusUnderEvaluation, Amount: 40000}
	svc := NewService(repo, nil, nil, ScoringConfig{})
	ctx := context.Background()

	b, err := svc.ChangeStatus(ctx, ChangeStatusInput{BidID: 1, Next: StatusAwarded, Role: RoleManager, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, StatusAwarded, b.Status)

	b, err = svc.ChangeStatus(ctx, ChangeStatusInput{BidID: 1, Next: StatusCompleted, Role: RoleManager, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, b.Status)

	_, err = svc.ChangeStatus(ctx, ChangeStatusInput{BidID: 1, Next: StatusOpen, Role: RoleAdmin, ActorID: 9})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestChangeStatusGates(t *testing.T) {
	repo := newMemoryBidRepo()
	repo.bids[2] = Bid{ID: 2, Number: "BID-2", Status: StatusUnderEvaluation, Amount: 150000}
	svc := NewService(repo, nil, nil, ScoringConfig{})
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, ChangeStatusInput{BidID: 2, Next: StatusAwarded, Role: RoleDirector, ActorID: 9})
	require.ErrorIs(t, err, ErrApprovalRequired)

	_, err = svc.ChangeStatus(ctx, ChangeStatusInput{BidID: 2, Next: StatusUnderLegalReview, Role: RoleDirector, ActorID: 9})
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, ChangeStatusInput{BidID: 2, Next: StatusAwarded, Role: RoleDirector, ActorID: 9})
	require.NoError(t, err)
}

func TestRecommendedNextFromService(t *testing.T) {
	repo := newMemoryBidRepo()
	repo.bids[3] = Bid{ID: 3, Status: StatusOpen}
	svc := NewService(repo, nil, nil, ScoringConfig{})

	next, err := svc.RecommendedNext(context.Background(), 3, Context{HasSubmissions: true})
	require.NoError(t, err)
	require.Equal(t, StatusUnderEvaluation, next)
}

type memoryApprovals struct {
	logs []shared.ApprovalLog
}

func (m *memoryApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	log.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryApprovals) EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error {
	for _, l := range m.logs {
		if l.Module == module && l.RefID == ref && l.Action == shared.ApprovalSubmit {
			return nil
		}
	}
	return m.Record(ctx, shared.ApprovalLog{Module: module, RefID: ref, ActorID: actorID, Action: shared.ApprovalSubmit, Note: note})
}

func (m *memoryApprovals) List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	for _, l := range m.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

func TestChangeStatusRecordsApprovalTrail(t *testing.T) {
	repo := newMemoryBidRepo()
	repo.bids[4] = Bid{ID: 4, Number: "BID-4", Status: StatusUnderEvaluation, Amount: 40000}
	approvals := &memoryApprovals{}
	svc := NewService(repo, approvals, nil, ScoringConfig{})
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, ChangeStatusInput{BidID: 4, Next: StatusAwarded, Role: RoleManager, ActorID: 7, Note: "best offer"})
	require.NoError(t, err)

	logs, err := svc.ApprovalHistory(ctx, 4)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, shared.ApprovalSubmit, logs[0].Action)
	require.Equal(t, shared.ApprovalApprove, logs[1].Action)
	require.Equal(t, int64(7), logs[1].ActorID)
	require.Equal(t, "best offer", logs[1].Note)

	_, err = svc.ApprovalHistory(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRescoreBidItemsAppliesCurrentWeights(t *testing.T) {
	repo := newMemoryBidRepo()
	svc := NewService(repo, nil, nil, ScoringConfig{})
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{
		BidID:     5,
		ProductID: 1,
		UnitPrice: 10,
		Quantity:  2,
		Scores:    ComplianceScores{Technical: 80, Quality: 80, Documentation: 80},
	})
	require.NoError(t, err)
	_, err = svc.SetEvaluationScores(ctx, item.ID, EvaluationInput{Technical: 100, Financial: 50, Delivery: 50, Quality: 50, Compliance: 50, EvaluatedBy: 3})
	require.NoError(t, err)

	// Second line stays unevaluated and must be left alone.
	other, err := svc.CreateItem(ctx, CreateItemInput{
		BidID:     5,
		ProductID: 2,
		UnitPrice: 10,
		Quantity:  1,
		Scores:    ComplianceScores{Technical: 80, Quality: 80, Documentation: 80},
	})
	require.NoError(t, err)

	reweighted := DefaultScoringConfig()
	reweighted.TechnicalWeight = 0.60
	reweighted.FinancialWeight = 0.10
	reweighted.DeliveryWeight = 0.10
	rescorer := NewService(repo, nil, nil, reweighted)

	rescored, err := rescorer.RescoreBidItems(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 1, rescored)

	updated, err := rescorer.GetItem(ctx, item.ID)
	require.NoError(t, err)
	// 0.60*100 + 0.10*50 + 0.10*50 + 0.15*50 + 0.05*50 = 80
	require.InDelta(t, 80, updated.Evaluation.Overall, 1e-9)

	untouched, err := rescorer.GetItem(ctx, other.ID)
	require.NoError(t, err)
	require.Zero(t, untouched.Evaluation.Overall)
}
