package requisition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/procurehub/procurehub/internal/shared"
)

type memoryReqRepo struct {
	items  map[int64]Item
	nextID int64
}

type memoryReqTx struct {
	repo *memoryReqRepo
}

func newMemoryReqRepo() *memoryReqRepo {
	return &memoryReqRepo{items: make(map[int64]Item)}
}

func (r *memoryReqRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryReqTx{repo: r})
}

func (r *memoryReqRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (r *memoryReqRepo) ListItems(ctx context.Context, requisitionID int64) ([]Item, error) {
	var items []Item
	for _, item := range r.items {
		if item.RequisitionID == requisitionID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (r *memoryReqRepo) ListOpenItems(ctx context.Context) ([]Item, error) {
	var items []Item
	for _, item := range r.items {
		if !item.Status.IsTerminal() {
			items = append(items, item)
		}
	}
	return items, nil
}

func (tx *memoryReqTx) CreateItem(ctx context.Context, item Item) (int64, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryReqTx) UpdateItem(ctx context.Context, item Item) error {
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

type stubProducts struct {
	snapshots map[int64]ProductSnapshot
}

func (s *stubProducts) GetProduct(ctx context.Context, id int64) (ProductSnapshot, error) {
	snapshot, ok := s.snapshots[id]
	if !ok {
		return ProductSnapshot{}, ErrNotFound
	}
	return snapshot, nil
}

func TestRequisitionItemLifecycle(t *testing.T) {
	repo := newMemoryReqRepo()
	products := &stubProducts{snapshots: map[int64]ProductSnapshot{
		10: {ID: 10, CurrentStock: 3, ReorderLevel: 8},
	}}
	svc := NewService(repo, products, nil, nil)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{
		RequisitionID:      1,
		ProductID:          10,
		Quantity:           20,
		EstimatedUnitPrice: 50,
		BudgetCode:         "OPS-2026",
		BudgetAmount:       5000,
		AvailableBalance:   floatPtr(1200),
	})
	require.NoError(t, err)
	require.NotZero(t, item.ID)
	require.Equal(t, StatusRequested, item.Status)
	require.InDelta(t, 1000, item.TotalEstimatedCost, 1e-9)
	require.True(t, item.Budget.IsWithinBudget)
	require.Equal(t, StockLow, item.Inventory.StockStatus)

	item, err = svc.PartiallyApproveItem(ctx, item.ID, PartialApproveItemInput{Approver: "manager", Quantity: 12})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyApproved, item.Status)
	require.InDelta(t, 600, item.ApprovedTotalCost, 1e-9)

	metrics, err := svc.ItemMetrics(ctx, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 60, metrics.ApprovalPercentage, 1e-9)
}

func TestRequisitionItemCreateDegradesWithoutProduct(t *testing.T) {
	repo := newMemoryReqRepo()
	products := &stubProducts{snapshots: map[int64]ProductSnapshot{}}
	svc := NewService(repo, products, nil, nil)

	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		RequisitionID:      1,
		ProductID:          99,
		Quantity:           5,
		EstimatedUnitPrice: 10,
	})
	require.NoError(t, err)
	require.Empty(t, item.Inventory.StockStatus)
}

func TestRequisitionItemRejectThenApproveFails(t *testing.T) {
	repo := newMemoryReqRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{RequisitionID: 2, ProductID: 1, Quantity: 3, EstimatedUnitPrice: 7})
	require.NoError(t, err)

	item, err = svc.RejectItem(ctx, item.ID, RejectItemInput{Rejector: "director", Reason: "budget freeze"})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, item.Status)

	_, err = svc.ApproveItem(ctx, item.ID, ApproveItemInput{Approver: "manager"})
	require.ErrorIs(t, err, ErrTerminalStatus)
}

func TestRequisitionItemVersionConflictSurfaces(t *testing.T) {
	repo := newMemoryReqRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{RequisitionID: 3, ProductID: 1, Quantity: 4, EstimatedUnitPrice: 2})
	require.NoError(t, err)

	// Write a stale-version copy directly, as a lost concurrent update would.
	stale := repo.items[item.ID]
	stale.Version = 5
	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateItem(ctx, stale)
	})
	require.ErrorIs(t, err, shared.ErrVersionConflict)
}

func TestRefreshStockStatusesSweepsOpenLines(t *testing.T) {
	repo := newMemoryReqRepo()
	products := &stubProducts{snapshots: map[int64]ProductSnapshot{
		10: {ID: 10, CurrentStock: 50, ReorderLevel: 10},
		11: {ID: 11, CurrentStock: 0, ReorderLevel: 5},
	}}
	svc := NewService(repo, products, nil, nil)
	ctx := context.Background()

	first, err := svc.CreateItem(ctx, CreateItemInput{RequisitionID: 1, ProductID: 10, Quantity: 2, EstimatedUnitPrice: 1})
	require.NoError(t, err)
	second, err := svc.CreateItem(ctx, CreateItemInput{RequisitionID: 1, ProductID: 11, Quantity: 2, EstimatedUnitPrice: 1})
	require.NoError(t, err)
	rejected, err := svc.CreateItem(ctx, CreateItemInput{RequisitionID: 1, ProductID: 10, Quantity: 2, EstimatedUnitPrice: 1})
	require.NoError(t, err)
	_, err = svc.RejectItem(ctx, rejected.ID, RejectItemInput{Rejector: "director", Reason: "n/a"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshStockStatuses(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, refreshed)

	updated, err := svc.GetItem(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, StockExcess, updated.Inventory.StockStatus)
	updated, err = svc.GetItem(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, StockOutOfStock, updated.Inventory.StockStatus)
}
