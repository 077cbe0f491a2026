package requisition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func newTestItem() Item {
	item := Item{
		RequisitionID:      1,
		ProductID:          10,
		Quantity:           20,
		EstimatedUnitPrice: 50,
		Status:             StatusRequested,
	}
	item.Recompute()
	return item
}

func TestApproveDefaultsToRequestedFigures(t *testing.T) {
	item := newTestItem()
	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	err := item.Approve(ApproveInput{Approver: "manager", At: at})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, item.Status)
	require.InDelta(t, 20, item.ApprovedQuantity, 1e-9)
	require.InDelta(t, 50, item.ApprovedUnitPrice, 1e-9)
	require.InDelta(t, 1000, item.ApprovedTotalCost, 1e-9)
	require.Equal(t, "manager", item.ApprovedBy)
	require.Equal(t, at, *item.ApprovedAt)
}

func TestApproveWithOverrides(t *testing.T) {
	item := newTestItem()

	err := item.Approve(ApproveInput{Approver: "manager", Quantity: floatPtr(15), UnitPrice: floatPtr(48), At: time.Now()})
	require.NoError(t, err)
	require.InDelta(t, 15, item.ApprovedQuantity, 1e-9)
	require.InDelta(t, 720, item.ApprovedTotalCost, 1e-9)

	// Quantities above the request violate the approved <= requested invariant.
	item = newTestItem()
	err = item.Approve(ApproveInput{Approver: "manager", Quantity: floatPtr(25), At: time.Now()})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, StatusRequested, item.Status)
}

func TestPartialApprovalRequiresReducedQuantity(t *testing.T) {
	item := newTestItem()

	// Equal to the requested quantity must fail; Approve is the right call.
	err := item.PartiallyApprove(PartialApproveInput{Approver: "manager", Quantity: 20, At: time.Now()})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, StatusRequested, item.Status)

	err = item.PartiallyApprove(PartialApproveInput{Approver: "manager", Quantity: 12, At: time.Now()})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyApproved, item.Status)
	require.InDelta(t, 12, item.ApprovedQuantity, 1e-9)
	require.InDelta(t, 600, item.ApprovedTotalCost, 1e-9)
}

func TestRejectStampsAndTerminates(t *testing.T) {
	item := newTestItem()
	at := time.Date(2026, 8, 2, 14, 30, 0, 0, time.UTC)

	err := item.Reject(RejectInput{Rejector: "director", Reason: "duplicate request", At: at})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, item.Status)
	require.Equal(t, "director", item.RejectedBy)
	require.Equal(t, "duplicate request", item.RejectionReason)
	require.Zero(t, item.ApprovedQuantity)

	// Rejected is terminal: further workflow actions fail.
	require.ErrorIs(t, item.Approve(ApproveInput{Approver: "manager", At: at}), ErrTerminalStatus)
	require.ErrorIs(t, item.Reject(RejectInput{Rejector: "director", At: at}), ErrTerminalStatus)
}

func TestRecomputeBudgetFlag(t *testing.T) {
	item := newTestItem()
	require.InDelta(t, 1000, item.TotalEstimatedCost, 1e-9)

	// Unknown balance leaves the flag untouched.
	require.False(t, item.Budget.IsWithinBudget)

	item.Budget.AvailableBalance = floatPtr(1200)
	item.Recompute()
	require.True(t, item.Budget.IsWithinBudget)

	item.Budget.AvailableBalance = floatPtr(900)
	item.Recompute()
	require.False(t, item.Budget.IsWithinBudget)

	// Exactly on the balance counts as within budget.
	item.Budget.AvailableBalance = floatPtr(1000)
	item.Recompute()
	require.True(t, item.Budget.IsWithinBudget)
}

func TestStockStatusDerivation(t *testing.T) {
	cases := []struct {
		name     string
		stock    float64
		reorder  float64
		expected StockStatus
	}{
		{"zero stock", 0, 10, StockOutOfStock},
		{"at reorder level", 10, 10, StockLow},
		{"below reorder level", 4, 10, StockLow},
		{"above twice reorder", 21, 10, StockExcess},
		{"normal band", 15, 10, StockAdequate},
		{"exactly twice reorder", 20, 10, StockAdequate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := newTestItem()
			item.ApplyStockSnapshot(ProductSnapshot{ID: 10, CurrentStock: tc.stock, ReorderLevel: tc.reorder}, time.Now())
			require.Equal(t, tc.expected, item.Inventory.StockStatus)
			require.InDelta(t, tc.stock, item.Inventory.CurrentStock, 1e-9)
		})
	}
}

func TestMetricsDerivation(t *testing.T) {
	item := newTestItem()
	require.NoError(t, item.PartiallyApprove(PartialApproveInput{Approver: "manager", Quantity: 15, At: time.Now()}))

	m := item.Metrics()
	require.InDelta(t, 75, m.ApprovalPercentage, 1e-9)

	item.ActualUnitPrice = 55
	item.Recompute()
	m = item.Metrics()
	require.InDelta(t, 100, m.CostVariance, 1e-9) // 1100 actual vs 1000 estimate
	require.InDelta(t, 10, m.CostVariancePercent, 1e-9)
}

func TestMetricsZeroEstimateGuard(t *testing.T) {
	item := Item{RequisitionID: 1, ProductID: 1, Quantity: 5, EstimatedUnitPrice: 0}
	item.ActualUnitPrice = 10
	item.Recompute()

	m := item.Metrics()
	require.InDelta(t, 50, m.CostVariance, 1e-9)
	require.Zero(t, m.CostVariancePercent)
}

func TestRecomputeIdempotent(t *testing.T) {
	item := newTestItem()
	item.Budget.AvailableBalance = floatPtr(1500)
	item.ActualUnitPrice = 52
	require.NoError(t, item.Approve(ApproveInput{Approver: "manager", At: time.Now()}))

	item.Recompute()
	first := item
	item.Recompute()
	require.Equal(t, first, item)
}

func TestValidateFieldErrors(t *testing.T) {
	item := Item{Quantity: -1, EstimatedUnitPrice: -2, Status: "weird"}
	errs := item.Validate()
	require.Contains(t, errs, "requisition_id")
	require.Contains(t, errs, "product_id")
	require.Contains(t, errs, "quantity")
	require.Contains(t, errs, "estimated_unit_price")
	require.Contains(t, errs, "status")

	item = newTestItem()
	item.ApprovedQuantity = 25
	errs = item.Validate()
	require.Contains(t, errs, "approved_quantity")

	item = newTestItem()
	require.Nil(t, item.Validate())
}
