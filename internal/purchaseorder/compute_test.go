package purchaseorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecomputeFinancialChain(t *testing.T) {
	// subtotal 1000, 10% discount -> 100, 15% tax on 900 -> 135, net 1035.
	item := Item{
		OrderedQuantity: 10,
		UnitPrice:       100,
		DiscountType:    DiscountPercentage,
		Discount:        10,
		TaxRate:         15,
	}
	item.Recompute()
	require.InDelta(t, 1000, item.Subtotal, 1e-9)
	require.InDelta(t, 100, item.DiscountAmount, 1e-9)
	require.InDelta(t, 900, item.AmountAfterDiscount, 1e-9)
	require.InDelta(t, 135, item.TaxAmount, 1e-9)
	require.InDelta(t, 1035, item.NetAmount, 1e-9)
	require.InDelta(t, 1035, item.Total, 1e-9)
}

func TestRecomputeFixedAndNoDiscount(t *testing.T) {
	item := Item{OrderedQuantity: 5, UnitPrice: 40, DiscountType: DiscountFixed, Discount: 25}
	item.Recompute()
	require.InDelta(t, 175, item.AmountAfterDiscount, 1e-9)

	item = Item{OrderedQuantity: 5, UnitPrice: 40, DiscountType: DiscountNone, Discount: 99}
	item.Recompute()
	require.Zero(t, item.DiscountAmount)
	require.InDelta(t, 200, item.NetAmount, 1e-9)
}

func TestRecomputeDeliveryStatus(t *testing.T) {
	item := Item{OrderedQuantity: 10}
	item.Recompute()
	require.Equal(t, DeliveryPending, item.DeliveryStatus)

	item.ReceivedQuantity = 4
	item.Recompute()
	require.Equal(t, DeliveryPartiallyReceived, item.DeliveryStatus)

	item.ReceivedQuantity = 10
	item.Recompute()
	require.Equal(t, DeliveryFullyReceived, item.DeliveryStatus)

	item.ReceivedQuantity = 12
	item.Recompute()
	require.Equal(t, DeliveryOverReceived, item.DeliveryStatus)
}

func TestRecomputeIdempotent(t *testing.T) {
	item := Item{
		OrderedQuantity:  8,
		UnitPrice:        12.5,
		DiscountType:     DiscountPercentage,
		Discount:         5,
		TaxRate:          20,
		ReceivedQuantity: 3,
		RejectedQuantity: 1,
	}
	item.Recompute()
	first := item
	item.Recompute()
	require.Equal(t, first, item)
}

func TestReceiveGuards(t *testing.T) {
	now := time.Now()
	item := Item{OrderedQuantity: 10, ReceivedQuantity: 8}

	require.ErrorIs(t, item.Receive(ReceiveInput{Quantity: 0, At: now}), ErrInvalidQuantity)
	require.ErrorIs(t, item.Receive(ReceiveInput{Quantity: -2, At: now}), ErrInvalidQuantity)

	err := item.Receive(ReceiveInput{Quantity: 5, ReceivedBy: "gudang", At: now})
	require.ErrorIs(t, err, ErrOverReceipt)
	require.InDelta(t, 8, item.ReceivedQuantity, 1e-9)
	require.Empty(t, item.Ledger)

	require.NoError(t, item.Receive(ReceiveInput{Quantity: 2, ReceivedBy: "gudang", At: now}))
	require.InDelta(t, 10, item.ReceivedQuantity, 1e-9)
	require.Len(t, item.Ledger, 1)
	require.Equal(t, LedgerReceipt, item.Ledger[0].Type)
}

func TestReturnGuardsAndBookkeeping(t *testing.T) {
	now := time.Now()
	item := Item{OrderedQuantity: 10, ReceivedQuantity: 6}

	require.ErrorIs(t, item.Return(ReturnInput{Quantity: 0, At: now}), ErrInvalidQuantity)
	require.ErrorIs(t, item.Return(ReturnInput{Quantity: 7, At: now}), ErrExcessReturn)

	require.NoError(t, item.Return(ReturnInput{Quantity: 2, Reason: "damaged", Condition: "broken seal", ProcessedBy: "qc", At: now}))
	require.InDelta(t, 4, item.ReceivedQuantity, 1e-9)
	require.InDelta(t, 2, item.RejectedQuantity, 1e-9)
	require.Len(t, item.Returns, 1)
	require.Len(t, item.Ledger, 1)
	require.Equal(t, LedgerReturn, item.Ledger[0].Type)

	item.Recompute()
	require.InDelta(t, item.ReceivedQuantity-item.RejectedQuantity, item.AcceptedQuantity, 1e-9)
}

func TestAcceptedQuantityInvariantAfterEveryMutation(t *testing.T) {
	now := time.Now()
	item := Item{OrderedQuantity: 20, UnitPrice: 10}
	steps := []func() error{
		func() error { return item.Receive(ReceiveInput{Quantity: 5, ReceivedBy: "a", At: now}) },
		func() error { return item.Receive(ReceiveInput{Quantity: 10, ReceivedBy: "a", At: now}) },
		func() error { return item.Return(ReturnInput{Quantity: 3, Reason: "r", Condition: "c", ProcessedBy: "b", At: now}) },
		func() error { return item.Return(ReturnInput{Quantity: 1, Reason: "r", Condition: "c", ProcessedBy: "b", At: now}) },
	}
	for _, step := range steps {
		require.NoError(t, step())
		item.Recompute()
		require.InDelta(t, item.ReceivedQuantity-item.RejectedQuantity, item.AcceptedQuantity, 1e-9)
	}
}

func TestQualityCheckOverwrites(t *testing.T) {
	now := time.Now()
	item := Item{QualityStatus: QualityPassed, Quality: QualityCheck{PerformedBy: "first"}}
	item.ApplyQualityCheck(QualityCheckInput{PerformedBy: "second", Status: QualityFailed, Defects: []string{"crack"}, At: now})
	require.Equal(t, QualityFailed, item.QualityStatus)
	require.Equal(t, "second", item.Quality.PerformedBy)
	require.Equal(t, []string{"crack"}, item.Quality.Defects)
}

func TestCancelRules(t *testing.T) {
	now := time.Now()
	item := Item{OrderedQuantity: 5, ReceivedQuantity: 1}
	require.ErrorIs(t, item.Cancel("purchasing", "supplier issue", now), ErrIllegalCancellation)

	item.ReceivedQuantity = 0
	require.NoError(t, item.Cancel("purchasing", "supplier issue", now))
	require.Equal(t, LineCancelled, item.LineStatus)

	item.Recompute()
	require.Equal(t, DeliveryCancelled, item.DeliveryStatus)
}

func TestEnrichFromOrder(t *testing.T) {
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	item := Item{}

	item.EnrichFromOrder(nil)
	require.Nil(t, item.ExpectedDeliveryDate)

	item.EnrichFromOrder(&OrderHeader{ID: 1})
	require.Nil(t, item.ExpectedDeliveryDate)

	item.EnrichFromOrder(&OrderHeader{ID: 1, DeliveryDate: &date})
	require.NotNil(t, item.ExpectedDeliveryDate)
	require.Equal(t, date, *item.ExpectedDeliveryDate)

	// Already set: the parent does not override.
	other := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	item.EnrichFromOrder(&OrderHeader{ID: 1, DeliveryDate: &other})
	require.Equal(t, date, *item.ExpectedDeliveryDate)
}

func TestValidateItem(t *testing.T) {
	item := Item{PurchaseOrderID: 1, ProductID: 2, OrderedQuantity: 5, UnitPrice: 10, DiscountType: DiscountNone}
	require.Nil(t, item.Validate())

	bad := Item{OrderedQuantity: -1, TaxRate: 150, Discount: -5, DiscountType: "half-off"}
	errs := bad.Validate()
	require.Contains(t, errs, "purchase_order_id")
	require.Contains(t, errs, "product_id")
	require.Contains(t, errs, "ordered_quantity")
	require.Contains(t, errs, "tax_rate")
	require.Contains(t, errs, "discount")
	require.Contains(t, errs, "discount_type")
}
