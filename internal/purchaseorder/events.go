package purchaseorder

import (
	"context"
	"time"
)

// ReceiptPostedEvent captures a posted goods receipt for integration mapping.
type ReceiptPostedEvent struct {
	ItemID          int64
	PurchaseOrderID int64
	ProductID       int64
	Quantity        float64
	ReceivedBy      string
	ReceivedAt      time.Time
	Location        string
}

// ReturnPostedEvent captures a posted return for integration mapping.
type ReturnPostedEvent struct {
	ItemID          int64
	PurchaseOrderID int64
	ProductID       int64
	Quantity        float64
	Reason          string
	Condition       string
	ProcessedBy     string
	ProcessedAt     time.Time
}

// IntegrationHandler receives purchase order line events for downstream
// stock and ledger integration.
type IntegrationHandler interface {
	HandleReceiptPosted(ctx context.Context, evt ReceiptPostedEvent) error
	HandleReturnPosted(ctx context.Context, evt ReturnPostedEvent) error
}
