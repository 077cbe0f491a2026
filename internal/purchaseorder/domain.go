package purchaseorder

import (
	"errors"
	"time"
)

// DeliveryStatus is derived from received versus ordered quantity.
type DeliveryStatus string

const (
	DeliveryPending           DeliveryStatus = "pending"
	DeliveryPartiallyReceived DeliveryStatus = "partially_received"
	DeliveryFullyReceived     DeliveryStatus = "fully_received"
	DeliveryOverReceived      DeliveryStatus = "over_received"
	DeliveryCancelled         DeliveryStatus = "cancelled"
)

// QualityStatus tracks the latest quality check outcome.
type QualityStatus string

const (
	QualityPending QualityStatus = "pending"
	QualityPassed  QualityStatus = "passed"
	QualityFailed  QualityStatus = "failed"
	QualityPartial QualityStatus = "partial"
)

// LineStatus is the administrative status of the line itself.
type LineStatus string

const (
	LineActive    LineStatus = "active"
	LineCancelled LineStatus = "cancelled"
	LineClosed    LineStatus = "closed"
)

// DiscountType selects how the discount value applies to the subtotal.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
	DiscountNone       DiscountType = "none"
)

// LedgerEntryType classifies inventory-update ledger entries.
type LedgerEntryType string

const (
	LedgerReceipt    LedgerEntryType = "receipt"
	LedgerReturn     LedgerEntryType = "return"
	LedgerAdjustment LedgerEntryType = "adjustment"
)

// LedgerEntry is one append-only inventory-update record on the line.
type LedgerEntry struct {
	Type     LedgerEntryType `json:"type"`
	Quantity float64         `json:"quantity"`
	By       string          `json:"by"`
	At       time.Time       `json:"at"`
	Notes    string          `json:"notes,omitempty"`
	Location string          `json:"location,omitempty"`
}

// ReturnEntry is one append-only return-history record.
type ReturnEntry struct {
	Quantity    float64   `json:"quantity"`
	Reason      string    `json:"reason"`
	Condition   string    `json:"condition"`
	ProcessedBy string    `json:"processed_by"`
	At          time.Time `json:"at"`
	Notes       string    `json:"notes,omitempty"`
}

// QualityCheck records the latest inspection.
type QualityCheck struct {
	PerformedBy string    `json:"performed_by"`
	At          time.Time `json:"at"`
	Notes       string    `json:"notes,omitempty"`
	Defects     []string  `json:"defects,omitempty"`
}

// Item is one purchase order line.
type Item struct {
	ID              int64
	PurchaseOrderID int64
	ProductID       int64

	OrderedQuantity float64
	UnitPrice       float64
	TaxRate         float64
	DiscountType    DiscountType
	Discount        float64

	// Derived financials, recomputed before every persist.
	Subtotal            float64
	DiscountAmount      float64
	AmountAfterDiscount float64
	TaxAmount           float64
	NetAmount           float64
	Total               float64

	ReceivedQuantity float64
	RejectedQuantity float64
	AcceptedQuantity float64

	DeliveryStatus DeliveryStatus
	QualityStatus  QualityStatus
	Quality        QualityCheck

	Ledger  []LedgerEntry
	Returns []ReturnEntry

	LineStatus LineStatus

	ExpectedDeliveryDate *time.Time
	LastReceivedBy       string
	LastReceivedAt       *time.Time

	CancelledBy     string
	CancelledAt     *time.Time
	CancelledReason string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderHeader carries the parent purchase order fields the line needs for
// enrichment. It is read from the collaborator, never owned here.
type OrderHeader struct {
	ID           int64
	Number       string
	DeliveryDate *time.Time
}

var (
	// ErrInvalidQuantity occurs on non-positive receive or return quantities.
	ErrInvalidQuantity = errors.New("purchaseorder: quantity must be positive")
	// ErrOverReceipt occurs when a receipt would exceed the ordered quantity.
	ErrOverReceipt = errors.New("purchaseorder: receipt exceeds ordered quantity")
	// ErrExcessReturn occurs when a return exceeds the received quantity.
	ErrExcessReturn = errors.New("purchaseorder: return exceeds received quantity")
	// ErrIllegalCancellation occurs when cancelling a line with received stock.
	ErrIllegalCancellation = errors.New("purchaseorder: cannot cancel line with received quantity")
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("purchaseorder: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("purchaseorder: invalid input")
)
