package requisition

import (
	"errors"
	"time"
)

// Status is the lifecycle status of a requisition line.
type Status string

const (
	StatusRequested         Status = "requested"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusPartiallyApproved Status = "partially_approved"
	StatusOnHold            Status = "on_hold"
	StatusCancelled         Status = "cancelled"
	StatusConvertedToPO     Status = "converted_to_po"
)

// IsTerminal reports whether the status accepts no further workflow actions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusConvertedToPO:
		return true
	}
	return false
}

// StockStatus is derived from the product inventory snapshot.
type StockStatus string

const (
	StockAdequate   StockStatus = "adequate"
	StockLow        StockStatus = "low"
	StockOutOfStock StockStatus = "out_of_stock"
	StockExcess     StockStatus = "excess"
)

// Urgency classifies how quickly the line must be sourced.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// BudgetAllocation ties the line to a budget position. AvailableBalance is a
// pointer so "balance unknown" and "balance zero" stay distinguishable; the
// within-budget flag is only derived when the balance is known.
type BudgetAllocation struct {
	Code             string   `json:"code,omitempty"`
	Amount           float64  `json:"amount,omitempty"`
	AvailableBalance *float64 `json:"available_balance,omitempty"`
	IsWithinBudget   bool     `json:"is_within_budget"`
}

// InventorySnapshot is the product stock view captured at enrichment time.
type InventorySnapshot struct {
	CurrentStock float64     `json:"current_stock"`
	ReorderLevel float64     `json:"reorder_level"`
	StockStatus  StockStatus `json:"stock_status,omitempty"`
	CapturedAt   *time.Time  `json:"captured_at,omitempty"`
}

// AlternativeProduct is one substitute suggestion on the line.
type AlternativeProduct struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	UnitPrice float64 `json:"unit_price,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// Item is one requisition line.
type Item struct {
	ID            int64
	RequisitionID int64
	ProductID     int64

	Quantity           float64
	EstimatedUnitPrice float64
	// Derived, recomputed before every persist.
	TotalEstimatedCost float64

	Status Status

	ApprovedQuantity  float64
	ApprovedUnitPrice float64
	ApprovedTotalCost float64
	ApprovedBy        string
	ApprovedAt        *time.Time
	ApprovalComments  string

	RejectedBy      string
	RejectedAt      *time.Time
	RejectionReason string

	ActualUnitPrice float64
	ActualTotalCost float64

	Budget    BudgetAllocation
	Inventory InventorySnapshot

	Urgency                Urgency
	AlternativeProducts    []AlternativeProduct
	SourcingRecommendation string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductSnapshot carries the product fields the line needs for stock-status
// derivation. It is read from the collaborator, never owned here.
type ProductSnapshot struct {
	ID           int64
	CurrentStock float64
	ReorderLevel float64
}

// ItemMetrics are read-only derived figures, never persisted.
type ItemMetrics struct {
	ApprovalPercentage  float64 `json:"approval_percentage"`
	CostVariance        float64 `json:"cost_variance"`
	CostVariancePercent float64 `json:"cost_variance_percent"`
}

var (
	// ErrInvalidArgument occurs on a partial approval with a quantity that is
	// not strictly below the requested quantity, and similar argument misuse.
	ErrInvalidArgument = errors.New("requisition: invalid argument")
	// ErrTerminalStatus occurs when acting on a rejected, cancelled or converted line.
	ErrTerminalStatus = errors.New("requisition: line is in a terminal status")
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("requisition: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("requisition: invalid input")
)
