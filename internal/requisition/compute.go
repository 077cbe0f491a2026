package requisition

import (
	"fmt"
	"time"
)

// ApproveInput carries the decision fields for a full approval. Quantity and
// UnitPrice are optional; nil falls back to the requested figures.
type ApproveInput struct {
	Approver  string
	Quantity  *float64
	UnitPrice *float64
	Comments  string
	At        time.Time
}

// PartialApproveInput carries the decision fields for a partial approval.
// Quantity is mandatory and must be strictly below the requested quantity.
type PartialApproveInput struct {
	Approver  string
	Quantity  float64
	UnitPrice *float64
	Comments  string
	At        time.Time
}

// RejectInput carries the decision fields for a rejection.
type RejectInput struct {
	Rejector string
	Reason   string
	At       time.Time
}

// Approve marks the line approved for the requested (or overridden) quantity
// and price. An explicit quantity above the requested quantity is rejected so
// the approvedQuantity <= quantity invariant holds.
func (it *Item) Approve(input ApproveInput) error {
	if it.Status.IsTerminal() {
		return ErrTerminalStatus
	}
	quantity := it.Quantity
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: approved quantity must be positive", ErrInvalidArgument)
	}
	if quantity > it.Quantity {
		return fmt.Errorf("%w: approved quantity %v exceeds requested %v", ErrInvalidArgument, quantity, it.Quantity)
	}
	unitPrice := it.EstimatedUnitPrice
	if input.UnitPrice != nil {
		unitPrice = *input.UnitPrice
	}
	at := input.At
	it.Status = StatusApproved
	it.ApprovedQuantity = quantity
	it.ApprovedUnitPrice = unitPrice
	it.ApprovedBy = input.Approver
	it.ApprovedAt = &at
	it.ApprovalComments = input.Comments
	it.Recompute()
	return nil
}

// PartiallyApprove approves less than the requested quantity. A quantity at
// or above the requested quantity is an argument error; use Approve instead.
func (it *Item) PartiallyApprove(input PartialApproveInput) error {
	if it.Status.IsTerminal() {
		return ErrTerminalStatus
	}
	if input.Quantity <= 0 {
		return fmt.Errorf("%w: approved quantity must be positive", ErrInvalidArgument)
	}
	if input.Quantity >= it.Quantity {
		return fmt.Errorf("%w: partial approval quantity %v must be below requested %v", ErrInvalidArgument, input.Quantity, it.Quantity)
	}
	unitPrice := it.EstimatedUnitPrice
	if input.UnitPrice != nil {
		unitPrice = *input.UnitPrice
	}
	at := input.At
	it.Status = StatusPartiallyApproved
	it.ApprovedQuantity = input.Quantity
	it.ApprovedUnitPrice = unitPrice
	it.ApprovedBy = input.Approver
	it.ApprovedAt = &at
	it.ApprovalComments = input.Comments
	it.Recompute()
	return nil
}

// Reject marks the line rejected. No quantity math applies.
func (it *Item) Reject(input RejectInput) error {
	if it.Status.IsTerminal() {
		return ErrTerminalStatus
	}
	at := input.At
	it.Status = StatusRejected
	it.RejectedBy = input.Rejector
	it.RejectedAt = &at
	it.RejectionReason = input.Reason
	it.Recompute()
	return nil
}

// ApplyStockSnapshot re-derives the inventory block from a product snapshot.
func (it *Item) ApplyStockSnapshot(snapshot ProductSnapshot, at time.Time) {
	it.Inventory.CurrentStock = snapshot.CurrentStock
	it.Inventory.ReorderLevel = snapshot.ReorderLevel
	it.Inventory.CapturedAt = &at
	switch {
	case snapshot.CurrentStock == 0:
		it.Inventory.StockStatus = StockOutOfStock
	case snapshot.CurrentStock <= snapshot.ReorderLevel:
		it.Inventory.StockStatus = StockLow
	case snapshot.CurrentStock > 2*snapshot.ReorderLevel:
		it.Inventory.StockStatus = StockExcess
	default:
		it.Inventory.StockStatus = StockAdequate
	}
}

// Recompute refreshes every derived field from stored inputs. It runs before
// every persist; supplied derived values are never trusted.
func (it *Item) Recompute() {
	it.TotalEstimatedCost = it.Quantity * it.EstimatedUnitPrice
	if it.ApprovedQuantity > 0 {
		it.ApprovedTotalCost = it.ApprovedQuantity * it.ApprovedUnitPrice
	}
	if it.ActualUnitPrice > 0 {
		it.ActualTotalCost = it.Quantity * it.ActualUnitPrice
	}
	if it.Budget.AvailableBalance != nil {
		it.Budget.IsWithinBudget = it.TotalEstimatedCost <= *it.Budget.AvailableBalance
	}
	if it.Status == "" {
		it.Status = StatusRequested
	}
	if it.Urgency == "" {
		it.Urgency = UrgencyMedium
	}
}

// Metrics derives the read-only approval and cost-variance figures.
func (it *Item) Metrics() ItemMetrics {
	var m ItemMetrics
	if it.Quantity > 0 {
		m.ApprovalPercentage = it.ApprovedQuantity / it.Quantity * 100
	}
	m.CostVariance = it.ActualTotalCost - it.TotalEstimatedCost
	if it.TotalEstimatedCost != 0 {
		m.CostVariancePercent = m.CostVariance / it.TotalEstimatedCost * 100
	}
	return m
}
