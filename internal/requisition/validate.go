package requisition

import "fmt"

var validStatuses = map[Status]bool{
	StatusRequested:         true,
	StatusApproved:          true,
	StatusRejected:          true,
	StatusPartiallyApproved: true,
	StatusOnHold:            true,
	StatusCancelled:         true,
	StatusConvertedToPO:     true,
}

var validUrgencies = map[Urgency]bool{
	UrgencyLow:      true,
	UrgencyMedium:   true,
	UrgencyHigh:     true,
	UrgencyCritical: true,
}

// Validate checks range and enum constraints and returns one message per
// offending field. It runs before the recompute step on every persist.
func (it *Item) Validate() map[string]string {
	errs := map[string]string{}
	if it.RequisitionID == 0 {
		errs["requisition_id"] = "requisition reference required"
	}
	if it.ProductID == 0 {
		errs["product_id"] = "product reference required"
	}
	if it.Quantity <= 0 {
		errs["quantity"] = "quantity must be positive"
	}
	if it.EstimatedUnitPrice < 0 {
		errs["estimated_unit_price"] = "estimated unit price cannot be negative"
	}
	if it.ApprovedQuantity < 0 {
		errs["approved_quantity"] = "approved quantity cannot be negative"
	}
	if it.ApprovedQuantity > it.Quantity {
		errs["approved_quantity"] = "approved quantity cannot exceed requested quantity"
	}
	if it.Status != "" && !validStatuses[it.Status] {
		errs["status"] = fmt.Sprintf("unknown status %q", it.Status)
	}
	if it.Urgency != "" && !validUrgencies[it.Urgency] {
		errs["urgency"] = fmt.Sprintf("unknown urgency %q", it.Urgency)
	}
	if it.Budget.Amount < 0 {
		errs["budget_amount"] = "budget amount cannot be negative"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
