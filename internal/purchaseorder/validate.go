package purchaseorder

import "fmt"

var validDiscountTypes = map[DiscountType]bool{
	DiscountPercentage: true,
	DiscountFixed:      true,
	DiscountNone:       true,
}

var validQualityStatuses = map[QualityStatus]bool{
	QualityPending: true,
	QualityPassed:  true,
	QualityFailed:  true,
	QualityPartial: true,
}

// Validate checks range and enum constraints and returns one message per
// offending field. It runs before the recompute step on every persist.
func (it *Item) Validate() map[string]string {
	errs := map[string]string{}
	if it.PurchaseOrderID == 0 {
		errs["purchase_order_id"] = "purchase order reference required"
	}
	if it.ProductID == 0 {
		errs["product_id"] = "product reference required"
	}
	if it.OrderedQuantity <= 0 {
		errs["ordered_quantity"] = "ordered quantity must be positive"
	}
	if it.UnitPrice < 0 {
		errs["unit_price"] = "unit price cannot be negative"
	}
	if it.TaxRate < 0 || it.TaxRate > 100 {
		errs["tax_rate"] = "tax rate must be between 0 and 100"
	}
	if it.Discount < 0 {
		errs["discount"] = "discount cannot be negative"
	}
	if it.DiscountType == DiscountPercentage && it.Discount > 100 {
		errs["discount"] = "percentage discount cannot exceed 100"
	}
	if it.DiscountType != "" && !validDiscountTypes[it.DiscountType] {
		errs["discount_type"] = fmt.Sprintf("unknown discount type %q", it.DiscountType)
	}
	if it.QualityStatus != "" && !validQualityStatuses[it.QualityStatus] {
		errs["quality_status"] = fmt.Sprintf("unknown quality status %q", it.QualityStatus)
	}
	if it.RejectedQuantity < 0 {
		errs["rejected_quantity"] = "rejected quantity cannot be negative"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
