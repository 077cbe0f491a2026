package purchaseorder

import "time"

// ReceiveInput describes a goods receipt against the line.
type ReceiveInput struct {
	Quantity   float64
	ReceivedBy string
	Notes      string
	Location   string
	At         time.Time
}

// ReturnInput describes a return of previously received goods.
type ReturnInput struct {
	Quantity    float64
	Reason      string
	Condition   string
	ProcessedBy string
	Notes       string
	At          time.Time
}

// QualityCheckInput describes an inspection result.
type QualityCheckInput struct {
	PerformedBy string
	Status      QualityStatus
	Notes       string
	Defects     []string
	At          time.Time
}

// Receive increments the received quantity and appends a ledger entry.
// Receipts beyond the ordered quantity are refused; state is untouched on error.
func (it *Item) Receive(input ReceiveInput) error {
	if input.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if it.ReceivedQuantity+input.Quantity > it.OrderedQuantity {
		return ErrOverReceipt
	}
	it.ReceivedQuantity += input.Quantity
	it.LastReceivedBy = input.ReceivedBy
	at := input.At
	it.LastReceivedAt = &at
	it.Ledger = append(it.Ledger, LedgerEntry{
		Type:     LedgerReceipt,
		Quantity: input.Quantity,
		By:       input.ReceivedBy,
		At:       input.At,
		Notes:    input.Notes,
		Location: input.Location,
	})
	return nil
}

// Return moves quantity from received to rejected and appends both the
// return-history entry and a ledger entry.
func (it *Item) Return(input ReturnInput) error {
	if input.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if input.Quantity > it.ReceivedQuantity {
		return ErrExcessReturn
	}
	it.ReceivedQuantity -= input.Quantity
	it.RejectedQuantity += input.Quantity
	it.Returns = append(it.Returns, ReturnEntry{
		Quantity:    input.Quantity,
		Reason:      input.Reason,
		Condition:   input.Condition,
		ProcessedBy: input.ProcessedBy,
		At:          input.At,
		Notes:       input.Notes,
	})
	it.Ledger = append(it.Ledger, LedgerEntry{
		Type:     LedgerReturn,
		Quantity: input.Quantity,
		By:       input.ProcessedBy,
		At:       input.At,
		Notes:    input.Reason,
	})
	return nil
}

// ApplyQualityCheck overwrites the quality block unconditionally.
func (it *Item) ApplyQualityCheck(input QualityCheckInput) {
	it.QualityStatus = input.Status
	it.Quality = QualityCheck{
		PerformedBy: input.PerformedBy,
		At:          input.At,
		Notes:       input.Notes,
		Defects:     input.Defects,
	}
}

// Cancel marks the line cancelled. A line with received quantity cannot be
// cancelled; it has to go through returns first.
func (it *Item) Cancel(cancelledBy, reason string, at time.Time) error {
	if it.ReceivedQuantity > 0 {
		return ErrIllegalCancellation
	}
	it.LineStatus = LineCancelled
	it.CancelledBy = cancelledBy
	it.CancelledReason = reason
	it.CancelledAt = &at
	return nil
}

// EnrichFromOrder backfills the expected delivery date from the parent order.
// A missing parent or missing date leaves the field unset.
func (it *Item) EnrichFromOrder(header *OrderHeader) {
	if it.ExpectedDeliveryDate != nil || header == nil || header.DeliveryDate == nil {
		return
	}
	date := *header.DeliveryDate
	it.ExpectedDeliveryDate = &date
}

// Recompute refreshes every derived field from stored inputs. Supplied
// derived values are never trusted; the step is idempotent.
func (it *Item) Recompute() {
	it.Subtotal = it.OrderedQuantity * it.UnitPrice
	switch it.DiscountType {
	case DiscountPercentage:
		it.DiscountAmount = it.Subtotal * it.Discount / 100
	case DiscountFixed:
		it.DiscountAmount = it.Discount
	default:
		it.DiscountAmount = 0
	}
	it.AmountAfterDiscount = it.Subtotal - it.DiscountAmount
	it.TaxAmount = it.AmountAfterDiscount * it.TaxRate / 100
	it.NetAmount = it.AmountAfterDiscount + it.TaxAmount
	// Kept in sync with NetAmount for payload compatibility.
	it.Total = it.NetAmount

	it.AcceptedQuantity = it.ReceivedQuantity - it.RejectedQuantity

	switch {
	case it.LineStatus == LineCancelled:
		it.DeliveryStatus = DeliveryCancelled
	case it.ReceivedQuantity > it.OrderedQuantity:
		it.DeliveryStatus = DeliveryOverReceived
	case it.OrderedQuantity > 0 && it.ReceivedQuantity == it.OrderedQuantity:
		it.DeliveryStatus = DeliveryFullyReceived
	case it.ReceivedQuantity > 0:
		it.DeliveryStatus = DeliveryPartiallyReceived
	default:
		it.DeliveryStatus = DeliveryPending
	}

	if it.QualityStatus == "" {
		it.QualityStatus = QualityPending
	}
	if it.LineStatus == "" {
		it.LineStatus = LineActive
	}
	if it.DiscountType == "" {
		it.DiscountType = DiscountNone
	}
}
