package purchaseorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/procurehub/procurehub/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, purchaseOrderID int64) ([]Item, error)
	GetOrderHeader(ctx context.Context, id int64) (OrderHeader, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort deduplicates receipt postings by reference key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service orchestrates the purchase order line workflow.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	locker      *shared.RecordLocker
	integration IntegrationHandler
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the purchase order service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, locker *shared.RecordLocker, integration IntegrationHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idempotency: idem, locker: locker, integration: integration, logger: logger, now: time.Now}
}

// CreateItemInput describes a new purchase order line.
type CreateItemInput struct {
	PurchaseOrderID      int64
	ProductID            int64
	OrderedQuantity      float64
	UnitPrice            float64
	TaxRate              float64
	DiscountType         DiscountType
	Discount             float64
	ExpectedDeliveryDate *time.Time
}

// ReceiveItemsInput describes a goods receipt request.
type ReceiveItemsInput struct {
	Quantity   float64
	ReceivedBy string
	Notes      string
	Location   string
	// Reference deduplicates retried postings; empty skips the idempotency check.
	Reference string
}

// ReturnItemsInput describes a return request.
type ReturnItemsInput struct {
	Quantity    float64
	Reason      string
	Condition   string
	ProcessedBy string
	Notes       string
}

// QualityCheckRequest describes an inspection submission.
type QualityCheckRequest struct {
	PerformedBy string
	Status      QualityStatus
	Notes       string
	Defects     []string
}

// CreateItem validates, enriches, recomputes and persists a new line.
// The delivery date is backfilled from the parent order when unset; a missing
// parent leaves the field empty rather than failing the create.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	item := Item{
		PurchaseOrderID:      input.PurchaseOrderID,
		ProductID:            input.ProductID,
		OrderedQuantity:      input.OrderedQuantity,
		UnitPrice:            input.UnitPrice,
		TaxRate:              input.TaxRate,
		DiscountType:         input.DiscountType,
		Discount:             input.Discount,
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
	}
	if fields := item.Validate(); fields != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrValidation, fields)
	}
	if item.ExpectedDeliveryDate == nil {
		header, err := s.repo.GetOrderHeader(ctx, input.PurchaseOrderID)
		if err == nil {
			item.EnrichFromOrder(&header)
		} else {
			s.logger.Warn("order header lookup", slog.Int64("po_id", input.PurchaseOrderID), slog.Any("error", err))
		}
	}
	item.Recompute()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, "PO_ITEM_CREATE", item.ID, map[string]any{"po_id": item.PurchaseOrderID, "product_id": item.ProductID})
	return item, nil
}

// ReceiveItems posts a goods receipt against the line. A rejected receipt
// releases the idempotency key so the caller can retry a corrected posting
// under the same reference.
func (s *Service) ReceiveItems(ctx context.Context, itemID int64, input ReceiveItemsInput) (Item, error) {
	key := ""
	inserted := false
	if input.Reference != "" && s.idempotency != nil {
		key = fmt.Sprintf("PO_RECEIPT:%s", input.Reference)
		if err := s.idempotency.CheckAndInsert(ctx, key, "purchaseorder.receipt"); err != nil {
			return Item{}, err
		}
		inserted = true
	}
	at := s.now()
	item, err := s.mutateItem(ctx, itemID, "PO_ITEM_RECEIVE", func(item *Item) error {
		return item.Receive(ReceiveInput{
			Quantity:   input.Quantity,
			ReceivedBy: input.ReceivedBy,
			Notes:      input.Notes,
			Location:   input.Location,
			At:         at,
		})
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Item{}, err
	}
	if s.integration != nil {
		evt := ReceiptPostedEvent{
			ItemID:          item.ID,
			PurchaseOrderID: item.PurchaseOrderID,
			ProductID:       item.ProductID,
			Quantity:        input.Quantity,
			ReceivedBy:      input.ReceivedBy,
			ReceivedAt:      at,
			Location:        input.Location,
		}
		if err := s.integration.HandleReceiptPosted(ctx, evt); err != nil {
			s.logger.Warn("receipt integration", slog.Int64("item_id", item.ID), slog.Any("error", err))
		}
	}
	return item, nil
}

// ReturnItems posts a return of previously received goods.
func (s *Service) ReturnItems(ctx context.Context, itemID int64, input ReturnItemsInput) (Item, error) {
	at := s.now()
	item, err := s.mutateItem(ctx, itemID, "PO_ITEM_RETURN", func(item *Item) error {
		return item.Return(ReturnInput{
			Quantity:    input.Quantity,
			Reason:      input.Reason,
			Condition:   input.Condition,
			ProcessedBy: input.ProcessedBy,
			Notes:       input.Notes,
			At:          at,
		})
	})
	if err != nil {
		return Item{}, err
	}
	if s.integration != nil {
		evt := ReturnPostedEvent{
			ItemID:          item.ID,
			PurchaseOrderID: item.PurchaseOrderID,
			ProductID:       item.ProductID,
			Quantity:        input.Quantity,
			Reason:          input.Reason,
			Condition:       input.Condition,
			ProcessedBy:     input.ProcessedBy,
			ProcessedAt:     at,
		}
		if err := s.integration.HandleReturnPosted(ctx, evt); err != nil {
			s.logger.Warn("return integration", slog.Int64("item_id", item.ID), slog.Any("error", err))
		}
	}
	return item, nil
}

// PerformQualityCheck overwrites the quality block on the line.
func (s *Service) PerformQualityCheck(ctx context.Context, itemID int64, input QualityCheckRequest) (Item, error) {
	at := s.now()
	return s.mutateItem(ctx, itemID, "PO_ITEM_QUALITY_CHECK", func(item *Item) error {
		item.ApplyQualityCheck(QualityCheckInput{
			PerformedBy: input.PerformedBy,
			Status:      input.Status,
			Notes:       input.Notes,
			Defects:     input.Defects,
			At:          at,
		})
		return nil
	})
}

// CancelLine cancels the line when nothing has been received yet.
func (s *Service) CancelLine(ctx context.Context, itemID int64, cancelledBy, reason string) (Item, error) {
	at := s.now()
	return s.mutateItem(ctx, itemID, "PO_ITEM_CANCEL", func(item *Item) error {
		return item.Cancel(cancelledBy, reason, at)
	})
}

// GetItem loads one line.
func (s *Service) GetItem(ctx context.Context, itemID int64) (Item, error) {
	return s.repo.GetItem(ctx, itemID)
}

// ListItems returns all lines of one purchase order.
func (s *Service) ListItems(ctx context.Context, purchaseOrderID int64) ([]Item, error) {
	return s.repo.ListItems(ctx, purchaseOrderID)
}

func (s *Service) mutateItem(ctx context.Context, itemID int64, action string, mutate func(*Item) error) (Item, error) {
	lockKey := shared.RecordLockKey("po_item", itemID)
	if err := s.locker.Acquire(ctx, lockKey); err != nil {
		return Item{}, err
	}
	defer s.locker.Release(ctx, lockKey)

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return Item{}, err
	}
	if err := mutate(&item); err != nil {
		return Item{}, err
	}
	if fields := item.Validate(); fields != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrValidation, fields)
	}
	item.Recompute()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateItem(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}
	item.Version++
	s.recordAudit(ctx, action, item.ID, map[string]any{"po_id": item.PurchaseOrderID})
	return item, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "purchaseorder", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
