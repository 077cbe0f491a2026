package requisition

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
	ListItems(ctx context.Context, requisitionID int64) ([]Item, error)
	ListOpenItems(ctx context.Context) ([]Item, error)
}

// ProductPort supplies the product stock snapshot used to derive stock status.
type ProductPort interface {
	GetProduct(ctx context.Context, id int64) (ProductSnapshot, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the requisition line workflow.
type Service struct {
	repo     RepositoryPort
	products ProductPort
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the requisition service.
func NewService(repo RepositoryPort, products ProductPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, products: products, audit: audit, logger: logger, now: time.Now}
}

// CreateItemInput describes a new requisition line.
type CreateItemInput struct {
	RequisitionID          int64
	ProductID              int64
	Quantity               float64
	EstimatedUnitPrice     float64
	Urgency                Urgency
	BudgetCode             string
	BudgetAmount           float64
	AvailableBalance       *float64
	AlternativeProducts    []AlternativeProduct
	SourcingRecommendation string
}

// ApproveItemInput carries a full-approval decision from the caller.
type ApproveItemInput struct {
	Approver  string
	Quantity  *float64
	UnitPrice *float64
	Comments  string
}

// PartialApproveItemInput carries a partial-approval decision.
type PartialApproveItemInput struct {
	Approver  string
	Quantity  float64
	UnitPrice *float64
	Comments  string
}

// RejectItemInput carries a rejection decision.
type RejectItemInput struct {
	Rejector string
	Reason   string
}

// CreateItem validates, enriches, recomputes and persists a new line.
// The stock snapshot is captured from the product collaborator; a missing
// product degrades silently and leaves the inventory block empty.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	item := Item{
		RequisitionID:      input.RequisitionID,
		ProductID:          input.ProductID,
		Quantity:           input.Quantity,
		EstimatedUnitPrice: input.EstimatedUnitPrice,
		Status:             StatusRequested,
		Urgency:            input.Urgency,
		Budget: BudgetAllocation{
			Code:             input.BudgetCode,
			Amount:           input.BudgetAmount,
			AvailableBalance: input.AvailableBalance,
		},
		AlternativeProducts:    input.AlternativeProducts,
		SourcingRecommendation: input.SourcingRecommendation,
	}
	if fields := item.Validate(); fields != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrValidation, fields)
	}
	if s.products != nil {
		snapshot, err := s.products.GetProduct(ctx, input.ProductID)
		if err == nil {
			item.ApplyStockSnapshot(snapshot, s.now())
		} else {
			s.logger.Warn("product snapshot lookup", slog.Int64("product_id", input.ProductID), slog.Any("error", err))
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
	s.recordAudit(ctx, "REQ_ITEM_CREATE", item.ID, map[string]any{"requisition_id": item.RequisitionID, "product_id": item.ProductID})
	return item, nil
}

// ApproveItem approves the full (or overridden) quantity.
func (s *Service) ApproveItem(ctx context.Context, itemID int64, input ApproveItemInput) (Item, error) {
	at := s.now()
	return s.mutateItem(ctx, itemID, "REQ_ITEM_APPROVE", func(item *Item) error {
		return item.Approve(ApproveInput{
			Approver:  input.Approver,
			Quantity:  input.Quantity,
			UnitPrice: input.UnitPrice,
			Comments:  input.Comments,
			At:        at,
		})
	})
}

// PartiallyApproveItem approves strictly less than the requested quantity.
func (s *Service) PartiallyApproveItem(ctx context.Context, itemID int64, input PartialApproveItemInput) (Item, error) {
	at := s.now()
	return s.mutateItem(ctx, itemID, "REQ_ITEM_PARTIAL_APPROVE", func(item *Item) error {
		return item.PartiallyApprove(PartialApproveInput{
			Approver:  input.Approver,
			Quantity:  input.Quantity,
			UnitPrice: input.UnitPrice,
			Comments:  input.Comments,
			At:        at,
		})
	})
}

// RejectItem rejects the line.
func (s *Service) RejectItem(ctx context.Context, itemID int64, input RejectItemInput) (Item, error) {
	at := s.now()
	return s.mutateItem(ctx, itemID, "REQ_ITEM_REJECT", func(item *Item) error {
		return item.Reject(RejectInput{Rejector: input.Rejector, Reason: input.Reason, At: at})
	})
}

// GetItem loads one line.
func (s *Service) GetItem(ctx context.Context, itemID int64) (Item, error) {
	return s.repo.GetItem(ctx, itemID)
}

// ItemMetrics derives the read-only figures for one line.
func (s *Service) ItemMetrics(ctx context.Context, itemID int64) (ItemMetrics, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return ItemMetrics{}, err
	}
	return item.Metrics(), nil
}

// ListItems returns all lines of one requisition.
func (s *Service) ListItems(ctx context.Context, requisitionID int64) ([]Item, error) {
	return s.repo.ListItems(ctx, requisitionID)
}

// RefreshStockStatuses re-derives the stock status of every non-terminal line
// from a fresh product snapshot. Lines whose product lookup fails are skipped;
// the first persistence error aborts the sweep.
func (s *Service) RefreshStockStatuses(ctx context.Context) (int, error) {
	if s.products == nil {
		return 0, nil
	}
	items, err := s.repo.ListOpenItems(ctx)
	if err != nil {
		return 0, err
	}
	refreshed := 0
	for _, item := range items {
		snapshot, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			s.logger.Warn("product snapshot lookup", slog.Int64("product_id", item.ProductID), slog.Any("error", err))
			continue
		}
		item.ApplyStockSnapshot(snapshot, s.now())
		item.Recompute()
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.UpdateItem(ctx, item)
		})
		if err != nil {
			return refreshed, err
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *Service) mutateItem(ctx context.Context, itemID int64, action string, mutate func(*Item) error) (Item, error) {
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
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateItem(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}
	item.Version++
	s.recordAudit(ctx, action, item.ID, map[string]any{"requisition_id": item.RequisitionID, "status": string(item.Status)})
	return item, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "requisition", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
