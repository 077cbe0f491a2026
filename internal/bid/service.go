package bid

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/procurehub/procurehub/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBid(ctx context.Context, id int64) (Bid, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, bidID int64) ([]Item, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records and reads the sign-off trail of a bid document.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

const approvalModule = "BID"

// Service orchestrates bid item scoring and the bid status machine.
type Service struct {
	repo      RepositoryPort
	approvals ApprovalPort
	audit     AuditPort
	scoring   ScoringConfig
	now       func() time.Time
}

// NewService constructs the bid service. A zero ScoringConfig falls back to
// the default policy.
func NewService(repo RepositoryPort, approvals ApprovalPort, audit AuditPort, scoring ScoringConfig) *Service {
	if scoring == (ScoringConfig{}) {
		scoring = DefaultScoringConfig()
	}
	return &Service{repo: repo, approvals: approvals, audit: audit, scoring: scoring, now: time.Now}
}

// Scoring exposes the active scoring policy.
func (s *Service) Scoring() ScoringConfig {
	return s.scoring
}

// CreateItemInput describes a new bid line.
type CreateItemInput struct {
	BidID          int64
	RFQItemID      int64
	ProductID      int64
	UnitPrice      float64
	Quantity       float64
	DeliveryDays   int
	SpecCompliance Compliance
	Scores         ComplianceScores
	Warranty       Warranty
	AfterSales     AfterSales
	SpareParts     SpareParts
	Training       Training
}

// EvaluationInput carries evaluator-submitted component scores.
type EvaluationInput struct {
	Technical   float64
	Financial   float64
	Delivery    float64
	Quality     float64
	Compliance  float64
	EvaluatedBy int64
	Notes       string
}

// ChangeStatusInput describes a requested bid document transition.
type ChangeStatusInput struct {
	BidID   int64
	Next    Status
	Role    string
	ActorID int64
	Note    string
}

// CreateItem validates, recomputes and persists a new bid line.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	item := Item{
		BidID:          input.BidID,
		RFQItemID:      input.RFQItemID,
		ProductID:      input.ProductID,
		UnitPrice:      input.UnitPrice,
		Quantity:       input.Quantity,
		DeliveryDays:   input.DeliveryDays,
		SpecCompliance: input.SpecCompliance,
		Scores:         input.Scores,
		Warranty:       input.Warranty,
		AfterSales:     input.AfterSales,
		SpareParts:     input.SpareParts,
		Training:       input.Training,
	}
	if item.SpecCompliance == "" {
		item.SpecCompliance = ComplianceFull
	}
	if fields := item.Validate(); fields != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrValidation, fields)
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
	s.recordAudit(ctx, "BID_ITEM_CREATE", item.ID, map[string]any{"bid_id": item.BidID, "product_id": item.ProductID})
	return item, nil
}

// AddDeviation appends a deviation to the line and persists the recomputed record.
func (s *Service) AddDeviation(ctx context.Context, itemID int64, deviation Deviation) (Item, error) {
	return s.mutateItem(ctx, itemID, "BID_ITEM_DEVIATION", func(item *Item) error {
		return item.AddDeviation(deviation)
	})
}

// SetAlternativeProduct overwrites the alternative-offer block on the line.
func (s *Service) SetAlternativeProduct(ctx context.Context, itemID int64, alt Alternative) (Item, error) {
	return s.mutateItem(ctx, itemID, "BID_ITEM_ALTERNATIVE", func(item *Item) error {
		item.SetAlternative(alt)
		return nil
	})
}

// SetEvaluationScores stores evaluation scores with the weighted overall.
func (s *Service) SetEvaluationScores(ctx context.Context, itemID int64, input EvaluationInput) (Item, error) {
	return s.mutateItem(ctx, itemID, "BID_ITEM_EVALUATE", func(item *Item) error {
		scores := EvaluationScores{
			Technical:  input.Technical,
			Financial:  input.Financial,
			Delivery:   input.Delivery,
			Quality:    input.Quality,
			Compliance: input.Compliance,
			Notes:      input.Notes,
		}
		return item.SetEvaluationScores(scores, s.scoring, input.EvaluatedBy, s.now())
	})
}

// GetItem loads one bid line.
func (s *Service) GetItem(ctx context.Context, itemID int64) (Item, error) {
	return s.repo.GetItem(ctx, itemID)
}

// ItemMetrics derives the read-only competitiveness and risk figures for a line.
func (s *Service) ItemMetrics(ctx context.Context, itemID int64) (Item, ItemMetrics, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return Item{}, ItemMetrics{}, err
	}
	return item, item.Metrics(s.scoring), nil
}

// ListItems returns all lines of one bid.
func (s *Service) ListItems(ctx context.Context, bidID int64) ([]Item, error) {
	return s.repo.ListItems(ctx, bidID)
}

// RescoreBidItems re-derives the weighted evaluation overall for every
// evaluated line of one bid under the current scoring configuration. It is
// run after a configuration change; unevaluated lines are left alone.
func (s *Service) RescoreBidItems(ctx context.Context, bidID int64) (int, error) {
	items, err := s.repo.ListItems(ctx, bidID)
	if err != nil {
		return 0, err
	}
	rescored := 0
	for _, item := range items {
		if item.Evaluation.EvaluatedAt.IsZero() {
			continue
		}
		if err := item.SetEvaluationScores(item.Evaluation, s.scoring, item.Evaluation.EvaluatedBy, item.Evaluation.EvaluatedAt); err != nil {
			return rescored, err
		}
		item.Recompute()
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.UpdateItem(ctx, item)
		})
		if err != nil {
			return rescored, err
		}
		rescored++
	}
	return rescored, nil
}

// GetBid loads the bid document header.
func (s *Service) GetBid(ctx context.Context, bidID int64) (Bid, error) {
	return s.repo.GetBid(ctx, bidID)
}

// RecommendedNext suggests the next status for a bid given context flags.
func (s *Service) RecommendedNext(ctx context.Context, bidID int64, flags Context) (Status, error) {
	b, err := s.repo.GetBid(ctx, bidID)
	if err != nil {
		return "", err
	}
	return RecommendedNextStatus(b.Status, flags), nil
}

// ChangeStatus runs the requested transition through the state machine and
// the role/amount gate, then persists it under the bid's version.
func (s *Service) ChangeStatus(ctx context.Context, input ChangeStatusInput) (Bid, error) {
	b, err := s.repo.GetBid(ctx, input.BidID)
	if err != nil {
		return Bid{}, err
	}
	if err := ValidateStatusChange(b.Status, input.Next, input.Role, b.Amount); err != nil {
		return Bid{}, err
	}
	previous := b.Status
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateBidStatus(ctx, b.ID, input.Next, b.Version)
	})
	if err != nil {
		return Bid{}, err
	}
	b.Status = input.Next
	b.Version++
	if input.Next == StatusAwarded || input.Next == StatusCancelled {
		action := shared.ApprovalApprove
		if input.Next == StatusCancelled {
			action = shared.ApprovalReject
		}
		if s.approvals != nil {
			ref := bidApprovalRef(b.ID)
			// The trail always opens with a SUBMIT entry, even when the bid
			// was created before approval tracking existed.
			_ = s.approvals.EnsureSubmit(ctx, approvalModule, ref, input.ActorID, "")
			_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: approvalModule, RefID: ref, ActorID: input.ActorID, Action: action, Note: input.Note})
		}
	}
	s.recordAudit(ctx, "BID_STATUS_CHANGE", b.ID, map[string]any{"from": string(previous), "to": string(input.Next), "role": input.Role})
	return b, nil
}

// ApprovalHistory returns the sign-off trail recorded against one bid,
// oldest first.
func (s *Service) ApprovalHistory(ctx context.Context, bidID int64) ([]shared.ApprovalLog, error) {
	if _, err := s.repo.GetBid(ctx, bidID); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, approvalModule, bidApprovalRef(bidID))
}

// bidApprovalRef derives the stable approval reference of a bid document.
func bidApprovalRef(bidID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", approvalModule, bidID)))
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
	item.Recompute()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateItem(ctx, item)
	})
	if err != nil {
		return Item{}, err
	}
	item.Version++
	s.recordAudit(ctx, action, item.ID, map[string]any{"bid_id": item.BidID})
	return item, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "bid", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
