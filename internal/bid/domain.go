package bid

import (
	"errors"
	"time"
)

// Status enumerates the bid document lifecycle.
type Status string

const (
	StatusDraft                 Status = "draft"
	StatusPublished             Status = "published"
	StatusOpen                  Status = "open"
	StatusUnderEvaluation       Status = "under_evaluation"
	StatusAwarded               Status = "awarded"
	StatusRejected              Status = "rejected"
	StatusCancelled             Status = "cancelled"
	StatusCompleted             Status = "completed"
	StatusExtended              Status = "extended"
	StatusAwaitingClarification Status = "awaiting_clarification"
	StatusUnderLegalReview      Status = "under_legal_review"
	StatusNegotiation           Status = "negotiation"
	StatusOnHold                Status = "on_hold"
)

// Role names accepted by the status gate. They arrive from the caller; the
// engine does not resolve them.
const (
	RoleManager  = "manager"
	RoleDirector = "director"
	RoleVP       = "vp"
	RoleAdmin    = "admin"
)

// Compliance describes how closely a bid line matches requested specifications.
type Compliance string

const (
	ComplianceFull        Compliance = "fully_compliant"
	CompliancePartial     Compliance = "partially_compliant"
	ComplianceNone        Compliance = "non_compliant"
	ComplianceAlternative Compliance = "alternative_offered"
)

// DeviationImpact grades a declared deviation.
type DeviationImpact string

const (
	ImpactMinor    DeviationImpact = "minor"
	ImpactModerate DeviationImpact = "moderate"
	ImpactMajor    DeviationImpact = "major"
	ImpactCritical DeviationImpact = "critical"
)

// RiskLevel buckets the additive risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Bid carries the fields of the bid document the engine acts on. The rest of
// the document lives with the UI/API collaborators.
type Bid struct {
	ID      int64
	Number  string
	Status  Status
	Amount  float64
	Version int64
}

// Deviation is a supplier-declared departure from requested specifications.
type Deviation struct {
	Aspect           string          `json:"aspect"`
	Description      string          `json:"description"`
	Impact           DeviationImpact `json:"impact"`
	Justification    string          `json:"justification,omitempty"`
	ProposedSolution string          `json:"proposed_solution,omitempty"`
}

// ComplianceScores holds the 0-100 sub-scores and their derived overall.
type ComplianceScores struct {
	Technical     float64 `json:"technical"`
	Quality       float64 `json:"quality"`
	Documentation float64 `json:"documentation"`
	Overall       float64 `json:"overall"`
}

// Alternative describes a substitute-product offer on a bid line.
type Alternative struct {
	Offered            bool    `json:"offered"`
	ProductID          int64   `json:"product_id,omitempty"`
	Description        string  `json:"description,omitempty"`
	OriginalPrice      float64 `json:"original_price,omitempty"`
	AlternativePrice   float64 `json:"alternative_price,omitempty"`
	PriceDifference    float64 `json:"price_difference"`
	PriceDifferencePct float64 `json:"price_difference_pct"`
}

// Warranty terms attached to a bid line.
type Warranty struct {
	PeriodMonths int    `json:"period_months"`
	Terms        string `json:"terms,omitempty"`
}

// AfterSales support offer.
type AfterSales struct {
	Available   bool   `json:"available"`
	Description string `json:"description,omitempty"`
}

// SpareParts availability offer.
type SpareParts struct {
	Available       bool   `json:"available"`
	GuaranteeMonths int    `json:"guarantee_months,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Training offer bundled with the line.
type Training struct {
	Included     bool   `json:"included"`
	DurationDays int    `json:"duration_days,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// EvaluationScores holds the five 0-100 evaluation components and the
// weighted overall.
type EvaluationScores struct {
	Technical   float64   `json:"technical"`
	Financial   float64   `json:"financial"`
	Delivery    float64   `json:"delivery"`
	Quality     float64   `json:"quality"`
	Compliance  float64   `json:"compliance"`
	Overall     float64   `json:"overall"`
	EvaluatedBy int64     `json:"evaluated_by,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// Item is one supplier bid line against an RFQ item.
type Item struct {
	ID             int64
	BidID          int64
	RFQItemID      int64
	ProductID      int64
	UnitPrice      float64
	Quantity       float64
	Total          float64
	DeliveryDays   int
	SpecCompliance Compliance
	Scores         ComplianceScores
	Deviations     []Deviation
	Alternative    Alternative
	Warranty       Warranty
	AfterSales     AfterSales
	SpareParts     SpareParts
	Training       Training
	Evaluation     EvaluationScores
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ItemMetrics are derived, never persisted.
type ItemMetrics struct {
	PriceCompetitiveness    float64   `json:"price_competitiveness"`
	DeliveryCompetitiveness float64   `json:"delivery_competitiveness"`
	TotalValueScore         float64   `json:"total_value_score"`
	RiskScore               int       `json:"risk_score"`
	RiskLevel               RiskLevel `json:"risk_level"`
}

var (
	// ErrInvalidTransition occurs when the requested status is not reachable.
	ErrInvalidTransition = errors.New("bid: invalid status transition")
	// ErrInsufficientPermission occurs when the actor role cannot perform the move.
	ErrInsufficientPermission = errors.New("bid: insufficient permission")
	// ErrApprovalRequired occurs when a high-value award skips legal review.
	ErrApprovalRequired = errors.New("bid: legal review required before award")
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("bid: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("bid: invalid input")
)
