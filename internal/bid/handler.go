package bid

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/procurehub/procurehub/internal/observability"
	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/shared"
)

// RescoreQueue hands rescore work to the background worker.
type RescoreQueue interface {
	EnqueueBidRescore(ctx context.Context, bidID int64) error
}

// Handler exposes bid endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	queue     RescoreQueue
	validator *validator.Validate
	metrics   *observability.Metrics
	printer   *message.Printer
}

// NewHandler builds Handler instance. The queue may be nil when no worker
// backend is configured; rescore requests then fail with 503.
func NewHandler(logger *slog.Logger, service *Service, queue RescoreQueue, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		queue:     queue,
		validator: validator.New(),
		metrics:   metrics,
		printer:   message.NewPrinter(language.English),
	}
}

// MountRoutes registers bid routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/bids/items", h.createItem)
	r.Get("/bids/items/{id}", h.getItem)
	r.Post("/bids/items/{id}/deviations", h.addDeviation)
	r.Post("/bids/items/{id}/alternative", h.setAlternative)
	r.Post("/bids/items/{id}/evaluation", h.setEvaluation)
	r.Get("/bids/{id}/items", h.listItems)
	r.Get("/bids/{id}/summary", h.bidSummary)
	r.Get("/bids/{id}/next-status", h.nextStatus)
	r.Post("/bids/{id}/status", h.changeStatus)
	r.Get("/bids/{id}/approvals", h.approvalHistory)
	r.Post("/bids/{id}/rescore", h.rescore)
}

type createItemRequest struct {
	BidID          int64   `json:"bid_id" validate:"required"`
	RFQItemID      int64   `json:"rfq_item_id"`
	ProductID      int64   `json:"product_id" validate:"required"`
	UnitPrice      float64 `json:"unit_price" validate:"gte=0"`
	Quantity       float64 `json:"quantity" validate:"gt=0"`
	DeliveryDays   int     `json:"delivery_days" validate:"gte=0"`
	SpecCompliance string  `json:"specifications_compliance" validate:"omitempty,oneof=fully_compliant partially_compliant non_compliant alternative_offered"`
	Technical      float64 `json:"technical_score" validate:"gte=0,lte=100"`
	Quality        float64 `json:"quality_score" validate:"gte=0,lte=100"`
	Documentation  float64 `json:"documentation_score" validate:"gte=0,lte=100"`
	WarrantyMonths int     `json:"warranty_months" validate:"gte=0"`
	WarrantyTerms  string  `json:"warranty_terms"`
}

type deviationRequest struct {
	Aspect           string `json:"aspect" validate:"required"`
	Description      string `json:"description" validate:"required"`
	Impact           string `json:"impact" validate:"omitempty,oneof=minor moderate major critical"`
	Justification    string `json:"justification"`
	ProposedSolution string `json:"proposed_solution"`
}

type alternativeRequest struct {
	ProductID        int64   `json:"product_id" validate:"required"`
	Description      string  `json:"description"`
	OriginalPrice    float64 `json:"original_price" validate:"gte=0"`
	AlternativePrice float64 `json:"alternative_price" validate:"gte=0"`
}

type evaluationRequest struct {
	Technical   float64 `json:"technical" validate:"gte=0,lte=100"`
	Financial   float64 `json:"financial" validate:"gte=0,lte=100"`
	Delivery    float64 `json:"delivery" validate:"gte=0,lte=100"`
	Quality     float64 `json:"quality" validate:"gte=0,lte=100"`
	Compliance  float64 `json:"compliance" validate:"gte=0,lte=100"`
	EvaluatedBy int64   `json:"evaluated_by" validate:"required"`
	Notes       string  `json:"notes"`
}

type changeStatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Role    string `json:"role" validate:"required"`
	ActorID int64  `json:"actor_id" validate:"required"`
	Note    string `json:"note"`
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.CreateItem(r.Context(), CreateItemInput{
		BidID:          req.BidID,
		RFQItemID:      req.RFQItemID,
		ProductID:      req.ProductID,
		UnitPrice:      req.UnitPrice,
		Quantity:       req.Quantity,
		DeliveryDays:   req.DeliveryDays,
		SpecCompliance: Compliance(req.SpecCompliance),
		Scores: ComplianceScores{
			Technical:     req.Technical,
			Quality:       req.Quality,
			Documentation: req.Documentation,
		},
		Warranty: Warranty{PeriodMonths: req.WarrantyMonths, Terms: req.WarrantyTerms},
	})
	if err != nil {
		h.respondServiceError(w, "create bid item", err)
		return
	}
	h.metrics.CountMutation("bid_item", "create")
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	item, metrics, err := h.service.ItemMetrics(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get bid item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item": item, "metrics": metrics})
}

func (h *Handler) addDeviation(w http.ResponseWriter, r *http.Request) {
	var req deviationRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.AddDeviation(r.Context(), urlID(r), Deviation{
		Aspect:           req.Aspect,
		Description:      req.Description,
		Impact:           DeviationImpact(req.Impact),
		Justification:    req.Justification,
		ProposedSolution: req.ProposedSolution,
	})
	if err != nil {
		h.respondServiceError(w, "add deviation", err)
		return
	}
	h.metrics.CountMutation("bid_item", "deviation")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) setAlternative(w http.ResponseWriter, r *http.Request) {
	var req alternativeRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.SetAlternativeProduct(r.Context(), urlID(r), Alternative{
		ProductID:        req.ProductID,
		Description:      req.Description,
		OriginalPrice:    req.OriginalPrice,
		AlternativePrice: req.AlternativePrice,
	})
	if err != nil {
		h.respondServiceError(w, "set alternative", err)
		return
	}
	h.metrics.CountMutation("bid_item", "alternative")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) setEvaluation(w http.ResponseWriter, r *http.Request) {
	var req evaluationRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.SetEvaluationScores(r.Context(), urlID(r), EvaluationInput{
		Technical:   req.Technical,
		Financial:   req.Financial,
		Delivery:    req.Delivery,
		Quality:     req.Quality,
		Compliance:  req.Compliance,
		EvaluatedBy: req.EvaluatedBy,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondServiceError(w, "set evaluation", err)
		return
	}
	h.metrics.CountMutation("bid_item", "evaluate")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	bidID := urlID(r)
	items, err := h.service.ListItems(r.Context(), bidID)
	if err != nil {
		h.respondServiceError(w, "list bid items", err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, len(items)),
	})
}

// bidSummary renders the bid header with per-line evaluation, formatted for
// review screens.
func (h *Handler) bidSummary(w http.ResponseWriter, r *http.Request) {
	bidID := urlID(r)
	b, err := h.service.GetBid(r.Context(), bidID)
	if err != nil {
		h.respondServiceError(w, "bid summary", err)
		return
	}
	items, err := h.service.ListItems(r.Context(), bidID)
	if err != nil {
		h.respondServiceError(w, "bid summary", err)
		return
	}
	lines := make([]map[string]any, 0, len(items))
	var total float64
	for _, item := range items {
		metrics := item.Metrics(h.service.Scoring())
		total += item.Total
		lines = append(lines, map[string]any{
			"item_id":         item.ID,
			"product_id":      item.ProductID,
			"total":           item.Total,
			"total_display":   h.printer.Sprintf("%.2f", item.Total),
			"overall_score":   item.Evaluation.Overall,
			"risk_level":      metrics.RiskLevel,
			"value_score":     metrics.TotalValueScore,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"bid":           b,
		"status":        b.Status,
		"total":         total,
		"total_display": h.printer.Sprintf("%.2f", total),
		"lines":         lines,
	})
}

func (h *Handler) nextStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	flags := Context{
		HasSubmissions:        q.Get("has_submissions") == "true",
		EvaluationComplete:    q.Get("evaluation_complete") == "true",
		LegalApproved:         q.Get("legal_approved") == "true",
		NegotiationComplete:   q.Get("negotiation_complete") == "true",
		ClarificationProvided: q.Get("clarification_provided") == "true",
	}
	next, err := h.service.RecommendedNext(r.Context(), urlID(r), flags)
	if err != nil {
		h.respondServiceError(w, "recommend next status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"recommended": next})
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.service.ChangeStatus(r.Context(), ChangeStatusInput{
		BidID:   urlID(r),
		Next:    Status(req.Status),
		Role:    req.Role,
		ActorID: req.ActorID,
		Note:    req.Note,
	})
	if err != nil {
		h.respondServiceError(w, "change bid status", err)
		return
	}
	h.metrics.CountMutation("bid", "status_change")
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) approvalHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.ApprovalHistory(r.Context(), urlID(r))
	if err != nil {
		h.respondServiceError(w, "bid approval history", err)
		return
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": logs})
}

// rescore queues a recompute of the bid's evaluated lines, typically after
// the scoring weights changed.
func (h *Handler) rescore(w http.ResponseWriter, r *http.Request) {
	bidID := urlID(r)
	if _, err := h.service.GetBid(r.Context(), bidID); err != nil {
		h.respondServiceError(w, "rescore bid", err)
		return
	}
	if h.queue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "background worker is not configured")
		return
	}
	if err := h.queue.EnqueueBidRescore(r.Context(), bidID); err != nil {
		h.logger.Error("enqueue bid rescore", slog.Int64("bid_id", bidID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.metrics.CountMutation("bid", "rescore")
	httpx.JSON(w, http.StatusAccepted, map[string]any{"bid_id": bidID, "queued": true})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		fields := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = fieldErr.Tag()
			}
		}
		httpx.FieldProblem(w, "request validation failed", fields)
		return false
	}
	return true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrInsufficientPermission):
		httpx.Problem(w, http.StatusForbidden, "Insufficient Permission", err.Error())
	case errors.Is(err, ErrApprovalRequired):
		httpx.Problem(w, http.StatusForbidden, "Approval Required", err.Error())
	case errors.Is(err, shared.ErrVersionConflict):
		httpx.Problem(w, http.StatusConflict, "Version Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func urlID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
