package requisition

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procurehub/procurehub/internal/observability"
	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/shared"
)

// RefreshQueue hands an on-demand stock status sweep to the background
// worker, outside the periodic schedule.
type RefreshQueue interface {
	EnqueueStockRefresh(ctx context.Context) error
}

// Handler exposes requisition line endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	queue     RefreshQueue
	validator *validator.Validate
	metrics   *observability.Metrics
}

// NewHandler builds Handler instance. The queue may be nil when no worker
// backend is configured.
func NewHandler(logger *slog.Logger, service *Service, queue RefreshQueue, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, queue: queue, validator: validator.New(), metrics: metrics}
}

// MountRoutes registers requisition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/requisitions/items", h.createItem)
	r.Get("/requisitions/items/{id}", h.getItem)
	r.Get("/requisitions/items/{id}/metrics", h.itemMetrics)
	r.Post("/requisitions/items/{id}/approve", h.approveItem)
	r.Post("/requisitions/items/{id}/partially-approve", h.partiallyApproveItem)
	r.Post("/requisitions/items/{id}/reject", h.rejectItem)
	r.Get("/requisitions/{id}/items", h.listItems)
	r.Post("/requisitions/stock-refresh", h.stockRefresh)
}

type alternativeProductRequest struct {
	ProductID int64   `json:"product_id" validate:"required"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Notes     string  `json:"notes"`
}

type createItemRequest struct {
	RequisitionID          int64                       `json:"requisition_id" validate:"required"`
	ProductID              int64                       `json:"product_id" validate:"required"`
	Quantity               float64                     `json:"quantity" validate:"gt=0"`
	EstimatedUnitPrice     float64                     `json:"estimated_unit_price" validate:"gte=0"`
	Urgency                string                      `json:"urgency" validate:"omitempty,oneof=low medium high critical"`
	BudgetCode             string                      `json:"budget_code"`
	BudgetAmount           float64                     `json:"budget_amount" validate:"gte=0"`
	AvailableBalance       *float64                    `json:"available_balance"`
	AlternativeProducts    []alternativeProductRequest `json:"alternative_products" validate:"dive"`
	SourcingRecommendation string                      `json:"sourcing_recommendation"`
}

type approveRequest struct {
	Approver  string   `json:"approver" validate:"required"`
	Quantity  *float64 `json:"quantity" validate:"omitempty,gt=0"`
	UnitPrice *float64 `json:"unit_price" validate:"omitempty,gte=0"`
	Comments  string   `json:"comments"`
}

type partialApproveRequest struct {
	Approver  string   `json:"approver" validate:"required"`
	Quantity  float64  `json:"quantity" validate:"gt=0"`
	UnitPrice *float64 `json:"unit_price" validate:"omitempty,gte=0"`
	Comments  string   `json:"comments"`
}

type rejectRequest struct {
	Rejector string `json:"rejector" validate:"required"`
	Reason   string `json:"reason" validate:"required"`
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	alternatives := make([]AlternativeProduct, 0, len(req.AlternativeProducts))
	for _, alt := range req.AlternativeProducts {
		alternatives = append(alternatives, AlternativeProduct{
			ProductID: alt.ProductID,
			Name:      alt.Name,
			UnitPrice: alt.UnitPrice,
			Notes:     alt.Notes,
		})
	}
	item, err := h.service.CreateItem(r.Context(), CreateItemInput{
		RequisitionID:          req.RequisitionID,
		ProductID:              req.ProductID,
		Quantity:               req.Quantity,
		EstimatedUnitPrice:     req.EstimatedUnitPrice,
		Urgency:                Urgency(req.Urgency),
		BudgetCode:             req.BudgetCode,
		BudgetAmount:           req.BudgetAmount,
		AvailableBalance:       req.AvailableBalance,
		AlternativeProducts:    alternatives,
		SourcingRecommendation: req.SourcingRecommendation,
	})
	if err != nil {
		h.respondServiceError(w, "create requisition item", err)
		return
	}
	h.metrics.CountMutation("req_item", "create")
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), urlID(r))
	if err != nil {
		h.respondServiceError(w, "get requisition item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) itemMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.ItemMetrics(r.Context(), urlID(r))
	if err != nil {
		h.respondServiceError(w, "requisition item metrics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, metrics)
}

func (h *Handler) approveItem(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.ApproveItem(r.Context(), urlID(r), ApproveItemInput{
		Approver:  req.Approver,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Comments:  req.Comments,
	})
	if err != nil {
		h.respondServiceError(w, "approve requisition item", err)
		return
	}
	h.metrics.CountMutation("req_item", "approve")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) partiallyApproveItem(w http.ResponseWriter, r *http.Request) {
	var req partialApproveRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.PartiallyApproveItem(r.Context(), urlID(r), PartialApproveItemInput{
		Approver:  req.Approver,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Comments:  req.Comments,
	})
	if err != nil {
		h.respondServiceError(w, "partially approve requisition item", err)
		return
	}
	h.metrics.CountMutation("req_item", "partially_approve")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) rejectItem(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.RejectItem(r.Context(), urlID(r), RejectItemInput{
		Rejector: req.Rejector,
		Reason:   req.Reason,
	})
	if err != nil {
		h.respondServiceError(w, "reject requisition item", err)
		return
	}
	h.metrics.CountMutation("req_item", "reject")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), urlID(r))
	if err != nil {
		h.respondServiceError(w, "list requisition items", err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, len(items)),
	})
}

func (h *Handler) stockRefresh(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "background worker is not configured")
		return
	}
	if err := h.queue.EnqueueStockRefresh(r.Context()); err != nil {
		h.logger.Error("enqueue stock refresh", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"queued": true})
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
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidArgument):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrTerminalStatus):
		httpx.Problem(w, http.StatusConflict, "Workflow Violation", err.Error())
	case errors.Is(err, shared.ErrVersionConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func urlID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
