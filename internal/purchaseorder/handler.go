package purchaseorder

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procurehub/procurehub/internal/observability"
	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/shared"
)

// Handler exposes purchase order line endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	metrics   *observability.Metrics
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), metrics: metrics}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchase-orders/items", h.createItem)
	r.Get("/purchase-orders/items/{id}", h.getItem)
	r.Post("/purchase-orders/items/{id}/receive", h.receiveItems)
	r.Post("/purchase-orders/items/{id}/return", h.returnItems)
	r.Post("/purchase-orders/items/{id}/quality-check", h.qualityCheck)
	r.Post("/purchase-orders/items/{id}/cancel", h.cancelLine)
	r.Get("/purchase-orders/{id}/items", h.listItems)
}

type createItemRequest struct {
	PurchaseOrderID      int64   `json:"purchase_order_id" validate:"required"`
	ProductID            int64   `json:"product_id" validate:"required"`
	OrderedQuantity      float64 `json:"ordered_quantity" validate:"gt=0"`
	UnitPrice            float64 `json:"unit_price" validate:"gte=0"`
	TaxRate              float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountType         string  `json:"discount_type" validate:"omitempty,oneof=percentage fixed none"`
	Discount             float64 `json:"discount" validate:"gte=0"`
	ExpectedDeliveryDate string  `json:"expected_delivery_date"`
}

type receiveRequest struct {
	Quantity   float64 `json:"quantity" validate:"required"`
	ReceivedBy string  `json:"received_by" validate:"required"`
	Notes      string  `json:"notes"`
	Location   string  `json:"location"`
	Reference  string  `json:"reference"`
}

type returnRequest struct {
	Quantity    float64 `json:"quantity" validate:"required"`
	Reason      string  `json:"reason" validate:"required"`
	Condition   string  `json:"condition" validate:"required"`
	ProcessedBy string  `json:"processed_by" validate:"required"`
	Notes       string  `json:"notes"`
}

type qualityCheckRequest struct {
	PerformedBy string   `json:"performed_by" validate:"required"`
	Status      string   `json:"status" validate:"required,oneof=pending passed failed partial"`
	Notes       string   `json:"notes"`
	Defects     []string `json:"defects"`
}

type cancelRequest struct {
	CancelledBy string `json:"cancelled_by" validate:"required"`
	Reason      string `json:"reason"`
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	var expected *time.Time
	if req.ExpectedDeliveryDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpectedDeliveryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "expected_delivery_date must be YYYY-MM-DD")
			return
		}
		expected = &parsed
	}
	item, err := h.service.CreateItem(r.Context(), CreateItemInput{
		PurchaseOrderID:      req.PurchaseOrderID,
		ProductID:            req.ProductID,
		OrderedQuantity:      req.OrderedQuantity,
		UnitPrice:            req.UnitPrice,
		TaxRate:              req.TaxRate,
		DiscountType:         DiscountType(req.DiscountType),
		Discount:             req.Discount,
		ExpectedDeliveryDate: expected,
	})
	if err != nil {
		h.respondServiceError(w, "create PO item", err)
		return
	}
	h.metrics.CountMutation("po_item", "create")
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), urlID(r))
	if err != nil {
		h.respondServiceError(w, "get PO item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) receiveItems(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.ReceiveItems(r.Context(), urlID(r), ReceiveItemsInput{
		Quantity:   req.Quantity,
		ReceivedBy: req.ReceivedBy,
		Notes:      req.Notes,
		Location:   req.Location,
		Reference:  req.Reference,
	})
	if err != nil {
		h.respondServiceError(w, "receive PO items", err)
		return
	}
	h.metrics.CountMutation("po_item", "receive")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) returnItems(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.ReturnItems(r.Context(), urlID(r), ReturnItemsInput{
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		Condition:   req.Condition,
		ProcessedBy: req.ProcessedBy,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondServiceError(w, "return PO items", err)
		return
	}
	h.metrics.CountMutation("po_item", "return")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) qualityCheck(w http.ResponseWriter, r *http.Request) {
	var req qualityCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.PerformQualityCheck(r.Context(), urlID(r), QualityCheckRequest{
		PerformedBy: req.PerformedBy,
		Status:      QualityStatus(req.Status),
		Notes:       req.Notes,
		Defects:     req.Defects,
	})
	if err != nil {
		h.respondServiceError(w, "quality check", err)
		return
	}
	h.metrics.CountMutation("po_item", "quality_check")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) cancelLine(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.CancelLine(r.Context(), urlID(r), req.CancelledBy, req.Reason)
	if err != nil {
		h.respondServiceError(w, "cancel PO line", err)
		return
	}
	h.metrics.CountMutation("po_item", "cancel")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), urlID(r))
	if err != nil {
		h.respondServiceError(w, "list PO items", err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, len(items)),
	})
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
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrOverReceipt), errors.Is(err, ErrExcessReturn), errors.Is(err, ErrIllegalCancellation):
		httpx.Problem(w, http.StatusConflict, "Workflow Violation", err.Error())
	case errors.Is(err, shared.ErrVersionConflict), errors.Is(err, shared.ErrLockHeld), errors.Is(err, shared.ErrIdempotencyConflict):
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
