package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/procurehub/procurehub/internal/bid"
	"github.com/procurehub/procurehub/internal/observability"
	"github.com/procurehub/procurehub/internal/purchaseorder"
	"github.com/procurehub/procurehub/internal/requisition"
	"github.com/procurehub/procurehub/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	RequisitionHandler   *requisition.Handler
	PurchaseOrderHandler *purchaseorder.Handler
	BidHandler           *bid.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with ProcureHub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.RequisitionHandler != nil {
		params.RequisitionHandler.MountRoutes(r)
	}
	if params.PurchaseOrderHandler != nil {
		params.PurchaseOrderHandler.MountRoutes(r)
	}
	if params.BidHandler != nil {
		params.BidHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
