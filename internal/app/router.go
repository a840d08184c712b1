package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/metalyard/metalyard/internal/auth"
	"github.com/metalyard/metalyard/internal/catalog"
	"github.com/metalyard/metalyard/internal/fulfillment"
	"github.com/metalyard/metalyard/internal/inventory"
	"github.com/metalyard/metalyard/internal/invoices"
	"github.com/metalyard/metalyard/internal/observability"
	"github.com/metalyard/metalyard/internal/platform/httpx"
	"github.com/metalyard/metalyard/internal/quotes"
	"github.com/metalyard/metalyard/internal/rfq"
	"github.com/metalyard/metalyard/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Verifier           auth.Verifier
	CatalogHandler     *catalog.Handler
	InventoryHandler   *inventory.Handler
	QuoteHandler       *quotes.Handler
	FulfillmentHandler *fulfillment.Handler
	InvoiceHandler     *invoices.Handler
	RFQHandler         *rfq.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with metalyard defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(params.Verifier, params.Logger))

		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(r)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		r.Route("/quotes", func(r chi.Router) {
			if params.QuoteHandler != nil {
				params.QuoteHandler.MountRoutes(r)
			}
			if params.FulfillmentHandler != nil {
				params.FulfillmentHandler.MountQuoteRoutes(r)
			}
		})
		if params.FulfillmentHandler != nil {
			r.Route("/sales-orders", params.FulfillmentHandler.MountSalesOrderRoutes)
			r.Route("/shipments", params.FulfillmentHandler.MountShipmentRoutes)
		}
		if params.InvoiceHandler != nil {
			r.Route("/invoices", params.InvoiceHandler.MountRoutes)
		}
		if params.RFQHandler != nil {
			params.RFQHandler.MountRoutes(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, shared.KindNotFound, "Route not found", "")
	})
	return r
}
