package fulfillment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/metalyard/metalyard/internal/platform/httpx"
)

// IdempotencyHeader carries the client's retry key for the sagas.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes sales order and shipment endpoints, including quote acceptance.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountQuoteRoutes registers the acceptance route under /quotes.
func (h *Handler) MountQuoteRoutes(r chi.Router) {
	r.Post("/{id}/accept", h.accept)
}

// MountSalesOrderRoutes registers routes under /sales-orders.
func (h *Handler) MountSalesOrderRoutes(r chi.Router) {
	r.Get("/", h.listSalesOrders)
	r.Post("/create", h.createSalesOrder)
	r.Get("/{id}", h.showSalesOrder)
	r.Get("/{id}/shipments", h.listOrderShipments)
}

// MountShipmentRoutes registers routes under /shipments.
func (h *Handler) MountShipmentRoutes(r chi.Router) {
	r.Get("/", h.listShipments)
	r.Get("/{id}", h.showShipment)
	r.Patch("/{id}", h.updateShipment)
	r.Patch("/{id}/execute", h.execute)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input AcceptInput
	if err := httpx.DecodeOptionalJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Accept(r.Context(), tenant, id, r.Header.Get(IdempotencyHeader), input)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to accept quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input ExecuteInput
	if err := httpx.DecodeOptionalJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Execute(r.Context(), tenant, id, r.Header.Get(IdempotencyHeader), input)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to execute shipment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listSalesOrders(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	orders, err := h.service.ListSalesOrders(r.Context(), tenant)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch sales orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) createSalesOrder(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	var input CreateSalesOrderInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.CreateSalesOrder(r.Context(), tenant, input)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to create sales order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) showSalesOrder(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.GetSalesOrder(r.Context(), tenant, id)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch sales order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listOrderShipments(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	shipments, err := h.service.ListShipmentsForOrder(r.Context(), tenant, id)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch shipments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipments)
}

func (h *Handler) listShipments(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	shipments, err := h.service.ListShipments(r.Context(), tenant)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch shipments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipments)
}

func (h *Handler) showShipment(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	shipment, err := h.service.GetShipment(r.Context(), tenant, id)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch shipment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipment)
}

func (h *Handler) updateShipment(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input UpdateShipmentInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	shipment, err := h.service.UpdateShipment(r.Context(), tenant, id, input)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to update shipment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipment)
}
