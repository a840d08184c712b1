package invoices

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/metalyard/metalyard/internal/platform/httpx"
)

// Handler exposes invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/create", h.create)
	r.Get("/{id}", h.show)
	r.Get("/{id}/line-items", h.lineItems)
	r.Post("/{id}/pay", h.pay)
	r.Get("/{id}/pdf", h.pdf)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	invoices, err := h.service.List(r.Context(), tenant)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	var input CreateInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, err := h.service.Create(r.Context(), tenant, input)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Get(r.Context(), tenant, id)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) lineItems(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.ListLineItems(r.Context(), tenant, id)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch line items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, err := h.service.MarkPaid(r.Context(), tenant, id)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to mark invoice paid", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.service.RenderPDF(r.Context(), tenant, id)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to render invoice", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=invoice-"+strconv.FormatInt(id, 10)+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
