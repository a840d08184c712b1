package quotes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/metalyard/metalyard/internal/platform/httpx"
)

// Handler exposes quote endpoints. Acceptance lives with the fulfillment handler.
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
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Patch("/{id}", h.update)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	quotes, err := h.service.List(r.Context(), tenant)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch quotes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quotes)
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
	quote, err := h.service.Create(r.Context(), tenant, input)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to create quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
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
	quote, err := h.service.Get(r.Context(), tenant, id)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input UpdateInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	quote, err := h.service.Update(r.Context(), tenant, id, input)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to update quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}
