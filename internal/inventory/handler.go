package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/metalyard/metalyard/internal/platform/httpx"
)

// Handler exposes inventory endpoints.
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
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	items, err := h.service.List(r.Context(), tenant)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch inventory", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
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
	item, err := h.service.Get(r.Context(), tenant, id)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to fetch inventory item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
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
	item, err := h.service.Create(r.Context(), tenant, input)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to create inventory item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
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
	item, err := h.service.Update(r.Context(), tenant, id, input)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to update inventory item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), tenant, id); err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to delete inventory item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Item deleted successfully"})
}
