package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shelfmark/shelfmark/internal/platform/httpx"
)

// Handler wires HTTP endpoints for user management.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user routes on the provided router. Callers are
// expected to wrap the router with the verifying auth middleware and the
// Senior role guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Put("/{id}/role/{roleId}", h.handleSetRole)
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid user id")
		return
	}
	roleID, err := strconv.Atoi(chi.URLParam(r, "roleId"))
	if err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid role id")
		return
	}

	result, err := h.service.SetUserRole(r.Context(), id, roleID)
	if err != nil {
		h.logger.Warn("set user role", slog.Int64("user_id", id), slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
