package books

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shelfmark/shelfmark/internal/auth"
	"github.com/shelfmark/shelfmark/internal/platform/httpx"
	"github.com/shelfmark/shelfmark/internal/roles"
)

// Handler wires HTTP endpoints for the catalog.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	middleware *auth.Middleware
	validator  *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, middleware *auth.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		service:    service,
		middleware: middleware,
		validator:  validator.New(),
	}
}

// MountRoutes registers catalog routes. Every route authenticates first;
// the role guard runs second (it relies on the verified token).
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.middleware.RequireAuth)

	allRoles := h.middleware.RequireRoles(roles.Senior, roles.Middle, roles.Junior, roles.Trainee)
	writers := h.middleware.RequireRoles(roles.Senior, roles.Middle, roles.Junior)
	removers := h.middleware.RequireRoles(roles.Senior, roles.Middle)

	r.With(allRoles).Get("/", h.handleList)
	r.With(writers).Post("/", h.handleCreate)
	r.With(writers).Post("/bulk", h.handleCreateMultiple)
	r.With(writers).Put("/{id}", h.handleUpdate)
	r.With(removers).Delete("/{id}", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := ListParams{
		Name:      query.Get("name"),
		Author:    query.Get("author"),
		SortBy:    query.Get("sortBy"),
		SortOrder: query.Get("sortOrder"),
	}
	params.Page, _ = strconv.Atoi(query.Get("page"))
	params.Limit, _ = strconv.Atoi(query.Get("limit"))
	if rawYear := query.Get("publicationYear"); rawYear != "" {
		year, err := strconv.Atoi(rawYear)
		if err != nil {
			httpx.Error(w, r, http.StatusBadRequest, "invalid publicationYear")
			return
		}
		params.PublicationYear = year
	}

	result, err := h.service.GetPage(r.Context(), params)
	if err != nil {
		h.logger.Error("list books", slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input NewBook
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.service.Create(r.Context(), h.actor(r), input)
	if err != nil {
		h.logger.Warn("create book", slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, book)
}

type createMultipleRequest struct {
	Books []NewBook `json:"books" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreateMultiple(w http.ResponseWriter, r *http.Request) {
	var req createMultipleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.CreateMultiple(r.Context(), h.actor(r), req.Books)
	if err != nil {
		h.logger.Warn("create books", slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid book id")
		return
	}
	var input UpdateBook
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	book, err := h.service.Update(r.Context(), h.actor(r), id, input)
	if err != nil {
		h.logger.Warn("update book", slog.Int64("book_id", id), slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

type deleteRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid book id")
		return
	}
	var req deleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.service.Delete(r.Context(), h.actor(r), id, req.Reason)
	if err != nil {
		h.logger.Warn("delete book", slog.Int64("book_id", id), slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// actor builds the audit identity from the verified token claims.
func (h *Handler) actor(r *http.Request) Actor {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		return Actor{}
	}
	userID, err := claims.UserID()
	if err != nil {
		h.logger.Warn("actor subject parse", slog.Any("error", err))
	}
	return Actor{UserID: userID, RoleID: claims.RoleID}
}
