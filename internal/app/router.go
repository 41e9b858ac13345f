package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shelfmark/shelfmark/internal/auth"
	"github.com/shelfmark/shelfmark/internal/books"
	"github.com/shelfmark/shelfmark/internal/roles"
	"github.com/shelfmark/shelfmark/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthMiddleware *auth.Middleware
	AuthHandler    *auth.Handler
	UsersHandler   *users.Handler
	BooksHandler   *books.Handler
}

// NewRouter constructs the chi.Router with Shelfmark defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/users", func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireAuth)
		r.Use(params.AuthMiddleware.RequireRoles(roles.Senior))
		params.UsersHandler.MountRoutes(r)
	})

	r.Route("/books", params.BooksHandler.MountRoutes)

	return r
}
