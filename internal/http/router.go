package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/shop-auth/internal/http/handlers"
	"github.com/pribylovaa/shop-auth/internal/http/middleware"
)

// BasePath — префикс API.
const BasePath = "/api/v1"

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

// Service — всё, что роутеру нужно от сервисного слоя.
type Service interface {
	handlers.Users
	middleware.Authenticator
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, h *handlers.Handlers, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования: id попадает в attrs
		middleware.Logging(opts.Logger),
		middleware.Metrics(),
		middleware.Timeout(opts.Timeout),
	)

	root.Route(BasePath, func(r chi.Router) {
		r.Get("/healthCheck", h.HealthCheck)
		r.Route("/users", func(r chi.Router) {
			registerUserRoutes(r, h, middleware.SessionGuard(svc))
		})
	})

	return root
}

// registerUserRoutes — маршруты /users; logout и профиль только с сессией.
func registerUserRoutes(r chi.Router, h *handlers.Handlers, guard middleware.Middleware) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh-token", h.RefreshToken)

	r.Group(func(r chi.Router) {
		r.Use(guard)
		r.Post("/logout", h.Logout)
		r.Get("/{id}", h.GetByID)
	})
}
