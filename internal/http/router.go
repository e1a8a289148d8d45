package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/auth"
	"github.com/sppt/server/internal/http/handlers"
	"github.com/sppt/server/internal/middleware"
	"github.com/sppt/server/internal/model"
)

// RouterConfig carries everything the router wires together.
type RouterConfig struct {
	Log     zerolog.Logger
	DevMode bool
	// RateLimitIP is the global per-IP rate, e.g. "100-M".
	RateLimitIP string
	// Attempts limits requests that guess secrets: code requests per IP.
	Attempts middleware.Limiter

	Tokens  *auth.JWTService
	Staff   middleware.StaffLoader
	Clients middleware.ClientLoader

	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Users         *handlers.UsersHandler
	Business      *handlers.BusinessHandler
	ClientsAPI    *handlers.ClientsHandler
	Notifications *handlers.NotificationsHandler
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) (*chi.Mux, error) {
	ipLimit, err := middleware.NewIPRateLimiter(cfg.RateLimitIP)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.NewSecure(middleware.SecureOptions(cfg.DevMode)))

	r.Get("/health", cfg.Health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(ipLimit)

		staffAuth := middleware.StaffAuth(cfg.Tokens, cfg.Staff, cfg.Log)
		clientAuth := middleware.ClientAuth(cfg.Tokens, cfg.Clients, cfg.Log)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", cfg.Auth.HandleLogin)
			r.Post("/refresh", cfg.Auth.HandleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(staffAuth)
				r.Post("/logout", cfg.Auth.HandleLogout)
				r.Post("/change-password", cfg.Auth.HandleChangePassword)
				r.Post("/revoke-all-sessions", cfg.Auth.HandleRevokeAll)
				r.Get("/me", cfg.Auth.HandleMe)
				r.With(middleware.RequireRoles(model.RoleSuperAdmin, model.RoleOwner, model.RoleCoOwner)).
					Post("/reset-password", cfg.Auth.HandleResetPassword)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(staffAuth)
			r.Post("/", cfg.Users.HandleCreate)
			r.Get("/business/{businessId}", cfg.Users.HandleListByBusiness)
			r.Get("/{id}", cfg.Users.HandleGet)
			r.Patch("/{id}", cfg.Users.HandleUpdate)
			r.Delete("/{id}", cfg.Users.HandleDeactivate)
			r.Patch("/{id}/activate", cfg.Users.HandleActivate)
		})

		r.Route("/business", func(r chi.Router) {
			r.Use(staffAuth)
			r.Post("/", cfg.Business.HandleCreate)
			r.Get("/", cfg.Business.HandleList)
			r.Get("/{id}", cfg.Business.HandleGet)
			r.Patch("/{id}", cfg.Business.HandleUpdate)
			r.Get("/{id}/stats", cfg.Business.HandleStats)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Post("/register", cfg.ClientsAPI.HandleRegister)
			r.Post("/login", cfg.ClientsAPI.HandleLogin)
			r.Post("/refresh", cfg.ClientsAPI.HandleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(clientAuth)
				r.Post("/logout", cfg.ClientsAPI.HandleLogout)
				r.Get("/me", cfg.ClientsAPI.HandleMe)
				r.Post("/register-business", cfg.ClientsAPI.HandleRegisterBusiness)
				r.Get("/businesses", cfg.ClientsAPI.HandleBusinesses)
				r.Get("/businesses/{businessId}/points", cfg.ClientsAPI.HandlePoints)
			})
		})

		r.Route("/notifications/verify", func(r chi.Router) {
			r.With(middleware.RateLimitMiddleware(cfg.Attempts, "verify-request", middleware.GetIPKey, cfg.Log)).
				Post("/request", cfg.Notifications.HandleRequest)
			r.Post("/confirm", cfg.Notifications.HandleConfirm)
		})
	})

	return r, nil
}
