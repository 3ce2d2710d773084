package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/config"
	"stockflow-service/internal/hub"
	"stockflow-service/internal/kafka/notifier"
	"stockflow-service/internal/repository"
	"stockflow-service/internal/session"
)

const (
	loginAttemptsPerMinute = 10

	policyUpdateStock   = string(authz.ProductUpdateStock)
	policyInvoiceUpdate = "AnyPermission:invoice.edit,invoice.create"
	policySystemMetrics = "AllPermissions:system.view_statistics,reports.view_advanced"
	policyManageRoles   = string(authz.UsersManageRoles)
)

// Dependencies are the collaborators the HTTP API is served from.
type Dependencies struct {
	Logger     *zap.SugaredLogger
	Repo       repository.Repository
	Sessions   *session.Store
	Authorizer *authz.Authorizer
	Notifier   notifier.Notifier
	Hub        *hub.Hub
	// Realtime serves the websocket upgrade. Requests reaching it are authenticated.
	Realtime http.Handler
	Session  config.SessionConfig
}

type server struct {
	logger     *zap.SugaredLogger
	repo       repository.Repository
	sessions   *session.Store
	authorizer *authz.Authorizer
	notif      notifier.Notifier
	hub        *hub.Hub
	validate   *validator.Validate
	sessionCfg config.SessionConfig

	now func() time.Time
}

func NewRouter(deps Dependencies) http.Handler {
	s := &server{
		logger:     deps.Logger,
		repo:       deps.Repo,
		sessions:   deps.Sessions,
		authorizer: deps.Authorizer,
		notif:      deps.Notifier,
		hub:        deps.Hub,
		validate:   validator.New(),
		sessionCfg: deps.Session,
		now:        func() time.Time { return time.Now().UTC() },
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.loadPrincipal)

		r.Route("/api/auth", func(r chi.Router) {
			r.With(httprate.Limit(loginAttemptsPerMinute, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(s.tooManyLoginAttempts),
			)).Post("/login", s.login)
			r.Post("/logout", s.logout)
			r.With(s.requireAuth).Get("/me", s.me)
		})

		r.Route("/api/permissions", func(r chi.Router) {
			r.With(s.requirePolicy(authz.PolicyAdminOnly)).Get("/", s.allPermissions)
			r.With(s.requireAuth).Get("/mine", s.myPermissions)
			r.With(s.requireAuth).Get("/check", s.checkPermission)
		})

		r.Route("/api/users/{id}", func(r chi.Router) {
			r.With(s.requireAuth).Get("/", s.getUser)
			r.With(s.requirePolicy(policyManageRoles)).Put("/role", s.updateUserRole)
		})

		r.Route("/api/realtime", func(r chi.Router) {
			r.With(s.requirePolicy(policyUpdateStock)).Post("/stock", s.publishStockUpdate)
			r.With(s.requirePolicy(policyInvoiceUpdate)).Post("/invoice", s.publishInvoiceUpdate)
			r.With(s.requirePolicy(authz.PolicyAdminOnly)).Post("/activity", s.publishUserActivity)
			r.With(s.requirePolicy(policySystemMetrics)).Post("/metrics", s.publishSystemMetrics)
			r.With(s.requirePolicy(authz.PolicyManagerOrAdmin)).Post("/stock-alert", s.publishStockLevelAlert)
			r.With(s.requireAuth).Post("/notification", s.publishUserNotification)
			r.With(s.requirePolicy(authz.PolicyAdminOnly)).Post("/dashboard", s.publishDashboardUpdate)
			r.With(s.requirePolicy(authz.PolicyManagerOrAdmin)).Post("/broadcast-message", s.publishBroadcastMessage)
		})

		if deps.Realtime != nil {
			r.With(s.requireAuth).Handle("/hub", deps.Realtime)
		}
	})

	return r
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	connections := 0
	if s.hub != nil {
		connections = s.hub.Registry().Count()
	}
	respondJSON(s.logger, w, http.StatusOK, healthResponse{Status: "ok", Connections: connections})
}
