package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/api/http/middleware"
	"github.com/shestoi/paygate/internal/gateway"
	"github.com/shestoi/paygate/internal/session"
	platformhealth "github.com/shestoi/paygate/platform/health/http"
	platformobservability "github.com/shestoi/paygate/platform/observability"
)

// Metrics is what the router needs from the Prometheus collectors.
type Metrics interface {
	middleware.RequestObserver
	Handler() http.Handler
}

// RouterConfig holds the router dependencies that are not the Handler itself.
type RouterConfig struct {
	// Mountpoint is the path prefix of the payment routes, e.g. "/payments".
	Mountpoint string
	Sessions   session.Store
	Metrics    Metrics
	// Readiness reports whether the backends are reachable. /health returns 503 when it is false.
	Readiness func() bool
	Logger    *zap.Logger
}

// NewRouter creates the HTTP router of the payment gateway.
func NewRouter(handler *Handler, cfg RouterConfig) chi.Router {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)

	if cfg.Logger != nil {
		router.Use(platformobservability.HTTPMiddleware("paygate", cfg.Logger))
	}
	if cfg.Metrics != nil {
		router.Use(middleware.TrackMetrics(cfg.Metrics))
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	mountpoint := cfg.Mountpoint
	if mountpoint == "" {
		mountpoint = "/payments"
	}

	// Payment routes require x-session-id (401 otherwise).
	router.Route(mountpoint, func(r chi.Router) {
		r.Use(middleware.WithSession(cfg.Sessions, cfg.Logger))

		r.Get("/customer/payments", handler.Payments)
		r.Get("/transactions/{id}/audit", handler.AuditTrail)

		r.Get("/{gateway}/settings", handler.GetSettings)
		r.Post("/{gateway}/settings", handler.PostSettings)

		completeAuthorize := handler.Complete(gateway.OpAuthorize)
		completePurchase := handler.Complete(gateway.OpPurchase)
		r.Get("/{gateway}/"+string(gateway.OpCompleteAuthorize), completeAuthorize)
		r.Post("/{gateway}/"+string(gateway.OpCompleteAuthorize), completeAuthorize)
		r.Get("/{gateway}/"+string(gateway.OpCompletePurchase), completePurchase)
		r.Post("/{gateway}/"+string(gateway.OpCompletePurchase), completePurchase)

		r.Post("/{gateway}/{method}/transaction", handler.CreateTransaction)
		r.Get("/{gateway}/{method}", handler.Prepare)
		r.Post("/{gateway}/{method}", handler.Submit)
	})

	router.Get("/health", platformhealth.Handler(cfg.Readiness))

	return router
}
