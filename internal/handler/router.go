package handler

import (
	"net/http"
	"time"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/observability"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles the use cases the router exposes.
type Services struct {
	Registry    *service.RegistryService
	Tracker     *service.TrackerService
	Ledger      *service.LedgerService
	Withdrawals *service.WithdrawalService
	Settlement  *service.SettlementService
	Settings    *service.SettingsService
}

// NewRouter creates the HTTP router with all routes and middleware. Three
// surfaces share it: the affiliate panel, the platform ingress (tracking
// pixels and sale webhooks) and the back-office admin API.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(metricsMiddleware(metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Registry, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Platform ingress: tracking and sale events.
		r.Post("/track/click", trackClickHandler(svcs.Tracker, logger))
		r.Post("/track/signup", trackSignupHandler(svcs.Tracker, logger))
		r.Post("/commissions", registerCommissionHandler(svcs.Ledger, logger))

		// Affiliate panel, keyed by the platform user id.
		r.Post("/affiliates/activate", activateHandler(svcs.Registry, logger))
		r.Route("/affiliates/{userId}", func(r chi.Router) {
			r.Get("/", getAffiliateHandler(svcs.Registry, logger))
			r.Get("/dashboard", dashboardHandler(svcs.Registry, logger))
			r.Get("/commissions", listAffiliateCommissionsHandler(svcs.Registry, svcs.Ledger, logger))
			r.Get("/referrals", listAffiliateReferralsHandler(svcs.Registry, svcs.Tracker, logger))
			r.Put("/payment-method", updatePaymentMethodHandler(svcs.Registry, logger))
			r.Post("/withdrawals", requestWithdrawalHandler(svcs.Registry, svcs.Withdrawals, logger))
			r.Get("/withdrawals", listAffiliateWithdrawalsHandler(svcs.Registry, svcs.Withdrawals, logger))
		})

		// Back-office.
		r.Route("/admin", func(r chi.Router) {
			r.Get("/accounts", adminListAccountsHandler(svcs.Registry, logger))
			r.Post("/accounts/{accountId}/suspend", adminSuspendHandler(svcs.Registry, logger))
			r.Post("/accounts/{accountId}/reactivate", adminReactivateHandler(svcs.Registry, logger))

			r.Get("/commissions", adminListCommissionsHandler(svcs.Ledger, logger))
			r.Post("/commissions/{commissionId}/cancel", adminCancelCommissionHandler(svcs.Ledger, logger))

			r.Get("/withdrawals", adminListWithdrawalsHandler(svcs.Withdrawals, logger))
			r.Post("/withdrawals/{withdrawalId}/approve", adminApproveHandler(svcs.Withdrawals, logger))
			r.Post("/withdrawals/{withdrawalId}/reject", adminRejectHandler(svcs.Withdrawals, logger))
			r.Post("/withdrawals/{withdrawalId}/disburse", adminDisburseHandler(svcs.Withdrawals, logger))
			r.Post("/withdrawals/{withdrawalId}/retry", adminRetryHandler(svcs.Withdrawals, logger))
			r.Get("/ledger", adminListLedgerHandler(svcs.Withdrawals, logger))

			r.Get("/settings", adminGetSettingsHandler(svcs.Settings, logger))
			r.Put("/settings", adminUpdateSettingsHandler(svcs.Settings, logger))

			r.Post("/settlement/run", adminRunSettlementHandler(svcs.Settlement, logger))
			r.Get("/settlement/status", adminSettlementStatusHandler(svcs.Settlement))

			r.Get("/stats", adminStatsHandler(metrics))
		})
	})

	return r
}

// metricsMiddleware records per-route request durations. It reads the chi
// route pattern after the handler ran, so all affiliate ids collapse into
// one label value.
func metricsMiddleware(metrics *observability.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			metrics.RecordRequestDuration(r.Method+" "+pattern, time.Since(start))
		})
	}
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(registry *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_, err := registry.List(r.Context(), domain.AccountFilter{Page: 1, PageSize: 1})
		latency := time.Since(start).Milliseconds()

		status := "healthy"
		if err != nil {
			status = "degraded"
			logger.Warn("health probe failed", zap.Error(err))
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status": status,
			"services": []map[string]any{
				{"name": "affiliates-api", "status": "healthy", "latency_ms": 0},
				{"name": "supabase", "status": status, "latency_ms": latency},
			},
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
