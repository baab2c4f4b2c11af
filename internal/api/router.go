package api

import (
	"net/http"

	"github.com/ayo6706/tutor-settlement/internal/api/handler"
	"github.com/ayo6706/tutor-settlement/internal/api/middleware"
	"github.com/ayo6706/tutor-settlement/internal/api/spec"
	"github.com/ayo6706/tutor-settlement/internal/config"
	"github.com/ayo6706/tutor-settlement/internal/idempotency"
	"github.com/ayo6706/tutor-settlement/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      handler.Pinger
	redis      redis.Cmdable
	idemStore  *idempotency.Store
	settlement *service.SettlementService
	currencies *service.CurrencyService
	webhook    *service.WebhookService
	reconcile  *service.ReconciliationService
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	store handler.Pinger,
	redisClient redis.Cmdable,
	idemStore *idempotency.Store,
	settlement *service.SettlementService,
	currencies *service.CurrencyService,
	webhook *service.WebhookService,
	reconcile *service.ReconciliationService,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		redis:      redisClient,
		idemStore:  idemStore,
		settlement: settlement,
		currencies: currencies,
		webhook:    webhook,
		reconcile:  reconcile,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.store, api.redis)
	settlementHandler := handler.NewSettlementHandler(api.settlement)
	transactionHandler := handler.NewTransactionHandler(api.settlement)
	currencyHandler := handler.NewCurrencyHandler(api.currencies)
	webhookHandler := handler.NewWebhookHandler(api.webhook)
	reconciliationHandler := handler.NewReconciliationHandler(api.reconcile)

	idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Public Routes
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/webhooks/payments", webhookHandler.HandlePaymentWebhook)
	})

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Currencies
		r.Get("/v1/currencies", currencyHandler.Snapshot)

		// Offers and sessions
		r.Post("/v1/settlements/preview", settlementHandler.Preview)
		r.With(idem).Post("/v1/settlements/accept", settlementHandler.Accept)
		r.Get("/v1/sessions/{id}/split", settlementHandler.GetSplit)
		r.With(idem).Post("/v1/sessions/{id}/payments", settlementHandler.ConfirmPayment)
		r.Post("/v1/sessions/{id}/reminders", settlementHandler.RemindUnpaid)
		r.Post("/v1/sessions/{id}/complete", settlementHandler.CompleteSession)

		// Transactions and disputes
		r.Get("/v1/transactions/{id}", transactionHandler.GetTransaction)
		r.Get("/v1/transactions/{id}/rate-history", transactionHandler.RateHistory)
		r.With(idem).Post("/v1/transactions/{id}/complaints", transactionHandler.FileComplaint)
		r.Get("/v1/transactions/{id}/complaints", transactionHandler.ListComplaints)
		r.Get("/v1/users/{id}/wallet", transactionHandler.GetWallet)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin"))
			r.With(idem).Post("/v1/transactions/{id}/payouts", transactionHandler.RecordPayout)
			r.Post("/v1/transactions/{id}/reversal", transactionHandler.Reverse)

			r.Put("/v1/currencies/{code}", currencyHandler.UpsertRate)
			r.Put("/v1/countries/{code}", currencyHandler.UpsertCountry)
			r.Put("/v1/settings/fee", currencyHandler.SetDefaultFee)
			r.Put("/v1/teachers/{id}/fee-override", currencyHandler.SetTeacherFeeOverride)

			r.Post("/v1/admin/reconciliation", reconciliationHandler.Run)
		})
	})

	return r
}
