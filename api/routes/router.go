package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bunai-labs/bunai-backend/api/controllers"
	"github.com/bunai-labs/bunai-backend/api/middleware"
	"github.com/bunai-labs/bunai-backend/internal/approval"
	"github.com/bunai-labs/bunai-backend/internal/negotiation"
	"github.com/bunai-labs/bunai-backend/internal/session"
	"github.com/bunai-labs/bunai-backend/pkg/config"
	"github.com/bunai-labs/bunai-backend/pkg/db"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
	pkgredis "github.com/bunai-labs/bunai-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	negotiationService negotiation.Service,
	approvalService approval.Service,
	sessionRepo session.Repository,
	approvalRepo approval.Repository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	// A nil *Client must become a nil interface so HealthReady's guard sees it.
	var redisPinger pkgredis.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}

	r.Get("/healthz", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if redisClient != nil {
			r.Use(middleware.Idempotency(redisClient, logg))
		}

		r.Post("/messages/inbound", controllers.InboundMessage(negotiationService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(sessionRepo, logg))
			r.Get("/{orderId}", controllers.OrderDetail(sessionRepo, approvalRepo, logg))
			r.Post("/{orderId}/approve", controllers.ApproveOrder(approvalService, logg))
			r.Post("/{orderId}/reject", controllers.RejectOrder(approvalService, logg))
		})
	})

	return r
}
