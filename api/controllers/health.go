package controllers

import (
	"net/http"

	"github.com/bunai-labs/bunai-backend/api/responses"
	"github.com/bunai-labs/bunai-backend/pkg/config"
	"github.com/bunai-labs/bunai-backend/pkg/db"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
	pkgredis "github.com/bunai-labs/bunai-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bunai-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every backing store so the load balancer only routes to
// instances that can actually serve traffic.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Bunai-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["db"] = "down"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "health.db_unreachable", err)
				}
			} else {
				checks["db"] = "up"
			}
		}

		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = "down"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "health.redis_unreachable", err)
				}
			} else {
				checks["redis"] = "up"
			}
		}

		status := http.StatusOK
		label := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			label = "degraded"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": label,
			"checks": checks,
		})
	}
}
