package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type HealthHandler struct {
	pgPool  *pgxpool.Pool
	mongo   *mongo.Client
	redis   *redis.Client
	env     string
	version string
}

func NewHealthHandler(pgPool *pgxpool.Pool, mongoClient *mongo.Client, redisClient *redis.Client, env, version string) *HealthHandler {
	return &HealthHandler{
		pgPool:  pgPool,
		mongo:   mongoClient,
		redis:   redisClient,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness probes every backing store. Postgres and Mongo hold the data of
// record, so either being down means "error"; Redis only guards reservation
// races and degrades the service instead.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	probe := func(name string, critical bool, ping func(context.Context) error) {
		pingCtx, pingCancel := context.WithTimeout(ctx, 1*time.Second)
		defer pingCancel()

		if err := ping(pingCtx); err != nil {
			deps[name] = "down"
			if critical || status == "degraded" {
				status = "error"
			} else if status == "ok" {
				status = "degraded"
			}
			return
		}
		deps[name] = "ok"
	}

	probe("postgres", true, h.pgPool.Ping)
	probe("mongo", true, func(c context.Context) error {
		return h.mongo.Ping(c, readpref.Primary())
	})
	probe("redis", false, func(c context.Context) error {
		return h.redis.Ping(c).Err()
	})

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	})
}
