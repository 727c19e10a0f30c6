package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk/clinic-scheduling/internal/api"
	"github.com/clinicdesk/clinic-scheduling/internal/config"
	"github.com/clinicdesk/clinic-scheduling/internal/db"
	"github.com/clinicdesk/clinic-scheduling/internal/identity"
	"github.com/clinicdesk/clinic-scheduling/internal/logging"
	"github.com/clinicdesk/clinic-scheduling/internal/mongodb"
	redisclient "github.com/clinicdesk/clinic-scheduling/internal/redis"
	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
	"github.com/clinicdesk/clinic-scheduling/internal/survey"
)

const version = "1.0.0"

// visitSource feeds the survey eligibility gate from the visit store of
// record.
type visitSource struct {
	visits *scheduling.Service
}

func (vs *visitSource) VisitByID(ctx context.Context, id int64) (*survey.Visit, error) {
	detail, err := vs.visits.GetVisit(ctx, id)
	if err != nil {
		if errors.Is(err, scheduling.ErrVisitNotFound) {
			return nil, survey.ErrVisitNotFound
		}
		return nil, err
	}

	return &survey.Visit{
		ID:          detail.ID,
		DoctorID:    detail.DoctorID,
		DoctorName:  detail.DoctorFirstName + " " + detail.DoctorLastName,
		ScheduledAt: detail.ScheduledAt,
		Completed:   detail.Status == scheduling.VisitCompleted,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migrateCtx, pgPool)
	cancelMigrate()
	if err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}
	logger.Info("connected to Postgres, migrations applied")

	mongoCtx, cancelMongo := context.WithTimeout(rootCtx, 10*time.Second)
	mongoClient, mongoDB, err := mongodb.Connect(mongoCtx, cfg.MongoURI, cfg.MongoDatabase)
	cancelMongo()
	if err != nil {
		logger.Fatal("mongo connection error", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("error closing mongo", zap.Error(err))
		}
	}()
	logger.Info("connected to MongoDB")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	surveyRepo := survey.NewMongoRepository(mongoDB)
	idxCtx, cancelIdx := context.WithTimeout(rootCtx, 10*time.Second)
	err = surveyRepo.EnsureIndexes(idxCtx)
	cancelIdx()
	if err != nil {
		logger.Fatal("survey index error", zap.Error(err))
	}

	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)

	schedulingSvc := scheduling.NewService(scheduling.NewPgRepository(pgPool), locker, logger)
	surveySvc := survey.NewService(surveyRepo, &visitSource{visits: schedulingSvc}, logger)
	identitySvc := identity.NewService(identity.NewPgRepository(pgPool), logger, cfg.JWTSecret, cfg.TokenTTL)

	router := api.NewRouter(api.RouterConfig{
		Scheduling: schedulingSvc,
		Surveys:    surveySvc,
		Identity:   identitySvc,
		PgPool:     pgPool,
		Mongo:      mongoClient,
		Redis:      rdb,
		Logger:     logger,
		Env:        cfg.Env,
		Version:    version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
