package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fedtaxi/hojaruta/handlers"
	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/internal/database"
	rsservice "github.com/fedtaxi/hojaruta/internal/routesheet/service"
	"github.com/fedtaxi/hojaruta/internal/sessions"
	"github.com/fedtaxi/hojaruta/internal/tokens"
	"github.com/fedtaxi/hojaruta/internal/users"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/fedtaxi/hojaruta/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v env=%s", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Server.Environment)
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]func(context.Context) error{}

	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis ping failed (%s): %v; falling back to in-memory stores", addr, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			logger.Infof("connected to redis %s", addr)
			client := rdb
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}

	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v; falling back to in-memory stores", err)
			mongoClient = nil
		} else {
			defer func() { _ = mongoClient.Disconnect(context.Background()) }()
			client := mongoClient
			checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		}
	}

	var (
		userSvc     *users.Service
		sessionsSvc *sessions.Service
		sheets      rsservice.Service
	)
	if mongoClient != nil {
		db := mongoClient.Database(cfg.MongoDB.Database)
		userSvc = users.NewService(users.NewMongoUserRepository(ctx, db.Collection("users")))
		sheets = rsservice.NewMongoService(ctx, db.Collection("route_sheets"))
		if rdb == nil {
			sessionsSvc = sessions.NewService(sessions.NewMongoRepository(ctx, db.Collection("sessions")), cfg.JWT.RefreshTokenTTL)
		}
	} else {
		userSvc = users.NewService(users.NewMemoryUserRepository())
		sheets = rsservice.NewMemoryService()
	}
	switch {
	case sessionsSvc != nil:
	case rdb != nil:
		sessionsSvc = sessions.NewService(sessions.NewRedisRepository(rdb, "session:"), cfg.JWT.RefreshTokenTTL)
		logger.Infof("using redis for session storage")
	default:
		sessionsSvc = sessions.NewService(sessions.NewMemoryRepository(), cfg.JWT.RefreshTokenTTL)
		logger.Warn("using in-memory session storage; sessions are lost on restart")
	}

	var blacklistClient redis.UniversalClient
	if rdb != nil {
		blacklistClient = rdb
	}
	blacklist := sessions.NewBlacklist(blacklistClient)

	if cfg.Server.AdminIdentifier != "" && cfg.Server.AdminPassword != "" {
		if _, err := userSvc.EnsureAdmin(ctx, cfg.Server.AdminIdentifier, cfg.Server.AdminPassword); err != nil {
			logger.Errorf("admin seed failed: %v", err)
		}
	}

	secret := cfg.JWT.Secret
	if secret == "" {
		secret = "dev-insecure-secret-change-me"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	r := handlers.NewRouter(handlers.Deps{
		Config:      cfg,
		Users:       userSvc,
		Sessions:    sessionsSvc,
		Issuer:      tokens.NewIssuer(secret, cfg.JWT.AccessTokenTTL),
		Blacklist:   blacklist,
		RouteSheets: sheets,
		Redis:       blacklistClient,
		Gatherer:    reg,
		Checks:      checks,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting hojaruta backend on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
