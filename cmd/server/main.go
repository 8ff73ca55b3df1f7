package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ridedispatch/internal/app"
	"ridedispatch/internal/auth"
	"ridedispatch/internal/config"
	"ridedispatch/internal/events"
	"ridedispatch/internal/fare"
	"ridedispatch/internal/handler"
	"ridedispatch/internal/realtime"
	internalRedis "ridedispatch/internal/redis"
	"ridedispatch/internal/repository/postgres"
	"ridedispatch/internal/service"
)

func main() {
	envFile := config.LoadDotEnv(4)
	cfg := config.Load()

	logger := newLogger(cfg)
	defer logger.Sync()

	if envFile != "" {
		logger.Info("loaded environment file", zap.String("path", envFile))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic comes first so the database driver can be instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host))

	if cfg.Database.Migrate {
		if err := app.RunMigrations(db, logger); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	publisher, err := app.NewPublisher(cfg.Events, logger)
	if err != nil {
		logger.Fatal("failed to create event publisher", zap.Error(err))
	}
	defer publisher.Close()

	hub := realtime.NewHub(logger)
	server := wireServer(db, redisClient, hub, publisher, nrApp, cfg, logger)

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("service", "ride-dispatch"))
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	hub *realtime.Hub,
	publisher events.Publisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *zap.Logger,
) *http.Server {
	locationStore := internalRedis.NewLocationStore(redisClient)
	dispatchStore := internalRedis.NewDispatchStore(redisClient, cfg.Dispatch.OfferTTL, cfg.Dispatch.ActiveTTL)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	store := postgres.NewStore(db)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	notifications := service.NewNotificationService(hub, logger)
	matching := service.NewMatchingService(locationStore, cfg.Dispatch.SearchRadiusKm)
	dispatcher := service.NewDispatcher(service.DispatcherDeps{
		Store:         store,
		Locations:     locationStore,
		Assignments:   dispatchStore,
		Locks:         lockStore,
		ActiveRides:   cacheStore,
		Matching:      matching,
		Fares:         fare.NewCalculator(),
		Notifications: notifications,
		Publisher:     publisher,
		Logger:        logger.Named("dispatcher"),
		DriverLockTTL: cfg.Dispatch.DriverLockTTL,
	})
	driverService := service.NewDriverService(locationStore, cacheStore, store, notifications, logger.Named("drivers"))
	rideService := service.NewRideService(store, dispatchStore)

	gateway := realtime.NewGateway(hub, dispatcher, driverService, tokens, logger.Named("realtime"))

	router := app.NewRouter(app.RouterDeps{
		RideHandler:     handler.NewRideHandler(dispatcher, rideService),
		DriverHandler:   handler.NewDriverHandler(driverService, store.Drivers(), tokens),
		CustomerHandler: handler.NewCustomerHandler(store.Customers(), rideService, tokens),
		Gateway:         gateway,
		Auth:            tokens,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
		Logger:          logger,
		Config:          cfg,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
