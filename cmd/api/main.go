package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"github.com/carwave/carpool/internal/api/handlers"
	"github.com/carwave/carpool/internal/api/routes"
	"github.com/carwave/carpool/internal/config"
	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/geocode"
	"github.com/carwave/carpool/internal/service/reputation"
	"github.com/carwave/carpool/internal/service/requests"
	"github.com/carwave/carpool/internal/service/rides"
	"github.com/carwave/carpool/internal/service/search"
	"github.com/carwave/carpool/internal/service/users"
	"github.com/carwave/carpool/internal/store"
	"github.com/carwave/carpool/internal/store/memory"
	"github.com/carwave/carpool/internal/store/postgres"
	"github.com/carwave/carpool/migrations"
	"github.com/carwave/carpool/pkg/cache"
	"github.com/carwave/carpool/pkg/database"
	"github.com/carwave/carpool/pkg/logger"
	"github.com/carwave/carpool/pkg/monitoring"
	"github.com/carwave/carpool/pkg/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting carpool API",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
		logger.String("storage", cfg.Storage.Backend),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
		nrApp = monitoring.Disabled()
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized successfully",
			logger.String("app_name", cfg.NewRelic.AppName))
	} else {
		appLogger.Info("New Relic APM disabled")
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Initialize storage
	var (
		st store.Store
		db *sqlx.DB
	)
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		db, err = database.NewPostgresDB(ctx, database.Config{
			DSN:         cfg.Database.DSN(),
			MaxConns:    cfg.Database.MaxConnections,
			MaxIdle:     cfg.Database.MaxIdleConns,
			MaxLifetime: cfg.Database.MaxLifetime,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
		}
		defer db.Close()

		if err := migrations.Apply(ctx, db); err != nil {
			appLogger.Fatal("Failed to apply migrations", logger.Err(err))
		}
		st = postgres.New(db)
		appLogger.Info("Connected to PostgreSQL successfully")
	default:
		st = memory.New()
		appLogger.Warn("Using in-memory storage; data is lost on restart")
	}

	// Initialize Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cache.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			PoolSize:    cfg.Redis.PoolSize,
			MinIdleConn: cfg.Redis.MinIdleConn,
			DialTimeout: cfg.Redis.DialTimeout,
			ReadTimeout: cfg.Redis.ReadTimeout,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
		}
		defer cache.Close(redisClient)
		appLogger.Info("Connected to Redis successfully")
	}

	geocoder := newGeocoder(cfg, redisClient, appLogger)

	loc, err := cfg.Search.Location()
	if err != nil {
		appLogger.Fatal("Invalid search time zone", logger.Err(err))
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(appLogger)
	go wsHub.Run(ctx)

	// Initialize services
	var reputationCache redis.Cmdable
	if redisClient != nil {
		reputationCache = redisClient
	}
	reputationSvc := reputation.NewService(st, reputationCache, appLogger, nrApp, reputation.Config{
		Rules: review.Rules{
			RatingMin: cfg.Reputation.RatingMin,
			RatingMax: cfg.Reputation.RatingMax,
			MaxTags:   cfg.Reputation.MaxTags,
		},
		TopTagCount: cfg.Reputation.TopTagCount,
		CacheTTL:    cfg.Cache.TTLReputation,
	})
	svc := handlers.Services{
		Search: search.NewService(st, geocoder, reputationSvc, appLogger, nrApp, search.Config{
			DefaultLimit:        cfg.Search.DefaultLimit,
			MinLimit:            cfg.Search.MinLimit,
			MaxLimit:            cfg.Search.MaxLimit,
			DefaultRadiusMeters: cfg.Search.DefaultRadiusMeters,
			DefaultTolerance:    cfg.Search.DefaultTolerance,
			CandidateCap:        cfg.Search.CandidateCap,
		}),
		Requests:   requests.NewService(st, wsHub, appLogger, nrApp),
		Rides:      rides.NewService(st, geocoder, wsHub, appLogger, nrApp),
		Users:      users.NewService(st, reputationSvc, appLogger),
		Reputation: reputationSvc,
	}

	h := handlers.NewHandlers(svc, wsHub, appLogger, loc)
	h.Upgrader = handlers.DefaultUpgrader(cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize)

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	var nrApplication *newrelic.Application
	if nrApp.IsEnabled() {
		nrApplication = nrApp.Application
	}
	routes.SetupRoutes(router, h, nrApplication)

	appLogger.Info("Routes configured successfully")

	if nrApp.IsEnabled() {
		go reportPoolStats(ctx, cfg.NewRelic.StatsInterval, nrApp, db, redisClient)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}
	stop()

	appLogger.Info("Server stopped gracefully")
}

// newGeocoder returns the Google geocoder when an API key is configured,
// fronted by Redis when available.
func newGeocoder(cfg *config.Config, redisClient *redis.Client, log *logger.Logger) geocode.Geocoder {
	if cfg.Geocoding.APIKey == "" {
		log.Warn("GOOGLE_MAPS_API_KEY not set; place names cannot be resolved")
		return geocode.Disabled{}
	}
	google, err := geocode.NewGoogle(geocode.Config{
		APIKey:   cfg.Geocoding.APIKey,
		Region:   cfg.Geocoding.Region,
		Language: cfg.Geocoding.Language,
		Timeout:  cfg.Geocoding.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to create geocoder", logger.Err(err))
	}
	if redisClient == nil {
		return google
	}
	return geocode.NewCached(google, redisClient, cfg.Cache.TTLGeocode, log)
}

func reportPoolStats(ctx context.Context, interval time.Duration, nrApp *monitoring.NewRelicApp, db *sqlx.DB, redisClient *redis.Client) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if db != nil {
				nrApp.RecordDatabasePoolStats(db.Stats())
			}
			if redisClient != nil {
				nrApp.RecordRedisPoolStats(cache.GetClientStats(redisClient))
			}
		}
	}
}
