package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicretail/internal/adapters/cache"
	"github.com/zatekoja/clinicretail/internal/adapters/database"
	"github.com/zatekoja/clinicretail/internal/adapters/events"
	"github.com/zatekoja/clinicretail/internal/api/handlers"
	"github.com/zatekoja/clinicretail/internal/api/middleware"
	"github.com/zatekoja/clinicretail/internal/api/routes"
	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/repositories"
	"github.com/zatekoja/clinicretail/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clinicretail/internal/infrastructure/clients/sqldb"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
	"github.com/zatekoja/clinicretail/internal/query/loaders"
	"github.com/zatekoja/clinicretail/internal/query/services"
	"github.com/zatekoja/clinicretail/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logging
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	log.Info().
		Str("service", cfg.OTEL.ServiceName).
		Str("version", cfg.OTEL.ServiceVersion).
		Str("env", cfg.Server.Env).
		Str("db_driver", cfg.Database.Driver).
		Msg("Starting API server")

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	// Initialize database client
	dbClient, err := sqldb.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database client")
	}
	defer dbClient.Close()

	// Local sqlite databases are created and seeded on start
	if cfg.Database.Driver == "sqlite3" {
		if err := database.EnsureSchema(ctx, dbClient); err != nil {
			log.Fatal().Err(err).Msg("Failed to create schema")
		}
		if err := database.SeedDemoData(ctx, dbClient); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed demo data")
		}
		log.Info().Str("path", cfg.Database.Path).Msg("SQLite database ready")
	}

	healthChecks := map[string]handlers.Pinger{"database": dbClient}

	// Initialize Redis client; facet responses are served uncached without it
	var cacheMiddleware *middleware.CacheMiddleware
	var eventBus *events.RedisEventBus
	var redisCache *cache.RedisAdapter
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Redis client, facet responses will not be cached")
		} else {
			defer redisClient.Close()
			healthChecks["redis"] = redisClient
			redisCache = cache.NewRedisAdapter(redisClient)
			cacheMiddleware = middleware.NewCacheMiddleware(redisCache, cfg.Filter.FacetCacheTTL)
			log.Info().Int("ttl_seconds", cfg.Filter.FacetCacheTTL).Msg("Redis facet cache enabled")

			eventBus = events.NewRedisEventBus(redisClient)
			defer eventBus.Close()
		}
	}

	// Initialize adapters and services
	catalog := entities.DefaultCatalog()
	var accessor repositories.RecordAccessor = database.NewRecordQueryAdapter(dbClient, catalog)
	var cachedAccessor *database.CachedRecordAccessor
	if redisCache != nil {
		cachedAccessor = database.NewCachedRecordAccessor(accessor, redisCache)
		accessor = cachedAccessor
	}

	opts := services.RecordQueryOptions{
		DefaultPageSize: cfg.Filter.DefaultPageSize,
		MaxPageSize:     cfg.Filter.MaxPageSize,
		Metrics:         metrics,
	}
	if cfg.Filter.Diagnostics {
		opts.Diagnostics = services.LogDiagnostics
	}
	recordService := services.NewRecordQueryService(accessor, catalog, opts)

	// Initialize handlers
	var invalidator handlers.CacheInvalidator
	if cacheMiddleware != nil {
		invalidator = cacheMiddleware
	}
	recordHandler := handlers.NewRecordHandler(recordService)
	facetHandler := handlers.NewFacetHandler(recordService, catalog, invalidator)
	healthHandler := handlers.NewHealthHandler(healthChecks)
	if eventBus != nil {
		facetHandler.SetEventPublisher(eventBus)
	}
	if cachedAccessor != nil {
		facetHandler.SetLabelInvalidator(cachedAccessor)
	}

	router := routes.NewRouter(recordHandler, facetHandler, healthHandler, cacheMiddleware, cfg.Server.AllowedOrigins, metrics)
	if eventBus != nil {
		router.WithFacetStream(handlers.NewFacetStreamHandler(eventBus))
	}

	// One label loader set per request so relation labels batch across records
	loaderMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := loaders.WithLoaders(r.Context(), loaders.NewLoaders(accessor))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      loaderMiddleware(router.SetupRoutes()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("address", serverAddr).Msg("API server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("API server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("API server stopped")
}
