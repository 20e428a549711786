// Command registryd serves the registry's public HTTP API, SSO login
// flows, and web UI assets, and runs its background maintenance jobs.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pkgforge/registry/pkg/audit"
	"github.com/pkgforge/registry/pkg/auth"
	"github.com/pkgforge/registry/pkg/blobstore"
	"github.com/pkgforge/registry/pkg/blobstore/backup"
	"github.com/pkgforge/registry/pkg/bootstrap"
	"github.com/pkgforge/registry/pkg/config"
	"github.com/pkgforge/registry/pkg/discovery"
	"github.com/pkgforge/registry/pkg/jobs"
	"github.com/pkgforge/registry/pkg/middleware"
	"github.com/pkgforge/registry/pkg/observability"
	"github.com/pkgforge/registry/pkg/ratelimit"
	"github.com/pkgforge/registry/pkg/registryapi"
	"github.com/pkgforge/registry/pkg/sso"
	"github.com/pkgforge/registry/pkg/static"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting pkgforge registry")
	logger.Infof("Catalog backend: %s", bootstrap.CatalogKind(cfg.Catalog.DBPath))

	ctx := context.Background()
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry")
		// Don't fail - continue without OTel
	}

	cat, db, err := bootstrap.OpenCatalog(cfg.Catalog.DBPath, logger)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	logger.Info("Catalog opened")

	blobs, err := blobstore.NewFileSystemStore(cfg.Blobstore.StoragePath, cfg.Blobstore.MaxPackageSize)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}
	logger.Infof("Blob store initialized: %s", cfg.Blobstore.StoragePath)

	var mirror *backup.Mirror
	if cfg.Blobstore.BackupBucket != "" {
		mirror, err = backup.NewMirror(ctx, backup.Config{
			Endpoint:     cfg.Blobstore.BackupEndpoint,
			Region:       cfg.Blobstore.BackupRegion,
			Bucket:       cfg.Blobstore.BackupBucket,
			AccessKey:    cfg.Blobstore.BackupAccessKey,
			SecretKey:    cfg.Blobstore.BackupSecretKey,
			UsePathStyle: cfg.Blobstore.BackupUsePathStyle,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to initialize S3 backup mirror")
		} else {
			logger.Infof("S3 backup mirror enabled: bucket %s", cfg.Blobstore.BackupBucket)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = ratelimit.NewRedisClient(ratelimit.Config{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis; continuing without it")
			redisClient = nil
		} else {
			logger.Info("Redis connected")
		}
	}

	var disco *discovery.Client
	if cfg.Discovery.URL != "" {
		cache, err := discovery.NewCache(256, redisClient, logger)
		if err != nil {
			log.Fatalf("Failed to initialize discovery cache: %v", err)
		}
		disco = discovery.NewClient(cfg.Discovery.URL, cache)
		logger.Infof("Discovery proxy enabled: %s", cfg.Discovery.URL)
	}

	var signedIssuer *auth.SignedTokenIssuer
	if cfg.Auth.SecretKey != "" {
		signedIssuer = auth.NewSignedTokenIssuer([]byte(cfg.Auth.SecretKey))
	}

	server := registryapi.NewServer(cat, blobs, mirror, disco, signedIssuer, cfg, logger)

	auditLogger, err := buildAuditLogger(db, bootstrap.IsPostgresDSN(cfg.Catalog.DBPath), logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize audit logger; continuing with no-op logging")
	} else {
		server.SetAuditLogger(auditLogger)
		if store := newAuditStore(auditLogger); store != nil {
			server.RegisterRoutes(audit.NewHandlers(store))
			logger.Info("Audit routes registered")
		}
	}

	if redisClient != nil {
		server.UseMiddleware(middleware.NewDistributedRateLimitMiddleware(redisClient).Handler)
		logger.Info("Distributed (Redis-backed) rate limiting enabled")
	} else {
		server.UseMiddleware(middleware.NewRateLimitMiddleware().Handler)
		logger.Info("In-process rate limiting enabled")
	}

	ssoHandlers := sso.NewHandlers(db, cat, cat, cfg.Auth.RedirectBaseURL)
	server.RegisterRoutes(ssoHandlers)
	logger.Info("SSO routes registered")

	server.RegisterRoutes(static.NewServer(cfg.Server.StaticRoot))
	logger.Info("Static asset routes registered")

	var handler http.Handler = server
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "registry-api",
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("OpenTelemetry HTTP instrumentation enabled")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.BindAddress, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("# Prometheus metrics endpoint\n"))
			w.Write([]byte("# For OTel metrics, use the OpenTelemetry Collector\n"))
		}))
		logger.Info("Metrics endpoint enabled at /metrics")
	}

	healthServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.HealthPort),
		Handler:      healthMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("Starting health/metrics server on port %s", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	scheduler := jobs.NewScheduler(jobs.Config{}, cat, disco, server, logger)
	scheduler.Start()
	logger.Info("Background job scheduler started")

	shutdownManager := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)

	shutdownManager.RegisterShutdownFunc(func(ctx context.Context) error {
		logger.Info("Stopping background job scheduler")
		scheduler.Stop(ctx)
		return nil
	})

	shutdownManager.RegisterShutdownFunc(func(ctx context.Context) error {
		logger.Info("Shutting down health server")
		return healthServer.Shutdown(ctx)
	})

	shutdownManager.RegisterShutdownFunc(func(ctx context.Context) error {
		logger.Info("Closing catalog")
		return cat.Close()
	})

	if otelProviders != nil {
		shutdownManager.RegisterShutdownFunc(func(ctx context.Context) error {
			logger.Info("Shutting down OpenTelemetry")
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		logger.Infof("Starting registry API server on %s:%s", cfg.Server.BindAddress, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	logger.Info("Server started successfully, waiting for shutdown signal")
	if err := shutdownManager.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
		os.Exit(1)
	}

	logger.Info("Server shutdown complete")
}

// auditBasePath is a var, not a const, so tests can point it at a temp
// directory instead of writing under the process's working directory.
var auditBasePath = "./data/audit"

// buildAuditLogger wires a durable audit sink, plus a file-backed copy for
// offline forensics. audit.DBLogger's schema (JSONB columns, $N placeholders,
// RETURNING) is PostgreSQL-specific, so it's only wired when the catalog
// itself is backed by PostgreSQL; a sqlite deployment gets file-only audit
// logging.
func buildAuditLogger(db *sql.DB, isPostgres bool, logger *observability.Logger) (audit.Logger, error) {
	fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
		BasePath: auditBasePath,
		Rotate:   true,
		MaxSize:  100 * 1024 * 1024,
		MaxFiles: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("create file audit logger: %w", err)
	}

	if !isPostgres {
		return fileLogger, nil
	}

	dbLogger, err := audit.NewDBLogger(db)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize database audit logger; using file only")
		return fileLogger, nil
	}

	return audit.NewMultiLogger(dbLogger, fileLogger), nil
}

// newAuditStore extracts the DBLogger-backed Store from a logger built by
// buildAuditLogger, so the admin-facing /audit/* routes can query the same
// records the handlers just wrote. Returns nil if l isn't (or doesn't
// wrap) a *audit.DBLogger, e.g. when the DB logger failed to initialize.
func newAuditStore(l audit.Logger) audit.Store {
	switch v := l.(type) {
	case *audit.DBLogger:
		return audit.NewDBStore(v)
	case *audit.MultiLogger:
		for _, inner := range v.Loggers() {
			if dbLogger, ok := inner.(*audit.DBLogger); ok {
				return audit.NewDBStore(dbLogger)
			}
		}
	}
	return nil
}
