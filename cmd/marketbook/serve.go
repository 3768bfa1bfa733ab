package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/marketbook/internal/action"
	"github.com/erazemk/marketbook/internal/api"
	"github.com/erazemk/marketbook/internal/auth"
	"github.com/erazemk/marketbook/internal/config"
	"github.com/erazemk/marketbook/internal/db"
	"github.com/erazemk/marketbook/internal/media"
	"github.com/erazemk/marketbook/internal/store"
	"github.com/erazemk/marketbook/internal/telemetry"
)

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeLog()

	tel, err := telemetry.Init(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	applied, err := db.Migrate(ctx, database)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	logger.Info("database ready", "path", cfg.Database.Path, "migrations_applied", applied)

	// Load JWT secret from config, or from the database (generated on first run).
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		if jwtSecret, err = store.JWTSecret(ctx, database); err != nil {
			return fmt.Errorf("loading JWT secret: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipeline := action.NewPipeline(
		store.AuditLog{DB: database},
		store.Notifications{DB: database},
		logger,
		action.NewMetrics(reg),
	)
	services := api.Services{
		Identity: action.NewIdentity(database, pipeline, auth.NewIssuer(jwtSecret, cfg.Auth.TokenTTL), action.IdentityOptions{
			AdminCode:  cfg.Auth.AdminCode,
			BcryptCost: cfg.Auth.BcryptCost,
		}, logger),
		Items:         action.NewItems(database, pipeline, logger),
		Notifications: action.NewNotifications(database, pipeline),
		Admin:         action.NewAdmin(database),
	}

	mediaStore, mediaDir, err := newMediaStore(ctx, cfg.Media)
	if err != nil {
		return err
	}

	proxies, err := cfg.Server.Proxies()
	if err != nil {
		return err
	}

	rateLimit := 0
	if cfg.RateLimit.Enabled {
		rateLimit = cfg.RateLimit.PerHour
	}

	router := api.NewRouter(services, api.Options{
		DB:        database,
		Logger:    logger,
		Uploader:  media.NewUploader(mediaStore, cfg.Media.MaxFiles, cfg.Media.MaxSize),
		MediaDir:  mediaDir,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		RateLimit:      rateLimit,
		TrustedProxies: proxies,
		CORS: api.CORSOptions{
			AllowedOrigins: cfg.CORS.Origins(),
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
			MaxAge:         cfg.CORS.MaxAge,
		},
		Development: cfg.App.IsDevelopment(),
	})
	defer router.Close()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           tel.Middleware(router),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
	}()

	logger.Info("server started",
		"addr", cfg.Server.Addr,
		"env", cfg.App.Env,
		"media", cfg.Media.Driver,
		"tracing", tel.Enabled(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("server stopped, closing database")
	return nil
}

// newMediaStore returns the configured store and, for local storage, the
// directory to serve at /media/.
func newMediaStore(ctx context.Context, cfg config.MediaConfig) (media.Store, string, error) {
	switch cfg.Driver {
	case config.MediaS3:
		s, err := media.NewS3Store(ctx, media.S3Config{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			PublicURL:      cfg.S3.PublicURL,
		})
		if err != nil {
			return nil, "", err
		}
		slog.Info("media stored in S3", "bucket", cfg.S3.Bucket)
		return s, "", nil
	default:
		s, err := media.NewLocalStore(cfg.Dir, cfg.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return s, s.Dir(), nil
	}
}
