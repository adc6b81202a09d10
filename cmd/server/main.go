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

	"github.com/rohits-web03/dispatch/internal/api"
	"github.com/rohits-web03/dispatch/internal/api/handlers"
	"github.com/rohits-web03/dispatch/internal/api/middleware"
	"github.com/rohits-web03/dispatch/internal/config"
	"github.com/rohits-web03/dispatch/internal/repositories"
	"github.com/rohits-web03/dispatch/internal/services"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// @title Dispatch API
// @version 1.0
// @description File transfer coordination with moderation.
// @BasePath /
func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Invalid LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repositories.OpenDatabase(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		return err
	}
	if err := repositories.Migrate(db); err != nil {
		return err
	}
	log.Info("Database connected and migrated")

	redisClient, err := repositories.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	log.Info("Redis connected")

	blobs := repositories.NewS3BlobStore(cfg.S3)
	log.WithField("bucket", cfg.S3.BucketName).Info("Blob store initialized")

	h := &handlers.Handler{
		Transfers:      services.NewTransferService(db, blobs, log),
		Recipients:     services.NewRecipientService(db, blobs, log),
		Identity:       services.NewIdentityService(db, 0),
		Sessions:       services.NewSessionService(repositories.NewRedisSessionStore(redisClient), cfg.SessionSecret, cfg.SessionTTL),
		Google:         services.NewGoogleAuth(cfg.Google),
		Files:          blobs,
		Log:            log,
		Production:     cfg.IsProduction(),
		FrontendURL:    cfg.FrontendURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	if h.Google == nil {
		log.Info("Google sign-in disabled: GOOGLE_CLIENT_ID not set")
	}

	limiter := middleware.NewRateLimiter(rate.Every(time.Second), 5)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: api.SetupRouter(h, cfg.CorsConfig, limiter),
		// Timeouts prevent resource exhaustion from slow clients
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting Dispatch server on port: %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Cleanup()
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
