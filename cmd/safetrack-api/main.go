package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcusj/safetrack/internal/api"
	"github.com/marcusj/safetrack/internal/blob"
	"github.com/marcusj/safetrack/internal/config"
	"github.com/marcusj/safetrack/internal/core"
	"github.com/marcusj/safetrack/internal/db"
	"github.com/marcusj/safetrack/internal/jobs"
	"github.com/marcusj/safetrack/internal/llm"
	"github.com/marcusj/safetrack/internal/logging"
	"github.com/marcusj/safetrack/internal/ratelimit"
	"github.com/marcusj/safetrack/internal/vision"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations/core", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	limiter := ratelimit.New(ratelimit.DefaultMaxKeys, ratelimit.DefaultIdleTTL)
	if cfg.RateLimitPolicyFile != "" {
		if err := ratelimit.LoadPolicyFile(cfg.RateLimitPolicyFile); err != nil {
			logger.Fatal().Err(err).Str("file", cfg.RateLimitPolicyFile).Msg("failed to load rate-limit policies")
		}
		logger.Info().Str("file", cfg.RateLimitPolicyFile).Msg("rate-limit policy overrides loaded")
	}

	blobs := blob.NewStore(logger, cfg)
	visionClient := vision.NewClient(logger, cfg)
	llmClient := llm.NewClient(logger, cfg, limiter)

	jobPool := jobs.NewPool(logger, cfg.JobWorkers, cfg.JobQueueSize)
	jobPool.Start(ctx)

	services := core.NewServices(pool, core.Deps{
		Logger:     logger,
		Blobs:      blobs,
		Vision:     visionClient,
		Generator:  llmClient,
		Limiter:    limiter,
		Enqueuer:   jobPool,
		BcryptCost: cfg.BcryptCost,
	})

	srv := api.NewServer(logger, pool, cfg, services, limiter, blobs, jobPool)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	// Let in-flight background jobs finish before exiting.
	jobPool.Shutdown()
}
