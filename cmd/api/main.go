package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/user/jobscraper-service/internal/adapter/chromedp_crawler"
	"github.com/user/jobscraper-service/internal/adapter/postgres"
	redis_adapter "github.com/user/jobscraper-service/internal/adapter/redis"
	"github.com/user/jobscraper-service/internal/delivery/http/handler"
	"github.com/user/jobscraper-service/internal/delivery/http/router"
	"github.com/user/jobscraper-service/internal/entity"
	"github.com/user/jobscraper-service/internal/usecase"
	"github.com/user/jobscraper-service/pkg/config"
	"github.com/user/jobscraper-service/pkg/logger"
	"github.com/user/jobscraper-service/pkg/metrics"
	"go.uber.org/zap"
)

func main() {
	bootstrap, _ := zap.NewProduction()

	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		bootstrap.Fatal("could not load config", zap.Error(err))
	}

	// --- Logger ---
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootstrap.Fatal("could not build logger", zap.Error(err))
	}
	defer log.Sync()

	// --- Metrics ---
	metrics.Init()

	ctx := context.Background()
	deps := usecase.RunManagerDeps{Logger: log}
	checks := map[string]handler.Pinger{}

	// --- Storage (optional) ---
	if cfg.PostgresURL != "" {
		dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal("unable to connect to database", zap.Error(err))
		}
		defer dbpool.Close()
		if err := postgres.EnsureSchema(ctx, dbpool); err != nil {
			log.Fatal("unable to prepare database schema", zap.Error(err))
		}
		deps.Runs = postgres.NewRunRepo(dbpool)
		deps.Records = postgres.NewJobRecordRepo(dbpool)
		checks["postgres"] = dbpool
		log.Info("PostgreSQL persistence enabled")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("unable to connect to Redis", zap.Error(err))
		}
		seen := redis_adapter.NewSeenRepo(rdb)
		deps.Seen = seen
		checks["redis"] = seen
		log.Info("Redis seen-job cache enabled")
	}

	// --- Pipeline ---
	table, err := entity.LoadCloudProviderTable(cfg.ProvidersFile)
	if err != nil {
		log.Fatal("could not load provider table", zap.Error(err))
	}
	classifier := usecase.NewClassifier(table)

	deps.Classifier = classifier
	deps.Pacer = usecase.NewJitterPacer(cfg.PacingRange())
	deps.Browsers = chromedp_crawler.NewSessionFactory(chromedp_crawler.Options{
		Headless:        cfg.BrowserHeadless,
		ProfileDir:      cfg.BrowserProfileDir,
		BlockImages:     cfg.BrowserBlockImages,
		PageLoadTimeout: cfg.PageLoadTimeoutDuration(),
		Identities:      chromedp_crawler.NewIdentityRotator(cfg.Proxies(), cfg.UserAgents()),
	}, log)

	runs := usecase.NewRunManager(usecase.RunManagerConfig{
		Pipeline:   pipelineConfig(cfg),
		RunHistory: cfg.RunHistory,
		SeenTTL:    cfg.SeenTTL(),
	}, deps)

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(runs, classifier.Tags(), checks, log)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(apiHandler, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("could not start server", zap.Error(err))
		}
	}()
	log.Info("server started", zap.String("port", cfg.ServerPort), zap.Strings("providers", tagStrings(classifier.Tags())))

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := runs.Shutdown(shutdownCtx); err != nil {
		log.Error("active run did not stop in time", zap.Error(err))
	}

	log.Info("server exiting")
}

func pipelineConfig(cfg *config.Config) usecase.PipelineConfig {
	nav := usecase.DefaultNavigatorConfig()
	nav.MaxAttempts = cfg.NavMaxAttempts
	nav.BaseDelay = cfg.NavBaseDelay()
	nav.RatePerSec = cfg.NavRatePerSec
	nav.VerificationTimeout = cfg.VerificationTimeoutDuration()

	return usecase.PipelineConfig{
		Navigator: nav,
		Collector: usecase.CollectorConfig{
			PageSize:            cfg.SearchPageSize,
			MaxEmptyPages:       cfg.MaxEmptyPages,
			MaxConsecutiveSkips: cfg.MaxConsecutiveSkips,
			MaxPages:            cfg.MaxPages,
		},
		Extractor:   usecase.ExtractorConfig{JobViewURL: cfg.JobViewURL},
		LogTailSize: cfg.LogTailSize,
	}
}

func tagStrings(tags []entity.ProviderTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
