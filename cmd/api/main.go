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

	"github.com/instadmio/instadm-appointment-setter/internal/activitylog"
	"github.com/instadmio/instadm-appointment-setter/internal/adapters/storage"
	"github.com/instadmio/instadm-appointment-setter/internal/agent"
	"github.com/instadmio/instadm-appointment-setter/internal/agentconfig"
	apphttp "github.com/instadmio/instadm-appointment-setter/internal/http"
	"github.com/instadmio/instadm-appointment-setter/internal/http/router"
	"github.com/instadmio/instadm-appointment-setter/internal/manychat"
	"github.com/instadmio/instadm-appointment-setter/internal/memory"
	"github.com/instadmio/instadm-appointment-setter/internal/scraper"
	"github.com/instadmio/instadm-appointment-setter/internal/webhook"
	"github.com/instadmio/instadm-appointment-setter/platform/ai/openaichat"
	"github.com/instadmio/instadm-appointment-setter/platform/config"
	"github.com/instadmio/instadm-appointment-setter/platform/db"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"
	"github.com/instadmio/instadm-appointment-setter/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "webhookMode", cfg.WebhookMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if cfg.GetRunMigrations() {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	val := validator.New()

	store, closeStore := initMemoryStore(ctx, cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	profileScraper := initScraper(ctx, cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	resolver := agentconfig.NewResolver(agentconfig.NewRepository(pool), cfg, log)
	activity := activitylog.NewSink(activitylog.NewRepository(pool), log)

	webhookService := webhook.NewService(webhook.ServiceDeps{
		Resolver: resolver,
		Scraper:  profileScraper,
		NewDirectory: func(apiKey string) webhook.SubscriberDirectory {
			return manychat.NewClient(cfg, apiKey, log)
		},
		NewAgent: func(tc agentconfig.TenantConfig) webhook.Agent {
			llm := openaichat.NewModel(openaichat.Config{
				APIKey:  tc.ChatAPIKey,
				BaseURL: cfg.GetOpenAIBaseURL(),
				Model:   cfg.GetChatModel(),
			})
			return agent.New(llm, store, tc.PromptData, log)
		},
		Activity:       activity,
		Validator:      val,
		Mode:           cfg.GetWebhookMode(),
		QualifiedTagID: cfg.GetManyChatQualifiedTagID(),
		Log:            log,
	})

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:               cfg,
		Logger:               log,
		Health:               db.NewPoolAdapter(pool),
		WebhookRatePerMinute: cfg.GetWebhookRateLimitPerMinute(),
		Modules: []apphttp.Module{
			webhook.NewModule(webhookService),
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

// initMemoryStore picks the conversation memory backend.
func initMemoryStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (memory.Store, func()) {
	if cfg.GetMemoryBackend() != config.MemoryBackendRedis {
		if cfg.GetZepAPIKey() == "" {
			log.Warn("ZEP_API_KEY not configured; memory calls will fail and replies continue without history")
		}
		log.Info("memory backend initialized", "backend", config.MemoryBackendZep, "url", cfg.GetZepBaseURL())
		return memory.NewZepStore(cfg, log), nil
	}

	redisStore, err := memory.NewRedisStore(cfg.GetRedisURL())
	if err != nil {
		log.Error("failed to initialize redis memory store", "error", err)
		panic("failed to initialize redis memory store: " + err.Error())
	}
	if err := withRetry(ctx, log, "redis connection", 5, time.Second, func() error {
		return redisStore.Ping(ctx)
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	log.Info("memory backend initialized", "backend", config.MemoryBackendRedis)
	return redisStore, func() {
		_ = redisStore.Close()
	}
}

// initScraper builds the profile scraper, archiving every snapshot to object
// storage when MinIO is configured.
func initScraper(ctx context.Context, cfg *config.Config, log *logger.Logger) scraper.Scraper {
	client := scraper.NewClient(cfg, log)
	if cfg.GetDataPrismAPIKey() == "" {
		log.Warn("DATAPRISM_API_KEY not configured; lead analysis will be skipped")
	}
	if !cfg.IsMinIOEnabled() {
		return client
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	bucket := cfg.GetMinioBucketProfileSnapshots()
	ensureBucket(ctx, log, storageSvc, "profile-snapshots", bucket)
	log.Info("storage service initialized", "profileSnapshotsBucket", bucket)

	return scraper.NewArchivingScraper(client, storageSvc, bucket, log)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
