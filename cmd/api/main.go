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

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/cache"
	adapterHTTP "github.com/comitanigiacomo/vibedesk-engine/internal/adapters/handler/http"
	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/payment"
	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/vibedesk-engine/internal/config"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
	"github.com/comitanigiacomo/vibedesk-engine/internal/logger"
	"github.com/comitanigiacomo/vibedesk-engine/internal/migrate"
)

// @title           VibeDesk Engine API
// @version         1.0
// @description     Accounts, the synced user document and its change feed for VibeDesk devices.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router, cleanup, err := newServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// No write timeout: the document event stream stays open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("VibeDesk engine listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("stop signal received, shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}

// newServer wires storage, services and handlers for cfg. The returned
// cleanup closes every connection it opened; on error nothing is left open.
func newServer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gin.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := adapterHTTP.RouterDependencies{
		Logger:          log,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
		StartTime:       time.Now(),
	}

	var (
		store    domain.DocumentStore
		accounts domain.AccountRepository
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		if cfg.AutoMigrate {
			if err := migrate.Up(ctx, cfg.DSN()); err != nil {
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
		}

		pool, err := repository.NewPool(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connect document store: %w", err)
		}
		closers = append(closers, pool.Close)

		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect accounts: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		closers = append(closers, func() { _ = db.Close() })

		store = repository.NewPostgresDocumentStore(pool)
		accounts = repository.NewPostgresAccountRepository(db)
		deps.DB = pool
		log.Info("database connected")
	default:
		store = repository.NewInMemoryDocumentStore()
		accounts = repository.NewInMemoryAccountRepository()
		log.Warn("using in-memory storage, data is lost on restart")
	}

	var feed domain.DocumentFeed = repository.NewInMemoryFeed()
	if cfg.RedisEnabled {
		rdb, err := cache.NewRedisClient(ctx, cache.Options{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("redis unavailable, continuing without cache and rate limit", zap.Error(err))
		} else {
			closers = append(closers, closeRedis(rdb))
			store = repository.NewCachedDocumentStore(store, rdb, log)
			feed = cache.NewRedisFeed(rdb, log)
			deps.Redis = rdb
			log.Info("redis connected")
		}
	}

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, accounts)
	documents := services.NewDocumentService(store, feed, log)
	premium := services.NewPremiumService(payment.NewStripeVerifier(cfg.StripeWebhookSecret), documents, log)

	deps.TokenService = tokens
	deps.AuthHandler = adapterHTTP.NewAuthHandler(services.NewAuthService(accounts), tokens)
	deps.DocumentHandler = adapterHTTP.NewDocumentHandler(documents)
	deps.ReportHandler = adapterHTTP.NewReportHandler(services.NewReportService(store))
	deps.WebhookHandler = adapterHTTP.NewWebhookHandler(premium, log)

	return adapterHTTP.NewRouter(deps), cleanup, nil
}

func closeRedis(rdb *redis.Client) func() {
	return func() { _ = rdb.Close() }
}
