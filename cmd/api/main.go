package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/auth-gateway/internal/api/http"
	"github.com/spec-kit/auth-gateway/internal/api/http/handlers"
	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/gate"
	"github.com/spec-kit/auth-gateway/internal/mail"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/persistence"
	"github.com/spec-kit/auth-gateway/internal/repository"
	"github.com/spec-kit/auth-gateway/internal/service"
	"github.com/spec-kit/auth-gateway/internal/shield"
	"github.com/spec-kit/auth-gateway/internal/worker"
)

const (
	mailQueueSize = 256
	mailSenders   = 2
)

type repositories struct {
	users         repository.UserRepository
	sessions      repository.SessionRepository
	verifications repository.VerificationRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing, cfg.App.Name, cfg.App.Version)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redis *persistence.Redis
	if cfg.Gate.Store == "redis" {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
	}

	repos := buildRepositories(pg)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		Users:         repos.users,
		Sessions:      repos.sessions,
		Verifications: repos.verifications,
		Dispatcher:    dispatcher,
		Logger:        logger.Named("auth"),
	})

	mailWorker := worker.NewMailWorker(mail.New(cfg.Mail, logger.Named("mail")), logger.Named("mail"), mailQueueSize)
	notifications := service.NewNotificationService(dispatcher, mailWorker, logger.Named("notifications"))
	worker.StartNotificationWorker(ctx, notifications, mailWorker, mailSenders)

	var cache *auth.CookieCache
	if cfg.Session.CookieCache {
		cache = authService.CookieCache()
	}
	requestGate, stats, err := buildGate(ctx, cfg.Gate, redis, gate.Deps{
		Sessions: service.NewSessionResolver(repos.sessions, cache),
		Logger:   logger.Named("gate"),
		Metrics:  metrics,
	})
	if err != nil {
		logger.Fatal("failed to build request gate", zap.Error(err))
	}
	logger.Info("request gate ready",
		zap.String("mode", cfg.Gate.Mode),
		zap.String("store", cfg.Gate.Store),
		zap.Bool("fail_open", cfg.Gate.FailOpen))

	app := fiber.New(fiber.Config{
		AppName:            cfg.App.Name,
		ProxyHeader:        proxyHeader(cfg.Gate),
		EnableIPValidation: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics: handlers.NewMetricsHandler(metrics, stats),
		Auth: handlers.NewAuthHandler(authService, auth.CookieOptions{
			Secure: cfg.Session.SecureCookies,
			Domain: cfg.Session.CookieDomain,
		}),
		Gate:     requestGate.Handler(),
		Sessions: auth.NewSessionMiddleware(authService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	mailWorker.Stop()
	cancel()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

// buildRepositories picks Postgres when a pool is open and the in-memory
// store otherwise.
func buildRepositories(pg *persistence.Postgres) repositories {
	if pg.Enabled() {
		pool := pg.PoolHandle()
		return repositories{
			users:         repository.NewUserRepository(pool),
			sessions:      repository.NewSessionRepository(pool),
			verifications: repository.NewVerificationRepository(pool),
		}
	}
	store := repository.NewMemoryStore()
	return repositories{
		users:         store.Users(),
		sessions:      store.Sessions(),
		verifications: store.Verifications(),
	}
}

// buildGate assembles the window store, email validator, policies and stats
// for the configured backend. The returned DecisionStats is nil unless the
// stats live in process.
func buildGate(ctx context.Context, cfg config.GateConfig, redis *persistence.Redis, deps gate.Deps) (*gate.Gate, handlers.DecisionStats, error) {
	namespace := gate.StoreNamespace(cfg)

	var (
		store      shield.WindowStore
		readable   handlers.DecisionStats
		statsStore shield.StatsStore
	)
	if redis != nil {
		store = shield.NewRedisWindowStore(redis.Client, shield.WithRedisPrefix(namespace+":window"))
		if cfg.StatsEnabled {
			statsStore = shield.NewRedisStatsStore(redis.Client, shield.WithStatsPrefix(namespace+":stats"))
		}
	} else {
		memory := shield.NewMemoryWindowStore()
		memory.StartJanitor(ctx)
		store = memory
		if cfg.StatsEnabled {
			mem := shield.NewMemoryStatsStore()
			statsStore, readable = mem, mem
		}
	}

	validator := shield.NewEmailValidator(
		shield.WithLookupRate(cfg.MXLookupRPS, int(cfg.MXLookupRPS)),
		shield.WithLookupTimeout(cfg.MXTimeout),
	)
	policies, err := gate.NewPolicies(cfg, store, validator)
	if err != nil {
		return nil, nil, err
	}

	deps.Protector = shield.NewProtector(deps.Logger)
	deps.Policies = policies
	deps.Stats = statsStore
	g, err := gate.New(cfg, deps)
	if err != nil {
		return nil, nil, err
	}
	return g, readable, nil
}

func proxyHeader(cfg config.GateConfig) string {
	if cfg.TrustProxy {
		return fiber.HeaderXForwardedFor
	}
	return ""
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
