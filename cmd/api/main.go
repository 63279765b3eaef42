package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sportsbet-ev/sportsbet-api/internal/app"
	"github.com/sportsbet-ev/sportsbet-api/internal/auth"
	"github.com/sportsbet-ev/sportsbet-api/internal/bets"
	"github.com/sportsbet-ev/sportsbet-api/internal/games"
	"github.com/sportsbet-ev/sportsbet-api/internal/observability"
	"github.com/sportsbet-ev/sportsbet-api/internal/platform/cache"
	"github.com/sportsbet-ev/sportsbet-api/internal/platform/db"
	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
	"github.com/sportsbet-ev/sportsbet-api/internal/users"
	"github.com/sportsbet-ev/sportsbet-api/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: time.Hour})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		logger.Error("token issuer", slog.Any("error", err))
		os.Exit(1)
	}
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	rbacRepo := rbac.NewRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo, cfg.ProtectedRoleName, auditLogger, logger)
	rbacMiddleware := rbac.Middleware{Logger: logger}
	authMiddleware := auth.Middleware{Resolver: auth.NewResolver(tokens, rbacService), Logger: logger}

	refreshStore := auth.NewRefreshStore(redisClient)
	authService := auth.NewService(auth.ServiceParams{
		Repo:       auth.NewRepository(dbpool),
		Hasher:     hasher,
		Tokens:     tokens,
		Refresh:    refreshStore,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		Logger:     logger,
	})
	usersService := users.NewService(users.NewRepository(dbpool), hasher, rbacService, refreshStore, logger)
	gamesService := games.NewService(games.NewRepository(dbpool), games.NewHeuristicTipster(), logger)
	betsService := bets.NewService(bets.NewRepository(dbpool), logger).WithIdempotency(shared.NewIdempotencyStore(dbpool))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthMiddleware: authMiddleware,
		AuthHandler:    auth.NewHandler(logger, authService, authMiddleware, app.LoginLimiter(cfg)),
		RBACHandler:    rbac.NewHandler(logger, rbacService, rbacMiddleware),
		UsersHandler:   users.NewHandler(logger, usersService, authMiddleware, rbacMiddleware),
		GamesHandler:   games.NewHandler(logger, gamesService, authMiddleware, rbacMiddleware),
		BetsHandler:    bets.NewHandler(logger, betsService, authMiddleware, rbacMiddleware),
		JobHandler:     jobs.NewHandler(jobClient, inspector, rbacMiddleware, logger),
		Metrics:        metrics,
		Readiness: []app.ReadinessCheck{
			{Name: "postgres", Check: dbpool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
