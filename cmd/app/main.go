// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"local-chat-assistant/internal/application"
	"local-chat-assistant/internal/config"
	"local-chat-assistant/internal/domain/model"
	"local-chat-assistant/internal/domain/ports/repository"
	aiAdapters "local-chat-assistant/internal/infra/adapters/ai"
	tele "local-chat-assistant/internal/infra/adapters/telegram"
	pg "local-chat-assistant/internal/infra/db/postgres"
	"local-chat-assistant/internal/infra/i18n"
	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/infra/metrics"
	red "local-chat-assistant/internal/infra/redis"
	"local-chat-assistant/internal/infra/sched"
	"local-chat-assistant/internal/infra/security"
	"local-chat-assistant/internal/infra/web"
	"local-chat-assistant/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, optional config file)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ---- Inference ----
	ai, err := aiAdapters.NewFromConfig(ctx, cfg.AI, logger)
	if err != nil {
		return err
	}
	counter := aiAdapters.NewTokenCounter("", logger)
	warmCtx, cancelWarm := context.WithTimeout(ctx, 5*time.Second)
	if err := counter.Warm(warmCtx); err != nil {
		logger.Warn().Err(err).Msg("token encoding not ready; counts are estimated until it loads")
	}
	cancelWarm()
	infer := usecase.NewInferenceClient(ai, cfg.AI.Model, cfg.AI.Timeout, counter, logger)
	logger.Info().
		Str("provider", ai.Name()).
		Str("base_url", cfg.AI.BaseURL).
		Str("model", cfg.AI.Model).
		Dur("timeout", cfg.AI.Timeout).
		Msg("inference configured")

	// ---- Redis (optional) ----
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
	}

	// ---- Workspace storage ----
	var (
		repo   repository.WorkspaceRepository
		purger repository.WorkspacePurger
	)
	switch cfg.Workspace.Storage {
	case config.StorageRedis:
		repo = red.NewChatCache(redisClient, cfg.Redis.TTL)
	case config.StoragePostgres:
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		go pg.ReportPoolStats(ctx, pool, 30*time.Second, logger)

		pgRepo, err := newPostgresRepo(pool, cfg.Security.EncryptionKey, logger)
		if err != nil {
			return err
		}
		purger = pgRepo
		repo = pgRepo
		if redisClient != nil {
			repo = pg.NewWorkspaceRepoCacheDecorator(pgRepo, red.NewChatCache(redisClient, cfg.Redis.TTL), logger)
		}
	}
	logger.Info().Str("storage", cfg.Workspace.Storage).Msg("workspace storage configured")

	// ---- Use cases ----
	reg := usecase.NewWorkspaceRegistry(repo, logger, model.WithTokenCounter(counter.Count))
	var (
		locker  usecase.TurnLocker
		limiter usecase.RateLimiter
	)
	if redisClient != nil {
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
	}
	chatUC := usecase.NewChatUseCase(reg, infer, locker, limiter, usecase.Limits{
		MessagesPerMinute: cfg.Workspace.MessagesPerMinute,
		UploadsPerMinute:  cfg.Workspace.UploadsPerMinute,
		LockTTL:           cfg.AI.Timeout + 30*time.Second,
	}, logger)

	// ---- Background workers ----
	if reg.Durable() {
		idle := sched.NewIdleWorker(cfg.Workspace.SweepInterval, cfg.Workspace.IdleTTL, reg, logger)
		go func() { _ = idle.Run(ctx) }()
	} else {
		logger.Info().Msg("memory storage: idle workspaces are kept until restart")
	}
	if purger != nil && cfg.Workspace.Retention > 0 {
		retention := sched.NewRetentionWorker(time.Hour, cfg.Workspace.Retention, purger, logger)
		go func() { _ = retention.Run(ctx) }()
	}

	// ---- HTTP ----
	secret := cfg.Security.SessionSecret
	if secret == "" {
		logger.Warn().Msg("security.session_secret not set; workspace cookies will not survive a restart")
		secret = uuid.NewString()
	}
	auth := web.NewAuthManager(secret, cfg.Security.SecureCookie, "", cfg.Security.SessionTTL)
	server := web.NewServer(chatUC, auth, cfg.HTTP.MaxUploadBytes, logger)
	errc := make(chan error, 2)
	go func() { errc <- server.Start(cfg.HTTP.Port) }()

	// ---- Telegram (optional) ----
	if cfg.Bot.Token != "" {
		tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
		if err != nil {
			return err
		}
		facade := application.NewBotFacade(chatUC, tr, cfg.HTTP.MaxUploadBytes, logger)
		bot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, tr, limiter, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		go func() {
			if err := bot.StartPolling(ctx); err != nil && ctx.Err() == nil {
				errc <- fmt.Errorf("telegram polling: %w", err)
			}
		}()
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("component stopped")
		}
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	logger.Info().Int("workspaces", reg.Len()).Msg("bye")
	return nil
}

func newPostgresRepo(pool *pgxpool.Pool, key string, logger *zerolog.Logger) (*pg.WorkspaceRepo, error) {
	if key == "" {
		logger.Warn().Msg("security.encryption_key not set; chat content is stored unencrypted")
		return pg.NewWorkspaceRepo(pool, nil), nil
	}
	enc, err := security.NewEncryptionService(key)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}
	return pg.NewWorkspaceRepo(pool, enc), nil
}
