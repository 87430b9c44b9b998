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

	"github.com/redis/go-redis/v9"

	"github.com/malibag-society/malibag/internal/accounts"
	"github.com/malibag-society/malibag/internal/app"
	"github.com/malibag-society/malibag/internal/auth"
	"github.com/malibag-society/malibag/internal/categories"
	"github.com/malibag-society/malibag/internal/collections"
	"github.com/malibag-society/malibag/internal/gate"
	"github.com/malibag-society/malibag/internal/home"
	"github.com/malibag-society/malibag/internal/investments"
	"github.com/malibag-society/malibag/internal/ledger"
	"github.com/malibag-society/malibag/internal/members"
	"github.com/malibag-society/malibag/internal/observability"
	"github.com/malibag-society/malibag/internal/reports"
	"github.com/malibag-society/malibag/internal/session"
	"github.com/malibag-society/malibag/internal/settings"
	"github.com/malibag-society/malibag/internal/transport"
	"github.com/malibag-society/malibag/internal/view"
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

	// The durable session slot lives in Redis when available, on disk
	// otherwise. Either way it is one named location holding one
	// serialized snapshot.
	var slot session.Slot
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping", slog.Any("error", err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		slot = session.NewRedisSlot(redisClient, cfg.SessionSlotKey)
	} else {
		slot = session.NewFileSlot(cfg.SessionSlotPath)
	}

	sessions := session.NewStore(slot, logger)
	sessions.Hydrate(ctx)

	authLost := transport.NewAuthLostHub()
	authLost.Subscribe(auth.SubscribeAuthLost(sessions, logger))

	apiTransport := transport.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.APITimeout}, sessions, authLost, logger)
	api := ledger.NewClient(apiTransport)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	authGate := gate.Gate{Sessions: sessions, Logger: logger}
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:    logger,
		Config:    cfg,
		Templates: templates,
		Sessions:  sessions,
		Gate:      authGate,

		AuthHandler:        auth.NewHandler(logger, api, sessions, templates),
		HomeHandler:        home.NewHandler(logger, sessions, apiTransport, templates),
		MembersHandler:     members.NewHandler(logger, sessions, api, apiTransport, templates, authGate),
		AccountsHandler:    accounts.NewHandler(logger, sessions, api, apiTransport, templates, authGate),
		CollectionsHandler: collections.NewHandler(logger, sessions, api, apiTransport, templates),
		InvestmentsHandler: investments.NewHandler(logger, sessions, api, apiTransport, templates),
		ReportsHandler:     reports.NewHandler(logger, sessions, apiTransport, templates),
		CategoriesHandler:  categories.NewHandler(logger, sessions, api, apiTransport, templates),
		SettingsHandler:    settings.NewHandler(logger, sessions, api, templates),

		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("dashboard listening", slog.String("addr", cfg.AppAddr), slog.String("api", cfg.APIBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
	logger.Info("dashboard stopped")
}
