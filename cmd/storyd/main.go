package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"qissati/internal/adapters/httpapi"
	"qissati/internal/app"
	"qissati/internal/infra/config"
	httpinfra "qissati/internal/infra/http"
	applog "qissati/internal/infra/log"
	"qissati/internal/infra/metrics"
	"qissati/internal/usecase/chat"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storyd: setup failed")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error().Err(err).Msg("storyd: close failed")
		}
	}()

	assistant := chat.New(chat.Config{
		Backend: engine.Chat,
		Source:  engine.Store.Displayed,
		Logger:  applog.Component(logger, "chat"),
		Timeout: cfg.Chat.Timeout,
	})

	if err := engine.Store.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("storyd: initial refresh failed, serving cached state")
	}
	go engine.RunRefresher(ctx, cfg.Sheet.RefreshInterval)

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	// chat exchanges may take as long as the model allows
	server := httpinfra.NewServer(applog.Component(logger, "http"), cfg.Chat.Timeout+10*time.Second)
	httpapi.NewHandler(engine.Store, assistant, engine.Settings, applog.Component(logger, "api")).Mount(server.Router)

	go func() {
		if err := server.Start(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("storyd: server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("storyd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("storyd: graceful shutdown failed")
	}
}
