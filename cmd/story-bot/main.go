package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"qissati/internal/adapters/bot"
	"qissati/internal/app"
	"qissati/internal/infra/config"
	httpinfra "qissati/internal/infra/http"
	applog "qissati/internal/infra/log"
	"qissati/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("story-bot: TG_BOT_TOKEN is required")
	}

	engine, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("story-bot: setup failed")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error().Err(err).Msg("story-bot: close failed")
		}
	}()

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("story-bot: create bot")
	}
	logger.Info().Str("username", botAPI.Self.UserName).Msg("story-bot: authorized")

	if err := engine.Store.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("story-bot: initial refresh failed")
	}
	go engine.RunRefresher(ctx, cfg.Sheet.RefreshInterval)

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	h := bot.NewHandler(botAPI, applog.Component(logger, "bot"), engine.Store, engine.Chat, cfg.Chat.Timeout)

	if cfg.Telegram.WebhookAddr != "" {
		serveWebhook(ctx, logger, cfg.Telegram.WebhookAddr, h)
	} else {
		poll(ctx, logger, botAPI, cfg.Telegram.PollTimeout, h)
	}
	logger.Info().Msg("story-bot: stopped")
}

func poll(ctx context.Context, logger zerolog.Logger, botAPI *tgbotapi.BotAPI, timeout int, h *bot.Handler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	updates := botAPI.GetUpdatesChan(u)
	logger.Info().Msg("story-bot: long polling started")

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.HandleUpdate(ctx, upd)
			}()
		}
	}
}

func serveWebhook(ctx context.Context, logger zerolog.Logger, addr string, h *bot.Handler) {
	server := httpinfra.NewServer(applog.Component(logger, "http"), 0)
	server.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "invalid update")
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := server.Start(addr); err != nil {
			logger.Error().Err(err).Msg("story-bot: webhook server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("story-bot: graceful shutdown failed")
	}
}
