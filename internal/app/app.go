// Package app assembles the engine shared by every binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"qissati/internal/adapters/gemini"
	"qissati/internal/adapters/openaichat"
	"qissati/internal/adapters/sheet"
	"qissati/internal/domain"
	"qissati/internal/infra/cache"
	"qissati/internal/infra/config"
	applog "qissati/internal/infra/log"
	"qissati/internal/normalize"
	"qissati/internal/usecase/settings"
	"qissati/internal/usecase/stories"
)

// App holds the wired components. Close releases them.
type App struct {
	Config   config.AppConfig
	Logger   zerolog.Logger
	Gateway  *sheet.Client
	Store    *stories.Store
	Settings *settings.Service
	Chat     domain.ChatBackend

	closers []func() error
}

// New builds the engine from cfg and rehydrates persisted settings.
// It does not contact the sheet; call Store.Refresh for that.
func New(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	gateway, err := sheet.New(cfg.Sheet.URL, sheet.WithTimeout(cfg.Sheet.Timeout))
	if err != nil {
		return nil, fmt.Errorf("sheet gateway: %w", err)
	}
	a.Gateway = gateway

	a.Store = stories.New(stories.Config{
		Gateway:    gateway,
		Normalizer: normalize.New(),
		Logger:     applog.Component(logger, "stories"),
	})
	a.closers = append(a.closers, func() error { a.Store.Close(); return nil })

	repo, err := a.settingsRepo(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Settings = settings.New(settings.Config{
		Repo:     repo,
		Gateway:  gateway,
		Store:    a.Store,
		Logger:   applog.Component(logger, "settings"),
		Defaults: domain.Settings{EndpointURL: cfg.Sheet.URL, AdminPassword: cfg.Admin.Password},
	})
	if err := a.Settings.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("settings: %w", err)
	}

	a.Chat = a.chatBackend(ctx)
	return a, nil
}

// Close releases every component in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RunRefresher re-reads the sheet every interval until ctx is done.
func (a *App) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// failures are logged by the store and reflected in its status
			_ = a.Store.Refresh(ctx)
		}
	}
}

func (a *App) settingsRepo(ctx context.Context) (domain.SettingsRepo, error) {
	if a.Config.Settings.RedisAddr == "" {
		if path := a.Config.Settings.DBPath; path != "" {
			repo, err := cache.NewSQLite(ctx, path)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, repo.Close)
			a.Logger.Info().Str("path", path).Msg("app: settings kept in sqlite")
			return repo, nil
		}
		a.Logger.Info().Msg("app: settings kept in memory")
		return cache.NewMemory(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: a.Config.Settings.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.Logger.Info().Str("addr", a.Config.Settings.RedisAddr).Msg("app: settings kept in redis")
	return cache.NewRedis(client, a.Config.Settings.Prefix), nil
}

func (a *App) chatBackend(ctx context.Context) domain.ChatBackend {
	chatCfg := a.Config.Chat
	var (
		backend domain.ChatBackend
		err     error
	)
	switch provider := strings.ToLower(strings.TrimSpace(chatCfg.Provider)); provider {
	case "openai":
		backend, err = openaichat.New(openaichat.Config{
			APIKey:  chatCfg.OpenAIAPIKey,
			BaseURL: chatCfg.OpenAIBaseURL,
			Model:   chatCfg.OpenAIModel,
			Timeout: chatCfg.Timeout,
		})
	case "gemini", "":
		backend, err = gemini.New(ctx, chatCfg.GeminiAPIKey, chatCfg.GeminiModel)
	default:
		err = fmt.Errorf("unknown chat provider %q", provider)
	}
	if err != nil {
		a.Logger.Warn().Err(err).Msg("app: assistant disabled")
		return unavailableBackend{err: err}
	}
	return backend
}

// unavailableBackend makes every chat exchange end with the connection notice.
type unavailableBackend struct{ err error }

func (b unavailableBackend) NewSession(context.Context, string) (domain.ChatSession, error) {
	return nil, b.err
}
