// Package settings manages the endpoint URL and the admin shared secret.
package settings

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"qissati/internal/domain"
)

// Keys under which settings are persisted.
const (
	KeyEndpointURL   = "sheet_url"
	KeyAdminPassword = "admin_pwd"
)

const minPasswordLength = 4

// Validation messages shown to the admin.
const (
	MsgWrongPassword    = "كلمة المرور الحالية غير صحيحة"
	MsgPasswordTooShort = "كلمة المرور قصيرة جداً"
	MsgPasswordMismatch = "كلمات المرور غير متطابقة"
	MsgSaved            = "تم حفظ الإعدادات بنجاح"
)

// EndpointSetter is the gateway side of an endpoint change.
type EndpointSetter interface {
	SetEndpoint(endpoint string) error
}

// Refresher reloads remote state after the endpoint moved.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Update is one submission of the settings form. NewPassword empty means the
// password is left alone.
type Update struct {
	EndpointURL     string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// Config holds the service collaborators. Defaults apply to keys never saved.
type Config struct {
	Repo     domain.SettingsRepo
	Gateway  EndpointSetter
	Store    Refresher
	Logger   zerolog.Logger
	Defaults domain.Settings
}

// Service is safe for concurrent use.
type Service struct {
	repo    domain.SettingsRepo
	gateway EndpointSetter
	store   Refresher
	log     zerolog.Logger

	mu      sync.RWMutex
	current domain.Settings
}

// New creates a service holding the defaults until Load runs.
func New(cfg Config) *Service {
	return &Service{
		repo:    cfg.Repo,
		gateway: cfg.Gateway,
		store:   cfg.Store,
		log:     cfg.Logger,
		current: cfg.Defaults,
	}
}

// Load rehydrates persisted settings and points the gateway at the saved URL.
func (s *Service) Load(ctx context.Context) error {
	url, ok, err := s.repo.Get(ctx, KeyEndpointURL)
	if err != nil {
		return fmt.Errorf("load endpoint url: %w", err)
	}
	password, pwdOK, err := s.repo.Get(ctx, KeyAdminPassword)
	if err != nil {
		return fmt.Errorf("load admin password: %w", err)
	}

	s.mu.Lock()
	if ok && url != "" {
		s.current.EndpointURL = url
	}
	if pwdOK && password != "" {
		s.current.AdminPassword = password
	}
	endpoint := s.current.EndpointURL
	s.mu.Unlock()

	if s.gateway != nil {
		if err := s.gateway.SetEndpoint(endpoint); err != nil {
			return fmt.Errorf("apply endpoint url: %w", err)
		}
	}
	s.log.Info().Str("endpoint", endpoint).Msg("settings: loaded")
	return nil
}

// EndpointURL returns the active endpoint.
func (s *Service) EndpointURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.EndpointURL
}

// Authenticate reports whether password matches the admin secret.
func (s *Service) Authenticate(password string) bool {
	s.mu.RLock()
	secret := s.current.AdminPassword
	s.mu.RUnlock()
	return subtle.ConstantTimeCompare([]byte(password), []byte(secret)) == 1
}

// Update saves the endpoint URL, then validates and saves a new password if
// one was given. The URL is kept even when the password part is rejected.
func (s *Service) Update(ctx context.Context, u Update) error {
	url := strings.TrimSpace(u.EndpointURL)
	if url != "" {
		if err := s.updateEndpoint(ctx, url); err != nil {
			return err
		}
	}

	if u.NewPassword == "" {
		return nil
	}
	if !s.Authenticate(u.CurrentPassword) {
		return &domain.ValidationError{Field: "currentPassword", Message: MsgWrongPassword}
	}
	if utf8.RuneCountInString(u.NewPassword) < minPasswordLength {
		return &domain.ValidationError{Field: "newPassword", Message: MsgPasswordTooShort}
	}
	if u.NewPassword != u.ConfirmPassword {
		return &domain.ValidationError{Field: "confirmPassword", Message: MsgPasswordMismatch}
	}
	if err := s.repo.Set(ctx, KeyAdminPassword, u.NewPassword); err != nil {
		return fmt.Errorf("save admin password: %w", err)
	}
	s.mu.Lock()
	s.current.AdminPassword = u.NewPassword
	s.mu.Unlock()
	s.log.Info().Msg("settings: admin password changed")
	return nil
}

func (s *Service) updateEndpoint(ctx context.Context, url string) error {
	if s.gateway != nil {
		if err := s.gateway.SetEndpoint(url); err != nil {
			return &domain.ValidationError{Field: "endpointUrl", Message: err.Error()}
		}
	}
	if err := s.repo.Set(ctx, KeyEndpointURL, url); err != nil {
		return fmt.Errorf("save endpoint url: %w", err)
	}

	s.mu.Lock()
	changed := s.current.EndpointURL != url
	s.current.EndpointURL = url
	s.mu.Unlock()

	if !changed {
		return nil
	}
	s.log.Info().Str("endpoint", url).Msg("settings: endpoint changed")
	if s.store != nil {
		if err := s.store.Refresh(ctx); err != nil {
			s.log.Warn().Err(err).Msg("settings: refresh after endpoint change failed")
		}
	}
	return nil
}
