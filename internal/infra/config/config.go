package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultSheetURL is the Apps Script deployment the classroom app ships with.
const DefaultSheetURL = "https://script.google.com/macros/s/AKfycbzzAe3RDpbe895RvxIEeIKN7OXllBBwkh1z7uydMWQ61R7-SyvgzyvfzYrL8xX9dxJE/exec"

// AppConfig describes the configuration of every binary.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Sheet struct {
		URL string `envconfig:"SHEET_URL"`
		// Zero keeps the transport default (no timeout).
		Timeout time.Duration `envconfig:"REMOTE_TIMEOUT" default:"0s"`
		// Long-running binaries re-read the sheet this often. Zero disables it.
		RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"5m"`
	} `envconfig:""`

	Admin struct {
		Password string `envconfig:"ADMIN_PASSWORD" default:"1234"`
	} `envconfig:""`

	Settings struct {
		RedisAddr string `envconfig:"REDIS_ADDR"`
		Prefix    string `envconfig:"SETTINGS_PREFIX" default:"qissati:settings:"`
		// Used when RedisAddr is empty. Empty too means settings live in memory.
		DBPath string `envconfig:"SETTINGS_DB"`
	} `envconfig:""`

	Chat struct {
		Provider string `envconfig:"CHAT_PROVIDER" default:"gemini"`

		GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
		GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

		OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY"`
		OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL"`
		OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout       time.Duration `envconfig:"CHAT_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Telegram struct {
		Token       string `envconfig:"TG_BOT_TOKEN"`
		PollTimeout int    `envconfig:"TG_POLL_TIMEOUT" default:"30"`
		// Set to serve updates over a webhook instead of long polling.
		WebhookAddr string `envconfig:"TG_WEBHOOK_ADDR"`
	} `envconfig:""`
}

// Load reads .env (if present) and then the environment.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Parse is Load without exiting on error.
func Parse() (AppConfig, error) {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if cfg.Sheet.URL == "" {
		cfg.Sheet.URL = DefaultSheetURL
	}
	if cfg.Chat.GeminiAPIKey == "" {
		// the web build reads the key as API_KEY
		cfg.Chat.GeminiAPIKey = os.Getenv("API_KEY")
	}
	return cfg, nil
}
