// Package openaichat implements the chat backend on any OpenAI-compatible
// Chat Completions endpoint. The API is stateless, so each session keeps its
// own message history.
package openaichat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"qissati/internal/domain"
	"qissati/internal/infra/metrics"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1-mini"
)

// Config describes the endpoint.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// Backend implements domain.ChatBackend.
type Backend struct {
	client openaigo.Client
	model  string
}

// New creates a backend. An API key is required.
func New(cfg Config) (*Backend, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openaichat: api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Backend{client: openaigo.NewClient(opts...), model: model}, nil
}

// NewSession starts a history seeded with the system instruction.
func (b *Backend) NewSession(_ context.Context, instruction string) (domain.ChatSession, error) {
	return &session{
		backend: b,
		history: []openaigo.ChatCompletionMessageParamUnion{openaigo.SystemMessage(instruction)},
	}, nil
}

type session struct {
	backend *Backend

	mu      sync.Mutex
	history []openaigo.ChatCompletionMessageParamUnion
}

// Send posts the whole history plus text. History grows only on success.
func (s *session) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := append(s.history[:len(s.history):len(s.history)], openaigo.UserMessage(text))
	model := s.backend.model

	start := time.Now()
	resp, err := s.backend.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(model),
		Messages: messages,
	})
	metrics.ObserveNetworkRequest("openai", "chat_completions", model, start, err)
	if err != nil {
		return "", fmt.Errorf("openaichat: completion: %w", err)
	}
	metrics.ObserveLLMGeneration(model, time.Since(start),
		int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens), int(resp.Usage.TotalTokens))

	if len(resp.Choices) == 0 {
		s.history = messages
		return "", nil
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply != "" {
		messages = append(messages, openaigo.AssistantMessage(reply))
	}
	s.history = messages
	return reply, nil
}

var _ domain.ChatBackend = (*Backend)(nil)
