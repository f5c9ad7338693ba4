// Package gemini implements the chat backend on Google's Gemini chats API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"qissati/internal/domain"
	"qissati/internal/infra/metrics"
)

const DefaultModel = "gemini-2.5-flash"

type messageSender interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatOpener func(ctx context.Context, model string, config *genai.GenerateContentConfig) (messageSender, error)

// Backend opens one Gemini chat per session.
type Backend struct {
	open  chatOpener
	model string
}

// New creates a backend bound to apiKey.
func New(ctx context.Context, apiKey, model string) (*Backend, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newBackend(func(ctx context.Context, model string, config *genai.GenerateContentConfig) (messageSender, error) {
		return client.Chats.Create(ctx, model, config, nil)
	}, model), nil
}

func newBackend(open chatOpener, model string) *Backend {
	if model == "" {
		model = DefaultModel
	}
	return &Backend{open: open, model: model}
}

// NewSession starts a chat whose system instruction is fixed for its lifetime.
func (b *Backend) NewSession(ctx context.Context, instruction string) (domain.ChatSession, error) {
	chat, err := b.open(ctx, b.model, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create chat: %w", err)
	}
	return &session{chat: chat, model: b.model}, nil
}

type session struct {
	chat  messageSender
	model string
}

// Send returns the reply text, which may be empty when the model produced no text part.
func (s *session) Send(ctx context.Context, text string) (string, error) {
	start := time.Now()
	resp, err := s.chat.SendMessage(ctx, genai.Part{Text: text})
	metrics.ObserveNetworkRequest("gemini", "send_message", s.model, start, err)
	if err != nil {
		return "", fmt.Errorf("gemini: send message: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	if usage := resp.UsageMetadata; usage != nil {
		metrics.ObserveLLMGeneration(s.model, time.Since(start),
			int(usage.PromptTokenCount), int(usage.CandidatesTokenCount), int(usage.TotalTokenCount))
	}
	return resp.Text(), nil
}

var _ domain.ChatBackend = (*Backend)(nil)
