package domain

import "context"

// Gateway talks to the sheet endpoint. It holds no state besides the endpoint URL.
type Gateway interface {
	FetchState(ctx context.Context) (RawPayload, error)
	SendCommand(ctx context.Context, cmd Command) (Ack, error)
}

// ChatBackend opens conversational sessions configured with a system instruction.
type ChatBackend interface {
	NewSession(ctx context.Context, instruction string) (ChatSession, error)
}

// ChatSession keeps dialogue context between messages.
type ChatSession interface {
	Send(ctx context.Context, text string) (string, error)
}

// SettingsRepo persists opaque key-value settings.
// Get returns ok=false when the key was never written.
type SettingsRepo interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}
