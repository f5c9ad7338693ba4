// Package chat keeps one assistant conversation bound to the displayed story.
package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"qissati/internal/domain"
	"qissati/internal/infra/metrics"
)

// ErrReplyDiscarded is returned when the displayed story changed while the
// backend was answering. The reply is not added to the new transcript.
var ErrReplyDiscarded = errors.New("chat: reply discarded after story change")

// StorySource returns the story currently on screen.
type StorySource func() (domain.Story, bool)

// Config holds the manager collaborators.
type Config struct {
	Backend domain.ChatBackend
	Source  StorySource
	Logger  zerolog.Logger
	// Timeout bounds one exchange. Zero means the caller's context only.
	Timeout time.Duration
}

// Manager holds zero or one session. The session and transcript belong to the
// story identity they were created for; any access after the displayed story
// changed starts over.
type Manager struct {
	backend domain.ChatBackend
	source  StorySource
	log     zerolog.Logger
	timeout time.Duration

	mu         sync.Mutex
	storyID    string
	session    domain.ChatSession
	transcript []domain.ChatMessage
	inFlight   bool
	generation uint64
}

// New creates a manager with an empty transcript.
func New(cfg Config) *Manager {
	return &Manager{
		backend: cfg.Backend,
		source:  cfg.Source,
		log:     cfg.Logger,
		timeout: cfg.Timeout,
	}
}

// Send appends text as a user message and waits for the model reply. Blank
// text, no displayed story or an exchange already running are no-ops reported
// with sentinel errors. Backend failures become a notice in the transcript and
// are not returned.
func (m *Manager) Send(ctx context.Context, text string) (domain.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return domain.ChatMessage{}, domain.ErrEmptyMessage
	}
	story, ok := m.source()
	if !ok {
		return domain.ChatMessage{}, domain.ErrNoStory
	}

	m.mu.Lock()
	m.follow(story.ID)
	if m.inFlight {
		m.mu.Unlock()
		return domain.ChatMessage{}, domain.ErrChatBusy
	}
	m.transcript = append(m.transcript, domain.ChatMessage{Role: domain.RoleUser, Text: text})
	m.inFlight = true
	generation := m.generation
	session := m.session
	m.mu.Unlock()

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	reply, outcome := m.exchange(ctx, story, session, generation, text)
	current, shown := m.source()

	m.mu.Lock()
	defer m.mu.Unlock()
	// the story may have changed without anyone touching the manager
	if shown {
		m.follow(current.ID)
	} else {
		m.reset()
	}
	if generation != m.generation {
		metrics.IncChatExchange("discarded")
		m.log.Debug().Str("story", story.ID).Msg("chat: stale reply discarded")
		return domain.ChatMessage{}, ErrReplyDiscarded
	}
	msg := domain.ChatMessage{Role: domain.RoleModel, Text: reply}
	m.transcript = append(m.transcript, msg)
	m.inFlight = false
	metrics.IncChatExchange(outcome)
	return msg, nil
}

func (m *Manager) exchange(ctx context.Context, story domain.Story, session domain.ChatSession, generation uint64, text string) (string, string) {
	if session == nil {
		created, err := m.backend.NewSession(ctx, BuildInstruction(story))
		if err != nil {
			m.log.Error().Err(err).Str("story", story.ID).Msg("chat: open session failed")
			return ConnectionErrorText, "error"
		}
		m.mu.Lock()
		if generation == m.generation {
			m.session = created
		}
		m.mu.Unlock()
		session = created
	}

	reply, err := session.Send(ctx, text)
	if err != nil {
		m.log.Error().Err(err).Str("story", story.ID).Msg("chat: send failed")
		return ConnectionErrorText, "error"
	}
	if strings.TrimSpace(reply) == "" {
		return EmptyReplyText, "empty"
	}
	return reply, "ok"
}

// Transcript returns the conversation about the displayed story, oldest first.
func (m *Manager) Transcript() []domain.ChatMessage {
	story, ok := m.source()
	m.mu.Lock()
	defer m.mu.Unlock()
	if !ok {
		m.reset()
		return nil
	}
	m.follow(story.ID)
	return slices.Clone(m.transcript)
}

// Thinking reports whether an exchange is waiting on the backend.
func (m *Manager) Thinking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Reset discards the session and transcript. A reply still in flight will be
// dropped when it arrives.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.reset()
	m.mu.Unlock()
}

// follow resets the conversation when storyID differs from the bound story.
// Caller holds mu.
func (m *Manager) follow(storyID string) {
	if storyID == m.storyID {
		return
	}
	m.reset()
	m.storyID = storyID
}

func (m *Manager) reset() {
	m.storyID = ""
	m.session = nil
	m.transcript = nil
	m.inFlight = false
	m.generation++
}
