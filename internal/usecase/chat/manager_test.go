package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"qissati/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	mu           sync.Mutex
	instructions []string
	openErr      error
	reply        func(text string) (string, error)
}

func (b *fakeBackend) NewSession(_ context.Context, instruction string) (domain.ChatSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.instructions = append(b.instructions, instruction)
	return fakeSession{reply: b.reply}, nil
}

func (b *fakeBackend) opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.instructions...)
}

type fakeSession struct {
	reply func(text string) (string, error)
}

func (s fakeSession) Send(_ context.Context, text string) (string, error) {
	return s.reply(text)
}

type screen struct {
	mu    sync.Mutex
	story domain.Story
	ok    bool
}

func (s *screen) show(st domain.Story) {
	s.mu.Lock()
	s.story, s.ok = st, true
	s.mu.Unlock()
}

func (s *screen) clear() {
	s.mu.Lock()
	s.story, s.ok = domain.Story{}, false
	s.mu.Unlock()
}

func (s *screen) source() (domain.Story, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.story, s.ok
}

var (
	rabbit = domain.Story{ID: "1", Title: "الأرنب والسلحفاة", Type: domain.StoryText, Content: "كان يا ما كان", Question: "لماذا فازت السلحفاة؟"}
	lion   = domain.Story{ID: "2", Title: "الأسد والفأر", Type: domain.StoryVideo, Content: "فيديو", Question: "ماذا تعلمت؟"}
)

func echo(text string) (string, error) { return "رد: " + text, nil }

func newManager(b *fakeBackend, s *screen) *Manager {
	return New(Config{Backend: b, Source: s.source, Logger: zerolog.Nop()})
}

func TestSendAppendsUserAndModelMessages(t *testing.T) {
	b := &fakeBackend{reply: echo}
	s := &screen{}
	s.show(rabbit)
	m := newManager(b, s)

	msg, err := m.Send(t.Context(), "مرحبا")
	require.NoError(t, err)
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleModel, Text: "رد: مرحبا"}, msg)

	_, err = m.Send(t.Context(), "سؤال")
	require.NoError(t, err)

	assert.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleUser, Text: "مرحبا"},
		{Role: domain.RoleModel, Text: "رد: مرحبا"},
		{Role: domain.RoleUser, Text: "سؤال"},
		{Role: domain.RoleModel, Text: "رد: سؤال"},
	}, m.Transcript())
	require.Len(t, b.opened(), 1, "session is reused for the same story")
	assert.Contains(t, b.opened()[0], "العنوان: الأرنب والسلحفاة")
	assert.Contains(t, b.opened()[0], "النوع: نص")
	assert.False(t, m.Thinking())
}

func TestSendNoOps(t *testing.T) {
	b := &fakeBackend{reply: echo}
	s := &screen{}
	m := newManager(b, s)

	_, err := m.Send(t.Context(), "hi")
	assert.ErrorIs(t, err, domain.ErrNoStory)

	s.show(rabbit)
	_, err = m.Send(t.Context(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	assert.Empty(t, m.Transcript())
	assert.Empty(t, b.opened())
}

func TestSendFallbacks(t *testing.T) {
	s := &screen{}
	s.show(rabbit)

	empty := newManager(&fakeBackend{reply: func(string) (string, error) { return " ", nil }}, s)
	msg, err := empty.Send(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, EmptyReplyText, msg.Text)

	failing := newManager(&fakeBackend{reply: func(string) (string, error) { return "", errors.New("quota") }}, s)
	msg, err = failing.Send(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, ConnectionErrorText, msg.Text)

	unopened := newManager(&fakeBackend{openErr: errors.New("no key")}, s)
	msg, err = unopened.Send(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, ConnectionErrorText, msg.Text)
	assert.Len(t, unopened.Transcript(), 2)
}

func TestStoryChangeStartsFreshSession(t *testing.T) {
	b := &fakeBackend{reply: echo}
	s := &screen{}
	s.show(rabbit)
	m := newManager(b, s)

	_, err := m.Send(t.Context(), "أول")
	require.NoError(t, err)
	require.Len(t, m.Transcript(), 2)

	s.show(lion)
	assert.Empty(t, m.Transcript(), "switching story clears the transcript")

	_, err = m.Send(t.Context(), "ثاني")
	require.NoError(t, err)

	opened := b.opened()
	require.Len(t, opened, 2)
	assert.Contains(t, opened[1], "العنوان: الأسد والفأر")
	assert.Contains(t, opened[1], "النوع: فيديو")
	assert.NotContains(t, opened[1], "الأرنب")
}

func TestResetClearsConversation(t *testing.T) {
	b := &fakeBackend{reply: echo}
	s := &screen{}
	s.show(rabbit)
	m := newManager(b, s)

	_, err := m.Send(t.Context(), "أول")
	require.NoError(t, err)
	m.Reset()
	assert.Empty(t, m.Transcript())

	_, err = m.Send(t.Context(), "ثاني")
	require.NoError(t, err)
	assert.Len(t, b.opened(), 2)
}

func TestBusyAndStaleReply(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{reply: func(text string) (string, error) {
		if text == "slow" {
			close(entered)
			<-release
		}
		return "ok " + text, nil
	}}
	s := &screen{}
	s.show(rabbit)
	m := newManager(b, s)

	type result struct {
		msg domain.ChatMessage
		err error
	}
	done := make(chan result)
	go func() {
		msg, err := m.Send(context.Background(), "slow")
		done <- result{msg, err}
	}()
	<-entered

	assert.True(t, m.Thinking())
	_, err := m.Send(t.Context(), "again")
	assert.ErrorIs(t, err, domain.ErrChatBusy)

	s.show(lion)
	assert.Empty(t, m.Transcript())
	assert.False(t, m.Thinking(), "a new story is not blocked by the old exchange")

	close(release)
	res := <-done
	assert.ErrorIs(t, res.err, ErrReplyDiscarded)
	assert.Empty(t, m.Transcript(), "stale reply never lands in the new transcript")

	msg, err := m.Send(t.Context(), "lion")
	require.NoError(t, err)
	assert.Equal(t, "ok lion", msg.Text)
}

func TestReplyDroppedWhenStoryChangesUnobserved(t *testing.T) {
	for name, change := range map[string]func(*screen){
		"another story": func(s *screen) { s.show(lion) },
		"no story":      func(s *screen) { s.clear() },
	} {
		t.Run(name, func(t *testing.T) {
			entered := make(chan struct{})
			release := make(chan struct{})
			b := &fakeBackend{reply: func(text string) (string, error) {
				close(entered)
				<-release
				return "عن الأرنب", nil
			}}
			s := &screen{}
			s.show(rabbit)
			m := newManager(b, s)

			done := make(chan error)
			go func() {
				_, err := m.Send(context.Background(), "سؤال")
				done <- err
			}()
			<-entered
			change(s)
			close(release)

			assert.ErrorIs(t, <-done, ErrReplyDiscarded)
			assert.False(t, m.Thinking())
			assert.Empty(t, m.Transcript())
		})
	}
}

func TestBuildInstructionIncludesStory(t *testing.T) {
	got := BuildInstruction(rabbit)
	for _, want := range []string{
		"قصتي اليوم",
		"العنوان: الأرنب والسلحفاة",
		"المحتوى: كان يا ما كان",
		"سؤال اليوم: لماذا فازت السلحفاة؟",
		"أجب دائمًا باللغة العربية",
		"سقراطية",
		"أحسنت يا بطل",
	} {
		assert.Contains(t, got, want)
	}
}
