package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"qissati/internal/adapters/telegram"
	"qissati/internal/domain"
	"qissati/internal/infra/metrics"
	"qissati/internal/usecase/chat"
)

const (
	archivePageSize = 10
	// viewers idle longer than this lose their pick and conversation
	viewerIdleTTL = 6 * time.Hour
	sweepInterval = time.Minute
)

// Sender is the part of tgbotapi.BotAPI the handler needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// StoryStore is the part of the synchronization store the bot reads and writes.
type StoryStore interface {
	Refresh(ctx context.Context) error
	Stories() []domain.Story
	Story(id string) (domain.Story, bool)
	DisplayedFor(pickedID string) (domain.Story, bool)
	SubmitAnswerFor(ctx context.Context, pickedID string, a domain.Answer) (domain.StudentResponse, error)
}

// Handler serves bot updates. Each Telegram chat is an independent viewer with
// its own archive pick and assistant conversation.
type Handler struct {
	bot         Sender
	log         zerolog.Logger
	store       StoryStore
	backend     domain.ChatBackend
	chatTimeout time.Duration

	now       func() time.Time
	mu        sync.Mutex
	viewers   map[int64]*viewer
	lastSweep time.Time
}

type viewer struct {
	mu       sync.Mutex
	picked   string
	chat     *chat.Manager
	lastSeen time.Time
}

func (v *viewer) pick(id string) {
	v.mu.Lock()
	v.picked = id
	v.mu.Unlock()
}

func (v *viewer) pickedID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.picked
}

// NewHandler creates a handler.
func NewHandler(bot Sender, log zerolog.Logger, store StoryStore, backend domain.ChatBackend, chatTimeout time.Duration) *Handler {
	return &Handler{
		bot:         bot,
		log:         log,
		store:       store,
		backend:     backend,
		chatTimeout: chatTimeout,
		now:         time.Now,
		viewers:     make(map[int64]*viewer),
	}
}

// HandleUpdate dispatches one update. Safe to call from several goroutines.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	command, payload := splitCommand(text)
	switch command {
	case "start", "help":
		h.reply(chatID, welcomeMessage, mainKeyboard())
	case "today":
		h.viewer(chatID).pick("")
		h.showDisplayed(chatID)
	case "story":
		h.showDisplayed(chatID)
	case "archive":
		h.showArchive(chatID)
	case "answer":
		h.handleAnswer(ctx, chatID, payload)
	case "ask":
		h.handleAsk(ctx, chatID, payload)
	case "reset":
		h.viewer(chatID).chat.Reset()
		h.reply(chatID, "🧹 بدأنا محادثة جديدة.", nil)
	case "refresh":
		h.handleRefresh(ctx, chatID)
	case "":
		h.handleAsk(ctx, chatID, text)
	default:
		h.reply(chatID, "أمر غير معروف. استخدم /help", nil)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	h.ack(cb.ID)
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data
	switch {
	case data == "today":
		h.viewer(chatID).pick("")
		h.showDisplayed(chatID)
	case data == "archive":
		h.showArchive(chatID)
	case data == "answer_help":
		h.reply(chatID, answerHint, nil)
	case data == "ask_help":
		h.reply(chatID, askHint, nil)
	case strings.HasPrefix(data, "pick:"):
		h.handlePick(chatID, strings.TrimPrefix(data, "pick:"))
	default:
		h.log.Debug().Str("data", data).Msg("bot: unknown callback")
	}
}

func (h *Handler) showDisplayed(chatID int64) {
	st, ok := h.store.DisplayedFor(h.viewer(chatID).pickedID())
	if !ok {
		h.reply(chatID, "لا توجد قصص بعد. حاول لاحقاً 🌙", nil)
		return
	}
	h.reply(chatID, telegram.FormatStoryCard(st), storyKeyboard())
}

func (h *Handler) showArchive(chatID int64) {
	stories := h.store.Stories()
	if len(stories) == 0 {
		h.reply(chatID, "الأرشيف فارغ حالياً.", nil)
		return
	}
	if len(stories) > archivePageSize {
		stories = stories[:archivePageSize]
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(stories))
	for _, st := range stories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(telegram.FormatArchiveLine(st), "pick:"+st.ID),
		))
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(chatID, "📚 اختر قصة من الأرشيف:", &keyboard)
}

func (h *Handler) handlePick(chatID int64, id string) {
	st, ok := h.store.Story(id)
	if !ok {
		h.reply(chatID, "هذه القصة لم تعد موجودة.", nil)
		return
	}
	h.viewer(chatID).pick(id)
	h.reply(chatID, telegram.FormatStoryCard(st), storyKeyboard())
}

func (h *Handler) handleAnswer(ctx context.Context, chatID int64, payload string) {
	answer, err := ParseAnswer(payload)
	if err != nil {
		h.reply(chatID, answerHint, nil)
		return
	}
	_, err = h.store.SubmitAnswerFor(ctx, h.viewer(chatID).pickedID(), answer)
	var verr *domain.ValidationError
	switch {
	case err == nil:
		h.reply(chatID, "🏆 أحسنت يا بطل! تم إرسال إجابتك بنجاح.", nil)
	case errors.As(err, &verr):
		h.reply(chatID, "⚠️ "+verr.Message, nil)
	default:
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: submit answer failed")
		h.reply(chatID, "حدث خطأ، حاول مرة أخرى.", nil)
	}
}

func (h *Handler) handleAsk(ctx context.Context, chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		h.reply(chatID, askHint, nil)
		return
	}
	h.typing(chatID)
	reply, err := h.viewer(chatID).chat.Send(ctx, text)
	switch {
	case err == nil:
		h.reply(chatID, reply.Text, nil)
	case errors.Is(err, domain.ErrChatBusy):
		h.reply(chatID, "⏳ لحظة من فضلك، ما زلت أفكر في سؤالك السابق.", nil)
	case errors.Is(err, domain.ErrNoStory):
		h.reply(chatID, "لا توجد قصة لنتحدث عنها بعد.", nil)
	case errors.Is(err, chat.ErrReplyDiscarded):
		h.log.Debug().Int64("chat_id", chatID).Msg("bot: reply for previous story dropped")
	default:
		h.reply(chatID, askHint, nil)
	}
}

func (h *Handler) handleRefresh(ctx context.Context, chatID int64) {
	if err := h.store.Refresh(ctx); err != nil {
		h.log.Warn().Err(err).Msg("bot: refresh failed")
		h.reply(chatID, "تعذر الاتصال بقاعدة البيانات.", nil)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ تم التحديث: %d قصة.", len(h.store.Stories())), nil)
}

// viewer returns the per-chat state, creating it on first use.
func (h *Handler) viewer(chatID int64) *viewer {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	h.sweep(now)
	if v, ok := h.viewers[chatID]; ok {
		v.lastSeen = now
		return v
	}
	v := &viewer{lastSeen: now}
	v.chat = chat.New(chat.Config{
		Backend: h.backend,
		Source:  func() (domain.Story, bool) { return h.store.DisplayedFor(v.pickedID()) },
		Logger:  h.log.With().Int64("chat_id", chatID).Logger(),
		Timeout: h.chatTimeout,
	})
	h.viewers[chatID] = v
	return v
}

// sweep drops idle viewers. A viewer waiting on the assistant is kept.
// Caller holds h.mu.
func (h *Handler) sweep(now time.Time) {
	if now.Sub(h.lastSweep) < sweepInterval {
		return
	}
	h.lastSweep = now
	for id, v := range h.viewers {
		if now.Sub(v.lastSeen) > viewerIdleTTL && !v.chat.Thinking() {
			delete(h.viewers, id)
		}
	}
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("bot: send message failed")
			return
		}
	}
}

func (h *Handler) ack(callbackID string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		h.log.Debug().Err(err).Msg("bot: callback ack failed")
	}
}

func (h *Handler) typing(chatID int64) {
	if _, err := h.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		h.log.Debug().Err(err).Msg("bot: chat action failed")
	}
}

func mainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📖 قصة اليوم", "today"),
			tgbotapi.NewInlineKeyboardButtonData("📚 الأرشيف", "archive"),
		),
	)
	return &kb
}

func storyKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ أجب عن السؤال", "answer_help"),
			tgbotapi.NewInlineKeyboardButtonData("🤖 اسأل المساعد", "ask_help"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 الأرشيف", "archive"),
		),
	)
	return &kb
}

const welcomeMessage = `أهلاً بك في «قصتي اليوم» 📚✨

/today قصة اليوم
/archive قصص سابقة
/answer الاسم | الصف | إجابتك
/ask سؤالك عن القصة، أو اكتب سؤالك مباشرة
/reset محادثة جديدة مع المساعد`

const answerHint = "✍️ أرسل إجابتك بهذا الشكل:\n/answer الاسم | الصف | إجابتك"

const askHint = "🤖 اكتب سؤالك عن القصة وسأساعدك!"
