package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qissati/internal/domain"
	"qissati/internal/infra/cache"
	httpinfra "qissati/internal/infra/http"
	"qissati/internal/usecase/chat"
	"qissati/internal/usecase/settings"
	"qissati/internal/usecase/stories"
)

type fakeGateway struct {
	mu      sync.Mutex
	payload domain.RawPayload
	sendErr error
	sent    []domain.Command
}

func (g *fakeGateway) FetchState(context.Context) (domain.RawPayload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.payload, nil
}

func (g *fakeGateway) SendCommand(_ context.Context, cmd domain.Command) (domain.Ack, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, cmd)
	return domain.Ack(`{"status":"ok"}`), g.sendErr
}

type echoBackend struct{}

func (echoBackend) NewSession(context.Context, string) (domain.ChatSession, error) {
	return echoSession{}, nil
}

type echoSession struct{}

func (echoSession) Send(_ context.Context, text string) (string, error) { return "👍 " + text, nil }

type fixture struct {
	server  *httptest.Server
	gateway *fakeGateway
	store   *stories.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := &fakeGateway{payload: domain.RawPayload{
		HasStories: true,
		Stories: []domain.RawRecord{
			{"id": "1", "title": "الأرنب", "date": "2024-01-02", "content": "نص", "question": "لماذا؟"},
			{"id": "2", "title": "الأسد", "date": "2024-01-01", "type": "فيديو", "videoUrl": "https://youtu.be/dQw4w9WgXcQ"},
		},
		HasResponses: true,
		Responses: []domain.RawRecord{
			{"id": "r1", "storyTitle": "الأرنب", "name": "سارة", "answer": "لأنها صبورة"},
		},
	}}
	logger := zerolog.Nop()
	store := stories.New(stories.Config{Gateway: g, Logger: logger})
	require.NoError(t, store.Refresh(t.Context()))
	chatMgr := chat.New(chat.Config{Backend: echoBackend{}, Source: store.Displayed, Logger: logger})
	settingsSvc := settings.New(settings.Config{
		Repo:     cache.NewMemory(),
		Store:    store,
		Logger:   logger,
		Defaults: domain.Settings{EndpointURL: "https://example.test/exec", AdminPassword: "1234"},
	})

	r := chi.NewRouter()
	NewHandler(store, chatMgr, settingsSvc, logger).Mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{server: srv, gateway: g, store: store}
}

func (f *fixture) do(t *testing.T, method, path, body string, admin bool) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if admin {
		req.Header.Set(httpinfra.AdminHeader, "1234")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestListStoriesIncludesVideoLinks(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/v1/stories", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeBody[[]map[string]any](t, resp)
	require.Len(t, got, 2)
	assert.Equal(t, "Today", got[0]["status"])
	assert.Nil(t, got[0]["embedUrl"])
	assert.Equal(t, "video", got[1]["type"])
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1&rel=0", got[1]["embedUrl"])
	assert.Equal(t, "https://img.youtube.com/vi/dQw4w9WgXcQ/hqdefault.jpg", got[1]["thumbnailUrl"])
}

func TestSelectionAndAnswer(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/v1/selection", `{"id":"2"}`, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", decodeBody[map[string]any](t, resp)["id"])

	resp = f.do(t, http.MethodPost, "/api/v1/answers", `{"name":"علي","class":"3A","answer":"الشجاعة"}`, false)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[domain.StudentResponse](t, resp)
	assert.Equal(t, "الأسد", created.StoryTitle)

	resp = f.do(t, http.MethodPut, "/api/v1/selection", `{"id":"nope"}`, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/v1/selection", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", decodeBody[map[string]any](t, resp)["id"])
}

func TestSubmitAnswerValidation(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/v1/answers", `{"name":"","class":"3A","answer":"x"}`, false)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[httpinfra.ErrorResponse](t, resp)
	assert.Equal(t, "name", body.Field)

	resp = f.do(t, http.MethodPost, "/api/v1/answers", `not json`, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatRoutes(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/chat", `{"message":"مرحبا"}`, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[chatResponse](t, resp)
	require.NotNil(t, got.Reply)
	assert.Equal(t, "👍 مرحبا", got.Reply.Text)
	assert.Len(t, got.Transcript, 2)

	resp = f.do(t, http.MethodPost, "/api/v1/chat", `{"message":"  "}`, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/v1/chat", "", false)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/chat", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[chatResponse](t, resp).Transcript)
}

func TestAdminRoutesRequirePassword(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/responses", "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/responses", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]domain.StudentResponse](t, resp), 1)

	resp = f.do(t, http.MethodPost, "/api/v1/login", `{"password":"0000"}`, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/v1/login", `{"password":"1234"}`, false)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAdminStoryWrites(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/stories", `{"title":"جديد","content":"نص","question":"سؤال"}`, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, decodeBody[addStoryResponse](t, resp).ID)

	resp = f.do(t, http.MethodPost, "/api/v1/stories", `{"title":"","content":"نص","question":"سؤال"}`, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.gateway.mu.Lock()
	f.gateway.sendErr = errors.New("sheet down")
	f.gateway.mu.Unlock()
	resp = f.do(t, http.MethodDelete, "/api/v1/stories/1", "", true)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Len(t, f.store.Stories(), 2, "failed delete is rolled back")

	resp = f.do(t, http.MethodDelete, "/api/v1/responses/r1", "", true)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, f.store.Responses())
}

func TestAdminRemoteFailureIsBadGateway(t *testing.T) {
	f := newFixture(t)
	f.gateway.mu.Lock()
	f.gateway.sendErr = &domain.RemoteError{Action: domain.ActionEditStory, Status: 500}
	f.gateway.mu.Unlock()

	resp := f.do(t, http.MethodPut, "/api/v1/stories/1", `{"title":"t","content":"c","question":"q"}`, true)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestSettingsRoutes(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/v1/settings", `{"currentPassword":"1234","newPassword":"abc","confirmPassword":"abc"}`, true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, settings.MsgPasswordTooShort, decodeBody[httpinfra.ErrorResponse](t, resp).Error)

	resp = f.do(t, http.MethodPut, "/api/v1/settings", `{"currentPassword":"1234","newPassword":"abcd","confirmPassword":"abcd"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, settings.MsgSaved, decodeBody[settingsResponse](t, resp).Message)

	resp = f.do(t, http.MethodGet, "/api/v1/settings", "", true)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "old password no longer accepted")
}
