package sheet

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qissati/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/exec?deployment=1", WithClock(func() time.Time { return time.UnixMilli(1700000000123) }))
	require.NoError(t, err)
	return c
}

func TestFetchStateAddsCacheBusterAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "1700000000123", r.URL.Query().Get("t"))
		assert.Equal(t, "1", r.URL.Query().Get("deployment"))
		_, _ = io.WriteString(w, `{"stories":[{"Title":"A","Date":"2024-01-01"},{"title":"B"}],"responses":[]}`)
	})

	payload, err := c.FetchState(t.Context())
	require.NoError(t, err)
	assert.True(t, payload.HasStories)
	assert.True(t, payload.HasResponses)
	require.Len(t, payload.Stories, 2)
	assert.Equal(t, "A", payload.Stories[0]["Title"])
	assert.Empty(t, payload.Responses)
}

func TestFetchStateFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/exec", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/echo", http.StatusFound)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"stories":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c, err := New(srv.URL + "/exec")
	require.NoError(t, err)

	payload, err := c.FetchState(t.Context())
	require.NoError(t, err)
	assert.True(t, payload.HasStories)
	assert.False(t, payload.HasResponses)
}

func TestFetchStateAbsentKeysAreNotClears(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"responses":null}`)
	})
	payload, err := c.FetchState(t.Context())
	require.NoError(t, err)
	assert.False(t, payload.HasStories)
	assert.False(t, payload.HasResponses)
}

func TestFetchStateErrors(t *testing.T) {
	tests := map[string]struct {
		status    int
		body      string
		wantParse bool
	}{
		"server error":   {status: http.StatusInternalServerError, body: `{}`},
		"not json":       {status: http.StatusOK, body: `<html>login</html>`, wantParse: true},
		"array on top":   {status: http.StatusOK, body: `[]`, wantParse: true},
		"stories object": {status: http.StatusOK, body: `{"stories":{"a":1}}`, wantParse: true},
		"responses text": {status: http.StatusOK, body: `{"responses":"none"}`, wantParse: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.FetchState(t.Context())
			require.Error(t, err)
			var parseErr *domain.ParseError
			var netErr *domain.NetworkError
			if tt.wantParse {
				assert.True(t, errors.As(err, &parseErr), "got %T", err)
			} else {
				require.True(t, errors.As(err, &netErr), "got %T", err)
				assert.Equal(t, tt.status, netErr.Status)
			}
		})
	}
}

func TestFetchStateNonObjectRowsBecomeEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"stories":[42,{"title":"x"}]}`)
	})
	payload, err := c.FetchState(t.Context())
	require.NoError(t, err)
	require.Len(t, payload.Stories, 2)
	assert.Empty(t, payload.Stories[0])
}

func TestSendCommandPostsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/plain;charset=utf-8", r.Header.Get("Content-Type"))
		assert.Empty(t, r.URL.Query().Get("t"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "submit_answer", body["action"])
		assert.Equal(t, "99", body["id"])
		assert.Equal(t, "سارة", body["name"])
		assert.Equal(t, "A", body["storyTitle"])
		_, _ = io.WriteString(w, `{"status":"success"}`)
	})

	ack, err := c.SendCommand(t.Context(), domain.SubmitAnswerCommand("99", "A", domain.Answer{Name: "سارة", Class: "2", Text: "..."}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success"}`, string(ack))
}

func TestSendCommandErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.SendCommand(t.Context(), domain.DeleteStoryCommand("x"))
	var remoteErr *domain.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, domain.ActionDeleteStory, remoteErr.Action)
	assert.Equal(t, http.StatusBadGateway, remoteErr.Status)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	_, err = c.SendCommand(t.Context(), domain.DeleteStoryCommand("x"))
	var parseErr *domain.ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestSendCommandTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()
	c, err := New(endpoint)
	require.NoError(t, err)

	_, err = c.SendCommand(t.Context(), domain.DeleteResponseCommand("r"))
	var remoteErr *domain.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Zero(t, remoteErr.Status)
}

func TestSetEndpoint(t *testing.T) {
	c, err := New("https://a.example/exec")
	require.NoError(t, err)
	require.Error(t, c.SetEndpoint("not a url"))
	assert.Equal(t, "https://a.example/exec", c.Endpoint())
	require.NoError(t, c.SetEndpoint("https://b.example/exec"))
	assert.Equal(t, "https://b.example/exec", c.Endpoint())

	_, err = New("")
	assert.Error(t, err)
}
