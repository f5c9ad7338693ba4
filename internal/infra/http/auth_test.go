package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticSecret string

func (s staticSecret) Authenticate(password string) bool { return password == string(s) }

func TestAdminAuthMiddleware(t *testing.T) {
	handler := AdminAuthMiddleware(staticSecret("1234"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name     string
		password string
		want     int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "0000", http.StatusUnauthorized},
		{"ok", "1234", http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.password != "" {
			req.Header.Set(AdminHeader, tc.password)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: status %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, `bad "input"`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"error\":\"bad \\\"input\\\"\"}\n" {
		t.Fatalf("body %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
}
