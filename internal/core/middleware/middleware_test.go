package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogging_SetsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := Logging(l)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/encode", nil))
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing generated X-Request-ID")
	}
	if !strings.Contains(buf.String(), `"status":418`) {
		t.Fatalf("status not logged: %s", buf.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/encode", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc" {
		t.Fatalf("X-Request-ID=%q want abc", got)
	}
}

func TestRecover_Returns500(t *testing.T) {
	l := slog.New(slog.DiscardHandler)
	h := Recover(l)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/v1/encode/batch", nil))
	if rr.Code != http.StatusNoContent || called {
		t.Fatalf("preflight code=%d called=%v", rr.Code, called)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Fatalf("POST not allowed: %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
}
