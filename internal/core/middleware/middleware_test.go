package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mylog "github.com/mohammed-shakir/campus-buildings/internal/logger"
)

func TestLogging_PropagatesRequestID(t *testing.T) {
	var seen string
	h := Logging(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = mylog.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/facilities/buildinglist", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != "abc123" || rr.Header().Get("X-Request-ID") != "abc123" {
		t.Fatalf("ctx id=%q header=%q want abc123", seen, rr.Header().Get("X-Request-ID"))
	}
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestLogging_GeneratesRequestIDAndLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	zl := mylog.Build(mylog.Config{Level: "debug"}, &buf)
	h := Logging(mylog.NewSlog(&zl))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if id := rr.Header().Get("X-Request-ID"); len(id) != 16 {
		t.Fatalf("generated id=%q", id)
	}
	line := buf.String()
	if !strings.Contains(line, `"status":404`) || !strings.Contains(line, `"component":"http"`) {
		t.Fatalf("log line=%s", line)
	}
}

func TestRecover_Returns500(t *testing.T) {
	h := Recover(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
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
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/facilities/buildinglist", nil))
	if rr.Code != http.StatusNoContent || called {
		t.Fatalf("preflight status=%d called=%v", rr.Code, called)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing allow-origin")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/facilities/buildinglist", nil))
	if !called {
		t.Fatalf("GET should reach the handler")
	}
}

func TestNoWriteDeadline_SlowRebuildStillAnswers(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(250 * time.Millisecond)
		_, _ = io.WriteString(w, "[]")
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	get := func(h http.Handler) (string, error) {
		srv := httptest.NewUnstartedServer(h)
		srv.Config.WriteTimeout = 50 * time.Millisecond
		srv.Start()
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL)
		if err != nil {
			return "", err
		}
		defer func() { _ = resp.Body.Close() }()
		b, err := io.ReadAll(resp.Body)
		return string(b), err
	}

	body, err := get(Logging(logger)(NoWriteDeadline()(slow)))
	if err != nil || body != "[]" {
		t.Fatalf("with NoWriteDeadline: body=%q err=%v", body, err)
	}
	if _, err := get(Logging(logger)(slow)); err == nil {
		t.Fatalf("without NoWriteDeadline the server write timeout should cut the response")
	}
}

func TestNoWriteDeadline_RecorderUnsupportedIsHarmless(t *testing.T) {
	h := NoWriteDeadline()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d want 204", rr.Code)
	}
}
