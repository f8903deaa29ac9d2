package httpmw

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRequestID_MintsAndExposes(t *testing.T) {
	var fromCtx string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	rid := rec.Header().Get("X-Request-Id")
	require.NotEmpty(t, rid)
	assert.Equal(t, rid, fromCtx, "header and context carry the same id")
}

func TestWithRequestID_HonorsInboundID(t *testing.T) {
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/sync", nil)
	req.Header.Set("X-Request-Id", "retry-attempt-3")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "retry-attempt-3", rec.Header().Get("X-Request-Id"))
}

func TestWithRecover_JSONForAPIRoutes(t *testing.T) {
	var logs bytes.Buffer
	h := WithRecover(log.New(&logs, "", 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("task repo exploded")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks/sync", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Body.String(), "internal server error")

	assert.Contains(t, logs.String(), "panic_recovered")
	assert.Contains(t, logs.String(), "task repo exploded")
}

func TestWithRecover_PlainTextForPages(t *testing.T) {
	h := WithRecover(log.New(&bytes.Buffer{}, "", 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("render failed")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/planner", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestWithAccessLog_LogsTaskRequests(t *testing.T) {
	var logs bytes.Buffer
	h := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}),
		WithAccessLog(log.New(&logs, "", 0)),
		WithRequestID,
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks/sync", nil))

	line := logs.String()
	assert.Contains(t, line, `"msg":"http_request"`)
	assert.Contains(t, line, `"method":"POST"`)
	assert.Contains(t, line, `"path":"/api/tasks/sync"`)
	assert.Contains(t, line, `"status":201`)
	assert.Contains(t, line, `"requestId":"`+rec.Header().Get("X-Request-Id")+`"`)
}

func TestWithAccessLog_SkipsHealthProbes(t *testing.T) {
	var logs bytes.Buffer
	h := WithAccessLog(log.New(&logs, "", 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Empty(t, logs.String(), "probe polling must not fill the access log")
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))

	r = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	r.RemoteAddr = "192.0.2.4:5123"
	assert.Equal(t, "192.0.2.4", clientIP(r))
}
