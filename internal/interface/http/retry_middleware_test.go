package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/evaluator-ai/internal/infra/config"
)

func TestWithRetryReplaysTransientFailures(t *testing.T) {
	var calls int
	var bodies []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})
	handler := withRetry(next, config.RetryConfig{Enabled: true, MaxAttempts: 3}, newTestLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/playground/sessions", strings.NewReader("payload")))

	require.Equal(t, 3, calls)
	require.Equal(t, []string{"payload", "payload", "payload"}, bodies)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestWithRetrySkipsExcludedAndNonTransient(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "excluded suffix", method: http.MethodPost, path: "/api/v1/playground/sessions/x/runs", status: http.StatusBadGateway},
		{name: "get request", method: http.MethodGet, path: "/healthz", status: http.StatusServiceUnavailable},
		{name: "internal error", method: http.MethodPost, path: "/api/v1/playground/sessions", status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
			})
			cfg := config.RetryConfig{Enabled: true, MaxAttempts: 3, Exclude: []string{"/runs"}}
			rec := httptest.NewRecorder()
			withRetry(next, cfg, newTestLogger()).ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, 1, calls)
			require.Equal(t, tt.status, rec.Code)
		})
	}
}
