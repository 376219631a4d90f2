package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/receiving/internal/observability"
)

func testRouter(checks map[string]Pinger) http.Handler {
	return NewRouter(RouterParams{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:  &Config{AppEnv: "test"},
		Metrics: observability.NewMetrics(),
		Checks:  checks,
	})
}

func TestRouterHealthAndSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	testRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRouterReadiness(t *testing.T) {
	router := testRouter(map[string]Pinger{
		"redis":    PingFunc(func(context.Context) error { return nil }),
		"postgres": PingFunc(func(context.Context) error { return errors.New("down") }),
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"redis":"ok","postgres":"down"}`, rr.Body.String())
}

func TestRouterExposesMetrics(t *testing.T) {
	router := testRouter(nil)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `receiving_http_requests_total{code="200",route="/healthz"} 1`))
}

func TestLoggerAddsServiceAttribute(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{LogFormat: "json", AppEnv: "production"}).Info("hello")
	assert.Contains(t, buf.String(), `"service":"receiving"`)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
