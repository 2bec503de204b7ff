package api_gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/financial-twin-engine/internal/anchor"
	"github.com/financial-twin-engine/internal/api_gateway/middleware"
	"github.com/financial-twin-engine/internal/api_gateway/service"
	"github.com/financial-twin-engine/internal/config"
	"github.com/stretchr/testify/assert"
)

type stubVerification struct{}

func (stubVerification) Verify(_ context.Context, hash string) (*anchor.VerifyResult, error) {
	return &anchor.VerifyResult{ContentHash: hash}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Application: config.ApplicationConfig{Env: "test"},
		Server: config.ServerConfig{
			Port:           0,
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			IdleTimeout:    time.Second,
			RequestTimeout: time.Second,
		},
	}
}

func TestServer_Routes(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := NewServer(logger, testConfig(), Services{
		Verification: stubVerification{},
		Webhooks:     service.NewWebhookService(logger, nil),
		Readiness: []ReadinessCheck{
			{Name: "postgres", Ping: func(context.Context) error { return nil }},
		},
	})

	t.Run("health", func(t *testing.T) {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("verify is public and carries a correlation id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/verify/abc", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotEmpty(t, rr.Header().Get(middleware.CorrelationIDHeader))
		assert.Contains(t, rr.Body.String(), `"valid":false`)
	})

	t.Run("ready", func(t *testing.T) {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"postgres":"ok"`)
	})

	t.Run("unknown route", func(t *testing.T) {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestServer_ReadinessFailure(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := NewServer(logger, testConfig(), Services{
		Readiness: []ReadinessCheck{
			{Name: "postgres", Ping: func(context.Context) error { return nil }},
			{Name: "mongodb", Ping: func(context.Context) error { return errors.New("no primary") }},
		},
	})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"mongodb":"unavailable"`)
	assert.Contains(t, rr.Body.String(), `"ready":false`)
}
