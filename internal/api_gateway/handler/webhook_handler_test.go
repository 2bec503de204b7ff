package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/financial-twin-engine/internal/anchor"
	"github.com/financial-twin-engine/internal/api_gateway/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWebhookHandler_Aggregator(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		body       string
		setup      func(m *MockWebhookService)
		wantStatus int
	}{
		{
			name: "accepted",
			body: `{"webhook_id":"wh-1","webhook_type":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`,
			setup: func(m *MockWebhookService) {
				m.On("HandleAggregatorWebhook", mock.Anything, service.AggregatorWebhook{
					WebhookID: "wh-1", WebhookType: "SYNC_UPDATES_AVAILABLE", ItemID: "item-1",
				}).Return("wh-1", nil)
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name: "unsupported type",
			body: `{"webhook_id":"wh-2","webhook_type":"ERROR","item_id":"item-1"}`,
			setup: func(m *MockWebhookService) {
				m.On("HandleAggregatorWebhook", mock.Anything, mock.Anything).Return("", service.ErrUnsupportedWebhook)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing item",
			body:       `{"webhook_id":"wh-3","webhook_type":"DEFAULT_UPDATE"}`,
			setup:      func(m *MockWebhookService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "broker failure",
			body: `{"webhook_id":"wh-4","webhook_type":"DEFAULT_UPDATE","item_id":"item-1"}`,
			setup: func(m *MockWebhookService) {
				m.On("HandleAggregatorWebhook", mock.Anything, mock.Anything).Return("", errors.New("broker down"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockWebhookService)
			tt.setup(svc)
			router := gin.New()
			router.POST("/webhooks/aggregator", NewWebhookHandler(testLogger(), svc).Aggregator)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/aggregator", bytes.NewReader([]byte(tt.body))))

			assert.Equal(t, tt.wantStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestVerifyHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash := "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

	tests := []struct {
		name       string
		hash       string
		result     *anchor.VerifyResult
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "anchored", hash: hash, result: &anchor.VerifyResult{ContentHash: hash, Valid: true, LedgerTransactionID: "ltx-1"}, wantStatus: http.StatusOK, wantBody: `"valid":true`},
		{name: "unknown hash", hash: hash, result: &anchor.VerifyResult{ContentHash: hash}, wantStatus: http.StatusOK, wantBody: `"valid":false`},
		{name: "malformed hash", hash: "xyz", err: anchor.ErrInvalidHash, wantStatus: http.StatusBadRequest},
		{name: "ledger deadline", hash: hash, err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockVerificationService)
			svc.On("Verify", mock.Anything, tt.hash).Return(tt.result, tt.err)
			router := gin.New()
			router.GET("/verify/:content_hash", NewVerifyHandler(testLogger(), svc).Verify)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/verify/"+tt.hash, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
		})
	}
}
