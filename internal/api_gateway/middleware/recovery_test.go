package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("panic becomes a 500 envelope", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		router := gin.New()
		router.Use(CorrelationID())
		router.Use(Recovery(logger))
		router.GET("/twins/:twin_id", func(c *gin.Context) {
			panic("scoring exploded")
		})

		req := httptest.NewRequest(http.MethodGet, "/twins/t-1", nil)
		req.Header.Set(CorrelationIDHeader, "trace-9")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		errField, ok := body["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", errField["code"])
		assert.Equal(t, "trace-9", body["correlation_id"])

		logs := buf.String()
		assert.Contains(t, logs, `"msg":"Panic recovered"`)
		assert.Contains(t, logs, `"error":"scoring exploded"`)
		assert.Contains(t, logs, `"twin_id":"t-1"`)
		assert.Contains(t, logs, `"stack":`)
	})

	t.Run("no panic no log", func(t *testing.T) {
		var buf bytes.Buffer
		router := gin.New()
		router.Use(Recovery(slog.New(slog.NewJSONHandler(&buf, nil))))
		router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ok", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, buf.String())
	})
}

func TestRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	deadlineOf := func(d time.Duration) (time.Time, bool) {
		var deadline time.Time
		var ok bool
		router := gin.New()
		router.Use(RequestTimeout(d))
		router.GET("/x", func(c *gin.Context) {
			deadline, ok = c.Request.Context().Deadline()
			c.Status(http.StatusOK)
		})
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(context.Background()))
		return deadline, ok
	}

	deadline, ok := deadlineOf(2 * time.Second)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)

	_, ok = deadlineOf(0)
	assert.False(t, ok)
}
