package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(header string) (*httptest.ResponseRecorder, string, string) {
		router := gin.New()
		router.Use(CorrelationID())
		var fromGin, fromCtx string
		router.GET("/twins/:twin_id", func(c *gin.Context) {
			fromGin = GetCorrelationID(c)
			fromCtx = CorrelationIDFrom(c.Request.Context())
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/twins/"+uuid.NewString(), nil)
		if header != "" {
			req.Header.Set(CorrelationIDHeader, header)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr, fromGin, fromCtx
	}

	t.Run("mints an id when the caller sends none", func(t *testing.T) {
		rr, fromGin, fromCtx := serve("")

		headerID := rr.Header().Get(CorrelationIDHeader)
		_, err := uuid.Parse(headerID)
		require.NoError(t, err)
		assert.Equal(t, headerID, fromGin)
		assert.Equal(t, headerID, fromCtx)
	})

	t.Run("propagates the caller's id", func(t *testing.T) {
		rr, fromGin, fromCtx := serve("sync-trace-42")

		assert.Equal(t, "sync-trace-42", rr.Header().Get(CorrelationIDHeader))
		assert.Equal(t, "sync-trace-42", fromGin)
		assert.Equal(t, "sync-trace-42", fromCtx)
	})
}

func TestGetCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetCorrelationID(c))

	c.Set(CorrelationIDKey, 12345)
	assert.Empty(t, GetCorrelationID(c), "non-string values are ignored")

	c.Set(CorrelationIDKey, "abc")
	assert.Equal(t, "abc", GetCorrelationID(c))
}
