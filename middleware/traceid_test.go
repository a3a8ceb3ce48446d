package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceRouter() *gin.Engine {
	r := gin.New()
	r.Use(TraceID())
	r.GET("/trace", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})
	return r
}

func traceGet(t *testing.T, r *gin.Engine, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/trace", nil)
	if header != "" {
		req.Header.Set(TraceIDHeader, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w
}

func TestTraceID_MintedWhenAbsent(t *testing.T) {
	r := traceRouter()
	w := traceGet(t, r, "")

	id := w.Body.String()
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Header().Get(TraceIDHeader))

	// A second request gets its own id.
	assert.NotEqual(t, id, traceGet(t, r, "").Body.String())
}

func TestTraceID_ClientSuppliedWins(t *testing.T) {
	w := traceGet(t, traceRouter(), "caller-trace-7")
	assert.Equal(t, "caller-trace-7", w.Body.String())
	assert.Equal(t, "caller-trace-7", w.Header().Get(TraceIDHeader))
}

func TestGetTraceID_OutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetTraceID(c))
}
