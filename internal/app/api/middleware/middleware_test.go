package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alanwang5210/telegram-bot/pkg/logctx"
)

func newRouter(log *zap.SugaredLogger, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(log), AccessLogMiddleware())
	r.GET("/ping", h)
	return r
}

func TestTraceAndLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Sugar()

	var seenTrace string
	r := newRouter(base, func(c *gin.Context) {
		seenTrace = logctx.TraceID(c.Request.Context())
		logctx.FromCtx(c.Request.Context(), base).Infow("inside handler")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "trace-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "trace-abc", seenTrace)
	assert.Equal(t, "trace-abc", w.Header().Get("X-Request-ID"))

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "inside handler", entries[0].Message)
		assert.Equal(t, "trace-abc", entries[0].ContextMap()["trace_id"])
		assert.Equal(t, "http_access", entries[1].Message)
		assert.EqualValues(t, http.StatusNoContent, entries[1].ContextMap()["status"])
		assert.Equal(t, "/ping", entries[1].ContextMap()["path"])
	}
}

func TestTraceGenerated(t *testing.T) {
	r := newRouter(zap.NewNop().Sugar(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}
