package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusiness_NilSafe(t *testing.T) {
	var b *Business
	assert.NotPanics(t, func() {
		b.CodeClaim("ok")
		b.Dispatched("email", "delivered", 1)
		b.DeliveriesCreated(2)
		b.PaymentAdvance("completed", "ok")
		b.JobRun("dispatch", "ok", 1)
		b.VipRecount(true)
	})
}

func TestBusiness_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBusiness(reg)

	b.CodeClaim("ok")
	b.CodeClaim("invalid")
	b.CodeClaim("invalid")
	b.Dispatched("telegram", "failed", 3)
	b.Dispatched("telegram", "failed", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(b.codeClaims.WithLabelValues("invalid")))
	assert.Equal(t, 3.0, testutil.ToFloat64(b.dispatched.WithLabelValues("telegram", "failed")))
}

func TestPrometheusMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p := NewPrometheus(NewPrometheusOptions{
		Registry:                reg,
		ReqCntURLLabelMappingFn: func(c *gin.Context) string { return c.FullPath() },
	})

	r := gin.New()
	p.Use(r)
	r.GET("/users/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.reqCnt.WithLabelValues("200", "GET", "/users/:id", "")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "req_total"))
}
