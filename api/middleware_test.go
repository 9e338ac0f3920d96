package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRateLimiter_PerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(0.001, 2)
	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("41.90.1.1"))
	assert.Equal(t, http.StatusOK, call("41.90.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("41.90.1.1"))
	assert.Equal(t, http.StatusOK, call("41.90.1.2"), "other clients keep their own budget")
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	clock := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	limiter.limiter("41.90.1.1")
	clock = clock.Add(5 * time.Minute)
	limiter.limiter("41.90.1.2")
	assert.Equal(t, 2, limiter.tracked())

	clock = clock.Add(6 * time.Minute)
	limiter.limiter("41.90.1.3")
	assert.Equal(t, 2, limiter.tracked(), "the client idle for 11 minutes is dropped")

	clock = clock.Add(limiterIdleTTL)
	limiter.limiter("41.90.1.3")
	assert.Equal(t, 1, limiter.tracked())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "196.201.214.200, 10.0.0.1"}, remote: "10.0.0.1:5000", want: "196.201.214.200"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 196.201.214.206 "}, remote: "10.0.0.1:5000", want: "196.201.214.206"},
		{name: "remote addr", remote: "192.168.1.5:43210", want: "192.168.1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/", nil)
			c.Request.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(c))
		})
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger(zap.NewNop()))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
}
