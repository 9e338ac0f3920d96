package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Domenick1991/travelbooking/api"
	"github.com/Domenick1991/travelbooking/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:5555"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewRouter_Healthz(t *testing.T) {
	router := NewRouter(config.HTTPConfig{RateLimitPerSec: 1, RateLimitBurst: 1}, zap.NewNop(), Handlers{})

	w := serve(router, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNewRouter_RateLimitsBookingRoutes(t *testing.T) {
	router := NewRouter(
		config.HTTPConfig{RateLimitPerSec: 0.001, RateLimitBurst: 1},
		zap.NewNop(),
		Handlers{Bookings: api.NewBookingHandler(nil, nil)},
	)

	first := serve(router, http.MethodPost, "/api/v1/checkout", "not json")
	second := serve(router, http.MethodPost, "/api/v1/checkout", "not json")

	assert.Equal(t, http.StatusBadRequest, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestNewRouter_UnmountedHandlers(t *testing.T) {
	router := NewRouter(config.HTTPConfig{RateLimitPerSec: 1, RateLimitBurst: 1}, zap.NewNop(), Handlers{})

	w := serve(router, http.MethodPost, "/api/v1/payments/callback", "{}")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_CORS(t *testing.T) {
	router := NewRouter(
		config.HTTPConfig{RateLimitPerSec: 1, RateLimitBurst: 1, AllowedOrigins: []string{"https://app.example.com"}},
		zap.NewNop(),
		Handlers{},
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
