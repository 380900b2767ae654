package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"medqueue/internal/api/middleware"
	"medqueue/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	tests := []struct {
		name          string
		config        middleware.RateLimitConfig
		path          string
		clientIPs     []string
		expectedCodes []int
	}{
		{
			name:          "under limit",
			config:        middleware.RateLimitConfig{Requests: 10, Window: 60, Burst: 10},
			path:          "/api/v1/doctors",
			clientIPs:     []string{"192.168.1.1", "192.168.1.1", "192.168.1.1"},
			expectedCodes: []int{200, 200, 200},
		},
		{
			name:          "exceeds burst",
			config:        middleware.RateLimitConfig{Requests: 2, Window: 60, Burst: 2},
			path:          "/api/v1/doctors",
			clientIPs:     []string{"192.168.1.2", "192.168.1.2", "192.168.1.2"},
			expectedCodes: []int{200, 200, 429},
		},
		{
			name:          "separate buckets per client",
			config:        middleware.RateLimitConfig{Requests: 1, Window: 60, Burst: 1},
			path:          "/api/v1/doctors",
			clientIPs:     []string{"10.0.0.1", "10.0.0.2", "10.0.0.1"},
			expectedCodes: []int{200, 200, 429},
		},
		{
			name:          "skipped prefix",
			config:        middleware.RateLimitConfig{Requests: 1, Window: 60, Burst: 1},
			path:          "/swagger/index.html",
			clientIPs:     []string{"10.0.0.3", "10.0.0.3", "10.0.0.3"},
			expectedCodes: []int{200, 200, 200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.SetupGin()
			limiter := middleware.NewRateLimiter(tt.config, "/swagger")

			r := gin.New()
			r.Use(limiter.Middleware())
			r.GET("/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

			for i, ip := range tt.clientIPs {
				req := httptest.NewRequest(http.MethodGet, tt.path, nil)
				req.RemoteAddr = ip + ":12345"
				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)

				assert.Equal(t, tt.expectedCodes[i], w.Code, "request %d", i+1)
				if w.Code == http.StatusTooManyRequests {
					assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
					assert.NotEmpty(t, w.Header().Get("Retry-After"))
				}
			}
		})
	}
}
