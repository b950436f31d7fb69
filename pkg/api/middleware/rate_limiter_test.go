package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowsBurst(t *testing.T) {
	config := RateLimiterConfig{
		RequestsPerMinute: 60,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	}
	rl := NewRateLimiter(config)

	for i := 0; i < 5; i++ {
		if !rl.Allow("client-a") {
			t.Errorf("expected request %d within burst to be allowed", i+1)
		}
	}

	if rl.Allow("client-a") {
		t.Error("expected request beyond burst to be rejected")
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	config := RateLimiterConfig{
		RequestsPerMinute: 6000, // 100/s, fast enough to observe refill
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	}
	rl := NewRateLimiter(config)

	if !rl.Allow("client-b") {
		t.Fatal("expected first request to be allowed")
	}
	if rl.Allow("client-b") {
		t.Fatal("expected second immediate request to be rejected")
	}

	time.Sleep(20 * time.Millisecond)

	if !rl.Allow("client-b") {
		t.Error("expected request after refill to be allowed")
	}
}

func TestRateLimiter_IsolatesClients(t *testing.T) {
	config := RateLimiterConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	}
	rl := NewRateLimiter(config)

	if !rl.Allow("client-c") {
		t.Fatal("expected first client to be allowed")
	}
	if !rl.Allow("client-d") {
		t.Error("expected a different client to have its own bucket")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddlewareWithConfig(RateLimiterConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusOK {
		t.Errorf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("expected second request to be limited, got %d", second.Code)
	}
}
