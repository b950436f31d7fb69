package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestValidator_ValidateExecutable_AcceptsNormalPaths(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	tests := []string{
		"/usr/bin/python3",
		"/opt/simulations/solver",
		"/home/user/bin/run-analysis",
	}

	for _, exe := range tests {
		if err := v.ValidateExecutable(exe); err != nil {
			t.Errorf("expected executable %q to be valid, got error: %v", exe, err)
		}
	}
}

func TestValidator_ValidateExecutable_RejectsDangerousPatterns(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	tests := []string{
		"rm -rf /",
		":(){ :|:& };:",
		"/sbin/mkfs.ext4",
		"dd if=/dev/zero",
	}

	for _, exe := range tests {
		if err := v.ValidateExecutable(exe); err == nil {
			t.Errorf("expected executable %q to be rejected", exe)
		}
	}
}

func TestValidator_ValidateExecutable_RejectsTooLong(t *testing.T) {
	config := DefaultValidatorConfig()
	config.MaxExecutableLength = 10
	v := NewValidator(config)

	if err := v.ValidateExecutable("/a/very/long/path/to/a/binary"); err == nil {
		t.Error("expected error for too long executable")
	}
}

func TestValidator_ValidateEnvironment_Bounds(t *testing.T) {
	config := DefaultValidatorConfig()
	config.MaxEnvEntries = 2
	v := NewValidator(config)

	ok := map[string]string{"A": "1", "B": "2"}
	if err := v.ValidateEnvironment(ok); err != nil {
		t.Errorf("expected 2 entries to pass, got %v", err)
	}

	tooMany := map[string]string{"A": "1", "B": "2", "C": "3"}
	if err := v.ValidateEnvironment(tooMany); err == nil {
		t.Error("expected error for too many environment entries")
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Field: "executable", Message: "bad"}
	if err.Error() != "executable: bad" {
		t.Errorf("unexpected error string %q", err.Error())
	}
}

func TestBodySizeLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(BodySizeLimitMiddleware(16))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	small := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tiny"))
	router.ServeHTTP(small, req)
	if small.Code != http.StatusOK {
		t.Errorf("expected small body to pass, got %d", small.Code)
	}

	big := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	router.ServeHTTP(big, req)
	if big.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversized body, got %d", big.Code)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("expected %s=%s, got %q", header, want, got)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, fmt.Sprint(c.MustGet("request_id")))
	})

	// Generated when absent.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}

	// Honored when supplied.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	router.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "req-abc" {
		t.Errorf("expected the supplied request id to be echoed, got %q", rec.Header().Get("X-Request-ID"))
	}
	if rec.Body.String() != "req-abc" {
		t.Errorf("expected request id in context, got %q", rec.Body.String())
	}
}
