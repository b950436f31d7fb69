package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ValidatorConfig holds request validation configuration.
type ValidatorConfig struct {
	MaxBodySize         int64    // maximum request body size in bytes
	ExecutableBlacklist []string // dangerous executable patterns
	MaxExecutableLength int
	MaxEnvEntries       int
}

// DefaultValidatorConfig returns safe defaults.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxBodySize:         1 << 20, // 1MB
		ExecutableBlacklist: []string{"rm -rf /", ":(){ :|:& };:", "mkfs", "dd if="},
		MaxExecutableLength: 4096,
		MaxEnvEntries:       128,
	}
}

// Validator performs request-level checks before a submission reaches
// the model validation in pkg/models.
type Validator struct {
	config           ValidatorConfig
	dangerousPattern *regexp.Regexp
}

// NewValidator creates a new validator with the given config.
func NewValidator(config ValidatorConfig) *Validator {
	patterns := make([]string, len(config.ExecutableBlacklist))
	for i, p := range config.ExecutableBlacklist {
		patterns[i] = regexp.QuoteMeta(p)
	}
	pattern := regexp.MustCompile(strings.Join(patterns, "|"))

	return &Validator{
		config:           config,
		dangerousPattern: pattern,
	}
}

// ValidateExecutable checks that an executable path is safe to launch.
func (v *Validator) ValidateExecutable(executable string) error {
	if len(executable) > v.config.MaxExecutableLength {
		return &ValidationError{
			Field:   "executable",
			Message: "executable exceeds maximum length",
		}
	}

	if v.dangerousPattern.MatchString(executable) {
		return &ValidationError{
			Field:   "executable",
			Message: "executable contains potentially dangerous patterns",
		}
	}

	return nil
}

// ValidateEnvironment bounds the number of environment entries a job may set.
func (v *Validator) ValidateEnvironment(env map[string]string) error {
	if len(env) > v.config.MaxEnvEntries {
		return &ValidationError{
			Field:   "environments",
			Message: "too many environment entries",
		}
	}
	return nil
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// BodySizeLimitMiddleware limits request body size.
func BodySizeLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// SecurityHeadersMiddleware adds standard security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")

		c.Next()
	}
}

// RequestIDMiddleware assigns a request ID, honoring one supplied by the client.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}
