// Package middleware provides HTTP middlewares for cmd/pdfstreamd.
package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/idtoken"

	"github.com/iiifstream/pdfstream/internal/platform/logger"
)

// isCloudRunCached is evaluated once at package init to avoid per-request os.Getenv overhead.
var isCloudRunCached = os.Getenv("K_SERVICE") != "" || os.Getenv("K_REVISION") != ""

// IsCloudRun reports whether the process is running on Google Cloud Run.
func IsCloudRun() bool {
	return isCloudRunCached
}

func oauthAudience() string {
	if v := os.Getenv("PDFSTREAM_OAUTH_AUDIENCE"); v != "" {
		return v
	}
	if v := os.Getenv("PDFSTREAM_OAUTH_CLIENT_ID"); v != "" {
		return v
	}
	return os.Getenv("CLOUD_RUN_SERVICE_URL")
}

func validateBearer(c *gin.Context) (idtoken.Payload, error) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return idtoken.Payload{}, errInvalidAuthHeader
	}
	payload, err := idtoken.Validate(context.Background(), parts[1], oauthAudience())
	if err != nil {
		return idtoken.Payload{}, err
	}
	return *payload, nil
}

var errInvalidAuthHeader = &authError{"invalid authorization header format, expected: Bearer <token>"}

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }

// GoogleAuthMiddleware validates a Google-issued OAuth ID token on every
// request, enforced only when running on Cloud Run (PDFSTREAM_LISTEN_ADDR
// deployments behind a local reverse proxy rely on network-level access
// control instead).
func GoogleAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsCloudRun() || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		payload, err := validateBearer(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid id token", "details": err.Error()})
			c.Abort()
			return
		}
		c.Set("user_email", payload.Claims["email"])
		c.Set("user_sub", payload.Subject)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches caller identity to the context when a
// valid bearer token is present, but never rejects the request.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsCloudRun() {
			if payload, err := validateBearer(c); err == nil {
				c.Set("user_email", payload.Claims["email"])
				c.Set("user_sub", payload.Subject)
			}
		}
		c.Next()
	}
}

// GetUserEmail retrieves the authenticated caller's email from context, if
// GoogleAuthMiddleware or OptionalAuthMiddleware populated one.
func GetUserEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get("user_email")
	if !exists {
		return "", false
	}
	emailStr, ok := email.(string)
	return emailStr, ok
}

// LogAuthInfo logs the authenticated caller, if any, at debug level.
func LogAuthInfo(c *gin.Context, log *logger.Logger) {
	if !IsCloudRun() {
		return
	}
	if email, ok := GetUserEmail(c); ok {
		log.Debug("authenticated request", "user_email", email, "path", c.Request.URL.Path)
	} else {
		log.Debug("unauthenticated request", "path", c.Request.URL.Path)
	}
}
