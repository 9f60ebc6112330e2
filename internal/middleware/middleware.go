package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"

	"github.com/aimerfeng/ChallengeHive/internal/auth"
	apierrors "github.com/aimerfeng/ChallengeHive/internal/errors"
	"github.com/aimerfeng/ChallengeHive/internal/logging"
	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/monitoring"
	"github.com/aimerfeng/ChallengeHive/internal/ratelimit"
	"github.com/aimerfeng/ChallengeHive/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Context keys for storing caller information
const (
	ContextKeyEmail         = "user_email"
	ContextKeyRole          = "user_role"
	ContextKeyRequestID     = "request_id"
	ContextKeyCorrelationID = "correlation_id"
)

// RoleLookup is the slice of the user store the role gates need
type RoleLookup interface {
	GetUser(ctx context.Context, email string) (*models.User, error)
}

// Authenticate verifies the bearer credential on every request and attaches
// the caller's email. A missing header is 401, any other failure is 403.
func Authenticate(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			monitoring.RecordAuthFailure("missing_header")
			abortWith(c, apierrors.ErrUnauthenticatedError)
			return
		}

		token, ok := auth.BearerToken(header)
		if !ok {
			monitoring.RecordAuthFailure("malformed_header")
			abortWith(c, apierrors.ErrInvalidCredentialError)
			return
		}

		email, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, auth.ErrTokenExpired) {
				reason = "expired_token"
			}
			monitoring.RecordAuthFailure(reason)
			log.Debug().Err(err).Str("request_id", GetRequestIDFromContext(c)).Msg("Token verification failed")
			abortWith(c, apierrors.ErrInvalidCredentialError)
			return
		}

		c.Set(ContextKeyEmail, email)
		c.Next()
	}
}

// RequireRole creates a middleware that checks the caller's stored role.
// It must run after Authenticate. Unknown users are forbidden.
func RequireRole(users RoleLookup, allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := GetEmailFromContext(c)
		if email == "" {
			abortWith(c, apierrors.ErrUnauthenticatedError)
			return
		}

		user, err := users.GetUser(c.Request.Context(), email)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logging.LogError(err, GetRequestIDFromContext(c), "middleware", "role_lookup")
				abortWith(c, apierrors.ErrInternalServerError)
				return
			}
			monitoring.RecordAuthFailure("unknown_user")
			abortWith(c, apierrors.ErrForbiddenError)
			return
		}

		if !slices.Contains(allowed, user.Role) {
			monitoring.RecordAuthFailure("role")
			abortWith(c, apierrors.ErrForbiddenError.WithMessage(
				fmt.Sprintf("Access denied. Required role: %v", allowed)))
			return
		}

		c.Set(ContextKeyRole, string(user.Role))
		c.Next()
	}
}

// RequireAdmin is a convenience middleware that requires the admin role
func RequireAdmin(users RoleLookup) gin.HandlerFunc {
	return RequireRole(users, models.RoleAdmin)
}

// RequireCreator is a convenience middleware that requires the creator role
func RequireCreator(users RoleLookup) gin.HandlerFunc {
	return RequireRole(users, models.RoleCreator)
}

// RateLimit rejects callers over the limiter's budget with 429. Requests are
// keyed by caller email when known, else by client IP.
func RateLimit(limiter ratelimit.Limiter, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetEmailFromContext(c)
		if key == "" {
			key = c.ClientIP()
		}

		result, err := limiter.Allow(c.Request.Context(), name+":"+key)
		if err != nil {
			// Limiter errors never block traffic.
			log.Warn().Err(err).Str("limiter", name).Msg("Rate limiter error")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

		if !result.Allowed {
			monitoring.RecordRateLimitHit(name)
			retryAfter := int64(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			abortWith(c, apierrors.NewRateLimitError(retryAfter))
			return
		}

		c.Next()
	}
}

// Recovery turns panics into the generic 500 envelope
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("request_id", GetRequestIDFromContext(c)).
					Str("path", c.Request.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from panic")
				if c.Writer.Written() {
					c.Abort()
					return
				}
				abortWith(c, apierrors.ErrInternalServerError)
			}
		}()
		c.Next()
	}
}

// RespondWithError writes the error envelope. The correlation id falls
// back to the request id.
func RespondWithError(c *gin.Context, err *apierrors.APIError) {
	reqID := GetRequestIDFromContext(c)
	corrID := GetCorrelationIDFromContext(c)
	if corrID == "" {
		corrID = reqID
	}
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, reqID, corrID, c.Request.URL.Path, c.Request.Method))
}

func abortWith(c *gin.Context, err *apierrors.APIError) {
	RespondWithError(c, err)
	c.Abort()
}

// GetEmailFromContext extracts the verified caller email.
// Returns empty string if not found
func GetEmailFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}

// GetRoleFromContext returns the role loaded by RequireRole, if any
func GetRoleFromContext(c *gin.Context) models.Role {
	return models.Role(c.GetString(ContextKeyRole))
}

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CorrelationID adds a correlation ID for distributed tracing.
// It can be passed from upstream services or falls back to the request ID.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = c.GetString(ContextKeyRequestID)
			if correlationID == "" {
				correlationID = uuid.New().String()
			}
		}
		c.Set(ContextKeyCorrelationID, correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

// GetCorrelationIDFromContext extracts the correlation ID from the gin context
func GetCorrelationIDFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyCorrelationID)
}

// GetRequestIDFromContext extracts the request ID from the gin context
func GetRequestIDFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// CORS configures CORS headers
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if origin != "" && (slices.Contains(allowedOrigins, origin) || slices.Contains(allowedOrigins, "*")) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-Correlation-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining, Retry-After")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "43200")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
