package errors

import (
	"net/http"
	"time"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Request errors (400xx)
	ErrInvalidRequest     ErrorCode = "40001"
	ErrValidationFailed   ErrorCode = "40002"
	ErrInvalidSignature   ErrorCode = "40003"
	ErrInvalidJSON        ErrorCode = "40004"
	ErrMissingParameter   ErrorCode = "40005"
	ErrPaymentUnavailable ErrorCode = "40006"

	// Authentication errors (401xx)
	ErrUnauthenticated ErrorCode = "40101"

	// Authorization errors (403xx)
	ErrForbidden         ErrorCode = "40301"
	ErrInvalidCredential ErrorCode = "40302"
	ErrNotContestOwner   ErrorCode = "40303"
	ErrNotEnrolled       ErrorCode = "40304"
	ErrSessionMismatch   ErrorCode = "40305"

	// Resource errors (404xx)
	ErrNotFound               ErrorCode = "40401"
	ErrUserNotFound           ErrorCode = "40402"
	ErrContestNotFound        ErrorCode = "40403"
	ErrCreatorRequestNotFound ErrorCode = "40404"
	ErrCheckoutNotFound       ErrorCode = "40405"

	// Conflict errors (409xx)
	ErrUserExists               ErrorCode = "40901"
	ErrAlreadyEnrolled          ErrorCode = "40902"
	ErrInvalidTransition        ErrorCode = "40903"
	ErrWinnerAlreadyDeclared    ErrorCode = "40904"
	ErrCreatorRequestPending    ErrorCode = "40905"
	ErrContestNotOpen           ErrorCode = "40906"
	ErrNoApprovedCreatorRequest ErrorCode = "40907"
	ErrConflict                 ErrorCode = "40908"

	// Rate limit errors (429xx)
	ErrRateLimited ErrorCode = "42901"

	// Server errors (5xxxx)
	ErrInternalServer      ErrorCode = "50001"
	ErrDatabaseError       ErrorCode = "50002"
	ErrCacheError          ErrorCode = "50003"
	ErrUpstreamError       ErrorCode = "50201"
	ErrUpstreamUnavailable ErrorCode = "50301"
	ErrCircuitBreakerOpen  ErrorCode = "50302"
	ErrUpstreamTimeout     ErrorCode = "50401"
)

var codeStatus = map[ErrorCode]int{
	ErrInvalidRequest:     http.StatusBadRequest,
	ErrValidationFailed:   http.StatusBadRequest,
	ErrInvalidSignature:   http.StatusBadRequest,
	ErrInvalidJSON:        http.StatusBadRequest,
	ErrMissingParameter:   http.StatusBadRequest,
	ErrPaymentUnavailable: http.StatusBadRequest,

	ErrUnauthenticated: http.StatusUnauthorized,

	ErrForbidden:         http.StatusForbidden,
	ErrInvalidCredential: http.StatusForbidden,
	ErrNotContestOwner:   http.StatusForbidden,
	ErrNotEnrolled:       http.StatusForbidden,
	ErrSessionMismatch:   http.StatusForbidden,

	ErrNotFound:               http.StatusNotFound,
	ErrUserNotFound:           http.StatusNotFound,
	ErrContestNotFound:        http.StatusNotFound,
	ErrCreatorRequestNotFound: http.StatusNotFound,
	ErrCheckoutNotFound:       http.StatusNotFound,

	ErrUserExists:               http.StatusConflict,
	ErrAlreadyEnrolled:          http.StatusConflict,
	ErrInvalidTransition:        http.StatusConflict,
	ErrWinnerAlreadyDeclared:    http.StatusConflict,
	ErrCreatorRequestPending:    http.StatusConflict,
	ErrContestNotOpen:           http.StatusConflict,
	ErrNoApprovedCreatorRequest: http.StatusConflict,
	ErrConflict:                 http.StatusConflict,

	ErrRateLimited: http.StatusTooManyRequests,

	ErrInternalServer:      http.StatusInternalServerError,
	ErrDatabaseError:       http.StatusInternalServerError,
	ErrCacheError:          http.StatusInternalServerError,
	ErrUpstreamError:       http.StatusBadGateway,
	ErrUpstreamUnavailable: http.StatusServiceUnavailable,
	ErrCircuitBreakerOpen:  http.StatusServiceUnavailable,
	ErrUpstreamTimeout:     http.StatusGatewayTimeout,
}

// GetHTTPStatusFromCode returns the HTTP status for an error code.
// Unknown codes map to 500.
func GetHTTPStatusFromCode(code ErrorCode) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
	Timestamp  time.Time `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// WithDetails returns a copy of the error carrying details
func (e *APIError) WithDetails(details any) *APIError {
	cp := *e
	cp.Details = details
	cp.Timestamp = time.Now().UTC()
	return &cp
}

// WithMessage returns a copy of the error with a different message
func (e *APIError) WithMessage(message string) *APIError {
	cp := *e
	cp.Message = message
	cp.Timestamp = time.Now().UTC()
	return &cp
}

// ErrorBody is the "error" object of an error response
type ErrorBody struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
	Method    string    `json:"method,omitempty"`
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error         ErrorBody `json:"error"`
	RequestID     string    `json:"request_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// NewErrorResponse builds the response envelope for err
func NewErrorResponse(err *APIError, requestID, correlationID, path, method string) ErrorResponse {
	ts := err.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return ErrorResponse{
		Error: ErrorBody{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			Timestamp: ts.Format(time.RFC3339),
			Path:      path,
			Method:    method,
		},
		RequestID:     requestID,
		CorrelationID: correlationID,
	}
}

// IsRetryable reports whether a client may retry the same request later
func IsRetryable(err *APIError) bool {
	switch err.Code {
	case ErrRateLimited, ErrUpstreamTimeout, ErrUpstreamUnavailable, ErrCircuitBreakerOpen:
		return true
	default:
		return false
	}
}

// IsClientError reports whether err is a 4xx error
func IsClientError(err *APIError) bool {
	return err.HTTPStatus >= 400 && err.HTTPStatus < 500
}

// IsServerError reports whether err is a 5xx error
func IsServerError(err *APIError) bool {
	return err.HTTPStatus >= 500 && err.HTTPStatus < 600
}

func newError(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: GetHTTPStatusFromCode(code)}
}

// Common errors
var (
	ErrUnauthenticatedError          = newError(ErrUnauthenticated, "Missing bearer token")
	ErrInvalidCredentialError        = newError(ErrInvalidCredential, "Invalid or expired credential")
	ErrForbiddenError                = newError(ErrForbidden, "Access denied")
	ErrNotContestOwnerError          = newError(ErrNotContestOwner, "Only the contest owner may do this")
	ErrNotEnrolledError              = newError(ErrNotEnrolled, "Caller is not enrolled in this contest")
	ErrSessionMismatchError          = newError(ErrSessionMismatch, "Checkout session belongs to another user")
	ErrNotFoundError                 = newError(ErrNotFound, "Resource not found")
	ErrUserNotFoundError             = newError(ErrUserNotFound, "User not found")
	ErrContestNotFoundError          = newError(ErrContestNotFound, "Contest not found")
	ErrCreatorRequestNotFoundError   = newError(ErrCreatorRequestNotFound, "Creator request not found")
	ErrCheckoutNotFoundError         = newError(ErrCheckoutNotFound, "Checkout session not found")
	ErrUserExistsError               = newError(ErrUserExists, "USER_EXISTS")
	ErrAlreadyEnrolledError          = newError(ErrAlreadyEnrolled, "Already enrolled in this contest")
	ErrInvalidTransitionError        = newError(ErrInvalidTransition, "Illegal status transition")
	ErrWinnerAlreadyDeclaredError    = newError(ErrWinnerAlreadyDeclared, "Winner already declared")
	ErrCreatorRequestPendingError    = newError(ErrCreatorRequestPending, "A creator request is already pending")
	ErrContestNotOpenError           = newError(ErrContestNotOpen, "Contest is not open for enrollment")
	ErrNoApprovedCreatorRequestError = newError(ErrNoApprovedCreatorRequest, "User has no approved creator request")
	ErrInvalidSignatureError         = newError(ErrInvalidSignature, "Invalid webhook signature")
	ErrPaymentUnavailableError       = newError(ErrPaymentUnavailable, "Payments are not configured")
	ErrRateLimitedError              = newError(ErrRateLimited, "Rate limit exceeded")
	ErrInternalServerError           = newError(ErrInternalServer, "Internal server error")
	ErrUpstreamTimeoutError          = newError(ErrUpstreamTimeout, "Upstream service timeout")
	ErrUpstreamUnavailableError      = newError(ErrUpstreamUnavailable, "Upstream service unavailable")
	ErrCircuitBreakerOpenError       = newError(ErrCircuitBreakerOpen, "Upstream circuit is open")
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
		Timestamp:  time.Now().UTC(),
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Timestamp:  time.Now().UTC(),
	}
}

// NewConflictError creates a conflict error for a write that lost against current state
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:       ErrConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Timestamp:  time.Now().UTC(),
	}
}

// NewRateLimitError creates a rate limit error with a retry hint
func NewRateLimitError(retryAfterSeconds int64) *APIError {
	return &APIError{
		Code:       ErrRateLimited,
		Message:    "Rate limit exceeded",
		Details:    map[string]int64{"retry_after_seconds": retryAfterSeconds},
		HTTPStatus: http.StatusTooManyRequests,
		Timestamp:  time.Now().UTC(),
	}
}

// NewUpstreamError creates an error describing a failed call to an external provider
func NewUpstreamError(provider string, statusCode int) *APIError {
	return &APIError{
		Code:    ErrUpstreamError,
		Message: "Upstream service error",
		Details: map[string]interface{}{
			"provider":    provider,
			"status_code": statusCode,
		},
		HTTPStatus: http.StatusBadGateway,
		Timestamp:  time.Now().UTC(),
	}
}
