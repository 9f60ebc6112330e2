package errors

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func allCodes() []ErrorCode {
	codes := make([]ErrorCode, 0, len(codeStatus))
	for code := range codeStatus {
		codes = append(codes, code)
	}
	return codes
}

// The first three digits of every code are its HTTP status.
func TestProperty_CodePrefixMatchesStatus(t *testing.T) {
	codes := allCodes()
	rapid.Check(t, func(rt *rapid.T) {
		code := rapid.SampledFrom(codes).Draw(rt, "code")
		prefix, err := strconv.Atoi(string(code)[:3])
		if err != nil {
			rt.Fatalf("code %s has no numeric prefix", code)
		}
		if got := GetHTTPStatusFromCode(code); got != prefix {
			rt.Fatalf("code %s maps to %d", code, got)
		}
	})
}

func TestProperty_UnknownCodesAreInternal(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		code := ErrorCode(rapid.StringMatching(`[0-9]{5}`).Draw(rt, "code"))
		if _, known := codeStatus[code]; known {
			rt.Skip("known code")
		}
		if got := GetHTTPStatusFromCode(code); got != http.StatusInternalServerError {
			rt.Fatalf("unknown code %s maps to %d", code, got)
		}
	})
}

func TestProperty_EnvelopeCarriesRequestContext(t *testing.T) {
	codes := allCodes()
	rapid.Check(t, func(rt *rapid.T) {
		code := rapid.SampledFrom(codes).Draw(rt, "code")
		requestID := rapid.StringMatching(`[a-f0-9]{8}-[a-f0-9]{4}`).Draw(rt, "requestID")
		correlationID := rapid.StringMatching(`[a-f0-9]{0,12}`).Draw(rt, "correlationID")
		path := rapid.SampledFrom([]string{"/contestDetails/c1", "/paymentSuccess", "/manageUsers", "/taskInfo/c2"}).Draw(rt, "path")
		method := rapid.SampledFrom([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete}).Draw(rt, "method")

		resp := NewErrorResponse(newError(code, "boom"), requestID, correlationID, path, method)

		if resp.Error.Code != code || resp.Error.Message != "boom" {
			rt.Fatalf("body lost code or message: %+v", resp.Error)
		}
		if _, err := time.Parse(time.RFC3339, resp.Error.Timestamp); err != nil {
			rt.Fatalf("timestamp %q: %v", resp.Error.Timestamp, err)
		}
		if resp.RequestID != requestID || resp.CorrelationID != correlationID {
			rt.Fatalf("ids not carried: %+v", resp)
		}
		if resp.Error.Path != path || resp.Error.Method != method {
			rt.Fatalf("route not carried: %s %s", resp.Error.Method, resp.Error.Path)
		}
	})
}

func TestProperty_CopiesLeaveSharedErrorsUntouched(t *testing.T) {
	shared := []*APIError{
		ErrAlreadyEnrolledError, ErrNotEnrolledError, ErrContestNotOpenError,
		ErrWinnerAlreadyDeclaredError, ErrSessionMismatchError,
	}
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.SampledFrom(shared).Draw(rt, "base")
		msg := rapid.StringMatching(`[A-Za-z ]{1,40}`).Draw(rt, "msg")
		before := *base

		withMsg := base.WithMessage(msg)
		withDetails := base.WithDetails(map[string]string{"contest_id": msg})

		if *base != before {
			rt.Fatalf("shared error %s mutated", base.Code)
		}
		if withMsg.Code != base.Code || withMsg.HTTPStatus != base.HTTPStatus || withMsg.Message != msg {
			rt.Fatalf("WithMessage copy wrong: %+v", withMsg)
		}
		if withDetails.Message != base.Message || withDetails.Details == nil {
			rt.Fatalf("WithDetails copy wrong: %+v", withDetails)
		}
		if withMsg.Timestamp.IsZero() || withDetails.Timestamp.IsZero() {
			rt.Fatal("copies must be stamped")
		}
	})
}

func TestProperty_ClientServerSplit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		status := rapid.IntRange(400, 599).Draw(rt, "status")
		err := &APIError{Code: ErrInternalServer, HTTPStatus: status}
		if IsClientError(err) == IsServerError(err) {
			rt.Fatalf("status %d must be exactly one of client or server", status)
		}
		if IsClientError(err) != (status < 500) {
			rt.Fatalf("status %d misclassified", status)
		}
	})
}

func TestProperty_RateLimitHint(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		retryAfter := rapid.Int64Range(1, 3600).Draw(rt, "retryAfter")
		err := NewRateLimitError(retryAfter)
		details, ok := err.Details.(map[string]int64)
		if !ok || details["retry_after_seconds"] != retryAfter {
			rt.Fatalf("retry hint lost: %#v", err.Details)
		}
		if !IsRetryable(err) {
			rt.Fatal("rate limited requests are retryable")
		}
	})
}

func TestIsRetryable(t *testing.T) {
	for _, err := range []*APIError{
		ErrUpstreamTimeoutError, ErrUpstreamUnavailableError, ErrCircuitBreakerOpenError, ErrRateLimitedError,
	} {
		assert.True(t, IsRetryable(err), err.Code)
	}
	for _, err := range []*APIError{
		ErrInvalidCredentialError, ErrUnauthenticatedError, ErrAlreadyEnrolledError,
		ErrContestNotOpenError, ErrInternalServerError, NewUpstreamError("stripe", 500),
	} {
		assert.False(t, IsRetryable(err), err.Code)
	}
}

func TestNewUpstreamError_Details(t *testing.T) {
	err := NewUpstreamError("stripe", 503)
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)

	raw, mErr := json.Marshal(NewErrorResponse(err, "req-1", "", "/create-checkout-session", http.MethodPost))
	require.NoError(t, mErr)

	var body struct {
		Error struct {
			Code    ErrorCode      `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, ErrUpstreamError, body.Error.Code)
	assert.Equal(t, "stripe", body.Error.Details["provider"])
	assert.EqualValues(t, 503, body.Error.Details["status_code"])
	assert.Equal(t, "req-1", body.RequestID)
	assert.NotContains(t, string(raw), "correlation_id")
}

func TestGetHTTPStatusFromCode_AuthGates(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrUnauthenticated:   http.StatusUnauthorized,
		ErrInvalidCredential: http.StatusForbidden,
		ErrNotEnrolled:       http.StatusForbidden,
		ErrUserExists:        http.StatusConflict,
		ErrAlreadyEnrolled:   http.StatusConflict,
		ErrorCode("99999"):   http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, GetHTTPStatusFromCode(code), code)
	}
}
