package server

import (
	"context"
	"errors"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/contest"
	"github.com/aimerfeng/ChallengeHive/internal/creator"
	apierrors "github.com/aimerfeng/ChallengeHive/internal/errors"
	"github.com/aimerfeng/ChallengeHive/internal/logging"
	"github.com/aimerfeng/ChallengeHive/internal/middleware"
	"github.com/aimerfeng/ChallengeHive/internal/payment"
	"github.com/aimerfeng/ChallengeHive/internal/submission"
	"github.com/aimerfeng/ChallengeHive/internal/upstream"
	"github.com/aimerfeng/ChallengeHive/internal/user"
	"github.com/gin-gonic/gin"
)

// serviceErrors maps service sentinels to API errors. First match wins.
var serviceErrors = []struct {
	err error
	api *apierrors.APIError
}{
	{user.ErrUserExists, apierrors.ErrUserExistsError},
	{user.ErrUserNotFound, apierrors.ErrUserNotFoundError},
	{user.ErrInvalidRole, apierrors.NewInvalidRequestError("Role must be user, creator or admin")},
	{user.ErrNoApprovedRequest, apierrors.ErrNoApprovedCreatorRequestError},

	{creator.ErrRequestPending, apierrors.ErrCreatorRequestPendingError},
	{creator.ErrRequestNotFound, apierrors.ErrCreatorRequestNotFoundError},
	{creator.ErrNotPending, apierrors.ErrInvalidTransitionError.WithMessage("Creator request already decided")},
	{creator.ErrInvalidDecision, apierrors.NewInvalidRequestError("Status must be Approved or Rejected")},
	{creator.ErrEmailMismatch, apierrors.NewInvalidRequestError("Email does not match the creator request")},
	{creator.ErrUserNotFound, apierrors.ErrUserNotFoundError},

	{contest.ErrContestNotFound, apierrors.ErrContestNotFoundError},
	{contest.ErrNotOwner, apierrors.ErrNotContestOwnerError},
	{contest.ErrInvalidTransition, apierrors.ErrInvalidTransitionError},
	{contest.ErrInvalidStatus, apierrors.NewInvalidRequestError("Status must be pending, Approved or Rejected")},
	{contest.ErrWinnerDeclared, apierrors.ErrWinnerAlreadyDeclaredError},
	{contest.ErrNotEnrolled, apierrors.ErrNotEnrolledError.WithMessage("Winner must be a participant of the contest")},
	{contest.ErrEmptyPatch, apierrors.NewInvalidRequestError("No editable fields supplied")},
	{contest.ErrNegativeAmount, apierrors.NewInvalidRequestError("Prize money and price must not be negative")},
	{contest.ErrAmountOutOfRange, apierrors.NewInvalidRequestError("Prize money and price must be at most 999999.99 with two decimal places")},
	{contest.ErrMissingName, apierrors.NewInvalidRequestError("Contest name is required")},

	{submission.ErrContestNotFound, apierrors.ErrContestNotFoundError},
	{submission.ErrNotEnrolled, apierrors.ErrNotEnrolledError},
	{submission.ErrEmptyContent, apierrors.NewInvalidRequestError("Submission content is required")},

	{payment.ErrPaymentUnavailable, apierrors.ErrPaymentUnavailableError},
	{payment.ErrContestNotFound, apierrors.ErrContestNotFoundError},
	{payment.ErrContestNotOpen, apierrors.ErrContestNotOpenError},
	{payment.ErrAlreadyEnrolled, apierrors.ErrAlreadyEnrolledError},
	{payment.ErrInvalidAmount, apierrors.NewInvalidRequestError("Contest has no valid entry price")},
	{payment.ErrMissingSessionID, apierrors.NewInvalidRequestError("session_id is required")},
	{payment.ErrCheckoutNotFound, apierrors.ErrCheckoutNotFoundError},
	{payment.ErrSessionNotFound, apierrors.ErrCheckoutNotFoundError},
	{payment.ErrInvalidSignature, apierrors.ErrInvalidSignatureError},

	{upstream.ErrCircuitOpen, apierrors.ErrCircuitBreakerOpenError},
	{upstream.ErrUnavailable, apierrors.ErrUpstreamUnavailableError},
	{context.DeadlineExceeded, apierrors.ErrUpstreamTimeoutError},
}

// mapError converts a service error into the API error returned to the
// client. The second result is false for errors with no mapping.
func mapError(err error) (*apierrors.APIError, bool) {
	var procErr *payment.ProcessorError
	if errors.As(err, &procErr) {
		return apierrors.NewUpstreamError("stripe", procErr.StatusCode), true
	}
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			// Table entries are shared; the response is stamped when written.
			api := *m.api
			api.Timestamp = time.Time{}
			return &api, true
		}
	}
	return apierrors.ErrInternalServerError, false
}

// respondError sends the mapped error. Unmapped errors are logged and
// surface as a generic 500.
func respondError(c *gin.Context, operation string, err error) {
	apiErr, known := mapError(err)
	if !known || apierrors.IsServerError(apiErr) {
		logging.LogError(err, middleware.GetRequestIDFromContext(c), "api", operation)
	}
	middleware.RespondWithError(c, apiErr)
}

// respondValidation sends a 400 for a request that failed binding
func respondValidation(c *gin.Context, err error) {
	middleware.RespondWithError(c, apierrors.NewValidationError(err.Error()))
}
