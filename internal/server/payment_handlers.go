package server

import (
	"errors"
	"io"
	"net/http"

	apierrors "github.com/aimerfeng/ChallengeHive/internal/errors"
	"github.com/aimerfeng/ChallengeHive/internal/logging"
	"github.com/aimerfeng/ChallengeHive/internal/middleware"
	"github.com/aimerfeng/ChallengeHive/internal/payment"
	"github.com/gin-gonic/gin"
)

// maxWebhookBody bounds the webhook payload read into memory
const maxWebhookBody = 64 << 10

// handleCreateCheckout opens a processor session for the caller
func (s *APIServer) handleCreateCheckout(c *gin.Context) {
	var req payment.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	resp, err := s.payments.CreateCheckout(c.Request.Context(), middleware.GetEmailFromContext(c), &req)
	if err != nil {
		respondError(c, "create_checkout", err)
		return
	}
	respondData(c, http.StatusOK, resp)
}

// handlePaymentSuccess confirms a session named in the body or the
// session_id query parameter of the success redirect
func (s *APIServer) handlePaymentSuccess(c *gin.Context) {
	var req payment.ConfirmRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondValidation(c, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = c.Query("session_id")
	}

	result, err := s.payments.ConfirmPayment(c.Request.Context(), req.SessionID)
	if err != nil {
		respondError(c, "confirm_payment", err)
		return
	}

	switch result.Outcome {
	case payment.OutcomeEnrolled:
		respondData(c, http.StatusOK, result)
	case payment.OutcomePending:
		respondData(c, http.StatusAccepted, result)
	case payment.OutcomeAlreadyEnrolled:
		middleware.RespondWithError(c, apierrors.ErrAlreadyEnrolledError.WithDetails(result))
	}
}

// handleStripeWebhook verifies and applies a Stripe event. Upstream
// failures answer 5xx so Stripe redelivers.
func (s *APIServer) handleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		middleware.RespondWithError(c, apierrors.NewInvalidRequestError("Failed to read request body"))
		return
	}
	if len(payload) > maxWebhookBody {
		middleware.RespondWithError(c, apierrors.NewInvalidRequestError("Webhook payload too large"))
		return
	}

	if err := s.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			logging.LogSecurityEvent("invalid_webhook_signature", "", c.ClientIP(), logging.SanitizeForLog(err.Error(), 200))
		}
		respondError(c, "stripe_webhook", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
