// Package payment turns processor checkout sessions into contest enrollments.
// A CheckoutRecord binds every session to the caller that created it, and
// confirmation appends the participant with a single conditional write.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/auth"
	"github.com/aimerfeng/ChallengeHive/internal/logging"
	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/monitoring"
	"github.com/aimerfeng/ChallengeHive/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Service errors
var (
	ErrPaymentUnavailable = errors.New("payment processor not configured")
	ErrContestNotFound    = errors.New("contest not found")
	ErrContestNotOpen     = errors.New("contest is not open for enrollment")
	ErrAlreadyEnrolled    = errors.New("caller is already enrolled")
	ErrInvalidAmount      = errors.New("contest price must be positive and within range")
	ErrCheckoutNotFound   = errors.New("checkout session not found")
	ErrMissingSessionID   = errors.New("session id is required")
)

// Outcome is the result of confirming a checkout session
type Outcome string

const (
	OutcomeEnrolled        Outcome = "enrolled"
	OutcomeAlreadyEnrolled Outcome = "already_enrolled"
	OutcomePending         Outcome = "pending"
)

// Metadata keys written on every session
const (
	MetaContestID        = "contestId"
	MetaParticipantEmail = "participantEmail"
	MetaParticipantName  = "participantName"
)

const eventCheckoutCompleted = "checkout.session.completed"

// Store is the persistence the payment engine needs
type Store interface {
	GetContest(ctx context.Context, id string) (*models.Contest, error)
	AppendParticipant(ctx context.Context, contestID string, p models.Participant) (bool, error)
	store.CheckoutStore
}

// Service is the payment enrollment engine
type Service struct {
	store     Store
	processor Processor
	clientURL string
	currency  string
	now       func() time.Time
}

// NewService creates a payment service. A nil processor disables checkout.
func NewService(s Store, processor Processor, clientURL, currency string) *Service {
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		store:     s,
		processor: processor,
		clientURL: clientURL,
		currency:  currency,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CheckoutRequest starts a payment for one contest entry
type CheckoutRequest struct {
	ContestID        string `json:"contestId" binding:"required"`
	ParticipantName  string `json:"participantName" binding:"max=200"`
	ParticipantPhoto string `json:"participantPhoto" binding:"omitempty,url,max=2048"`
	// Quantity is accepted for compatibility; an entry is always one unit.
	Quantity int64 `json:"quantity"`
}

// CheckoutResponse carries the redirect target for the processor's hosted page
type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// ConfirmRequest names the session returned on the success redirect
type ConfirmRequest struct {
	SessionID string `json:"sessionId" form:"session_id"`
}

// ConfirmResult reports what confirmation did
type ConfirmResult struct {
	Outcome       Outcome `json:"outcome"`
	ContestID     string  `json:"contestId,omitempty"`
	TransactionID string  `json:"transactionId,omitempty"`
}

// ToMinorUnits converts a price to cents, rounding half away from zero
func ToMinorUnits(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreateCheckout opens a processor session for caller's entry into a contest
func (s *Service) CreateCheckout(ctx context.Context, caller string, req *CheckoutRequest) (*CheckoutResponse, error) {
	if s.processor == nil {
		return nil, ErrPaymentUnavailable
	}
	caller = auth.NormalizeEmail(caller)

	c, err := s.store.GetContest(ctx, req.ContestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}

	now := s.now()
	if c.Status != models.ContestStatusApproved || c.Winner != nil || !now.Before(c.Deadline) {
		return nil, ErrContestNotOpen
	}
	if c.HasParticipant(caller) {
		return nil, ErrAlreadyEnrolled
	}

	if !models.AmountInRange(c.Price) {
		return nil, ErrInvalidAmount
	}
	amount := ToMinorUnits(c.Price)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	sess, err := s.processor.CreateSession(ctx, &CheckoutParams{
		ContestID:     c.ID,
		ProductName:   c.Name,
		Description:   c.Description,
		Image:         c.Image,
		AmountMinor:   amount,
		Currency:      s.currency,
		Quantity:      1,
		CustomerEmail: caller,
		SuccessURL:    fmt.Sprintf("%s/payment-success?session_id={CHECKOUT_SESSION_ID}", s.clientURL),
		CancelURL:     fmt.Sprintf("%s/contestDetails/%s?session_id={CHECKOUT_SESSION_ID}", s.clientURL, c.ID),
		Metadata: map[string]string{
			MetaContestID:        c.ID,
			MetaParticipantEmail: caller,
			MetaParticipantName:  req.ParticipantName,
		},
	})
	if err != nil {
		monitoring.RecordCheckoutSession("failed")
		return nil, err
	}

	record := &models.CheckoutRecord{
		SessionID:        sess.ID,
		ContestID:        c.ID,
		ParticipantEmail: caller,
		ParticipantName:  req.ParticipantName,
		ParticipantPhoto: req.ParticipantPhoto,
		AmountMinor:      amount,
		Currency:         s.currency,
		Status:           models.CheckoutStatusOpen,
		CreatedAt:        now,
	}
	if err := s.store.CreateCheckout(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store checkout record: %w", err)
	}

	monitoring.RecordCheckoutSession("created")
	logging.LogPayment(&logging.PaymentLogEntry{
		SessionID:   sess.ID,
		ContestID:   c.ID,
		Email:       caller,
		Status:      "created",
		AmountMinor: amount,
		Currency:    s.currency,
	})

	return &CheckoutResponse{URL: sess.URL, SessionID: sess.ID}, nil
}

// ConfirmPayment enrolls the session's owner once the processor reports the
// session complete. Calling it again for the same session is a no-op that
// reports OutcomeAlreadyEnrolled.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	if s.processor == nil {
		return nil, ErrPaymentUnavailable
	}
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	sess, err := s.processor.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Complete {
		monitoring.RecordEnrollment(string(OutcomePending))
		return &ConfirmResult{Outcome: OutcomePending}, nil
	}

	record, err := s.store.GetCheckout(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logging.LogSecurityEvent("unknown_checkout_session", sess.Metadata[MetaParticipantEmail], "", sessionID)
			return nil, ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("failed to get checkout record: %w", err)
	}
	s.checkSessionMatchesRecord(sess, record)

	p := models.Participant{
		Email:         record.ParticipantEmail,
		Name:          record.ParticipantName,
		Photo:         record.ParticipantPhoto,
		TransactionID: sess.PaymentIntentID,
		PaymentStatus: models.PaymentStatusPaid,
		TaskInfo:      []models.Submission{},
		EnrolledAt:    s.now(),
	}

	inserted, err := s.store.AppendParticipant(ctx, record.ContestID, p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to append participant: %w", err)
	}

	// Completion is idempotent and keeps the first timestamp.
	if err := s.store.MarkCheckoutCompleted(ctx, sessionID, s.now()); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to mark checkout completed")
	}

	outcome := OutcomeEnrolled
	if !inserted {
		outcome = OutcomeAlreadyEnrolled
	}

	monitoring.RecordEnrollment(string(outcome))
	logging.LogEnrollment(record.ContestID, record.ParticipantEmail, string(outcome))
	if inserted {
		logging.LogPayment(&logging.PaymentLogEntry{
			SessionID:     sessionID,
			ContestID:     record.ContestID,
			Email:         record.ParticipantEmail,
			TransactionID: sess.PaymentIntentID,
			Status:        string(outcome),
			AmountMinor:   sess.AmountTotal,
			Currency:      record.Currency,
		})
	}

	return &ConfirmResult{
		Outcome:       outcome,
		ContestID:     record.ContestID,
		TransactionID: sess.PaymentIntentID,
	}, nil
}

// checkSessionMatchesRecord logs sessions whose processor-side data disagrees
// with what we stored at creation. The stored record always wins.
func (s *Service) checkSessionMatchesRecord(sess *Session, record *models.CheckoutRecord) {
	if id := sess.Metadata[MetaContestID]; id != "" && id != record.ContestID {
		logging.LogSecurityEvent("checkout_metadata_mismatch", record.ParticipantEmail, "",
			fmt.Sprintf("session %s contest %s, record contest %s", sess.ID, id, record.ContestID))
	}
	if email := sess.Metadata[MetaParticipantEmail]; email != "" && auth.NormalizeEmail(email) != record.ParticipantEmail {
		logging.LogSecurityEvent("checkout_metadata_mismatch", record.ParticipantEmail, "",
			fmt.Sprintf("session %s carries email %s", sess.ID, email))
	}
	if sess.AmountTotal != 0 && sess.AmountTotal != record.AmountMinor {
		logging.LogSecurityEvent("checkout_amount_mismatch", record.ParticipantEmail, "",
			fmt.Sprintf("session %s paid %d, expected %d", sess.ID, sess.AmountTotal, record.AmountMinor))
	}
}

// HandleWebhook verifies a processor event and confirms completed sessions.
// Duplicate deliveries, sessions we never created and sessions whose contest
// was deleted after payment are acknowledged.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.processor == nil {
		return ErrPaymentUnavailable
	}

	event, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case eventCheckoutCompleted:
		result, err := s.ConfirmPayment(ctx, event.SessionID)
		if err != nil {
			switch {
			case errors.Is(err, ErrCheckoutNotFound):
				log.Warn().Str("session_id", event.SessionID).Msg("Webhook for unknown checkout session ignored")
				return nil
			case errors.Is(err, ErrContestNotFound):
				// Paid for a contest that no longer exists; needs a manual refund.
				logging.LogSecurityEvent("paid_for_deleted_contest", "", "",
					fmt.Sprintf("session %s event %s", event.SessionID, event.ID))
				monitoring.RecordEnrollment("contest_deleted")
				return nil
			}
			return err
		}
		log.Info().
			Str("session_id", event.SessionID).
			Str("outcome", string(result.Outcome)).
			Msg("Checkout webhook processed")
		return nil
	default:
		log.Debug().Str("event_type", event.Type).Msg("Ignoring webhook event")
		return nil
	}
}
