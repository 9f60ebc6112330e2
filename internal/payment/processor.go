package payment

import (
	"context"
	"errors"
	"fmt"
)

// Processor errors
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSessionNotFound  = errors.New("processor has no such session")
)

// ProcessorError is a request the processor rejected. It is never retried.
type ProcessorError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("payment processor rejected request (%d %s): %s", e.StatusCode, e.Code, e.Message)
}

// CheckoutParams describes a hosted checkout session for one contest entry
type CheckoutParams struct {
	ContestID     string
	ProductName   string
	Description   string
	Image         string
	AmountMinor   int64
	Currency      string
	Quantity      int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Session is the processor's view of a checkout session
type Session struct {
	ID              string
	URL             string
	Complete        bool
	PaymentIntentID string
	AmountTotal     int64
	Metadata        map[string]string
}

// WebhookEvent is a verified processor event
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

// Processor is the payment capability the enrollment engine calls
type Processor interface {
	// CreateSession opens a hosted checkout session. Never retried.
	CreateSession(ctx context.Context, params *CheckoutParams) (*Session, error)
	// GetSession reads a session. Read-only, so implementations may retry.
	GetSession(ctx context.Context, id string) (*Session, error)
	// ParseWebhook verifies the signature and decodes the event
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
