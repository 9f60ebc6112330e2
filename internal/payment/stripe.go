package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/monitoring"
	"github.com/aimerfeng/ChallengeHive/internal/upstream"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

const stripeUpstream = "stripe"

// StripeProcessor implements Processor on Stripe Checkout
type StripeProcessor struct {
	sessions      *session.Client
	webhookSecret string
	breakers      *upstream.Manager
}

// NewStripeProcessor creates a processor using the default Stripe API backend
func NewStripeProcessor(secretKey, webhookSecret string, breakers *upstream.Manager) *StripeProcessor {
	return NewStripeProcessorWithBackend(stripe.GetBackend(stripe.APIBackend), secretKey, webhookSecret, breakers)
}

// NewStripeProcessorWithBackend creates a processor on an explicit backend
func NewStripeProcessorWithBackend(backend stripe.Backend, secretKey, webhookSecret string, breakers *upstream.Manager) *StripeProcessor {
	if breakers == nil {
		breakers = upstream.NewManager(nil)
	}
	return &StripeProcessor{
		sessions:      &session.Client{B: backend, Key: secretKey},
		webhookSecret: webhookSecret,
		breakers:      breakers,
	}
}

// CreateSession creates a payment-mode checkout session with a single line item
func (p *StripeProcessor) CreateSession(ctx context.Context, in *CheckoutParams) (*Session, error) {
	start := time.Now()
	sess, err := upstream.Execute(ctx, p.breakers, stripeUpstream, func(ctx context.Context) (*stripe.CheckoutSession, error) {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(in.ProductName),
		}
		if in.Description != "" {
			productData.Description = stripe.String(in.Description)
		}
		if in.Image != "" {
			productData.Images = stripe.StringSlice([]string{in.Image})
		}

		params := &stripe.CheckoutSessionParams{
			Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems: []*stripe.CheckoutSessionLineItemParams{
				{
					PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
						Currency:    stripe.String(in.Currency),
						ProductData: productData,
						UnitAmount:  stripe.Int64(in.AmountMinor),
					},
					Quantity: stripe.Int64(in.Quantity),
				},
			},
			CustomerEmail:     stripe.String(in.CustomerEmail),
			SuccessURL:        stripe.String(in.SuccessURL),
			CancelURL:         stripe.String(in.CancelURL),
			ClientReferenceID: stripe.String(in.ContestID),
		}
		for k, v := range in.Metadata {
			params.AddMetadata(k, v)
		}
		params.Context = ctx

		s, err := p.sessions.New(params)
		return s, classifyStripeError(err)
	})
	observe("create_session", start, err)
	if err != nil {
		return nil, err
	}
	return toSession(sess), nil
}

// GetSession retrieves a session, retrying transient failures
func (p *StripeProcessor) GetSession(ctx context.Context, id string) (*Session, error) {
	start := time.Now()
	sess, err := upstream.Retry(ctx, p.breakers, stripeUpstream, func(ctx context.Context) (*stripe.CheckoutSession, error) {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		s, err := p.sessions.Get(id, params)
		return s, classifyStripeError(err)
	})
	observe("get_session", start, err)
	if err != nil {
		return nil, err
	}
	return toSession(sess), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event
func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil {
		out.SessionID = event.GetObjectValue("id")
	}
	return out, nil
}

func toSession(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:          s.ID,
		URL:         s.URL,
		Complete:    s.Status == stripe.CheckoutSessionStatusComplete,
		AmountTotal: s.AmountTotal,
		Metadata:    s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}

// classifyStripeError maps Stripe failures onto the upstream error classes:
// connection problems, rate limiting and 5xx count against the breaker and
// may be retried; everything else is a permanent rejection.
func classifyStripeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: %v", upstream.ErrUnavailable, err)
	}

	switch {
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests,
		stripeErr.HTTPStatusCode >= http.StatusInternalServerError,
		stripeErr.Type == stripe.ErrorTypeAPI && stripeErr.HTTPStatusCode == 0:
		return fmt.Errorf("%w: %v", upstream.ErrUnavailable, err)
	case stripeErr.Code == stripe.ErrorCodeResourceMissing:
		return ErrSessionNotFound
	default:
		return &ProcessorError{
			StatusCode: stripeErr.HTTPStatusCode,
			Code:       string(stripeErr.Code),
			Message:    stripeErr.Msg,
		}
	}
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, upstream.ErrCircuitOpen):
		status = "circuit_open"
	case errors.Is(err, upstream.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		status = "unavailable"
	default:
		status = "rejected"
	}
	monitoring.RecordPaymentProviderCall(operation, status, time.Since(start))
}
