package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/store/memory"
	"github.com/aimerfeng/ChallengeHive/internal/store/storetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fakeProcessor records created sessions and lets tests complete them
type fakeProcessor struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*Session
	created  []*CheckoutParams
	getErr   error
	events   map[string]*WebhookEvent
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{sessions: make(map[string]*Session), events: make(map[string]*WebhookEvent)}
}

func (f *fakeProcessor) CreateSession(_ context.Context, p *CheckoutParams) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("cs_test_%d", f.seq)
	meta := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		meta[k] = v
	}
	f.sessions[id] = &Session{ID: id, URL: "https://checkout.example.com/" + id, Metadata: meta}
	f.created = append(f.created, p)
	return &Session{ID: id, URL: "https://checkout.example.com/" + id}, nil
}

func (f *fakeProcessor) GetSession(_ context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeProcessor) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[signature]
	if !ok {
		return nil, ErrInvalidSignature
	}
	return ev, nil
}

func (f *fakeProcessor) complete(id, paymentIntent string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.Complete = true
	s.PaymentIntentID = paymentIntent
	for _, p := range f.created {
		if p.Metadata[MetaContestID] == s.Metadata[MetaContestID] {
			s.AmountTotal = p.AmountMinor * p.Quantity
		}
	}
}

func openContest(t *testing.T, s *memory.Store, price decimal.Decimal) *models.Contest {
	t.Helper()
	c := storetest.NewContest("creator@example.com")
	c.Price = price
	c.Status = models.ContestStatusApproved
	require.NoError(t, s.CreateContest(context.Background(), c))
	return c
}

func newTestService(s *memory.Store, p Processor) *Service {
	return NewService(s, p, "https://app.example.com", "usd")
}

func TestCheckoutAndConfirm(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	proc := newFakeProcessor()
	svc := newTestService(s, proc)

	x := openContest(t, s, decimal.NewFromInt(10))

	resp, err := svc.CreateCheckout(ctx, "P@example.com", &CheckoutRequest{ContestID: x.ID, ParticipantName: "P", Quantity: 5})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)
	require.NotEmpty(t, resp.URL)

	require.Len(t, proc.created, 1)
	params := proc.created[0]
	assert.Equal(t, int64(1000), params.AmountMinor)
	assert.Equal(t, int64(1), params.Quantity, "an entry is always one unit")
	assert.Equal(t, x.ID, params.Metadata[MetaContestID])
	assert.Equal(t, "p@example.com", params.Metadata[MetaParticipantEmail])
	assert.Contains(t, params.SuccessURL, "https://app.example.com/")
	assert.Contains(t, params.SuccessURL, "{CHECKOUT_SESSION_ID}")
	assert.Contains(t, params.CancelURL, "{CHECKOUT_SESSION_ID}")

	record, err := s.GetCheckout(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusOpen, record.Status)
	assert.Equal(t, "p@example.com", record.ParticipantEmail)

	// Not paid yet.
	result, err := svc.ConfirmPayment(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, result.Outcome)
	got, err := s.GetContest(ctx, x.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Participants)

	proc.complete(resp.SessionID, "pi_1")

	result, err = svc.ConfirmPayment(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnrolled, result.Outcome)
	assert.Equal(t, "pi_1", result.TransactionID)

	got, err = s.GetContest(ctx, x.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
	p := got.Participants[0]
	assert.Equal(t, "p@example.com", p.Email)
	assert.Equal(t, "pi_1", p.TransactionID)
	assert.Equal(t, models.PaymentStatusPaid, p.PaymentStatus)

	record, err = s.GetCheckout(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusCompleted, record.Status)

	// Second confirmation of the same session changes nothing.
	result, err = svc.ConfirmPayment(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyEnrolled, result.Outcome)
	got, err = s.GetContest(ctx, x.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 1)
}

func TestConfirm_ConcurrentConfirmationsEnrollOnce(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	proc := newFakeProcessor()
	svc := newTestService(s, proc)

	x := openContest(t, s, decimal.NewFromInt(25))
	resp, err := svc.CreateCheckout(ctx, "p@example.com", &CheckoutRequest{ContestID: x.ID})
	require.NoError(t, err)
	proc.complete(resp.SessionID, "pi_race")

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[Outcome]int)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.ConfirmPayment(ctx, resp.SessionID)
			if err != nil {
				t.Errorf("confirm failed: %v", err)
				return
			}
			mu.Lock()
			outcomes[result.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[OutcomeEnrolled])
	assert.Equal(t, workers-1, outcomes[OutcomeAlreadyEnrolled])

	got, err := s.GetContest(ctx, x.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 1)
}

func TestCheckout_ContestMustBeOpen(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newTestService(s, newFakeProcessor())

	pending := storetest.NewContest("creator@example.com")
	require.NoError(t, s.CreateContest(ctx, pending))

	expired := storetest.NewContest("creator@example.com")
	expired.Status = models.ContestStatusApproved
	expired.Deadline = time.Now().Add(-time.Hour)
	require.NoError(t, s.CreateContest(ctx, expired))

	decided := openContest(t, s, decimal.NewFromInt(5))
	_, err := s.AppendParticipant(ctx, decided.ID, models.Participant{Email: "w@example.com", PaymentStatus: models.PaymentStatusPaid})
	require.NoError(t, err)
	_, err = s.SetWinner(ctx, decided.ID, "w@example.com")
	require.NoError(t, err)

	free := openContest(t, s, decimal.Zero)
	oversized := openContest(t, s, decimal.RequireFromString("200000000000000000"))

	tests := []struct {
		name      string
		contestID string
		caller    string
		want      error
	}{
		{"missing", "no-such-contest", "p@example.com", ErrContestNotFound},
		{"pending", pending.ID, "p@example.com", ErrContestNotOpen},
		{"past deadline", expired.ID, "p@example.com", ErrContestNotOpen},
		{"winner declared", decided.ID, "p@example.com", ErrContestNotOpen},
		{"free contest", free.ID, "p@example.com", ErrInvalidAmount},
		{"price beyond range", oversized.ID, "p@example.com", ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCheckout(ctx, tt.caller, &CheckoutRequest{ContestID: tt.contestID})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheckout_AlreadyEnrolledCallerIsRejected(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	proc := newFakeProcessor()
	svc := newTestService(s, proc)

	x := openContest(t, s, decimal.NewFromInt(10))
	resp, err := svc.CreateCheckout(ctx, "p@example.com", &CheckoutRequest{ContestID: x.ID})
	require.NoError(t, err)
	proc.complete(resp.SessionID, "pi_1")
	_, err = svc.ConfirmPayment(ctx, resp.SessionID)
	require.NoError(t, err)

	_, err = svc.CreateCheckout(ctx, "p@example.com", &CheckoutRequest{ContestID: x.ID})
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestConfirm_IdentityComesFromRecord(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	proc := newFakeProcessor()
	svc := newTestService(s, proc)

	x := openContest(t, s, decimal.NewFromInt(10))
	resp, err := svc.CreateCheckout(ctx, "p@example.com", &CheckoutRequest{ContestID: x.ID})
	require.NoError(t, err)

	// Tampered metadata on the processor side must not change who is enrolled.
	proc.mu.Lock()
	proc.sessions[resp.SessionID].Metadata[MetaParticipantEmail] = "mallory@example.com"
	proc.mu.Unlock()
	proc.complete(resp.SessionID, "pi_2")

	_, err = svc.ConfirmPayment(ctx, resp.SessionID)
	require.NoError(t, err)

	got, err := s.GetContest(ctx, x.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, "p@example.com", got.Participants[0].Email)
}

func TestConfirm_Errors(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	proc := newFakeProcessor()
	svc := newTestService(s, proc)

	_, err := svc.ConfirmPayment(ctx, "")
	assert.ErrorIs(t, err, ErrMissingSessionID)

	_, err = svc.ConfirmPayment(ctx, "cs_unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// A completed session we never recorded.
	proc.sessions["cs_foreign"] = &Session{ID: "cs_foreign", Complete: true, PaymentIntentID: "pi_x"}
	_, err = svc.ConfirmPayment(ctx, "cs_foreign")
	assert.ErrorIs(t, err, ErrCheckoutNotFound)

	proc.getErr = errors.New("boom")
	_, err = svc.ConfirmPayment(ctx, "cs_foreign")
	assert.Error(t, err)

	disabled := newTestService(s, nil)
	_, err = disabled.ConfirmPayment(ctx, "cs_foreign")
	assert.ErrorIs(t, err, ErrPaymentUnavailable)
	_, err = disabled.CreateCheckout(ctx, "p@example.com", &CheckoutRequest{ContestID: "x"})
	assert.ErrorIs(t, err, ErrPaymentUnavailable)
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	proc := newFakeProcessor()
	svc := newTestService(s, proc)

	x := openContest(t, s, decimal.NewFromInt(10))
	resp, err := svc.CreateCheckout(ctx, "p@example.com", &CheckoutRequest{ContestID: x.ID})
	require.NoError(t, err)
	proc.complete(resp.SessionID, "pi_hook")

	proc.events["good"] = &WebhookEvent{ID: "evt_1", Type: eventCheckoutCompleted, SessionID: resp.SessionID}
	proc.events["other"] = &WebhookEvent{ID: "evt_2", Type: "payment_intent.created"}
	proc.events["foreign"] = &WebhookEvent{ID: "evt_3", Type: eventCheckoutCompleted, SessionID: "cs_nobody"}
	proc.sessions["cs_nobody"] = &Session{ID: "cs_nobody", Complete: true}

	assert.ErrorIs(t, svc.HandleWebhook(ctx, []byte("{}"), "forged"), ErrInvalidSignature)
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "good"))
	// Redelivery is acknowledged.
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "good"))
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "other"))
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "foreign"))

	// The redirect landing call after the webhook is a no-op.
	result, err := svc.ConfirmPayment(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyEnrolled, result.Outcome)

	got, err := s.GetContest(ctx, x.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, "pi_hook", got.Participants[0].TransactionID)
}

func TestHandleWebhook_DeletedContestIsAcknowledged(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	proc := newFakeProcessor()
	svc := newTestService(s, proc)

	x := openContest(t, s, decimal.NewFromInt(10))
	resp, err := svc.CreateCheckout(ctx, "p@example.com", &CheckoutRequest{ContestID: x.ID})
	require.NoError(t, err)
	proc.complete(resp.SessionID, "pi_gone")
	require.NoError(t, s.DeleteContest(ctx, x.ID))

	_, err = svc.ConfirmPayment(ctx, resp.SessionID)
	assert.ErrorIs(t, err, ErrContestNotFound, "the redirect landing still reports the missing contest")

	proc.events["late"] = &WebhookEvent{ID: "evt_late", Type: eventCheckoutCompleted, SessionID: resp.SessionID}
	assert.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "late"))
}

func TestProperty_ToMinorUnits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cents := rapid.Int64Range(0, 100_000_000).Draw(rt, "cents")
		price := decimal.New(cents, -2)
		if got := ToMinorUnits(price); got != cents {
			rt.Fatalf("ToMinorUnits(%s) = %d, want %d", price, got, cents)
		}

		// A third decimal rounds half-up.
		mills := rapid.Int64Range(0, 9).Draw(rt, "mills")
		withMills := decimal.New(cents*10+mills, -3)
		want := cents
		if mills >= 5 {
			want++
		}
		if got := ToMinorUnits(withMills); got != want {
			rt.Fatalf("ToMinorUnits(%s) = %d, want %d", withMills, got, want)
		}
	})
}
