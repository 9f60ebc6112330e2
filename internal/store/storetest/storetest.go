// Package storetest holds the behavioural suite every store.Store backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a store with no records that the suite may mutate freely
type Factory func(t *testing.T) store.Store

// Run executes the full contract suite against the backend produced by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("UserLifecycle", func(t *testing.T) { testUserLifecycle(t, newStore(t)) })
	t.Run("CreatorRequestDecision", func(t *testing.T) { testCreatorRequestDecision(t, newStore(t)) })
	t.Run("OnePendingCreatorRequest", func(t *testing.T) { testOnePendingCreatorRequest(t, newStore(t)) })
	t.Run("ContestCRUD", func(t *testing.T) { testContestCRUD(t, newStore(t)) })
	t.Run("ContestStatusCompareAndSet", func(t *testing.T) { testContestStatus(t, newStore(t)) })
	t.Run("ConcurrentEnrollment", func(t *testing.T) { testConcurrentEnrollment(t, newStore(t)) })
	t.Run("Submissions", func(t *testing.T) { testSubmissions(t, newStore(t)) })
	t.Run("WinnerAndListings", func(t *testing.T) { testWinner(t, newStore(t)) })
	t.Run("Checkout", func(t *testing.T) { testCheckout(t, newStore(t)) })
}

// uniqueEmail keeps backends that share a database from colliding across runs
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}

// NewContest builds a valid pending contest owned by creator
func NewContest(creator string) *models.Contest {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Contest{
		ID:              uuid.NewString(),
		CreatorEmail:    creator,
		CreatorName:     "Creator",
		Name:            "Logo design",
		Description:     "Design a logo",
		ContestType:     "design",
		TaskInstruction: "Upload a link",
		PrizeMoney:      decimal.NewFromInt(500),
		Price:           decimal.RequireFromString("10.50"),
		Deadline:        now.Add(72 * time.Hour),
		Status:          models.ContestStatusPending,
		Participants:    []models.Participant{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func participant(email, tx string) models.Participant {
	return models.Participant{
		Email:         email,
		Name:          "P",
		TransactionID: tx,
		PaymentStatus: models.PaymentStatusPaid,
		TaskInfo:      []models.Submission{},
		EnrolledAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testUserLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	email := uniqueEmail("user")
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.CreateUser(ctx, &models.User{Email: email, Role: models.RoleUser, DisplayName: "U", CreatedAt: now, UpdatedAt: now}))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Email: email, Role: models.RoleAdmin, CreatedAt: now, UpdatedAt: now}), store.ErrAlreadyExists)

	u, err := s.GetUser(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, u.Role, "duplicate create must not mutate")
	assert.Equal(t, "U", u.DisplayName)

	u, err = s.UpdateUserRole(ctx, email, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	_, err = s.GetUser(ctx, uniqueEmail("missing"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdateUserRole(ctx, uniqueEmail("missing"), models.RoleAdmin)
	assert.ErrorIs(t, err, store.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	found := false
	for _, u := range users {
		found = found || u.Email == email
	}
	assert.True(t, found)
}

func newRequest(email string) *models.CreatorRequest {
	return &models.CreatorRequest{
		ID:        uuid.NewString(),
		Email:     email,
		Status:    models.CreatorRequestPending,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testCreatorRequestDecision(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	approved := uniqueEmail("approved")
	rejected := uniqueEmail("rejected")
	for _, e := range []string{approved, rejected} {
		require.NoError(t, s.CreateUser(ctx, &models.User{Email: e, Role: models.RoleUser, CreatedAt: now, UpdatedAt: now}))
	}

	ra := newRequest(approved)
	rr := newRequest(rejected)
	require.NoError(t, s.CreateCreatorRequest(ctx, ra))
	require.NoError(t, s.CreateCreatorRequest(ctx, rr))

	ok, err := s.HasApprovedCreatorRequest(ctx, approved)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.DecideCreatorRequest(ctx, ra.ID, models.CreatorRequestApproved, now)
	require.NoError(t, err)
	assert.Equal(t, models.CreatorRequestApproved, got.Status)
	require.NotNil(t, got.DecidedAt)

	u, err := s.GetUser(ctx, approved)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCreator, u.Role)

	ok, err = s.HasApprovedCreatorRequest(ctx, approved)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.DecideCreatorRequest(ctx, rr.ID, models.CreatorRequestRejected, now)
	require.NoError(t, err)
	u, err = s.GetUser(ctx, rejected)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, u.Role, "rejection leaves the role unchanged")

	_, err = s.DecideCreatorRequest(ctx, ra.ID, models.CreatorRequestRejected, now)
	assert.ErrorIs(t, err, store.ErrConflict, "decided requests are terminal")

	_, err = s.DecideCreatorRequest(ctx, uuid.NewString(), models.CreatorRequestApproved, now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Approval for a user that never registered must not leave a half-applied decision.
	ghost := newRequest(uniqueEmail("ghost"))
	require.NoError(t, s.CreateCreatorRequest(ctx, ghost))
	_, err = s.DecideCreatorRequest(ctx, ghost.ID, models.CreatorRequestApproved, now)
	assert.ErrorIs(t, err, store.ErrNotFound)
	r, err := s.GetCreatorRequest(ctx, ghost.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CreatorRequestPending, r.Status)
}

func testOnePendingCreatorRequest(t *testing.T, s store.Store) {
	ctx := context.Background()
	email := uniqueEmail("pending")
	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.CreateUser(ctx, &models.User{Email: email, Role: models.RoleUser, CreatedAt: now, UpdatedAt: now}))

	first := newRequest(email)
	require.NoError(t, s.CreateCreatorRequest(ctx, first))
	assert.ErrorIs(t, s.CreateCreatorRequest(ctx, newRequest(email)), store.ErrAlreadyExists)

	_, err := s.DecideCreatorRequest(ctx, first.ID, models.CreatorRequestRejected, now)
	require.NoError(t, err)
	assert.NoError(t, s.CreateCreatorRequest(ctx, newRequest(email)), "a new request is allowed once the previous one is decided")

	list, err := s.ListCreatorRequests(ctx)
	require.NoError(t, err)
	n := 0
	for _, r := range list {
		if r.Email == email {
			n++
		}
	}
	assert.Equal(t, 2, n)
}

func testContestCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()
	creator := uniqueEmail("creator")
	c := NewContest(creator)
	require.NoError(t, s.CreateContest(ctx, c))

	got, err := s.GetContest(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.True(t, c.Price.Equal(got.Price), "price %s != %s", c.Price, got.Price)
	assert.True(t, c.Deadline.Equal(got.Deadline))
	assert.Equal(t, models.ContestStatusPending, got.Status)
	assert.Nil(t, got.Winner)
	assert.Empty(t, got.Participants)

	name := "Poster design"
	price := decimal.NewFromInt(20)
	updated, err := s.UpdateContest(ctx, c.ID, models.ContestPatch{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.True(t, price.Equal(updated.Price))
	assert.Equal(t, c.Description, updated.Description, "unpatched fields are kept")

	mine, err := s.ListContests(ctx, models.ContestFilter{CreatorEmail: creator})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)

	require.NoError(t, s.DeleteContest(ctx, c.ID))
	_, err = s.GetContest(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteContest(ctx, c.ID), store.ErrNotFound)

	_, err = s.GetContest(ctx, "not-an-id")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdateContest(ctx, uuid.NewString(), models.ContestPatch{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testContestStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := NewContest(uniqueEmail("creator"))
	require.NoError(t, s.CreateContest(ctx, c))

	got, err := s.UpdateContestStatus(ctx, c.ID, models.ContestStatusPending, models.ContestStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ContestStatusApproved, got.Status)

	_, err = s.UpdateContestStatus(ctx, c.ID, models.ContestStatusPending, models.ContestStatusRejected)
	assert.ErrorIs(t, err, store.ErrConflict)

	approved, err := s.ListContests(ctx, models.ContestFilter{Status: models.ContestStatusApproved, CreatorEmail: c.CreatorEmail})
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	_, err = s.UpdateContestStatus(ctx, uuid.NewString(), models.ContestStatusPending, models.ContestStatusApproved)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testConcurrentEnrollment(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := NewContest(uniqueEmail("creator"))
	require.NoError(t, s.CreateContest(ctx, c))
	email := uniqueEmail("p")

	const workers = 8
	var inserted int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.AppendParticipant(ctx, c.ID, participant(email, fmt.Sprintf("pi_%d", i)))
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&inserted, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted, "exactly one concurrent append wins")
	got, err := s.GetContest(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, email, got.Participants[0].Email)
	assert.Equal(t, models.PaymentStatusPaid, got.Participants[0].PaymentStatus)

	other := uniqueEmail("q")
	ok, err := s.AppendParticipant(ctx, c.ID, participant(other, "pi_other"))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = s.GetContest(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 2)
	assert.Equal(t, other, got.Participants[1].Email, "participants keep enrollment order")

	_, err = s.AppendParticipant(ctx, uuid.NewString(), participant(email, "pi_x"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testSubmissions(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := NewContest(uniqueEmail("creator"))
	require.NoError(t, s.CreateContest(ctx, c))
	email := uniqueEmail("p")
	_, err := s.AppendParticipant(ctx, c.ID, participant(email, "pi_1"))
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.AppendSubmission(ctx, c.ID, email, models.Submission{Content: "first", SubmittedAt: at}))
	require.NoError(t, s.AppendSubmission(ctx, c.ID, email, models.Submission{Content: "second", SubmittedAt: at}))

	got, err := s.GetContest(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants[0].TaskInfo, 2)
	assert.Equal(t, "first", got.Participants[0].TaskInfo[0].Content)
	assert.Equal(t, "second", got.Participants[0].TaskInfo[1].Content)

	err = s.AppendSubmission(ctx, c.ID, uniqueEmail("stranger"), models.Submission{Content: "x", SubmittedAt: at})
	assert.ErrorIs(t, err, store.ErrNotParticipant)
	err = s.AppendSubmission(ctx, uuid.NewString(), email, models.Submission{Content: "x", SubmittedAt: at})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testWinner(t *testing.T, s store.Store) {
	ctx := context.Background()
	w := uniqueEmail("w")

	won := NewContest(uniqueEmail("creator"))
	active := NewContest(won.CreatorEmail)
	active.Deadline = won.Deadline.Add(-time.Hour)
	later := NewContest(won.CreatorEmail)
	later.Deadline = won.Deadline.Add(time.Hour)
	for _, c := range []*models.Contest{won, active, later} {
		require.NoError(t, s.CreateContest(ctx, c))
		_, err := s.AppendParticipant(ctx, c.ID, participant(w, "pi_"+c.ID[:6]))
		require.NoError(t, err)
	}

	_, err := s.SetWinner(ctx, won.ID, uniqueEmail("stranger"))
	assert.ErrorIs(t, err, store.ErrNotParticipant)

	got, err := s.SetWinner(ctx, won.ID, w)
	require.NoError(t, err)
	require.NotNil(t, got.Winner)
	assert.Equal(t, w, *got.Winner)

	_, err = s.SetWinner(ctx, won.ID, w)
	assert.ErrorIs(t, err, store.ErrConflict, "winner is set at most once")

	wins, err := s.ListContests(ctx, models.ContestFilter{WinnerEmail: w})
	require.NoError(t, err)
	require.Len(t, wins, 1)
	assert.Equal(t, won.ID, wins[0].ID)

	participated, err := s.ListContests(ctx, models.ContestFilter{ParticipantEmail: w, WithoutWinner: true, OrderByDeadline: true})
	require.NoError(t, err)
	require.Len(t, participated, 2)
	assert.Equal(t, active.ID, participated[0].ID)
	assert.Equal(t, later.ID, participated[1].ID)

	_, err = s.SetWinner(ctx, uuid.NewString(), w)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testCheckout(t *testing.T, s store.Store) {
	ctx := context.Background()
	rec := &models.CheckoutRecord{
		SessionID:        "cs_" + uuid.NewString(),
		ContestID:        uuid.NewString(),
		ParticipantEmail: uniqueEmail("p"),
		AmountMinor:      1000,
		Currency:         "usd",
		Status:           models.CheckoutStatusOpen,
		CreatedAt:        time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.CreateCheckout(ctx, rec))
	assert.ErrorIs(t, s.CreateCheckout(ctx, rec), store.ErrAlreadyExists)

	got, err := s.GetCheckout(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, rec.ParticipantEmail, got.ParticipantEmail)
	assert.Equal(t, int64(1000), got.AmountMinor)
	assert.Equal(t, models.CheckoutStatusOpen, got.Status)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.MarkCheckoutCompleted(ctx, rec.SessionID, at))
	require.NoError(t, s.MarkCheckoutCompleted(ctx, rec.SessionID, at.Add(time.Minute)))

	got, err = s.GetCheckout(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, at.Equal(*got.CompletedAt), "completion time is kept from the first call")

	_, err = s.GetCheckout(ctx, "cs_missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.MarkCheckoutCompleted(ctx, "cs_missing", at), store.ErrNotFound)
}
