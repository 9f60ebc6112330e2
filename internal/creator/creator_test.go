package creator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, s *memory.Store, email string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.CreateUser(context.Background(), &models.User{
		Email: email, Role: models.RoleUser, CreatedAt: now, UpdatedAt: now,
	}))
}

func role(t *testing.T, s *memory.Store, email string) models.Role {
	t.Helper()
	u, err := s.GetUser(context.Background(), email)
	require.NoError(t, err)
	return u.Role
}

func TestApprovePromotesUser(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, "u@example.com")
	svc := NewService(s)

	req, err := svc.Request(ctx, "U@example.com", &RequestBody{DisplayName: "U"})
	require.NoError(t, err)
	assert.Equal(t, models.CreatorRequestPending, req.Status)
	assert.Equal(t, "u@example.com", req.Email)

	decided, err := svc.Decide(ctx, &DecideBody{ID: req.ID, Email: "u@example.com", Status: models.CreatorRequestApproved}, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.CreatorRequestApproved, decided.Status)
	assert.NotNil(t, decided.DecidedAt)
	assert.Equal(t, models.RoleCreator, role(t, s, "u@example.com"))
}

func TestRejectLeavesRole(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, "u@example.com")
	svc := NewService(s)

	req, err := svc.Request(ctx, "u@example.com", &RequestBody{})
	require.NoError(t, err)

	decided, err := svc.Decide(ctx, &DecideBody{ID: req.ID, Status: models.CreatorRequestRejected}, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.CreatorRequestRejected, decided.Status)
	assert.Equal(t, models.RoleUser, role(t, s, "u@example.com"))

	// A rejected user may ask again.
	_, err = svc.Request(ctx, "u@example.com", &RequestBody{})
	assert.NoError(t, err)
}

func TestOnePendingRequestPerEmail(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New())

	_, err := svc.Request(ctx, "u@example.com", &RequestBody{})
	require.NoError(t, err)
	_, err = svc.Request(ctx, "u@example.com", &RequestBody{})
	assert.ErrorIs(t, err, ErrRequestPending)
}

func TestDecideErrors(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, "u@example.com")
	svc := NewService(s)

	req, err := svc.Request(ctx, "u@example.com", &RequestBody{})
	require.NoError(t, err)

	tests := []struct {
		name string
		body DecideBody
		want error
	}{
		{"pending is not a decision", DecideBody{ID: req.ID, Status: models.CreatorRequestPending}, ErrInvalidDecision},
		{"unknown status", DecideBody{ID: req.ID, Status: "maybe"}, ErrInvalidDecision},
		{"unknown request", DecideBody{ID: "missing", Status: models.CreatorRequestApproved}, ErrRequestNotFound},
		{"email mismatch", DecideBody{ID: req.ID, Email: "other@example.com", Status: models.CreatorRequestApproved}, ErrEmailMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			_, err := svc.Decide(ctx, &body, "admin@example.com")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = svc.Decide(ctx, &DecideBody{ID: req.ID, Status: models.CreatorRequestRejected}, "admin@example.com")
	require.NoError(t, err)
	_, err = svc.Decide(ctx, &DecideBody{ID: req.ID, Status: models.CreatorRequestApproved}, "admin@example.com")
	assert.ErrorIs(t, err, ErrNotPending)
	assert.Equal(t, models.RoleUser, role(t, s, "u@example.com"))
}

func TestApproveWithoutUserRecord(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s)

	req, err := svc.Request(ctx, "ghost@example.com", &RequestBody{})
	require.NoError(t, err)

	_, err = svc.Decide(ctx, &DecideBody{ID: req.ID, Status: models.CreatorRequestApproved}, "admin@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	stored, err := s.GetCreatorRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CreatorRequestPending, stored.Status, "failed approval must not change the request")
}

func TestConcurrentDecisions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedUser(t, s, "u@example.com")
	svc := NewService(s)

	req, err := svc.Request(ctx, "u@example.com", &RequestBody{})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision := models.CreatorRequestApproved
			if i%2 == 1 {
				decision = models.CreatorRequestRejected
			}
			if _, err := svc.Decide(ctx, &DecideBody{ID: req.ID, Status: decision}, "admin@example.com"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	stored, err := s.GetCreatorRequest(ctx, req.ID)
	require.NoError(t, err)
	if stored.Status == models.CreatorRequestApproved {
		assert.Equal(t, models.RoleCreator, role(t, s, "u@example.com"))
	} else {
		assert.Equal(t, models.RoleUser, role(t, s, "u@example.com"))
	}
}
