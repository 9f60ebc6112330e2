package user

import (
	"context"
	"testing"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_SecondCallIsNoop(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s)

	u, err := svc.Register(ctx, "New@Example.com", &RegisterRequest{DisplayName: "First"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)

	_, err = svc.Register(ctx, "new@example.com", &RegisterRequest{DisplayName: "Second"})
	assert.ErrorIs(t, err, ErrUserExists)

	stored, err := s.GetUser(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "First", stored.DisplayName, "second registration must not mutate")
}

func TestGetRole_DefaultsToUser(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New())

	role, err := svc.GetRole(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)
}

func TestUpdateRole(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s)

	_, err := svc.Register(ctx, "u@example.com", &RegisterRequest{})
	require.NoError(t, err)

	t.Run("unknown role", func(t *testing.T) {
		_, err := svc.UpdateRole(ctx, "u@example.com", models.Role("superuser"), "admin@example.com")
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.UpdateRole(ctx, "ghost@example.com", models.RoleAdmin, "admin@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("creator without approved request", func(t *testing.T) {
		_, err := svc.UpdateRole(ctx, "u@example.com", models.RoleCreator, "admin@example.com")
		assert.ErrorIs(t, err, ErrNoApprovedRequest)

		role, err := svc.GetRole(ctx, "u@example.com")
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, role)
	})

	t.Run("creator with approved request", func(t *testing.T) {
		req := &models.CreatorRequest{
			ID:        "11111111-1111-1111-1111-111111111111",
			Email:     "u@example.com",
			Status:    models.CreatorRequestPending,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, s.CreateCreatorRequest(ctx, req))
		_, err := s.DecideCreatorRequest(ctx, req.ID, models.CreatorRequestApproved, time.Now().UTC())
		require.NoError(t, err)

		// An admin may demote and promote again once the request is approved.
		_, err = svc.UpdateRole(ctx, "u@example.com", models.RoleUser, "admin@example.com")
		require.NoError(t, err)
		u, err := svc.UpdateRole(ctx, "u@example.com", models.RoleCreator, "admin@example.com")
		require.NoError(t, err)
		assert.Equal(t, models.RoleCreator, u.Role)
	})

	t.Run("admin toggle", func(t *testing.T) {
		u, err := svc.UpdateRole(ctx, "u@example.com", models.RoleAdmin, "admin@example.com")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, u.Role)
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New())

	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := svc.Register(ctx, email, &RegisterRequest{})
		require.NoError(t, err)
	}

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
