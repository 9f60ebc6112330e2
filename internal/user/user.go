// Package user manages user records and the admin role toggle.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/auth"
	"github.com/aimerfeng/ChallengeHive/internal/logging"
	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/store"
)

// Service errors
var (
	ErrUserExists        = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidRole       = errors.New("invalid role")
	ErrNoApprovedRequest = errors.New("no approved creator request for user")
)

// Store is the persistence the user service needs
type Store interface {
	store.UserStore
	HasApprovedCreatorRequest(ctx context.Context, email string) (bool, error)
}

// Service handles user registration and role management
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new user service
func NewService(s Store) *Service {
	return &Service{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// RegisterRequest is the profile sent on first sign-in
type RegisterRequest struct {
	DisplayName string `json:"displayName" binding:"max=200"`
	PhotoURL    string `json:"photoURL" binding:"omitempty,url,max=2048"`
}

// UpdateRoleRequest is the body of the admin role toggle
type UpdateRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

// Register creates the user for email with role user. A second registration
// returns ErrUserExists and changes nothing.
func (s *Service) Register(ctx context.Context, email string, req *RegisterRequest) (*models.User, error) {
	now := s.now()
	u := &models.User{
		Email:       auth.NormalizeEmail(email),
		Role:        models.RoleUser,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// GetRole returns the stored role for email, defaulting to user when unknown
func (s *Service) GetRole(ctx context.Context, email string) (models.Role, error) {
	u, err := s.store.GetUser(ctx, auth.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.RoleUser, nil
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return u.Role, nil
}

// List returns all users, newest first
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateRole sets the role of email. Promotion to creator requires an approved
// creator request.
func (s *Service) UpdateRole(ctx context.Context, email string, role models.Role, actor string) (*models.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	email = auth.NormalizeEmail(email)

	current, err := s.store.GetUser(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if role == models.RoleCreator {
		approved, err := s.store.HasApprovedCreatorRequest(ctx, email)
		if err != nil {
			return nil, err
		}
		if !approved {
			return nil, ErrNoApprovedRequest
		}
	}

	updated, err := s.store.UpdateUserRole(ctx, email, role)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	logging.LogStatusChange("user_role", email, string(current.Role), string(role), actor)
	return updated, nil
}
