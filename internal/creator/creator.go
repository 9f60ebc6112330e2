// Package creator implements the creator approval workflow: users ask to become
// creators and admins approve or reject the request.
package creator

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
	"github.com/google/uuid"
)

// Service errors
var (
	ErrRequestPending  = errors.New("a creator request is already pending")
	ErrRequestNotFound = errors.New("creator request not found")
	ErrNotPending      = errors.New("creator request already decided")
	ErrInvalidDecision = errors.New("decision must be Approved or Rejected")
	ErrEmailMismatch   = errors.New("email does not match the request")
	ErrUserNotFound    = errors.New("requesting user not found")
)

// Service handles creator requests
type Service struct {
	store store.CreatorRequestStore
	now   func() time.Time
}

// NewService creates a new creator workflow service
func NewService(s store.CreatorRequestStore) *Service {
	return &Service{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// RequestBody is the profile a user submits with a creator request
type RequestBody struct {
	DisplayName string `json:"displayName" binding:"max=200"`
	PhotoURL    string `json:"photoURL" binding:"omitempty,url,max=2048"`
}

// DecideBody is the admin decision on a request
type DecideBody struct {
	ID     string                      `json:"id" binding:"required"`
	Email  string                      `json:"email"`
	Status models.CreatorRequestStatus `json:"status" binding:"required"`
}

// Request files a pending creator request for email
func (s *Service) Request(ctx context.Context, email string, body *RequestBody) (*models.CreatorRequest, error) {
	r := &models.CreatorRequest{
		ID:          uuid.New().String(),
		Email:       auth.NormalizeEmail(email),
		DisplayName: body.DisplayName,
		PhotoURL:    body.PhotoURL,
		Status:      models.CreatorRequestPending,
		CreatedAt:   s.now(),
	}

	if err := s.store.CreateCreatorRequest(ctx, r); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrRequestPending
		}
		return nil, fmt.Errorf("failed to create creator request: %w", err)
	}

	monitoring.RecordCreatorRequest()
	return r, nil
}

// List returns every creator request, newest first
func (s *Service) List(ctx context.Context) ([]models.CreatorRequest, error) {
	requests, err := s.store.ListCreatorRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list creator requests: %w", err)
	}
	return requests, nil
}

// Decide approves or rejects a pending request. Approval promotes the user to
// creator in the same transaction as the status change.
func (s *Service) Decide(ctx context.Context, body *DecideBody, actor string) (*models.CreatorRequest, error) {
	switch body.Status {
	case models.CreatorRequestApproved, models.CreatorRequestRejected:
	default:
		return nil, ErrInvalidDecision
	}

	current, err := s.store.GetCreatorRequest(ctx, body.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get creator request: %w", err)
	}

	if body.Email != "" && auth.NormalizeEmail(body.Email) != current.Email {
		return nil, ErrEmailMismatch
	}
	if !current.Status.CanTransitionTo(body.Status) {
		return nil, ErrNotPending
	}

	decided, err := s.store.DecideCreatorRequest(ctx, current.ID, body.Status, s.now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, ErrNotPending
		case errors.Is(err, store.ErrNotFound):
			// The request was loaded above, so the missing row is the user.
			return nil, ErrUserNotFound
		default:
			return nil, fmt.Errorf("failed to decide creator request: %w", err)
		}
	}

	monitoring.RecordCreatorDecision(string(decided.Status))
	logging.LogStatusChange("creator_request", decided.ID, string(current.Status), string(decided.Status), actor)
	return decided, nil
}
