// Package contest owns the contest registry: creation, edits, admin status
// transitions, deletion and winner declaration.
package contest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/auth"
	"github.com/aimerfeng/ChallengeHive/internal/logging"
	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/monitoring"
	"github.com/aimerfeng/ChallengeHive/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service errors
var (
	ErrContestNotFound   = errors.New("contest not found")
	ErrNotOwner          = errors.New("caller does not own the contest")
	ErrInvalidTransition = errors.New("illegal contest status transition")
	ErrInvalidStatus     = errors.New("unknown contest status")
	ErrWinnerDeclared    = errors.New("winner already declared")
	ErrNotEnrolled       = errors.New("email is not a participant of the contest")
	ErrEmptyPatch        = errors.New("patch changes nothing")
	ErrNegativeAmount    = errors.New("amounts must not be negative")
	ErrAmountOutOfRange  = errors.New("amounts must be at most 999999.99 with two decimal places")
	ErrMissingName       = errors.New("contest name is required")
)

// Store is the persistence the contest registry needs
type Store interface {
	store.ContestStore
	GetUser(ctx context.Context, email string) (*models.User, error)
}

// Service implements the contest registry
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new contest service
func NewService(s Store) *Service {
	return &Service{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// CreateRequest is the body of a contest creation
type CreateRequest struct {
	Name            string          `json:"contestName" binding:"required,max=200"`
	Image           string          `json:"image" binding:"omitempty,url,max=2048"`
	Description     string          `json:"description" binding:"max=10000"`
	ContestType     string          `json:"contestType" binding:"max=100"`
	TaskInstruction string          `json:"taskInstruction" binding:"max=10000"`
	PrizeMoney      decimal.Decimal `json:"prizeMoney"`
	Price           decimal.Decimal `json:"price"`
	Deadline        time.Time       `json:"deadline" binding:"required"`
	CreatorName     string          `json:"creatorName" binding:"max=200"`
	CreatorPhoto    string          `json:"creatorPhoto" binding:"omitempty,url,max=2048"`
}

// StatusRequest is the body of an admin status change
type StatusRequest struct {
	ID     string               `json:"id" binding:"required"`
	Status models.ContestStatus `json:"status" binding:"required"`
}

// WinnerRequest names the participant to declare as winner
type WinnerRequest struct {
	Email string `json:"winnerEmail" binding:"required,email"`
}

// Create stores a new pending contest owned by creatorEmail. Profile fields
// not given in the body are taken from the creator's user record.
func (s *Service) Create(ctx context.Context, creatorEmail string, req *CreateRequest) (*models.Contest, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrMissingName
	}
	if err := checkAmounts(&req.Price, &req.PrizeMoney); err != nil {
		return nil, err
	}

	creatorEmail = auth.NormalizeEmail(creatorEmail)
	name, photo := req.CreatorName, req.CreatorPhoto
	if name == "" || photo == "" {
		if u, err := s.store.GetUser(ctx, creatorEmail); err == nil {
			if name == "" {
				name = u.DisplayName
			}
			if photo == "" {
				photo = u.PhotoURL
			}
		}
	}

	now := s.now()
	c := &models.Contest{
		ID:              uuid.New().String(),
		CreatorEmail:    creatorEmail,
		CreatorName:     name,
		CreatorPhoto:    photo,
		Name:            strings.TrimSpace(req.Name),
		Image:           req.Image,
		Description:     req.Description,
		ContestType:     req.ContestType,
		TaskInstruction: req.TaskInstruction,
		PrizeMoney:      req.PrizeMoney,
		Price:           req.Price,
		Deadline:        req.Deadline.UTC(),
		Status:          models.ContestStatusPending,
		Participants:    []models.Participant{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.CreateContest(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}

	monitoring.RecordContestCreated()
	return c, nil
}

// checkAmounts validates the amounts that are set; nil means unchanged
func checkAmounts(amounts ...*decimal.Decimal) error {
	for _, d := range amounts {
		if d == nil {
			continue
		}
		if d.IsNegative() {
			return ErrNegativeAmount
		}
		if !models.AmountInRange(*d) {
			return ErrAmountOutOfRange
		}
	}
	return nil
}

// Get returns the contest with id
func (s *Service) Get(ctx context.Context, id string) (*models.Contest, error) {
	c, err := s.store.GetContest(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}
	return c, nil
}

// authorizeOwner loads the contest and checks that caller owns it or is an admin
func (s *Service) authorizeOwner(ctx context.Context, id, caller string) (*models.Contest, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnedBy(caller) {
		return c, nil
	}

	u, err := s.store.GetUser(ctx, caller)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotOwner
		}
		return nil, fmt.Errorf("failed to get caller: %w", err)
	}
	if u.Role != models.RoleAdmin {
		return nil, ErrNotOwner
	}
	return c, nil
}

// GetForEdit returns the contest for the edit form; owner or admin only
func (s *Service) GetForEdit(ctx context.Context, id, caller string) (*models.Contest, error) {
	return s.authorizeOwner(ctx, id, caller)
}

// ListMine lists contests created by email
func (s *Service) ListMine(ctx context.Context, email string) ([]models.Contest, error) {
	return s.list(ctx, models.ContestFilter{CreatorEmail: auth.NormalizeEmail(email)})
}

// ListAll lists every contest for the admin dashboard
func (s *Service) ListAll(ctx context.Context) ([]models.Contest, error) {
	return s.list(ctx, models.ContestFilter{})
}

// ListApproved lists contests open for browsing
func (s *Service) ListApproved(ctx context.Context) ([]models.Contest, error) {
	return s.list(ctx, models.ContestFilter{Status: models.ContestStatusApproved})
}

// ListParticipated lists undecided contests email is enrolled in, nearest deadline first
func (s *Service) ListParticipated(ctx context.Context, email string) ([]models.Contest, error) {
	return s.list(ctx, models.ContestFilter{
		ParticipantEmail: auth.NormalizeEmail(email),
		WithoutWinner:    true,
		OrderByDeadline:  true,
	})
}

// ListWon lists contests email has won
func (s *Service) ListWon(ctx context.Context, email string) ([]models.Contest, error) {
	return s.list(ctx, models.ContestFilter{WinnerEmail: auth.NormalizeEmail(email)})
}

func (s *Service) list(ctx context.Context, f models.ContestFilter) ([]models.Contest, error) {
	contests, err := s.store.ListContests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}
	return contests, nil
}

// Update merges patch into the contest; owner or admin only
func (s *Service) Update(ctx context.Context, id, caller string, patch models.ContestPatch) (*models.Contest, error) {
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, ErrMissingName
	}
	if err := checkAmounts(patch.Price, patch.PrizeMoney); err != nil {
		return nil, err
	}

	if _, err := s.authorizeOwner(ctx, id, caller); err != nil {
		return nil, err
	}

	c, err := s.store.UpdateContest(ctx, id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to update contest: %w", err)
	}
	return c, nil
}

// UpdateStatus moves a pending contest to Approved or Rejected
func (s *Service) UpdateStatus(ctx context.Context, id string, next models.ContestStatus, actor string) (*models.Contest, error) {
	if !next.Valid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.store.UpdateContestStatus(ctx, id, current.Status, next)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, ErrInvalidTransition
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrContestNotFound
		default:
			return nil, fmt.Errorf("failed to update contest status: %w", err)
		}
	}

	monitoring.RecordContestStatusChange(string(next))
	logging.LogStatusChange("contest", id, string(current.Status), string(next), actor)
	return updated, nil
}

// DeleteAsAdmin deletes any contest
func (s *Service) DeleteAsAdmin(ctx context.Context, id string) error {
	return s.delete(ctx, id)
}

// DeleteAsCreator deletes a contest the caller owns
func (s *Service) DeleteAsCreator(ctx context.Context, id, caller string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.OwnedBy(caller) {
		return ErrNotOwner
	}
	return s.delete(ctx, id)
}

func (s *Service) delete(ctx context.Context, id string) error {
	if err := s.store.DeleteContest(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrContestNotFound
		}
		return fmt.Errorf("failed to delete contest: %w", err)
	}
	return nil
}

// DeclareWinner sets the contest winner once. The winner must be a participant.
func (s *Service) DeclareWinner(ctx context.Context, id, caller, winnerEmail string) (*models.Contest, error) {
	winnerEmail = auth.NormalizeEmail(winnerEmail)

	c, err := s.authorizeOwner(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if c.Winner != nil {
		return nil, ErrWinnerDeclared
	}
	if !c.HasParticipant(winnerEmail) {
		return nil, ErrNotEnrolled
	}

	updated, err := s.store.SetWinner(ctx, id, winnerEmail)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, ErrWinnerDeclared
		case errors.Is(err, store.ErrNotParticipant):
			return nil, ErrNotEnrolled
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrContestNotFound
		default:
			return nil, fmt.Errorf("failed to declare winner: %w", err)
		}
	}

	monitoring.RecordWinnerDeclared()
	logging.LogStatusChange("contest_winner", id, "", winnerEmail, caller)
	return updated, nil
}
