// Package store defines the persistence contracts shared by the postgres,
// mongo and in-memory backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/models"
)

// Store errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict is returned when a conditional write lost against the current state
	ErrConflict = errors.New("conflict")
	// ErrNotParticipant is returned when an email is not among a contest's participants
	ErrNotParticipant = errors.New("not a participant")
)

// UserStore persists user records keyed by email
type UserStore interface {
	// CreateUser inserts u; ErrAlreadyExists when the email is taken
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, email string, role models.Role) (*models.User, error)
}

// CreatorRequestStore persists creator role applications
type CreatorRequestStore interface {
	// CreateCreatorRequest inserts r; ErrAlreadyExists when the email already has a pending request
	CreateCreatorRequest(ctx context.Context, r *models.CreatorRequest) error
	GetCreatorRequest(ctx context.Context, id string) (*models.CreatorRequest, error)
	ListCreatorRequests(ctx context.Context) ([]models.CreatorRequest, error)
	HasApprovedCreatorRequest(ctx context.Context, email string) (bool, error)
	// DecideCreatorRequest moves a pending request to decision. Approval also
	// promotes the requester to creator in the same unit of work. ErrConflict
	// when the request is no longer pending.
	DecideCreatorRequest(ctx context.Context, id string, decision models.CreatorRequestStatus, decidedAt time.Time) (*models.CreatorRequest, error)
}

// ContestStore persists contests and their embedded participants
type ContestStore interface {
	CreateContest(ctx context.Context, c *models.Contest) error
	GetContest(ctx context.Context, id string) (*models.Contest, error)
	ListContests(ctx context.Context, filter models.ContestFilter) ([]models.Contest, error)
	UpdateContest(ctx context.Context, id string, patch models.ContestPatch) (*models.Contest, error)
	// UpdateContestStatus sets status to `to` only if it currently equals `from`; ErrConflict otherwise
	UpdateContestStatus(ctx context.Context, id string, from, to models.ContestStatus) (*models.Contest, error)
	DeleteContest(ctx context.Context, id string) error
	// AppendParticipant adds p unless a participant with the same email exists.
	// It reports false, with no error, when the participant was already present.
	AppendParticipant(ctx context.Context, contestID string, p models.Participant) (bool, error)
	// AppendSubmission appends to the participant's task info; ErrNotFound when
	// the contest does not exist, ErrNotParticipant when email is not enrolled
	AppendSubmission(ctx context.Context, contestID, email string, sub models.Submission) error
	// SetWinner sets the winner only if none is set and email is a participant;
	// ErrConflict when a winner already exists, ErrNotParticipant when email is not enrolled
	SetWinner(ctx context.Context, contestID, email string) (*models.Contest, error)
}

// CheckoutStore persists the binding between processor sessions and callers
type CheckoutStore interface {
	CreateCheckout(ctx context.Context, r *models.CheckoutRecord) error
	GetCheckout(ctx context.Context, sessionID string) (*models.CheckoutRecord, error)
	MarkCheckoutCompleted(ctx context.Context, sessionID string, at time.Time) error
}

// Store is the full persistence surface used by the services
type Store interface {
	UserStore
	CreatorRequestStore
	ContestStore
	CheckoutStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
