// Package submission records task evidence from enrolled participants.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/auth"
	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/monitoring"
	"github.com/aimerfeng/ChallengeHive/internal/store"
	"github.com/rs/zerolog/log"
)

// Service errors
var (
	ErrContestNotFound = errors.New("contest not found")
	ErrNotEnrolled     = errors.New("caller is not enrolled in the contest")
	ErrEmptyContent    = errors.New("submission content is required")
)

// Store is the persistence the submission tracker needs
type Store interface {
	AppendSubmission(ctx context.Context, contestID, email string, sub models.Submission) error
}

// Service appends submissions to a participant's task list
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new submission service
func NewService(s Store) *Service {
	return &Service{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// Request is the body of a task submission
type Request struct {
	Content string `json:"content" binding:"required,max=10000"`
}

// Record appends a submission to the caller's participant entry
func (s *Service) Record(ctx context.Context, contestID, email string, req *Request) (*models.Submission, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	sub := models.Submission{Content: content, SubmittedAt: s.now()}
	if err := s.store.AppendSubmission(ctx, contestID, auth.NormalizeEmail(email), sub); err != nil {
		switch {
		case errors.Is(err, store.ErrNotParticipant):
			return nil, ErrNotEnrolled
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrContestNotFound
		default:
			return nil, fmt.Errorf("failed to record submission: %w", err)
		}
	}

	monitoring.RecordSubmission()
	log.Debug().Str("contest_id", contestID).Str("email", email).Msg("Submission recorded")
	return &sub, nil
}
