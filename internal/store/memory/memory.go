// Package memory is a process-local Store used for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/store"
)

// Store keeps every record in maps guarded by one mutex, so each method is a
// single atomic unit of work.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*models.User
	requests  map[string]*models.CreatorRequest
	contests  map[string]*models.Contest
	checkouts map[string]*models.CheckoutRecord
}

var _ store.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		users:     make(map[string]*models.User),
		requests:  make(map[string]*models.CreatorRequest),
		contests:  make(map[string]*models.Contest),
		checkouts: make(map[string]*models.CheckoutRecord),
	}
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

// --- users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return store.ErrAlreadyExists
	}
	cp := *u
	s.users[u.Email] = &cp
	return nil
}

func (s *Store) GetUser(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) ListUsers(context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateUserRole(_ context.Context, email string, role models.Role) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

// --- creator requests

func (s *Store) CreateCreatorRequest(_ context.Context, r *models.CreatorRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.Email == r.Email && existing.Status == models.CreatorRequestPending {
			return store.ErrAlreadyExists
		}
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *Store) GetCreatorRequest(_ context.Context, id string) (*models.CreatorRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListCreatorRequests(context.Context) ([]models.CreatorRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CreatorRequest, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) HasApprovedCreatorRequest(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.Email == email && r.Status == models.CreatorRequestApproved {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DecideCreatorRequest(_ context.Context, id string, decision models.CreatorRequestStatus, decidedAt time.Time) (*models.CreatorRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !r.Status.CanTransitionTo(decision) {
		return nil, store.ErrConflict
	}

	var user *models.User
	if decision == models.CreatorRequestApproved {
		// Abort before mutating anything so the pair stays atomic.
		if user, ok = s.users[r.Email]; !ok {
			return nil, store.ErrNotFound
		}
	}

	r.Status = decision
	r.DecidedAt = &decidedAt
	if user != nil {
		user.Role = models.RoleCreator
		user.UpdatedAt = decidedAt
	}
	cp := *r
	return &cp, nil
}

// --- contests

func cloneContest(c *models.Contest) models.Contest {
	cp := *c
	cp.Participants = make([]models.Participant, len(c.Participants))
	for i, p := range c.Participants {
		p.TaskInfo = append([]models.Submission(nil), p.TaskInfo...)
		cp.Participants[i] = p
	}
	if c.Winner != nil {
		w := *c.Winner
		cp.Winner = &w
	}
	return cp
}

func (s *Store) CreateContest(_ context.Context, c *models.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contests[c.ID]; ok {
		return store.ErrAlreadyExists
	}
	cp := cloneContest(c)
	s.contests[c.ID] = &cp
	return nil
}

func (s *Store) GetContest(_ context.Context, id string) (*models.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := cloneContest(c)
	return &cp, nil
}

func matches(c *models.Contest, f models.ContestFilter) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.CreatorEmail != "" && c.CreatorEmail != f.CreatorEmail {
		return false
	}
	if f.ParticipantEmail != "" && !c.HasParticipant(f.ParticipantEmail) {
		return false
	}
	if f.WinnerEmail != "" && (c.Winner == nil || *c.Winner != f.WinnerEmail) {
		return false
	}
	if f.WithoutWinner && c.Winner != nil {
		return false
	}
	return true
}

func (s *Store) ListContests(_ context.Context, f models.ContestFilter) ([]models.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Contest, 0)
	for _, c := range s.contests {
		if matches(c, f) {
			out = append(out, cloneContest(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if f.OrderByDeadline {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return strings.Compare(out[i].ID, out[j].ID) < 0
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateContest(_ context.Context, id string, patch models.ContestPatch) (*models.Contest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	patch.Apply(c)
	c.UpdatedAt = time.Now().UTC()
	cp := cloneContest(c)
	return &cp, nil
}

func (s *Store) UpdateContestStatus(_ context.Context, id string, from, to models.ContestStatus) (*models.Contest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if c.Status != from {
		return nil, store.ErrConflict
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	cp := cloneContest(c)
	return &cp, nil
}

func (s *Store) DeleteContest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contests[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.contests, id)
	return nil
}

func (s *Store) AppendParticipant(_ context.Context, contestID string, p models.Participant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contests[contestID]
	if !ok {
		return false, store.ErrNotFound
	}
	if c.HasParticipant(p.Email) {
		return false, nil
	}
	if p.TaskInfo == nil {
		p.TaskInfo = []models.Submission{}
	}
	c.Participants = append(c.Participants, p)
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) AppendSubmission(_ context.Context, contestID, email string, sub models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contests[contestID]
	if !ok {
		return store.ErrNotFound
	}
	for i := range c.Participants {
		if c.Participants[i].Email == email {
			c.Participants[i].TaskInfo = append(c.Participants[i].TaskInfo, sub)
			return nil
		}
	}
	return store.ErrNotParticipant
}

func (s *Store) SetWinner(_ context.Context, contestID, email string) (*models.Contest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contests[contestID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if c.Winner != nil {
		return nil, store.ErrConflict
	}
	if !c.HasParticipant(email) {
		return nil, store.ErrNotParticipant
	}
	c.Winner = &email
	c.UpdatedAt = time.Now().UTC()
	cp := cloneContest(c)
	return &cp, nil
}

// --- checkouts

func (s *Store) CreateCheckout(_ context.Context, r *models.CheckoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkouts[r.SessionID]; ok {
		return store.ErrAlreadyExists
	}
	cp := *r
	s.checkouts[r.SessionID] = &cp
	return nil
}

func (s *Store) GetCheckout(_ context.Context, sessionID string) (*models.CheckoutRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.checkouts[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) MarkCheckoutCompleted(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.checkouts[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	if r.Status == models.CheckoutStatusCompleted {
		return nil
	}
	r.Status = models.CheckoutStatusCompleted
	r.CompletedAt = &at
	return nil
}
