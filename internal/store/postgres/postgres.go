// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/aimerfeng/ChallengeHive/internal/monitoring"
	"github.com/aimerfeng/ChallengeHive/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store is a PostgreSQL-backed store.Store
type Store struct {
	db *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New wraps an open pool
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) Close(context.Context) error {
	s.db.Close()
	return nil
}

func observe(op string, start time.Time) {
	monitoring.RecordStoreOperation("postgres", op, time.Since(start))
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// parseID converts a contest or request key. Keys that are not UUIDs cannot
// exist and are reported as not found without a round trip.
func parseID(id string) (uuid.UUID, bool) {
	u, err := uuid.Parse(id)
	return u, err == nil
}

// --- users

const userColumns = `email, role, display_name, photo_url, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.Email, &u.Role, &u.DisplayName, &u.PhotoURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	defer observe("create_user", time.Now())
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (email, role, display_name, photo_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.Email, u.Role, u.DisplayName, u.PhotoURL, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, email string) (*models.User, error) {
	defer observe("get_user", time.Now())
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	defer observe("list_users", time.Now())
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	defer observe("update_user_role", time.Now())
	u, err := scanUser(s.db.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = NOW()
		WHERE email = $1
		RETURNING `+userColumns, email, role))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}
	return u, err
}

// --- creator requests

const requestColumns = `id::text, email, display_name, photo_url, status, created_at, decided_at`

func scanRequest(row pgx.Row) (*models.CreatorRequest, error) {
	var r models.CreatorRequest
	if err := row.Scan(&r.ID, &r.Email, &r.DisplayName, &r.PhotoURL, &r.Status, &r.CreatedAt, &r.DecidedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateCreatorRequest(ctx context.Context, r *models.CreatorRequest) error {
	defer observe("create_creator_request", time.Now())
	uid, err := uuid.Parse(r.ID)
	if err != nil {
		return fmt.Errorf("invalid creator request id %q: %w", r.ID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO creator_requests (id, email, display_name, photo_url, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uid, r.Email, r.DisplayName, r.PhotoURL, r.Status, r.CreatedAt)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create creator request: %w", err)
	}
	return nil
}

func (s *Store) GetCreatorRequest(ctx context.Context, id string) (*models.CreatorRequest, error) {
	defer observe("get_creator_request", time.Now())
	uid, ok := parseID(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	r, err := scanRequest(s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM creator_requests WHERE id = $1`, uid))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to get creator request: %w", err)
	}
	return r, err
}

func (s *Store) ListCreatorRequests(ctx context.Context) ([]models.CreatorRequest, error) {
	defer observe("list_creator_requests", time.Now())
	rows, err := s.db.Query(ctx, `SELECT `+requestColumns+` FROM creator_requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list creator requests: %w", err)
	}
	defer rows.Close()

	out := make([]models.CreatorRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan creator request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) HasApprovedCreatorRequest(ctx context.Context, email string) (bool, error) {
	defer observe("has_approved_creator_request", time.Now())
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM creator_requests WHERE email = $1 AND status = $2)
	`, email, models.CreatorRequestApproved).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check creator requests: %w", err)
	}
	return ok, nil
}

func (s *Store) DecideCreatorRequest(ctx context.Context, id string, decision models.CreatorRequestStatus, decidedAt time.Time) (*models.CreatorRequest, error) {
	defer observe("decide_creator_request", time.Now())
	uid, ok := parseID(id)
	if !ok {
		return nil, store.ErrNotFound
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanRequest(tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM creator_requests WHERE id = $1 FOR UPDATE`, uid))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock creator request: %w", err)
	}
	if !current.Status.CanTransitionTo(decision) {
		return nil, store.ErrConflict
	}

	updated, err := scanRequest(tx.QueryRow(ctx, `
		UPDATE creator_requests SET status = $2, decided_at = $3
		WHERE id = $1
		RETURNING `+requestColumns, uid, decision, decidedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to update creator request: %w", err)
	}

	if decision == models.CreatorRequestApproved {
		tag, err := tx.Exec(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE email = $1`,
			current.Email, models.RoleCreator, decidedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to promote user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, store.ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

// --- contests

const contestColumns = `id::text, creator_email, creator_name, creator_photo, name, image, description,
	contest_type, task_instruction, prize_money::text, price::text, deadline, status, winner,
	created_at, updated_at`

func scanContest(row pgx.Row) (*models.Contest, error) {
	var (
		c            models.Contest
		prize, price string
	)
	err := row.Scan(&c.ID, &c.CreatorEmail, &c.CreatorName, &c.CreatorPhoto, &c.Name, &c.Image,
		&c.Description, &c.ContestType, &c.TaskInstruction, &prize, &price, &c.Deadline, &c.Status,
		&c.Winner, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if c.PrizeMoney, err = decimal.NewFromString(prize); err != nil {
		return nil, fmt.Errorf("invalid prize_money %q: %w", prize, err)
	}
	if c.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, err)
	}
	c.Participants = []models.Participant{}
	return &c, nil
}

// loadParticipants fills Participants for every contest in cs
func (s *Store) loadParticipants(ctx context.Context, q querier, cs []*models.Contest) error {
	if len(cs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(cs))
	byID := make(map[string]*models.Contest, len(cs))
	for _, c := range cs {
		if uid, ok := parseID(c.ID); ok {
			ids = append(ids, uid)
		}
		byID[c.ID] = c
	}

	rows, err := q.Query(ctx, `
		SELECT contest_id::text, participant_email, participant_name, participant_photo,
		       transaction_id, payment_status, task_info, enrolled_at
		FROM contest_participants
		WHERE contest_id = ANY($1)
		ORDER BY seq
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			contestID string
			p         models.Participant
			taskInfo  []byte
		)
		if err := rows.Scan(&contestID, &p.Email, &p.Name, &p.Photo, &p.TransactionID,
			&p.PaymentStatus, &taskInfo, &p.EnrolledAt); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		p.TaskInfo = []models.Submission{}
		if len(taskInfo) > 0 {
			if err := json.Unmarshal(taskInfo, &p.TaskInfo); err != nil {
				return fmt.Errorf("invalid task_info for %s: %w", p.Email, err)
			}
		}
		if c, ok := byID[contestID]; ok {
			c.Participants = append(c.Participants, p)
		}
	}
	return rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) CreateContest(ctx context.Context, c *models.Contest) error {
	defer observe("create_contest", time.Now())
	uid, err := uuid.Parse(c.ID)
	if err != nil {
		return fmt.Errorf("invalid contest id %q: %w", c.ID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO contests (id, creator_email, creator_name, creator_photo, name, image, description,
			contest_type, task_instruction, prize_money, price, deadline, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::text::numeric, $11::text::numeric, $12, $13, $14, $15)
	`, uid, c.CreatorEmail, c.CreatorName, c.CreatorPhoto, c.Name, c.Image, c.Description,
		c.ContestType, c.TaskInstruction, c.PrizeMoney.String(), c.Price.String(), c.Deadline,
		c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create contest: %w", err)
	}
	return nil
}

func (s *Store) getContest(ctx context.Context, id string) (*models.Contest, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	c, err := scanContest(s.db.QueryRow(ctx, `SELECT `+contestColumns+` FROM contests WHERE id = $1`, uid))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get contest: %w", err)
	}
	if err := s.loadParticipants(ctx, s.db, []*models.Contest{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) GetContest(ctx context.Context, id string) (*models.Contest, error) {
	defer observe("get_contest", time.Now())
	return s.getContest(ctx, id)
}

func (s *Store) ListContests(ctx context.Context, f models.ContestFilter) ([]models.Contest, error) {
	defer observe("list_contests", time.Now())

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.CreatorEmail != "" {
		where = append(where, "creator_email = "+arg(f.CreatorEmail))
	}
	if f.ParticipantEmail != "" {
		where = append(where, "EXISTS (SELECT 1 FROM contest_participants p WHERE p.contest_id = contests.id AND p.participant_email = "+arg(f.ParticipantEmail)+")")
	}
	if f.WinnerEmail != "" {
		where = append(where, "winner = "+arg(f.WinnerEmail))
	}
	if f.WithoutWinner {
		where = append(where, "winner IS NULL")
	}

	query := `SELECT ` + contestColumns + ` FROM contests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.OrderByDeadline {
		query += " ORDER BY deadline ASC"
	} else {
		query += " ORDER BY created_at DESC, id"
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}
	var ptrs []*models.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan contest: %w", err)
		}
		ptrs = append(ptrs, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}

	if err := s.loadParticipants(ctx, s.db, ptrs); err != nil {
		return nil, err
	}
	out := make([]models.Contest, len(ptrs))
	for i, c := range ptrs {
		out[i] = *c
	}
	return out, nil
}

func (s *Store) UpdateContest(ctx context.Context, id string, patch models.ContestPatch) (*models.Contest, error) {
	defer observe("update_contest", time.Now())
	uid, ok := parseID(id)
	if !ok {
		return nil, store.ErrNotFound
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{uid}
	set := func(column string, v any, cast string) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", column, len(args), cast))
	}
	if patch.Name != nil {
		set("name", *patch.Name, "")
	}
	if patch.Image != nil {
		set("image", *patch.Image, "")
	}
	if patch.Description != nil {
		set("description", *patch.Description, "")
	}
	if patch.ContestType != nil {
		set("contest_type", *patch.ContestType, "")
	}
	if patch.TaskInstruction != nil {
		set("task_instruction", *patch.TaskInstruction, "")
	}
	if patch.PrizeMoney != nil {
		set("prize_money", patch.PrizeMoney.String(), "::text::numeric")
	}
	if patch.Price != nil {
		set("price", patch.Price.String(), "::text::numeric")
	}
	if patch.Deadline != nil {
		set("deadline", *patch.Deadline, "")
	}

	tag, err := s.db.Exec(ctx, `UPDATE contests SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update contest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNotFound
	}
	return s.getContest(ctx, id)
}

func (s *Store) UpdateContestStatus(ctx context.Context, id string, from, to models.ContestStatus) (*models.Contest, error) {
	defer observe("update_contest_status", time.Now())
	uid, ok := parseID(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE contests SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, uid, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to update contest status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.getContest(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrConflict
	}
	return s.getContest(ctx, id)
}

func (s *Store) DeleteContest(ctx context.Context, id string) error {
	defer observe("delete_contest", time.Now())
	uid, ok := parseID(id)
	if !ok {
		return store.ErrNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM contests WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("failed to delete contest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AppendParticipant(ctx context.Context, contestID string, p models.Participant) (bool, error) {
	defer observe("append_participant", time.Now())
	uid, ok := parseID(contestID)
	if !ok {
		return false, store.ErrNotFound
	}

	taskInfo := p.TaskInfo
	if taskInfo == nil {
		taskInfo = []models.Submission{}
	}
	raw, err := json.Marshal(taskInfo)
	if err != nil {
		return false, fmt.Errorf("failed to encode task info: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO contest_participants (contest_id, participant_email, participant_name,
			participant_photo, transaction_id, payment_status, task_info, enrolled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::jsonb, $8)
		ON CONFLICT (contest_id, participant_email) DO NOTHING
	`, uid, p.Email, p.Name, p.Photo, p.TransactionID, p.PaymentStatus, string(raw), p.EnrolledAt)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return false, store.ErrNotFound
		}
		return false, fmt.Errorf("failed to append participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := s.db.Exec(ctx, `UPDATE contests SET updated_at = NOW() WHERE id = $1`, uid); err != nil {
		return true, fmt.Errorf("failed to touch contest: %w", err)
	}
	return true, nil
}

func (s *Store) AppendSubmission(ctx context.Context, contestID, email string, sub models.Submission) error {
	defer observe("append_submission", time.Now())
	uid, ok := parseID(contestID)
	if !ok {
		return store.ErrNotFound
	}

	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE contest_participants
		SET task_info = task_info || jsonb_build_array($3::text::jsonb)
		WHERE contest_id = $1 AND participant_email = $2
	`, uid, email, string(raw))
	if err != nil {
		return fmt.Errorf("failed to append submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := s.contestExists(ctx, uid); err != nil {
			return err
		}
		return store.ErrNotParticipant
	}
	return nil
}

func (s *Store) contestExists(ctx context.Context, id uuid.UUID) error {
	var ok bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM contests WHERE id = $1)`, id).Scan(&ok); err != nil {
		return fmt.Errorf("failed to check contest: %w", err)
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetWinner(ctx context.Context, contestID, email string) (*models.Contest, error) {
	defer observe("set_winner", time.Now())
	uid, ok := parseID(contestID)
	if !ok {
		return nil, store.ErrNotFound
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE contests SET winner = $2, updated_at = NOW()
		WHERE id = $1 AND winner IS NULL
		  AND EXISTS (SELECT 1 FROM contest_participants
		              WHERE contest_id = $1 AND participant_email = $2)
	`, uid, email)
	if err != nil {
		return nil, fmt.Errorf("failed to set winner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		c, err := s.getContest(ctx, contestID)
		if err != nil {
			return nil, err
		}
		if c.Winner != nil {
			return nil, store.ErrConflict
		}
		return nil, store.ErrNotParticipant
	}
	return s.getContest(ctx, contestID)
}

// --- checkouts

const checkoutColumns = `session_id, contest_id::text, participant_email, participant_name,
	participant_photo, amount_minor, currency, status, created_at, completed_at`

func (s *Store) CreateCheckout(ctx context.Context, r *models.CheckoutRecord) error {
	defer observe("create_checkout", time.Now())
	contestID, err := uuid.Parse(r.ContestID)
	if err != nil {
		return fmt.Errorf("invalid contest id %q: %w", r.ContestID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO checkout_sessions (session_id, contest_id, participant_email, participant_name,
			participant_photo, amount_minor, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.SessionID, contestID, r.ParticipantEmail, r.ParticipantName, r.ParticipantPhoto,
		r.AmountMinor, r.Currency, r.Status, r.CreatedAt)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create checkout: %w", err)
	}
	return nil
}

func (s *Store) GetCheckout(ctx context.Context, sessionID string) (*models.CheckoutRecord, error) {
	defer observe("get_checkout", time.Now())
	var r models.CheckoutRecord
	err := s.db.QueryRow(ctx, `SELECT `+checkoutColumns+` FROM checkout_sessions WHERE session_id = $1`, sessionID).
		Scan(&r.SessionID, &r.ContestID, &r.ParticipantEmail, &r.ParticipantName, &r.ParticipantPhoto,
			&r.AmountMinor, &r.Currency, &r.Status, &r.CreatedAt, &r.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get checkout: %w", err)
	}
	return &r, nil
}

func (s *Store) MarkCheckoutCompleted(ctx context.Context, sessionID string, at time.Time) error {
	defer observe("mark_checkout_completed", time.Now())
	tag, err := s.db.Exec(ctx, `
		UPDATE checkout_sessions SET status = $2, completed_at = COALESCE(completed_at, $3)
		WHERE session_id = $1
	`, sessionID, models.CheckoutStatusCompleted, at)
	if err != nil {
		return fmt.Errorf("failed to complete checkout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
