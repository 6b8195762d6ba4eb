package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventdesk/internal/models"
)

const userCols = `id,external_id,full_name,email,phone,position,rank,status,created_at,approved_at,last_activity_at`

// UserProfile is the employee-submitted signup payload. Rank is derived by
// the caller before the write.
type UserProfile struct {
	ExternalID string
	FullName   string
	Email      string
	Phone      string
	Position   string
	Rank       int
}

// UpsertPendingUser creates a pending account, or refreshes the profile of
// an existing pending one. An approved account is left untouched and
// reported as a conflict.
func (s *Store) UpsertPendingUser(ctx context.Context, p UserProfile) (models.User, error) {
	existing, err := s.GetUserByExternalID(ctx, p.ExternalID)
	if err == nil {
		if existing.Status == models.UserApproved {
			return models.User{}, ErrConflict
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE users SET full_name=?, email=?, phone=?, position=?, rank=? WHERE id=? AND status=?`,
			p.FullName, p.Email, p.Phone, p.Position, p.Rank, existing.ID, models.UserPending,
		)
		if err != nil {
			return models.User{}, err
		}
		return s.GetUserByExternalID(ctx, p.ExternalID)
	}
	if err != ErrNotFound {
		return models.User{}, err
	}

	u := models.User{
		ID:         uuid.NewString(),
		ExternalID: strings.TrimSpace(p.ExternalID),
		FullName:   p.FullName,
		Email:      p.Email,
		Phone:      p.Phone,
		Position:   p.Position,
		Rank:       clampRank(p.Rank),
		Status:     models.UserPending,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users(id,external_id,full_name,email,phone,position,rank,status,created_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		u.ID, u.ExternalID, u.FullName, u.Email, u.Phone, u.Position, u.Rank, u.Status, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return models.User{}, ErrConflict
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (models.User, error) {
	return s.getUser(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id)
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (models.User, error) {
	return s.getUser(ctx, `SELECT `+userCols+` FROM users WHERE external_id=?`, externalID)
}

func (s *Store) getUser(ctx context.Context, q string, arg any) (models.User, error) {
	row := s.db.QueryRowContext(ctx, q, arg)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// ApproveUser is one-way: the status guard makes re-approval a conflict
// no-op and leaves approved_at from the first decision intact.
func (s *Store) ApproveUser(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET status=?, approved_at=? WHERE id=? AND status=?`,
		models.UserApproved, now, id, models.UserPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// RejectUser removes a pending account so the person can re-apply. Approved
// accounts are not rejectable.
func (s *Store) RejectUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE id=? AND status=?`, id, models.UserPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) TouchUserActivity(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_activity_at=? WHERE id=?`, at, id)
	return err
}

func (s *Store) ListPendingUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE status=? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		models.UserPending, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (s *Store) ListApprovedUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE status=? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		models.UserApproved, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func scanUser(r rowScanner) (models.User, error) {
	var u models.User
	var approvedAt, lastActivity sql.NullTime
	if err := r.Scan(&u.ID, &u.ExternalID, &u.FullName, &u.Email, &u.Phone, &u.Position,
		&u.Rank, &u.Status, &u.CreatedAt, &approvedAt, &lastActivity); err != nil {
		return models.User{}, err
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		u.ApprovedAt = &t
	}
	if lastActivity.Valid {
		t := lastActivity.Time
		u.LastActivityAt = &t
	}
	return u, nil
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
