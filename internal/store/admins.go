package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventdesk/internal/models"
)

const adminCols = `id,external_id,username,role,active,password_hash,created_at`

func (s *Store) CreateAdmin(ctx context.Context, externalID, username string, role models.AdminRole, passwordHash string) (models.Admin, error) {
	a := models.Admin{
		ID:           uuid.NewString(),
		ExternalID:   strings.TrimSpace(externalID),
		Username:     strings.TrimSpace(username),
		Role:         role,
		Active:       true,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admins(`+adminCols+`) VALUES(?,?,?,?,?,?,?)`,
		a.ID, a.ExternalID, a.Username, a.Role, 1, a.PasswordHash, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return models.Admin{}, ErrConflict
	}
	if err != nil {
		return models.Admin{}, err
	}
	return a, nil
}

// EnsureOwner bootstraps or repairs the Owner account at startup.
func (s *Store) EnsureOwner(ctx context.Context, externalID, username, passwordHash string) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil
	}
	a, err := s.GetAdminByExternalID(ctx, externalID)
	if err == ErrNotFound {
		_, err = s.CreateAdmin(ctx, externalID, username, models.RoleOwner, passwordHash)
		return err
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE admins SET role=?, active=1, password_hash=? WHERE id=?`,
		models.RoleOwner, passwordHash, a.ID,
	)
	return err
}

func (s *Store) GetAdminByExternalID(ctx context.Context, externalID string) (models.Admin, error) {
	return s.getAdmin(ctx, `SELECT `+adminCols+` FROM admins WHERE external_id=?`, externalID)
}

func (s *Store) GetAdminByID(ctx context.Context, id string) (models.Admin, error) {
	return s.getAdmin(ctx, `SELECT `+adminCols+` FROM admins WHERE id=?`, id)
}

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (models.Admin, error) {
	return s.getAdmin(ctx, `SELECT `+adminCols+` FROM admins WHERE username=?`, username)
}

func (s *Store) getAdmin(ctx context.Context, q string, arg any) (models.Admin, error) {
	var a models.Admin
	var active int
	err := s.db.QueryRowContext(ctx, q, arg).
		Scan(&a.ID, &a.ExternalID, &a.Username, &a.Role, &active, &a.PasswordHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Admin{}, ErrNotFound
	}
	if err != nil {
		return models.Admin{}, err
	}
	a.Active = active == 1
	return a, nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+adminCols+` FROM admins WHERE active=1 ORDER BY role, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Admin
	for rows.Next() {
		var a models.Admin
		var active int
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.Username, &a.Role, &active, &a.PasswordHash, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Active = active == 1
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveManager returns the highest-role active admin, oldest appointment
// winning ties. ErrNotFound when no active admin exists.
func (s *Store) ResolveManager(ctx context.Context) (models.Admin, error) {
	admins, err := s.ListAdmins(ctx)
	if err != nil {
		return models.Admin{}, err
	}
	var best models.Admin
	bestW := 0
	for _, a := range admins {
		if w := models.RoleWeight(a.Role); w > bestW {
			best, bestW = a, w
		}
	}
	if bestW == 0 {
		return models.Admin{}, ErrNotFound
	}
	return best, nil
}

func (s *Store) UpdateAdminRole(ctx context.Context, id string, role models.AdminRole) error {
	res, err := s.db.ExecContext(ctx, `UPDATE admins SET role=? WHERE id=?`, role, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) RemoveAdmin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAdminPasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE admins SET password_hash=? WHERE id=?`, passwordHash, id)
	return err
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM admins WHERE active=1`).Scan(&n)
	return n, err
}
