package store

import (
	"context"
	"database/sql"
	"time"

	"eventdesk/internal/models"
)

// CreateRegistration inserts a pending row for the pair. Any existing row,
// pending or approved, blocks a new request; the primary key makes the check
// atomic with the insert.
func (s *Store) CreateRegistration(ctx context.Context, userID, eventID string) (models.Registration, error) {
	r := models.Registration{
		UserID:      userID,
		EventID:     eventID,
		Status:      models.RegistrationPending,
		RequestedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registrations(user_id,event_id,status,requested_at) VALUES(?,?,?,?)`,
		r.UserID, r.EventID, r.Status, r.RequestedAt,
	)
	if isUniqueViolation(err) {
		return models.Registration{}, ErrConflict
	}
	if err != nil {
		return models.Registration{}, err
	}
	return r, nil
}

func (s *Store) GetRegistration(ctx context.Context, userID, eventID string) (models.Registration, error) {
	var r models.Registration
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id,event_id,status,requested_at FROM registrations WHERE user_id=? AND event_id=?`,
		userID, eventID,
	).Scan(&r.UserID, &r.EventID, &r.Status, &r.RequestedAt)
	if err == sql.ErrNoRows {
		return models.Registration{}, ErrNotFound
	}
	if err != nil {
		return models.Registration{}, err
	}
	return r, nil
}

// ApproveRegistration flips pending to approved. The status guard means two
// racing deciders get exactly one success.
func (s *Store) ApproveRegistration(ctx context.Context, userID, eventID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE registrations SET status=? WHERE user_id=? AND event_id=? AND status=?`,
		models.RegistrationApproved, userID, eventID, models.RegistrationPending,
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

// RejectRegistration deletes a pending row. An approved row is not
// rejectable; the employee withdraws it instead.
func (s *Store) RejectRegistration(ctx context.Context, userID, eventID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM registrations WHERE user_id=? AND event_id=? AND status=?`,
		userID, eventID, models.RegistrationPending,
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

// DeleteRegistration is the voluntary cancellation path: valid from any
// state. ErrNotFound when there is no row to cancel.
func (s *Store) DeleteRegistration(ctx context.Context, userID, eventID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM registrations WHERE user_id=? AND event_id=?`, userID, eventID)
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

// ListUserEvents returns the caller's registrations joined with event data.
// The inner join drops rows whose event was deleted concurrently.
func (s *Store) ListUserEvents(ctx context.Context, userID string) ([]models.UserEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id,e.title,e.description,e.location,e.date_text,e.event_at,e.source_url,e.summary,
			e.analysis_json,e.score,e.priority,e.required_rank,e.status,e.source,e.created_at,r.status
		 FROM registrations r INNER JOIN events e ON e.id=r.event_id
		 WHERE r.user_id=? ORDER BY r.requested_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserEvent
	for rows.Next() {
		var ue models.UserEvent
		var eventAt sql.NullTime
		e := &ue.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.DateText, &eventAt,
			&e.SourceURL, &e.Summary, &e.AnalysisJSON, &e.Score, &e.Priority, &e.RequiredRank,
			&e.Status, &e.Source, &e.CreatedAt, &ue.Status); err != nil {
			return nil, err
		}
		if eventAt.Valid {
			t := eventAt.Time
			e.EventAt = &t
		}
		out = append(out, ue)
	}
	return out, rows.Err()
}

// ListPendingRegistrations feeds the manager approval queue, oldest first.
func (s *Store) ListPendingRegistrations(ctx context.Context, limit, offset int) ([]models.PendingRegistration, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.user_id,r.event_id,u.full_name,u.position,e.title,e.date_text,e.location,e.source_url,r.requested_at
		 FROM registrations r
		 INNER JOIN users u ON u.id=r.user_id
		 INNER JOIN events e ON e.id=r.event_id
		 WHERE r.status=? ORDER BY r.requested_at ASC LIMIT ? OFFSET ?`,
		models.RegistrationPending, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PendingRegistration
	for rows.Next() {
		var p models.PendingRegistration
		if err := rows.Scan(&p.UserID, &p.EventID, &p.UserName, &p.UserPosition,
			&p.EventTitle, &p.EventDate, &p.Location, &p.SourceURL, &p.RequestedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListEventParticipants returns users with a row for the event, for the
// admin participants view.
func (s *Store) ListEventParticipants(ctx context.Context, eventID string, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id,u.external_id,u.full_name,u.email,u.phone,u.position,u.rank,u.status,
			u.created_at,u.approved_at,u.last_activity_at
		 FROM users u
		 INNER JOIN registrations r ON r.user_id=u.id
		 WHERE r.event_id=? ORDER BY r.requested_at ASC LIMIT ? OFFSET ?`,
		eventID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}
