package store

import (
	"context"

	"eventdesk/internal/models"
)

// Stats gathers the dashboard counters. Individual query failures zero the
// affected counter rather than failing the whole read.
func (s *Store) Stats(ctx context.Context) models.Stats {
	var st models.Stats
	count := func(q string, args ...any) int {
		var n int
		if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
			return 0
		}
		return n
	}

	st.TotalEvents = count(`SELECT COUNT(1) FROM events`)
	st.PendingEvents = count(`SELECT COUNT(1) FROM events WHERE status IN (?,?)`, models.EventNew, models.EventPending)
	st.ApprovedEvents = count(`SELECT COUNT(1) FROM events WHERE status=?`, models.EventApproved)
	st.RejectedEvents = count(`SELECT COUNT(1) FROM events WHERE status=?`, models.EventRejected)
	st.PartnerEvents = count(`SELECT COUNT(1) FROM events WHERE source=?`, models.SourcePartner)
	st.EventsThisMonth = count(`SELECT COUNT(1) FROM events WHERE strftime('%Y-%m', created_at) = strftime('%Y-%m', 'now')`)
	st.TotalAdmins = count(`SELECT COUNT(1) FROM admins WHERE active=1`)
	st.PendingUsers = count(`SELECT COUNT(1) FROM users WHERE status=?`, models.UserPending)
	st.PendingRegistrations = count(`SELECT COUNT(1) FROM registrations WHERE status=?`, models.RegistrationPending)

	var avg *float64
	if err := s.db.QueryRowContext(ctx,
		`SELECT AVG(score) FROM events WHERE status=?`, models.EventApproved,
	).Scan(&avg); err == nil && avg != nil {
		st.AvgApprovedScore = *avg
	}
	return st
}
