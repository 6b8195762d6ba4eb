package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventdesk/internal/models"
)

// EventCandidate is what ingestion and manual entry hand to the repository.
type EventCandidate struct {
	Title        string
	Description  string
	Location     string
	DateText     string
	EventAt      *time.Time
	SourceURL    string
	Summary      string
	AnalysisJSON string
	Score        int
	RequiredRank int
	Source       models.EventSource
	Status       models.EventStatus
}

const eventCols = `id,title,description,location,date_text,event_at,source_url,summary,analysis_json,score,priority,required_rank,status,source,created_at`

// CreateEvent inserts a candidate. A duplicate non-sentinel source url is
// rejected with ErrConflict; the partial unique index makes the check atomic
// with the insert, so racing ingesters cannot double-insert.
func (s *Store) CreateEvent(ctx context.Context, c EventCandidate) (models.Event, error) {
	e := models.Event{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(c.Title),
		Description:  c.Description,
		Location:     c.Location,
		DateText:     c.DateText,
		EventAt:      c.EventAt,
		SourceURL:    strings.TrimSpace(c.SourceURL),
		Summary:      c.Summary,
		AnalysisJSON: c.AnalysisJSON,
		Score:        clampScore(c.Score),
		RequiredRank: clampRank(c.RequiredRank),
		Status:       c.Status,
		Source:       c.Source,
		CreatedAt:    time.Now().UTC(),
	}
	if e.Status == "" {
		e.Status = models.EventNew
	}
	if e.Source == "" {
		e.Source = models.SourceParser
	}
	e.Priority = models.PriorityMedium
	if e.Score >= 80 {
		e.Priority = models.PriorityHigh
	}

	var eventAt any
	if e.EventAt != nil {
		eventAt = e.EventAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(`+eventCols+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Title, e.Description, e.Location, e.DateText, eventAt, e.SourceURL, e.Summary,
		e.AnalysisJSON, e.Score, e.Priority, e.RequiredRank, e.Status, e.Source, e.CreatedAt,
	)
	if isUniqueViolation(err) {
		return models.Event{}, ErrConflict
	}
	if err != nil {
		return models.Event{}, err
	}
	return e, nil
}

func (s *Store) GetEventByID(ctx context.Context, id string) (models.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventCols+` FROM events WHERE id=?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return models.Event{}, ErrNotFound
	}
	if err != nil {
		return models.Event{}, err
	}
	return e, nil
}

// TransitionEvent applies a moderation decision. It is conditional on the
// event being in a state the target is reachable from, so two moderators
// racing on the same item produce exactly one change. Re-applying the
// current status succeeds trivially.
func (s *Store) TransitionEvent(ctx context.Context, id string, target models.EventStatus) error {
	var from []any
	switch target {
	case models.EventApproved:
		from = []any{models.EventNew, models.EventPending, models.EventRejected, models.EventApproved}
	case models.EventRejected:
		from = []any{models.EventNew, models.EventPending, models.EventApproved, models.EventRejected}
	default:
		return ErrConflict
	}
	args := append([]any{target, id}, from...)
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET status=? WHERE id=? AND status IN (?,?,?,?)`, args...)
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

// DeleteEvent hard-removes the event and its registrations in one
// transaction, so reads can never observe an orphaned ledger row.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id=?`, id)
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
	if _, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE event_id=?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// visibleSortKey folds the display precedence (priority tier desc, score
// desc, start time asc with unknown last, id as tiebreak) into one string
// that sorts ascending, so keyset pagination needs only a single comparison.
const visibleSortKey = `printf('%d-%03d-%s-%s',
	CASE priority WHEN 'high' THEN 0 ELSE 1 END,
	100-score,
	COALESCE(strftime('%Y%m%d%H%M%S', event_at),'99999999999999'),
	id)`

// ListVisibleEvents returns approved, not-yet-past events the user's rank
// admits. Pagination is keyed on the last-seen event id, so concurrent
// deletions cannot shift pages or repeat items.
func (s *Store) ListVisibleEvents(ctx context.Context, userRank int, afterID string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 5
	}
	args := []any{models.EventApproved, userRank, time.Now().UTC()}
	q := `SELECT ` + eventCols + ` FROM events
		WHERE status=? AND required_rank<=? AND (event_at IS NULL OR event_at>=?)`
	if afterID != "" {
		// A vanished anchor degrades to the queue head instead of an
		// empty page.
		q += ` AND ` + visibleSortKey + ` > COALESCE((SELECT ` + visibleSortKey + ` FROM events WHERE id=?),'')`
		args = append(args, afterID)
	}
	q += ` ORDER BY ` + visibleSortKey + ` ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// SearchEvents matches keywords (OR semantics) against title, description
// and the classifier summary, under the same visibility predicate as
// ListVisibleEvents.
func (s *Store) SearchEvents(ctx context.Context, userRank int, keywords []string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	where, args := keywordClause(keywords)
	q := `SELECT ` + eventCols + ` FROM events
		WHERE status=? AND required_rank<=? AND (event_at IS NULL OR event_at>=?)`
	qArgs := []any{models.EventApproved, userRank, time.Now().UTC()}
	if where != "" {
		q += ` AND (` + where + `)`
		qArgs = append(qArgs, args...)
	}
	q += ` ORDER BY score DESC, created_at DESC LIMIT ?`
	qArgs = append(qArgs, limit)

	rows, err := s.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// SearchAllEvents is the admin variant: full corpus, any status.
func (s *Store) SearchAllEvents(ctx context.Context, keywords []string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	where, args := keywordClause(keywords)
	q := `SELECT ` + eventCols + ` FROM events`
	if where != "" {
		q += ` WHERE ` + where
	}
	q += ` ORDER BY score DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListModerationQueue returns undecided events oldest-first so the longest
// waiting item is always surfaced next.
func (s *Store) ListModerationQueue(ctx context.Context, limit, offset int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE status IN (?,?) ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		models.EventNew, models.EventPending, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *Store) CountModerationQueue(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM events WHERE status IN (?,?)`,
		models.EventNew, models.EventPending,
	).Scan(&n)
	return n, err
}

func (s *Store) ListEvents(ctx context.Context, q models.EventQuery) ([]models.Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	sqlQ := `SELECT ` + eventCols + ` FROM events`
	var conds []string
	var args []any
	if q.Status != "" {
		conds = append(conds, `status=?`)
		args = append(args, q.Status)
	}
	if q.Source != "" {
		conds = append(conds, `source=?`)
		args = append(args, q.Source)
	}
	if q.MinScore > 0 {
		conds = append(conds, `score>=?`)
		args = append(args, q.MinScore)
	}
	if len(conds) > 0 {
		sqlQ += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	sqlQ += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sqlQ, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func keywordClause(keywords []string) (string, []any) {
	var parts []string
	var args []any
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		parts = append(parts, `(title LIKE ? OR description LIKE ? OR summary LIKE ?)`)
		like := "%" + kw + "%"
		args = append(args, like, like, like)
	}
	return strings.Join(parts, " OR "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (models.Event, error) {
	var e models.Event
	var eventAt sql.NullTime
	if err := r.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.DateText, &eventAt,
		&e.SourceURL, &e.Summary, &e.AnalysisJSON, &e.Score, &e.Priority, &e.RequiredRank,
		&e.Status, &e.Source, &e.CreatedAt); err != nil {
		return models.Event{}, err
	}
	if eventAt.Valid {
		t := eventAt.Time
		e.EventAt = &t
	}
	return e, nil
}

func collectEvents(rows *sql.Rows) ([]models.Event, error) {
	var out []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampRank(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}
