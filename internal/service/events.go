package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"eventdesk/internal/models"
	"eventdesk/internal/store"
)

// ManualEvent is an admin-entered event. It enters the queue as pending and
// carries the invite sentinel unless a real link was provided.
type ManualEvent struct {
	Title        string
	Description  string
	Location     string
	DateText     string
	EventAt      *time.Time
	SourceURL    string
	RequiredRank int
	Source       models.EventSource
}

func (s *Service) CreateManualEvent(ctx context.Context, m ManualEvent) (models.Event, error) {
	if strings.TrimSpace(m.Title) == "" {
		return models.Event{}, errors.New("title is required")
	}
	url := strings.TrimSpace(m.SourceURL)
	if url == "" || !strings.HasPrefix(url, "http") {
		url = models.SentinelInvite
	}
	src := m.Source
	if src == "" {
		src = models.SourceManual
	}
	rank := m.RequiredRank
	if rank == 0 {
		rank = s.cfg.DefaultEventRank
	}
	return s.st.CreateEvent(ctx, store.EventCandidate{
		Title:        m.Title,
		Description:  m.Description,
		Location:     m.Location,
		DateText:     m.DateText,
		EventAt:      m.EventAt,
		SourceURL:    url,
		Score:        100,
		RequiredRank: rank,
		Source:       src,
		Status:       models.EventPending,
	})
}

// ModerationNext surfaces the admin's current queue item: the oldest
// undecided event past whatever the session has skipped. An exhausted
// cursor wraps to the head once before reporting an empty queue.
func (s *Service) ModerationNext(ctx context.Context, adminID string) (models.Event, bool) {
	cur := s.eventCursors.For(adminID)
	for attempt := 0; attempt < 2; attempt++ {
		events, err := s.st.ListModerationQueue(ctx, 1, cur.Offset())
		if err != nil {
			log.Printf("moderation queue read failed err=%v", err)
			return models.Event{}, false
		}
		if len(events) > 0 {
			return events[0], true
		}
		if cur.Offset() == 0 {
			break
		}
		cur.Reset()
	}
	return models.Event{}, false
}

// ModerationSkip leaves the current item undecided and advances the session.
func (s *Service) ModerationSkip(ctx context.Context, adminID string) (models.Event, bool) {
	s.eventCursors.For(adminID).Skip()
	return s.ModerationNext(ctx, adminID)
}

// DecideEvent applies an approve/reject decision and re-anchors the
// session's cursor at the queue head.
func (s *Service) DecideEvent(ctx context.Context, adminID, eventID string, approve bool) error {
	target := models.EventRejected
	if approve {
		target = models.EventApproved
	}
	if err := s.st.TransitionEvent(ctx, eventID, target); err != nil {
		return err
	}
	s.eventCursors.For(adminID).Reset()
	return nil
}

// DeleteEvent removes the event and its registrations outright.
func (s *Service) DeleteEvent(ctx context.Context, adminID, eventID string) error {
	if err := s.st.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	s.eventCursors.For(adminID).Reset()
	return nil
}

// VisibleEvents lists approved events for the employee, stable-key paged.
// Read failures degrade to an empty page; a browsing user never sees an
// error where a list belongs.
func (s *Service) VisibleEvents(ctx context.Context, user models.User, afterID string, limit int) []models.Event {
	events, err := s.st.ListVisibleEvents(ctx, user.Rank, afterID, limit)
	if err != nil {
		log.Printf("visible events read failed user=%s err=%v", user.ID, err)
		return nil
	}
	return events
}

func (s *Service) SearchVisible(ctx context.Context, user models.User, query string, limit int) []models.Event {
	events, err := s.st.SearchEvents(ctx, user.Rank, splitKeywords(query), limit)
	if err != nil {
		log.Printf("event search failed user=%s err=%v", user.ID, err)
		return nil
	}
	return events
}

// SearchAll is the admin variant: full corpus, visibility predicate ignored.
func (s *Service) SearchAll(ctx context.Context, query string, limit int) []models.Event {
	events, err := s.st.SearchAllEvents(ctx, splitKeywords(query), limit)
	if err != nil {
		log.Printf("admin event search failed err=%v", err)
		return nil
	}
	return events
}

func (s *Service) ListEvents(ctx context.Context, q models.EventQuery) []models.Event {
	events, err := s.st.ListEvents(ctx, q)
	if err != nil {
		log.Printf("event list read failed err=%v", err)
		return nil
	}
	return events
}

// EventForUser returns the event plus the caller's registration status,
// enforcing the same visibility gate as the list reads. Events that have
// not been approved do not exist as far as employees are concerned, even
// when addressed by id.
func (s *Service) EventForUser(ctx context.Context, user models.User, eventID string) (models.Event, models.RegistrationStatus, error) {
	e, err := s.st.GetEventByID(ctx, eventID)
	if err != nil {
		return models.Event{}, "", err
	}
	if e.Status != models.EventApproved {
		return models.Event{}, "", store.ErrNotFound
	}
	if e.RequiredRank > user.Rank {
		return models.Event{}, "", ErrRankTooLow
	}
	var status models.RegistrationStatus
	if reg, err := s.st.GetRegistration(ctx, user.ID, eventID); err == nil {
		status = reg.Status
	}
	return e, status, nil
}

func (s *Service) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	return s.st.GetEventByID(ctx, eventID)
}

func splitKeywords(q string) []string {
	fields := strings.Fields(q)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
