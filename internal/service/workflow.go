package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"eventdesk/internal/models"
	"eventdesk/internal/notify"
	"eventdesk/internal/store"
)

// RegistrationOutcome reports how a successful request was routed.
type RegistrationOutcome string

const (
	// OutcomePendingApproval means a manager was notified and must decide.
	OutcomePendingApproval RegistrationOutcome = "pending_approval"
	// OutcomeAutoApproved means no human review was needed (low rank, or no
	// manager could be resolved and the request failed open).
	OutcomeAutoApproved RegistrationOutcome = "auto_approved"
)

// RequestRegistration runs the approval workflow for an employee wanting to
// attend an event.
//
// Rejections: ErrPendingApproval (account not approved), store.ErrNotFound
// (no such event, or an event not yet approved), ErrRankTooLow,
// store.ErrConflict (a request for the pair already exists, pending or
// approved).
//
// Routing: employees at or below the auto-approval rank are approved on the
// spot. Everyone else waits for the resolved manager. When no manager exists
// the request fails open to auto-approval; a request must never be
// permanently stuck.
func (s *Service) RequestRegistration(ctx context.Context, externalID, eventID string) (RegistrationOutcome, error) {
	user, err := s.st.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return "", err
	}
	if user.Status != models.UserApproved {
		return "", ErrPendingApproval
	}
	event, err := s.st.GetEventByID(ctx, eventID)
	if err != nil {
		return "", err
	}
	if event.Status != models.EventApproved {
		// Undecided and rejected events are invisible to employees; by id
		// they read as missing.
		return "", store.ErrNotFound
	}
	if event.RequiredRank > user.Rank {
		return "", ErrRankTooLow
	}
	if _, err := s.st.CreateRegistration(ctx, user.ID, eventID); err != nil {
		return "", err
	}
	_ = s.st.TouchUserActivity(ctx, user.ID, time.Now().UTC())

	if user.Rank <= s.cfg.AutoApproveMaxRank {
		return s.autoApprove(ctx, user, event)
	}

	manager, err := s.st.ResolveManager(ctx)
	if err != nil {
		log.Printf("no manager resolvable, failing open user=%s event=%s err=%v", user.ID, eventID, err)
		return s.autoApprove(ctx, user, event)
	}

	s.notify(ctx, notify.Intent{
		TargetExternalID: manager.ExternalID,
		Kind:             notify.KindManagerApproval,
		Subject:          "Новый запрос на регистрацию",
		Body: fmt.Sprintf("Сотрудник: %s\nДолжность: %s\nМероприятие: %s\nДата: %s\nМесто: %s",
			user.FullName, user.Position, event.Title, event.DateText, event.Location),
		Event: &event,
	})
	return OutcomePendingApproval, nil
}

func (s *Service) autoApprove(ctx context.Context, user models.User, event models.Event) (RegistrationOutcome, error) {
	if err := s.st.ApproveRegistration(ctx, user.ID, event.ID); err != nil {
		// The row was just created; losing the race here means another
		// decider got it first, which is fine.
		if err != store.ErrConflict {
			return "", err
		}
	}
	s.notify(ctx, notify.Intent{
		TargetExternalID: user.ExternalID,
		Kind:             notify.KindRegistrationApproved,
		Subject:          "Регистрация подтверждена",
		Body:             fmt.Sprintf("%s\n%s\n%s", event.Title, event.DateText, event.Location),
		Event:            &event,
		AttachICS:        true,
	})
	return OutcomeAutoApproved, nil
}

// DecideRegistration is the manager/admin side of the workflow. Approve
// flips pending to approved; reject deletes the pending row. Both are
// conditional writes, so exactly one of two racing deciders wins, and the
// loser learns it via store.ErrConflict.
func (s *Service) DecideRegistration(ctx context.Context, deciderAdminID, userID, eventID string, approve bool) error {
	var err error
	if approve {
		err = s.st.ApproveRegistration(ctx, userID, eventID)
	} else {
		err = s.st.RejectRegistration(ctx, userID, eventID)
	}
	if err != nil {
		return err
	}
	s.regCursors.For(deciderAdminID).Reset()

	user, uerr := s.st.GetUserByID(ctx, userID)
	event, eerr := s.st.GetEventByID(ctx, eventID)
	if uerr != nil || eerr != nil {
		// Decision already landed; only the notification is lost.
		log.Printf("registration decided but display data missing user=%s event=%s", userID, eventID)
		return nil
	}
	if approve {
		s.notify(ctx, notify.Intent{
			TargetExternalID: user.ExternalID,
			Kind:             notify.KindRegistrationApproved,
			Subject:          "Регистрация подтверждена",
			Body:             fmt.Sprintf("%s\n%s\n%s", event.Title, event.DateText, event.Location),
			Event:            &event,
			AttachICS:        true,
		})
	} else {
		s.notify(ctx, notify.Intent{
			TargetExternalID: user.ExternalID,
			Kind:             notify.KindRegistrationRejected,
			Subject:          "Регистрация отклонена",
			Body:             fmt.Sprintf("%s\n%s\n\nСвяжитесь с руководителем для уточнения причин.", event.Title, event.DateText),
		})
	}
	return nil
}

// CancelRegistration is the employee's voluntary withdrawal, valid from any
// state.
func (s *Service) CancelRegistration(ctx context.Context, externalID, eventID string) error {
	user, err := s.st.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	return s.st.DeleteRegistration(ctx, user.ID, eventID)
}

// UserEvents lists the caller's registrations. Rows orphaned by a deleted
// event are excluded by the ledger join; storage failure degrades to empty.
func (s *Service) UserEvents(ctx context.Context, externalID string) ([]models.UserEvent, error) {
	user, err := s.st.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	out, err := s.st.ListUserEvents(ctx, user.ID)
	if err != nil {
		log.Printf("user events read failed user=%s err=%v", user.ID, err)
		return nil, nil
	}
	return out, nil
}

// RegistrationQueueNext surfaces the oldest pending registration for the
// approval queue, honoring the admin's skip position.
func (s *Service) RegistrationQueueNext(ctx context.Context, adminID string) (models.PendingRegistration, bool) {
	cur := s.regCursors.For(adminID)
	for attempt := 0; attempt < 2; attempt++ {
		regs, err := s.st.ListPendingRegistrations(ctx, 1, cur.Offset())
		if err != nil {
			log.Printf("registration queue read failed err=%v", err)
			return models.PendingRegistration{}, false
		}
		if len(regs) > 0 {
			return regs[0], true
		}
		if cur.Offset() == 0 {
			break
		}
		cur.Reset()
	}
	return models.PendingRegistration{}, false
}

func (s *Service) RegistrationQueueSkip(ctx context.Context, adminID string) (models.PendingRegistration, bool) {
	s.regCursors.For(adminID).Skip()
	return s.RegistrationQueueNext(ctx, adminID)
}

// EventParticipants lists users registered for an event (admin view).
func (s *Service) EventParticipants(ctx context.Context, eventID string, limit, offset int) []models.User {
	users, err := s.st.ListEventParticipants(ctx, eventID, limit, offset)
	if err != nil {
		log.Printf("participants read failed event=%s err=%v", eventID, err)
		return nil
	}
	return users
}
