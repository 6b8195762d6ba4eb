package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"eventdesk/internal/models"
	"eventdesk/internal/notify"
	"eventdesk/internal/rank"
	"eventdesk/internal/store"
)

// Profile is an employee signup submission from the chat gateway.
type Profile struct {
	ExternalID string
	FullName   string
	Email      string
	Phone      string
	Position   string
}

// SubmitProfile records a pending account (rank derived from the title at
// write time) and asks every active admin to review it. Re-submission while
// still pending refreshes the profile; an approved account conflicts.
func (s *Service) SubmitProfile(ctx context.Context, p Profile) (models.User, error) {
	if strings.TrimSpace(p.ExternalID) == "" {
		return models.User{}, errors.New("external id is required")
	}
	if strings.TrimSpace(p.FullName) == "" {
		return models.User{}, errors.New("full name is required")
	}
	user, err := s.st.UpsertPendingUser(ctx, store.UserProfile{
		ExternalID: p.ExternalID,
		FullName:   strings.TrimSpace(p.FullName),
		Email:      strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:      strings.TrimSpace(p.Phone),
		Position:   strings.TrimSpace(p.Position),
		Rank:       rank.Resolve(p.Position),
	})
	if err != nil {
		return models.User{}, err
	}

	admins, aerr := s.st.ListAdmins(ctx)
	if aerr != nil {
		log.Printf("admin list read failed during signup review err=%v", aerr)
		return user, nil
	}
	body := fmt.Sprintf("ФИО: %s\nEmail: %s\nТелефон: %s\nДолжность: %s",
		user.FullName, user.Email, user.Phone, user.Position)
	for _, a := range admins {
		s.notify(ctx, notify.Intent{
			TargetExternalID: a.ExternalID,
			Kind:             notify.KindSignupReview,
			Subject:          "Новая заявка на регистрацию",
			Body:             body,
		})
	}
	return user, nil
}

// DecideUser approves or rejects a pending account. Approval is one-way and
// idempotent at the store level; rejection removes the row so the person can
// re-apply.
func (s *Service) DecideUser(ctx context.Context, deciderAdminID, userID string, approve bool) error {
	user, err := s.st.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if approve {
		err = s.st.ApproveUser(ctx, userID)
	} else {
		err = s.st.RejectUser(ctx, userID)
	}
	if err != nil {
		return err
	}
	s.userCursors.For(deciderAdminID).Reset()

	if approve {
		s.notify(ctx, notify.Intent{
			TargetExternalID: user.ExternalID,
			Kind:             notify.KindAccountApproved,
			Subject:          "Аккаунт подтвержден",
			Body:             "Ваш аккаунт подтвержден. Теперь вам доступны мероприятия.",
		})
	} else {
		s.notify(ctx, notify.Intent{
			TargetExternalID: user.ExternalID,
			Kind:             notify.KindAccountRejected,
			Subject:          "Заявка отклонена",
			Body:             "Ваша заявка на регистрацию отклонена. Вы можете подать её повторно.",
		})
	}
	return nil
}

func (s *Service) UserQueueNext(ctx context.Context, adminID string) (models.User, bool) {
	cur := s.userCursors.For(adminID)
	for attempt := 0; attempt < 2; attempt++ {
		users, err := s.st.ListPendingUsers(ctx, 1, cur.Offset())
		if err != nil {
			log.Printf("user queue read failed err=%v", err)
			return models.User{}, false
		}
		if len(users) > 0 {
			return users[0], true
		}
		if cur.Offset() == 0 {
			break
		}
		cur.Reset()
	}
	return models.User{}, false
}

func (s *Service) UserQueueSkip(ctx context.Context, adminID string) (models.User, bool) {
	s.userCursors.For(adminID).Skip()
	return s.UserQueueNext(ctx, adminID)
}

// ActingUser resolves the employee behind a gateway request. Only approved
// accounts may act.
func (s *Service) ActingUser(ctx context.Context, externalID string) (models.User, error) {
	user, err := s.st.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return models.User{}, err
	}
	if user.Status != models.UserApproved {
		return models.User{}, ErrPendingApproval
	}
	return user, nil
}

func (s *Service) GetUserByExternalID(ctx context.Context, externalID string) (models.User, error) {
	return s.st.GetUserByExternalID(ctx, externalID)
}
