package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventdesk/internal/auth"
	"eventdesk/internal/models"
	"eventdesk/internal/notify"
)

// Login authenticates a panel admin and mints an opaque session token. Only
// the token hash is stored.
func (s *Service) Login(ctx context.Context, username, password string) (string, models.Admin, error) {
	admin, err := s.st.GetAdminByUsername(ctx, strings.TrimSpace(username))
	if err != nil || !admin.Active || admin.PasswordHash == "" {
		return "", models.Admin{}, ErrInvalidCredentials
	}
	if !auth.VerifyPassword(admin.PasswordHash, password) {
		return "", models.Admin{}, ErrInvalidCredentials
	}

	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return "", models.Admin{}, err
	}
	now := time.Now().UTC()
	sess := models.Session{
		ID:            uuid.NewString(),
		AdminID:       admin.ID,
		TokenHash:     hash,
		ExpiresAt:     now.Add(s.cfg.SessionAbsoluteDuration()),
		IdleExpiresAt: now.Add(s.cfg.SessionIdleDuration()),
		CreatedAt:     now,
		LastSeenAt:    now,
	}
	if err := s.st.CreateSession(ctx, sess); err != nil {
		return "", models.Admin{}, err
	}
	return raw, admin, nil
}

// ValidateSession resolves and slides an admin session from a raw token.
func (s *Service) ValidateSession(ctx context.Context, rawToken string) (models.Admin, models.Session, error) {
	sess, err := s.st.GetSessionByTokenHash(ctx, auth.HashToken(rawToken))
	if err != nil {
		return models.Admin{}, models.Session{}, ErrInvalidCredentials
	}
	now := time.Now().UTC()
	if sess.RevokedAt != nil || now.After(sess.ExpiresAt) || now.After(sess.IdleExpiresAt) {
		return models.Admin{}, models.Session{}, ErrInvalidCredentials
	}
	admin, err := s.st.GetAdminByID(ctx, sess.AdminID)
	if err != nil || !admin.Active {
		return models.Admin{}, models.Session{}, ErrInvalidCredentials
	}
	_ = s.st.TouchSession(ctx, sess.ID, now.Add(s.cfg.SessionIdleDuration()))
	return admin, sess, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.st.RevokeSession(ctx, sessionID)
}

// AddAdmin appoints a new admin. Only GreatAdmin and Owner may manage
// admins, and nobody may appoint at or above their own role.
func (s *Service) AddAdmin(ctx context.Context, actor models.Admin, externalID, username string, role models.AdminRole, password string) (models.Admin, error) {
	if err := requireAdminManager(actor); err != nil {
		return models.Admin{}, err
	}
	if !models.ValidRole(role) {
		return models.Admin{}, errors.New("unknown role")
	}
	if models.RoleWeight(role) >= models.RoleWeight(actor.Role) {
		return models.Admin{}, ErrForbidden
	}
	var hash string
	if password != "" {
		var err error
		hash, err = auth.HashPassword(password)
		if err != nil {
			return models.Admin{}, err
		}
	}
	admin, err := s.st.CreateAdmin(ctx, externalID, username, role, hash)
	if err != nil {
		return models.Admin{}, err
	}
	s.notify(ctx, notify.Intent{
		TargetExternalID: admin.ExternalID,
		Kind:             notify.KindAdminAdded,
		Subject:          "Вам выдан доступ администратора",
		Body:             fmt.Sprintf("Роль: %s", admin.Role),
	})
	return admin, nil
}

func (s *Service) RemoveAdmin(ctx context.Context, actor models.Admin, adminID string) error {
	if err := requireAdminManager(actor); err != nil {
		return err
	}
	target, err := s.st.GetAdminByID(ctx, adminID)
	if err != nil {
		return err
	}
	// An admin may not remove a peer or superior; the Owner is untouchable.
	if target.Role == models.RoleOwner || models.RoleWeight(target.Role) >= models.RoleWeight(actor.Role) {
		return ErrForbidden
	}
	if err := s.st.RemoveAdmin(ctx, adminID); err != nil {
		return err
	}
	_ = s.st.RevokeAdminSessions(ctx, adminID)
	s.notify(ctx, notify.Intent{
		TargetExternalID: target.ExternalID,
		Kind:             notify.KindAdminRemoved,
		Subject:          "Доступ администратора отозван",
	})
	return nil
}

func (s *Service) ChangeAdminRole(ctx context.Context, actor models.Admin, adminID string, role models.AdminRole) error {
	if err := requireAdminManager(actor); err != nil {
		return err
	}
	if !models.ValidRole(role) {
		return errors.New("unknown role")
	}
	target, err := s.st.GetAdminByID(ctx, adminID)
	if err != nil {
		return err
	}
	if target.Role == models.RoleOwner ||
		models.RoleWeight(target.Role) >= models.RoleWeight(actor.Role) ||
		models.RoleWeight(role) >= models.RoleWeight(actor.Role) {
		return ErrForbidden
	}
	if err := s.st.UpdateAdminRole(ctx, adminID, role); err != nil {
		return err
	}
	s.notify(ctx, notify.Intent{
		TargetExternalID: target.ExternalID,
		Kind:             notify.KindAdminRoleChanged,
		Subject:          "Ваша роль изменена",
		Body:             fmt.Sprintf("Новая роль: %s", role),
	})
	return nil
}

func (s *Service) ListAdmins(ctx context.Context, actor models.Admin) ([]models.Admin, error) {
	if err := requireAdminManager(actor); err != nil {
		return nil, err
	}
	return s.st.ListAdmins(ctx)
}

func (s *Service) AdminByExternalID(ctx context.Context, externalID string) (models.Admin, error) {
	return s.st.GetAdminByExternalID(ctx, externalID)
}

func requireAdminManager(actor models.Admin) error {
	if models.RoleWeight(actor.Role) < models.RoleWeight(models.RoleGreatAdmin) {
		return ErrForbidden
	}
	return nil
}
