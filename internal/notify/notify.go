package notify

import (
	"context"
	"log"

	"eventdesk/internal/models"
)

type Kind string

const (
	KindRegistrationApproved Kind = "registration_approved"
	KindRegistrationRejected Kind = "registration_rejected"
	KindManagerApproval      Kind = "manager_approval_requested"
	KindAccountApproved      Kind = "account_approved"
	KindAccountRejected      Kind = "account_rejected"
	KindSignupReview         Kind = "signup_review"
	KindAdminAdded           Kind = "admin_added"
	KindAdminRemoved         Kind = "admin_removed"
	KindAdminRoleChanged     Kind = "admin_role_changed"
)

// Intent is an outbound notification request. Delivery is best-effort:
// senders log failures and never propagate them into ledger state.
type Intent struct {
	TargetExternalID string
	Kind             Kind
	Subject          string
	Body             string
	Event            *models.Event
	AttachICS        bool
}

type Sender interface {
	Send(ctx context.Context, intent Intent) error
}

// LogSender is the default delivery backend.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, intent Intent) error {
	_ = ctx
	log.Printf("notify kind=%s target=%s subject=%q", intent.Kind, intent.TargetExternalID, intent.Subject)
	return nil
}
