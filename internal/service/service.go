package service

import (
	"context"
	"errors"
	"log"

	"eventdesk/internal/config"
	"eventdesk/internal/models"
	"eventdesk/internal/notify"
	"eventdesk/internal/queue"
	"eventdesk/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPendingApproval    = errors.New("account pending approval")
	ErrForbidden          = errors.New("forbidden")
	ErrRankTooLow         = errors.New("rank below event requirement")
)

type Service struct {
	cfg    config.Config
	st     *store.Store
	sender notify.Sender

	// Per-admin anchor cursors for the three destructive moderation queues.
	eventCursors *queue.Cursors
	regCursors   *queue.Cursors
	userCursors  *queue.Cursors
}

func New(cfg config.Config, st *store.Store, sender notify.Sender) *Service {
	if sender == nil {
		sender = notify.LogSender{}
	}
	return &Service{
		cfg:          cfg,
		st:           st,
		sender:       sender,
		eventCursors: queue.NewCursors(),
		regCursors:   queue.NewCursors(),
		userCursors:  queue.NewCursors(),
	}
}

// notify delivers best-effort: a failed or misaddressed notification never
// affects the state change that triggered it.
func (s *Service) notify(ctx context.Context, intent notify.Intent) {
	if intent.TargetExternalID == "" {
		return
	}
	if err := s.sender.Send(ctx, intent); err != nil {
		log.Printf("notify failed kind=%s target=%s err=%v", intent.Kind, intent.TargetExternalID, err)
	}
}

func (s *Service) Stats(ctx context.Context) models.Stats {
	return s.st.Stats(ctx)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.st.Ping(ctx)
}
