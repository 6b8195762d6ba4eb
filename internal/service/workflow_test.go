package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"eventdesk/internal/config"
	"eventdesk/internal/db"
	"eventdesk/internal/models"
	"eventdesk/internal/notify"
	"eventdesk/internal/store"
)

type recordingSender struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (r *recordingSender) Send(ctx context.Context, intent notify.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
	return nil
}

func (r *recordingSender) byKind(kind notify.Kind) []notify.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Intent
	for _, i := range r.intents {
		if i.Kind == kind {
			out = append(out, i)
		}
	}
	return out
}

func newTestService(t *testing.T) (*Service, *store.Store, *recordingSender) {
	t.Helper()
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "app.db"), 2, 2, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })
	if err := db.ApplyMigrationFile(sqdb, filepath.Join("..", "..", "migrations", "001_init.sql")); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	st := store.New(sqdb)
	sender := &recordingSender{}
	cfg := config.Config{
		AutoApproveMaxRank:  2,
		DefaultEventRank:    1,
		SessionIdleMinutes:  30,
		SessionAbsoluteHour: 24,
	}
	return New(cfg, st, sender), st, sender
}

func approvedUser(t *testing.T, st *store.Store, externalID, position string, rnk int) models.User {
	t.Helper()
	ctx := context.Background()
	u, err := st.UpsertPendingUser(ctx, store.UserProfile{
		ExternalID: externalID,
		FullName:   "Emp " + externalID,
		Position:   position,
		Rank:       rnk,
	})
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	if err := st.ApproveUser(ctx, u.ID); err != nil {
		t.Fatalf("approve user: %v", err)
	}
	u.Status = models.UserApproved
	return u
}

func approvedEvent(t *testing.T, st *store.Store, url string, requiredRank int) models.Event {
	t.Helper()
	ev, err := st.CreateEvent(context.Background(), store.EventCandidate{
		Title:        "Conf",
		DateText:     "12 октября",
		Location:     "Москва",
		SourceURL:    url,
		RequiredRank: requiredRank,
		Status:       models.EventApproved,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

func TestRequestRegistrationAutoApprovesLowRank(t *testing.T) {
	svc, st, sender := newTestService(t)
	ctx := context.Background()
	u := approvedUser(t, st, "tg-low", "разработчик", 2)
	ev := approvedEvent(t, st, "https://example.com/e1", 1)

	outcome, err := svc.RequestRegistration(ctx, u.ExternalID, ev.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if outcome != OutcomeAutoApproved {
		t.Fatalf("outcome = %s, want auto_approved", outcome)
	}
	reg, err := st.GetRegistration(ctx, u.ID, ev.ID)
	if err != nil {
		t.Fatalf("get registration: %v", err)
	}
	if reg.Status != models.RegistrationApproved {
		t.Fatalf("status = %s, want approved", reg.Status)
	}

	got := sender.byKind(notify.KindRegistrationApproved)
	if len(got) != 1 || got[0].TargetExternalID != u.ExternalID {
		t.Fatalf("approval note not sent: %+v", got)
	}
	if !got[0].AttachICS {
		t.Fatal("approval note should carry the calendar attachment")
	}
}

func TestRequestRegistrationRoutesToManager(t *testing.T) {
	svc, st, sender := newTestService(t)
	ctx := context.Background()
	manager, err := st.CreateAdmin(ctx, "tg-manager", "boss", models.RoleGreatAdmin, "h")
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	u := approvedUser(t, st, "tg-high", "team lead", 4)
	ev := approvedEvent(t, st, "https://example.com/e2", 1)

	outcome, err := svc.RequestRegistration(ctx, u.ExternalID, ev.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if outcome != OutcomePendingApproval {
		t.Fatalf("outcome = %s, want pending_approval", outcome)
	}
	reg, err := st.GetRegistration(ctx, u.ID, ev.ID)
	if err != nil || reg.Status != models.RegistrationPending {
		t.Fatalf("registration should stay pending: %+v err=%v", reg, err)
	}

	asked := sender.byKind(notify.KindManagerApproval)
	if len(asked) != 1 || asked[0].TargetExternalID != manager.ExternalID {
		t.Fatalf("manager not asked: %+v", asked)
	}
}

func TestRequestRegistrationFailsOpenWithoutManager(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	u := approvedUser(t, st, "tg-alone", "директор", 5)
	ev := approvedEvent(t, st, "https://example.com/e3", 1)

	outcome, err := svc.RequestRegistration(ctx, u.ExternalID, ev.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if outcome != OutcomeAutoApproved {
		t.Fatalf("outcome = %s, want fail-open auto approval", outcome)
	}
}

func TestRequestRegistrationRejections(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	u := approvedUser(t, st, "tg-r", "разработчик", 2)
	gated := approvedEvent(t, st, "https://example.com/gated", 4)

	if _, err := svc.RequestRegistration(ctx, u.ExternalID, gated.ID); !errors.Is(err, ErrRankTooLow) {
		t.Fatalf("rank gate err = %v, want ErrRankTooLow", err)
	}
	if _, err := svc.RequestRegistration(ctx, u.ExternalID, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing event err = %v, want ErrNotFound", err)
	}

	if _, err := st.UpsertPendingUser(ctx, store.UserProfile{ExternalID: "tg-pend", FullName: "P", Rank: 1}); err != nil {
		t.Fatalf("pending user: %v", err)
	}
	open := approvedEvent(t, st, "https://example.com/open", 1)
	if _, err := svc.RequestRegistration(ctx, "tg-pend", open.ID); !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("pending account err = %v, want ErrPendingApproval", err)
	}

	if _, err := svc.RequestRegistration(ctx, u.ExternalID, open.ID); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := svc.RequestRegistration(ctx, u.ExternalID, open.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("double request err = %v, want ErrConflict", err)
	}
}

func TestDecideRegistration(t *testing.T) {
	svc, st, sender := newTestService(t)
	ctx := context.Background()
	if _, err := st.CreateAdmin(ctx, "tg-boss", "boss", models.RoleGreatAdmin, "h"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	u := approvedUser(t, st, "tg-d", "team lead", 4)
	ev := approvedEvent(t, st, "https://example.com/decide", 1)
	if _, err := svc.RequestRegistration(ctx, u.ExternalID, ev.ID); err != nil {
		t.Fatalf("request: %v", err)
	}

	if err := svc.DecideRegistration(ctx, "admin-1", u.ID, ev.ID, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	notes := sender.byKind(notify.KindRegistrationApproved)
	if len(notes) != 1 || !notes[0].AttachICS {
		t.Fatalf("employee approval note wrong: %+v", notes)
	}

	// The decision already landed; a second decider loses.
	if err := svc.DecideRegistration(ctx, "admin-2", u.ID, ev.ID, false); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("late reject err = %v, want ErrConflict", err)
	}
}

func TestCancelRegistration(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	u := approvedUser(t, st, "tg-c", "разработчик", 2)
	ev := approvedEvent(t, st, "https://example.com/cancel", 1)
	if _, err := svc.RequestRegistration(ctx, u.ExternalID, ev.ID); err != nil {
		t.Fatalf("request: %v", err)
	}

	if err := svc.CancelRegistration(ctx, u.ExternalID, ev.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := st.GetRegistration(ctx, u.ID, ev.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("registration should be gone: %v", err)
	}
	if err := svc.CancelRegistration(ctx, u.ExternalID, ev.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cancel without a row: got %v, want ErrNotFound", err)
	}
}

func TestRegistrationQueueSkipAndWrap(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	if _, err := st.CreateAdmin(ctx, "tg-q", "q", models.RoleGreatAdmin, "h"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	u1 := approvedUser(t, st, "tg-q1", "team lead", 4)
	u2 := approvedUser(t, st, "tg-q2", "team lead", 4)
	ev := approvedEvent(t, st, "https://example.com/queue", 1)
	for _, u := range []models.User{u1, u2} {
		if _, err := svc.RequestRegistration(ctx, u.ExternalID, ev.ID); err != nil {
			t.Fatalf("request %s: %v", u.ExternalID, err)
		}
	}

	first, ok := svc.RegistrationQueueNext(ctx, "adm")
	if !ok || first.UserID != u1.ID {
		t.Fatalf("head of queue wrong: %+v ok=%v", first, ok)
	}
	second, ok := svc.RegistrationQueueSkip(ctx, "adm")
	if !ok || second.UserID != u2.ID {
		t.Fatalf("skip should surface the next item: %+v", second)
	}
	// Skipping past the tail wraps back to the head.
	wrapped, ok := svc.RegistrationQueueSkip(ctx, "adm")
	if !ok || wrapped.UserID != u1.ID {
		t.Fatalf("exhausted cursor should wrap to head: %+v ok=%v", wrapped, ok)
	}
}
