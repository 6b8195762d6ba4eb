package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventdesk/internal/models"
)

func TestUpsertPendingUserRefreshesProfile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u, err := st.UpsertPendingUser(ctx, UserProfile{ExternalID: "tg-1", FullName: "Иван Иванов", Position: "разработчик", Rank: 2})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if u.Status != models.UserPending {
		t.Fatalf("status = %s, want pending", u.Status)
	}

	// A re-submission while pending replaces the profile in place.
	u2, err := st.UpsertPendingUser(ctx, UserProfile{ExternalID: "tg-1", FullName: "Иван Иванов", Position: "team lead", Rank: 4})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if u2.ID != u.ID {
		t.Fatalf("refresh created a new row: %s vs %s", u2.ID, u.ID)
	}
	if u2.Position != "team lead" || u2.Rank != 4 {
		t.Fatalf("profile not refreshed: %+v", u2)
	}
}

func TestUpsertPendingUserConflictsWithApproved(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := mustCreateUser(t, st, "tg-2", 2)
	mustApproveUser(t, st, u.ID)

	if _, err := st.UpsertPendingUser(ctx, UserProfile{ExternalID: "tg-2", FullName: "X", Rank: 1}); !errors.Is(err, ErrConflict) {
		t.Fatalf("upsert over approved err = %v, want ErrConflict", err)
	}
}

func TestApproveUserIsOneWay(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := mustCreateUser(t, st, "tg-3", 2)

	if err := st.ApproveUser(ctx, u.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, err := st.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.UserApproved || got.ApprovedAt == nil {
		t.Fatalf("approval not recorded: %+v", got)
	}

	if err := st.ApproveUser(ctx, u.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("second approve err = %v, want ErrConflict", err)
	}
	if err := st.RejectUser(ctx, u.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("reject after approve err = %v, want ErrConflict", err)
	}
}

func TestRejectUserDeletesSoTheyCanReapply(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := mustCreateUser(t, st, "tg-4", 2)

	if err := st.RejectUser(ctx, u.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := st.GetUserByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rejected user still readable: %v", err)
	}
	if _, err := st.UpsertPendingUser(ctx, UserProfile{ExternalID: "tg-4", FullName: "Again", Rank: 1}); err != nil {
		t.Fatalf("re-apply after reject: %v", err)
	}
}

func TestListPendingUsersOldestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	first := mustCreateUser(t, st, "tg-a", 1)
	time.Sleep(5 * time.Millisecond)
	mustCreateUser(t, st, "tg-b", 1)

	users, err := st.ListPendingUsers(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 || users[0].ID != first.ID {
		t.Fatalf("queue order wrong: %+v", users)
	}

	users, err = st.ListPendingUsers(ctx, 1, 1)
	if err != nil {
		t.Fatalf("offset list: %v", err)
	}
	if len(users) != 1 || users[0].ExternalID != "tg-b" {
		t.Fatalf("offset page wrong: %+v", users)
	}
}

func TestTouchUserActivity(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	u := mustCreateUser(t, st, "tg-5", 2)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := st.TouchUserActivity(ctx, u.ID, at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := st.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastActivityAt == nil || !got.LastActivityAt.Equal(at) {
		t.Fatalf("last activity not stored: %+v", got.LastActivityAt)
	}
}
