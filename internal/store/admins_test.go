package store

import (
	"context"
	"errors"
	"testing"

	"eventdesk/internal/models"
)

func TestEnsureOwnerBootstrapAndRepair(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.EnsureOwner(ctx, "tg-owner", "owner", "hash-1"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	a, err := st.GetAdminByExternalID(ctx, "tg-owner")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.Role != models.RoleOwner || !a.Active {
		t.Fatalf("owner not bootstrapped: %+v", a)
	}

	// Re-running with a new hash repairs the credential in place.
	if err := st.EnsureOwner(ctx, "tg-owner", "owner", "hash-2"); err != nil {
		t.Fatalf("repair: %v", err)
	}
	a2, err := st.GetAdminByExternalID(ctx, "tg-owner")
	if err != nil {
		t.Fatalf("get after repair: %v", err)
	}
	if a2.ID != a.ID || a2.PasswordHash != "hash-2" {
		t.Fatalf("repair created new row or kept old hash: %+v", a2)
	}
}

func TestResolveManagerHighestRoleWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.ResolveManager(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty roster err = %v, want ErrNotFound", err)
	}

	if _, err := st.CreateAdmin(ctx, "tg-mod", "mod", models.RoleModerator, "h"); err != nil {
		t.Fatalf("create moderator: %v", err)
	}
	ga, err := st.CreateAdmin(ctx, "tg-ga", "great", models.RoleGreatAdmin, "h")
	if err != nil {
		t.Fatalf("create great admin: %v", err)
	}

	got, err := st.ResolveManager(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != ga.ID {
		t.Fatalf("resolved %s (%s), want the GreatAdmin", got.Username, got.Role)
	}
}

func TestRemoveAdminExcludesFromRoster(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	a, err := st.CreateAdmin(ctx, "tg-x", "x", models.RoleAdmin, "h")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.RemoveAdmin(ctx, a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	admins, err := st.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, got := range admins {
		if got.ID == a.ID {
			t.Fatalf("removed admin still listed")
		}
	}
	if _, err := st.ResolveManager(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removed admin still resolvable: %v", err)
	}
}

func TestCreateAdminDuplicateExternalID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if _, err := st.CreateAdmin(ctx, "tg-dup", "first", models.RoleAdmin, "h"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.CreateAdmin(ctx, "tg-dup", "second", models.RoleAdmin, "h"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate external id err = %v, want ErrConflict", err)
	}
}
