package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"eventdesk/internal/db"
	"eventdesk/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "app.db"), 2, 2, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })
	if err := db.ApplyMigrationFile(sqdb, filepath.Join("..", "..", "migrations", "001_init.sql")); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	return New(sqdb)
}

func mustCreateEvent(t *testing.T, st *Store, c EventCandidate) models.Event {
	t.Helper()
	if c.Title == "" {
		c.Title = "Test event"
	}
	ev, err := st.CreateEvent(context.Background(), c)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

func mustCreateUser(t *testing.T, st *Store, externalID string, rank int) models.User {
	t.Helper()
	u, err := st.UpsertPendingUser(context.Background(), UserProfile{
		ExternalID: externalID,
		FullName:   "Test User " + externalID,
		Position:   "разработчик",
		Rank:       rank,
	})
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	return u
}

func mustApproveUser(t *testing.T, st *Store, id string) {
	t.Helper()
	if err := st.ApproveUser(context.Background(), id); err != nil {
		t.Fatalf("approve user: %v", err)
	}
}

func TestPing(t *testing.T) {
	st := newTestStore(t)
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
