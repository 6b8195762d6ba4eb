package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eventdesk/internal/auth"
	"eventdesk/internal/config"
	"eventdesk/internal/db"
	"eventdesk/internal/service"
	"eventdesk/internal/store"
)

const (
	testGatewayToken  = "gw-secret"
	testOwnerPassword = "OwnerPass123!"
)

func newTestRouter(t *testing.T) (http.Handler, *store.Store) {
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
	hash, err := auth.HashPassword(testOwnerPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := st.EnsureOwner(context.Background(), "tg-owner", "owner", hash); err != nil {
		t.Fatalf("ensure owner: %v", err)
	}

	cfg := config.Config{
		SessionCookieName:   "eventdesk_session",
		SessionIdleMinutes:  30,
		SessionAbsoluteHour: 24,
		GatewayToken:        testGatewayToken,
		AutoApproveMaxRank:  2,
		DefaultEventRank:    1,
		InviteFrom:          "events@example.com",
	}
	svc := service.New(cfg, st, nil)
	return NewRouter(cfg, svc, nil), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func asGateway(actorID string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+testGatewayToken)
		if actorID != "" {
			r.Header.Set("X-Actor-ID", actorID)
		}
	}
}

func loginOwner(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "owner", "password": testOwnerPassword}, nil)
	if rec.Code != 200 {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "eventdesk_session" && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func asAdmin(cookie *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(cookie) }
}

func TestHealthLive(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/health/live", nil, nil)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestGatewayAuthRequired(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/gateway/events", nil, nil)
	if rec.Code != 401 {
		t.Fatalf("no token status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/gateway/events", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer wrong")
		r.Header.Set("X-Actor-ID", "tg-1")
	})
	if rec.Code != 401 {
		t.Fatalf("bad token status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/gateway/events", nil, asGateway(""))
	if rec.Code != 400 {
		t.Fatalf("missing actor status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/gateway/events", nil, asGateway("tg-ghost"))
	if rec.Code != 403 {
		t.Fatalf("unknown actor status = %d", rec.Code)
	}
}

func TestAdminAuthRequired(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/admin/stats", nil, nil)
	if rec.Code != 401 {
		t.Fatalf("no cookie status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "owner", "password": "wrong"}, nil)
	if rec.Code != 401 {
		t.Fatalf("bad login status = %d", rec.Code)
	}
}

func TestSignupAndApprovalFlow(t *testing.T) {
	h, _ := newTestRouter(t)

	// Profile submission needs the gateway token but no existing account.
	rec := doJSON(t, h, http.MethodPost, "/api/v1/gateway/profile", map[string]string{
		"external_id": "tg-emp",
		"full_name":   "Пётр Петров",
		"position":    "разработчик",
	}, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+testGatewayToken) })
	if rec.Code != 201 {
		t.Fatalf("profile status = %d body=%s", rec.Code, rec.Body.String())
	}

	// Still pending, so acting as this employee is refused.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/gateway/events", nil, asGateway("tg-emp"))
	if rec.Code != 403 {
		t.Fatalf("pending actor status = %d", rec.Code)
	}

	cookie := loginOwner(t, h)
	rec = doJSON(t, h, http.MethodGet, "/api/v1/admin/users/next", nil, asAdmin(cookie))
	if rec.Code != 200 {
		t.Fatalf("user queue status = %d", rec.Code)
	}
	var queued struct {
		Empty bool `json:"empty"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&queued); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if queued.Empty || queued.User.ID == "" {
		t.Fatalf("signup not queued: %+v", queued)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/admin/users/"+queued.User.ID+"/approve", nil, asAdmin(cookie))
	if rec.Code != 200 {
		t.Fatalf("approve status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/gateway/me", nil, asGateway("tg-emp"))
	if rec.Code != 200 {
		t.Fatalf("approved actor status = %d", rec.Code)
	}
}

func TestEventModerationAndRegistrationFlow(t *testing.T) {
	h, st := newTestRouter(t)
	cookie := loginOwner(t, h)

	// Admin files a manual event; it waits in the queue.
	rec := doJSON(t, h, http.MethodPost, "/api/v1/admin/events", map[string]any{
		"title":      "Go митап",
		"date_text":  "20 октября",
		"source_url": "https://example.com/meetup",
	}, asAdmin(cookie))
	if rec.Code != 201 {
		t.Fatalf("create event status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode event: %v", err)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/admin/moderation/next", nil, asAdmin(cookie))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), created.ID) {
		t.Fatalf("moderation next status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/admin/events/"+created.ID+"/approve", nil, asAdmin(cookie))
	if rec.Code != 200 {
		t.Fatalf("approve event status = %d", rec.Code)
	}

	// Bring an approved low-rank employee through the gateway.
	seedApprovedEmployee(t, st, "tg-reg", 2)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/gateway/events", nil, asGateway("tg-reg"))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), created.ID) {
		t.Fatalf("visible list status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/gateway/events/"+created.ID+"/register", nil, asGateway("tg-reg"))
	if rec.Code != 201 {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "auto_approved") {
		t.Fatalf("low rank should auto-approve, body=%s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/gateway/events/"+created.ID+"/register", nil, asGateway("tg-reg"))
	if rec.Code != 409 {
		t.Fatalf("double register status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/gateway/me/events", nil, asGateway("tg-reg"))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), created.ID) {
		t.Fatalf("my events status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/gateway/events/"+created.ID+"/ics", nil, asGateway("tg-reg"))
	if rec.Code != 200 || !strings.Contains(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("ics status=%d content-type=%s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/gateway/events/"+created.ID+"/invite", nil, asGateway("tg-reg"))
	if rec.Code != 200 || !strings.Contains(rec.Header().Get("Content-Type"), "message/rfc822") {
		t.Fatalf("invite status=%d content-type=%s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/gateway/events/"+created.ID+"/cancel", nil, asGateway("tg-reg"))
	if rec.Code != 200 {
		t.Fatalf("cancel status = %d", rec.Code)
	}

	// Nothing left to cancel.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/gateway/events/"+created.ID+"/cancel", nil, asGateway("tg-reg"))
	if rec.Code != 404 {
		t.Fatalf("second cancel status = %d, want 404", rec.Code)
	}
}

func TestAdminRoleGateOnAdminManagement(t *testing.T) {
	h, _ := newTestRouter(t)
	owner := loginOwner(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/admin/admins", map[string]string{
		"external_id": "tg-mod",
		"username":    "mod",
		"role":        "Moderator",
		"password":    "ModPass123!",
	}, asAdmin(owner))
	if rec.Code != 201 {
		t.Fatalf("add admin status = %d body=%s", rec.Code, rec.Body.String())
	}

	// The moderator can work the queues but not manage admins.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "mod", "password": "ModPass123!"}, nil)
	if rec.Code != 200 {
		t.Fatalf("mod login status = %d", rec.Code)
	}
	var modCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "eventdesk_session" && c.Value != "" {
			modCookie = c
		}
	}
	if modCookie == nil {
		t.Fatal("mod login set no cookie")
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/admin/stats", nil, asAdmin(modCookie))
	if rec.Code != 200 {
		t.Fatalf("mod stats status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/v1/admin/admins", nil, asAdmin(modCookie))
	if rec.Code != 403 {
		t.Fatalf("mod admin list status = %d, want 403", rec.Code)
	}
}

func TestIngestRunDisabled(t *testing.T) {
	h, _ := newTestRouter(t)
	cookie := loginOwner(t, h)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/admin/ingest/run", nil, asAdmin(cookie))
	if rec.Code != 503 {
		t.Fatalf("ingest without sources status = %d, want 503", rec.Code)
	}
}

func seedApprovedEmployee(t *testing.T, st *store.Store, externalID string, rank int) string {
	t.Helper()
	ctx := context.Background()
	u, err := st.UpsertPendingUser(ctx, store.UserProfile{
		ExternalID: externalID,
		FullName:   "Emp " + externalID,
		Email:      externalID + "@example.com",
		Position:   "разработчик",
		Rank:       rank,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := st.ApproveUser(ctx, u.ID); err != nil {
		t.Fatalf("approve user: %v", err)
	}
	return u.ID
}
