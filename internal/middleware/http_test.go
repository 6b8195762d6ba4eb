package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventdesk/internal/models"
	"eventdesk/internal/rate"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		trustProxy bool
		want       string
	}{
		{name: "plain remote", remoteAddr: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "xff ignored without trust", remoteAddr: "10.0.0.1:1234", xff: "203.0.113.5", want: "10.0.0.1"},
		{name: "xff honored with trust", remoteAddr: "10.0.0.1:1234", xff: "203.0.113.5", trustProxy: true, want: "203.0.113.5"},
		{name: "xff first hop wins", remoteAddr: "10.0.0.1:1234", xff: "203.0.113.5, 10.0.0.2", trustProxy: true, want: "203.0.113.5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := ClientIP(r, tc.trustProxy); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	})
	h := RequireRole(models.RoleGreatAdmin)(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != 403 {
		t.Fatalf("no admin in context status = %d, want 403", rec.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithAdmin(r.Context(), models.Admin{Role: models.RoleModerator}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != 403 {
		t.Fatalf("moderator status = %d, want 403", rec.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithAdmin(r.Context(), models.Admin{Role: models.RoleOwner}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != 204 {
		t.Fatalf("owner status = %d, want 204", rec.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	})
	h := RateLimit(rate.NewLimiter(), "test", 2, time.Minute, false)(next)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.9:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code != 204 {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.9:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != 429 {
		t.Fatalf("over-limit status = %d, want 429", rec.Code)
	}

	// A different client keeps its own budget.
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.10:1000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != 204 {
		t.Fatalf("other client status = %d, want 204", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})
	rec := httptest.NewRecorder()
	RequestIDMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" {
		t.Fatal("request id missing from context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("header %q != context %q", rec.Header().Get("X-Request-ID"), seen)
	}
}
