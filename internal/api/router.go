package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"eventdesk/internal/config"
	"eventdesk/internal/middleware"
	"eventdesk/internal/models"
	"eventdesk/internal/rate"
	"eventdesk/internal/service"
	"eventdesk/internal/util"
	"eventdesk/internal/version"
)

// IngestRunner lets admins trigger a scan cycle from the panel without the
// api package depending on the ingest wiring.
type IngestRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

type Handlers struct {
	cfg     config.Config
	svc     *service.Service
	limiter *rate.Limiter
	ingest  IngestRunner
}

func NewRouter(cfg config.Config, svc *service.Service, runner IngestRunner) http.Handler {
	h := &Handlers{
		cfg:     cfg,
		svc:     svc,
		limiter: rate.NewLimiter(),
		ingest:  runner,
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Actor-ID"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, map[string]any{"status": "ok", "version": version.Current()})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ready := map[string]any{
			"checked_at": time.Now().UTC().Format(time.RFC3339),
			"components": map[string]any{},
		}
		comps := ready["components"].(map[string]any)
		if err := h.svc.Ping(r.Context()); err != nil {
			comps["sqlite"] = map[string]any{"ok": false, "error": err.Error()}
			ready["status"] = "degraded"
			util.WriteJSON(w, 503, ready)
			return
		}
		comps["sqlite"] = map[string]any{"ok": true}
		ready["status"] = "ready"
		util.WriteJSON(w, 200, ready)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(h.limiter, "login", 20, time.Minute, h.cfg.TrustProxy)).Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		// Chat gateway surface. Profile submission needs only the shared
		// token; everything else resolves the acting employee.
		r.Route("/gateway", func(r chi.Router) {
			r.With(
				middleware.GatewayToken(h.cfg.GatewayToken),
				middleware.RateLimit(h.limiter, "profile", 10, time.Minute, h.cfg.TrustProxy),
			).Post("/profile", h.SubmitProfile)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Gateway(h.svc, h.cfg.GatewayToken))
				r.Get("/events", h.GatewayEvents)
				r.Get("/events/search", h.GatewaySearch)
				r.Get("/events/{id}", h.GatewayEvent)
				r.Get("/events/{id}/ics", h.GatewayEventICS)
				r.Get("/events/{id}/invite", h.GatewayEventInvite)
				r.Post("/events/{id}/register", h.GatewayRegister)
				r.Post("/events/{id}/cancel", h.GatewayCancel)
				r.Get("/me", h.GatewayMe)
				r.Get("/me/events", h.GatewayMyEvents)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Authn(h.svc, h.cfg.SessionCookieName))
			r.Get("/me", h.AdminMe)
			r.Get("/stats", h.AdminStats)

			r.Get("/moderation/next", h.ModerationNext)
			r.Post("/moderation/skip", h.ModerationSkip)
			r.Get("/events", h.AdminListEvents)
			r.Get("/events/search", h.AdminSearch)
			r.Post("/events", h.AdminCreateEvent)
			r.Post("/events/{id}/approve", h.AdminApproveEvent)
			r.Post("/events/{id}/reject", h.AdminRejectEvent)
			r.Delete("/events/{id}", h.AdminDeleteEvent)
			r.Get("/events/{id}/participants", h.AdminEventParticipants)

			r.Get("/registrations/next", h.RegistrationNext)
			r.Post("/registrations/skip", h.RegistrationSkip)
			r.Post("/registrations/{userID}/{eventID}/approve", h.AdminApproveRegistration)
			r.Post("/registrations/{userID}/{eventID}/reject", h.AdminRejectRegistration)

			r.Get("/users/next", h.UserQueueNext)
			r.Post("/users/skip", h.UserQueueSkip)
			r.Post("/users/{id}/approve", h.AdminApproveUser)
			r.Post("/users/{id}/reject", h.AdminRejectUser)

			r.Post("/ingest/run", h.AdminRunIngest)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleGreatAdmin))
				r.Get("/admins", h.AdminList)
				r.Post("/admins", h.AdminAdd)
				r.Delete("/admins/{id}", h.AdminRemove)
				r.Post("/admins/{id}/role", h.AdminChangeRole)
			})
		})
	})

	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	token, admin, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		util.WriteError(w, 401, "invalid_credentials", "invalid credentials", middleware.RequestID(r.Context()))
		return
	}
	h.setSessionCookie(w, token)
	util.WriteJSON(w, 200, map[string]string{"admin_id": admin.ID, "username": admin.Username, "role": string(admin.Role)})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, _ := r.Cookie(h.cfg.SessionCookieName); c != nil && c.Value != "" {
		if _, sess, err := h.svc.ValidateSession(r.Context(), c.Value); err == nil {
			_ = h.svc.Logout(r.Context(), sess.ID)
		}
	}
	h.clearSessionCookie(w)
	util.WriteJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   h.cfg.SessionAbsoluteHour * 3600,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
