package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eventdesk/internal/calendar"
	"eventdesk/internal/middleware"
	"eventdesk/internal/service"
	"eventdesk/internal/store"
	"eventdesk/internal/util"
)

func (h *Handlers) SubmitProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExternalID string `json:"external_id"`
		FullName   string `json:"full_name"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		Position   string `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	u, err := h.svc.SubmitProfile(r.Context(), service.Profile{
		ExternalID: req.ExternalID,
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		Position:   req.Position,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			util.WriteError(w, 409, "already_approved", "account already approved", middleware.RequestID(r.Context()))
			return
		}
		util.WriteError(w, 400, "profile_rejected", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 201, map[string]any{"status": string(u.Status), "user_id": u.ID, "rank": u.Rank})
}

func (h *Handlers) GatewayMe(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	util.WriteJSON(w, 200, u)
}

func (h *Handlers) GatewayEvents(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	after := r.URL.Query().Get("after")
	limit := queryInt(r, "limit", 10)
	events := h.svc.VisibleEvents(r.Context(), u, after, limit)
	util.WriteJSON(w, 200, map[string]any{"events": events})
}

func (h *Handlers) GatewaySearch(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	q := r.URL.Query().Get("q")
	if q == "" {
		util.WriteError(w, 400, "bad_request", "q parameter required", middleware.RequestID(r.Context()))
		return
	}
	events := h.svc.SearchVisible(r.Context(), u, q, queryInt(r, "limit", 20))
	util.WriteJSON(w, 200, map[string]any{"events": events})
}

func (h *Handlers) GatewayEvent(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	ev, regStatus, err := h.svc.EventForUser(r.Context(), u, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		util.WriteError(w, 404, "not_found", "event not found", middleware.RequestID(r.Context()))
		return
	}
	if errors.Is(err, service.ErrRankTooLow) {
		util.WriteError(w, 403, "rank_too_low", "event not available at your rank", middleware.RequestID(r.Context()))
		return
	}
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]any{"event": ev, "registration_status": regStatus})
}

func (h *Handlers) GatewayEventICS(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	ev, _, err := h.svc.EventForUser(r.Context(), u, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		util.WriteError(w, 404, "not_found", "event not found", middleware.RequestID(r.Context()))
		return
	}
	if err != nil {
		util.WriteError(w, 403, "forbidden", "event not available", middleware.RequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="event.ics"`)
	w.WriteHeader(200)
	_, _ = w.Write(calendar.GenerateICS(ev))
}

// GatewayEventInvite serves the event as a full mail message with the
// calendar attachment, for employees who want it in their inbox client.
func (h *Handlers) GatewayEventInvite(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	if u.Email == "" {
		util.WriteError(w, 400, "no_email", "profile has no email address", middleware.RequestID(r.Context()))
		return
	}
	ev, _, err := h.svc.EventForUser(r.Context(), u, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		util.WriteError(w, 404, "not_found", "event not found", middleware.RequestID(r.Context()))
		return
	}
	if err != nil {
		util.WriteError(w, 403, "forbidden", "event not available", middleware.RequestID(r.Context()))
		return
	}
	raw, err := calendar.BuildInviteMail(h.cfg.InviteFrom, u.Email, ev)
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "message/rfc822")
	w.Header().Set("Content-Disposition", `attachment; filename="invite.eml"`)
	w.WriteHeader(200)
	_, _ = w.Write(raw)
}

func (h *Handlers) GatewayRegister(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	outcome, err := h.svc.RequestRegistration(r.Context(), u.ExternalID, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		util.WriteError(w, 404, "not_found", "event not found", middleware.RequestID(r.Context()))
		return
	case errors.Is(err, service.ErrRankTooLow):
		util.WriteError(w, 403, "rank_too_low", "event requires a higher rank", middleware.RequestID(r.Context()))
		return
	case errors.Is(err, store.ErrConflict):
		util.WriteError(w, 409, "already_registered", "registration already exists", middleware.RequestID(r.Context()))
		return
	case err != nil:
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 201, map[string]string{"status": string(outcome)})
}

func (h *Handlers) GatewayCancel(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	if err := h.svc.CancelRegistration(r.Context(), u.ExternalID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WriteError(w, 404, "not_found", "no registration for this event", middleware.RequestID(r.Context()))
			return
		}
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "cancelled"})
}

func (h *Handlers) GatewayMyEvents(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.User(r.Context())
	items, err := h.svc.UserEvents(r.Context(), u.ExternalID)
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]any{"registrations": items})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
