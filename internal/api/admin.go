package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"eventdesk/internal/middleware"
	"eventdesk/internal/models"
	"eventdesk/internal/service"
	"eventdesk/internal/store"
	"eventdesk/internal/util"
)

func (h *Handlers) AdminMe(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	util.WriteJSON(w, 200, a)
}

func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	util.WriteJSON(w, 200, h.svc.Stats(r.Context()))
}

func (h *Handlers) ModerationNext(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	ev, ok := h.svc.ModerationNext(r.Context(), a.ID)
	if !ok {
		util.WriteJSON(w, 200, map[string]any{"empty": true})
		return
	}
	util.WriteJSON(w, 200, map[string]any{"empty": false, "event": ev})
}

func (h *Handlers) ModerationSkip(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	ev, ok := h.svc.ModerationSkip(r.Context(), a.ID)
	if !ok {
		util.WriteJSON(w, 200, map[string]any{"empty": true})
		return
	}
	util.WriteJSON(w, 200, map[string]any{"empty": false, "event": ev})
}

func (h *Handlers) AdminListEvents(w http.ResponseWriter, r *http.Request) {
	q := models.EventQuery{
		Status:   models.EventStatus(r.URL.Query().Get("status")),
		Source:   models.EventSource(r.URL.Query().Get("source")),
		Q:        r.URL.Query().Get("q"),
		AfterID:  r.URL.Query().Get("after"),
		Limit:    queryInt(r, "limit", 20),
		Offset:   queryInt(r, "offset", 0),
		MinScore: queryInt(r, "min_score", 0),
	}
	util.WriteJSON(w, 200, map[string]any{"events": h.svc.ListEvents(r.Context(), q)})
}

func (h *Handlers) AdminSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		util.WriteError(w, 400, "bad_request", "q parameter required", middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]any{"events": h.svc.SearchAll(r.Context(), q, queryInt(r, "limit", 20))})
}

func (h *Handlers) AdminCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string     `json:"title"`
		Description  string     `json:"description"`
		Location     string     `json:"location"`
		DateText     string     `json:"date_text"`
		EventAt      *time.Time `json:"event_at"`
		SourceURL    string     `json:"source_url"`
		RequiredRank int        `json:"required_rank"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	ev, err := h.svc.CreateManualEvent(r.Context(), service.ManualEvent{
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		DateText:     req.DateText,
		EventAt:      req.EventAt,
		SourceURL:    req.SourceURL,
		RequiredRank: req.RequiredRank,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			util.WriteError(w, 409, "duplicate_url", "event with this link already exists", middleware.RequestID(r.Context()))
			return
		}
		util.WriteError(w, 400, "create_failed", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 201, ev)
}

func (h *Handlers) decideEvent(w http.ResponseWriter, r *http.Request, approve bool) {
	a, _ := middleware.Admin(r.Context())
	err := h.svc.DecideEvent(r.Context(), a.ID, chi.URLParam(r, "id"), approve)
	if errors.Is(err, store.ErrNotFound) {
		util.WriteError(w, 409, "already_decided", "event already decided or missing", middleware.RequestID(r.Context()))
		return
	}
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handlers) AdminApproveEvent(w http.ResponseWriter, r *http.Request) {
	h.decideEvent(w, r, true)
}

func (h *Handlers) AdminRejectEvent(w http.ResponseWriter, r *http.Request) {
	h.decideEvent(w, r, false)
}

func (h *Handlers) AdminDeleteEvent(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	err := h.svc.DeleteEvent(r.Context(), a.ID, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		util.WriteError(w, 404, "not_found", "event not found", middleware.RequestID(r.Context()))
		return
	}
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "deleted"})
}

func (h *Handlers) AdminEventParticipants(w http.ResponseWriter, r *http.Request) {
	users := h.svc.EventParticipants(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	util.WriteJSON(w, 200, map[string]any{"participants": users})
}

func (h *Handlers) RegistrationNext(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	reg, ok := h.svc.RegistrationQueueNext(r.Context(), a.ID)
	if !ok {
		util.WriteJSON(w, 200, map[string]any{"empty": true})
		return
	}
	util.WriteJSON(w, 200, map[string]any{"empty": false, "registration": reg})
}

func (h *Handlers) RegistrationSkip(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	reg, ok := h.svc.RegistrationQueueSkip(r.Context(), a.ID)
	if !ok {
		util.WriteJSON(w, 200, map[string]any{"empty": true})
		return
	}
	util.WriteJSON(w, 200, map[string]any{"empty": false, "registration": reg})
}

func (h *Handlers) decideRegistration(w http.ResponseWriter, r *http.Request, approve bool) {
	a, _ := middleware.Admin(r.Context())
	err := h.svc.DecideRegistration(r.Context(), a.ID, chi.URLParam(r, "userID"), chi.URLParam(r, "eventID"), approve)
	if errors.Is(err, store.ErrConflict) {
		util.WriteError(w, 409, "already_decided", "registration already decided", middleware.RequestID(r.Context()))
		return
	}
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handlers) AdminApproveRegistration(w http.ResponseWriter, r *http.Request) {
	h.decideRegistration(w, r, true)
}

func (h *Handlers) AdminRejectRegistration(w http.ResponseWriter, r *http.Request) {
	h.decideRegistration(w, r, false)
}

func (h *Handlers) UserQueueNext(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	u, ok := h.svc.UserQueueNext(r.Context(), a.ID)
	if !ok {
		util.WriteJSON(w, 200, map[string]any{"empty": true})
		return
	}
	util.WriteJSON(w, 200, map[string]any{"empty": false, "user": u})
}

func (h *Handlers) UserQueueSkip(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	u, ok := h.svc.UserQueueSkip(r.Context(), a.ID)
	if !ok {
		util.WriteJSON(w, 200, map[string]any{"empty": true})
		return
	}
	util.WriteJSON(w, 200, map[string]any{"empty": false, "user": u})
}

func (h *Handlers) decideUser(w http.ResponseWriter, r *http.Request, approve bool) {
	a, _ := middleware.Admin(r.Context())
	err := h.svc.DecideUser(r.Context(), a.ID, chi.URLParam(r, "id"), approve)
	if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
		util.WriteError(w, 409, "already_decided", "account already decided or missing", middleware.RequestID(r.Context()))
		return
	}
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handlers) AdminApproveUser(w http.ResponseWriter, r *http.Request) {
	h.decideUser(w, r, true)
}

func (h *Handlers) AdminRejectUser(w http.ResponseWriter, r *http.Request) {
	h.decideUser(w, r, false)
}

func (h *Handlers) AdminRunIngest(w http.ResponseWriter, r *http.Request) {
	if h.ingest == nil {
		util.WriteError(w, 503, "ingest_disabled", "no ingestion sources configured", middleware.RequestID(r.Context()))
		return
	}
	created, err := h.ingest.RunOnce(r.Context())
	if err != nil {
		util.WriteError(w, 502, "ingest_failed", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]any{"status": "ok", "created": created})
}

func (h *Handlers) AdminList(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	admins, err := h.svc.ListAdmins(r.Context(), a)
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]any{"admins": admins})
}

func (h *Handlers) AdminAdd(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	var req struct {
		ExternalID string `json:"external_id"`
		Username   string `json:"username"`
		Role       string `json:"role"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	created, err := h.svc.AddAdmin(r.Context(), a, req.ExternalID, req.Username, models.AdminRole(req.Role), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			util.WriteError(w, 403, "forbidden", err.Error(), middleware.RequestID(r.Context()))
			return
		}
		if errors.Is(err, store.ErrConflict) {
			util.WriteError(w, 409, "conflict", "admin already exists", middleware.RequestID(r.Context()))
			return
		}
		util.WriteError(w, 400, "add_failed", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 201, created)
}

func (h *Handlers) AdminRemove(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	err := h.svc.RemoveAdmin(r.Context(), a, chi.URLParam(r, "id"))
	if errors.Is(err, service.ErrForbidden) {
		util.WriteError(w, 403, "forbidden", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		util.WriteError(w, 404, "not_found", "admin not found", middleware.RequestID(r.Context()))
		return
	}
	if err != nil {
		util.WriteError(w, 500, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "removed"})
}

func (h *Handlers) AdminChangeRole(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteError(w, 400, "bad_request", "invalid json", middleware.RequestID(r.Context()))
		return
	}
	err := h.svc.ChangeAdminRole(r.Context(), a, chi.URLParam(r, "id"), models.AdminRole(req.Role))
	if errors.Is(err, service.ErrForbidden) {
		util.WriteError(w, 403, "forbidden", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		util.WriteError(w, 404, "not_found", "admin not found", middleware.RequestID(r.Context()))
		return
	}
	if err != nil {
		util.WriteError(w, 400, "change_failed", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "ok"})
}
