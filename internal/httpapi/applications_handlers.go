package httpapi

import (
	"errors"
	"net/http"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/reconcile"
	"jobtrack-engine/internal/status"
	"jobtrack-engine/internal/store"
)

type ApplicationsHandler struct {
	Apps   *store.Applications
	Editor Editor
	Hub    *events.Hub
}

func (h ApplicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	apps, err := h.Apps.List(r.Context(), store.ListFilter{
		Status:  q.Get("status"),
		Company: q.Get("company"),
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if apps == nil {
		apps = []domain.Application{}
	}
	writeJSON(w, apps)
}

type setStatusReq struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required"`
}

func (h ApplicationsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusReq
	if !decodeBody(w, r, &req) {
		return
	}
	app, err := h.Editor.SetStatus(r.Context(), req.ID, req.Status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", "application not found")
		return
	case errors.Is(err, reconcile.ErrUnknownStatus):
		WriteError(w, r, http.StatusBadRequest, "unknown_status", err.Error())
		return
	case errors.Is(err, status.ErrTransitionRejected):
		WriteError(w, r, http.StatusConflict, "transition_rejected", err.Error())
		return
	case err != nil:
		writeStoreError(w, r, err)
		return
	}
	h.Hub.Emit(RequestIDFrom(r.Context()), events.ApplicationUpdated, app)
	writeJSON(w, app)
}

type setLocationReq struct {
	ID       string `json:"id" validate:"required"`
	Location string `json:"location" validate:"max=100"`
}

func (h ApplicationsHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	var req setLocationReq
	if !decodeBody(w, r, &req) {
		return
	}
	app, err := h.Editor.SetLocation(r.Context(), req.ID, req.Location)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	h.Hub.Emit(RequestIDFrom(r.Context()), events.ApplicationUpdated, app)
	writeJSON(w, app)
}

type StatsHandler struct {
	Apps *store.Applications
}

func (h StatsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.Apps.Stats(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, st)
}

func (h StatsHandler) Funnel(w http.ResponseWriter, r *http.Request) {
	st, err := h.Apps.Stats(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, store.Funnel(st))
}
