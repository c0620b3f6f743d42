package httpapi

import (
	"net/http"
	"strconv"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/store"
)

type LedgerHandler struct {
	Ledger *store.Ledger
	Hub    *events.Hub
}

// Review lists consumed emails that produced no application.
func (h LedgerHandler) Review(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Ledger.Unlinked(r.Context(), limit)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.ProcessedEmail{}
	}
	writeJSON(w, entries)
}

type resetReq struct {
	Confirm bool `json:"confirm" validate:"required"`
}

// Reset truncates the ledger so every email is reprocessed on the next run.
func (h LedgerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetReq
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := h.Ledger.Reset(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	h.Hub.Emit(RequestIDFrom(r.Context()), events.LedgerReset, map[string]any{"deleted": n})
	writeJSON(w, map[string]any{"ok": true, "deleted": n})
}
