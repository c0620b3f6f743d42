package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"jobtrack-engine/internal/config"
)

type RunHandler struct {
	Runner  Runner
	CfgVal  *atomic.Value // config.Config
	BaseCtx context.Context
	Log     logrus.FieldLogger
}

func (h RunHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Runner.Status())
}

// Run starts a reconciliation run in the background. Overlap with a scheduled run
// is refused by the run lock, so a second request only reports it.
func (h RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Runner.Status().Running {
		WriteJSON(w, http.StatusConflict, map[string]any{"ok": false, "msg": "already running"})
		return
	}

	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := h.CfgVal.Load().(config.Config)
	reqID := RequestIDFrom(r.Context())

	go func() {
		if _, err := h.Runner.RunOnce(ctx, cfg); err != nil && h.Log != nil {
			h.Log.WithError(err).WithField("request_id", reqID).Warn("manual run failed")
		}
	}()

	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
