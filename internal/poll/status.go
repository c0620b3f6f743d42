package poll

import (
	"time"

	"jobtrack-engine/internal/events"
)

// Status is the last-run summary shown on the dashboard.
type Status struct {
	Running   bool      `json:"running"`
	LastRunAt string    `json:"last_run_at"`
	LastOkAt  string    `json:"last_ok_at"`
	LastError string    `json:"last_error"`
	Last      RunResult `json:"last"`
}

func (r *Runner) Status() Status {
	st, _ := r.status.Load().(Status)
	return st
}

func (r *Runner) markRunning() {
	st := r.Status()
	st.Running = true
	st.LastRunAt = r.now().Format(time.RFC3339)
	r.status.Store(st)
}

func (r *Runner) finish(res RunResult, err error) {
	st := r.Status()
	st.Running = false
	st.Last = res
	if err != nil {
		st.LastError = err.Error()
		r.log().WithError(err).Error("run failed")
	} else {
		st.LastError = ""
		st.LastOkAt = r.now().Format(time.RFC3339)
		r.log().WithField("created", res.Created).
			WithField("updated", res.Updated).
			WithField("skipped", res.Skipped).
			WithField("failed", res.Failed).
			Info("run ok")
	}
	r.status.Store(st)
	r.Hub.Emit("", events.RunFinished, st)
}
