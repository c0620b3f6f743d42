package httpapi

import "net/http"

// NewMux returns the raw mux so main can wrap it with middleware.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: HealthHandler{}.Health,
	}))

	// Applications
	ah := ApplicationsHandler{Apps: d.Apps, Editor: d.Editor, Hub: d.Hub}
	mux.HandleFunc("/applications", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ah.List,
	}))
	mux.HandleFunc("/applications/status", methodMux(map[string]http.HandlerFunc{
		http.MethodPut: ah.SetStatus,
	}))
	mux.HandleFunc("/applications/location", methodMux(map[string]http.HandlerFunc{
		http.MethodPut: ah.SetLocation,
	}))

	sh := StatsHandler{Apps: d.Apps}
	mux.HandleFunc("/statistics", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Statistics,
	}))
	mux.HandleFunc("/funnel", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Funnel,
	}))

	// Ledger
	lh := LedgerHandler{Ledger: d.Ledger, Hub: d.Hub}
	mux.HandleFunc("/ledger/review", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Review,
	}))
	mux.HandleFunc("/ledger/reset", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: lh.Reset,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		Hub:         d.Hub,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sec := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/imap", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sec.SetIMAPPassword,
	}))

	// Runs
	rh := RunHandler{Runner: d.Runner, CfgVal: d.CfgVal, BaseCtx: d.BaseCtx, Log: d.Log}
	mux.HandleFunc("/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Run,
	}))
	mux.HandleFunc("/run/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Status,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	return mux
}

// NewHandler wraps NewMux with the standard middleware chain.
func NewHandler(d Deps) http.Handler {
	return Chain(NewMux(d), RequestID, Recover(d.Log), AccessLog(d.Log), Cors)
}
