package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/extract"
	"jobtrack-engine/internal/httpapi"
	"jobtrack-engine/internal/logging"
	"jobtrack-engine/internal/match"
	"jobtrack-engine/internal/poll"
	"jobtrack-engine/internal/reconcile"
	"jobtrack-engine/internal/runlock"
	"jobtrack-engine/internal/store"
)

func main() {
	var (
		cfgFlag     = flag.String("config", "", "path to config.yml (default: <data dir>/config.yml)")
		envFlag     = flag.String("env", ".env", "dotenv file to load before reading the environment")
		once        = flag.Bool("once", false, "run one reconciliation pass and exit")
		resetLedger = flag.Bool("reset-ledger", false, "clear the processed-email ledger and exit")
	)
	flag.Parse()

	log := logging.GetLogger()
	if err := run(log, *cfgFlag, *envFlag, *once, *resetLedger); err != nil {
		log.WithError(err).Fatal("engine stopped")
	}
}

func run(log *logrus.Logger, cfgPath, envPath string, once, resetLedger bool) error {
	if err := config.LoadDotEnv(envPath); err != nil {
		return fmt.Errorf("load %s: %w", envPath, err)
	}

	// Engine data dir: use env if provided (the desktop shell passes one), else local folder.
	dataDir := os.Getenv("JOBTRACK_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}

	userCfgPath := cfgPath
	if userCfgPath == "" {
		p, err := config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			return fmt.Errorf("config bootstrap: %w", err)
		}
		userCfgPath = p
	}

	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return config.Config{}, err
		}
		config.ApplyEnv(&cfg)
		cfg, vr := config.NormalizeAndValidate(cfg)
		for _, w := range vr.Warnings {
			logging.Component("config").Warn(w)
		}
		if !vr.OK() {
			return config.Config{}, fmt.Errorf("invalid config: %v", vr.Errors)
		}
		return cfg, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		return fmt.Errorf("config load (%s): %w", userCfgPath, err)
	}
	var cfgVal atomic.Value // stores config.Config
	cfgVal.Store(cfg)

	log = logging.Configure(cfg.Logging.Level, cfg.Logging.Format)

	dbPath := filepath.Join(dataDir, "jobtrack.db")
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if resetLedger {
		n, err := db.Ledger().Reset(ctx)
		if err != nil {
			return err
		}
		log.WithField("deleted", n).Info("ledger reset")
		return nil
	}

	lock, err := runlock.New(dataDir)
	if err != nil {
		return err
	}

	hub := events.NewHub()
	engine := reconcile.New(db.Applications(), db.Ledger(), match.New(cfg.MatchWindow()), log)
	runner := &poll.Runner{
		Dial:      poll.IMAPDialer(log),
		Extractor: extract.NewLimited(extract.Heuristic{}, cfg.Extract.RatePerSec, cfg.Extract.Burst),
		Engine:    engine,
		Ledger:    db.Ledger(),
		Lock:      lock,
		Hub:       hub,
		Log:       log,
	}

	if once {
		res, err := runner.RunOnce(ctx, cfg)
		if err != nil && !errors.Is(err, runlock.ErrBusy) {
			return err
		}
		log.WithFields(logrus.Fields{
			"fetched": res.Fetched,
			"created": res.Created,
			"updated": res.Updated,
			"skipped": res.Skipped,
			"failed":  res.Failed,
		}).Info("run complete")
		return nil
	}

	runner.Start(ctx, &cfgVal)

	handler := httpapi.NewHandler(httpapi.Deps{
		Apps:        db.Applications(),
		Ledger:      db.Ledger(),
		Editor:      engine,
		Runner:      runner,
		Hub:         hub,
		Log:         log,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		BaseCtx:     ctx,
	})

	// Bind to a predictable local port so the UI can find it.
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"addr": addr, "db": dbPath, "config": userCfgPath}).Info("engine listening")

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
