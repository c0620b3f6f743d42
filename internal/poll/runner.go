// Package poll drives reconciliation runs: fetch, pre-filter, extract, reconcile,
// mark seen.
package poll

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/extract"
	"jobtrack-engine/internal/logging"
	"jobtrack-engine/internal/mailbox"
	"jobtrack-engine/internal/reconcile"
	"jobtrack-engine/internal/scheduler"
)

const runTimeout = 5 * time.Minute

// Source is an open mailbox connection.
type Source interface {
	Fetch(ctx context.Context, q mailbox.Query) ([]mailbox.Message, error)
	MarkSeen(ctx context.Context, uids []uint32) error
	Close() error
}

type Dialer func(ctx context.Context, cfg config.Config) (Source, error)

type Locker interface {
	TryAcquire() (release func(), err error)
}

type RunResult struct {
	Fetched        int `json:"fetched"`
	AlreadySeen    int `json:"alreadySeen"`
	Filtered       int `json:"filtered"`
	NotApplication int `json:"notApplication"`
	ExtractFailed  int `json:"extractFailed"`

	reconcile.Summary
}

type Runner struct {
	Dial      Dialer
	Extractor extract.Extractor
	Engine    *reconcile.Engine
	Ledger    reconcile.Ledger
	Lock      Locker
	Hub       *events.Hub
	Log       logrus.FieldLogger
	Now       func() time.Time

	status atomic.Value // Status
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger().WithField("component", "poll")
	}
	return r.Log.WithField("component", "poll")
}

type extracted struct {
	msg  mailbox.Message
	cand domain.Candidate
	err  error
}

// RunOnce performs one reconciliation run. It returns runlock.ErrBusy (from Lock)
// when another run is in progress.
func (r *Runner) RunOnce(ctx context.Context, cfg config.Config) (res RunResult, err error) {
	if r.Lock != nil {
		release, lerr := r.Lock.TryAcquire()
		if lerr != nil {
			return RunResult{}, lerr
		}
		defer release()
	}
	if !cfg.Email.Enabled {
		r.log().Debug("email disabled; skipping run")
		return RunResult{}, nil
	}

	r.markRunning()
	defer func() { r.finish(res, err) }()
	r.Hub.Emit("", events.RunStarted, nil)

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	src, err := r.Dial(ctx, cfg)
	if err != nil {
		return RunResult{}, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			r.log().WithError(cerr).Debug("close mailbox")
		}
	}()

	q := mailbox.Query{
		Mailbox:    cfg.Email.Mailbox,
		OnlyUnseen: cfg.Email.OnlyUnseen,
		Max:        cfg.Email.MaxMessages,
	}
	if cfg.Email.LookbackDays > 0 {
		q.Since = r.now().AddDate(0, 0, -cfg.Email.LookbackDays)
	}
	msgs, err := src.Fetch(ctx, q)
	if err != nil {
		return RunResult{}, err
	}
	res.Fetched = len(msgs)

	var (
		seen    []uint32
		pending []mailbox.Message
	)
	for _, m := range msgs {
		id := m.ID()
		if id == "" {
			res.ExtractFailed++
			continue
		}
		done, herr := r.Ledger.Has(ctx, id)
		if herr != nil {
			return res, herr
		}
		if done {
			res.AlreadySeen++
			seen = append(seen, m.UID)
			continue
		}
		subject := mailbox.DecodeHeader(m.Subject)
		if len(cfg.Email.SearchSubjectAny) > 0 && !containsAnyCI(subject, cfg.Email.SearchSubjectAny) {
			res.Filtered++
			continue
		}
		pending = append(pending, m)
	}

	results := r.extractAll(ctx, cfg.Extract.Workers, pending)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	cands := make([]domain.Candidate, 0, len(results))
	byEmail := make(map[string]uint32, len(results))
	for _, x := range results {
		id := x.msg.ID()
		switch {
		case errors.Is(x.err, extract.ErrNotApplication):
			res.NotApplication++
			if merr := r.Ledger.MarkUnusable(ctx, id, "not a job application email"); merr != nil {
				logging.LogError(r.log(), "poll", "RunOnce", map[string]string{"email_id": id}, merr)
				continue
			}
			seen = append(seen, x.msg.UID)
		case x.err != nil:
			res.ExtractFailed++
			r.log().WithError(x.err).WithField("email_id", id).Warn("extraction failed; will retry next run")
		default:
			c := x.cand
			if strings.TrimSpace(c.EmailID) == "" {
				c.EmailID = id
			}
			if c.ObservedDate.IsZero() {
				c.ObservedDate = x.msg.Date.UTC()
			}
			if c.Sender == "" {
				c.Sender = x.msg.From
			}
			if c.Subject == "" {
				c.Subject = mailbox.DecodeHeader(x.msg.Subject)
			}
			cands = append(cands, c)
			byEmail[c.EmailID] = x.msg.UID
		}
	}

	res.Summary = r.Engine.RunBatch(ctx, cands)

	for _, br := range res.Summary.Results {
		if br.Err != nil {
			continue
		}
		if uid, ok := byEmail[br.EmailID]; ok {
			seen = append(seen, uid)
		}
		switch br.Outcome.Kind {
		case reconcile.Created:
			r.Hub.Emit("", events.ApplicationCreated, br.Outcome.App)
		case reconcile.Updated:
			r.Hub.Emit("", events.ApplicationUpdated, br.Outcome.App)
		}
	}

	if cfg.Email.MarkSeen && len(seen) > 0 {
		if err := src.MarkSeen(ctx, seen); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Runner) extractAll(ctx context.Context, workers int, msgs []mailbox.Message) []extracted {
	if workers <= 0 {
		workers = 1
	}
	out := make([]extracted, len(msgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, m := range msgs {
		g.Go(func() error {
			c, err := r.Extractor.Extract(gctx, m)
			out[i] = extracted{msg: m, cand: c, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Start runs RunOnce on the configured interval until ctx is done. The config is
// re-read from cfgVal before every run.
func (r *Runner) Start(ctx context.Context, cfgVal *atomic.Value) {
	cfg, _ := cfgVal.Load().(config.Config)
	go func() {
		scheduler.Every(ctx, cfg.PollInterval(), "poll", r.Log, func(ctx context.Context) error {
			cur, _ := cfgVal.Load().(config.Config)
			_, err := r.RunOnce(ctx, cur)
			return err
		})
		r.log().Info("poller stopped")
	}()
}

func containsAnyCI(s string, any []string) bool {
	ls := strings.ToLower(s)
	for _, a := range any {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if strings.Contains(ls, strings.ToLower(a)) {
			return true
		}
	}
	return false
}
