// Package reconcile turns parsed candidates into application records: ledger check,
// match, create-or-update, status hierarchy, persistence, ledger mark.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/match"
	"jobtrack-engine/internal/status"
	"jobtrack-engine/internal/store"
)

var ErrUnknownStatus = errors.New("unknown status")

type ApplicationStore interface {
	LoadAll(ctx context.Context) ([]domain.Application, error)
	Get(ctx context.Context, id string) (domain.Application, error)
	Create(ctx context.Context, a domain.Application) (domain.Application, error)
	Update(ctx context.Context, a domain.Application) error
	FindByIdentity(ctx context.Context, company, title string, date time.Time) (domain.Application, error)
}

type Ledger interface {
	Has(ctx context.Context, emailID string) (bool, error)
	MarkProcessed(ctx context.Context, emailID, applicationID string) error
	MarkUnusable(ctx context.Context, emailID, note string) error
}

// Engine is a single-writer reconciler. It holds no locks; overlapping runs are
// serialized by the store's unique keys.
type Engine struct {
	Store   ApplicationStore
	Ledger  Ledger
	Matcher match.Matcher
	Log     logrus.FieldLogger
	Now     func() time.Time
}

func New(s ApplicationStore, l Ledger, m match.Matcher, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{Store: s, Ledger: l, Matcher: m, Log: log, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) logger(c domain.Candidate) logrus.FieldLogger {
	return e.Log.WithFields(logrus.Fields{
		"component": "reconcile",
		"email_id":  c.EmailID,
	})
}

// Reconcile processes one candidate. A returned error is always scoped to this
// candidate; when it wraps ErrPersistence the ledger has not been marked.
func (e *Engine) Reconcile(ctx context.Context, c domain.Candidate) (Outcome, error) {
	c.EmailID = strings.TrimSpace(c.EmailID)
	if c.EmailID == "" {
		return Outcome{}, fmt.Errorf("%w: empty email id", ErrMalformedCandidate)
	}

	seen, err := e.Ledger.Has(ctx, c.EmailID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: ledger lookup: %w", ErrPersistence, err)
	}
	if seen {
		return Outcome{Kind: Skipped, Reason: AlreadyProcessed}, nil
	}

	apps, err := e.Store.LoadAll(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: load applications: %w", ErrPersistence, err)
	}
	return e.reconcileAgainst(ctx, c, apps, true)
}

func (e *Engine) reconcileAgainst(ctx context.Context, c domain.Candidate, apps []domain.Application, retry bool) (Outcome, error) {
	res := e.Matcher.Match(c, apps)
	if res.Ambiguous {
		e.logger(c).WithFields(logrus.Fields{
			"chosen": res.App.ID,
			"tied":   res.Tied,
		}).Warn("ambiguous match resolved by tie-break")
	}

	switch res.Kind {
	case match.ExactEmailMatch, match.RelatedMatch:
		return e.update(ctx, c, res)
	default:
		return e.create(ctx, c, retry)
	}
}

func (e *Engine) update(ctx context.Context, c domain.Candidate, res match.Result) (Outcome, error) {
	log := e.logger(c)
	app := res.App
	out := Outcome{Kind: Updated, Ambiguous: res.Ambiguous}

	if proposed, ok := status.Parse(c.InferredStatus); ok {
		next, err := status.Transition(app.Status, proposed)
		if errors.Is(err, status.ErrTransitionRejected) {
			out.StatusRejected = true
			log.WithFields(logrus.Fields{
				"application_id": app.ID,
				"current":        app.Status,
				"proposed":       proposed,
			}).Info("status transition rejected; keeping current status")
		}
		app.Status = next
	}

	// fill, never overwrite
	filledTitle := false
	if strings.TrimSpace(app.JobTitle) == "" && strings.TrimSpace(c.JobTitle) != "" {
		app.JobTitle = strings.TrimSpace(c.JobTitle)
		filledTitle = true
	}
	if strings.TrimSpace(app.Location) == "" {
		app.Location = strings.TrimSpace(c.Location)
	}

	app.EmailID = c.EmailID
	if v := strings.TrimSpace(c.Sender); v != "" {
		app.Sender = v
	}
	if v := strings.TrimSpace(c.Subject); v != "" {
		app.Subject = v
	}
	if c.Confidence != "" {
		app.Confidence = c.Confidence
	}
	app.LastUpdated = e.now()

	err := e.Store.Update(ctx, app)
	if errors.Is(err, store.ErrDuplicate) && filledTitle {
		// the filled title collides with a sibling row; keep this one untitled
		log.WithField("application_id", app.ID).Info("title fill conflicts with another application; skipping fill")
		app.JobTitle = res.App.JobTitle
		err = e.Store.Update(ctx, app)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: update %s: %w", ErrPersistence, app.ID, err)
	}
	if err := e.Ledger.MarkProcessed(ctx, c.EmailID, app.ID); err != nil {
		return Outcome{}, fmt.Errorf("%w: mark processed: %w", ErrPersistence, err)
	}

	out.App = app
	log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"match":          res.Kind.String(),
		"status":         app.Status,
	}).Info("application updated")
	return out, nil
}

func (e *Engine) create(ctx context.Context, c domain.Candidate, retry bool) (Outcome, error) {
	log := e.logger(c)

	company := strings.Join(strings.Fields(c.Company), " ")
	if company == "" {
		return e.unusable(ctx, c, "missing company", true)
	}
	if c.ObservedDate.IsZero() {
		return e.unusable(ctx, c, "missing observed date", false)
	}

	st := status.Applied
	if raw := strings.TrimSpace(c.InferredStatus); raw != "" {
		parsed, ok := status.Parse(raw)
		if !ok {
			return e.unusable(ctx, c, fmt.Sprintf("unrecognized status %q", raw), false)
		}
		st = parsed
	}

	now := e.now()
	app := domain.Application{
		EmailID:         c.EmailID,
		Company:         company,
		JobTitle:        strings.TrimSpace(c.JobTitle),
		Location:        strings.TrimSpace(c.Location),
		Status:          st,
		ApplicationDate: c.ObservedDate.UTC(),
		Sender:          strings.TrimSpace(c.Sender),
		Subject:         strings.TrimSpace(c.Subject),
		Confidence:      c.Confidence,
		LastUpdated:     now,
		CreatedAt:       now,
	}

	created, err := e.Store.Create(ctx, app)
	if errors.Is(err, store.ErrDuplicate) && retry {
		// another run inserted the same application; reconcile against the fresh set
		log.Info("concurrent insert detected; retrying match")
		apps, lerr := e.Store.LoadAll(ctx)
		if lerr != nil {
			return Outcome{}, fmt.Errorf("%w: reload applications: %w", ErrPersistence, lerr)
		}
		return e.reconcileAgainst(ctx, c, apps, false)
	}
	if errors.Is(err, store.ErrDuplicate) {
		// the row holding this identity did not match; link to it rather than fail forever
		existing, ferr := e.Store.FindByIdentity(ctx, app.Company, app.JobTitle, app.ApplicationDate)
		if ferr != nil {
			return Outcome{}, fmt.Errorf("%w: find conflicting application: %w", ErrPersistence, ferr)
		}
		log.WithField("application_id", existing.ID).Info("identity conflict; linking to existing application")
		return e.update(ctx, c, match.Result{Kind: match.RelatedMatch, App: existing})
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: create: %w", ErrPersistence, err)
	}

	if err := e.Ledger.MarkProcessed(ctx, c.EmailID, created.ID); err != nil {
		return Outcome{}, fmt.Errorf("%w: mark processed: %w", ErrPersistence, err)
	}

	log.WithFields(logrus.Fields{
		"application_id": created.ID,
		"company":        created.Company,
		"title":          created.JobTitle,
		"status":         created.Status,
	}).Info("application created")
	return Outcome{Kind: Created, App: created}, nil
}

// unusable consumes the email without producing an application so it is not
// reprocessed forever.
func (e *Engine) unusable(ctx context.Context, c domain.Candidate, note string, review bool) (Outcome, error) {
	if err := e.Ledger.MarkUnusable(ctx, c.EmailID, note); err != nil {
		return Outcome{}, fmt.Errorf("%w: mark unusable: %w", ErrPersistence, err)
	}
	e.logger(c).WithFields(logrus.Fields{
		"note":    note,
		"subject": c.Subject,
		"sender":  c.Sender,
	}).Info("candidate unusable")
	return Outcome{Kind: Skipped, Reason: Unusable, NeedsReview: review, Note: note}, nil
}

// SetStatus is the out-of-band human edit. It obeys the same hierarchy as
// reconciliation and returns status.ErrTransitionRejected otherwise.
func (e *Engine) SetStatus(ctx context.Context, id, raw string) (domain.Application, error) {
	proposed, ok := status.Parse(raw)
	if !ok {
		return domain.Application{}, fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	app, err := e.Store.Get(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	next, err := status.Transition(app.Status, proposed)
	if err != nil {
		return app, fmt.Errorf("%s -> %s: %w", app.Status, proposed, err)
	}
	if next == app.Status {
		return app, nil
	}
	app.Status = next
	app.LastUpdated = e.now()
	if err := e.Store.Update(ctx, app); err != nil {
		return domain.Application{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return app, nil
}

// SetLocation overwrites the location; unlike reconciliation, a human edit wins.
func (e *Engine) SetLocation(ctx context.Context, id, location string) (domain.Application, error) {
	app, err := e.Store.Get(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	app.Location = strings.TrimSpace(location)
	app.LastUpdated = e.now()
	if err := e.Store.Update(ctx, app); err != nil {
		return domain.Application{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return app, nil
}
