package reconcile

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/match"
	"jobtrack-engine/internal/status"
	"jobtrack-engine/internal/store"
)

func day(n int) time.Time {
	return time.Date(2025, time.January, n, 9, 0, 0, 0, time.UTC)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type harness struct {
	db  *store.DB
	eng *Engine
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "jobtrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	eng := New(db.Applications(), db.Ledger(), match.New(0), quietLogger())
	eng.Now = func() time.Time { return day(20) }
	return harness{db: db, eng: eng}
}

func (h harness) all(t *testing.T) []domain.Application {
	t.Helper()
	apps, err := h.db.Applications().LoadAll(context.Background())
	require.NoError(t, err)
	return apps
}

func cand(id string, d time.Time, company, title, st string) domain.Candidate {
	return domain.Candidate{
		EmailID:        id,
		ObservedDate:   d,
		Company:        company,
		JobTitle:       title,
		InferredStatus: st,
	}
}

func TestReconcile_CreateThenRelatedUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", "Software Engineer", "Applied"))
	require.NoError(t, err)
	assert.Equal(t, Created, out.Kind)
	assert.Equal(t, status.Applied, out.App.Status)

	out, err = h.eng.Reconcile(ctx, cand("e2", day(6), "Acme", "Software Engineer Intern", "Rejected"))
	require.NoError(t, err)
	assert.Equal(t, Updated, out.Kind)
	assert.Equal(t, status.Rejected, out.App.Status)
	assert.Equal(t, "e2", out.App.EmailID)

	apps := h.all(t)
	require.Len(t, apps, 1)
	assert.Equal(t, status.Rejected, apps[0].Status)
	assert.True(t, apps[0].ApplicationDate.Equal(day(1)))
}

func TestReconcile_ReprocessIsSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := cand("e1", day(1), "Acme", "Software Engineer", "Applied")
	_, err := h.eng.Reconcile(ctx, first)
	require.NoError(t, err)
	_, err = h.eng.Reconcile(ctx, cand("e2", day(6), "Acme", "Software Engineer Intern", "Rejected"))
	require.NoError(t, err)

	out, err := h.eng.Reconcile(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, Skipped, out.Kind)
	assert.Equal(t, AlreadyProcessed, out.Reason)

	apps := h.all(t)
	require.Len(t, apps, 1)
	assert.Equal(t, status.Rejected, apps[0].Status)
}

func TestReconcile_DifferentTitleCreatesSecondApplication(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", "Software Engineer", "Applied"))
	require.NoError(t, err)
	out, err := h.eng.Reconcile(ctx, cand("e3", day(2), "Acme", "Product Manager", "Applied"))
	require.NoError(t, err)
	assert.Equal(t, Created, out.Kind)
	assert.Len(t, h.all(t), 2)
}

func TestReconcile_FinalStatuses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", "Data Engineer", "Rejected"))
	require.NoError(t, err)

	// backwards move is refused but empty fields still merge
	back := cand("e2", day(3), "Acme", "Data Engineer", "Applied")
	back.Location = "Remote"
	out, err := h.eng.Reconcile(ctx, back)
	require.NoError(t, err)
	assert.Equal(t, Updated, out.Kind)
	assert.True(t, out.StatusRejected)
	assert.Equal(t, status.Rejected, out.App.Status)
	assert.Equal(t, "Remote", out.App.Location)

	out, err = h.eng.Reconcile(ctx, cand("e3", day(4), "Acme", "Data Engineer", "Offer"))
	require.NoError(t, err)
	assert.False(t, out.StatusRejected)
	assert.Equal(t, status.Offer, out.App.Status)

	out, err = h.eng.Reconcile(ctx, cand("e4", day(5), "Acme", "Data Engineer", "Ghosted"))
	require.NoError(t, err)
	assert.True(t, out.StatusRejected)
	assert.Equal(t, status.Offer, out.App.Status)
}

func TestReconcile_FillNeverOverwrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := cand("e1", day(1), "Acme", "Backend Engineer", "Applied")
	c.Location = "Austin, TX"
	_, err := h.eng.Reconcile(ctx, c)
	require.NoError(t, err)

	next := cand("e2", day(2), "Acme", "Backend Engineer II", "Interview")
	next.Location = "Remote"
	out, err := h.eng.Reconcile(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "Austin, TX", out.App.Location)
	assert.Equal(t, "Backend Engineer", out.App.JobTitle)
	assert.Equal(t, status.Interview, out.App.Status)
}

func TestReconcile_OutsideWindowCreates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", "Software Engineer", "Applied"))
	require.NoError(t, err)
	out, err := h.eng.Reconcile(ctx, cand("e2", day(1).Add(31*24*time.Hour), "Acme", "Software Engineer", "Applied"))
	require.NoError(t, err)
	assert.Equal(t, Created, out.Kind)
}

func TestReconcile_MissingCompanyNeedsReview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.eng.Reconcile(ctx, cand("e1", day(1), "  ", "Software Engineer", "Applied"))
	require.NoError(t, err)
	assert.Equal(t, Skipped, out.Kind)
	assert.Equal(t, Unusable, out.Reason)
	assert.True(t, out.NeedsReview)
	assert.Empty(t, h.all(t))

	review, err := h.db.Ledger().Unlinked(ctx, 0)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "e1", review[0].EmailID)

	out, err = h.eng.Reconcile(ctx, cand("e1", day(1), "  ", "Software Engineer", "Applied"))
	require.NoError(t, err)
	assert.Equal(t, AlreadyProcessed, out.Reason)
}

func TestReconcile_UnknownStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", "Engineer", "Hired!!"))
	require.NoError(t, err)
	assert.Equal(t, Unusable, out.Reason)
	assert.Empty(t, h.all(t))

	// an unknown status on a match is just no status proposal
	_, err = h.eng.Reconcile(ctx, cand("e2", day(1), "Acme", "Engineer", ""))
	require.NoError(t, err)
	out, err = h.eng.Reconcile(ctx, cand("e3", day(2), "Acme", "Engineer", "Hired!!"))
	require.NoError(t, err)
	assert.Equal(t, Updated, out.Kind)
	assert.Equal(t, status.Applied, out.App.Status)
}

func TestReconcile_EmptyEmailID(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Reconcile(context.Background(), cand(" ", day(1), "Acme", "Engineer", "Applied"))
	assert.ErrorIs(t, err, ErrMalformedCandidate)
}

func TestRunBatch_OrderIndependent(t *testing.T) {
	batch := []domain.Candidate{
		cand("e2", day(6), "Acme", "Software Engineer Intern", "Rejected"),
		cand("e3", day(2), "Acme", "Product Manager", "Applied"),
		cand("e1", day(1), "Acme", "Software Engineer", "Applied"),
		cand("e4", day(3), "Globex", "Analyst", "Interview"),
	}
	reversed := []domain.Candidate{batch[3], batch[2], batch[1], batch[0]}

	type row struct {
		company, title string
		st             status.Status
	}
	final := func(cs []domain.Candidate) map[string]row {
		h := newHarness(t)
		sum := h.eng.RunBatch(context.Background(), cs)
		assert.Zero(t, sum.Failed)
		out := map[string]row{}
		for _, a := range h.all(t) {
			out[a.Company+"/"+a.JobTitle] = row{a.Company, a.JobTitle, a.Status}
		}
		return out
	}

	a, b := final(batch), final(reversed)
	assert.Equal(t, a, b)
	assert.Len(t, a, 3)
	assert.Equal(t, status.Rejected, a["Acme/Software Engineer"].st)
}

func TestRunBatch_SameEmailTwice(t *testing.T) {
	h := newHarness(t)
	c := cand("e1", day(1), "Acme", "Engineer", "Applied")
	sum := h.eng.RunBatch(context.Background(), []domain.Candidate{c, c})
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 1, sum.Skipped)
	assert.Len(t, h.all(t), 1)
}

// flakyStore fails writes on demand.
type flakyStore struct {
	*store.Applications
	failUpdate bool
	failCreate bool
}

func (f *flakyStore) Update(ctx context.Context, a domain.Application) error {
	if f.failUpdate {
		return errors.New("disk full")
	}
	return f.Applications.Update(ctx, a)
}

func (f *flakyStore) Create(ctx context.Context, a domain.Application) (domain.Application, error) {
	if f.failCreate {
		return domain.Application{}, errors.New("disk full")
	}
	return f.Applications.Create(ctx, a)
}

func TestReconcile_PersistenceFailureLeavesLedgerUnmarked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fs := &flakyStore{Applications: h.db.Applications(), failCreate: true}
	h.eng.Store = fs

	c := cand("e1", day(1), "Acme", "Engineer", "Applied")
	_, err := h.eng.Reconcile(ctx, c)
	assert.ErrorIs(t, err, ErrPersistence)

	seen, err := h.db.Ledger().Has(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, seen)

	// retried on the next run once the store recovers
	fs.failCreate = false
	out, err := h.eng.Reconcile(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, Created, out.Kind)
}

func TestRunBatch_IsolatesFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", "Engineer", "Applied"))
	require.NoError(t, err)

	h.eng.Store = &flakyStore{Applications: h.db.Applications(), failUpdate: true}
	sum := h.eng.RunBatch(ctx, []domain.Candidate{
		cand("e2", day(2), "Acme", "Engineer", "Interview"),
		cand("e3", day(3), "Globex", "Analyst", "Applied"),
	})
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Created)
	require.Len(t, sum.Results, 2)
	assert.ErrorIs(t, sum.Results[0].Err, ErrPersistence)
}

// staleStore hides rows from the first LoadAll, as if another run inserted them
// after this one read the table.
type staleStore struct {
	*store.Applications
	loads int
}

func (s *staleStore) LoadAll(ctx context.Context) ([]domain.Application, error) {
	s.loads++
	if s.loads == 1 {
		return nil, nil
	}
	return s.Applications.LoadAll(ctx)
}

func TestReconcile_ConcurrentInsertRetriesMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", "Engineer", "Applied"))
	require.NoError(t, err)

	ss := &staleStore{Applications: h.db.Applications()}
	h.eng.Store = ss
	out, err := h.eng.Reconcile(ctx, cand("e2", day(1), "acme", "engineer", "Interview"))
	require.NoError(t, err)
	assert.Equal(t, Updated, out.Kind)
	assert.Equal(t, 2, ss.loads)

	apps := h.all(t)
	require.Len(t, apps, 1)
	assert.Equal(t, status.Interview, apps[0].Status)
}

func TestSetStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", "Engineer", "Interview"))
	require.NoError(t, err)
	id := out.App.ID

	_, err = h.eng.SetStatus(ctx, id, "Applied")
	assert.ErrorIs(t, err, status.ErrTransitionRejected)

	_, err = h.eng.SetStatus(ctx, id, "Hired")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = h.eng.SetStatus(ctx, "missing", "Offer")
	assert.ErrorIs(t, err, store.ErrNotFound)

	app, err := h.eng.SetStatus(ctx, id, "offer")
	require.NoError(t, err)
	assert.Equal(t, status.Offer, app.Status)
}

func TestSetLocation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := cand("e1", day(1), "Acme", "Engineer", "Applied")
	c.Location = "Austin, TX"
	out, err := h.eng.Reconcile(ctx, c)
	require.NoError(t, err)

	app, err := h.eng.SetLocation(ctx, out.App.ID, " Remote ")
	require.NoError(t, err)
	assert.Equal(t, "Remote", app.Location)

	got, err := h.db.Applications().Get(ctx, out.App.ID)
	require.NoError(t, err)
	assert.Equal(t, "Remote", got.Location)
}

func TestReconcile_UntitledCandidatesSameTimestamp(t *testing.T) {
	for name, titles := range map[string][2]string{
		"empty":           {"", ""},
		"stop words only": {"The Role", "Position"},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()

			out, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", titles[0], "Applied"))
			require.NoError(t, err)
			assert.Equal(t, Created, out.Kind)

			out, err = h.eng.Reconcile(ctx, cand("e2", day(1), "Acme", titles[1], "Rejected"))
			require.NoError(t, err)
			assert.Equal(t, Created, out.Kind)

			seen, err := h.db.Ledger().Has(ctx, "e2")
			require.NoError(t, err)
			assert.True(t, seen)

			out, err = h.eng.Reconcile(ctx, cand("e2", day(1), "Acme", titles[1], "Rejected"))
			require.NoError(t, err)
			assert.Equal(t, AlreadyProcessed, out.Reason)
			assert.Len(t, h.all(t), 2)
		})
	}
}

// blindStore never returns rows from LoadAll, so every match misses.
type blindStore struct {
	*store.Applications
}

func (blindStore) LoadAll(context.Context) ([]domain.Application, error) { return nil, nil }

func TestReconcile_IdentityConflictLinksExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", "Engineer", "Applied"))
	require.NoError(t, err)

	h.eng.Store = blindStore{Applications: h.db.Applications()}
	out, err := h.eng.Reconcile(ctx, cand("e2", day(1), "acme", "engineer", "Interview"))
	require.NoError(t, err)
	assert.Equal(t, Updated, out.Kind)
	assert.Equal(t, first.App.ID, out.App.ID)

	e, err := h.db.Ledger().Get(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, first.App.ID, e.LinkedApplicationID)

	apps := h.all(t)
	require.Len(t, apps, 1)
	assert.Equal(t, status.Interview, apps[0].Status)
}

func TestReconcile_TitleFillConflictKeepsUntitled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	untitled, err := h.eng.Reconcile(ctx, cand("e1", day(1), "Acme", "", "Applied"))
	require.NoError(t, err)
	titled, err := h.eng.Reconcile(ctx, cand("e2", day(1), "Acme", "Engineer", "Applied"))
	require.NoError(t, err)
	require.Equal(t, Created, titled.Kind)

	_, err = h.db.Ledger().Reset(ctx)
	require.NoError(t, err)

	// exact email match on the untitled row; filling "Engineer" would collide with e2's row
	out, err := h.eng.Reconcile(ctx, cand("e1", day(2), "Acme", "Engineer", "Interview"))
	require.NoError(t, err)
	assert.Equal(t, Updated, out.Kind)
	assert.Equal(t, untitled.App.ID, out.App.ID)

	got, err := h.db.Applications().Get(ctx, untitled.App.ID)
	require.NoError(t, err)
	assert.Empty(t, got.JobTitle)
	assert.Equal(t, status.Interview, got.Status)

	seen, err := h.db.Ledger().Has(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, seen)
}
