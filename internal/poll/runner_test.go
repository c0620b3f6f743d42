package poll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/extract"
	"jobtrack-engine/internal/mailbox"
	"jobtrack-engine/internal/match"
	"jobtrack-engine/internal/reconcile"
	"jobtrack-engine/internal/runlock"
	"jobtrack-engine/internal/store"
)

type fakeSource struct {
	msgs   []mailbox.Message
	query  mailbox.Query
	seen   []uint32
	closed bool
}

func (f *fakeSource) Fetch(_ context.Context, q mailbox.Query) ([]mailbox.Message, error) {
	f.query = q
	return f.msgs, nil
}

func (f *fakeSource) MarkSeen(_ context.Context, uids []uint32) error {
	f.seen = append(f.seen, uids...)
	return nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type busyLock struct{}

func (busyLock) TryAcquire() (func(), error) { return nil, runlock.ErrBusy }

var jan = time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)

func testMessages() []mailbox.Message {
	mk := func(uid uint32, subject string, day int) mailbox.Message {
		return mailbox.Message{
			Mailbox:   "INBOX",
			UID:       uid,
			MessageID: fmt.Sprintf("<m%d@mail.test>", uid),
			From:      "jobs@acme.com",
			Subject:   subject,
			Date:      jan.AddDate(0, 0, day),
		}
	}
	return []mailbox.Message{
		mk(1, "Your application to Acme", 0),
		mk(2, "Interview at Acme", 5),
		mk(3, "Application tips", 1),
		mk(4, "Application received", 2),
		mk(5, "Newsletter", 3),
	}
}

type fixture struct {
	db     *store.DB
	src    *fakeSource
	runner *Runner
	calls  map[uint32]int
	mu     sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "jobtrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{db: db, src: &fakeSource{msgs: testMessages()}, calls: map[uint32]int{}}
	ex := extract.Func(func(_ context.Context, m mailbox.Message) (domain.Candidate, error) {
		f.mu.Lock()
		f.calls[m.UID]++
		f.mu.Unlock()
		switch m.UID {
		case 1:
			return domain.Candidate{Company: "Acme", JobTitle: "Software Engineer", InferredStatus: "Applied"}, nil
		case 2:
			return domain.Candidate{Company: "Acme", JobTitle: "Software Engineer", InferredStatus: "Interview"}, nil
		case 3:
			return domain.Candidate{}, extract.ErrNotApplication
		default:
			return domain.Candidate{}, errors.New("model timeout")
		}
	})

	lock, err := runlock.New(t.TempDir())
	require.NoError(t, err)

	f.runner = &Runner{
		Dial:      func(context.Context, config.Config) (Source, error) { return f.src, nil },
		Extractor: ex,
		Engine:    reconcile.New(db.Applications(), db.Ledger(), match.New(0), log),
		Ledger:    db.Ledger(),
		Lock:      lock,
		Hub:       events.NewHub(),
		Log:       log,
		Now:       func() time.Time { return jan.AddDate(0, 0, 10) },
	}
	return f
}

func enabled() config.Config {
	cfg := config.Default()
	cfg.Email.Enabled = true
	cfg.Email.MarkSeen = true
	cfg.Email.SearchSubjectAny = []string{"application", "interview"}
	return cfg
}

func TestRunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.runner.Hub.Subscribe()

	res, err := f.runner.RunOnce(ctx, enabled())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Fetched)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, 1, res.NotApplication)
	assert.Equal(t, 1, res.ExtractFailed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.ElementsMatch(t, []uint32{1, 2, 3}, f.src.seen)
	assert.True(t, f.src.closed)
	assert.True(t, f.src.query.OnlyUnseen)
	assert.True(t, f.src.query.Since.Equal(jan.AddDate(0, 0, 10-14)))
	assert.NotEmpty(t, sub)

	apps, err := f.db.Applications().LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "Interview", string(apps[0].Status))
	assert.Equal(t, "m2@mail.test", apps[0].EmailID)

	review, err := f.db.Ledger().Unlinked(ctx, 0)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "m3@mail.test", review[0].EmailID)

	st := f.runner.Status()
	assert.False(t, st.Running)
	assert.Empty(t, st.LastError)
	assert.NotEmpty(t, st.LastOkAt)
}

func TestRunOnce_SecondRunSkipsLedgeredMail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.runner.RunOnce(ctx, enabled())
	require.NoError(t, err)
	res, err := f.runner.RunOnce(ctx, enabled())
	require.NoError(t, err)

	assert.Equal(t, 3, res.AlreadySeen)
	assert.Zero(t, res.Created)
	assert.Equal(t, 1, f.calls[1])
	assert.Equal(t, 2, f.calls[4]) // failed extraction is retried

	apps, err := f.db.Applications().LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestRunOnce_Busy(t *testing.T) {
	f := newFixture(t)
	f.runner.Lock = busyLock{}
	_, err := f.runner.RunOnce(context.Background(), enabled())
	assert.ErrorIs(t, err, runlock.ErrBusy)
	assert.True(t, f.src.query.Since.IsZero())
}

func TestRunOnce_Disabled(t *testing.T) {
	f := newFixture(t)
	f.runner.Dial = func(context.Context, config.Config) (Source, error) {
		t.Fatal("dial must not be called")
		return nil, nil
	}
	res, err := f.runner.RunOnce(context.Background(), config.Default())
	require.NoError(t, err)
	assert.Zero(t, res.Fetched)
}

func TestRunOnce_DialError(t *testing.T) {
	f := newFixture(t)
	f.runner.Dial = func(context.Context, config.Config) (Source, error) {
		return nil, errors.New("connection refused")
	}
	_, err := f.runner.RunOnce(context.Background(), enabled())
	require.Error(t, err)
	assert.Equal(t, "connection refused", f.runner.Status().LastError)
}
