package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"jobtrack-engine/internal/domain"
)

// Ledger records which emails have been consumed. Entries are permanent; only Reset
// clears them, which forces full reprocessing on the next run.
type Ledger struct {
	DB *sql.DB

	Now func() time.Time
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Has is a primary-key point lookup, cheap enough to run for every fetched email.
func (l *Ledger) Has(ctx context.Context, emailID string) (bool, error) {
	var one int
	err := l.DB.QueryRowContext(ctx,
		`SELECT 1 FROM processed_emails WHERE email_id = ? LIMIT 1;`, emailID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkProcessed is idempotent. A second call never adds a row; it only backfills the
// linked application id when the first call left it empty.
func (l *Ledger) MarkProcessed(ctx context.Context, emailID, applicationID string) error {
	return l.upsert(ctx, emailID, applicationID, "")
}

// MarkUnusable records an email that produced no application, with a short reason.
func (l *Ledger) MarkUnusable(ctx context.Context, emailID, note string) error {
	return l.upsert(ctx, emailID, "", note)
}

func (l *Ledger) upsert(ctx context.Context, emailID, applicationID, note string) error {
	emailID = strings.TrimSpace(emailID)
	if emailID == "" {
		return errors.New("ledger: empty email id")
	}
	_, err := l.DB.ExecContext(ctx, `
INSERT INTO processed_emails(email_id, processed_at, linked_application_id, note)
VALUES(?,?,?,?)
ON CONFLICT(email_id) DO UPDATE SET
  linked_application_id = CASE
    WHEN processed_emails.linked_application_id = '' THEN excluded.linked_application_id
    ELSE processed_emails.linked_application_id
  END,
  note = CASE
    WHEN processed_emails.note = '' THEN excluded.note
    ELSE processed_emails.note
  END;
`, emailID, formatTime(l.now()), applicationID, note)
	return err
}

func (l *Ledger) Get(ctx context.Context, emailID string) (domain.ProcessedEmail, error) {
	var e domain.ProcessedEmail
	var at string
	err := l.DB.QueryRowContext(ctx, `
SELECT email_id, processed_at, linked_application_id, note
FROM processed_emails WHERE email_id = ? LIMIT 1;`, emailID,
	).Scan(&e.EmailID, &at, &e.LinkedApplicationID, &e.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProcessedEmail{}, ErrNotFound
	}
	if err != nil {
		return domain.ProcessedEmail{}, err
	}
	e.ProcessedAt = parseTime(at)
	return e, nil
}

// Unlinked lists consumed emails that did not produce an application, newest first.
// These are the low-confidence candidates left for manual review.
func (l *Ledger) Unlinked(ctx context.Context, limit int) ([]domain.ProcessedEmail, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := l.DB.QueryContext(ctx, `
SELECT email_id, processed_at, linked_application_id, note
FROM processed_emails
WHERE linked_application_id = ''
ORDER BY processed_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProcessedEmail
	for rows.Next() {
		var e domain.ProcessedEmail
		var at string
		if err := rows.Scan(&e.EmailID, &at, &e.LinkedApplicationID, &e.Note); err != nil {
			return nil, err
		}
		e.ProcessedAt = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Reset truncates the ledger. This is the administrative way to force reprocessing.
func (l *Ledger) Reset(ctx context.Context) (deleted int64, err error) {
	res, err := l.DB.ExecContext(ctx, `DELETE FROM processed_emails;`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
