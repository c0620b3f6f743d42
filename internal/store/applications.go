package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/match"
	"jobtrack-engine/internal/status"
)

// Applications is the application repository.
type Applications struct {
	DB *sql.DB
}

type ListFilter struct {
	Status  string
	Company string
	Limit   int
}

const applicationColumns = `id, email_id, company, job_title, location, status, application_date,
  sender, subject, confidence, last_updated, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(r rowScanner) (domain.Application, error) {
	var a domain.Application
	var st, appDate, updated, created string
	if err := r.Scan(
		&a.ID,
		&a.EmailID,
		&a.Company,
		&a.JobTitle,
		&a.Location,
		&st,
		&appDate,
		&a.Sender,
		&a.Subject,
		&a.Confidence,
		&updated,
		&created,
	); err != nil {
		return domain.Application{}, err
	}
	a.Status = status.Status(st)
	a.ApplicationDate = parseTime(appDate)
	a.LastUpdated = parseTime(updated)
	a.CreatedAt = parseTime(created)
	return a, nil
}

func (s *Applications) LoadAll(ctx context.Context) ([]domain.Application, error) {
	return s.List(ctx, ListFilter{})
}

func (s *Applications) List(ctx context.Context, f ListFilter) ([]domain.Application, error) {
	var (
		where []string
		args  []any
	)
	if v := strings.TrimSpace(f.Status); v != "" {
		where = append(where, "status = ?")
		args = append(args, v)
	}
	if v := match.NormalizeCompany(f.Company); v != "" {
		where = append(where, "company_key = ?")
		args = append(args, v)
	}

	query := `SELECT ` + applicationColumns + ` FROM applications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY application_date DESC, id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Applications) Get(ctx context.Context, id string) (domain.Application, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = ? LIMIT 1;`, id)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Application{}, ErrNotFound
	}
	return a, err
}

// Create inserts a new application, assigning its id. ErrDuplicate means a row with the
// same company, non-empty title tokens and application date already exists.
func (s *Applications) Create(ctx context.Context, a domain.Application) (domain.Application, error) {
	if strings.TrimSpace(a.Company) == "" {
		return domain.Application{}, errors.New("company is required")
	}
	if !a.Status.Valid() {
		return domain.Application{}, fmt.Errorf("invalid status %q", a.Status)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	res, err := s.DB.ExecContext(ctx, `
INSERT INTO applications(id, email_id, company, company_key, job_title, title_key, location, status,
  application_date, sender, subject, confidence, last_updated, created_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(company_key, title_key, application_date) WHERE title_key <> '' DO NOTHING;`,
		a.ID,
		a.EmailID,
		a.Company,
		match.NormalizeCompany(a.Company),
		a.JobTitle,
		match.TitleKey(a.JobTitle),
		a.Location,
		string(a.Status),
		formatTime(a.ApplicationDate),
		a.Sender,
		a.Subject,
		a.Confidence,
		formatTime(a.LastUpdated),
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return domain.Application{}, fmt.Errorf("insert application: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.Application{}, ErrDuplicate
	}
	return a, nil
}

// Update writes every mutable field of a. ApplicationDate and CreatedAt are never rewritten.
// ErrDuplicate means the new title would give the row another row's identity key.
func (s *Applications) Update(ctx context.Context, a domain.Application) error {
	if !a.Status.Valid() {
		return fmt.Errorf("invalid status %q", a.Status)
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE applications SET
  email_id = ?,
  company = ?,
  company_key = ?,
  job_title = ?,
  title_key = ?,
  location = ?,
  status = ?,
  sender = ?,
  subject = ?,
  confidence = ?,
  last_updated = ?
WHERE id = ?;`,
		a.EmailID,
		a.Company,
		match.NormalizeCompany(a.Company),
		a.JobTitle,
		match.TitleKey(a.JobTitle),
		a.Location,
		string(a.Status),
		a.Sender,
		a.Subject,
		a.Confidence,
		formatTime(a.LastUpdated),
		a.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByIdentity returns the row holding the identity key Create would give company,
// title and date.
func (s *Applications) FindByIdentity(ctx context.Context, company, title string, date time.Time) (domain.Application, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT `+applicationColumns+` FROM applications
WHERE company_key = ? AND title_key = ? AND application_date = ?
ORDER BY created_at ASC, id ASC
LIMIT 1;`,
		match.NormalizeCompany(company),
		match.TitleKey(title),
		formatTime(date),
	)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Application{}, ErrNotFound
	}
	return a, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
