package store

import (
	"database/sql"
	"fmt"

	"jobtrack-engine/internal/status"
)

const schemaVersion = 3

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= schemaVersion {
		return tx.Commit()
	}

	if v < 1 {
		if err := migrateV1(tx); err != nil {
			return fmt.Errorf("schema v1: %w", err)
		}
	}
	if v < 2 {
		if err := migrateV2(tx); err != nil {
			return fmt.Errorf("schema v2: %w", err)
		}
	}
	if v < 3 {
		if err := migrateV3(tx); err != nil {
			return fmt.Errorf("schema v3: %w", err)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

// ---- Schema v1: tables + indexes ----

func migrateV1(tx *sql.Tx) error {
	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS applications (
  id TEXT PRIMARY KEY,
  email_id TEXT NOT NULL,
  company TEXT NOT NULL,
  company_key TEXT NOT NULL,
  job_title TEXT NOT NULL DEFAULT '',
  title_key TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'Applied',
  application_date TEXT NOT NULL,
  sender TEXT NOT NULL DEFAULT '',
  subject TEXT NOT NULL DEFAULT '',
  confidence TEXT NOT NULL DEFAULT '',
  last_updated TEXT NOT NULL,
  created_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS processed_emails (
  email_id TEXT PRIMARY KEY,
  processed_at TEXT NOT NULL,
  linked_application_id TEXT NOT NULL DEFAULT '',
  note TEXT NOT NULL DEFAULT ''
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_applications_company_date
ON applications(company_key, application_date);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_applications_email_id
ON applications(email_id);
`); err != nil {
		return err
	}

	// Serialization point for overlapping runs inserting the same application.
	if _, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_identity
ON applications(company_key, title_key, application_date);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_processed_emails_linked
ON processed_emails(linked_application_id);
`); err != nil {
		return err
	}

	return nil
}

// ---- Schema v2: clamp legacy status labels onto the fixed set ----

func migrateV2(tx *sql.Tx) error {
	rows, err := tx.Query(`SELECT DISTINCT status FROM applications;`)
	if err != nil {
		return err
	}
	var legacy []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return err
		}
		if !status.Status(s).Valid() {
			legacy = append(legacy, s)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, old := range legacy {
		next, ok := status.Parse(old)
		if !ok {
			next = status.Applied
		}
		if _, err := tx.Exec(`UPDATE applications SET status = ? WHERE status = ?;`, string(next), old); err != nil {
			return err
		}
	}
	return nil
}

// ---- Schema v3: identity key only covers titled applications ----

// Untitled applications never match each other by title, so they must not
// collide on the identity key either.
func migrateV3(tx *sql.Tx) error {
	if _, err := tx.Exec(`DROP INDEX IF EXISTS idx_applications_identity;`); err != nil {
		return err
	}
	_, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_identity
ON applications(company_key, title_key, application_date)
WHERE title_key <> '';
`)
	return err
}
