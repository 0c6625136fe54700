package auditlog

import (
	"context"
	"database/sql"
	"time"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/authgate/authgate/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id TEXT PRIMARY KEY,
	subject TEXT NOT NULL,
	email TEXT NOT NULL,
	provider TEXT NOT NULL,
	event TEXT NOT NULL,
	at TIMESTAMP NOT NULL,
	logged_out_at TIMESTAMP,
	detail TEXT NOT NULL DEFAULT ''
)`

// SQLStore persists audit records in a SQL database. It works against any
// database/sql driver; OpenSQLite is the packaged default.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (and initializes) a sqlite-backed store at the given
// path. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, 0).Append("auditlog: opening sqlite database")
	}
	s := NewSQLStore(db)
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing database handle. The caller is responsible
// for the schema; see InitSchema.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// InitSchema creates the audit table if it does not exist.
func (s *SQLStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, 0).Append("auditlog: initializing schema")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_records (id, subject, email, provider, event, at, logged_out_at, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   subject = excluded.subject, email = excluded.email,
		   provider = excluded.provider, event = excluded.event,
		   at = excluded.at, logged_out_at = excluded.logged_out_at,
		   detail = excluded.detail`,
		rec.ID, rec.Subject, rec.Email, rec.Provider, rec.Event, rec.At, rec.LoggedOutAt, rec.Detail)
	if err != nil {
		return errors.Wrap(err, 0).Append("auditlog: append")
	}
	return nil
}

func (s *SQLStore) MarkLoggedOut(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_records SET event = ?, logged_out_at = ? WHERE id = ?`,
		EventLogout, at, id)
	if err != nil {
		return errors.Wrap(err, 0).Append("auditlog: mark logged out")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, 0).Append("auditlog: mark logged out")
	}
	if n == 0 {
		return errors.WrapPrefix(ErrNotFound, id, 0)
	}
	return nil
}

func (s *SQLStore) Find(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject, email, provider, event, at, logged_out_at, detail
		 FROM audit_records WHERE id = ?`, id)

	var rec Record
	var loggedOut sql.NullTime
	err := row.Scan(&rec.ID, &rec.Subject, &rec.Email, &rec.Provider, &rec.Event, &rec.At, &loggedOut, &rec.Detail)
	if err == sql.ErrNoRows {
		return Record{}, errors.WrapPrefix(ErrNotFound, id, 0)
	}
	if err != nil {
		return Record{}, errors.Wrap(err, 0).Append("auditlog: find")
	}
	if loggedOut.Valid {
		rec.LoggedOutAt = &loggedOut.Time
	}
	return rec, nil
}
