// Package auditlog persists login/logout audit records. Writes are
// best-effort at the call sites: an audit failure must never abort an
// otherwise-successful login or logout.
package auditlog

import (
	"context"
	"time"

	"github.com/authgate/authgate/errors"
)

// Events recorded per session.
const (
	EventLogin  = "login"
	EventLogout = "logout"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.NewC("auditlog: record not found", errors.NotFound)

// Record is one session's audit trail. ID is the session id from the issued
// token.
type Record struct {
	ID          string
	Subject     string
	Email       string
	Provider    string
	Event       string
	At          time.Time
	LoggedOutAt *time.Time
	Detail      string
}

// Store offers append/update persistence for audit records.
type Store interface {
	// Append inserts a new record, overwriting any previous record with the
	// same id.
	Append(ctx context.Context, rec Record) error

	// MarkLoggedOut updates the record for the given session with a logout
	// timestamp. Returns ErrNotFound if no record exists.
	MarkLoggedOut(ctx context.Context, id string, at time.Time) error

	// Find returns the record with the given id, or ErrNotFound.
	Find(ctx context.Context, id string) (Record, error)
}
