package auditlog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStore_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_records").
		WithArgs("sess-1", "user-1", "pat@example.com", "github", EventLogin, sqlmock.AnyArg(), nil, "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := NewSQLStore(db)
	err = s.Append(context.Background(), Record{
		ID:       "sess-1",
		Subject:  "user-1",
		Email:    "pat@example.com",
		Provider: "github",
		Event:    EventLogin,
		At:       time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_MarkLoggedOut(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE audit_records SET").
		WithArgs(EventLogout, sqlmock.AnyArg(), "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewSQLStore(db)
	require.NoError(t, s.MarkLoggedOut(context.Background(), "sess-1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_MarkLoggedOutMissingRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE audit_records SET").
		WithArgs(EventLogout, sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewSQLStore(db)
	err = s.MarkLoggedOut(context.Background(), "ghost", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_Find(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now()
	rows := sqlmock.NewRows([]string{"id", "subject", "email", "provider", "event", "at", "logged_out_at", "detail"}).
		AddRow("sess-1", "user-1", "pat@example.com", "github", EventLogin, at, nil, "")
	mock.ExpectQuery("SELECT id, subject, email, provider, event, at, logged_out_at, detail").
		WithArgs("sess-1").
		WillReturnRows(rows)

	s := NewSQLStore(db)
	rec, err := s.Find(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", rec.Subject)
	assert.Nil(t, rec.LoggedOutAt)
}
