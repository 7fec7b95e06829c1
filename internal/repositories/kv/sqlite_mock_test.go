package kv

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStore(db), mock
}

func TestSQLiteStore_DriverErrorsAreWrapped(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("disk I/O error")
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM storage WHERE key = ?`)).
		WithArgs("pin").WillReturnError(boom)
	_, err := s.Get(ctx, "pin")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "storage[pin]")

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM storage WHERE substr(key, 1, length(?)) = ?`)).
		WithArgs("lastOtpGenerationTime-", "lastOtpGenerationTime-").WillReturnError(boom)
	err = s.DeletePrefix(ctx, "lastOtpGenerationTime-")
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT key, value FROM storage`)).WillReturnError(boom)
	_, err = s.List(ctx)
	assert.ErrorIs(t, err, boom)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_AtomicallyRollsBackOnWriteError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("constraint failed")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO storage").WithArgs("pin", []byte("h")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO storage").WithArgs("pinSalt", []byte("s")).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := s.Atomically(context.Background(), func(ctx context.Context, tx Store) error {
		if err := tx.Set(ctx, "pin", []byte("h")); err != nil {
			return err
		}
		return tx.Set(ctx, "pinSalt", []byte("s"))
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_AtomicallyCommitError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("database is locked")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM storage").WithArgs("loginTime").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(boom)

	err := s.Atomically(context.Background(), func(ctx context.Context, tx Store) error {
		return tx.Delete(ctx, "loginTime")
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "commit tx")
	require.NoError(t, mock.ExpectationsWereMet())
}
