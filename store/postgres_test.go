package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

var (
	selectSQL = regexp.QuoteMeta("SELECT value FROM kv_entries WHERE key = $1")
	lockSQL   = regexp.QuoteMeta("SELECT value FROM kv_entries WHERE key = $1 FOR UPDATE")
	upsertRe  = regexp.QuoteMeta("INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, NOW())")
	deleteSQL = regexp.QuoteMeta("DELETE FROM kv_entries WHERE key = $1")
)

func TestPostgresGet(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(selectSQL).WithArgs("vibesnap:u1:draft_html").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("<p>hi</p>"))
	mock.ExpectQuery(selectSQL).WithArgs("missing").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(selectSQL).WithArgs("broken").WillReturnError(errors.New("conn reset"))

	v, err := s.Get(ctx, "vibesnap:u1:draft_html")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", v)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetAndDelete(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(upsertRe).WithArgs("k", "v").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteSQL).WithArgs("k").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Delete(ctx, "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateExisting(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("n").WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("1"))
	mock.ExpectExec(upsertRe).WithArgs("n", "1+").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Update(context.Background(), "n", func(cur string, found bool) (string, error) {
		assert.True(t, found)
		return cur + "+", nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateMissing(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("n").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(upsertRe).WithArgs("n", "fresh").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Update(context.Background(), "n", func(cur string, found bool) (string, error) {
		assert.False(t, found)
		assert.Empty(t, cur)
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRollsBackOnError(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).WithArgs("n").WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("1"))
	mock.ExpectRollback()

	err := s.Update(context.Background(), "n", func(string, bool) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
