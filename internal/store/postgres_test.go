package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{db: db, locks: newDatasetLocks()}, mock
}

func TestSaveRollsBackOnInsertFailure(t *testing.T) {
	s, mock := mockStore(t)
	rep := sampleReport("users", time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trust_scores").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO trust_scores").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Save(context.Background(), rep)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save", se.Op)
	assert.NoError(t, mock.ExpectationsWereMet(), "partial insert must roll back")
}

func TestSaveCommitsAllRows(t *testing.T) {
	s, mock := mockStore(t)
	rep := sampleReport("users", time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trust_scores").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO trust_scores").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Save(context.Background(), rep))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryLatestWrapsBackendFailure(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(errors.New("connection refused"))

	_, err := s.QueryLatest(context.Background(), "users", "")
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "query_latest", se.Op)
}

func TestQueryLatestNotFoundPostgres(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := s.QueryLatest(context.Background(), "missing", "")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestPruneReportsDeletedCount(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectExec("DELETE FROM trust_scores").
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := s.Prune(context.Background(), 90)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
