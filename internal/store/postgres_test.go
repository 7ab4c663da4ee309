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

var regionCols = []string{"idx", "name", "latitude", "longitude", "ts", "user_id"}

func newTestPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return AttachDB(db), mock
}

func TestPostgres_Persist(t *testing.T) {
	s, mock := newTestPostgres(t)
	r := sample("Times Square", 40.758, -73.9855)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO regions(idx, name, latitude, longitude, ts, user_id)`)).
		WithArgs(r.Name, r.Latitude, r.Longitude, r.Timestamp, r.OwnerID).
		WillReturnRows(sqlmock.NewRows([]string{"idx"}).AddRow(int64(0)))
	idx, err := s.Persist(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(0), idx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FetchAll(t *testing.T) {
	s, mock := newTestPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT idx, name, latitude, longitude, ts, user_id FROM regions ORDER BY idx`)).
		WillReturnRows(sqlmock.NewRows(regionCols).
			AddRow(int64(0), "a", 1.5, 2.5, int64(10), int64(1)).
			AddRow(int64(1), "b", -1.5, -2.5, int64(11), int64(2)))
	rs, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "b", rs[1].Name)
	assert.Equal(t, -2.5, rs[1].Longitude)
	assert.Equal(t, int32(2), rs[1].OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListLimit(t *testing.T) {
	s, mock := newTestPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY idx LIMIT $1`)).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(regionCols).AddRow(int64(0), "a", 1.0, 2.0, int64(10), int64(1)))
	recs, err := s.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(0), recs[0].Index)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_QueryError(t *testing.T) {
	s, mock := newTestPostgres(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT idx`).WillReturnError(boom)
	_, err := s.FetchAll(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPostgres_GetDeleteCount(t *testing.T) {
	s, mock := newTestPostgres(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM regions WHERE idx=$1`)).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)
	_, err := s.Get(ctx, 9)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM regions WHERE idx=$1`)).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "latitude", "longitude", "ts", "user_id"}).AddRow("c", 3.0, 4.0, int64(5), int64(6)))
	rec, err := s.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "c", rec.Name)
	assert.Equal(t, int64(2), rec.Index)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM regions WHERE idx=$1`)).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Delete(ctx, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM regions WHERE idx=$1`)).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Delete(ctx, 2), ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(1) FROM regions`)).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
