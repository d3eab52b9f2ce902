package marks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/satresults/internal/db"
)

var dbSeq atomic.Int64

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:marks_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSQLStore_UpsertListSubmit(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(openTestDB(t))

	res, err := store.Upsert(ctx, []Entry{
		{StudentID: "s2", SubjectID: subjectA, Component: ComponentInternal, Value: 55},
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal, Value: 45},
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentAssignments, Value: 85, Values: []float64{80, 90}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Saved)
	assert.Empty(t, res.Locked)

	list, err := store.List(ctx, Filter{SubjectID: subjectA})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "s1", list[0].StudentID)
	assert.Equal(t, ComponentAssignments, list[0].Component)
	assert.Equal(t, []float64{80, 90}, list[0].Values)

	only, err := store.List(ctx, Filter{SubjectID: subjectA, Component: ComponentInternal, StudentID: "s2"})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, 55.0, only[0].Value)

	n, err := store.Submit(ctx, subjectA, ComponentInternal)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err = store.Upsert(ctx, []Entry{
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal, Value: 99},
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentAssignments, Value: 70, Values: []float64{70}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, []Key{{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal}}, res.Locked)

	e, err := store.Get(ctx, Key{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal})
	require.NoError(t, err)
	assert.Equal(t, 45.0, e.Value)
	assert.True(t, e.Submitted)

	_, err = store.Get(ctx, Key{StudentID: "nobody", SubjectID: subjectA, Component: ComponentInternal})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(openTestDB(t))
	k := Key{StudentID: "s1", SubjectID: subjectA, Component: ComponentExternal}

	for _, v := range []float64{30, 30, 64.5} {
		_, err := store.Upsert(ctx, []Entry{{StudentID: k.StudentID, SubjectID: k.SubjectID, Component: k.Component, Value: v}})
		require.NoError(t, err)
	}
	e, err := store.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, 64.5, e.Value)
}

func TestSQLStore_UpsertRollsBack(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO mark_entries`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO mark_entries`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = NewSQLStore(conn).Upsert(context.Background(), []Entry{
		{StudentID: "s1", SubjectID: subjectA, Component: ComponentInternal, Value: 1},
		{StudentID: "s2", SubjectID: subjectA, Component: ComponentInternal, Value: 2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marks: upsert s2/")
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_ListQueryError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	mock.ExpectQuery(`SELECT .* FROM mark_entries WHERE subject_id=\$1`).
		WithArgs(subjectA).
		WillReturnError(errors.New("connection reset"))

	_, err = NewSQLStore(conn).List(context.Background(), Filter{SubjectID: subjectA})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marks: list entries")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCriteriaStore(t *testing.T) {
	ctx := context.Background()
	store := NewSQLCriteriaStore(openTestDB(t))

	c, err := store.GetCriteria(ctx, CriteriaFinal)
	require.NoError(t, err)
	assert.Equal(t, DefaultCriteria(), c)

	custom := Criteria{InternalWeight: 40, ExternalWeight: 60, Formula: "(internal * 0.4) + (external * 0.6)"}
	require.NoError(t, store.PutCriteria(ctx, CriteriaFinal, custom))
	require.NoError(t, store.PutCriteria(ctx, CriteriaFinal, custom))

	c, err = store.GetCriteria(ctx, CriteriaFinal)
	require.NoError(t, err)
	assert.Equal(t, custom, c)

	c, err = store.GetCriteria(ctx, CriteriaInternal)
	require.NoError(t, err)
	assert.Equal(t, DefaultCriteria(), c)
}
