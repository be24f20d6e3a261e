package table

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWidgetTable(t *testing.T, db *fakeDB) *Table[*widget, int64] {
	t.Helper()
	tbl, err := New(db, widgetSchema())
	require.NoError(t, err)
	return tbl
}

func TestTable_All(t *testing.T) {
	db := &fakeDB{rows: [][]any{
		{int64(1), "bolt", 0.25},
		{int64(2), "nut", 0.1},
	}}
	tbl := newWidgetTable(t, db)

	got, err := tbl.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []*widget{{ID: 1, Name: "bolt", Price: 0.25}, {ID: 2, Name: "nut", Price: 0.1}}, got)

	require.Len(t, db.calls, 1)
	assert.Equal(t, tbl.stmts.selectAll, db.calls[0].sql)
}

func TestTable_AllErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("query", func(t *testing.T) {
		tbl := newWidgetTable(t, &fakeDB{queryErr: boom})
		_, err := tbl.All(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("rows", func(t *testing.T) {
		tbl := newWidgetTable(t, &fakeDB{rows: [][]any{{int64(1), "bolt", 0.25}}, rowsErr: boom})
		_, err := tbl.All(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "scan widgets")
	})

	t.Run("scan", func(t *testing.T) {
		tbl := newWidgetTable(t, &fakeDB{rows: [][]any{{int64(1), "bolt"}}})
		_, err := tbl.All(context.Background())
		assert.ErrorContains(t, err, "scan widgets")
	})
}

func TestTable_Get(t *testing.T) {
	db := &fakeDB{row: []any{int64(7), "bolt", 0.25}}
	tbl := newWidgetTable(t, db)

	got, err := tbl.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, &widget{ID: 7, Name: "bolt", Price: 0.25}, got)
	assert.Equal(t, tbl.stmts.selectByID, db.calls[0].sql)
	assert.Equal(t, []any{int64(7)}, db.calls[0].args)
}

func TestTable_GetMissing(t *testing.T) {
	tbl := newWidgetTable(t, &fakeDB{rowErr: pgx.ErrNoRows})

	got, err := tbl.Get(context.Background(), 7)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.EqualError(t, err, "widgets 7: record not found")

	boom := errors.New("connection reset")
	tbl = newWidgetTable(t, &fakeDB{rowErr: boom})
	_, err = tbl.Get(context.Background(), 7)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRecordNotFound)
}

func TestTable_GetMany(t *testing.T) {
	db := &fakeDB{rows: [][]any{{int64(2), "nut", 0.1}}}
	tbl := newWidgetTable(t, db)

	got, err := tbl.GetMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, db.calls)

	got, err = tbl.GetMany(context.Background(), []int64{2, 3})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tbl.stmts.selectMany, db.calls[0].sql)
	assert.Equal(t, []any{[]int64{2, 3}}, db.calls[0].args)
}

func TestTable_Where(t *testing.T) {
	db := &fakeDB{rows: [][]any{{int64(1), "bolt", 0.25}}}
	tbl := newWidgetTable(t, db)

	got, err := tbl.Where(context.Background(), "Price", 0.25)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `SELECT "id", "name", "unit_price" FROM "widgets" WHERE "unit_price" = $1 ORDER BY "id"`, db.calls[0].sql)
	assert.Equal(t, []any{0.25}, db.calls[0].args)

	_, err = tbl.Where(context.Background(), "colour", "red")
	assert.ErrorIs(t, err, ErrUnknownColumn)
	assert.Len(t, db.calls, 1)
}

func TestTable_Count(t *testing.T) {
	db := &fakeDB{row: []any{int64(42)}}
	tbl := newWidgetTable(t, db)

	n, err := tbl.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, `SELECT COUNT(*) FROM "widgets"`, db.calls[0].sql)

	boom := errors.New("boom")
	tbl = newWidgetTable(t, &fakeDB{rowErr: boom})
	_, err = tbl.Count(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestTable_Insert(t *testing.T) {
	db := &fakeDB{execTag: tag("INSERT 0 1")}
	tbl := newWidgetTable(t, db)

	require.NoError(t, tbl.Insert(context.Background(), &widget{ID: 1, Name: "bolt", Price: 0.25}))
	assert.Equal(t, tbl.stmts.insert, db.calls[0].sql)
	assert.Len(t, db.calls[0].args, 3)

	db.execErr = &pgconn.PgError{Code: "23505"}
	err := tbl.Insert(context.Background(), &widget{ID: 1})
	assert.True(t, IsDuplicateKey(err))
	assert.ErrorContains(t, err, "insert widgets 1")
}

func TestTable_InsertMany(t *testing.T) {
	db := &fakeDB{}
	tbl := newWidgetTable(t, db)

	n, err := tbl.InsertMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, db.copyTable)

	n, err = tbl.InsertMany(context.Background(), []*widget{
		{ID: 1, Name: "bolt", Price: 0.25},
		{ID: 2, Name: "nut", Price: 0.1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, pgx.Identifier{"widgets"}, db.copyTable)
	assert.Equal(t, []string{"id", "name", "unit_price"}, db.copyCols)
	require.Len(t, db.copied, 2)
	assert.Equal(t, "nut", *db.copied[1][1].(*string))

	boom := errors.New("boom")
	tbl = newWidgetTable(t, &fakeDB{copyErr: boom})
	_, err = tbl.InsertMany(context.Background(), []*widget{{ID: 1}})
	assert.ErrorIs(t, err, boom)
}

func TestTable_Update(t *testing.T) {
	db := &fakeDB{batchTags: []pgconn.CommandTag{tag("UPDATE 1"), tag("UPDATE 1")}}
	tbl := newWidgetTable(t, db)

	err := tbl.Update(context.Background(), []*widget{
		{ID: 1, Name: "bolt", Price: 0.3},
		{ID: 2, Name: "nut", Price: 0.1},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, db.begins)
	assert.Equal(t, 1, db.commits)
	assert.Zero(t, db.rollbacks)
	assert.True(t, db.batchClosed)

	require.Equal(t, 2, db.batch.Len())
	q := db.batch.QueuedQueries[0]
	assert.Equal(t, tbl.stmts.update, q.SQL)
	require.Len(t, q.Arguments, 3)
	assert.Equal(t, int64(1), *q.Arguments[2].(*int64))
}

func TestTable_UpdateMissingRowRollsBack(t *testing.T) {
	db := &fakeDB{batchTags: []pgconn.CommandTag{tag("UPDATE 1"), tag("UPDATE 0")}}
	tbl := newWidgetTable(t, db)

	err := tbl.Update(context.Background(), []*widget{{ID: 1}, {ID: 8}, {ID: 9}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.ErrorContains(t, err, "update widgets 8")

	assert.Zero(t, db.commits)
	assert.Equal(t, 1, db.rollbacks)
	assert.True(t, db.batchClosed)
}

func TestTable_UpdateStatementError(t *testing.T) {
	db := &fakeDB{
		batchTags: []pgconn.CommandTag{tag("UPDATE 1")},
		batchErr:  &pgconn.PgError{Code: "40P01"},
	}
	tbl := newWidgetTable(t, db)

	err := tbl.Update(context.Background(), []*widget{{ID: 1}, {ID: 2}})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.NotErrorIs(t, err, ErrRecordNotFound)
	assert.Equal(t, 1, db.rollbacks)
}

func TestTable_UpdateNothing(t *testing.T) {
	db := &fakeDB{}
	tbl := newWidgetTable(t, db)

	require.NoError(t, tbl.Update(context.Background(), nil))
	assert.Zero(t, db.begins)
}

func TestTable_Delete(t *testing.T) {
	db := &fakeDB{execTag: tag("DELETE 2")}
	tbl := newWidgetTable(t, db)

	n, err := tbl.Delete(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, db.calls)

	n, err = tbl.Delete(context.Background(), 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, tbl.stmts.deleteMany, db.calls[0].sql)
	assert.Equal(t, []any{[]int64{1, 2, 3}}, db.calls[0].args)

	boom := errors.New("boom")
	tbl = newWidgetTable(t, &fakeDB{execErr: boom})
	_, err = tbl.Delete(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestTable_InTx(t *testing.T) {
	db := &fakeDB{execTag: tag("DELETE 1")}
	tbl := newWidgetTable(t, db)

	err := tbl.InTx(context.Background(), func(tx *Table[*widget, int64]) error {
		_, err := tx.Delete(context.Background(), 1)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, db.commits)
	assert.Zero(t, db.rollbacks)

	boom := errors.New("boom")
	err = tbl.InTx(context.Background(), func(*Table[*widget, int64]) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, db.commits)
	assert.Equal(t, 1, db.rollbacks)
}

func TestTable_ReplaceMany(t *testing.T) {
	db := &fakeDB{execTag: tag("DELETE 1")}
	tbl := newWidgetTable(t, db)

	n, err := tbl.ReplaceMany(context.Background(), []*widget{
		{ID: 1, Name: "bolt", Price: 0.25},
		{ID: 2, Name: "nut", Price: 0.1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Len(t, db.calls, 1)
	assert.Equal(t, tbl.stmts.deleteMany, db.calls[0].sql)
	assert.Equal(t, []any{[]int64{1, 2}}, db.calls[0].args)
	assert.Len(t, db.copied, 2)
	assert.Equal(t, 1, db.commits)
}

func TestTable_ReplaceManyRollsBackOnCopyFailure(t *testing.T) {
	boom := errors.New("boom")
	db := &fakeDB{execTag: tag("DELETE 1"), copyErr: boom}
	tbl := newWidgetTable(t, db)

	n, err := tbl.ReplaceMany(context.Background(), []*widget{{ID: 1}})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
	assert.Zero(t, db.commits)
	assert.Equal(t, 1, db.rollbacks)

	n, err = tbl.ReplaceMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, db.begins)
}
