package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func orderKey(w, d int) Key {
	return NewKey(IntColumn("o_w_id", w), IntColumn("o_d_id", d))
}

func putOrder(t *testing.T, s Store, w, d, o, c int) {
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, "oorder", orderKey(w, d), NewKey(IntColumn("o_id", o)), Values{
		"o_c_id":   IntValue(c),
		"o_amount": DoubleValue(1.5),
		"o_note":   TextValue("x"),
		"o_date":   DateValue(1234),
	}))
	require.NoError(t, tx.Commit(ctx))
}

func TestMemoryStoreGetPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	putOrder(t, s, 1, 2, 3, 4)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	row, err := tx.Get(ctx, "oorder", orderKey(1, 2), NewKey(IntColumn("o_id", 3)))
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, 1, row.Int("o_w_id"))
	require.Equal(t, 3, row.Int("o_id"))
	require.Equal(t, 4, row.Int("o_c_id"))
	require.Equal(t, 1.5, row.Double("o_amount"))
	require.Equal(t, "x", row.Text("o_note"))
	require.Equal(t, int64(1234), row.Date("o_date"))

	missing, err := tx.Get(ctx, "oorder", orderKey(1, 2), NewKey(IntColumn("o_id", 99)))
	require.NoError(t, err)
	require.Nil(t, missing)
	require.NoError(t, tx.Commit(ctx))
}

func TestMemoryStorePutMergesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	putOrder(t, s, 1, 1, 1, 7)

	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.Put(ctx, "oorder", orderKey(1, 1), NewKey(IntColumn("o_id", 1)), Values{
		"o_carrier_id": IntValue(5),
		"o_note":       nil,
	}))
	row, err := tx.Get(ctx, "oorder", orderKey(1, 1), NewKey(IntColumn("o_id", 1)))
	require.NoError(t, err)
	require.Equal(t, 5, row.Int("o_carrier_id"))
	require.Equal(t, 7, row.Int("o_c_id"))
	require.True(t, row.IsNull("o_note"))
	require.NoError(t, tx.Commit(ctx))
}

func TestMemoryStoreDeleteThenPutReplacesRow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	putOrder(t, s, 1, 1, 1, 7)
	clustering := NewKey(IntColumn("o_id", 1))

	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.Delete(ctx, "oorder", orderKey(1, 1), clustering))
	require.NoError(t, tx.Put(ctx, "oorder", orderKey(1, 1), clustering, Values{"o_c_id": IntValue(9)}))
	row, err := tx.Get(ctx, "oorder", orderKey(1, 1), clustering)
	require.NoError(t, err)
	require.Equal(t, 9, row.Int("o_c_id"))
	_, ok := row.Get("o_note")
	require.False(t, ok)
	rows, err := tx.Scan(ctx, &Scan{Table: "oorder", Partition: orderKey(1, 1)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, ok = rows[0].Get("o_amount")
	require.False(t, ok)
	require.NoError(t, tx.Commit(ctx))

	tx, _ = s.Begin(ctx)
	row, err = tx.Get(ctx, "oorder", orderKey(1, 1), clustering)
	require.NoError(t, err)
	require.Equal(t, 9, row.Int("o_c_id"))
	require.Equal(t, 1, row.Int("o_id"))
	_, ok = row.Get("o_note")
	require.False(t, ok)
	_, ok = row.Get("o_date")
	require.False(t, ok)
	require.NoError(t, tx.Commit(ctx))
}

func TestMemoryStoreScanOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for o := 1; o <= 10; o++ {
		putOrder(t, s, 1, 1, o, o%3)
	}
	putOrder(t, s, 1, 2, 100, 1)

	tx, _ := s.Begin(ctx)
	rows, err := tx.Scan(ctx, &Scan{Table: "oorder", Partition: orderKey(1, 1)})
	require.NoError(t, err)
	require.Len(t, rows, 10)
	for i, r := range rows {
		require.Equal(t, i+1, r.Int("o_id"))
	}

	rows, err = tx.Scan(ctx, &Scan{
		Table:     "oorder",
		Partition: orderKey(1, 1),
		Start:     NewKey(IntColumn("o_id", 3)),
		End:       NewKey(IntColumn("o_id", 6)),
		Ordering:  Desc,
		Limit:     2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 6, rows[0].Int("o_id"))
	require.Equal(t, 5, rows[1].Int("o_id"))

	index := IntColumn("o_c_id", 1)
	rows, err = tx.Scan(ctx, &Scan{Table: "oorder", Index: &index})
	require.NoError(t, err)
	// o_id 1, 4, 7, 10 in district 1 plus o_id 100 in district 2
	require.Len(t, rows, 5)
	require.NoError(t, tx.Commit(ctx))
}

func TestMemoryStoreScanSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	putOrder(t, s, 1, 1, 1, 1)
	putOrder(t, s, 1, 1, 2, 1)

	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.Delete(ctx, "oorder", orderKey(1, 1), NewKey(IntColumn("o_id", 1))))
	require.NoError(t, tx.Put(ctx, "oorder", orderKey(1, 1), NewKey(IntColumn("o_id", 3)), Values{"o_c_id": IntValue(1)}))
	rows, err := tx.Scan(ctx, &Scan{Table: "oorder", Partition: orderKey(1, 1)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 2, rows[0].Int("o_id"))
	require.Equal(t, 3, rows[1].Int("o_id"))
	require.NoError(t, tx.Commit(ctx))

	tx, _ = s.Begin(ctx)
	row, err := tx.Get(ctx, "oorder", orderKey(1, 1), NewKey(IntColumn("o_id", 1)))
	require.NoError(t, err)
	require.Nil(t, row)
	require.NoError(t, tx.Abort(ctx))
}

func TestMemoryStoreWriteWriteConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	putOrder(t, s, 1, 1, 1, 1)
	pk, ck := orderKey(1, 1), NewKey(IntColumn("o_id", 1))

	tx1, _ := s.Begin(ctx)
	tx2, _ := s.Begin(ctx)
	r1, err := tx1.Get(ctx, "oorder", pk, ck)
	require.NoError(t, err)
	r2, err := tx2.Get(ctx, "oorder", pk, ck)
	require.NoError(t, err)
	require.NoError(t, tx1.Put(ctx, "oorder", pk, ck, Values{"o_c_id": IntValue(r1.Int("o_c_id") + 1)}))
	require.NoError(t, tx2.Put(ctx, "oorder", pk, ck, Values{"o_c_id": IntValue(r2.Int("o_c_id") + 1)}))
	require.NoError(t, tx1.Commit(ctx))
	err = tx2.Commit(ctx)
	require.Error(t, err)
	require.True(t, IsConflict(err))
	require.NoError(t, tx2.Abort(ctx))
}

func TestMemoryStorePhantomConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	putOrder(t, s, 1, 1, 1, 1)

	tx1, _ := s.Begin(ctx)
	rows, err := tx1.Scan(ctx, &Scan{Table: "oorder", Partition: orderKey(1, 1)})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	putOrder(t, s, 1, 1, 2, 1)

	require.NoError(t, tx1.Put(ctx, "summary", NewKey(IntColumn("id", 1)), nil, Values{"n": IntValue(len(rows))}))
	err = tx1.Commit(ctx)
	require.True(t, IsConflict(err))
}

func TestMemoryStoreReadOfMissingRowConflictsWithInsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	pk, ck := orderKey(1, 1), NewKey(IntColumn("o_id", 1))

	tx1, _ := s.Begin(ctx)
	row, err := tx1.Get(ctx, "oorder", pk, ck)
	require.NoError(t, err)
	require.Nil(t, row)

	putOrder(t, s, 1, 1, 1, 1)

	require.NoError(t, tx1.Put(ctx, "oorder", pk, ck, Values{"o_c_id": IntValue(2)}))
	require.True(t, IsConflict(tx1.Commit(ctx)))
}

func TestMemoryStoreUseAfterCommit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.Commit(ctx))
	_, err := tx.Get(ctx, "oorder", orderKey(1, 1), nil)
	require.Error(t, err)
	require.False(t, IsConflict(err))
	require.NoError(t, tx.Abort(ctx))
}
