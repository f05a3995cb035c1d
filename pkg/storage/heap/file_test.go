package heap

import (
	"context"
	"os"
	"testing"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/dberror"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/tuple"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, it page.DbFileIterator) []string {
	t.Helper()
	var out []string
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			return out
		}
		tup, err := it.Next()
		require.NoError(t, err)
		out = append(out, tup.String())
	}
}

func TestNewHeapFileRejectsOversizedTuple(t *testing.T) {
	withPageSize(t, 64)
	_, err := NewHeapFile(primitives.Filepath(t.TempDir()+"/wide.dat"), intDesc(t, 20))
	assert.ErrorIs(t, err, dberror.ErrSchemaMismatch)
}

func TestReadWritePage(t *testing.T) {
	td := intDesc(t, 2)
	hf := newHeapFile(t, td)
	pid := primitives.NewPageID(hf.GetID(), 1)

	hp, err := NewEmptyHeapPage(pid, td)
	require.NoError(t, err)
	require.NoError(t, hp.AddTuple(intTuple(t, td, 1, 2)))
	require.NoError(t, hf.WritePage(hp))

	n, err := hf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(2), n)

	p, err := hf.ReadPage(pid)
	require.NoError(t, err)
	got := p.(*HeapPage).GetTuples()
	require.Len(t, got, 1)
	assert.Equal(t, "1\t2\n", got[0].String())

	_, err = hf.ReadPage(primitives.NewPageID(hf.GetID(), 5))
	assert.ErrorIs(t, err, dberror.ErrIO)

	_, err = hf.ReadPage(primitives.NewPageID(hf.GetID()+1, 0))
	assert.ErrorIs(t, err, dberror.ErrIO)
}

func TestInsertIntoEmptyFileAppendsPage(t *testing.T) {
	td := intDesc(t, 1)
	hf := newHeapFile(t, td)
	src := newFakeSource(hf)
	tid := transaction.NewTransactionID()

	tup := intTuple(t, td, 10)
	pages, err := hf.InsertTuple(context.Background(), tid, tup, src)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	n, err := hf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(1), n)
	assert.Equal(t, tuple.NewRecordID(primitives.NewPageID(hf.GetID(), 0), 0), tup.RecordID)
	assert.Equal(t, page.ReadWrite, src.locks[pages[0].GetID()])
}

func TestInsertIntoFullFileAppendsExactlyOnePage(t *testing.T) {
	withPageSize(t, 64)
	td := intDesc(t, 1)
	hf := newHeapFile(t, td)
	src := newFakeSource(hf)
	tid := transaction.NewTransactionID()
	ctx := context.Background()

	// Two full pages of 15 slots each.
	for i := range 30 {
		_, err := hf.InsertTuple(ctx, tid, intTuple(t, td, int32(i)), src)
		require.NoError(t, err)
	}
	src.flush(t)

	n, err := hf.NumPages()
	require.NoError(t, err)
	require.Equal(t, primitives.PageNumber(2), n)

	fresh := newFakeSource(hf)
	other := transaction.NewTransactionID()
	tup := intTuple(t, td, 99)

	pages, err := hf.InsertTuple(ctx, other, tup, fresh)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	n, err = hf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(3), n)
	assert.Equal(t, primitives.NewPageID(hf.GetID(), 2), tup.RecordID.PageID)
	assert.Equal(t, primitives.SlotID(0), tup.RecordID.TupleNum)

	// Full pages were only read, so their locks were dropped early.
	assert.Equal(t, []primitives.PageID{
		primitives.NewPageID(hf.GetID(), 0),
		primitives.NewPageID(hf.GetID(), 1),
	}, fresh.released)
	assert.False(t, fresh.HoldsLock(other, primitives.NewPageID(hf.GetID(), 0)))
}

func TestInsertKeepsLocksAlreadyHeld(t *testing.T) {
	withPageSize(t, 64)
	td := intDesc(t, 1)
	hf := newHeapFile(t, td)
	src := newFakeSource(hf)
	tid := transaction.NewTransactionID()
	ctx := context.Background()

	for i := range 16 {
		_, err := hf.InsertTuple(ctx, tid, intTuple(t, td, int32(i)), src)
		require.NoError(t, err)
	}

	// Page 0 filled up while tid held it exclusively; it must not be released.
	assert.Empty(t, src.released)
	assert.True(t, src.HoldsLock(tid, primitives.NewPageID(hf.GetID(), 0)))
}

func TestInsertSchemaMismatch(t *testing.T) {
	hf := newHeapFile(t, intDesc(t, 1))
	src := newFakeSource(hf)

	_, err := hf.InsertTuple(context.Background(), transaction.NewTransactionID(), intTuple(t, intDesc(t, 2), 1, 2), src)
	assert.ErrorIs(t, err, dberror.ErrSchemaMismatch)

	n, err := hf.NumPages()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteTuple(t *testing.T) {
	td := intDesc(t, 1)
	hf := newHeapFile(t, td)
	src := newFakeSource(hf)
	tid := transaction.NewTransactionID()
	ctx := context.Background()

	tup := intTuple(t, td, 1)
	_, err := hf.InsertTuple(ctx, tid, tup, src)
	require.NoError(t, err)
	rid := *tup.RecordID

	pages, err := hf.DeleteTuple(ctx, tid, tup, src)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, rid.PageID, pages[0].GetID())
	assert.False(t, pages[0].(*HeapPage).IsSlotUsed(int(rid.TupleNum)))

	again := intTuple(t, td, 1)
	again.RecordID = &rid
	_, err = hf.DeleteTuple(ctx, tid, again, src)
	assert.ErrorIs(t, err, dberror.ErrTupleNotFound)
}

func TestDeleteTupleBadRecordID(t *testing.T) {
	td := intDesc(t, 1)
	hf := newHeapFile(t, td)
	src := newFakeSource(hf)
	tid := transaction.NewTransactionID()
	ctx := context.Background()

	_, err := hf.DeleteTuple(ctx, tid, intTuple(t, td, 1), src)
	assert.ErrorIs(t, err, dberror.ErrTupleNotFound)

	past := intTuple(t, td, 1)
	past.RecordID = tuple.NewRecordID(primitives.NewPageID(hf.GetID(), 4), 0)
	_, err = hf.DeleteTuple(ctx, tid, past, src)
	assert.ErrorIs(t, err, dberror.ErrTupleNotFound)

	foreign := intTuple(t, td, 1)
	foreign.RecordID = tuple.NewRecordID(primitives.NewPageID(hf.GetID()+1, 0), 0)
	_, err = hf.DeleteTuple(ctx, tid, foreign, src)
	assert.ErrorIs(t, err, dberror.ErrTupleNotFound)
}

func TestIteratorOrderSkipsEmptySlotsAndRewinds(t *testing.T) {
	withPageSize(t, 64)
	td := intDesc(t, 1)
	hf := newHeapFile(t, td)
	src := newFakeSource(hf)
	tid := transaction.NewTransactionID()
	ctx := context.Background()

	var stored []*tuple.Tuple
	for i := range 20 {
		tup := intTuple(t, td, int32(i))
		_, err := hf.InsertTuple(ctx, tid, tup, src)
		require.NoError(t, err)
		stored = append(stored, tup)
	}
	_, err := hf.DeleteTuple(ctx, tid, stored[3], src)
	require.NoError(t, err)
	_, err = hf.DeleteTuple(ctx, tid, stored[16], src)
	require.NoError(t, err)

	it := hf.Iterator(ctx, tid, src)

	_, err = it.HasNext()
	assert.Error(t, err, "unopened iterator")

	require.NoError(t, it.Open())
	got := collect(t, it)

	var want []string
	for i := range 20 {
		if i == 3 || i == 16 {
			continue
		}
		want = append(want, intTuple(t, td, int32(i)).String())
	}
	assert.Equal(t, want, got)

	_, err = it.Next()
	assert.Error(t, err)

	require.NoError(t, it.Rewind())
	assert.Equal(t, want, collect(t, it))
	require.NoError(t, it.Close())
}

func TestIteratorEmptyFile(t *testing.T) {
	hf := newHeapFile(t, intDesc(t, 1))
	it := hf.Iterator(context.Background(), transaction.NewTransactionID(), newFakeSource(hf))

	require.NoError(t, it.Open())
	assert.Empty(t, collect(t, it))
}

func TestIteratorSkipsEmptyPages(t *testing.T) {
	td := intDesc(t, 1)
	hf := newHeapFile(t, td)

	for range 2 {
		_, err := hf.AllocateNewPage()
		require.NoError(t, err)
	}
	hp, err := NewEmptyHeapPage(primitives.NewPageID(hf.GetID(), 2), td)
	require.NoError(t, err)
	require.NoError(t, hp.AddTuple(intTuple(t, td, 42)))
	require.NoError(t, hf.WritePage(hp))

	it := hf.Iterator(context.Background(), transaction.NewTransactionID(), newFakeSource(hf))
	require.NoError(t, it.Open())
	assert.Equal(t, []string{"42\n"}, collect(t, it))
}

func TestTrailingPartialPageIgnored(t *testing.T) {
	td := intDesc(t, 1)
	hf := newHeapFile(t, td)

	f, err := os.OpenFile(string(hf.FilePath()), os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, page.Size()+10))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	n, err := hf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(1), n)
}
