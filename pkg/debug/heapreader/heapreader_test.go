package heapreader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/dberror"
	"heapstore/pkg/memory"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/heap"
	"heapstore/pkg/tuple"
	"heapstore/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, rows int) (*memory.PageStore, *heap.HeapFile) {
	t.Helper()
	td, err := tuple.ParseTupleDesc("id:int,name:string")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "people.dat")
	file, err := heap.NewHeapFile(primitives.Filepath(path), td)
	require.NoError(t, err)

	tables := memory.NewTableManager()
	require.NoError(t, tables.AddTable(file, "people"))
	store := memory.NewPageStore(tables, 10)
	t.Cleanup(func() { _ = store.Close() })

	tid := transaction.NewTransactionID()
	for i := range rows {
		tup, err := tuple.FromFields(td, types.NewIntField(int32(i)), types.NewStringField("person"))
		require.NoError(t, err)
		require.NoError(t, store.InsertTuple(context.Background(), tid, file.GetID(), tup))
	}
	require.NoError(t, store.TransactionComplete(tid, true))
	return store, file
}

func TestInspectCountsTuples(t *testing.T) {
	store, file := setup(t, 40)

	report, err := Inspect(context.Background(), store, file)
	require.NoError(t, err)

	slots := heap.NumSlots(4096, file.GetTupleDesc())
	wantPages := (40 + slots - 1) / slots
	assert.Equal(t, primitives.PageNumber(wantPages), report.NumPages)
	assert.Equal(t, 40, report.TupleCount())
	assert.Zero(t, report.TrailingBytes)
	assert.Equal(t, []int{0, 1, 2}, report.Pages[0].Used[:3])

	// The read-only transaction was committed and released its locks.
	assert.Empty(t, store.LockManager().Holders(primitives.NewPageID(file.GetID(), 0)))
}

func TestInspectReportsTrailingBytes(t *testing.T) {
	store, file := setup(t, 1)

	f, err := os.OpenFile(file.FilePath().String(), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	report, err := Inspect(context.Background(), store, file)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.TrailingBytes)
	assert.Equal(t, primitives.PageNumber(1), report.NumPages)
}

func TestRender(t *testing.T) {
	store, file := setup(t, 5)

	report, err := Inspect(context.Background(), store, file)
	require.NoError(t, err)

	out := Render(report, 2)
	assert.Contains(t, out, "page 0")
	assert.Contains(t, out, "person")
	assert.Contains(t, out, "... 3 more")
	assert.Contains(t, out, "name STRING_TYPE")
}

func TestRenderPageError(t *testing.T) {
	td, err := tuple.ParseTupleDesc("id:int")
	require.NoError(t, err)

	report := &Report{
		Path:   "broken.dat",
		Schema: td,
		Pages: []PageReport{
			{PageNo: 0, Err: dberror.Errorf(dberror.ErrMalformedPage, "bad slot")},
		},
	}
	out := Render(report, 0)
	assert.Contains(t, out, "malformed page")
	assert.Contains(t, out, "page 0")
}
