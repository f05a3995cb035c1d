package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/heap"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/tuple"
	"heapstore/pkg/types"

	"github.com/stretchr/testify/require"
)

func intDesc(t *testing.T) *tuple.TupleDescription {
	t.Helper()
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType, types.IntType}, []string{"id", "value"})
	require.NoError(t, err)
	return td
}

func intTuple(t *testing.T, td *tuple.TupleDescription, id, value int32) *tuple.Tuple {
	t.Helper()
	tup, err := tuple.FromFields(td, types.NewIntField(id), types.NewIntField(value))
	require.NoError(t, err)
	return tup
}

// newTable creates a heap file in a temp dir holding numPages pages, with
// one tuple (page number, 0) in slot 0 of every page.
func newTable(t *testing.T, dir, name string, numPages int) *heap.HeapFile {
	t.Helper()
	td := intDesc(t)

	hf, err := heap.NewHeapFile(primitives.Filepath(filepath.Join(dir, name)), td)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hf.Close() })

	for i := range numPages {
		pid := primitives.NewPageID(hf.GetID(), primitives.PageNumber(i))
		hp, err := heap.NewEmptyHeapPage(pid, td)
		require.NoError(t, err)
		require.NoError(t, hp.AddTuple(intTuple(t, td, int32(i), 0)))
		require.NoError(t, hf.WritePage(hp))
	}
	return hf
}

type fixture struct {
	tables *TableManager
	file   *heap.HeapFile
	store  *PageStore
}

func newFixture(t *testing.T, numPages, capacity int, opts ...Option) *fixture {
	t.Helper()
	tables := NewTableManager()
	hf := newTable(t, t.TempDir(), "t.dat", numPages)
	require.NoError(t, tables.AddTable(hf, "t"))

	opts = append([]Option{
		WithLockTimeout(50 * time.Millisecond),
		WithRetryInterval(2 * time.Millisecond),
	}, opts...)
	return &fixture{
		tables: tables,
		file:   hf,
		store:  NewPageStore(tables, capacity, opts...),
	}
}

func (f *fixture) pid(n int) primitives.PageID {
	return primitives.NewPageID(f.file.GetID(), primitives.PageNumber(n))
}

func (f *fixture) get(t *testing.T, tid transaction.TransactionID, n int, perm page.Permissions) page.Page {
	t.Helper()
	p, err := f.store.GetPage(context.Background(), tid, f.pid(n), perm)
	require.NoError(t, err)
	return p
}

// scan reads every tuple of the fixture table through the store as a fresh
// transaction and commits it.
func (f *fixture) scan(t *testing.T) []*tuple.Tuple {
	t.Helper()
	tid := transaction.NewTransactionID()
	it := f.file.Iterator(context.Background(), tid, f.store)
	require.NoError(t, it.Open())
	defer it.Close()

	var out []*tuple.Tuple
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		tup, err := it.Next()
		require.NoError(t, err)
		out = append(out, tup)
	}
	require.NoError(t, f.store.TransactionComplete(tid, true))
	return out
}

// onDisk decodes page n straight from the file.
func (f *fixture) onDisk(t *testing.T, n int) *heap.HeapPage {
	t.Helper()
	p, err := f.file.ReadPage(f.pid(n))
	require.NoError(t, err)
	return p.(*heap.HeapPage)
}
