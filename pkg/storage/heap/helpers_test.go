package heap

import (
	"context"
	"path/filepath"
	"testing"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/tuple"
	"heapstore/pkg/types"

	"github.com/stretchr/testify/require"
)

// fakeSource caches pages and records locks without any concurrency control.
type fakeSource struct {
	file     *HeapFile
	pages    map[primitives.PageID]page.Page
	locks    map[primitives.PageID]page.Permissions
	released []primitives.PageID
}

func newFakeSource(file *HeapFile) *fakeSource {
	return &fakeSource{
		file:  file,
		pages: make(map[primitives.PageID]page.Page),
		locks: make(map[primitives.PageID]page.Permissions),
	}
}

func (s *fakeSource) GetPage(_ context.Context, _ transaction.TransactionID, pid primitives.PageID, perm page.Permissions) (page.Page, error) {
	if cur, ok := s.locks[pid]; !ok || perm > cur {
		s.locks[pid] = perm
	}
	if p, ok := s.pages[pid]; ok {
		return p, nil
	}
	p, err := s.file.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	s.pages[pid] = p
	return p, nil
}

func (s *fakeSource) UnsafeReleasePage(_ transaction.TransactionID, pid primitives.PageID) {
	delete(s.locks, pid)
	s.released = append(s.released, pid)
}

func (s *fakeSource) HoldsLock(_ transaction.TransactionID, pid primitives.PageID) bool {
	_, ok := s.locks[pid]
	return ok
}

// flush writes every cached page to disk.
func (s *fakeSource) flush(t *testing.T) {
	t.Helper()
	for _, p := range s.pages {
		require.NoError(t, s.file.WritePage(p))
	}
}

func intDesc(t *testing.T, n int) *tuple.TupleDescription {
	t.Helper()
	ts := make([]types.Type, n)
	for i := range ts {
		ts[i] = types.IntType
	}
	td, err := tuple.NewTupleDesc(ts, nil)
	require.NoError(t, err)
	return td
}

func intTuple(t *testing.T, td *tuple.TupleDescription, vals ...int32) *tuple.Tuple {
	t.Helper()
	fields := make([]types.Field, len(vals))
	for i, v := range vals {
		fields[i] = types.NewIntField(v)
	}
	tup, err := tuple.FromFields(td, fields...)
	require.NoError(t, err)
	return tup
}

func newHeapFile(t *testing.T, td *tuple.TupleDescription) *HeapFile {
	t.Helper()
	hf, err := NewHeapFile(primitives.Filepath(filepath.Join(t.TempDir(), "table.dat")), td)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hf.Close() })
	return hf
}

// withPageSize switches the global page size for one test.
func withPageSize(t *testing.T, size int) {
	t.Helper()
	page.SetSize(size)
	t.Cleanup(page.ResetSize)
}
