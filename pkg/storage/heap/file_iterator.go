package heap

import (
	"context"
	"fmt"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/tuple"
)

// HeapFileIterator yields the tuples of a HeapFile page by page in
// ascending page order. Pages are fetched through the buffer pool with
// ReadOnly permission as the iterator reaches them.
type HeapFileIterator struct {
	ctx        context.Context
	file       *HeapFile
	tid        transaction.TransactionID
	src        page.PageSource
	nextPage   primitives.PageNumber
	numPages   primitives.PageNumber
	pageTuples []*tuple.Tuple
	pos        int
	isOpen     bool
}

// NewHeapFileIterator creates a new iterator for the given HeapFile
func NewHeapFileIterator(ctx context.Context, file *HeapFile, tid transaction.TransactionID, src page.PageSource) *HeapFileIterator {
	return &HeapFileIterator{
		ctx:  ctx,
		file: file,
		tid:  tid,
		src:  src,
	}
}

// Open positions the iterator before the first tuple. The page count is
// sampled here; pages appended later are not visited until Rewind.
func (it *HeapFileIterator) Open() error {
	numPages, err := it.file.NumPages()
	if err != nil {
		return err
	}

	it.numPages = numPages
	it.nextPage = 0
	it.pageTuples = nil
	it.pos = 0
	it.isOpen = true
	return nil
}

// HasNext returns true if there are more tuples
func (it *HeapFileIterator) HasNext() (bool, error) {
	if !it.isOpen {
		return false, fmt.Errorf("iterator not opened")
	}

	for it.pos >= len(it.pageTuples) {
		if it.nextPage >= it.numPages {
			return false, nil
		}
		if err := it.loadPage(it.nextPage); err != nil {
			return false, err
		}
		it.nextPage++
	}
	return true, nil
}

// Next returns the next tuple
func (it *HeapFileIterator) Next() (*tuple.Tuple, error) {
	hasNext, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, fmt.Errorf("no more tuples")
	}

	t := it.pageTuples[it.pos]
	it.pos++
	return t, nil
}

// Rewind closes and reopens the iterator.
func (it *HeapFileIterator) Rewind() error {
	if err := it.Close(); err != nil {
		return err
	}
	return it.Open()
}

// Close releases iterator state. Page locks stay with the transaction.
func (it *HeapFileIterator) Close() error {
	it.pageTuples = nil
	it.pos = 0
	it.isOpen = false
	return nil
}

func (it *HeapFileIterator) loadPage(pageNo primitives.PageNumber) error {
	pid := primitives.NewPageID(it.file.GetID(), pageNo)
	p, err := it.src.GetPage(it.ctx, it.tid, pid, page.ReadOnly)
	if err != nil {
		return err
	}

	it.pageTuples = asHeapPage(p).GetTuples()
	it.pos = 0
	return nil
}
