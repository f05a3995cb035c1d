package heap

import (
	"context"
	"fmt"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/dberror"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/tuple"
)

// HeapFile stores one table as an unordered sequence of HeapPages.
type HeapFile struct {
	*page.BaseFile
	tupleDesc *tuple.TupleDescription
}

// NewHeapFile opens or creates the heap file at path with schema td. It fails
// with SchemaMismatch if not even one tuple of td fits on a page.
func NewHeapFile(path primitives.Filepath, td *tuple.TupleDescription) (*HeapFile, error) {
	if td == nil {
		return nil, fmt.Errorf("tuple description cannot be nil")
	}
	if NumSlots(page.Size(), td) == 0 {
		return nil, dberror.Errorf(dberror.ErrSchemaMismatch,
			"tuple size %d does not fit a %d byte page", td.GetSize(), page.Size())
	}

	baseFile, err := page.NewBaseFile(path)
	if err != nil {
		return nil, err
	}

	return &HeapFile{
		BaseFile:  baseFile,
		tupleDesc: td,
	}, nil
}

func (hf *HeapFile) GetTupleDesc() *tuple.TupleDescription {
	return hf.tupleDesc
}

// ReadPage reads and decodes pid from disk.
func (hf *HeapFile) ReadPage(pid primitives.PageID) (page.Page, error) {
	return hf.readHeapPage(pid)
}

func (hf *HeapFile) readHeapPage(pid primitives.PageID) (*HeapPage, error) {
	if pid.Table != hf.GetID() {
		return nil, dberror.Errorf(dberror.ErrIO, "page %s does not belong to table %d", pid, hf.GetID())
	}

	data, err := hf.ReadPageData(pid.PageNo)
	if err != nil {
		return nil, err
	}
	return NewHeapPage(pid, data, hf.tupleDesc)
}

// WritePage encodes p and writes it at its offset.
func (hf *HeapFile) WritePage(p page.Page) error {
	if p == nil {
		return fmt.Errorf("page cannot be nil")
	}

	data, err := p.GetPageData()
	if err != nil {
		return err
	}
	return hf.WritePageData(p.GetID().PageNo, data)
}

// InsertTuple places t in the first page with a free slot, scanning pages in
// order. Each page is first read with ReadOnly permission; pages that turn
// out to be full are released immediately unless tid already held them. If
// every page is full a new page is appended. Exactly one page is returned.
func (hf *HeapFile) InsertTuple(ctx context.Context, tid transaction.TransactionID, t *tuple.Tuple, src page.PageSource) ([]page.Page, error) {
	if !hf.tupleDesc.Equals(t.TupleDesc) || !t.IsComplete() {
		return nil, dberror.Errorf(dberror.ErrSchemaMismatch,
			"tuple %s does not match table schema %s", t.TupleDesc, hf.tupleDesc)
	}

	numPages, err := hf.NumPages()
	if err != nil {
		return nil, err
	}

	for pageNo := range numPages {
		pid := primitives.NewPageID(hf.GetID(), pageNo)
		held := src.HoldsLock(tid, pid)

		p, err := src.GetPage(ctx, tid, pid, page.ReadOnly)
		if err != nil {
			return nil, err
		}

		if asHeapPage(p).NumEmptySlots() == 0 {
			if !held {
				src.UnsafeReleasePage(tid, pid)
			}
			continue
		}

		return hf.insertInto(ctx, tid, pid, t, src)
	}

	pageNo, err := hf.AllocateNewPage()
	if err != nil {
		return nil, err
	}
	return hf.insertInto(ctx, tid, primitives.NewPageID(hf.GetID(), pageNo), t, src)
}

func (hf *HeapFile) insertInto(ctx context.Context, tid transaction.TransactionID, pid primitives.PageID, t *tuple.Tuple, src page.PageSource) ([]page.Page, error) {
	p, err := src.GetPage(ctx, tid, pid, page.ReadWrite)
	if err != nil {
		return nil, err
	}

	hp := asHeapPage(p)
	if err := hp.AddTuple(t); err != nil {
		return nil, err
	}
	return []page.Page{hp}, nil
}

// DeleteTuple removes t from the page named by its record id.
func (hf *HeapFile) DeleteTuple(ctx context.Context, tid transaction.TransactionID, t *tuple.Tuple, src page.PageSource) ([]page.Page, error) {
	rid := t.RecordID
	if rid == nil {
		return nil, dberror.Errorf(dberror.ErrTupleNotFound, "tuple has no record id")
	}
	if rid.PageID.Table != hf.GetID() {
		return nil, dberror.Errorf(dberror.ErrTupleNotFound, "%s is not in table %d", rid, hf.GetID())
	}

	numPages, err := hf.NumPages()
	if err != nil {
		return nil, err
	}
	if rid.PageID.PageNo >= numPages {
		return nil, dberror.Errorf(dberror.ErrTupleNotFound, "%s is past the end of the file", rid)
	}

	p, err := src.GetPage(ctx, tid, rid.PageID, page.ReadWrite)
	if err != nil {
		return nil, err
	}

	hp := asHeapPage(p)
	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}
	return []page.Page{hp}, nil
}

// Iterator returns a HeapFileIterator over the file.
func (hf *HeapFile) Iterator(ctx context.Context, tid transaction.TransactionID, src page.PageSource) page.DbFileIterator {
	return NewHeapFileIterator(ctx, hf, tid, src)
}

// asHeapPage panics if the buffer pool returned a page of another kind for
// a heap file page id, which would mean two files share a table id.
func asHeapPage(p page.Page) *HeapPage {
	hp, ok := p.(*HeapPage)
	if !ok {
		panic(fmt.Sprintf("heap: page %s is %T, not *HeapPage", p.GetID(), p))
	}
	return hp
}
