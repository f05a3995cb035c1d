package page

import (
	"context"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/primitives"
	"heapstore/pkg/tuple"
)

// PageSource is the view of the buffer pool a DbFile needs to read and lock
// pages on behalf of a transaction.
type PageSource interface {
	GetPage(ctx context.Context, tid transaction.TransactionID, pid primitives.PageID, perm Permissions) (Page, error)

	// UnsafeReleasePage drops tid's lock on pid before the transaction ends.
	UnsafeReleasePage(tid transaction.TransactionID, pid primitives.PageID)

	HoldsLock(tid transaction.TransactionID, pid primitives.PageID) bool
}

// DbFile is the on-disk representation of one table.
type DbFile interface {
	// GetID returns the table id; it is stable for a given file path.
	GetID() primitives.TableID

	GetTupleDesc() *tuple.TupleDescription

	// ReadPage reads and decodes a page directly from disk, bypassing the
	// buffer pool.
	ReadPage(pid primitives.PageID) (Page, error)

	// WritePage encodes p and writes it at its offset, extending the file if needed.
	WritePage(p Page) error

	NumPages() (primitives.PageNumber, error)

	// InsertTuple stores t in a page obtained through src and returns the
	// pages it modified. The caller marks them dirty.
	InsertTuple(ctx context.Context, tid transaction.TransactionID, t *tuple.Tuple, src PageSource) ([]Page, error)

	// DeleteTuple clears t's slot and returns the modified page.
	DeleteTuple(ctx context.Context, tid transaction.TransactionID, t *tuple.Tuple, src PageSource) ([]Page, error)

	// Iterator returns a tuple iterator that reads pages through src with
	// ReadOnly permission.
	Iterator(ctx context.Context, tid transaction.TransactionID, src PageSource) DbFileIterator

	Close() error
}

// DbFileIterator walks the tuples of a file. It must be opened before use
// and can be rewound.
type DbFileIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*tuple.Tuple, error)
	Rewind() error
	Close() error
}
