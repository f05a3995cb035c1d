package page

import (
	"bytes"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/primitives"
)

// Permissions is the access a caller requests for a page. ReadOnly maps to a
// shared lock, ReadWrite to an exclusive lock.
type Permissions int

const (
	ReadOnly Permissions = iota
	ReadWrite
)

func (p Permissions) String() string {
	switch p {
	case ReadOnly:
		return "READ_ONLY"
	case ReadWrite:
		return "READ_WRITE"
	default:
		return "UNKNOWN"
	}
}

// DirtyState records whether a page has unflushed changes and which
// transaction made them. The zero value is clean.
type DirtyState struct {
	tid   transaction.TransactionID
	dirty bool
}

// Clean returns the clean state.
func Clean() DirtyState {
	return DirtyState{}
}

// DirtiedBy returns the state of a page modified by tid.
func DirtiedBy(tid transaction.TransactionID) DirtyState {
	return DirtyState{tid: tid, dirty: true}
}

func (d DirtyState) IsDirty() bool {
	return d.dirty
}

// Transaction returns the dirtying transaction; ok is false for a clean page.
func (d DirtyState) Transaction() (tid transaction.TransactionID, ok bool) {
	return d.tid, d.dirty
}

// By reports whether the page is dirty and was dirtied by tid.
func (d DirtyState) By(tid transaction.TransactionID) bool {
	return d.dirty && d.tid == tid
}

func (d DirtyState) String() string {
	if !d.dirty {
		return "clean"
	}
	return "dirty(" + d.tid.String() + ")"
}

// Images pairs the last flushed bytes of a page with its current bytes.
// Before is what disk holds (or held when the page was loaded); After is
// what a flush would write.
type Images struct {
	Before []byte
	After  []byte
}

// Changed reports whether the current bytes differ from the flushed bytes.
func (im Images) Changed() bool {
	return !bytes.Equal(im.Before, im.After)
}

// Page is a page resident in the buffer pool. Implementations synchronize
// their own state; the buffer pool hands out the same instance to every
// caller.
type Page interface {
	GetID() primitives.PageID

	// Dirty returns the current dirty state.
	Dirty() DirtyState

	MarkDirty(tid transaction.TransactionID)

	MarkClean()

	// GetPageData encodes the page to exactly the page size it was decoded with.
	GetPageData() ([]byte, error)

	// Images returns the before-image and the current encoding.
	Images() (Images, error)

	// SetBeforeImage makes the current encoding the new before-image. Called
	// after the page is written to disk.
	SetBeforeImage() error
}
