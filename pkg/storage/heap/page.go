package heap

import (
	"bytes"
	"sync"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/dberror"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/tuple"
	"heapstore/pkg/types"
)

// ErrPageFull is returned by AddTuple when every slot is in use.
var ErrPageFull = &dberror.DBError{Code: "PAGE_FULL", Category: dberror.ErrCategoryTransient, Message: "page has no free slot"}

// HeapPage is one fixed-size page of a heap file.
//
// Layout:
//
//	[header: ceil(numSlots/8) bytes][slot 0]...[slot numSlots-1][zero padding]
//
// Every slot is TupleDesc.GetSize() bytes wide. Bit i%8 of header byte i/8
// (least significant bit first) is set when slot i holds a tuple. Empty
// slots are written as zeros. The slot count is the largest n such that n
// tuples plus n header bits fit in the page: floor(pageSize*8 / (tupleSize*8+1)).
type HeapPage struct {
	pageID    primitives.PageID
	tupleDesc *tuple.TupleDescription
	pageSize  int
	numSlots  int
	header    []byte
	tuples    []*tuple.Tuple // indexed by slot; nil for empty slots
	dirty     page.DirtyState
	oldData   []byte // before-image
	mutex     sync.RWMutex
}

// NumSlots returns how many tuples of td fit on a page of pageSize bytes.
func NumSlots(pageSize int, td *tuple.TupleDescription) int {
	tupleBits := int(td.GetSize())*8 + 1
	return (pageSize * 8) / tupleBits
}

// HeaderSize returns the bitmap size in bytes for numSlots slots.
func HeaderSize(numSlots int) int {
	return (numSlots + 7) / 8
}

// EmptyPageData returns a zero-filled page buffer of the current page size.
func EmptyPageData() []byte {
	return make([]byte, page.Size())
}

// NewEmptyHeapPage creates an empty page of the current page size.
func NewEmptyHeapPage(pid primitives.PageID, td *tuple.TupleDescription) (*HeapPage, error) {
	return NewHeapPage(pid, EmptyPageData(), td)
}

// NewHeapPage decodes data into a page. The page keeps len(data) as its size
// for its whole lifetime. The decoded bytes become the before-image.
//
// Returns a MalformedPage error when data is not the current page size or a
// slot marked present cannot be parsed.
func NewHeapPage(pid primitives.PageID, data []byte, td *tuple.TupleDescription) (*HeapPage, error) {
	size := page.Size()
	if len(data) != size {
		return nil, dberror.Errorf(dberror.ErrMalformedPage,
			"page %s: expected %d bytes, got %d", pid, size, len(data))
	}

	numSlots := NumSlots(size, td)
	headerSize := HeaderSize(numSlots)
	tupleSize := int(td.GetSize())

	hp := &HeapPage{
		pageID:    pid,
		tupleDesc: td,
		pageSize:  size,
		numSlots:  numSlots,
		header:    make([]byte, headerSize),
		tuples:    make([]*tuple.Tuple, numSlots),
	}
	copy(hp.header, data[:headerSize])

	for i := range numSlots {
		if !hp.isSlotUsed(i) {
			continue
		}

		start := headerSize + i*tupleSize
		t, err := hp.readTuple(data[start:start+tupleSize], i)
		if err != nil {
			return nil, err
		}
		hp.tuples[i] = t
	}

	hp.oldData = bytes.Clone(data)
	return hp, nil
}

func (hp *HeapPage) readTuple(raw []byte, slot int) (*tuple.Tuple, error) {
	r := bytes.NewReader(raw)
	t := tuple.NewTuple(hp.tupleDesc)

	for j, ft := range hp.tupleDesc.Types {
		f, err := types.ParseField(r, ft)
		if err != nil {
			return nil, dberror.Errorf(dberror.ErrMalformedPage,
				"page %s slot %d field %d: %v", hp.pageID, slot, j, err)
		}
		if err := t.SetField(j, f); err != nil {
			return nil, dberror.Errorf(dberror.ErrMalformedPage,
				"page %s slot %d field %d: %v", hp.pageID, slot, j, err)
		}
	}

	t.RecordID = tuple.NewRecordID(hp.pageID, primitives.SlotID(slot)) // #nosec G115
	return t, nil
}

func (hp *HeapPage) GetID() primitives.PageID {
	return hp.pageID
}

// GetTupleDesc returns the schema the page was decoded with.
func (hp *HeapPage) GetTupleDesc() *tuple.TupleDescription {
	return hp.tupleDesc
}

func (hp *HeapPage) Dirty() page.DirtyState {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return hp.dirty
}

func (hp *HeapPage) MarkDirty(tid transaction.TransactionID) {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()
	hp.dirty = page.DirtiedBy(tid)
}

func (hp *HeapPage) MarkClean() {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()
	hp.dirty = page.Clean()
}

// GetPageData encodes the page.
func (hp *HeapPage) GetPageData() ([]byte, error) {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return hp.encode()
}

func (hp *HeapPage) encode() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, hp.pageSize))
	buf.Write(hp.header)

	empty := make([]byte, hp.tupleDesc.GetSize())
	for _, t := range hp.tuples {
		if t == nil {
			buf.Write(empty)
			continue
		}
		for j := range hp.tupleDesc.NumFields() {
			f, _ := t.GetField(j)
			if f == nil {
				return nil, dberror.Errorf(dberror.ErrSchemaMismatch,
					"page %s: tuple field %d is unset", hp.pageID, j)
			}
			if err := f.Serialize(buf); err != nil {
				return nil, err
			}
		}
	}

	data := buf.Bytes()
	return append(data, make([]byte, hp.pageSize-len(data))...), nil
}

// Images returns the before-image and the current encoding.
func (hp *HeapPage) Images() (page.Images, error) {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	after, err := hp.encode()
	if err != nil {
		return page.Images{}, err
	}
	return page.Images{Before: bytes.Clone(hp.oldData), After: after}, nil
}

// GetBeforeImage decodes the before-image into a new page.
func (hp *HeapPage) GetBeforeImage() (*HeapPage, error) {
	hp.mutex.RLock()
	old := bytes.Clone(hp.oldData)
	hp.mutex.RUnlock()

	return decodeSized(hp.pageID, old, hp.tupleDesc)
}

// decodeSized decodes data that may have been produced under a page size
// other than the current one.
func decodeSized(pid primitives.PageID, data []byte, td *tuple.TupleDescription) (*HeapPage, error) {
	if len(data) == page.Size() {
		return NewHeapPage(pid, data, td)
	}
	return nil, dberror.Errorf(dberror.ErrMalformedPage,
		"page %s: before-image is %d bytes but page size is now %d", pid, len(data), page.Size())
}

func (hp *HeapPage) SetBeforeImage() error {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	data, err := hp.encode()
	if err != nil {
		return err
	}
	hp.oldData = data
	return nil
}

// NumSlots returns the slot capacity of this page.
func (hp *HeapPage) NumSlots() int {
	return hp.numSlots
}

// NumEmptySlots returns the number of free slots.
func (hp *HeapPage) NumEmptySlots() int {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	n := 0
	for i := range hp.numSlots {
		if !hp.isSlotUsed(i) {
			n++
		}
	}
	return n
}

// IsSlotUsed reports whether slot i holds a tuple.
func (hp *HeapPage) IsSlotUsed(i int) bool {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()
	return hp.isSlotUsed(i)
}

func (hp *HeapPage) isSlotUsed(i int) bool {
	if i < 0 || i >= hp.numSlots {
		return false
	}
	return hp.header[i/8]&(1<<(i%8)) != 0
}

func (hp *HeapPage) setSlot(i int, used bool) {
	if used {
		hp.header[i/8] |= 1 << (i % 8)
	} else {
		hp.header[i/8] &^= 1 << (i % 8)
	}
}

// AddTuple stores t in the lowest free slot and sets t.RecordID.
func (hp *HeapPage) AddTuple(t *tuple.Tuple) error {
	if !hp.tupleDesc.Equals(t.TupleDesc) || !t.IsComplete() {
		return dberror.Errorf(dberror.ErrSchemaMismatch,
			"tuple %s does not match page schema %s", t.TupleDesc, hp.tupleDesc)
	}

	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	for i := range hp.numSlots {
		if hp.isSlotUsed(i) {
			continue
		}
		hp.setSlot(i, true)
		hp.tuples[i] = t
		t.RecordID = tuple.NewRecordID(hp.pageID, primitives.SlotID(i)) // #nosec G115
		return nil
	}

	return dberror.Errorf(ErrPageFull, "page %s", hp.pageID)
}

// DeleteTuple clears the slot named by t.RecordID. The slot must be on this
// page, be in use and hold a tuple equal to t.
func (hp *HeapPage) DeleteTuple(t *tuple.Tuple) error {
	rid := t.RecordID
	if rid == nil || rid.PageID != hp.pageID {
		return dberror.Errorf(dberror.ErrTupleNotFound, "tuple is not on page %s", hp.pageID)
	}

	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	slot := int(rid.TupleNum)
	if !hp.isSlotUsed(slot) {
		return dberror.Errorf(dberror.ErrTupleNotFound, "slot %d on page %s is empty", slot, hp.pageID)
	}
	if !hp.tuples[slot].FieldsEqual(t) {
		return dberror.Errorf(dberror.ErrTupleNotFound, "slot %d on page %s holds a different tuple", slot, hp.pageID)
	}

	hp.setSlot(slot, false)
	hp.tuples[slot] = nil
	t.RecordID = nil
	return nil
}

// GetTuples returns the stored tuples in slot order.
func (hp *HeapPage) GetTuples() []*tuple.Tuple {
	hp.mutex.RLock()
	defer hp.mutex.RUnlock()

	out := make([]*tuple.Tuple, 0, hp.numSlots)
	for _, t := range hp.tuples {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}
