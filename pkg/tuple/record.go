package tuple

import (
	"fmt"

	"heapstore/pkg/primitives"
)

// RecordID locates a stored tuple: the page that holds it and the slot index.
type RecordID struct {
	PageID   primitives.PageID
	TupleNum primitives.SlotID
}

// NewRecordID creates a new RecordID
func NewRecordID(pageID primitives.PageID, tupleNum primitives.SlotID) *RecordID {
	return &RecordID{
		PageID:   pageID,
		TupleNum: tupleNum,
	}
}

func (rid *RecordID) Equals(other *RecordID) bool {
	if other == nil {
		return false
	}
	return rid.PageID == other.PageID && rid.TupleNum == other.TupleNum
}

func (rid *RecordID) String() string {
	return fmt.Sprintf("RecordID(page=%s, tuple=%d)", rid.PageID, rid.TupleNum)
}
