package primitives

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// PageID identifies a page by table and page number. It is a plain comparable
// value and is used directly as the cache key and the lock key.
type PageID struct {
	Table  TableID
	PageNo PageNumber
}

// NewPageID creates a page id.
func NewPageID(table TableID, pageNo PageNumber) PageID {
	return PageID{Table: table, PageNo: pageNo}
}

// Compare orders page ids by table, then by page number. It returns -1, 0 or 1.
func (p PageID) Compare(other PageID) int {
	if c := cmp.Compare(p.Table, other.Table); c != 0 {
		return c
	}
	return cmp.Compare(p.PageNo, other.PageNo)
}

// Less reports whether p sorts before other.
func (p PageID) Less(other PageID) bool {
	return p.Compare(other) < 0
}

// Serialize returns the 16-byte big-endian encoding (table, page number).
func (p PageID) Serialize() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], uint64(p.Table))
	binary.BigEndian.PutUint64(buf[8:16], uint64(p.PageNo))
	return buf
}

// HashCode returns an FNV-1a hash of the serialized id.
func (p PageID) HashCode() HashCode {
	h := fnv.New64a()
	_, _ = h.Write(p.Serialize())
	return HashCode(h.Sum64())
}

func (p PageID) String() string {
	return fmt.Sprintf("%d:%d", uint64(p.Table), uint64(p.PageNo))
}
