package primitives

import "fmt"

// TableID identifies a table. It is derived from the table file's path with
// Filepath.Hash, so the same file always maps to the same id.
type TableID uint64

// PageNumber is the zero-based index of a page within a table file.
type PageNumber uint64

// SlotID is the index of a tuple slot within a page.
type SlotID uint16

// HashCode is a hash value used for fast comparisons.
type HashCode uint64

// InvalidTableID represents an unset table id.
const InvalidTableID TableID = 0

func (t TableID) IsValid() bool {
	return t != InvalidTableID
}

func (t TableID) String() string {
	return fmt.Sprintf("TableID(%d)", uint64(t))
}
