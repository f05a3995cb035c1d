package page

import "sync/atomic"

// DefaultSize is the page size in bytes used unless SetSize is called.
const DefaultSize = 4096

var pageSize atomic.Int64

func init() {
	pageSize.Store(DefaultSize)
}

// Size returns the current page size in bytes.
func Size() int {
	return int(pageSize.Load())
}

// SetSize changes the page size for every subsequent encode, decode and file
// offset computation. Call it once at startup, before any file is opened;
// pages already cached keep the size they were decoded with.
func SetSize(n int) {
	pageSize.Store(int64(n))
}

// ResetSize restores DefaultSize. Intended for tests.
func ResetSize() {
	pageSize.Store(DefaultSize)
}
