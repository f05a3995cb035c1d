// Package storage is the root of the on-disk storage layer.
//
// A table is a heap file: a sequence of fixed-size pages with no file
// header, where page n starts at byte n*pageSize. Pages are read and written
// whole.
//
// # Sub-packages
//
//   - [heapstore/pkg/storage/page] holds the page size setting, the Page,
//     DbFile and PageSource interfaces, and BaseFile for positional page
//     I/O.
//   - [heapstore/pkg/storage/heap] holds the slotted heap page codec, the
//     heap file and its tuple iterator.
//
// # Page layout
//
// A heap page is a presence bitmap followed by fixed-width tuple slots and
// zero padding. Slot i is present when bit i%8 of header byte i/8 is set.
// Empty slots are written as zeros.
package storage
