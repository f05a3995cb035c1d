// Package log defines the sink the buffer pool reports page writes to.
//
// Before a dirty page reaches disk the buffer pool calls LogWrite with the
// page's before and after images and then Force. The engine itself does not
// replay log records; NopSink is enough for correct commit and abort.
// MemorySink keeps records in memory for tests and tooling.
package log

import (
	"sync"
	"time"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/primitives"
)

// LSN orders records within one sink.
type LSN uint64

// LogRecord is one page update.
type LogRecord struct {
	LSN         LSN
	TID         transaction.TransactionID
	PageID      primitives.PageID
	BeforeImage []byte
	AfterImage  []byte
	Timestamp   time.Time
}

// Sink receives page images before they are written to disk.
type Sink interface {
	LogWrite(tid transaction.TransactionID, pid primitives.PageID, before, after []byte) error
	Force() error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) LogWrite(transaction.TransactionID, primitives.PageID, []byte, []byte) error {
	return nil
}

func (NopSink) Force() error { return nil }

// MemorySink appends records to a slice. Records become durable, in the
// sense of Durable(), only after Force.
type MemorySink struct {
	mutex   sync.Mutex
	records []LogRecord
	forced  int
	nextLSN LSN
}

func NewMemorySink() *MemorySink {
	return &MemorySink{nextLSN: 1}
}

func (s *MemorySink) LogWrite(tid transaction.TransactionID, pid primitives.PageID, before, after []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.records = append(s.records, LogRecord{
		LSN:         s.nextLSN,
		TID:         tid,
		PageID:      pid,
		BeforeImage: before,
		AfterImage:  after,
		Timestamp:   time.Now(),
	})
	s.nextLSN++
	return nil
}

func (s *MemorySink) Force() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.forced = len(s.records)
	return nil
}

// Records returns a copy of every record written so far.
func (s *MemorySink) Records() []LogRecord {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]LogRecord(nil), s.records...)
}

// Durable returns the records covered by the last Force.
func (s *MemorySink) Durable() []LogRecord {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]LogRecord(nil), s.records[:s.forced]...)
}

// ForTransaction returns the records written by tid.
func (s *MemorySink) ForTransaction(tid transaction.TransactionID) []LogRecord {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []LogRecord
	for _, r := range s.records {
		if r.TID == tid {
			out = append(out, r)
		}
	}
	return out
}
