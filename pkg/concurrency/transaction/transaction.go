package transaction

import (
	"fmt"
	"sync/atomic"
)

var transactionCounter int64

// TransactionID identifies a transaction. It is a comparable value; two ids
// are equal only if they came from the same NewTransactionID call. The zero
// value is never issued.
type TransactionID struct {
	id int64
}

// NewTransactionID returns a fresh, process-unique id.
func NewTransactionID() TransactionID {
	return TransactionID{
		id: atomic.AddInt64(&transactionCounter, 1),
	}
}

// NewTransactionIDFromValue creates a TransactionID with a specific value.
// Intended for tests and tools that replay recorded ids.
func NewTransactionIDFromValue(id int64) TransactionID {
	return TransactionID{id: id}
}

func (tid TransactionID) ID() int64 {
	return tid.id
}

// IsZero reports whether tid is the unissued zero value.
func (tid TransactionID) IsZero() bool {
	return tid.id == 0
}

func (tid TransactionID) String() string {
	return fmt.Sprintf("TID-%d", tid.id)
}
