package log

import (
	"testing"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/primitives"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	assert.NoError(t, s.LogWrite(transaction.NewTransactionID(), primitives.NewPageID(1, 0), nil, nil))
	assert.NoError(t, s.Force())
}

func TestMemorySink(t *testing.T) {
	s := NewMemorySink()
	t1 := transaction.NewTransactionID()
	t2 := transaction.NewTransactionID()

	require.NoError(t, s.LogWrite(t1, primitives.NewPageID(1, 0), []byte{0}, []byte{1}))
	require.NoError(t, s.Force())
	require.NoError(t, s.LogWrite(t2, primitives.NewPageID(1, 1), []byte{2}, []byte{3}))

	records := s.Records()
	require.Len(t, records, 2)
	assert.Equal(t, LSN(1), records[0].LSN)
	assert.Equal(t, LSN(2), records[1].LSN)
	assert.Equal(t, []byte{3}, records[1].AfterImage)

	assert.Len(t, s.Durable(), 1)
	assert.Len(t, s.ForTransaction(t2), 1)
	assert.Equal(t, primitives.NewPageID(1, 1), s.ForTransaction(t2)[0].PageID)

	require.NoError(t, s.Force())
	assert.Len(t, s.Durable(), 2)
}
