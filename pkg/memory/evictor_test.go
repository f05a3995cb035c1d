package memory

import (
	"testing"

	"heapstore/pkg/primitives"

	"github.com/stretchr/testify/assert"
)

func pids(nums ...int) []primitives.PageID {
	out := make([]primitives.PageID, len(nums))
	for i, n := range nums {
		out[i] = primitives.NewPageID(1, primitives.PageNumber(n))
	}
	return out
}

func TestLRUEvictorOrder(t *testing.T) {
	e := NewLRUEvictor()
	for _, pid := range pids(0, 1, 2) {
		e.Touch(pid)
	}
	assert.Equal(t, pids(0, 1, 2), e.Order())

	e.Touch(pids(0)[0])
	assert.Equal(t, pids(1, 2, 0), e.Order())

	e.Remove(pids(2)[0])
	assert.Equal(t, pids(1, 0), e.Order())
	assert.Equal(t, 2, e.Len())

	e.Remove(pids(7)[0])
	assert.Equal(t, 2, e.Len())
}

func TestLRUEvictorVictim(t *testing.T) {
	e := NewLRUEvictor()
	for _, pid := range pids(0, 1, 2, 3) {
		e.Touch(pid)
	}

	victim, ok := e.Victim(func(primitives.PageID) bool { return true })
	assert.True(t, ok)
	assert.Equal(t, pids(0)[0], victim)
	assert.Equal(t, 4, e.Len(), "Victim does not remove")

	pinned := map[primitives.PageID]bool{pids(0)[0]: true, pids(1)[0]: true}
	victim, ok = e.Victim(func(pid primitives.PageID) bool { return !pinned[pid] })
	assert.True(t, ok)
	assert.Equal(t, pids(2)[0], victim)

	_, ok = e.Victim(func(primitives.PageID) bool { return false })
	assert.False(t, ok)
}

func TestLRUEvictorClear(t *testing.T) {
	e := NewLRUEvictor()
	for _, pid := range pids(0, 1) {
		e.Touch(pid)
	}
	e.Clear()

	assert.Zero(t, e.Len())
	assert.Empty(t, e.Order())
	_, ok := e.Victim(func(primitives.PageID) bool { return true })
	assert.False(t, ok)

	e.Touch(pids(5)[0])
	assert.Equal(t, pids(5), e.Order())
}
