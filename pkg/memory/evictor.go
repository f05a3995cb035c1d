package memory

import (
	"sync"

	"heapstore/pkg/primitives"
)

type node struct {
	pid  primitives.PageID
	prev *node
	next *node
}

// LRUEvictor tracks page recency with a doubly linked list and an index from
// page id to list node. The head side is most recently used.
type LRUEvictor struct {
	nodes map[primitives.PageID]*node
	head  *node // Dummy head node (most recently used end)
	tail  *node // Dummy tail node (least recently used end)
	mutex sync.Mutex
}

func NewLRUEvictor() *LRUEvictor {
	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head

	return &LRUEvictor{
		nodes: make(map[primitives.PageID]*node),
		head:  head,
		tail:  tail,
	}
}

func (e *LRUEvictor) addToFront(n *node) {
	n.prev = e.head
	n.next = e.head.next
	e.head.next.prev = n
	e.head.next = n
}

func (e *LRUEvictor) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

// Touch makes pid the most recently used entry, adding it if needed.
func (e *LRUEvictor) Touch(pid primitives.PageID) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if n, ok := e.nodes[pid]; ok {
		e.removeNode(n)
		e.addToFront(n)
		return
	}

	n := &node{pid: pid}
	e.nodes[pid] = n
	e.addToFront(n)
}

// Remove forgets pid.
func (e *LRUEvictor) Remove(pid primitives.PageID) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if n, ok := e.nodes[pid]; ok {
		delete(e.nodes, pid)
		e.removeNode(n)
	}
}

// Victim returns the least recently used page for which evictable returns
// true, without removing it. ok is false when no page qualifies.
func (e *LRUEvictor) Victim(evictable func(primitives.PageID) bool) (pid primitives.PageID, ok bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	for n := e.tail.prev; n != e.head; n = n.prev {
		if evictable(n.pid) {
			return n.pid, true
		}
	}
	return primitives.PageID{}, false
}

// Len returns the number of tracked pages.
func (e *LRUEvictor) Len() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return len(e.nodes)
}

// Order returns tracked pages from least to most recently used.
func (e *LRUEvictor) Order() []primitives.PageID {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	pids := make([]primitives.PageID, 0, len(e.nodes))
	for n := e.tail.prev; n != e.head; n = n.prev {
		pids = append(pids, n.pid)
	}
	return pids
}

// Clear forgets every page.
func (e *LRUEvictor) Clear() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.nodes = make(map[primitives.PageID]*node)
	e.head.next = e.tail
	e.tail.prev = e.head
}
