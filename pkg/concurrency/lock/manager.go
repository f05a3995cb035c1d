package lock

import (
	"slices"
	"sync"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/logging"
	"heapstore/pkg/primitives"

	"go.uber.org/zap"
)

type LockManager struct {
	pageLocks map[primitives.PageID]map[transaction.TransactionID]LockMode // Page -> holders
	txLocks   map[transaction.TransactionID]map[primitives.PageID]struct{} // Transaction -> pages it holds
	mutex     sync.Mutex
}

func NewLockManager() *LockManager {
	return &LockManager{
		pageLocks: make(map[primitives.PageID]map[transaction.TransactionID]LockMode),
		txLocks:   make(map[transaction.TransactionID]map[primitives.PageID]struct{}),
	}
}

// Acquire tries to grant tid a lock of the given mode on pid and reports
// whether it did. A refused request leaves the lock table unchanged.
func (lm *LockManager) Acquire(tid transaction.TransactionID, pid primitives.PageID, mode LockMode) bool {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	holders := lm.pageLocks[pid]
	if len(holders) == 0 {
		lm.grant(tid, pid, mode)
		return true
	}

	if held, ok := holders[tid]; ok {
		if held.Covers(mode) {
			return true
		}
		// Shared -> Exclusive upgrade.
		if len(holders) == 1 {
			holders[tid] = Exclusive
			logging.GetLogger().Debug("lock upgraded",
				logging.TxField(tid), logging.PageField(pid))
			return true
		}
		return false
	}

	if mode == Exclusive {
		return false
	}
	for _, held := range holders {
		if held == Exclusive {
			return false
		}
	}

	lm.grant(tid, pid, Shared)
	return true
}

func (lm *LockManager) grant(tid transaction.TransactionID, pid primitives.PageID, mode LockMode) {
	holders, ok := lm.pageLocks[pid]
	if !ok {
		holders = make(map[transaction.TransactionID]LockMode)
		lm.pageLocks[pid] = holders
	}
	holders[tid] = mode

	pages, ok := lm.txLocks[tid]
	if !ok {
		pages = make(map[primitives.PageID]struct{})
		lm.txLocks[tid] = pages
	}
	pages[pid] = struct{}{}

	logging.GetLogger().Debug("lock granted",
		logging.TxField(tid), logging.PageField(pid), zap.Stringer("mode", mode))
}

// Release drops tid's lock on pid. It returns false if tid held none.
func (lm *LockManager) Release(tid transaction.TransactionID, pid primitives.PageID) bool {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return lm.release(tid, pid)
}

func (lm *LockManager) release(tid transaction.TransactionID, pid primitives.PageID) bool {
	holders, ok := lm.pageLocks[pid]
	if !ok {
		return false
	}
	if _, held := holders[tid]; !held {
		return false
	}

	delete(holders, tid)
	deleteIfEmpty(lm.pageLocks, pid)

	delete(lm.txLocks[tid], pid)
	deleteIfEmpty(lm.txLocks, tid)
	return true
}

// ReleaseAll drops every lock held by tid and returns the released pages in
// page order.
func (lm *LockManager) ReleaseAll(tid transaction.TransactionID) []primitives.PageID {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	pages := lm.pagesOf(tid)
	for _, pid := range pages {
		lm.release(tid, pid)
	}

	if len(pages) > 0 {
		logging.GetLogger().Debug("locks released",
			logging.TxField(tid), zap.Int("pages", len(pages)))
	}
	return pages
}

// Holds reports whether tid holds any lock on pid.
func (lm *LockManager) Holds(tid transaction.TransactionID, pid primitives.PageID) bool {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	_, ok := lm.pageLocks[pid][tid]
	return ok
}

// ModeOf returns the mode tid holds on pid.
func (lm *LockManager) ModeOf(tid transaction.TransactionID, pid primitives.PageID) (LockMode, bool) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	mode, ok := lm.pageLocks[pid][tid]
	return mode, ok
}

// IsPageLocked reports whether any transaction holds a lock on pid.
func (lm *LockManager) IsPageLocked(pid primitives.PageID) bool {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return len(lm.pageLocks[pid]) > 0
}

// Holders returns a copy of the holder map for pid.
func (lm *LockManager) Holders(pid primitives.PageID) map[transaction.TransactionID]LockMode {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	out := make(map[transaction.TransactionID]LockMode, len(lm.pageLocks[pid]))
	for tid, mode := range lm.pageLocks[pid] {
		out[tid] = mode
	}
	return out
}

// LockedPages returns the pages tid currently holds, in page order.
func (lm *LockManager) LockedPages(tid transaction.TransactionID) []primitives.PageID {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	return lm.pagesOf(tid)
}

func (lm *LockManager) pagesOf(tid transaction.TransactionID) []primitives.PageID {
	pages := make([]primitives.PageID, 0, len(lm.txLocks[tid]))
	for pid := range lm.txLocks[tid] {
		pages = append(pages, pid)
	}
	slices.SortFunc(pages, primitives.PageID.Compare)
	return pages
}
