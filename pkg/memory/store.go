package memory

import (
	"context"
	"errors"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"heapstore/pkg/concurrency/lock"
	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/config"
	"heapstore/pkg/dberror"
	"heapstore/pkg/log"
	"heapstore/pkg/logging"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/tuple"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const component = "PageStore"

// PageStore is the buffer pool: a bounded cache of pages through which all
// page access and mutation flows.
//
// Every page handed out is the single cached instance for its id. Callers
// must hold the matching lock (GetPage acquires it) before reading or
// mutating it. Dirty pages are never evicted and are written to disk only
// when their transaction commits (no-steal, force at commit).
type PageStore struct {
	catalog       Catalog
	lockManager   *lock.LockManager
	evictor       *LRUEvictor
	sink          log.Sink
	capacity      int
	lockTimeout   time.Duration
	retryInterval time.Duration
	metrics       *storeMetrics
	logger        *zap.Logger

	mutex sync.Mutex // guards pages; held across load and eviction
	pages map[primitives.PageID]page.Page
}

// Option configures a PageStore.
type Option func(*PageStore)

// WithLogSink sets the sink that receives page images before each flush.
func WithLogSink(s log.Sink) Option {
	return func(ps *PageStore) { ps.sink = s }
}

// WithLockTimeout sets how long GetPage waits for a lock before aborting.
func WithLockTimeout(d time.Duration) Option {
	return func(ps *PageStore) { ps.lockTimeout = d }
}

// WithRetryInterval sets the pause between lock attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(ps *PageStore) { ps.retryInterval = d }
}

// WithMeterProvider records buffer pool metrics through mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(ps *PageStore) { ps.metrics = newStoreMetrics(mp) }
}

// NewPageStore creates a buffer pool holding at most capacity pages.
func NewPageStore(catalog Catalog, capacity int, opts ...Option) *PageStore {
	if capacity < 1 {
		capacity = config.DefaultPages
	}

	ps := &PageStore{
		catalog:       catalog,
		lockManager:   lock.NewLockManager(),
		evictor:       NewLRUEvictor(),
		sink:          log.NopSink{},
		capacity:      capacity,
		lockTimeout:   config.DefaultLockTimeout,
		retryInterval: config.DefaultLockRetryInterval,
		pages:         make(map[primitives.PageID]page.Page),
		logger:        logging.WithComponent(component),
	}
	for _, opt := range opts {
		opt(ps)
	}
	if ps.metrics == nil {
		ps.metrics = newStoreMetrics(nil)
	}
	return ps
}

// NewPageStoreFromConfig applies the storage section of a Config.
func NewPageStoreFromConfig(catalog Catalog, cfg config.StorageConfig, opts ...Option) *PageStore {
	base := []Option{
		WithLockTimeout(cfg.LockTimeout),
		WithRetryInterval(cfg.LockRetryInterval),
	}
	return NewPageStore(catalog, cfg.BufferPoolPages, append(base, opts...)...)
}

// LockManager exposes the lock table, mainly for inspection in tests.
func (ps *PageStore) LockManager() *lock.LockManager {
	return ps.lockManager
}

// Capacity returns the maximum number of cached pages.
func (ps *PageStore) Capacity() int {
	return ps.capacity
}

func lockModeFor(perm page.Permissions) lock.LockMode {
	if perm == page.ReadWrite {
		return lock.Exclusive
	}
	return lock.Shared
}

// GetPage returns the cached page pid, loading it if needed, after granting
// tid a shared (ReadOnly) or exclusive (ReadWrite) lock on it.
//
// If the lock is not granted within the lock timeout, or ctx ends first, the
// transaction is aborted on the spot: its dirty pages are reloaded from disk
// and all its locks are released. The returned error then matches
// dberror.ErrTransactionAborted.
//
// Loading a page into a full cache evicts the least recently used clean
// page; if every cached page is dirty the call fails with
// dberror.ErrBufferPoolFull and the cache is unchanged.
func (ps *PageStore) GetPage(ctx context.Context, tid transaction.TransactionID, pid primitives.PageID, perm page.Permissions) (page.Page, error) {
	if err := ps.acquire(ctx, tid, pid, lockModeFor(perm)); err != nil {
		return nil, err
	}

	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if p, ok := ps.pages[pid]; ok {
		ps.evictor.Touch(pid)
		ps.metrics.hit()
		return p, nil
	}
	ps.metrics.miss()

	file, err := ps.catalog.GetDatabaseFile(pid.Table)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeTableNotFound, "GetPage", component)
	}

	if len(ps.pages) >= ps.capacity {
		if err := ps.evictPageLocked(); err != nil {
			return nil, err
		}
	}

	p, err := file.ReadPage(pid)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeIO, "GetPage", component)
	}

	ps.pages[pid] = p
	ps.evictor.Touch(pid)
	ps.logger.Debug("page loaded", logging.TxField(tid), logging.PageField(pid))
	return p, nil
}

// acquire retries the lock until granted or the deadline passes. Attempts
// are paced by a token bucket refilled once per retry interval.
func (ps *PageStore) acquire(ctx context.Context, tid transaction.TransactionID, pid primitives.PageID, mode lock.LockMode) error {
	if ps.lockManager.Acquire(tid, pid, mode) {
		return nil
	}

	start := time.Now()
	lockCtx, cancel := context.WithTimeout(ctx, ps.lockTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(ps.retryInterval), 1)
	for {
		waitErr := limiter.Wait(lockCtx)
		if ps.lockManager.Acquire(tid, pid, mode) {
			ps.metrics.waited(time.Since(start))
			return nil
		}
		if waitErr != nil {
			break
		}
	}

	ps.metrics.waited(time.Since(start))
	ps.metrics.lockTimedOut()

	cause := ctx.Err()
	if cause == nil {
		cause = context.DeadlineExceeded
	}

	ps.logger.Warn("lock wait exceeded, aborting transaction",
		logging.TxField(tid), logging.PageField(pid),
		zap.Stringer("mode", mode), zap.Duration("waited", time.Since(start)), zap.Error(cause))

	abortErr := dberror.Errorf(dberror.ErrTransactionAborted,
		"%s could not lock page %s (%s) within %s", tid, pid, mode, ps.lockTimeout)
	abortErr.Operation = "GetPage"
	abortErr.Component = component
	abortErr.Cause = cause

	if err := ps.TransactionComplete(tid, false); err != nil {
		return errors.Join(abortErr, err)
	}
	return abortErr
}

// evictPageLocked drops the least recently used clean page. Clean pages
// equal their on-disk bytes, so nothing is written. Caller holds ps.mutex.
func (ps *PageStore) evictPageLocked() error {
	victim, ok := ps.evictor.Victim(func(pid primitives.PageID) bool {
		p, cached := ps.pages[pid]
		return cached && !p.Dirty().IsDirty()
	})
	if !ok {
		ps.logger.Warn("no clean page to evict", zap.Int("cached", len(ps.pages)))
		return dberror.Errorf(dberror.ErrBufferPoolFull,
			"all %d cached pages are dirty", len(ps.pages))
	}

	delete(ps.pages, victim)
	ps.evictor.Remove(victim)
	ps.metrics.evicted()
	ps.logger.Debug("page evicted", logging.PageField(victim))
	return nil
}

// InsertTuple adds t to the table on behalf of tid. Pages the heap file
// modified are marked dirty and kept in the cache.
func (ps *PageStore) InsertTuple(ctx context.Context, tid transaction.TransactionID, tableID primitives.TableID, t *tuple.Tuple) error {
	file, err := ps.catalog.GetDatabaseFile(tableID)
	if err != nil {
		return err
	}

	pages, err := file.InsertTuple(ctx, tid, t, ps)
	if err != nil {
		return err
	}
	return ps.cacheDirtied(tid, pages)
}

// DeleteTuple removes t, located by its record id, on behalf of tid.
func (ps *PageStore) DeleteTuple(ctx context.Context, tid transaction.TransactionID, t *tuple.Tuple) error {
	if t.RecordID == nil {
		return dberror.Errorf(dberror.ErrTupleNotFound, "tuple has no record id")
	}

	file, err := ps.catalog.GetDatabaseFile(t.RecordID.PageID.Table)
	if err != nil {
		return err
	}

	pages, err := file.DeleteTuple(ctx, tid, t, ps)
	if err != nil {
		return err
	}
	return ps.cacheDirtied(tid, pages)
}

func (ps *PageStore) cacheDirtied(tid transaction.TransactionID, pages []page.Page) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	for _, p := range pages {
		pid := p.GetID()
		p.MarkDirty(tid)

		if _, cached := ps.pages[pid]; !cached && len(ps.pages) >= ps.capacity {
			if err := ps.evictPageLocked(); err != nil {
				return err
			}
		}
		ps.pages[pid] = p
		ps.evictor.Touch(pid)
	}
	return nil
}

// FlushPage writes pid to disk if it is cached and dirty. The log sink sees
// the before and after images, and is forced, before the page is written.
func (ps *PageStore) FlushPage(pid primitives.PageID) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	_, err := ps.flushPageLocked(pid)
	return err
}

func (ps *PageStore) flushPageLocked(pid primitives.PageID) (bool, error) {
	p, ok := ps.pages[pid]
	if !ok {
		return false, nil
	}

	tid, dirty := p.Dirty().Transaction()
	if !dirty {
		return false, nil
	}

	images, err := p.Images()
	if err != nil {
		return false, err
	}

	if err := ps.sink.LogWrite(tid, pid, images.Before, images.After); err != nil {
		return false, dberror.Wrap(err, dberror.CodeIO, "FlushPage", component)
	}
	if err := ps.sink.Force(); err != nil {
		return false, dberror.Wrap(err, dberror.CodeIO, "FlushPage", component)
	}

	file, err := ps.catalog.GetDatabaseFile(pid.Table)
	if err != nil {
		return false, err
	}
	if err := file.WritePage(p); err != nil {
		return false, dberror.Wrap(err, dberror.CodeIO, "FlushPage", component)
	}

	p.MarkClean()
	if err := p.SetBeforeImage(); err != nil {
		return true, err
	}

	ps.logger.Debug("page flushed", logging.TxField(tid), logging.PageField(pid))
	return true, nil
}

// dirtiedByLocked returns the cached pages dirtied by tid in page order.
func (ps *PageStore) dirtiedByLocked(tid transaction.TransactionID) []primitives.PageID {
	var pids []primitives.PageID
	for pid, p := range ps.pages {
		if p.Dirty().By(tid) {
			pids = append(pids, pid)
		}
	}
	slices.SortFunc(pids, primitives.PageID.Compare)
	return pids
}

// FlushPages writes every page dirtied by tid. It stops at the first error.
func (ps *PageStore) FlushPages(tid transaction.TransactionID) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	n := 0
	defer func() { ps.metrics.flushed(n) }()

	for _, pid := range ps.dirtiedByLocked(tid) {
		flushed, err := ps.flushPageLocked(pid)
		if flushed {
			n++
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// FlushAllPages writes every dirty page regardless of transaction. Calling
// it while transactions are running breaks no-steal; it exists for tests and
// for orderly shutdown after all transactions have completed.
func (ps *PageStore) FlushAllPages() error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	pids := slices.SortedFunc(maps.Keys(ps.pages), primitives.PageID.Compare)

	n := 0
	defer func() { ps.metrics.flushed(n) }()

	for _, pid := range pids {
		flushed, err := ps.flushPageLocked(pid)
		if flushed {
			n++
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RestorePages replaces every page dirtied by tid with a fresh copy read
// from disk. Since dirty pages never reach disk before commit, this undoes
// all of tid's changes.
func (ps *PageStore) RestorePages(tid transaction.TransactionID) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	n := 0
	defer func() { ps.metrics.restored(n) }()

	for _, pid := range ps.dirtiedByLocked(tid) {
		file, err := ps.catalog.GetDatabaseFile(pid.Table)
		if err != nil {
			return err
		}

		fresh, err := file.ReadPage(pid)
		if err != nil {
			return dberror.Wrap(err, dberror.CodeIO, "RestorePages", component)
		}

		ps.pages[pid] = fresh
		n++
	}
	return nil
}

// TransactionComplete commits (flushing tid's dirty pages) or aborts
// (restoring them from disk), then releases every lock tid holds. Locks are
// released even if the flush or restore fails. Completing an already
// completed transaction is a no-op.
func (ps *PageStore) TransactionComplete(tid transaction.TransactionID, commit bool) error {
	defer func() {
		released := ps.lockManager.ReleaseAll(tid)
		ps.logger.Info("transaction complete",
			logging.TxField(tid), zap.Bool("commit", commit), zap.Int("locks_released", len(released)))
	}()

	if commit {
		ps.metrics.committed()
		return ps.FlushPages(tid)
	}

	ps.metrics.aborted()
	return ps.RestorePages(tid)
}

// DiscardPage drops pid from the cache without writing it.
func (ps *PageStore) DiscardPage(pid primitives.PageID) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	delete(ps.pages, pid)
	ps.evictor.Remove(pid)
}

// UnsafeReleasePage releases tid's lock on pid before the transaction ends.
// This breaks two-phase locking; only callers that have shown the early
// release cannot expose uncommitted data may use it.
func (ps *PageStore) UnsafeReleasePage(tid transaction.TransactionID, pid primitives.PageID) {
	ps.lockManager.Release(tid, pid)
}

// HoldsLock reports whether tid holds any lock on pid.
func (ps *PageStore) HoldsLock(tid transaction.TransactionID, pid primitives.PageID) bool {
	return ps.lockManager.Holds(tid, pid)
}

// Stats is a point-in-time snapshot of the buffer pool.
type Stats struct {
	Capacity     int
	CachedPages  int
	DirtyPages   int
	Hits         uint64
	Misses       uint64
	Evictions    uint64
	Flushes      uint64
	Restores     uint64
	Commits      uint64
	Aborts       uint64
	LockTimeouts uint64
}

func (ps *PageStore) Stats() Stats {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	dirty := 0
	for _, p := range ps.pages {
		if p.Dirty().IsDirty() {
			dirty++
		}
	}

	m := ps.metrics
	return Stats{
		Capacity:     ps.capacity,
		CachedPages:  len(ps.pages),
		DirtyPages:   dirty,
		Hits:         m.nHits.Load(),
		Misses:       m.nMisses.Load(),
		Evictions:    m.nEvictions.Load(),
		Flushes:      m.nFlushes.Load(),
		Restores:     m.nRestores.Load(),
		Commits:      m.nCommits.Load(),
		Aborts:       m.nAborts.Load(),
		LockTimeouts: m.nTimeouts.Load(),
	}
}

// CachedPageIDs returns the cached page ids in page order.
func (ps *PageStore) CachedPageIDs() []primitives.PageID {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	return slices.SortedFunc(maps.Keys(ps.pages), primitives.PageID.Compare)
}

// Close empties the cache without writing dirty pages and closes the
// catalog if it is closable.
func (ps *PageStore) Close() error {
	ps.mutex.Lock()
	ps.pages = make(map[primitives.PageID]page.Page)
	ps.evictor.Clear()
	ps.mutex.Unlock()

	if c, ok := ps.catalog.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
