package memory

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "heapstore/pkg/memory"

// storeMetrics mirrors every counter into atomics so Stats works without a
// metrics backend.
type storeMetrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	flushes   metric.Int64Counter
	restores  metric.Int64Counter
	commits   metric.Int64Counter
	aborts    metric.Int64Counter
	timeouts  metric.Int64Counter
	lockWait  metric.Float64Histogram

	nHits, nMisses, nEvictions, nFlushes, nRestores atomic.Uint64
	nCommits, nAborts, nTimeouts                    atomic.Uint64
}

func newStoreMetrics(mp metric.MeterProvider) *storeMetrics {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(meterName)

	m := &storeMetrics{}
	m.hits = counter(meter, "heapstore.bufferpool.hits", "Page requests served from the cache")
	m.misses = counter(meter, "heapstore.bufferpool.misses", "Page requests that read from disk")
	m.evictions = counter(meter, "heapstore.bufferpool.evictions", "Clean pages evicted")
	m.flushes = counter(meter, "heapstore.bufferpool.flushes", "Dirty pages written to disk")
	m.restores = counter(meter, "heapstore.bufferpool.restores", "Dirty pages reloaded on abort")
	m.commits = counter(meter, "heapstore.txn.commits", "Committed transactions")
	m.aborts = counter(meter, "heapstore.txn.aborts", "Aborted transactions")
	m.timeouts = counter(meter, "heapstore.lock.timeouts", "Lock requests that hit the deadline")

	h, err := meter.Float64Histogram("heapstore.lock.wait",
		metric.WithDescription("Time spent waiting for a page lock"),
		metric.WithUnit("ms"))
	if err != nil {
		h, _ = noop.NewMeterProvider().Meter(meterName).Float64Histogram("heapstore.lock.wait")
	}
	m.lockWait = h
	return m
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		c, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter(name)
	}
	return c
}

func (m *storeMetrics) add(c metric.Int64Counter, n *atomic.Uint64, delta int) {
	if delta <= 0 {
		return
	}
	c.Add(context.Background(), int64(delta))
	n.Add(uint64(delta))
}

func (m *storeMetrics) hit()           { m.add(m.hits, &m.nHits, 1) }
func (m *storeMetrics) miss()          { m.add(m.misses, &m.nMisses, 1) }
func (m *storeMetrics) evicted()       { m.add(m.evictions, &m.nEvictions, 1) }
func (m *storeMetrics) flushed(n int)  { m.add(m.flushes, &m.nFlushes, n) }
func (m *storeMetrics) restored(n int) { m.add(m.restores, &m.nRestores, n) }
func (m *storeMetrics) committed()     { m.add(m.commits, &m.nCommits, 1) }
func (m *storeMetrics) aborted()       { m.add(m.aborts, &m.nAborts, 1) }
func (m *storeMetrics) lockTimedOut()  { m.add(m.timeouts, &m.nTimeouts, 1) }

func (m *storeMetrics) waited(d time.Duration) {
	m.lockWait.Record(context.Background(), float64(d)/float64(time.Millisecond))
}
