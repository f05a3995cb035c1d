package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/config"
	"heapstore/pkg/logging"
	"heapstore/pkg/memory"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/heap"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/telemetry"
	"heapstore/pkg/tuple"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// poolCollector publishes buffer pool occupancy as gauges on every scrape.
type poolCollector struct {
	store    *memory.PageStore
	cached   *prometheus.Desc
	dirty    *prometheus.Desc
	capacity *prometheus.Desc
	locked   *prometheus.Desc
}

func newPoolCollector(store *memory.PageStore) *poolCollector {
	return &poolCollector{
		store:    store,
		cached:   prometheus.NewDesc("heapstore_bufferpool_cached_pages", "Pages currently cached", nil, nil),
		dirty:    prometheus.NewDesc("heapstore_bufferpool_dirty_pages", "Cached pages with uncommitted changes", nil, nil),
		capacity: prometheus.NewDesc("heapstore_bufferpool_capacity_pages", "Maximum number of cached pages", nil, nil),
		locked:   prometheus.NewDesc("heapstore_lock_locked_pages", "Cached pages with at least one lock holder", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cached
	ch <- c.dirty
	ch <- c.capacity
	ch <- c.locked
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.store.Stats()

	locked := 0
	for _, pid := range c.store.CachedPageIDs() {
		if c.store.LockManager().IsPageLocked(pid) {
			locked++
		}
	}

	ch <- prometheus.MustNewConstMetric(c.cached, prometheus.GaugeValue, float64(stats.CachedPages))
	ch <- prometheus.MustNewConstMetric(c.dirty, prometheus.GaugeValue, float64(stats.DirtyPages))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(stats.Capacity))
	ch <- prometheus.MustNewConstMetric(c.locked, prometheus.GaugeValue, float64(locked))
}

// openTables registers every *.dat file in dir under its base name. All
// files share one schema.
func openTables(dir string, td *tuple.TupleDescription) (*memory.TableManager, []*heap.HeapFile, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.dat"))
	if err != nil {
		return nil, nil, err
	}

	tables := memory.NewTableManager()
	files := make([]*heap.HeapFile, 0, len(matches))
	for _, path := range matches {
		hf, err := heap.NewHeapFile(primitives.Filepath(path), td)
		if err != nil {
			_ = tables.Close()
			return nil, nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), ".dat")
		if err := tables.AddTable(hf, name); err != nil {
			_ = tables.Close()
			return nil, nil, err
		}
		files = append(files, hf)
	}
	return tables, files, nil
}

// scanLoop reads every table once per interval so the pool metrics move.
func scanLoop(ctx context.Context, store *memory.PageStore, files []*heap.HeapFile, interval time.Duration) {
	logger := logging.WithComponent("exporter")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, hf := range files {
			tid := transaction.NewTransactionID()
			n, err := countTuples(ctx, store, hf, tid)
			if err != nil {
				logger.Warn("scan failed", logging.TxField(tid), zap.Error(err))
				_ = store.TransactionComplete(tid, false)
				continue
			}
			_ = store.TransactionComplete(tid, true)
			logger.Debug("scanned table", zap.Stringer("table", hf.GetID()), zap.Int("tuples", n))
		}
	}
}

func countTuples(ctx context.Context, store *memory.PageStore, hf *heap.HeapFile, tid transaction.TransactionID) (int, error) {
	it := hf.Iterator(ctx, tid, store)
	if err := it.Open(); err != nil {
		return 0, err
	}
	defer func() { _ = it.Close() }()

	n := 0
	for {
		ok, err := it.HasNext()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		if _, err := it.Next(); err != nil {
			return n, err
		}
		n++
	}
}

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	dataDir := flag.String("data", "./data", "directory of heap files (*.dat)")
	schema := flag.String("schema", "id:int,name:string", "schema shared by the heap files")
	interval := flag.Duration("interval", 5*time.Second, "scan interval")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.Metrics.Enabled = true

	if err := logging.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.Close() }()

	if err := run(cfg, *dataDir, *schema, *interval); err != nil {
		logging.GetLogger().Error("exporter failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, dataDir, schema string, interval time.Duration) error {
	logger := logging.WithComponent("exporter")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	page.SetSize(cfg.Storage.PageSize)

	td, err := tuple.ParseTupleDesc(schema)
	if err != nil {
		return err
	}

	tables, files, err := openTables(dataDir, td)
	if err != nil {
		return err
	}

	tel, shutdown, err := telemetry.New(cfg.Metrics)
	if err != nil {
		_ = tables.Close()
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	store := memory.NewPageStoreFromConfig(tables, cfg.Storage, memory.WithMeterProvider(tel.MeterProvider))
	defer func() { _ = store.Close() }()

	tel.Registry.MustRegister(newPoolCollector(store))

	logger.Info("starting exporter",
		zap.String("data_dir", dataDir),
		zap.Int("tables", len(files)),
		zap.String("addr", cfg.Metrics.ListenAddr))

	go scanLoop(ctx, store, files, interval)
	return tel.Serve(ctx, cfg.Metrics.ListenAddr)
}
