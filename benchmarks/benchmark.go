package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/config"
	"heapstore/pkg/dberror"
	"heapstore/pkg/logging"
	"heapstore/pkg/memory"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/heap"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/telemetry"
	"heapstore/pkg/tuple"
	"heapstore/pkg/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// BenchmarkResult captures timing statistics for one workload.
type BenchmarkResult struct {
	Workload       string        `json:"workload"`
	Iterations     int           `json:"iterations"`
	Workers        int           `json:"workers"`
	TotalDuration  time.Duration `json:"total_duration_ns"`
	AvgDuration    time.Duration `json:"avg_duration_ns"`
	MinDuration    time.Duration `json:"min_duration_ns"`
	MaxDuration    time.Duration `json:"max_duration_ns"`
	MedianDuration time.Duration `json:"median_duration_ns"`
	P95Duration    time.Duration `json:"p95_duration_ns"`
	P99Duration    time.Duration `json:"p99_duration_ns"`
	OpsPerSecond   float64       `json:"ops_per_second"`
	SuccessCount   int           `json:"success_count"`
	AbortCount     int           `json:"abort_count"`
	ErrorCount     int           `json:"error_count"`
	ErrorSamples   []string      `json:"error_samples"`
	Timestamp      time.Time     `json:"timestamp"`
}

// BenchmarkReport aggregates every workload of one run.
type BenchmarkReport struct {
	RunID         string               `json:"run_id"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       time.Time            `json:"end_time"`
	TotalDuration time.Duration        `json:"total_duration"`
	Storage       config.StorageConfig `json:"storage"`
	Stats         memory.Stats         `json:"stats"`
	Results       []BenchmarkResult    `json:"results"`
	DataDir       string               `json:"data_dir"`
}

// op runs one iteration of a workload inside transaction tid.
type op func(ctx context.Context, tid transaction.TransactionID, worker, i int) error

type bench struct {
	store *memory.PageStore
	file  *heap.HeapFile
	td    *tuple.TupleDescription
}

// main drives insert, scan, delete and abort workloads against a buffer pool
// and writes a JSON report.
//
// Flags:
//   - -config: YAML config file (defaults apply when empty)
//   - -out: directory for reports (default ./benchmark-results)
//   - -iterations: operations per workload (default 1000)
//   - -workers: concurrent workers (default 8)
//   - -rate: operations per second across all workers, 0 for unlimited
func main() {
	configPath := flag.String("config", "", "path to YAML config")
	outputDir := flag.String("out", "./benchmark-results", "report directory")
	iterations := flag.Int("iterations", 1000, "operations per workload")
	workers := flag.Int("workers", 8, "concurrent workers")
	opsPerSec := flag.Float64("rate", 0, "operations per second, 0 for unlimited")
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

	if err := logging.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.Close() }()
	logger := logging.WithComponent("benchmark")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *outputDir, *iterations, *workers, *opsPerSec); err != nil {
		logger.Error("benchmark failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, outputDir string, iterations, workers int, opsPerSec float64) error {
	logger := logging.WithComponent("benchmark")
	runID := uuid.NewString()

	tel, shutdown, err := telemetry.New(cfg.Metrics)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()
	if cfg.Metrics.Enabled {
		go func() {
			if err := tel.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	page.SetSize(cfg.Storage.PageSize)
	defer page.ResetSize()

	dataDir, err := os.MkdirTemp("", "heapstore-bench-"+runID[:8])
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dataDir) }()

	td, err := tuple.ParseTupleDesc("id:int,worker:int,payload:string")
	if err != nil {
		return err
	}

	file, err := heap.NewHeapFile(primitives.Filepath(filepath.Join(dataDir, "bench.dat")), td)
	if err != nil {
		return err
	}

	tables := memory.NewTableManager()
	if err := tables.AddTable(file, "bench"); err != nil {
		return err
	}

	store := memory.NewPageStoreFromConfig(tables, cfg.Storage, memory.WithMeterProvider(tel.MeterProvider))
	defer func() { _ = store.Close() }()

	b := &bench{store: store, file: file, td: td}

	logger.Info("starting benchmark suite",
		zap.String("run_id", runID),
		zap.String("data_dir", dataDir),
		zap.Int("iterations", iterations),
		zap.Int("workers", workers),
		zap.Int("page_size", cfg.Storage.PageSize),
		zap.Int("buffer_pool_pages", cfg.Storage.BufferPoolPages))

	report := BenchmarkReport{
		RunID:     runID,
		StartTime: time.Now(),
		Storage:   cfg.Storage,
		DataDir:   dataDir,
	}

	workloads := []struct {
		name    string
		workers int
		op      op
	}{
		{"insert", 1, b.insert},
		{"insert (concurrent)", workers, b.insert},
		{"insert+abort", workers, b.insertAbort},
		{"scan", 1, b.scan},
		{"scan (concurrent)", workers, b.scan},
		{"delete", 1, b.deleteOne},
	}

	for _, w := range workloads {
		if ctx.Err() != nil {
			break
		}

		var limiter *rate.Limiter
		if opsPerSec > 0 {
			limiter = rate.NewLimiter(rate.Limit(opsPerSec), w.workers)
		}

		result := runWorkload(ctx, store, w.name, iterations, w.workers, limiter, w.op)
		report.Results = append(report.Results, result)
		printResult(logger, result)
	}

	report.EndTime = time.Now()
	report.TotalDuration = report.EndTime.Sub(report.StartTime)
	report.Stats = store.Stats()

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return err
	}
	return saveJSONReport(report, filepath.Join(outputDir, fmt.Sprintf("benchmark_report_%s.json", runID)))
}

func (b *bench) newTuple(id, worker int) (*tuple.Tuple, error) {
	return tuple.FromFields(b.td,
		types.NewIntField(int32(id)),     // #nosec G115
		types.NewIntField(int32(worker)), // #nosec G115
		types.NewStringField(fmt.Sprintf("payload-%d-%d", worker, id)))
}

func (b *bench) insert(ctx context.Context, tid transaction.TransactionID, worker, i int) error {
	t, err := b.newTuple(i, worker)
	if err != nil {
		return err
	}
	if err := b.store.InsertTuple(ctx, tid, b.file.GetID(), t); err != nil {
		return err
	}
	return b.store.TransactionComplete(tid, true)
}

func (b *bench) insertAbort(ctx context.Context, tid transaction.TransactionID, worker, i int) error {
	t, err := b.newTuple(-i, worker)
	if err != nil {
		return err
	}
	if err := b.store.InsertTuple(ctx, tid, b.file.GetID(), t); err != nil {
		return err
	}
	return b.store.TransactionComplete(tid, false)
}

func (b *bench) scan(ctx context.Context, tid transaction.TransactionID, _, _ int) error {
	it := b.file.Iterator(ctx, tid, b.store)
	if err := it.Open(); err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	for {
		ok, err := it.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if _, err := it.Next(); err != nil {
			return err
		}
	}
	return b.store.TransactionComplete(tid, true)
}

// deleteOne removes the first tuple found, if any.
func (b *bench) deleteOne(ctx context.Context, tid transaction.TransactionID, _, _ int) error {
	it := b.file.Iterator(ctx, tid, b.store)
	if err := it.Open(); err != nil {
		return err
	}

	ok, err := it.HasNext()
	if err != nil || !ok {
		_ = it.Close()
		if err != nil {
			return err
		}
		return b.store.TransactionComplete(tid, true)
	}

	victim, err := it.Next()
	_ = it.Close()
	if err != nil {
		return err
	}

	if err := b.store.DeleteTuple(ctx, tid, victim); err != nil {
		return err
	}
	return b.store.TransactionComplete(tid, true)
}

// runWorkload runs iterations of fn spread over workers goroutines and
// collects latency percentiles. Every iteration is its own transaction.
// A transaction that fails for any reason other than a lock-timeout abort
// is aborted here so its locks and dirty pages do not leak.
func runWorkload(ctx context.Context, store *memory.PageStore, name string, iterations, workers int, limiter *rate.Limiter, fn op) BenchmarkResult {
	durations := make([]time.Duration, 0, iterations)
	var mu sync.Mutex

	successCount, abortCount, errorCount := 0, 0, 0
	errorSamples := make([]string, 0, 5)
	startTime := time.Now()

	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range iterations {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := range workers {
		g.Go(func() error {
			for i := range jobs {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return nil
					}
				}

				tid := transaction.NewTransactionID()
				opStart := time.Now()
				err := fn(gctx, tid, w, i)
				d := time.Since(opStart)

				if err != nil && !errors.Is(err, dberror.ErrTransactionAborted) {
					_ = store.TransactionComplete(tid, false)
				}

				mu.Lock()
				durations = append(durations, d)
				switch {
				case err == nil:
					successCount++
				case errors.Is(err, dberror.ErrTransactionAborted):
					abortCount++
				default:
					errorCount++
					if len(errorSamples) < 5 {
						errorSamples = append(errorSamples, err.Error())
					}
				}
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	totalDuration := time.Since(startTime)

	result := BenchmarkResult{
		Workload:      name,
		Iterations:    iterations,
		Workers:       workers,
		TotalDuration: totalDuration,
		SuccessCount:  successCount,
		AbortCount:    abortCount,
		ErrorCount:    errorCount,
		ErrorSamples:  errorSamples,
		Timestamp:     time.Now(),
	}
	if len(durations) == 0 {
		return result
	}

	slices.Sort(durations)
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	n := len(durations)
	result.AvgDuration = sum / time.Duration(n)
	result.MinDuration = durations[0]
	result.MaxDuration = durations[n-1]
	result.MedianDuration = durations[n/2]
	result.P95Duration = durations[int(float64(n)*0.95)]
	result.P99Duration = durations[int(float64(n)*0.99)]
	result.OpsPerSecond = float64(n) / totalDuration.Seconds()
	return result
}

// formatDuration formats a duration with a unit that suits its size.
// Examples: 1.23ms, 456.78µs, 12.34s
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func printResult(logger *zap.Logger, r BenchmarkResult) {
	logger.Info(strings.Repeat("=", 60))
	logger.Info("workload finished",
		zap.String("workload", r.Workload),
		zap.Int("workers", r.Workers),
		zap.String("total", formatDuration(r.TotalDuration)),
		zap.String("avg", formatDuration(r.AvgDuration)),
		zap.String("p50", formatDuration(r.MedianDuration)),
		zap.String("p95", formatDuration(r.P95Duration)),
		zap.String("p99", formatDuration(r.P99Duration)),
		zap.Float64("ops_per_sec", r.OpsPerSecond),
		zap.Int("ok", r.SuccessCount),
		zap.Int("aborted", r.AbortCount),
		zap.Int("failed", r.ErrorCount))

	for _, sample := range r.ErrorSamples {
		logger.Warn("sample error", zap.String("workload", r.Workload), zap.String("error", sample))
	}
}

func saveJSONReport(report BenchmarkReport, filename string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil { // #nosec G703
		return fmt.Errorf("write report: %w", err)
	}

	logging.WithComponent("benchmark").Info("report saved", zap.String("path", filename))
	return nil
}
