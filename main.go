package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/config"
	"heapstore/pkg/debug/heapreader"
	"heapstore/pkg/debug/ui"
	"heapstore/pkg/logging"
	"heapstore/pkg/memory"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/heap"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/tuple"
	"heapstore/pkg/types"
)

type Configuration struct {
	FilePath   string
	Schema     string
	ConfigPath string
	MaxRows    int
	DemoRows   int
}

func main() {
	cfg := parseArguments()

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError(err))
		os.Exit(1)
	}
}

// parseArguments processes command-line flags
func parseArguments() Configuration {
	var c Configuration

	flag.StringVar(&c.FilePath, "file", "", "heap file to inspect")
	flag.StringVar(&c.Schema, "schema", "id:int,name:string", "table schema as name:type pairs")
	flag.StringVar(&c.ConfigPath, "config", "", "YAML config (page size, buffer pool, logging)")
	flag.IntVar(&c.MaxRows, "rows", 20, "tuples listed per page, 0 for all")
	flag.IntVar(&c.DemoRows, "demo", 0, "append this many generated tuples before inspecting")
	flag.Parse()

	if c.FilePath == "" {
		flag.Usage()
		os.Exit(2)
	}
	return c
}

func run(c Configuration) error {
	cfg := config.Default()
	if c.ConfigPath != "" {
		loaded, err := config.Load(c.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if err := logging.Init(cfg.Logging); err != nil {
			return err
		}
		defer func() { _ = logging.Close() }()
	}

	page.SetSize(cfg.Storage.PageSize)

	td, err := tuple.ParseTupleDesc(c.Schema)
	if err != nil {
		return err
	}

	file, err := heap.NewHeapFile(primitives.Filepath(c.FilePath), td)
	if err != nil {
		return err
	}

	tables := memory.NewTableManager()
	if err := tables.AddTable(file, file.FilePath().Base()); err != nil {
		_ = file.Close()
		return err
	}

	store := memory.NewPageStoreFromConfig(tables, cfg.Storage)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if c.DemoRows > 0 {
		if err := runDemoMode(ctx, store, file, c.DemoRows); err != nil {
			return err
		}
	}

	report, err := heapreader.Inspect(ctx, store, file)
	if err != nil {
		return err
	}

	fmt.Print(heapreader.Render(report, c.MaxRows))
	return nil
}

// runDemoMode appends n generated tuples in a single transaction.
func runDemoMode(ctx context.Context, store *memory.PageStore, file *heap.HeapFile, n int) error {
	td := file.GetTupleDesc()
	tid := transaction.NewTransactionID()

	for i := range n {
		t := tuple.NewTuple(td)
		for col := range td.NumFields() {
			typ, _ := td.TypeAtIndex(col)
			var text string
			switch typ {
			case types.IntType:
				text = fmt.Sprintf("%d", i)
			default:
				text = fmt.Sprintf("row-%d-%d", i, col)
			}

			f, err := types.FieldFromString(typ, text)
			if err != nil {
				_ = store.TransactionComplete(tid, false)
				return err
			}
			if err := t.SetField(col, f); err != nil {
				_ = store.TransactionComplete(tid, false)
				return err
			}
		}

		if err := store.InsertTuple(ctx, tid, file.GetID(), t); err != nil {
			_ = store.TransactionComplete(tid, false)
			return err
		}
	}

	return store.TransactionComplete(tid, true)
}
