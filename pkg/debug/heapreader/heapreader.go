// Package heapreader decodes a heap file page by page for offline
// inspection and renders the result for a terminal.
package heapreader

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"heapstore/pkg/concurrency/transaction"
	"heapstore/pkg/debug/ui"
	"heapstore/pkg/memory"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/heap"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/tuple"
)

// PageReport describes one decoded page. Err is set when the page could
// not be decoded; the other fields are then zero.
type PageReport struct {
	PageNo   primitives.PageNumber
	NumSlots int
	Used     []int
	Tuples   []*tuple.Tuple
	Err      error
}

// Report describes a whole heap file.
type Report struct {
	Path          string
	TableID       primitives.TableID
	Schema        *tuple.TupleDescription
	PageSize      int
	FileSize      int64
	NumPages      primitives.PageNumber
	TrailingBytes int64
	Pages         []PageReport
	Stats         memory.Stats
}

// TupleCount returns the number of live tuples across decodable pages.
func (r *Report) TupleCount() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Tuples)
	}
	return n
}

// Inspect reads every page of file through store under a single read-only
// transaction, which is committed before returning. Pages that fail to
// decode are reported individually.
func Inspect(ctx context.Context, store *memory.PageStore, file *heap.HeapFile) (*Report, error) {
	info, err := os.Stat(file.FilePath().String())
	if err != nil {
		return nil, err
	}

	numPages, err := file.NumPages()
	if err != nil {
		return nil, err
	}

	pageSize := page.Size()
	report := &Report{
		Path:          file.FilePath().String(),
		TableID:       file.GetID(),
		Schema:        file.GetTupleDesc(),
		PageSize:      pageSize,
		FileSize:      info.Size(),
		NumPages:      numPages,
		TrailingBytes: info.Size() % int64(pageSize),
	}

	tid := transaction.NewTransactionID()
	defer func() { _ = store.TransactionComplete(tid, true) }()

	for pageNo := range numPages {
		pid := primitives.NewPageID(file.GetID(), pageNo)
		pr := PageReport{PageNo: pageNo}

		p, err := store.GetPage(ctx, tid, pid, page.ReadOnly)
		if err != nil {
			pr.Err = err
			report.Pages = append(report.Pages, pr)
			continue
		}

		hp, ok := p.(*heap.HeapPage)
		if !ok {
			pr.Err = fmt.Errorf("page %s is %T", pid, p)
			report.Pages = append(report.Pages, pr)
			continue
		}

		pr.NumSlots = hp.NumSlots()
		for i := range pr.NumSlots {
			if hp.IsSlotUsed(i) {
				pr.Used = append(pr.Used, i)
			}
		}
		pr.Tuples = hp.GetTuples()
		report.Pages = append(report.Pages, pr)
	}

	report.Stats = store.Stats()
	return report, nil
}

// Render formats r for a terminal. At most maxRows tuples are listed per
// page; zero lists them all.
func Render(r *Report, maxRows int) string {
	var b strings.Builder

	b.WriteString(ui.RenderTitle("▤", "Heap file "+r.Path) + "\n")
	b.WriteString(ui.RenderKeyValues([][2]string{
		{"table id", fmt.Sprintf("%d", r.TableID)},
		{"schema", r.Schema.String()},
		{"page size", strconv.Itoa(r.PageSize)},
		{"file size", strconv.FormatInt(r.FileSize, 10)},
		{"pages", fmt.Sprintf("%d", r.NumPages)},
		{"tuples", strconv.Itoa(r.TupleCount())},
		{"cache", fmt.Sprintf("%d/%d pages, %d misses", r.Stats.CachedPages, r.Stats.Capacity, r.Stats.Misses)},
	}) + "\n")

	if r.TrailingBytes > 0 {
		b.WriteString(ui.WarningStyle.Render(
			fmt.Sprintf("%d trailing bytes do not form a whole page and are ignored", r.TrailingBytes)) + "\n")
	}

	headers := make([]string, 0, r.Schema.NumFields()+1)
	headers = append(headers, "slot")
	for i := range r.Schema.NumFields() {
		name, _ := r.Schema.GetFieldName(i)
		typ, _ := r.Schema.TypeAtIndex(i)
		if name == "" {
			name = fmt.Sprintf("col%d", i)
		}
		headers = append(headers, name+" "+typ.String())
	}

	for _, p := range r.Pages {
		b.WriteString("\n")
		if p.Err != nil {
			b.WriteString(ui.RenderHeaderWithCount(fmt.Sprintf("page %d", p.PageNo), -1) + "\n")
			b.WriteString(ui.RenderError(p.Err) + "\n")
			continue
		}

		b.WriteString(ui.RenderHeaderWithCount(fmt.Sprintf("page %d", p.PageNo), len(p.Tuples)) + "\n")
		b.WriteString(ui.PageInfoStyle.Render(
			fmt.Sprintf("%d/%d slots used, header %d bytes", len(p.Used), p.NumSlots, heap.HeaderSize(p.NumSlots))) + "\n")

		if len(p.Tuples) == 0 {
			continue
		}

		rows := make([][]string, 0, len(p.Tuples))
		for i, t := range p.Tuples {
			if maxRows > 0 && i >= maxRows {
				break
			}
			rows = append(rows, tupleRow(t))
		}
		b.WriteString(ui.RenderTable(headers, rows, 32))
		if hidden := len(p.Tuples) - len(rows); hidden > 0 {
			b.WriteString(ui.MutedStyle.Render(fmt.Sprintf("... %d more", hidden)) + "\n")
		}
	}

	return b.String()
}

func tupleRow(t *tuple.Tuple) []string {
	row := make([]string, 0, t.TupleDesc.NumFields()+1)
	if t.RecordID != nil {
		row = append(row, strconv.Itoa(int(t.RecordID.TupleNum)))
	} else {
		row = append(row, "?")
	}
	for i := range t.TupleDesc.NumFields() {
		f, err := t.GetField(i)
		if err != nil || f == nil {
			row = append(row, "NULL")
			continue
		}
		row = append(row, f.String())
	}
	return row
}
