package burst

import(
	"runtime"
	"sync"

	"github.com/pbnjay/memory"
)

// dispatcher runs per-pixel kernels as parallel batches of rows over a
// bounded worker pool. Within one kernel every row is independent and
// order-insensitive; the engine sequences the kernels themselves, which
// gives the pipeline its strict stage ordering.
type dispatcher struct {
	workers   int
	batchRows int
}

func newDispatcher(rowBytes int) *dispatcher {
	if rowBytes < 1 {
		rowBytes = 1
	}

	// Aim for ~4MB batches so row batches stay cache- and RAM-friendly
	// on small machines, but never fewer than 8 rows per batch.
	batchBytes := uint64(4 * 1024 * 1024)
	if limit := memory.TotalMemory() / 256; limit > 0 && limit < batchBytes {
		batchBytes = limit
	}
	batchRows := int(batchBytes) / rowBytes
	if batchRows < 8 {
		batchRows = 8
	}

	return &dispatcher{
		workers:   runtime.NumCPU(),
		batchRows: batchRows,
	}
}

// eachRows invokes fn over half-open row ranges [y0,y1) covering
// [0,h), in parallel, and joins before returning.
func (d *dispatcher)eachRows(h int, fn func(y0, y1 int)) {
	if h <= 0 {
		return
	}

	sem := make(chan bool, d.workers)
	var wg sync.WaitGroup
	for y:=0; y<h; y+=d.batchRows {
		y1 := y + d.batchRows
		if y1 > h {
			y1 = h
		}

		wg.Add(1)
		sem <- true
		go func(y0, y1 int) {
			defer func() { <-sem; wg.Done() }()
			fn(y0, y1)
		}(y, y1)
	}
	wg.Wait()
}
