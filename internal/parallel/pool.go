// Package parallel splits CPU-bound loops over large sample arrays across
// a fixed set of goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs work items on a fixed number of goroutines.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queue   chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers. If
// workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &WorkerPool{
		workers: workers,
		queue:   make(chan func(), workers*4),
		done:    make(chan struct{}),
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case work := <-p.queue:
			work()
		}
	}
}

// ExecuteAll runs every item and waits for all of them. On a closed pool
// the items run on the calling goroutine.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 {
		return
	}
	if !p.running.Load() || len(work) == 1 {
		for _, fn := range work {
			fn()
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(work))
	for _, fn := range work {
		wrapped := func() {
			defer wg.Done()
			fn()
		}
		select {
		case p.queue <- wrapped:
		case <-p.done:
			wrapped()
		}
	}
	wg.Wait()
}

// For splits [0, n) into at most Workers() contiguous chunks of at least
// minChunk items and calls fn(lo, hi) for each. It returns once every
// chunk is done.
func (p *WorkerPool) For(n, minChunk int, fn func(lo, hi int)) {
	p.Run(Chunks(n, minChunk, p.workers), func(_, lo, hi int) { fn(lo, hi) })
}

// Run calls fn(i, lo, hi) for every chunk i and waits for all of them.
// A single chunk runs on the calling goroutine.
func (p *WorkerPool) Run(chunks [][2]int, fn func(i, lo, hi int)) {
	work := make([]func(), len(chunks))
	for i, c := range chunks {
		work[i] = func() { fn(i, c[0], c[1]) }
	}
	p.ExecuteAll(work)
}

// Close stops the workers. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int { return p.workers }

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool { return p.running.Load() }

// Chunks splits [0, n) into at most parts ranges of at least minChunk
// items, except when n itself is smaller. The ranges are [lo, hi) pairs
// in increasing order.
func Chunks(n, minChunk, parts int) [][2]int {
	if n <= 0 {
		return nil
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if parts < 1 {
		parts = 1
	}
	if maxParts := n / minChunk; parts > maxParts {
		parts = max(maxParts, 1)
	}
	size := (n + parts - 1) / parts
	out := make([][2]int, 0, parts)
	for lo := 0; lo < n; lo += size {
		out = append(out, [2]int{lo, min(lo+size, n)})
	}
	return out
}

var shared = sync.OnceValue(func() *WorkerPool { return NewWorkerPool(0) })

// Split divides [0, n) for the process-wide pool. See Chunks.
func Split(n, minChunk int) [][2]int {
	return Chunks(n, minChunk, shared().Workers())
}

// Run executes fn over chunks on the process-wide pool.
func Run(chunks [][2]int, fn func(i, lo, hi int)) {
	shared().Run(chunks, fn)
}

// For runs fn over [0, n) on the process-wide pool. See WorkerPool.For.
func For(n, minChunk int, fn func(lo, hi int)) {
	shared().For(n, minChunk, fn)
}
