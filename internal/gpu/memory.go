package gpu

import (
	"errors"
	"fmt"
)

// ErrMemoryBudgetExceeded is returned when an allocation would exceed the
// memory budget of a Context.
var ErrMemoryBudgetExceeded = errors.New("gpu: memory budget exceeded")

// DefaultMaxMemoryMB is the budget used when Options.MemoryBudgetMB is 0.
const DefaultMaxMemoryMB = 1024

// MemoryStats contains GPU memory usage statistics.
type MemoryStats struct {
	// BudgetBytes is the total memory budget in bytes.
	BudgetBytes uint64

	// UsedBytes is the currently allocated memory in bytes.
	UsedBytes uint64

	// PeakBytes is the highest UsedBytes seen.
	PeakBytes uint64

	// Allocations is the number of live tracked allocations.
	Allocations int
}

// Utilization returns the fraction of the budget in use (0.0 to 1.0).
func (s MemoryStats) Utilization() float64 {
	if s.BudgetBytes == 0 {
		return 0
	}
	return float64(s.UsedBytes) / float64(s.BudgetBytes)
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %.1f/%d MB, peak %.1f MB, %d allocations]",
		s.Utilization()*100,
		float64(s.UsedBytes)/(1024*1024),
		s.BudgetBytes/(1024*1024),
		float64(s.PeakBytes)/(1024*1024),
		s.Allocations)
}

// memoryTracker accounts for the bytes of textures and buffers a Context
// creates. It does not evict: everything it tracks is needed until the
// Context is destroyed. A nil tracker accepts every allocation.
type memoryTracker struct {
	budget uint64
	used   uint64
	peak   uint64
	allocs int
}

func newMemoryTracker(megabytes int) *memoryTracker {
	if megabytes <= 0 {
		megabytes = DefaultMaxMemoryMB
	}
	return &memoryTracker{budget: uint64(megabytes) * 1024 * 1024} //nolint:gosec // positive
}

// alloc records n bytes, or fails without recording when the budget
// would be exceeded.
func (m *memoryTracker) alloc(label string, n uint64) error {
	if m == nil {
		return nil
	}
	if m.used+n > m.budget {
		return fmt.Errorf("%w: %s needs %d bytes, %d of %d in use",
			ErrMemoryBudgetExceeded, label, n, m.used, m.budget)
	}
	m.used += n
	m.allocs++
	if m.used > m.peak {
		m.peak = m.used
	}
	return nil
}

// free releases n bytes recorded by alloc.
func (m *memoryTracker) free(n uint64) {
	if m == nil || m.allocs == 0 {
		return
	}
	if n > m.used {
		n = m.used
	}
	m.used -= n
	m.allocs--
}

func (m *memoryTracker) stats() MemoryStats {
	if m == nil {
		return MemoryStats{}
	}
	return MemoryStats{
		BudgetBytes: m.budget,
		UsedBytes:   m.used,
		PeakBytes:   m.peak,
		Allocations: m.allocs,
	}
}

// targetBytes is the memory taken by the render targets.
func targetBytes(w, h, samples uint32) uint64 {
	texels := uint64(w) * uint64(h)
	resolve := texels * 4
	depth := texels * 4 * uint64(samples)
	var msaa uint64
	if samples > 1 {
		msaa = texels * 4 * uint64(samples)
	}
	return resolve + depth + msaa
}
