package gpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/slicer/fibers"
)

func TestMemoryTracker(t *testing.T) {
	m := newMemoryTracker(1)
	if m.budget != 1024*1024 {
		t.Fatalf("budget = %d, want 1 MB", m.budget)
	}

	if err := m.alloc("a", 600*1024); err != nil {
		t.Fatalf("alloc a: %v", err)
	}
	if err := m.alloc("b", 600*1024); !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Fatalf("alloc b: err = %v, want ErrMemoryBudgetExceeded", err)
	}
	if got := m.stats().UsedBytes; got != 600*1024 {
		t.Errorf("failed alloc was recorded: used = %d", got)
	}

	m.free(600 * 1024)
	if err := m.alloc("b", 600*1024); err != nil {
		t.Fatalf("alloc b after free: %v", err)
	}

	s := m.stats()
	if s.Allocations != 1 {
		t.Errorf("Allocations = %d, want 1", s.Allocations)
	}
	if s.PeakBytes != 600*1024 {
		t.Errorf("PeakBytes = %d, want %d", s.PeakBytes, 600*1024)
	}
	if !strings.Contains(s.String(), "1 allocations") {
		t.Errorf("String() = %q", s.String())
	}
}

func TestMemoryTrackerDefaults(t *testing.T) {
	if got := newMemoryTracker(0).budget; got != DefaultMaxMemoryMB*1024*1024 {
		t.Errorf("default budget = %d", got)
	}

	var m *memoryTracker
	if err := m.alloc("x", 1<<40); err != nil {
		t.Errorf("nil tracker alloc: %v", err)
	}
	m.free(10)
	if m.stats() != (MemoryStats{}) {
		t.Error("nil tracker has stats")
	}
	if (MemoryStats{}).Utilization() != 0 {
		t.Error("zero budget utilization not 0")
	}
}

func TestTargetBytes(t *testing.T) {
	if got := targetBytes(10, 10, 1); got != 800 {
		t.Errorf("single sample = %d, want 800", got)
	}
	if got := targetBytes(10, 10, 4); got != 400+1600+1600 {
		t.Errorf("4 samples = %d, want 3600", got)
	}
}

func TestContextMemoryStats(t *testing.T) {
	c := newTestContext(t, Options{Width: 100, Height: 80})

	before := c.MemoryStats()
	want := targetBytes(100, 80, 4) + 6*quadVertexStride + transformUniformSize + 512*80
	if before.UsedBytes != want {
		t.Errorf("UsedBytes = %d, want %d", before.UsedBytes, want)
	}

	if _, err := c.RenderSlice(t.Context(), testSliceInput(t, 100, 80)); err != nil {
		t.Fatalf("RenderSlice: %v", err)
	}
	after := c.MemoryStats()
	if after.UsedBytes <= before.UsedBytes {
		t.Errorf("source texture not accounted: %d <= %d", after.UsedBytes, before.UsedBytes)
	}

	c.Destroy()
	if got := c.MemoryStats().UsedBytes; got != 0 {
		t.Errorf("after Destroy UsedBytes = %d, want 0", got)
	}
}

func TestUploadFibersOverBudget(t *testing.T) {
	c := newTestContext(t, Options{Width: 100, Height: 80, MemoryBudgetMB: 1})

	line := make(fibers.Streamline, 50000)
	for i := range line {
		line[i] = mgl32.Vec3{float32(i), 0, 0}
	}
	batches, err := fibers.NewBatcher(fibers.NewSliceSource([]fibers.Streamline{line}), 0, fibers.Coloring{}).All()
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	used := c.MemoryStats().UsedBytes
	if err := c.UploadFibers(batches); !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Fatalf("err = %v, want ErrMemoryBudgetExceeded", err)
	}
	if c.FiberBatches() != 0 {
		t.Errorf("FiberBatches = %d, want 0", c.FiberBatches())
	}
	if got := c.MemoryStats().UsedBytes; got != used {
		t.Errorf("UsedBytes = %d, want %d", got, used)
	}
}
