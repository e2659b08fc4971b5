// Package fibers turns streamlines into line-list geometry for the GPU.
//
// Streamlines are consumed lazily from a Source and grouped into batches
// of at most a fixed number of streamlines, so no single vertex buffer
// grows past what a device accepts. A streamline is never split across
// batches.
package fibers

import (
	"errors"
	"io"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultBatchSize is the number of streamlines per batch when none is set.
const DefaultBatchSize = 50000

// Streamline is an ordered polyline in voxel space.
type Streamline []mgl32.Vec3

// Source yields streamlines one at a time. Next returns io.EOF when the
// source is exhausted.
type Source interface {
	Next() (Streamline, error)
}

// SliceSource serves streamlines from memory.
type SliceSource struct {
	lines []Streamline
	pos   int
}

// NewSliceSource returns a Source over lines.
func NewSliceSource(lines []Streamline) *SliceSource {
	return &SliceSource{lines: lines}
}

// Next implements Source.
func (s *SliceSource) Next() (Streamline, error) {
	if s.pos >= len(s.lines) {
		return nil, io.EOF
	}
	l := s.lines[s.pos]
	s.pos++
	return l, nil
}

// Range is the half-open vertex span of one streamline inside a batch.
type Range struct {
	Start, End int
}

// Vertex is one streamline point with its derived color.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

// VertexSize is the packed size of a Vertex in a vertex buffer.
const VertexSize = 24

// Batch is an independently drawable group of streamlines.
type Batch struct {
	Vertices []Vertex
	Indices  []uint32
	Ranges   []Range
}

// Segments returns the number of line segments in the batch.
func (b *Batch) Segments() int { return len(b.Indices) / 2 }

// Batcher groups streamlines from a Source into colored batches.
type Batcher struct {
	src      Source
	size     int
	coloring Coloring
	skipped  int
	done     bool
}

// NewBatcher returns a Batcher emitting at most size streamlines per batch.
// A non-positive size selects DefaultBatchSize.
func NewBatcher(src Source, size int, coloring Coloring) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{src: src, size: size, coloring: coloring}
}

// Skipped returns how many streamlines were dropped for having fewer
// than two points.
func (b *Batcher) Skipped() int { return b.skipped }

// Next returns the next batch, or io.EOF once the source is exhausted.
func (b *Batcher) Next() (*Batch, error) {
	if b.done {
		return nil, io.EOF
	}

	var positions []mgl32.Vec3
	var ranges []Range
	for len(ranges) < b.size {
		line, err := b.src.Next()
		if errors.Is(err, io.EOF) {
			b.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		if len(line) < 2 {
			b.skipped++
			continue
		}
		start := len(positions)
		positions = append(positions, line...)
		ranges = append(ranges, Range{Start: start, End: len(positions)})
	}
	if len(ranges) == 0 {
		b.done = true
		return nil, io.EOF
	}
	return build(positions, ranges, b.coloring)
}

func build(positions []mgl32.Vec3, ranges []Range, coloring Coloring) (*Batch, error) {
	colors := make([]mgl32.Vec3, len(positions))
	if err := coloring.Colorize(positions, ranges, colors); err != nil {
		return nil, err
	}

	batch := &Batch{
		Vertices: make([]Vertex, len(positions)),
		Indices:  make([]uint32, 0, 2*(len(positions)-len(ranges))),
		Ranges:   ranges,
	}
	for i, p := range positions {
		batch.Vertices[i] = Vertex{Position: p, Color: colors[i]}
	}
	for _, r := range ranges {
		for i := r.Start; i < r.End-1; i++ {
			batch.Indices = append(batch.Indices, uint32(i), uint32(i+1)) //nolint:gosec // batch sizes stay far below 2^32 vertices
		}
	}
	return batch, nil
}

// All drains b and returns every batch.
func (b *Batcher) All() ([]*Batch, error) {
	var out []*Batch
	for {
		batch, err := b.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
}
