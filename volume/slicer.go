package volume

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Slice is one 8-bit grayscale image cut out of a Volume.
type Slice struct {
	// Width and Height are the pixel dimensions. Width runs along the
	// first in-plane axis, Height along the second.
	Width, Height int

	// Pixels holds Width*Height samples, row-major, width fastest.
	Pixels []uint8

	// Spacing is the physical size of a pixel along width and height.
	Spacing [2]float32

	View  View
	Index int

	// Depth is reserved for the physical slice position and is always 0.
	Depth float32
}

// PhysicalSize returns the slice extent in physical units.
func (s *Slice) PhysicalSize() (w, h float32) {
	return float32(s.Width) * s.Spacing[0], float32(s.Height) * s.Spacing[1]
}

// BuildIndices returns count evenly spaced indices inside
// [width*lo, width*hi] along an axis of the given width.
//
// A single slice is the rounded midpoint of the window. When the requested
// count would space slices closer than one voxel, the count is reduced and
// the step clamped to one voxel, so the returned slice may be shorter than
// count but never repeats an index.
func BuildIndices(width, count int, lo, hi float32) ([]int, error) {
	if count <= 0 {
		return nil, ErrNoSlices
	}
	if !(lo >= 0 && lo < hi && hi <= 1) {
		return nil, fmt.Errorf("%w: got [%v, %v]", ErrInvalidRange, lo, hi)
	}
	w := float32(width)
	minIdx, maxIdx := w*lo, w*hi

	if count == 1 {
		return []int{clampIndex(math32.Round((minIdx+maxIdx)/2), width)}, nil
	}

	step := (maxIdx - minIdx) / float32(count-1)
	if step < 1 {
		count = int(float32(count+1) * step)
		count = min(count, int(maxIdx-minIdx)+1)
		count = max(count, 1)
		step = 1
	}

	indices := make([]int, 0, count)
	for i := range count {
		idx := clampIndex(math32.Round(float32(i)*step+minIdx), width)
		if n := len(indices); n > 0 && indices[n-1] == idx {
			continue
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

func clampIndex(x float32, width int) int {
	return min(max(int(x), 0), width-1)
}

// Slicer cuts slices out of a volume at a fixed set of depths per axis.
type Slicer struct {
	vol     *Volume
	count   int
	lo, hi  float32
	indices [3][]int
}

// NewSlicer validates the slice count and the normalized index window and
// precomputes the indices for every axis.
func NewSlicer(vol *Volume, count int, lo, hi float32) (*Slicer, error) {
	s := &Slicer{vol: vol, count: count, lo: lo, hi: hi}
	for a := Sagittal; a <= Axial; a++ {
		idx, err := BuildIndices(vol.dims[a], count, lo, hi)
		if err != nil {
			return nil, err
		}
		s.indices[a] = idx
	}
	return s, nil
}

// Requested returns the slice count asked for.
func (s *Slicer) Requested() int { return s.count }

// Indices returns the slice indices along axis a. The result may be
// shorter than Requested.
func (s *Slicer) Indices(a Axis) []int { return s.indices[a] }

// Slice extracts the slice at index along view's axis and rescales it to
// 8-bit with the global volume range.
func (s *Slicer) Slice(view View, index int) Slice {
	v := s.vol
	axis := view.Axis()
	u, w := axis.Plane()
	width, height := v.dims[u], v.dims[w]

	out := Slice{
		Width:   width,
		Height:  height,
		Pixels:  make([]uint8, width*height),
		Spacing: [2]float32{v.spacing[u], v.spacing[w]},
		View:    view,
		Index:   index,
	}

	var p [3]int
	p[axis] = index
	for j := range height {
		p[w] = j
		row := out.Pixels[j*width : (j+1)*width]
		for i := range width {
			p[u] = i
			row[i] = v.Rescale(v.At(p[0], p[1], p[2]))
		}
	}
	return out
}

// Extract returns one slice per (view, index) pair, views in the given
// order and indices increasing.
func Extract(vol *Volume, count int, views []View, lo, hi float32) ([]Slice, error) {
	s, err := NewSlicer(vol, count, lo, hi)
	if err != nil {
		return nil, err
	}
	var slices []Slice
	for _, view := range views {
		for _, idx := range s.Indices(view.Axis()) {
			slices = append(slices, s.Slice(view, idx))
		}
	}
	return slices, nil
}
