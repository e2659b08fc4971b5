// Package volume holds the decoded 3D scalar image and extracts the 2D
// slices that get rendered.
//
// A Volume is immutable once built. Slices are extracted along one of the
// three anatomical axes at evenly spaced indices and rescaled to 8-bit
// using the range of the whole volume, so slices from different depths
// stay visually comparable.
package volume

import (
	"errors"
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/gogpu/slicer/internal/parallel"
)

// Errors returned by volume construction and slicing.
var (
	// ErrNotVolume is returned when the data is not a 3D grid.
	ErrNotVolume = errors.New("volume: a 3D image is expected")

	// ErrDataSize is returned when the sample count does not match the dimensions.
	ErrDataSize = errors.New("volume: sample count does not match dimensions")

	// ErrNoSlices is returned when zero slices are requested.
	ErrNoSlices = errors.New("volume: at least one slice is required")

	// ErrInvalidRange is returned for an empty or out of bounds index range.
	ErrInvalidRange = errors.New("volume: slice range must satisfy 0 <= min < max <= 1")
)

// Order is the memory layout of the voxel samples.
type Order int

const (
	// OrderFortran stores x fastest, then y, then z. NIfTI uses this layout.
	OrderFortran Order = iota

	// OrderC stores z fastest, then y, then x.
	OrderC
)

// String returns the layout name.
func (o Order) String() string {
	switch o {
	case OrderFortran:
		return "fortran"
	case OrderC:
		return "c"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// Volume is a 3D grid of scalar intensities.
type Volume struct {
	dims    [3]int
	spacing [3]float32
	order   Order
	data    []float32

	min, max float32
}

// New builds a Volume. dims are the sizes along the sagittal, coronal and
// axial axes; spacing is the physical size of one voxel along each axis.
// The data slice is retained, not copied.
func New(dims [3]int, spacing [3]float32, order Order, data []float32) (*Volume, error) {
	n := 1
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("%w: dimension %d is %d", ErrNotVolume, i, d)
		}
		n *= d
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrDataSize, len(data), n)
	}
	for i, s := range spacing {
		if s <= 0 || math32.IsNaN(s) {
			spacing[i] = 1
		}
	}

	v := &Volume{
		dims:    dims,
		spacing: spacing,
		order:   order,
		data:    data,
	}
	v.min, v.max = dataRange(data)
	return v, nil
}

// rangeChunk is the smallest share of samples scanned by one goroutine.
const rangeChunk = 1 << 16

func dataRange(data []float32) (lo, hi float32) {
	chunks := parallel.Split(len(data), rangeChunk)
	los := make([]float32, len(chunks))
	his := make([]float32, len(chunks))
	parallel.Run(chunks, func(i, start, end int) {
		l, h := float32(math32.MaxFloat32), float32(-math32.MaxFloat32)
		for _, x := range data[start:end] {
			if math32.IsNaN(x) {
				continue
			}
			l = math32.Min(l, x)
			h = math32.Max(h, x)
		}
		los[i], his[i] = l, h
	})

	lo, hi = math32.MaxFloat32, -math32.MaxFloat32
	for i := range chunks {
		lo = math32.Min(lo, los[i])
		hi = math32.Max(hi, his[i])
	}
	if lo > hi {
		// Every sample is NaN.
		return 0, 0
	}
	return lo, hi
}

// Dims returns the voxel counts along the sagittal, coronal and axial axes.
func (v *Volume) Dims() [3]int { return v.dims }

// Spacing returns the physical voxel size along each axis.
func (v *Volume) Spacing() [3]float32 { return v.spacing }

// Order returns the memory layout of the samples.
func (v *Volume) Order() Order { return v.order }

// Range returns the smallest and largest intensity in the volume. NaN
// samples are ignored.
func (v *Volume) Range() (lo, hi float32) { return v.min, v.max }

// At returns the sample at voxel (x, y, z).
func (v *Volume) At(x, y, z int) float32 {
	return v.data[v.offset(x, y, z)]
}

func (v *Volume) offset(x, y, z int) int {
	if v.order == OrderC {
		return (x*v.dims[1]+y)*v.dims[2] + z
	}
	return (z*v.dims[1]+y)*v.dims[0] + x
}

// Rescale maps intensities from the volume's global range to [0, 255],
// truncating toward zero. A constant volume and NaN samples map to 0.
func (v *Volume) Rescale(x float32) uint8 {
	if math32.IsNaN(x) {
		return 0
	}
	r := v.max - v.min
	if r <= 0 {
		return 0
	}
	s := (x - v.min) * (255 / r)
	switch {
	case s <= 0, math32.IsNaN(s):
		return 0
	case s >= math.MaxUint8:
		return math.MaxUint8
	}
	return uint8(s)
}
