package volume

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndicesSingleSliceIsMidpoint(t *testing.T) {
	for _, width := range []int{10, 64, 100, 256} {
		idx, err := BuildIndices(width, 1, 0.3, 0.7)
		require.NoError(t, err)
		require.Len(t, idx, 1)
		want := min(int(math32.Round(0.5*float32(width))), width-1)
		assert.Equal(t, want, idx[0], "width %d", width)
	}
}

func TestBuildIndicesEvenSpacing(t *testing.T) {
	tests := []struct {
		width, count int
		lo, hi       float32
		want         []int
	}{
		{100, 5, 0.2, 0.6, []int{20, 30, 40, 50, 60}},
		{100, 3, 0, 1, []int{0, 50, 99}},
		{256, 4, 0.25, 0.75, []int{64, 107, 149, 192}},
	}
	for _, tt := range tests {
		got, err := BuildIndices(tt.width, tt.count, tt.lo, tt.hi)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestBuildIndicesBounded(t *testing.T) {
	const width = 181
	lo, hi := float32(0.3), float32(0.7)
	got, err := BuildIndices(width, 9, lo, hi)
	require.NoError(t, err)
	require.Len(t, got, 9)

	minIdx := int(math32.Round(width * lo))
	maxIdx := int(math32.Round(width * hi))
	for i, idx := range got {
		assert.GreaterOrEqual(t, idx, minIdx)
		assert.LessOrEqual(t, idx, maxIdx)
		if i > 0 {
			assert.Greater(t, idx, got[i-1])
		}
	}
}

func TestBuildIndicesShrinksDenseRequests(t *testing.T) {
	// 10 voxels of window, 50 requested slices.
	got, err := BuildIndices(100, 50, 0.4, 0.5)
	require.NoError(t, err)
	assert.Less(t, len(got), 50)

	seen := map[int]bool{}
	for i, idx := range got {
		assert.False(t, seen[idx], "index %d repeated", idx)
		seen[idx] = true
		if i > 0 {
			assert.Equal(t, 1, idx-got[i-1], "step must be one voxel")
		}
	}
}

func TestBuildIndicesErrors(t *testing.T) {
	_, err := BuildIndices(10, 0, 0.3, 0.7)
	assert.ErrorIs(t, err, ErrNoSlices)

	for _, r := range [][2]float32{{0.5, 0.5}, {0.7, 0.3}, {-0.1, 0.5}, {0.2, 1.5}} {
		_, err := BuildIndices(10, 3, r[0], r[1])
		assert.ErrorIs(t, err, ErrInvalidRange, "range %v", r)
	}
}

func TestSliceGeometryPerAxis(t *testing.T) {
	vol := rampVolume(t, [3]int{4, 6, 8}, OrderFortran)
	s, err := NewSlicer(vol, 1, 0.3, 0.7)
	require.NoError(t, err)

	tests := []struct {
		view  View
		w, h  int
		index int
	}{
		{Superior, 4, 6, 4},
		{Posterior, 4, 8, 3},
		{Left, 6, 8, 2},
	}
	for _, tt := range tests {
		sl := s.Slice(tt.view, s.Indices(tt.view.Axis())[0])
		assert.Equal(t, tt.w, sl.Width, tt.view.Name())
		assert.Equal(t, tt.h, sl.Height, tt.view.Name())
		assert.Equal(t, tt.index, sl.Index, tt.view.Name())
		assert.Len(t, sl.Pixels, tt.w*tt.h)
	}
}

func TestSliceStorageOrder(t *testing.T) {
	dims := [3]int{3, 4, 2}
	f := rampVolume(t, dims, OrderFortran)

	// Same voxel values laid out in C order.
	c := make([]float32, 3*4*2)
	for x := range 3 {
		for y := range 4 {
			for z := range 2 {
				c[(x*4+y)*2+z] = f.At(x, y, z)
			}
		}
	}
	cv, err := New(dims, [3]float32{1, 1, 1}, OrderC, c)
	require.NoError(t, err)

	for _, view := range Views {
		fs, _ := NewSlicer(f, 1, 0, 1)
		cs, _ := NewSlicer(cv, 1, 0, 1)
		idx := fs.Indices(view.Axis())[0]
		assert.Equal(t, fs.Slice(view, idx).Pixels, cs.Slice(view, idx).Pixels, view.Name())
	}
}

func TestSliceRowMajor(t *testing.T) {
	// Axial slice of a volume whose value encodes x + 10*y.
	dims := [3]int{3, 2, 1}
	data := make([]float32, 6)
	for y := range 2 {
		for x := range 3 {
			data[y*3+x] = float32(x + 10*y)
		}
	}
	vol, err := New(dims, [3]float32{1, 1, 1}, OrderFortran, data)
	require.NoError(t, err)

	s, err := NewSlicer(vol, 1, 0, 1)
	require.NoError(t, err)
	sl := s.Slice(Superior, 0)

	for y := range 2 {
		for x := range 3 {
			assert.Equal(t, vol.Rescale(float32(x+10*y)), sl.Pixels[y*3+x])
		}
	}
}

func TestExtract(t *testing.T) {
	vol := rampVolume(t, [3]int{20, 20, 20}, OrderFortran)
	slices, err := Extract(vol, 3, []View{Superior, Left}, 0.25, 0.75)
	require.NoError(t, err)
	require.Len(t, slices, 6)
	assert.Equal(t, Superior, slices[0].View)
	assert.Equal(t, Left, slices[5].View)
	assert.Less(t, slices[0].Index, slices[1].Index)

	_, err = Extract(vol, 0, []View{Superior}, 0.25, 0.75)
	assert.ErrorIs(t, err, ErrNoSlices)
}

func rampVolume(t *testing.T, dims [3]int, order Order) *Volume {
	t.Helper()
	data := make([]float32, dims[0]*dims[1]*dims[2])
	for i := range data {
		data[i] = float32(i)
	}
	vol, err := New(dims, [3]float32{1, 1, 1}, order, data)
	require.NoError(t, err)
	return vol
}
