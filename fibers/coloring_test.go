package fibers

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func colorsOf(t *testing.T, c Coloring, lines ...Streamline) []mgl32.Vec3 {
	t.Helper()
	batches, err := NewBatcher(NewSliceSource(lines), len(lines), c).All()
	require.NoError(t, err)
	require.Len(t, batches, 1)
	out := make([]mgl32.Vec3, len(batches[0].Vertices))
	for i, v := range batches[0].Vertices {
		out[i] = v.Color
	}
	return out
}

func TestLocalColoring(t *testing.T) {
	line := Streamline{{0, 0, 0}, {2, 0, 0}, {2, -3, 0}, {2, -3, 4}}
	got := colorsOf(t, Coloring{Mode: Local}, line)
	want := []mgl32.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0, 0, 1}}
	for i := range want {
		assert.True(t, want[i].ApproxEqual(got[i]), "vertex %d: got %v", i, got[i])
	}
}

func TestLocalColoringLastVertexCopiesPrevious(t *testing.T) {
	line := Streamline{{0, 0, 0}, {1, 1, 0}, {1, 1, 5}}
	got := colorsOf(t, Coloring{Mode: Local}, line)
	assert.Equal(t, got[1], got[2])
}

func TestEndpointColoring(t *testing.T) {
	a := Streamline{{0, 0, 0}, {5, 5, 5}, {0, 3, 4}}
	b := Streamline{{1, 1, 1}, {1, 1, 9}}
	got := colorsOf(t, Coloring{Mode: Endpoint}, a, b)

	for i := 0; i < 3; i++ {
		assert.True(t, got[i].ApproxEqual(mgl32.Vec3{0, 0.6, 0.8}), "vertex %d: got %v", i, got[i])
	}
	for i := 3; i < 5; i++ {
		assert.True(t, got[i].ApproxEqual(mgl32.Vec3{0, 0, 1}), "vertex %d: got %v", i, got[i])
	}
}

func TestUniformColoring(t *testing.T) {
	c, err := ParseColoring("uniform", []int{255, 0, 51})
	require.NoError(t, err)
	got := colorsOf(t, c, Streamline{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}})
	for _, col := range got {
		assert.True(t, col.ApproxEqual(mgl32.Vec3{1, 0, 0.2}))
	}
}

func TestZeroLengthSegmentIsBlack(t *testing.T) {
	got := colorsOf(t, Coloring{Mode: Local}, Streamline{{1, 1, 1}, {1, 1, 1}})
	for _, col := range got {
		assert.Equal(t, mgl32.Vec3{}, col)
	}
}

func TestParseColoring(t *testing.T) {
	c, err := ParseColoring("Endpoint", nil)
	require.NoError(t, err)
	assert.Equal(t, Endpoint, c.Mode)

	_, err = ParseColoring("uniform", nil)
	assert.ErrorIs(t, err, ErrMissingRGB)

	_, err = ParseColoring("uniform", []int{1, 2, 300})
	assert.ErrorIs(t, err, ErrMissingRGB)

	_, err = ParseColoring("rainbow", nil)
	assert.ErrorIs(t, err, ErrUnknownColoring)
}

func TestUnknownColoringMode(t *testing.T) {
	line := Streamline{{0, 0, 0}, {1, 0, 0}}
	colors := make([]mgl32.Vec3, len(line))
	err := Coloring{Mode: ColoringMode(7)}.Colorize(line, []Range{{0, 2}}, colors)
	assert.ErrorIs(t, err, ErrUnknownColoring)

	_, err = NewBatcher(NewSliceSource([]Streamline{line}), 1, Coloring{Mode: -1}).Next()
	assert.ErrorIs(t, err, ErrUnknownColoring)
}
