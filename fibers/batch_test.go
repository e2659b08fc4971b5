package fibers

import (
	"errors"
	"io"
	"math/rand/v2"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomLines(r *rand.Rand, n int) []Streamline {
	lines := make([]Streamline, n)
	for i := range lines {
		pts := make(Streamline, 2+r.IntN(20))
		for j := range pts {
			pts[j] = mgl32.Vec3{r.Float32() * 100, r.Float32() * 100, r.Float32() * 100}
		}
		lines[i] = pts
	}
	return lines
}

func TestBatchingIsLossless(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	lines := randomLines(r, 137)
	total := 0
	for _, l := range lines {
		total += len(l)
	}

	for _, size := range []int{1, 7, 50, 137, 1000} {
		batches, err := NewBatcher(NewSliceSource(lines), size, Coloring{}).All()
		require.NoError(t, err)

		vertices, streamlines := 0, 0
		for _, b := range batches {
			assert.LessOrEqual(t, len(b.Ranges), size)
			vertices += len(b.Vertices)
			streamlines += len(b.Ranges)
		}
		assert.Equal(t, total, vertices, "batch size %d", size)
		assert.Equal(t, len(lines), streamlines, "batch size %d", size)
		assert.Equal(t, (len(lines)+size-1)/size, len(batches), "batch size %d", size)
	}
}

func TestIndicesStayInsideStreamlines(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	lines := randomLines(r, 40)
	batches, err := NewBatcher(NewSliceSource(lines), 9, Coloring{}).All()
	require.NoError(t, err)

	for _, b := range batches {
		owner := make([]int, len(b.Vertices))
		segments := 0
		for ri, rg := range b.Ranges {
			for i := rg.Start; i < rg.End; i++ {
				owner[i] = ri
			}
			segments += rg.End - rg.Start - 1
		}
		require.Equal(t, segments, b.Segments())
		for i := 0; i < len(b.Indices); i += 2 {
			a, c := b.Indices[i], b.Indices[i+1]
			assert.Equal(t, owner[a], owner[c], "segment %d crosses streamlines", i/2)
			assert.Equal(t, a+1, c)
		}
	}
}

func TestDegenerateStreamlinesSkipped(t *testing.T) {
	lines := []Streamline{
		{{0, 0, 0}},
		{{0, 0, 0}, {1, 0, 0}},
		{},
		{{0, 0, 0}, {0, 1, 0}, {0, 1, 1}},
	}
	b := NewBatcher(NewSliceSource(lines), 10, Coloring{})
	batches, err := b.All()
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 2, b.Skipped())
	assert.Len(t, batches[0].Vertices, 5)
	assert.Equal(t, []uint32{0, 1, 2, 3, 3, 4}, batches[0].Indices)
}

func TestEmptySource(t *testing.T) {
	b := NewBatcher(NewSliceSource(nil), 10, Coloring{})
	_, err := b.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = b.Next()
	assert.ErrorIs(t, err, io.EOF)
}

type failingSource struct{ err error }

func (f failingSource) Next() (Streamline, error) { return nil, f.err }

func TestSourceErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewBatcher(failingSource{boom}, 10, Coloring{}).Next()
	assert.ErrorIs(t, err, boom)
}

func TestVertexSizeMatchesLayout(t *testing.T) {
	assert.Equal(t, uintptr(VertexSize), unsafe.Sizeof(Vertex{}))
}

func TestDefaultBatchSize(t *testing.T) {
	b := NewBatcher(NewSliceSource(nil), 0, Coloring{})
	assert.Equal(t, DefaultBatchSize, b.size)
}
