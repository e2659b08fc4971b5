package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/slicer/volume"
)

type fixture struct {
	dims      [3]int16
	ndim      int16
	datatype  Datatype
	pixdim    [3]float32
	slope     float32
	inter     float32
	magic     string
	order     binary.ByteOrder
	extension []byte
	samples   any
}

func defaultFixture() fixture {
	return fixture{
		dims:     [3]int16{2, 3, 4},
		ndim:     3,
		datatype: Int16,
		pixdim:   [3]float32{1, 1.5, -2},
		magic:    "n+1",
		order:    binary.LittleEndian,
		samples:  seqInt16(24),
	}
}

func seqInt16(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(i)
	}
	return out
}

func (f fixture) encode(t *testing.T) []byte {
	t.Helper()
	var h rawHeader
	h.SizeofHdr = headerSize
	h.Dim[0] = f.ndim
	for i, d := range f.dims {
		h.Dim[i+1] = d
	}
	h.Datatype = int16(f.datatype)
	h.Pixdim[0] = 1
	for i, p := range f.pixdim {
		h.Pixdim[i+1] = p
	}
	h.SclSlope = f.slope
	h.SclInter = f.inter
	h.VoxOffset = float32(headerSize + 4 + len(f.extension))
	copy(h.Descrip[:], "test volume")
	copy(h.Magic[:], f.magic)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, f.order, &h))
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write(f.extension)
	require.NoError(t, binary.Write(&buf, f.order, f.samples))
	return buf.Bytes()
}

func gzipped(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestHeaderSize(t *testing.T) {
	assert.Equal(t, headerSize, binary.Size(rawHeader{}))
}

func TestReadInt16(t *testing.T) {
	vol, hdr, err := Read(bytes.NewReader(defaultFixture().encode(t)))
	require.NoError(t, err)

	assert.Equal(t, [3]int{2, 3, 4}, vol.Dims())
	assert.Equal(t, [3]float32{1, 1.5, 2}, vol.Spacing())
	assert.Equal(t, volume.OrderFortran, vol.Order())
	assert.Equal(t, Int16, hdr.Datatype)
	assert.Equal(t, "test volume", hdr.Description)
	assert.Equal(t, binary.LittleEndian, hdr.ByteOrder)

	// Fortran order: x fastest.
	assert.Equal(t, float32(1), vol.At(1, 0, 0))
	assert.Equal(t, float32(2), vol.At(0, 1, 0))
	assert.Equal(t, float32(6), vol.At(0, 0, 1))
	lo, hi := vol.Range()
	assert.Equal(t, float32(0), lo)
	assert.Equal(t, float32(23), hi)
}

func TestReadBigEndianFloat32(t *testing.T) {
	f := defaultFixture()
	f.order = binary.BigEndian
	f.datatype = Float32
	samples := make([]float32, 24)
	for i := range samples {
		samples[i] = float32(i) * 0.5
	}
	f.samples = samples

	vol, hdr, err := Read(bytes.NewReader(f.encode(t)))
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, hdr.ByteOrder)
	assert.Equal(t, float32(10.5), vol.At(1, 1, 3))
}

func TestReadScaling(t *testing.T) {
	f := defaultFixture()
	f.slope = 2
	f.inter = -1

	vol, _, err := Read(bytes.NewReader(f.encode(t)))
	require.NoError(t, err)
	assert.Equal(t, float32(-1), vol.At(0, 0, 0))
	assert.Equal(t, float32(1), vol.At(1, 0, 0))
}

func TestReadGzip(t *testing.T) {
	f := defaultFixture()
	f.datatype = Uint8
	samples := make([]uint8, 24)
	for i := range samples {
		samples[i] = uint8(200 + i)
	}
	f.samples = samples

	vol, _, err := Read(bytes.NewReader(gzipped(t, f.encode(t))))
	require.NoError(t, err)
	assert.Equal(t, float32(223), vol.At(1, 2, 3))
}

func TestReadSkipsExtension(t *testing.T) {
	f := defaultFixture()
	f.extension = bytes.Repeat([]byte{0xAB}, 16)

	vol, hdr, err := Read(bytes.NewReader(f.encode(t)))
	require.NoError(t, err)
	assert.Equal(t, int64(headerSize+4+16), hdr.VoxOffset)
	assert.Equal(t, float32(23), vol.At(1, 2, 3))
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*fixture)
		want   error
	}{
		{"four dimensions", func(f *fixture) { f.ndim = 4 }, volume.ErrNotVolume},
		{"negative dim", func(f *fixture) { f.dims[1] = -3 }, volume.ErrNotVolume},
		{"bad magic", func(f *fixture) { f.magic = "xyz" }, ErrNotNIfTI},
		{"header pair", func(f *fixture) { f.magic = "ni1" }, ErrPairNotSupported},
		{"rgb datatype", func(f *fixture) { f.datatype = 128 }, ErrDatatype},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := defaultFixture()
			tt.modify(&f)
			_, _, err := Read(bytes.NewReader(f.encode(t)))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadNotNIfTI(t *testing.T) {
	_, _, err := Read(bytes.NewReader(make([]byte, 400)))
	assert.ErrorIs(t, err, ErrNotNIfTI)

	_, _, err = Read(bytes.NewReader([]byte("short")))
	assert.ErrorIs(t, err, ErrNotNIfTI)
}

func TestReadTruncatedData(t *testing.T) {
	b := defaultFixture().encode(t)
	_, _, err := Read(bytes.NewReader(b[:len(b)-10]))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brain.nii.gz")
	require.NoError(t, os.WriteFile(path, gzipped(t, defaultFixture().encode(t)), 0o644))

	vol, _, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 3, 4}, vol.Dims())

	_, _, err = ReadFile(filepath.Join(t.TempDir(), "missing.nii"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDatatypeSize(t *testing.T) {
	assert.Equal(t, 1, Uint8.Size())
	assert.Equal(t, 2, Uint16.Size())
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
	assert.Equal(t, 0, Datatype(1).Size())
}
