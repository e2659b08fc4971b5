package output

import (
	"bytes"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/gogpu/slicer/volume"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	img.Set(1, 2, color.RGBA{R: 200, G: 10, B: 30, A: 255})
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"png", PNG},
		{"PNG", PNG},
		{".tiff", TIFF},
		{"tif", TIFF},
		{" Bmp ", BMP},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseFormat("jpeg")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatText(t *testing.T) {
	for _, f := range []Format{PNG, TIFF, BMP} {
		b, err := f.MarshalText()
		require.NoError(t, err)

		var back Format
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, f, back)
	}
	assert.Equal(t, ".tiff", TIFF.Ext())
	assert.Equal(t, "Format(7)", Format(7).String())
}

func TestFilename(t *testing.T) {
	w := &Writer{Dir: "out", Format: PNG}
	assert.Equal(t, "superior_00042.png", w.Filename(volume.Superior, 42))

	w.Format = BMP
	assert.Equal(t, "left_00000.bmp", w.Filename(volume.Left, 0))
}

func TestEncodeDecode(t *testing.T) {
	want := testImage()
	for _, f := range []Format{PNG, TIFF, BMP} {
		t.Run(f.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, want, f))

			got, name, err := image.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, f.String(), name)
			assert.Equal(t, want.Bounds(), got.Bounds())

			r, g, b, _ := got.At(1, 2).RGBA()
			assert.Equal(t, uint32(200), r>>8)
			assert.Equal(t, uint32(10), g>>8)
			assert.Equal(t, uint32(30), b>>8)
		})
	}
}

func TestEncodeUnknown(t *testing.T) {
	err := Encode(&bytes.Buffer{}, testImage(), Format(9))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	w := &Writer{Dir: dir, Format: TIFF}

	path, err := w.WriteImage(volume.Posterior, 7, testImage())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "posterior_00007.tiff"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
