package output

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/slicer/volume"
)

// Writer stores rendered slices as files in Dir.
type Writer struct {
	Dir    string
	Format Format
}

// Filename returns the file name for a slice, e.g. "superior_00042.png".
func (w *Writer) Filename(view volume.View, index int) string {
	return fmt.Sprintf("%s_%05d%s", view.Name(), index, w.Format.Ext())
}

// WriteImage encodes img to Dir and returns the path written. Dir is
// created if missing.
func (w *Writer) WriteImage(view volume.View, index int, img image.Image) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(w.Dir, w.Filename(view, index))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, img, w.Format); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// Encode writes img to out in the given format.
func Encode(out io.Writer, img image.Image, format Format) error {
	switch format {
	case PNG:
		return png.Encode(out, img)
	case TIFF:
		return tiff.Encode(out, img, &tiff.Options{Compression: tiff.Deflate})
	case BMP:
		return bmp.Encode(out, img)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
}
