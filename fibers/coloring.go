package fibers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/text/cases"
)

// ErrMissingRGB is returned when uniform coloring lacks a valid color.
var ErrMissingRGB = errors.New("fibers: uniform coloring requires an R G B triple in 0..255")

// ErrUnknownColoring is returned for a mode name or ColoringMode value
// that is not Local, Endpoint or Uniform.
var ErrUnknownColoring = errors.New("fibers: unknown coloring")

// ColoringMode selects how fiber vertices are colored.
type ColoringMode int

const (
	// Local colors each segment by its own direction.
	Local ColoringMode = iota

	// Endpoint colors a whole streamline by the direction between its ends.
	Endpoint

	// Uniform paints every vertex with one color.
	Uniform
)

var modeNames = [...]string{Local: "local", Endpoint: "endpoint", Uniform: "uniform"}

// String returns the mode name.
func (m ColoringMode) String() string {
	if m < Local || m > Uniform {
		return fmt.Sprintf("ColoringMode(%d)", int(m))
	}
	return modeNames[m]
}

// Coloring is a coloring mode with the color used by Uniform.
type Coloring struct {
	Mode ColoringMode
	RGB  [3]uint8
}

var fold = cases.Fold()

// ParseColoring builds a Coloring from a mode name and, for uniform, the
// RGB components.
func ParseColoring(name string, rgb []int) (Coloring, error) {
	name = fold.String(strings.TrimSpace(name))
	for m, n := range modeNames {
		if n != name {
			continue
		}
		c := Coloring{Mode: ColoringMode(m)}
		if c.Mode != Uniform {
			return c, nil
		}
		if len(rgb) != 3 {
			return Coloring{}, fmt.Errorf("%w: got %d components", ErrMissingRGB, len(rgb))
		}
		for i, v := range rgb {
			if v < 0 || v > 255 {
				return Coloring{}, fmt.Errorf("%w: component %d is %d", ErrMissingRGB, i, v)
			}
			c.RGB[i] = uint8(v)
		}
		return c, nil
	}
	return Coloring{}, fmt.Errorf("%w %q", ErrUnknownColoring, name)
}

// Colorize writes one color per position. ranges delimit the streamlines
// inside positions; colors must be as long as positions.
func (c Coloring) Colorize(positions []mgl32.Vec3, ranges []Range, colors []mgl32.Vec3) error {
	switch c.Mode {
	case Local:
		for _, r := range ranges {
			for i := r.Start; i < r.End-1; i++ {
				colors[i] = direction(positions[i+1], positions[i])
			}
			// The terminal point has no outgoing segment.
			colors[r.End-1] = colors[r.End-2]
		}
	case Endpoint:
		for _, r := range ranges {
			col := direction(positions[r.Start], positions[r.End-1])
			for i := r.Start; i < r.End; i++ {
				colors[i] = col
			}
		}
	case Uniform:
		col := mgl32.Vec3{float32(c.RGB[0]) / 255, float32(c.RGB[1]) / 255, float32(c.RGB[2]) / 255}
		for i := range colors {
			colors[i] = col
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownColoring, c.Mode)
	}
	return nil
}

// direction returns abs(normalize(a - b)), or zero when a == b.
func direction(a, b mgl32.Vec3) mgl32.Vec3 {
	d := a.Sub(b)
	l := d.Len()
	if l == 0 {
		return mgl32.Vec3{}
	}
	return mgl32.Vec3{math32.Abs(d[0] / l), math32.Abs(d[1] / l), math32.Abs(d[2] / l)}
}
