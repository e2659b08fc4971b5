package volume

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/text/cases"
)

// Axis is one of the three anatomical axes of a RAS volume.
type Axis int

const (
	Sagittal Axis = iota
	Coronal
	Axial
)

// String returns the axis name.
func (a Axis) String() string {
	switch a {
	case Sagittal:
		return "sagittal"
	case Coronal:
		return "coronal"
	case Axial:
		return "axial"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Plane returns the two voxel axes spanning a slice taken along a. The
// first one becomes the image width, the second one the image height.
func (a Axis) Plane() (u, v int) {
	switch a {
	case Sagittal:
		return 1, 2
	case Coronal:
		return 0, 2
	default:
		return 0, 1
	}
}

// View is the side the volume is looked at from.
type View int

const (
	Left View = iota
	Right
	Anterior
	Posterior
	Superior
	Inferior
)

// Views lists every view in declaration order.
var Views = []View{Left, Right, Anterior, Posterior, Superior, Inferior}

// DefaultViews are rendered when no view is configured.
var DefaultViews = []View{Superior, Posterior, Left}

var viewNames = [...]string{
	Left:      "left",
	Right:     "right",
	Anterior:  "anterior",
	Posterior: "posterior",
	Superior:  "superior",
	Inferior:  "inferior",
}

var fold = cases.Fold()

// ParseView parses a view name, ignoring case and surrounding space.
func ParseView(s string) (View, error) {
	name := fold.String(strings.TrimSpace(s))
	for v, n := range viewNames {
		if n == name {
			return View(v), nil
		}
	}
	return 0, fmt.Errorf("volume: unknown view %q", s)
}

// Name returns the lowercase view name used in file names.
func (v View) Name() string {
	if v < Left || v > Inferior {
		return fmt.Sprintf("view%d", int(v))
	}
	return viewNames[v]
}

// String implements fmt.Stringer.
func (v View) String() string { return v.Name() }

// MarshalText implements encoding.TextMarshaler.
func (v View) MarshalText() ([]byte, error) { return []byte(v.Name()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *View) UnmarshalText(b []byte) error {
	p, err := ParseView(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// Axis returns the axis slices are taken along for this view.
func (v View) Axis() Axis {
	switch v {
	case Left, Right:
		return Sagittal
	case Anterior, Posterior:
		return Coronal
	default:
		return Axial
	}
}

// Rotation maps centered RAS voxel coordinates to view space: x to the
// right of the image, y up, z toward the viewer. Every rotation is proper.
func (v View) Rotation() mgl32.Mat3 {
	switch v {
	case Inferior:
		return mgl32.Mat3FromRows(
			mgl32.Vec3{-1, 0, 0},
			mgl32.Vec3{0, 1, 0},
			mgl32.Vec3{0, 0, -1},
		)
	case Anterior:
		return mgl32.Mat3FromRows(
			mgl32.Vec3{-1, 0, 0},
			mgl32.Vec3{0, 0, 1},
			mgl32.Vec3{0, 1, 0},
		)
	case Posterior:
		return mgl32.Mat3FromRows(
			mgl32.Vec3{1, 0, 0},
			mgl32.Vec3{0, 0, 1},
			mgl32.Vec3{0, -1, 0},
		)
	case Left:
		return mgl32.Mat3FromRows(
			mgl32.Vec3{0, -1, 0},
			mgl32.Vec3{0, 0, 1},
			mgl32.Vec3{-1, 0, 0},
		)
	case Right:
		return mgl32.Mat3FromRows(
			mgl32.Vec3{0, 1, 0},
			mgl32.Vec3{0, 0, 1},
			mgl32.Vec3{1, 0, 0},
		)
	default:
		return mgl32.Ident3()
	}
}

// Orientation returns the 2D matrix placing the slice image on screen.
// Its columns are the screen directions of the slice's width and height
// axes, read off Rotation so the image and the 3D geometry agree.
func (v View) Orientation() mgl32.Mat2 {
	r := v.Rotation()
	a, b := v.Axis().Plane()
	ca, cb := r.Col(a), r.Col(b)
	return mgl32.Mat2{ca[0], ca[1], cb[0], cb[1]}
}
