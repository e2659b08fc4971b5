// Package transform builds the matrices that place a volume and its
// tractogram on the output image.
//
// Voxel space is centered and uniformly scaled so the volume fits the
// destination in every view, rotated by the view, and projected with an
// orthographic matrix into WebGPU clip space (depth in [0, 1]).
package transform

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/slicer/volume"
)

// FitScale returns the largest uniform scale at which the volume's
// footprint fits inside dst for any view. The horizontal footprint is the
// larger of the x and y extents, the vertical one the larger of z and y.
func FitScale(dst mgl32.Vec2, size mgl32.Vec3) float32 {
	fw := math32.Max(size.X(), size.Y())
	fh := math32.Max(size.Z(), size.Y())
	if fw <= 0 || fh <= 0 {
		return 1
	}
	return math32.Min(dst.X()/fw, dst.Y()/fh)
}

// Alignment centers the volume on the origin and applies the fit scale.
func Alignment(scale float32, size mgl32.Vec3) mgl32.Mat4 {
	half := size.Mul(0.5)
	return mgl32.Scale3D(scale, scale, scale).
		Mul4(mgl32.Translate3D(-half.X(), -half.Y(), -half.Z()))
}

// Projection returns an orthographic projection spanning dst around the
// origin. The depth range is half the largest scaled extent on both sides
// so any rotation of the volume stays inside it.
func Projection(dst mgl32.Vec2, scaled mgl32.Vec3) mgl32.Mat4 {
	hw, hh := dst.X()/2, dst.Y()/2
	depth := math32.Max(scaled.X(), math32.Max(scaled.Y(), scaled.Z())) / 2
	if depth <= 0 {
		depth = 1
	}
	return Ortho(-hw, hw, -hh, hh, -depth, depth)
}

// Ortho is a right-handed orthographic projection mapping view-space
// z=-near to depth 0 and z=-far to depth 1, as WebGPU clip space expects.
// With near=-d and far=+d the point nearest the viewer (z=+d) gets depth 0.
func Ortho(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	rl, tb, nf := right-left, top-bottom, near-far
	return mgl32.Mat4{
		2 / rl, 0, 0, 0,
		0, 2 / tb, 0, 0,
		0, 0, 1 / nf, 0,
		-(right + left) / rl, -(top + bottom) / tb, near / nf, 1,
	}
}

// Set holds the per-volume transforms shared by every slice.
type Set struct {
	Dst   mgl32.Vec2
	Size  mgl32.Vec3
	Scale float32

	// Voxel converts voxel coordinates to physical units.
	Voxel      mgl32.Mat4
	Alignment  mgl32.Mat4
	Projection mgl32.Mat4
}

// NewSet computes the transforms for vol rendered into a dst-sized image.
func NewSet(dst mgl32.Vec2, vol *volume.Volume) Set {
	size := PhysicalSize(vol)
	sp := vol.Spacing()
	scale := FitScale(dst, size)
	return Set{
		Dst:        dst,
		Size:       size,
		Scale:      scale,
		Voxel:      mgl32.Scale3D(sp[0], sp[1], sp[2]),
		Alignment:  Alignment(scale, size),
		Projection: Projection(dst, size.Mul(scale)),
	}
}

// ForView combines projection, view rotation and alignment into the
// matrix applied to voxel-space streamline points for one view.
func (s Set) ForView(view volume.View) mgl32.Mat4 {
	return s.Projection.
		Mul4(view.Rotation().Mat4()).
		Mul4(s.Alignment).
		Mul4(s.Voxel)
}

// PhysicalSize returns the volume extent in physical units.
func PhysicalSize(vol *volume.Volume) mgl32.Vec3 {
	d, sp := vol.Dims(), vol.Spacing()
	return mgl32.Vec3{
		float32(d[0]) * sp[0],
		float32(d[1]) * sp[1],
		float32(d[2]) * sp[2],
	}
}
