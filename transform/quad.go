package transform

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/slicer/volume"
)

// QuadVertex is one corner of the resampling quad.
type QuadVertex struct {
	Pos mgl32.Vec2 // clip space
	UV  mgl32.Vec2
}

// QuadVertexCount is the number of vertices in a resampling quad.
const QuadVertexCount = 6

// corners are listed counter-clockwise in slice space.
var corners = [4]mgl32.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

// Quad returns the two triangles that draw a slice. The quad keeps the
// slice's physical aspect ratio at the fit scale, which letterboxes it
// inside the destination; the uncovered area keeps the clear color.
//
// Texture row 0 sits at the bottom of the quad. Triangles are wound
// clockwise on screen so a pipeline culling front (counter-clockwise)
// faces keeps them.
func (s Set) Quad(sl *volume.Slice) [QuadVertexCount]QuadVertex {
	pw, ph := sl.PhysicalSize()
	half := mgl32.Vec2{s.Scale * pw / s.Dst.X(), s.Scale * ph / s.Dst.Y()}
	o := sl.View.Orientation()

	var v [4]QuadVertex
	for i, c := range corners {
		local := mgl32.Vec2{c.X() * half.X(), c.Y() * half.Y()}
		v[i] = QuadVertex{
			Pos: o.Mul2x1(local),
			UV:  mgl32.Vec2{(c.X() + 1) / 2, (c.Y() + 1) / 2},
		}
	}

	if o.Det() > 0 {
		return [QuadVertexCount]QuadVertex{v[0], v[2], v[1], v[0], v[3], v[2]}
	}
	return [QuadVertexCount]QuadVertex{v[0], v[1], v[2], v[0], v[2], v[3]}
}
