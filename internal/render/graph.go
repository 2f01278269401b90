package render

import (
	"math"

	"github.com/crashsight/crashsight/pkg/core"

	"gonum.org/v1/gonum/spatial/r3"
)

// Light is either the ambient term (Position ignored) or a directional light shining from
// Position towards the origin.
type Light struct {
	Color     core.Color
	Intensity float64
	Position  r3.Vec
}

// Plane is a horizontal rectangle centred on Center, Width along x and Depth along z.
type Plane struct {
	Center r3.Vec
	Width  float64
	Depth  float64
	Color  core.Color
	Unlit  bool
}

// Box is an axis-aligned box in mesh-local space.
type Box struct {
	Offset r3.Vec
	Size   r3.Vec
	Color  core.Color
}

// Mesh is a rigid group of boxes placed by Position and Euler Rotation (XYZ order).
type Mesh struct {
	Parts    []Box
	Position r3.Vec
	Rotation r3.Vec
}

// Graph is everything drawn in one frame.
type Graph struct {
	Camera   *Camera
	Ambient  Light
	Sun      Light
	Sky      core.Color
	Ground   Plane
	Markings []Plane
	Meshes   []Mesh
}

// shade applies ambient and directional lighting to base for a face with the given normal.
func (g *Graph) shade(base core.Color, normal r3.Vec, unlit bool) (r, gr, b int32) {
	r, gr, b = base.RGB()
	if unlit {
		return r, gr, b
	}

	sunDir := r3.Unit(g.Sun.Position)
	f := g.Ambient.Intensity + g.Sun.Intensity*math.Max(0, r3.Dot(normal, sunDir))
	f = math.Min(f, 1)

	scale := func(c int32) int32 {
		return int32(math.Round(float64(c) * f))
	}
	return scale(r), scale(gr), scale(b)
}

// toWorld transforms a mesh-local point into world space.
func (m Mesh) toWorld(p r3.Vec) r3.Vec {
	return r3.Add(m.Position, m.rotate(p))
}

func (m Mesh) rotate(p r3.Vec) r3.Vec {
	if m.Rotation.Z != 0 {
		p = r3.NewRotation(m.Rotation.Z, r3.Vec{Z: 1}).Rotate(p)
	}
	if m.Rotation.Y != 0 {
		p = r3.NewRotation(m.Rotation.Y, r3.Vec{Y: 1}).Rotate(p)
	}
	if m.Rotation.X != 0 {
		p = r3.NewRotation(m.Rotation.X, r3.Vec{X: 1}).Rotate(p)
	}
	return p
}

type face struct {
	corners [4]r3.Vec
	normal  r3.Vec
}

// boxFaces lists the six local-space faces of b with outward normals.
func boxFaces(b Box) [6]face {
	hx, hy, hz := b.Size.X/2, b.Size.Y/2, b.Size.Z/2
	c := func(sx, sy, sz float64) r3.Vec {
		return r3.Add(b.Offset, r3.Vec{X: sx * hx, Y: sy * hy, Z: sz * hz})
	}
	return [6]face{
		{[4]r3.Vec{c(1, -1, -1), c(1, 1, -1), c(1, 1, 1), c(1, -1, 1)}, r3.Vec{X: 1}},
		{[4]r3.Vec{c(-1, -1, 1), c(-1, 1, 1), c(-1, 1, -1), c(-1, -1, -1)}, r3.Vec{X: -1}},
		{[4]r3.Vec{c(-1, 1, -1), c(-1, 1, 1), c(1, 1, 1), c(1, 1, -1)}, r3.Vec{Y: 1}},
		{[4]r3.Vec{c(-1, -1, 1), c(-1, -1, -1), c(1, -1, -1), c(1, -1, 1)}, r3.Vec{Y: -1}},
		{[4]r3.Vec{c(-1, -1, 1), c(1, -1, 1), c(1, 1, 1), c(-1, 1, 1)}, r3.Vec{Z: 1}},
		{[4]r3.Vec{c(1, -1, -1), c(-1, -1, -1), c(-1, 1, -1), c(1, 1, -1)}, r3.Vec{Z: -1}},
	}
}

// tiles splits p into square-ish quads no larger than size on a side, so that a plane
// partly behind the camera still draws its visible part.
func (p Plane) tiles(size float64) []face {
	if p.Width <= 0 || p.Depth <= 0 {
		return nil
	}
	nx := int(math.Max(1, math.Ceil(p.Width/size)))
	nz := int(math.Max(1, math.Ceil(p.Depth/size)))
	sx, sz := p.Width/float64(nx), p.Depth/float64(nz)
	x0, z0 := p.Center.X-p.Width/2, p.Center.Z-p.Depth/2

	out := make([]face, 0, nx*nz)
	for i := 0; i < nx; i++ {
		for j := 0; j < nz; j++ {
			xa, za := x0+float64(i)*sx, z0+float64(j)*sz
			xb, zb := xa+sx, za+sz
			y := p.Center.Y
			out = append(out, face{
				corners: [4]r3.Vec{{X: xa, Y: y, Z: za}, {X: xa, Y: y, Z: zb}, {X: xb, Y: y, Z: zb}, {X: xb, Y: y, Z: za}},
				normal:  r3.Vec{Y: 1},
			})
		}
	}
	return out
}
