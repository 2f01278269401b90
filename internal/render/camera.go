package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// cellAspect is the height of a terminal cell relative to its width.
const cellAspect = 2.0

// maxPitch keeps the orbit camera away from the poles, where the view basis flips.
const maxPitch = 85 * math.Pi / 180

var worldUp = r3.Vec{Y: 1}

// Camera is a perspective camera that always looks at Target.
type Camera struct {
	Position r3.Vec
	Target   r3.Vec
	FOV      float64 // vertical field of view, radians
	Near     float64
	Far      float64
	Aspect   float64 // width over height, in pixels
}

// NewCamera creates a camera at pos looking at the origin. fovDeg is the vertical field of view.
func NewCamera(pos r3.Vec, fovDeg, near, far float64) *Camera {
	return &Camera{
		Position: pos,
		FOV:      fovDeg * math.Pi / 180,
		Near:     near,
		Far:      far,
		Aspect:   1,
	}
}

// SetViewport derives the aspect ratio from a surface of w×h cells.
func (c *Camera) SetViewport(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	c.Aspect = float64(w) / (float64(h) * cellAspect)
}

// Orbit rotates the camera about its target by dYaw and dPitch radians, keeping the
// distance fixed. Pitch is clamped short of straight up or down.
func (c *Camera) Orbit(dYaw, dPitch float64) {
	offset := r3.Sub(c.Position, c.Target)
	radius := r3.Norm(offset)
	if radius == 0 {
		return
	}

	yaw := math.Atan2(offset.X, offset.Z) + dYaw
	pitch := math.Asin(offset.Y/radius) + dPitch
	pitch = math.Max(-maxPitch, math.Min(maxPitch, pitch))

	c.Position = r3.Add(c.Target, r3.Vec{
		X: radius * math.Cos(pitch) * math.Sin(yaw),
		Y: radius * math.Sin(pitch),
		Z: radius * math.Cos(pitch) * math.Cos(yaw),
	})
}

// Pitch returns the current elevation angle above the target, radians.
func (c *Camera) Pitch() float64 {
	offset := r3.Sub(c.Position, c.Target)
	radius := r3.Norm(offset)
	if radius == 0 {
		return 0
	}
	return math.Asin(offset.Y / radius)
}

// basis returns the camera's forward, right and up unit vectors.
func (c *Camera) basis() (forward, right, up r3.Vec) {
	forward = r3.Unit(r3.Sub(c.Target, c.Position))
	right = r3.Unit(r3.Cross(forward, worldUp))
	up = r3.Cross(right, forward)
	return forward, right, up
}

// Project maps a world point onto a w×h surface. depth is the distance along the view
// axis; ok is false when the point lies outside the near/far range.
func (c *Camera) Project(p r3.Vec, w, h int) (x, y, depth float64, ok bool) {
	forward, right, up := c.basis()
	d := r3.Sub(p, c.Position)

	depth = r3.Dot(d, forward)
	if depth < c.Near || depth > c.Far {
		return 0, 0, depth, false
	}

	t := math.Tan(c.FOV / 2)
	ndcX := r3.Dot(d, right) / (depth * t * c.Aspect)
	ndcY := r3.Dot(d, up) / (depth * t)

	x = (ndcX + 1) / 2 * float64(w)
	y = (1 - ndcY) / 2 * float64(h)
	return x, y, depth, true
}

// Ray returns the view direction through the surface point (x, y), scaled so that its
// component along the view axis is 1.
func (c *Camera) Ray(x, y float64, w, h int) r3.Vec {
	forward, right, up := c.basis()
	t := math.Tan(c.FOV / 2)

	ndcX := 2*x/float64(w) - 1
	ndcY := 1 - 2*y/float64(h)

	return r3.Add(forward, r3.Add(
		r3.Scale(ndcX*t*c.Aspect, right),
		r3.Scale(ndcY*t, up),
	))
}
