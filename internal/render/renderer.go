// Package render rasterises a Graph onto a tcell.Screen.
//
// Every face is a convex quad. Cells are filled when their centre falls inside the
// projected quad, and a per-cell depth buffer resolves overlap using the exact
// ray/plane distance, so draw order does not matter.
package render

import (
	"math"

	"github.com/crashsight/crashsight/pkg/core"

	"github.com/gdamore/tcell/v2"
	"gonum.org/v1/gonum/spatial/r3"
)

// groundTile is the largest side of a ground quad before it is split.
const groundTile = 5.0

// Overlay draws on top of the rendered scene, before the frame is shown.
type Overlay interface {
	Draw(s tcell.Screen)
}

// OverlayFunc adapts a function to Overlay.
type OverlayFunc func(s tcell.Screen)

func (f OverlayFunc) Draw(s tcell.Screen) { f(s) }

// Renderer draws frames to a screen. It is not safe for concurrent use.
type Renderer struct {
	screen tcell.Screen
	depth  []float64
	w, h   int
}

func New(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen}
}

// Draw renders g, then the overlays in order, then shows the frame.
func (r *Renderer) Draw(g *Graph, overlays ...Overlay) {
	r.w, r.h = r.screen.Size()
	if r.w <= 0 || r.h <= 0 {
		return
	}
	if n := r.w * r.h; cap(r.depth) < n {
		r.depth = make([]float64, n)
	} else {
		r.depth = r.depth[:n]
	}

	sky := tcell.StyleDefault.Background(tcellColor(g.Sky.RGB()))
	for y := 0; y < r.h; y++ {
		for x := 0; x < r.w; x++ {
			r.screen.SetContent(x, y, ' ', nil, sky)
			r.depth[y*r.w+x] = math.Inf(1)
		}
	}

	for _, f := range g.Ground.tiles(groundTile) {
		r.drawFace(g, f, g.Ground.Color, g.Ground.Unlit)
	}
	for _, m := range g.Markings {
		for _, f := range m.tiles(groundTile) {
			r.drawFace(g, f, m.Color, m.Unlit)
		}
	}
	for _, mesh := range g.Meshes {
		for _, part := range mesh.Parts {
			for _, f := range boxFaces(part) {
				for i := range f.corners {
					f.corners[i] = mesh.toWorld(f.corners[i])
				}
				f.normal = mesh.rotate(f.normal)
				r.drawFace(g, f, part.Color, false)
			}
		}
	}

	for _, o := range overlays {
		o.Draw(r.screen)
	}
	r.screen.Show()
}

type point struct{ x, y float64 }

func (r *Renderer) drawFace(g *Graph, f face, color core.Color, unlit bool) {
	cam := g.Camera

	center := r3.Scale(0.25, r3.Add(r3.Add(f.corners[0], f.corners[1]), r3.Add(f.corners[2], f.corners[3])))
	toCam := r3.Sub(cam.Position, center)
	if r3.Dot(f.normal, toCam) <= 0 {
		return
	}

	var poly [4]point
	for i, c := range f.corners {
		x, y, _, ok := cam.Project(c, r.w, r.h)
		if !ok {
			return
		}
		poly[i] = point{x, y}
	}

	style := tcell.StyleDefault.Background(tcellColor(g.shade(color, f.normal, unlit)))
	planeDist := r3.Dot(f.normal, r3.Sub(center, cam.Position))

	minX, minY, maxX, maxY := bounds(poly)
	x0, x1 := clamp(int(math.Floor(minX)), 0, r.w-1), clamp(int(math.Ceil(maxX)), 0, r.w-1)
	y0, y1 := clamp(int(math.Floor(minY)), 0, r.h-1), clamp(int(math.Ceil(maxY)), 0, r.h-1)

	filled := false
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			if !inside(poly, px, py) {
				continue
			}
			filled = true
			r.plot(x, y, r.depthAt(cam, f.normal, planeDist, px, py), style)
		}
	}

	// thin faces such as lane markings may not cover any cell centre
	if !filled {
		cx, cy, _, ok := cam.Project(center, r.w, r.h)
		if ok && cx >= 0 && cy >= 0 && cx < float64(r.w) && cy < float64(r.h) {
			x, y := int(cx), int(cy)
			r.plot(x, y, r.depthAt(cam, f.normal, planeDist, float64(x)+0.5, float64(y)+0.5), style)
		}
	}
}

// depthAt is the view-axis distance to the face plane through cell (px, py).
func (r *Renderer) depthAt(cam *Camera, normal r3.Vec, planeDist, px, py float64) float64 {
	denom := r3.Dot(normal, cam.Ray(px, py, r.w, r.h))
	if denom == 0 {
		return math.Inf(1)
	}
	return planeDist / denom
}

func (r *Renderer) plot(x, y int, depth float64, style tcell.Style) {
	i := y*r.w + x
	if depth >= r.depth[i] {
		return
	}
	r.depth[i] = depth
	r.screen.SetContent(x, y, ' ', nil, style)
}

// inside reports whether (x, y) lies within the convex polygon, for either winding.
func inside(poly [4]point, x, y float64) bool {
	var pos, neg bool
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		cross := (b.x-a.x)*(y-a.y) - (b.y-a.y)*(x-a.x)
		switch {
		case cross > 0:
			pos = true
		case cross < 0:
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
}

func bounds(poly [4]point) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range poly {
		minX, maxX = math.Min(minX, p.x), math.Max(maxX, p.x)
		minY, maxY = math.Min(minY, p.y), math.Max(maxY, p.y)
	}
	return minX, minY, maxX, maxY
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func tcellColor(r, g, b int32) tcell.Color {
	return tcell.NewRGBColor(r, g, b)
}
