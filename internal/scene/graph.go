package scene

import (
	"github.com/crashsight/crashsight/internal/render"
	"github.com/crashsight/crashsight/pkg/core"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	skyColor     core.Color = 0x87ceeb
	roadColor    core.Color = 0x333333
	markingColor core.Color = 0xffffff
	wheelColor   core.Color = 0x333333
	white        core.Color = 0xffffff
)

var (
	cameraStart = r3.Vec{Y: 5, Z: 15}
	sunPosition = r3.Vec{X: 10, Y: 20, Z: 10}

	wheelOffsets = [4]r3.Vec{
		{X: 1, Y: -0.5, Z: 1},
		{X: 1, Y: -0.5, Z: -1},
		{X: -1, Y: -0.5, Z: 1},
		{X: -1, Y: -0.5, Z: -1},
	}
)

// newGraph builds the static part of the scene for a w×h surface.
func newGraph(w, h int) *render.Graph {
	cam := render.NewCamera(cameraStart, 60, 0.1, 1000)
	cam.SetViewport(w, h)

	g := &render.Graph{
		Camera:  cam,
		Ambient: render.Light{Color: white, Intensity: 0.5},
		Sun:     render.Light{Color: white, Intensity: 0.8, Position: sunPosition},
		Sky:     skyColor,
		Ground: render.Plane{
			Center: r3.Vec{Y: -0.1},
			Width:  50,
			Depth:  20,
			Color:  roadColor,
		},
	}
	for x := -20; x < 20; x += 4 {
		g.Markings = append(g.Markings, render.Plane{
			Center: r3.Vec{X: float64(x), Y: -0.09},
			Width:  1,
			Depth:  0.2,
			Color:  markingColor,
			Unlit:  true,
		})
	}
	return g
}

// vehicleMesh places a car (body, roof, four wheels) at the vehicle's transform.
func vehicleMesh(v core.VehicleState) render.Mesh {
	parts := make([]render.Box, 0, 2+len(wheelOffsets))
	parts = append(parts,
		render.Box{Size: r3.Vec{X: 3, Y: 1.2, Z: 1.8}, Color: v.Color},
		render.Box{Offset: r3.Vec{X: -0.2, Y: 1}, Size: r3.Vec{X: 2, Y: 1, Z: 1.7}, Color: v.Color},
	)
	for _, off := range wheelOffsets {
		parts = append(parts, render.Box{Offset: off, Size: r3.Vec{X: 0.8, Y: 0.8, Z: 0.3}, Color: wheelColor})
	}
	return render.Mesh{
		Parts:    parts,
		Position: v.Position,
		Rotation: v.Rotation,
	}
}
