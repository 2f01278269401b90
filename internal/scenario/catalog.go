// Package scenario holds the fixed catalog of collision scenarios.
package scenario

import (
	"errors"
	"fmt"
	"math"

	"github.com/crashsight/crashsight/pkg/core"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrUnknownScenario is returned by Lookup for identifiers outside the catalog.
var ErrUnknownScenario = errors.New("unknown scenario")

// UnknownName is the display name used for identifiers outside the catalog.
const UnknownName = "Unknown Collision"

var order = []core.ScenarioID{
	core.ScenarioHeadOn,
	core.ScenarioRearEnd,
	core.ScenarioSideImpact,
}

var catalog = map[core.ScenarioID]core.Scenario{
	core.ScenarioHeadOn: {
		ID:   core.ScenarioHeadOn,
		Name: "Head-on Collision",
		Vehicles: [2]core.VehicleSpec{
			{
				Position: r3.Vec{X: -10},
				Rotation: r3.Vec{Y: math.Pi},
				Color:    0x3498db,
				Velocity: r3.Vec{X: 0.15},
			},
			{
				Position: r3.Vec{X: 10},
				Color:    0xe74c3c,
				Velocity: r3.Vec{X: -0.12},
			},
		},
	},
	core.ScenarioRearEnd: {
		ID:   core.ScenarioRearEnd,
		Name: "Rear-end Collision",
		Vehicles: [2]core.VehicleSpec{
			{
				Color:    0x2ecc71,
				Velocity: r3.Vec{X: 0.05},
			},
			{
				Position: r3.Vec{X: -8},
				Color:    0xf39c12,
				Velocity: r3.Vec{X: 0.2},
			},
		},
	},
	core.ScenarioSideImpact: {
		ID:   core.ScenarioSideImpact,
		Name: "Side Impact (T-bone)",
		Vehicles: [2]core.VehicleSpec{
			{
				Position: r3.Vec{Z: -8},
				Rotation: r3.Vec{Y: math.Pi / 2},
				Color:    0x9b59b6,
				Velocity: r3.Vec{Z: 0.18},
			},
			{
				Color: 0x1abc9c,
			},
		},
	},
}

// Lookup returns the scenario registered under id.
func Lookup(id core.ScenarioID) (core.Scenario, error) {
	s, ok := catalog[id]
	if !ok {
		return core.Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	return s, nil
}

// IDs returns the catalog identifiers in display order.
func IDs() []core.ScenarioID {
	out := make([]core.ScenarioID, len(order))
	copy(out, order)
	return out
}

// Name returns the display name for id, or UnknownName.
func Name(id core.ScenarioID) string {
	if s, ok := catalog[id]; ok {
		return s.Name
	}
	return UnknownName
}
