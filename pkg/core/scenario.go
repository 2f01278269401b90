// pkg/core/scenario.go
package core

import "gonum.org/v1/gonum/spatial/r3"

// ScenarioID identifies an entry in the scenario catalog.
type ScenarioID string

const (
	ScenarioHeadOn     ScenarioID = "head-on"
	ScenarioRearEnd    ScenarioID = "rear-end"
	ScenarioSideImpact ScenarioID = "side-impact"
)

// Color is a 24-bit RGB value (0xRRGGBB).
type Color uint32

// RGB splits the color into its channels.
func (c Color) RGB() (r, g, b int32) {
	return int32(c>>16) & 0xff, int32(c>>8) & 0xff, int32(c) & 0xff
}

// VehicleSpec is the initial transform and velocity of one vehicle in a scenario.
// Velocity is expressed in world units per tick.
type VehicleSpec struct {
	Position r3.Vec
	Rotation r3.Vec // Euler angles, radians
	Color    Color
	Velocity r3.Vec
}

// Scenario is a named configuration of exactly two vehicles.
type Scenario struct {
	ID       ScenarioID
	Name     string
	Vehicles [2]VehicleSpec
}
