// pkg/core/vehicle.go
package core

import "gonum.org/v1/gonum/spatial/r3"

// VehicleState is the mutable transform of a vehicle while a scenario runs.
type VehicleState struct {
	Position        r3.Vec
	Rotation        r3.Vec
	Velocity        r3.Vec
	AngularVelocity r3.Vec
	Color           Color
	Collided        bool
}

// NewVehicleState builds a fresh state from its spec. Angular velocity starts at zero.
func NewVehicleState(spec VehicleSpec) VehicleState {
	return VehicleState{
		Position: spec.Position,
		Rotation: spec.Rotation,
		Velocity: spec.Velocity,
		Color:    spec.Color,
	}
}
