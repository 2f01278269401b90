package sim

import (
	"math/rand/v2"

	"github.com/crashsight/crashsight/pkg/core"

	"gonum.org/v1/gonum/spatial/r3"
)

// Post-collision scatter ranges, per tick.
const (
	scatterSpeed   = 0.2  // x and z drawn from [-0.1, 0.1)
	scatterLift    = 0.1  // fixed upward kick
	scatterSpin    = 0.05 // each axis drawn from [-0.025, 0.025)
	impactForceMin = 25.0
	impactForceRng = 20.0
)

// integrate advances v by one tick. Motion is per tick, not per second.
func integrate(v *core.VehicleState, gravity float64) {
	v.Position = r3.Add(v.Position, v.Velocity)
	if !v.Collided {
		return
	}

	v.Rotation = r3.Add(v.Rotation, v.AngularVelocity)
	if v.Position.Y > 0 {
		v.Velocity.Y -= gravity
	} else {
		v.Velocity.Y = 0
		v.Position.Y = 0
	}
}

// separation is the Euclidean distance between two vehicles.
func separation(a, b core.VehicleState) float64 {
	return r3.Norm(r3.Sub(a.Position, b.Position))
}

// colliding reports whether the pair should fire the collision edge this tick.
func colliding(a, b core.VehicleState, threshold float64) bool {
	if a.Collided || b.Collided {
		return false
	}
	return separation(a, b) < threshold
}

// scatter marks v collided and gives it canned random post-collision motion.
func scatter(v *core.VehicleState, rng *rand.Rand) {
	v.Collided = true
	v.Velocity = r3.Vec{
		X: (rng.Float64() - 0.5) * scatterSpeed,
		Y: scatterLift,
		Z: (rng.Float64() - 0.5) * scatterSpeed,
	}
	v.AngularVelocity = r3.Vec{
		X: (rng.Float64() - 0.5) * scatterSpin,
		Y: (rng.Float64() - 0.5) * scatterSpin,
		Z: (rng.Float64() - 0.5) * scatterSpin,
	}
}

func sampleImpactForce(rng *rand.Rand) float64 {
	return impactForceMin + rng.Float64()*impactForceRng
}
