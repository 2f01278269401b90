package sim

import (
	"math/rand/v2"
	"testing"

	"github.com/crashsight/crashsight/pkg/core"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestIntegrate_Driving(t *testing.T) {
	v := core.VehicleState{
		Position:        r3.Vec{X: 1, Y: 0, Z: 2},
		Velocity:        r3.Vec{X: 0.5, Z: -0.25},
		Rotation:        r3.Vec{Y: 1},
		AngularVelocity: r3.Vec{Y: 0.3},
	}

	integrate(&v, 0.01)

	assert.Equal(t, r3.Vec{X: 1.5, Z: 1.75}, v.Position)
	assert.Equal(t, r3.Vec{Y: 1}, v.Rotation, "rotation only integrates after a collision")
	assert.Equal(t, r3.Vec{X: 0.5, Z: -0.25}, v.Velocity)
}

func TestIntegrate_AirborneLosesLift(t *testing.T) {
	v := core.VehicleState{
		Collided:        true,
		Velocity:        r3.Vec{Y: 0.1},
		AngularVelocity: r3.Vec{X: 0.02},
	}

	integrate(&v, 0.01)

	assert.InDelta(t, 0.1, v.Position.Y, 1e-12)
	assert.InDelta(t, 0.09, v.Velocity.Y, 1e-12)
	assert.InDelta(t, 0.02, v.Rotation.X, 1e-12)
}

func TestIntegrate_GroundClamp(t *testing.T) {
	v := core.VehicleState{
		Collided: true,
		Position: r3.Vec{Y: 0.02},
		Velocity: r3.Vec{X: 0.05, Y: -0.05},
	}

	integrate(&v, 0.01)

	assert.Equal(t, 0.0, v.Position.Y)
	assert.Equal(t, 0.0, v.Velocity.Y)
	assert.InDelta(t, 0.05, v.Position.X, 1e-12)
}

func TestColliding_SkipsAlreadyCollided(t *testing.T) {
	a := core.VehicleState{}
	b := core.VehicleState{Position: r3.Vec{X: 1}}

	assert.True(t, colliding(a, b, 3))

	a.Collided = true
	assert.False(t, colliding(a, b, 3))
	assert.False(t, colliding(b, a, 3))
}

func TestSeparation(t *testing.T) {
	a := core.VehicleState{Position: r3.Vec{X: 1, Y: 2, Z: 3}}
	b := core.VehicleState{Position: r3.Vec{X: 4, Y: 6, Z: 3}}
	assert.InDelta(t, 5.0, separation(a, b), 1e-12)
}

func TestScatter_Ranges(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 1000; i++ {
		var v core.VehicleState
		scatter(&v, rng)

		assert.True(t, v.Collided)
		assert.Equal(t, 0.1, v.Velocity.Y)
		assert.GreaterOrEqual(t, v.Velocity.X, -0.1)
		assert.Less(t, v.Velocity.X, 0.1)
		assert.GreaterOrEqual(t, v.Velocity.Z, -0.1)
		assert.Less(t, v.Velocity.Z, 0.1)
		for _, w := range []float64{v.AngularVelocity.X, v.AngularVelocity.Y, v.AngularVelocity.Z} {
			assert.GreaterOrEqual(t, w, -0.025)
			assert.Less(t, w, 0.025)
		}
	}
}

func TestSampleImpactForce_Range(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 9))
	for i := 0; i < 1000; i++ {
		f := sampleImpactForce(rng)
		assert.GreaterOrEqual(t, f, 25.0)
		assert.Less(t, f, 45.0)
	}
}
