// Package detection turns scenario and collision events into DetectionResults.
//
// The classifier is a lookup table, not a model: confidence is fixed per scenario and
// the impact force is sampled from a per-scenario range.
package detection

import (
	"math/rand/v2"

	"github.com/crashsight/crashsight/internal/scenario"
	"github.com/crashsight/crashsight/pkg/core"
)

// AlertConfidence is the confidence a collision must exceed to raise the accident alert.
const AlertConfidence = 0.75

type profile struct {
	confidence float64
	forceMin   float64 // kN
	forceRange float64
}

var profiles = map[core.ScenarioID]profile{
	core.ScenarioHeadOn:     {confidence: 1.0, forceMin: 35, forceRange: 15},
	core.ScenarioRearEnd:    {confidence: 1.0, forceMin: 20, forceRange: 15},
	core.ScenarioSideImpact: {confidence: 1.0, forceMin: 28, forceRange: 12},
}

var fallback = profile{confidence: 0.75, forceMin: 25, forceRange: 10}

func profileFor(id core.ScenarioID) profile {
	if p, ok := profiles[id]; ok {
		return p
	}
	return fallback
}

// Classify maps an event kind and scenario to a result. Scenario changes are never
// accidents. Unknown kinds are treated like scenario changes.
func Classify(kind core.EventKind, id core.ScenarioID, rng *rand.Rand) core.DetectionResult {
	res := core.DetectionResult{CollisionType: scenario.Name(id)}
	if kind != core.EventCollision {
		return res
	}

	p := profileFor(id)
	res.IsAccident = true
	res.Confidence = p.confidence
	res.ImpactForce = p.forceMin + rng.Float64()*p.forceRange
	return res
}

// ShouldAlert reports whether r warrants the accident banner.
func ShouldAlert(r core.DetectionResult) bool {
	return r.IsAccident && r.Confidence > AlertConfidence
}
