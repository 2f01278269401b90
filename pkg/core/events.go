// pkg/core/events.go
package core

import "github.com/google/uuid"

// EventKind distinguishes the two inputs the detection classifier understands.
type EventKind uint8

const (
	EventScenarioChanged EventKind = iota + 1
	EventCollision
)

func (k EventKind) String() string {
	switch k {
	case EventScenarioChanged:
		return "scenario_changed"
	case EventCollision:
		return "collision"
	default:
		return "unknown"
	}
}

// SessionID correlates everything that happened during one scenario load.
type SessionID = uuid.UUID

// ScenarioChangeEvent is emitted once when a scenario is loaded, before any motion.
type ScenarioChangeEvent struct {
	Scenario ScenarioID
	Name     string
	Session  SessionID
}

// CollisionEvent is emitted once per scenario load when the two vehicles first come
// within the collision threshold.
type CollisionEvent struct {
	Scenario      ScenarioID
	CollisionType string
	ImpactForce   float64 // kN
	Frame         uint64
	Session       SessionID
}

// DetectionResult is the classifier output shown by the UI.
type DetectionResult struct {
	IsAccident    bool    `json:"isAccident"`
	Confidence    float64 `json:"confidence"`
	ImpactForce   float64 `json:"impactForce"`
	CollisionType string  `json:"collisionType"`
}
