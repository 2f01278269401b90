package monitor

import (
	"time"

	"github.com/crashsight/crashsight/pkg/core"
)

// VehicleStatus is one vehicle in the status snapshot.
type VehicleStatus struct {
	Position [3]float64 `json:"position"`
	Rotation [3]float64 `json:"rotation"`
	Collided bool       `json:"collided"`
}

// DetectionRecord is a classifier result stamped with the time it was published.
type DetectionRecord struct {
	Time time.Time `json:"time"`
	core.DetectionResult
}

// Status is the live snapshot written to the status file. It is overwritten on every
// interval and is not a history.
type Status struct {
	Time              time.Time         `json:"time"`
	Scenario          core.ScenarioID   `json:"scenario"`
	ScenarioName      string            `json:"scenarioName"`
	Session           string            `json:"session"`
	Frame             uint64            `json:"frame"`
	Vehicles          []VehicleStatus   `json:"vehicles"`
	RecentDetections  []DetectionRecord `json:"recentDetections"`
	EvictedDetections uint64            `json:"evictedDetections"`
}
