package sim

import (
	"github.com/crashsight/crashsight/pkg/core"

	"github.com/google/uuid"
)

// Session is the state of one scenario run. A new Session replaces the old one
// wholesale on every load, so collision flags never leak between runs.
type Session struct {
	ID       core.SessionID
	Scenario core.Scenario
	Frame    uint64
	Vehicles []core.VehicleState
}

func newSession(s core.Scenario) *Session {
	vehicles := make([]core.VehicleState, 0, len(s.Vehicles))
	for _, spec := range s.Vehicles {
		vehicles = append(vehicles, core.NewVehicleState(spec))
	}
	return &Session{
		ID:       uuid.New(),
		Scenario: s,
		Vehicles: vehicles,
	}
}

// clone returns a deep copy safe to hand outside the loop.
func (s *Session) clone() Session {
	out := *s
	out.Vehicles = make([]core.VehicleState, len(s.Vehicles))
	copy(out.Vehicles, s.Vehicles)
	return out
}
