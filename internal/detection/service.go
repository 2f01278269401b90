package detection

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/crashsight/crashsight/internal/dispatcher"
	"github.com/crashsight/crashsight/pkg/core"
)

// Bus is the part of the dispatcher the service needs.
type Bus interface {
	Subscribe(topic string, h dispatcher.HandlerFunc, opts ...dispatcher.Option) (cancel func())
	Publish(e dispatcher.Event) error
}

// Service classifies scenario and collision events from the bus and republishes the
// result on dispatcher.TopicDetection, synchronously with the triggering event.
type Service struct {
	bus    Bus
	logger *slog.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	cancels []func()
}

// NewService creates a detached service. Call Start to attach it to the bus.
func NewService(bus Bus, rng *rand.Rand, logger *slog.Logger) *Service {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, ^seed))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{bus: bus, rng: rng, logger: logger}
}

// Start subscribes to the scenario and collision topics. Calling Start twice is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancels != nil {
		return
	}
	s.cancels = []func(){
		s.bus.Subscribe(dispatcher.TopicScenarioChanged, s.onScenarioChanged),
		s.bus.Subscribe(dispatcher.TopicCollision, s.onCollision),
	}
	s.logger.Debug("detection service started")
}

// Stop detaches the service from the bus.
func (s *Service) Stop() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (s *Service) onScenarioChanged(e dispatcher.Event) error {
	ev, ok := e.Payload.(core.ScenarioChangeEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Topic)
	}
	return s.emit(core.EventScenarioChanged, ev.Scenario)
}

func (s *Service) onCollision(e dispatcher.Event) error {
	ev, ok := e.Payload.(core.CollisionEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Topic)
	}
	return s.emit(core.EventCollision, ev.Scenario)
}

func (s *Service) emit(kind core.EventKind, id core.ScenarioID) error {
	s.mu.Lock()
	res := Classify(kind, id, s.rng)
	s.mu.Unlock()

	if res.IsAccident {
		s.logger.Info("accident classified",
			"scenario", id,
			"confidence", res.Confidence,
			"impactForce", res.ImpactForce,
		)
	}

	if err := s.bus.Publish(dispatcher.Event{Topic: dispatcher.TopicDetection, Payload: res}); err != nil {
		return fmt.Errorf("publishing %s result: %w", kind, err)
	}
	return nil
}
