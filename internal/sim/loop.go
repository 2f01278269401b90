// Package sim runs the per-frame animation and collision loop for a loaded scenario.
//
// A Loop owns exactly one Session at a time. Every mutation of the session happens
// under the loop's mutex, either during a tick or during the atomic swap in Load.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crashsight/crashsight/internal/dispatcher"
	"github.com/crashsight/crashsight/internal/scenario"
	"github.com/crashsight/crashsight/pkg/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/crashsight/crashsight/internal/sim"

// Config holds the loop tunables.
type Config struct {
	FPS                int     // ticks per second when driven by Run
	CollisionThreshold float64 // world units
	Gravity            float64 // vertical velocity lost per tick while airborne
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		FPS:                60,
		CollisionThreshold: 3,
		Gravity:            0.01,
	}
}

// Interval is the wall-clock period between ticks.
func (c Config) Interval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FPS)
}

// Publisher is the subset of the dispatcher the loop needs.
type Publisher interface {
	Publish(e dispatcher.Event) error
}

// Progress is a summary of the current session that can be read without the loop's
// lock, for example from a log handler invoked while a tick is in progress.
type Progress struct {
	Scenario core.ScenarioID
	Session  core.SessionID
	Frame    uint64
}

// Loop integrates vehicle motion and fires the collision edge.
type Loop struct {
	cfg    Config
	pub    Publisher
	rng    *rand.Rand
	logger *slog.Logger

	mu       sync.Mutex
	session  *Session
	progress atomic.Pointer[Progress]

	ticks      metric.Int64Counter
	collisions metric.Int64Counter
	loads      metric.Int64Counter
}

// NewLoop creates a loop with no scenario loaded. A nil rng seeds one from the clock.
func NewLoop(cfg Config, pub Publisher, rng *rand.Rand, logger *slog.Logger) (*Loop, error) {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Loop{
		cfg:    cfg,
		pub:    pub,
		rng:    rng,
		logger: logger,
	}

	m := otel.Meter(instrumentationName)

	var err error
	l.ticks, err = m.Int64Counter("sim.ticks", metric.WithDescription("Frames advanced"))
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}
	l.collisions, err = m.Int64Counter("sim.collisions", metric.WithDescription("Collision edges fired"))
	if err != nil {
		return nil, fmt.Errorf("creating collision counter: %w", err)
	}
	l.loads, err = m.Int64Counter("sim.scenario.loads", metric.WithDescription("Scenarios loaded"))
	if err != nil {
		return nil, fmt.Errorf("creating load counter: %w", err)
	}

	return l, nil
}

// Load discards the current session and starts s from its initial specs. The
// ScenarioChangeEvent is published before Load returns and before any tick can move
// the new vehicles. Subscribers must not call Load synchronously.
func (l *Loop) Load(s core.Scenario) core.ScenarioChangeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.session = newSession(s)
	l.markProgress()
	ev := core.ScenarioChangeEvent{
		Scenario: s.ID,
		Name:     s.Name,
		Session:  l.session.ID,
	}

	l.loads.Add(context.Background(), 1, metric.WithAttributes(attribute.String("scenario", string(s.ID))))
	l.logger.Info("scenario loaded", "scenario", s.ID, "session", ev.Session, "vehicles", len(l.session.Vehicles))

	l.publish(dispatcher.TopicScenarioChanged, ev)
	return ev
}

// Step advances the current session by one tick. It is a no-op before the first Load.
func (l *Loop) Step() {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.session
	if s == nil {
		return
	}

	for i := range s.Vehicles {
		integrate(&s.Vehicles[i], l.cfg.Gravity)
	}
	s.Frame++
	l.markProgress()
	l.ticks.Add(context.Background(), 1)

	if len(s.Vehicles) != 2 {
		return
	}
	a, b := &s.Vehicles[0], &s.Vehicles[1]
	if !colliding(*a, *b, l.cfg.CollisionThreshold) {
		return
	}

	dist := separation(*a, *b)
	scatter(a, l.rng)
	scatter(b, l.rng)

	ev := core.CollisionEvent{
		Scenario:      s.Scenario.ID,
		CollisionType: scenario.Name(s.Scenario.ID),
		ImpactForce:   sampleImpactForce(l.rng),
		Frame:         s.Frame,
		Session:       s.ID,
	}

	l.collisions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("scenario", string(s.Scenario.ID))))
	l.logger.Info("collision detected",
		"scenario", ev.Scenario,
		"session", ev.Session,
		"frame", ev.Frame,
		"distance", dist,
	)

	l.publish(dispatcher.TopicCollision, ev)
}

// Run ticks at the configured frame rate until ctx is cancelled. onFrame, when set,
// receives a snapshot after every tick on the loop goroutine.
func (l *Loop) Run(ctx context.Context, onFrame func(Session)) error {
	ticker := time.NewTicker(l.cfg.Interval())
	defer ticker.Stop()

	l.logger.Debug("animation loop started", "interval", l.cfg.Interval())
	defer l.logger.Debug("animation loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Step()
			if onFrame == nil {
				continue
			}
			if snap, ok := l.Snapshot(); ok {
				onFrame(snap)
			}
		}
	}
}

// Snapshot returns a copy of the current session. ok is false before the first Load.
func (l *Loop) Snapshot() (Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return Session{}, false
	}
	return l.session.clone(), true
}

// Current returns the identifier of the loaded scenario, or "" before the first Load.
func (l *Loop) Current() core.ScenarioID {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return ""
	}
	return l.session.Scenario.ID
}

// Progress returns the latest session summary without taking the loop's lock.
func (l *Loop) Progress() (Progress, bool) {
	p := l.progress.Load()
	if p == nil {
		return Progress{}, false
	}
	return *p, true
}

func (l *Loop) markProgress() {
	l.progress.Store(&Progress{
		Scenario: l.session.Scenario.ID,
		Session:  l.session.ID,
		Frame:    l.session.Frame,
	})
}

func (l *Loop) publish(topic string, payload any) {
	if l.pub == nil {
		return
	}
	if err := l.pub.Publish(dispatcher.Event{Topic: topic, Payload: payload}); err != nil {
		l.logger.Warn("event delivery failed", "topic", topic, "error", err)
	}
}
