// Package ui is the interactive terminal shell: key bindings, the stats panel and the
// accident banner drawn over the scene.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/crashsight/crashsight/internal/detection"
	"github.com/crashsight/crashsight/internal/dispatcher"
	"github.com/crashsight/crashsight/internal/scenario"
	"github.com/crashsight/crashsight/pkg/core"

	"github.com/gdamore/tcell/v2"
)

const (
	DefaultAlertDuration = 3 * time.Second

	orbitStep = 0.1 // radians per arrow key press
	alertText = "ACCIDENT DETECTED!"
)

// Scene is the part of scene.Scene the shell drives.
type Scene interface {
	LoadScenario(id string)
	Resize(w, h int)
	Orbit(dYaw, dPitch float64)
	Current() core.ScenarioID
}

// Subscriber is the subset of the dispatcher the shell needs.
type Subscriber interface {
	Subscribe(topic string, h dispatcher.HandlerFunc, opts ...dispatcher.Option) func()
}

type Options struct {
	Scene         Scene
	Bus           Subscriber
	AlertDuration time.Duration
	Logger        *slog.Logger
	Now           func() time.Time // defaults to time.Now
}

// stats mirrors the text fields of the panel.
type stats struct {
	confidence    string
	collisionType string
	impactForce   string
}

func emptyStats() stats {
	return stats{confidence: "0%", collisionType: "None", impactForce: "0 kN"}
}

// Shell maps key presses onto the scene and renders detection results. It implements
// render.Overlay so the scene draws it on every frame.
type Shell struct {
	scene         Scene
	bus           Subscriber
	alertDuration time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu         sync.Mutex
	stats      stats
	alertUntil time.Time
	cancels    []func()
}

func New(opts Options) *Shell {
	s := &Shell{
		scene:         opts.Scene,
		bus:           opts.Bus,
		alertDuration: opts.AlertDuration,
		logger:        opts.Logger,
		now:           opts.Now,
		stats:         emptyStats(),
	}
	if s.alertDuration <= 0 {
		s.alertDuration = DefaultAlertDuration
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "ui")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Attach subscribes the shell to detection results. Calling it twice is a no-op.
func (s *Shell) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancels != nil {
		return
	}
	s.cancels = []func(){
		s.bus.Subscribe(dispatcher.TopicDetection, s.onDetection),
	}
}

// Detach cancels the shell's subscriptions.
func (s *Shell) Detach() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Load resets the stats panel and asks the scene for scenario id.
func (s *Shell) Load(id core.ScenarioID) {
	s.mu.Lock()
	s.stats = emptyStats()
	s.stats.collisionType = scenario.Name(id)
	s.alertUntil = time.Time{}
	s.mu.Unlock()

	s.logger.Info("loading scenario", "scenario", id)
	s.scene.LoadScenario(string(id))
}

// HandleEvent applies one terminal event. It reports whether the shell should quit.
func (s *Shell) HandleEvent(ev tcell.Event) (quit bool) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return s.handleKey(ev)
	case *tcell.EventResize:
		w, h := ev.Size()
		s.scene.Resize(w, h)
	}
	return false
}

func (s *Shell) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyLeft:
		s.scene.Orbit(-orbitStep, 0)
	case tcell.KeyRight:
		s.scene.Orbit(orbitStep, 0)
	case tcell.KeyUp:
		s.scene.Orbit(0, orbitStep)
	case tcell.KeyDown:
		s.scene.Orbit(0, -orbitStep)
	case tcell.KeyRune:
		return s.handleRune(ev.Rune())
	}
	return false
}

func (s *Shell) handleRune(r rune) bool {
	ids := scenario.IDs()
	switch {
	case r == 'q':
		return true
	case r == 'r':
		if id := s.scene.Current(); id != "" {
			s.Load(id)
		}
	case r >= '1' && int(r-'1') < len(ids):
		s.Load(ids[r-'1'])
	}
	return false
}

// Run dispatches events from screen until a quit key, ctx is done, or the screen is
// finalized.
func (s *Shell) Run(ctx context.Context, screen tcell.Screen) error {
	events := make(chan tcell.Event)
	go func() {
		defer close(events)
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if s.HandleEvent(ev) {
				s.logger.Info("quit requested")
				return nil
			}
		}
	}
}

// onDetection runs on the loop goroutine, so it only records the result; the next
// frame draws it.
func (s *Shell) onDetection(e dispatcher.Event) error {
	result, ok := e.Payload.(core.DetectionResult)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Topic)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = formatStats(result)
	if detection.ShouldAlert(result) {
		s.alertUntil = s.now().Add(s.alertDuration)
	}
	return nil
}

func formatStats(r core.DetectionResult) stats {
	st := stats{
		confidence:    fmt.Sprintf("%d%%", int(math.Round(r.Confidence*100))),
		collisionType: r.CollisionType,
		impactForce:   fmt.Sprintf("%.1f kN", r.ImpactForce),
	}
	if st.collisionType == "" {
		st.collisionType = "None"
	}
	return st
}

// Alerting reports whether the accident banner is showing.
func (s *Shell) Alerting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Before(s.alertUntil)
}
