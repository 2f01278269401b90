// Package scene owns the drawing surface, the scene graph and the animation loop
// for one interactive session.
package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/crashsight/crashsight/internal/render"
	"github.com/crashsight/crashsight/internal/scenario"
	"github.com/crashsight/crashsight/internal/sim"
	"github.com/crashsight/crashsight/pkg/core"

	"github.com/gdamore/tcell/v2"
)

var (
	// ErrNotInitialized is logged when a scenario is requested before Init succeeds.
	ErrNotInitialized = errors.New("scene not initialized")
	// ErrAlreadyInitialized is returned by a second successful Init.
	ErrAlreadyInitialized = errors.New("scene already initialized")
	// ErrClosed is returned by Init after Close.
	ErrClosed = errors.New("scene closed")

	errNoSurface = errors.New("no drawing surface")
)

// InitError reports that the drawing surface could not be created. The caller may
// offer a retry.
type InitError struct {
	Cause error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing drawing surface: %v", e.Cause)
}

func (e *InitError) Unwrap() error { return e.Cause }

// Options configures a Scene.
type Options struct {
	Sim    sim.Config
	Bus    sim.Publisher
	Rand   *rand.Rand // nil seeds from the clock
	Logger *slog.Logger
}

// Scene renders the current scenario onto a tcell screen. All methods are safe for
// concurrent use.
type Scene struct {
	opts   Options
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	closed      bool
	screen      tcell.Screen
	renderer    *render.Renderer
	graph       *render.Graph
	overlays    []render.Overlay

	// loop is read without mu so that log handlers running inside a tick can
	// query progress.
	loop atomic.Pointer[sim.Loop]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Scene {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scene{opts: opts, logger: logger.With("component", "scene")}
}

// AddOverlay registers o to be drawn on top of every frame.
func (s *Scene) AddOverlay(o render.Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlays = append(s.overlays, o)
}

// Init prepares screen, builds the static scene and starts the animation loop. On
// failure it returns an *InitError and the scene stays uninitialized, so Init may be
// retried with another screen.
func (s *Scene) Init(screen tcell.Screen) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return ErrClosed
	case s.initialized:
		return ErrAlreadyInitialized
	case screen == nil:
		return &InitError{Cause: errNoSurface}
	}

	if err := screen.Init(); err != nil {
		return &InitError{Cause: err}
	}

	loop, err := sim.NewLoop(s.opts.Sim, s.opts.Bus, s.opts.Rand, s.logger)
	if err != nil {
		screen.Fini()
		return &InitError{Cause: err}
	}

	w, h := screen.Size()
	s.screen = screen
	s.renderer = render.New(screen)
	s.graph = newGraph(w, h)
	s.loop.Store(loop)
	s.initialized = true

	s.drawLocked(sim.Session{})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := loop.Run(ctx, s.draw); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("animation loop stopped", "error", err)
		}
	}()

	s.logger.Info("scene initialized", "width", w, "height", h, "fps", s.opts.Sim.FPS)
	return nil
}

// LoadScenario replaces the running scenario with id. Unknown ids and calls before
// Init are logged and ignored.
func (s *Scene) LoadScenario(id string) {
	s.mu.Lock()
	ready := s.initialized && !s.closed
	s.mu.Unlock()
	loop := s.loop.Load()

	if !ready {
		s.logger.Error("cannot load scenario", "scenario", id, "error", ErrNotInitialized)
		return
	}

	sc, err := scenario.Lookup(core.ScenarioID(id))
	if err != nil {
		s.logger.Warn("ignoring scenario request", "error", err)
		return
	}

	loop.Load(sc)
	if snap, ok := loop.Snapshot(); ok {
		s.draw(snap)
	}
}

// Resize adapts the camera to a w×h surface and redraws.
func (s *Scene) Resize(w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || s.closed {
		return
	}
	s.graph.Camera.SetViewport(w, h)
	s.redrawLocked()
}

// Orbit rotates the camera about the scene origin and redraws.
func (s *Scene) Orbit(dYaw, dPitch float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || s.closed {
		return
	}
	s.graph.Camera.Orbit(dYaw, dPitch)
	s.redrawLocked()
}

// Redraw draws the current state immediately.
func (s *Scene) Redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized || s.closed {
		return
	}
	s.redrawLocked()
}

// Snapshot returns the running session. ok is false before Init or the first load.
func (s *Scene) Snapshot() (sim.Session, bool) {
	loop := s.loop.Load()
	if loop == nil {
		return sim.Session{}, false
	}
	return loop.Snapshot()
}

// Progress is the lock-free summary of the running session.
func (s *Scene) Progress() (sim.Progress, bool) {
	loop := s.loop.Load()
	if loop == nil {
		return sim.Progress{}, false
	}
	return loop.Progress()
}

// Current returns the loaded scenario id, or "" if none.
func (s *Scene) Current() core.ScenarioID {
	p, _ := s.Progress()
	return p.Scenario
}

// Close stops the animation loop, waits for it, and finalizes the screen. It is safe
// to call more than once.
func (s *Scene) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, screen := s.cancel, s.screen
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	if screen != nil {
		screen.Fini()
	}
	s.logger.Info("scene closed")
}

// draw is the per-frame callback from the animation loop.
func (s *Scene) draw(session sim.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.drawLocked(session)
}

func (s *Scene) redrawLocked() {
	session, _ := s.loop.Load().Snapshot()
	s.drawLocked(session)
}

func (s *Scene) drawLocked(session sim.Session) {
	s.graph.Meshes = s.graph.Meshes[:0]
	for _, v := range session.Vehicles {
		s.graph.Meshes = append(s.graph.Meshes, vehicleMesh(v))
	}
	s.renderer.Draw(s.graph, s.overlays...)
}
