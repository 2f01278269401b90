// Package monitor periodically writes a JSON snapshot of the running session to a
// status file.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/crashsight/crashsight/internal/dispatcher"
	"github.com/crashsight/crashsight/internal/queue"
	"github.com/crashsight/crashsight/internal/sim"
	"github.com/crashsight/crashsight/pkg/core"
)

const defaultHistory = 16

// SessionSource supplies the session to report on.
type SessionSource interface {
	Snapshot() (sim.Session, bool)
}

// Subscriber is the part of the event bus the monitor listens on.
type Subscriber interface {
	Subscribe(topic string, h dispatcher.HandlerFunc, opts ...dispatcher.Option) (cancel func())
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger     *slog.Logger
	Sessions   SessionSource
	Bus        Subscriber
	StatusFile string
	Interval   time.Duration
	History    int // detections kept in the snapshot
}

// Service manages status monitoring
type Service struct {
	deps       Dependencies
	detections *queue.Queue[DetectionRecord]

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
	cancel    func()
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.History <= 0 {
		deps.History = defaultHistory
	}
	return &Service{
		deps:       deps,
		detections: queue.New[DetectionRecord](deps.History),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status builds the current snapshot. ok is false before the first scenario load.
func (s *Service) Status() (status Status, ok bool) {
	session, ok := s.deps.Sessions.Snapshot()
	if !ok {
		return Status{}, false
	}

	status = Status{
		Time:              time.Now().UTC(),
		Scenario:          session.Scenario.ID,
		ScenarioName:      session.Scenario.Name,
		Session:           session.ID.String(),
		Frame:             session.Frame,
		Vehicles:          make([]VehicleStatus, 0, len(session.Vehicles)),
		RecentDetections:  s.detections.Snapshot(),
		EvictedDetections: s.detections.Evicted(),
	}
	for _, v := range session.Vehicles {
		status.Vehicles = append(status.Vehicles, VehicleStatus{
			Position: [3]float64{v.Position.X, v.Position.Y, v.Position.Z},
			Rotation: [3]float64{v.Rotation.X, v.Rotation.Y, v.Rotation.Z},
			Collided: v.Collided,
		})
	}
	return status, true
}

// Start subscribes to detection results and starts the status writer goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	statusFile, err := os.Create(s.deps.StatusFile)
	if err != nil {
		return fmt.Errorf("creating status file: %w", err)
	}

	if s.deps.Bus != nil {
		s.cancel = s.deps.Bus.Subscribe(dispatcher.TopicDetection, s.onDetection)
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(statusFile, s.stopChan, s.done)
	return nil
}

// Stop stops the status monitor and waits for the writer goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done, cancel := s.done, s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

func (s *Service) onDetection(e dispatcher.Event) error {
	res, ok := e.Payload.(core.DetectionResult)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Topic)
	}
	s.detections.Push(DetectionRecord{Time: e.Timestamp.UTC(), DetectionResult: res})
	return nil
}

func (s *Service) run(statusFile *os.File, stop <-chan struct{}, done chan<- struct{}) {
	logger := s.deps.Logger
	ticker := time.NewTicker(s.deps.Interval)

	defer func() {
		ticker.Stop()
		statusFile.Close()
		close(done)
	}()

	logger.Debug("Starting status monitor", "file", s.deps.StatusFile, "interval", s.deps.Interval)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			status, ok := s.Status()
			if !ok {
				continue
			}
			if err := writeStatus(statusFile, status); err != nil {
				logger.Error("Error writing status file", "error", err)
			}
		}
	}
}

func writeStatus(f *os.File, status Status) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}
