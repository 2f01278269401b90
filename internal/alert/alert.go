// Package alert plays an audible tone when an accident is detected.
package alert

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crashsight/crashsight/internal/detection"
	"github.com/crashsight/crashsight/internal/dispatcher"
	"github.com/crashsight/crashsight/pkg/core"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const (
	sampleRate   = beep.SampleRate(44100)
	toneDuration = 250 * time.Millisecond
)

// Subscriber is the part of the event bus the alerter listens on.
type Subscriber interface {
	Subscribe(topic string, h dispatcher.HandlerFunc, opts ...dispatcher.Option) (cancel func())
}

// PlayFunc hands a streamer to the audio device.
type PlayFunc func(s ...beep.Streamer)

// Alerter sounds a sine tone for every detection result that warrants an alert.
type Alerter struct {
	frequency float64
	play      PlayFunc
	logger    *slog.Logger

	mu     sync.Mutex
	cancel func()
}

// New opens the speaker and returns an alerter playing frequency Hz tones.
func New(frequency float64, logger *slog.Logger) (*Alerter, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("initialising speaker: %w", err)
	}
	return NewWithPlayer(frequency, speaker.Play, logger), nil
}

// NewWithPlayer returns an alerter that hands tones to play instead of the speaker.
func NewWithPlayer(frequency float64, play PlayFunc, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{frequency: frequency, play: play, logger: logger}
}

// Attach subscribes the alerter to detection results. Buffered delivery keeps tone
// generation off the animation loop.
func (a *Alerter) Attach(bus Subscriber) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}
	a.cancel = bus.Subscribe(dispatcher.TopicDetection, a.onDetection, dispatcher.Buffered(4))
}

// Detach stops listening for detection results.
func (a *Alerter) Detach() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *Alerter) onDetection(e dispatcher.Event) error {
	res, ok := e.Payload.(core.DetectionResult)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", e.Payload, e.Topic)
	}
	if !detection.ShouldAlert(res) {
		return nil
	}
	return a.Sound()
}

// Sound plays one tone.
func (a *Alerter) Sound() error {
	tone, err := Tone(a.frequency)
	if err != nil {
		return err
	}
	a.logger.Debug("playing alert tone", "frequency", a.frequency)
	a.play(tone)
	return nil
}

// Tone builds a finite sine tone at frequency Hz.
func Tone(frequency float64) (beep.Streamer, error) {
	sine, err := generators.SineTone(sampleRate, frequency)
	if err != nil {
		return nil, fmt.Errorf("generating %.0f Hz tone: %w", frequency, err)
	}
	return beep.Take(sampleRate.N(toneDuration), sine), nil
}
