package alert

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/crashsight/crashsight/internal/dispatcher"
	"github.com/crashsight/crashsight/pkg/core"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPlayer struct {
	mu    sync.Mutex
	tones []beep.Streamer
}

func (p *recordingPlayer) play(s ...beep.Streamer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tones = append(p.tones, s...)
}

func (p *recordingPlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tones)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTone_IsFinite(t *testing.T) {
	tone, err := Tone(880)
	require.NoError(t, err)

	buf := make([][2]float64, 1024)
	total := 0
	for {
		n, ok := tone.Stream(buf)
		total += n
		if !ok {
			break
		}
	}
	assert.Equal(t, sampleRate.N(toneDuration), total)
}

func TestTone_RejectsBadFrequency(t *testing.T) {
	_, err := Tone(float64(sampleRate))
	assert.Error(t, err)
}

func TestAlerter_PlaysOnlyForAlerts(t *testing.T) {
	bus, err := dispatcher.New(quiet())
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	p := &recordingPlayer{}
	a := NewWithPlayer(880, p.play, quiet())
	a.Attach(bus)
	a.Attach(bus)
	defer a.Detach()

	assert.Equal(t, 1, bus.Subscribers(dispatcher.TopicDetection))

	publish := func(res core.DetectionResult) {
		require.NoError(t, bus.Publish(dispatcher.Event{Topic: dispatcher.TopicDetection, Payload: res}))
	}
	publish(core.DetectionResult{IsAccident: false, CollisionType: "Head-on Collision"})
	publish(core.DetectionResult{IsAccident: true, Confidence: 0.75, CollisionType: "Unknown Collision"})
	publish(core.DetectionResult{IsAccident: true, Confidence: 1.0, ImpactForce: 40, CollisionType: "Head-on Collision"})

	require.Eventually(t, func() bool { return p.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, p.count())
}

func TestAlerter_Detach(t *testing.T) {
	bus, err := dispatcher.New(quiet())
	require.NoError(t, err)
	t.Cleanup(bus.Close)

	a := NewWithPlayer(880, (&recordingPlayer{}).play, quiet())
	a.Attach(bus)
	a.Detach()
	a.Detach()

	assert.Equal(t, 0, bus.Subscribers(dispatcher.TopicDetection))
}
