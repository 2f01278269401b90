package detection

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/crashsight/crashsight/internal/dispatcher"
	"github.com/crashsight/crashsight/pkg/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(quietLogger())
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(t *testing.T, bus *dispatcher.Dispatcher) *[]core.DetectionResult {
	t.Helper()
	var got []core.DetectionResult
	cancel := bus.Subscribe(dispatcher.TopicDetection, func(e dispatcher.Event) error {
		got = append(got, e.Payload.(core.DetectionResult))
		return nil
	})
	t.Cleanup(cancel)
	return &got
}

func TestService_ClassifiesSynchronously(t *testing.T) {
	bus := newBus(t)
	results := collect(t, bus)

	svc := NewService(bus, rand.New(rand.NewPCG(5, 5)), quietLogger())
	svc.Start()
	defer svc.Stop()

	session := uuid.New()
	require.NoError(t, bus.Publish(dispatcher.Event{
		Topic:   dispatcher.TopicScenarioChanged,
		Payload: core.ScenarioChangeEvent{Scenario: core.ScenarioHeadOn, Name: "Head-on Collision", Session: session},
	}))
	require.Len(t, *results, 1)
	assert.False(t, (*results)[0].IsAccident)

	require.NoError(t, bus.Publish(dispatcher.Event{
		Topic:   dispatcher.TopicCollision,
		Payload: core.CollisionEvent{Scenario: core.ScenarioHeadOn, ImpactForce: 30, Session: session},
	}))
	require.Len(t, *results, 2)

	res := (*results)[1]
	assert.True(t, res.IsAccident)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "Head-on Collision", res.CollisionType)
	assert.GreaterOrEqual(t, res.ImpactForce, 35.0)
	assert.Less(t, res.ImpactForce, 50.0)
}

func TestService_StopDetaches(t *testing.T) {
	bus := newBus(t)
	results := collect(t, bus)

	svc := NewService(bus, nil, quietLogger())
	svc.Start()
	svc.Start()
	svc.Stop()

	require.NoError(t, bus.Publish(dispatcher.Event{
		Topic:   dispatcher.TopicCollision,
		Payload: core.CollisionEvent{Scenario: core.ScenarioRearEnd},
	}))
	assert.Empty(t, *results)
	assert.Equal(t, 0, bus.Subscribers(dispatcher.TopicCollision))
}

func TestService_RejectsForeignPayload(t *testing.T) {
	bus := newBus(t)
	svc := NewService(bus, nil, quietLogger())
	svc.Start()
	defer svc.Stop()

	err := bus.Publish(dispatcher.Event{Topic: dispatcher.TopicCollision, Payload: "nope"})
	assert.Error(t, err)
}
