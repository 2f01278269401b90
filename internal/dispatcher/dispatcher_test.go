package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	t.Cleanup(d.Close)

	return d, logger
}

func TestDispatcher_SyncSubscriber(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Subscribe(TopicCollision, func(e Event) error {
		got = e
		return nil
	})

	err := d.Publish(Event{Topic: TopicCollision, Payload: "crash"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.Payload != "crash" {
		t.Errorf("expected payload 'crash', got %v", got.Payload)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected publish to stamp the event")
	}
}

func TestDispatcher_FanOut(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var calls []string
	d.Subscribe(TopicDetection, func(e Event) error {
		calls = append(calls, "first")
		return nil
	})
	d.Subscribe(TopicDetection, func(e Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(TopicCollision, func(e Event) error {
		calls = append(calls, "other topic")
		return nil
	})

	if err := d.Publish(Event{Topic: TopicDetection}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Join(calls, ",") != "first,second" {
		t.Errorf("expected subscribers in registration order, got %v", calls)
	}
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	if err := d.Publish(Event{Topic: "nobody.listens"}); err != nil {
		t.Errorf("publishing to an empty topic should not fail: %v", err)
	}
}

func TestDispatcher_Cancel(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var calls atomic.Int32
	cancel := d.Subscribe(TopicCollision, func(e Event) error {
		calls.Add(1)
		return nil
	})

	d.Publish(Event{Topic: TopicCollision})
	cancel()
	cancel()
	d.Publish(Event{Topic: TopicCollision})

	if calls.Load() != 1 {
		t.Errorf("expected 1 call before cancel, got %d", calls.Load())
	}
	if d.Subscribers(TopicCollision) != 0 {
		t.Errorf("expected no subscribers after cancel, got %d", d.Subscribers(TopicCollision))
	}
}

func TestDispatcher_HandlerErrorsJoined(t *testing.T) {
	d, _ := newTestDispatcher(t)

	errA := errors.New("a failed")
	d.Subscribe(TopicCollision, func(e Event) error { return errA })
	var secondCalled bool
	d.Subscribe(TopicCollision, func(e Event) error {
		secondCalled = true
		return nil
	})

	err := d.Publish(Event{Topic: TopicCollision})

	if !errors.Is(err, errA) {
		t.Errorf("expected joined error to contain errA, got %v", err)
	}
	if !secondCalled {
		t.Error("a failing subscriber must not stop delivery to the rest")
	}
}

func TestDispatcher_BufferedSubscriber(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Subscribe(TopicDetection, func(e Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		if err := d.Publish(Event{Topic: TopicDetection}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Subscribe(TopicDetection, func(e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(2))

	d.Publish(Event{Topic: TopicDetection}) // being processed
	<-started
	d.Publish(Event{Topic: TopicDetection}) // queued
	d.Publish(Event{Topic: TopicDetection}) // queued

	err := d.Publish(Event{Topic: TopicDetection})

	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Subscribe(TopicDetection, func(e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Publish(Event{Topic: TopicDetection})
	<-started
	// Second event fills the queue
	d.Publish(Event{Topic: TopicDetection})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Publish(Event{Topic: TopicDetection})
		close(done)
	}()

	select {
	case <-done:
		t.Error("publish should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - publish is blocking
	}

	close(block)
	<-done
}

func TestDispatcher_LoggedSubscriber(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Subscribe(TopicScenarioChanged, func(e Event) error {
		return nil
	}, Logged())

	d.Publish(Event{Topic: TopicScenarioChanged, Payload: 42})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedSubscriberError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Subscribe(TopicCollision, func(e Event) error {
		return fmt.Errorf("test error")
	}, Logged())

	d.Publish(Event{Topic: TopicCollision})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if strings.HasPrefix(msg, "ERROR") {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_CloseStopsBufferedWorkers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Subscribe(TopicDetection, func(e Event) error { return nil }, Buffered(4))
	d.Close()

	if d.Subscribers(TopicDetection) != 0 {
		t.Errorf("expected no subscribers after close, got %d", d.Subscribers(TopicDetection))
	}
	// publishing after close is a no-op rather than a send on a closed channel
	if err := d.Publish(Event{Topic: TopicDetection}); err != nil {
		t.Errorf("unexpected error after close: %v", err)
	}
}
