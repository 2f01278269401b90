package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Topics published by the simulation.
const (
	TopicScenarioChanged = "scenario.changed"
	TopicCollision       = "collision"
	TopicDetection       = "detection.result"
)

// Event is a message published on a topic. Payload carries one of the pkg/core event types.
type Event struct {
	Topic     string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ErrQueueFull is returned by Publish when a non-blocking buffered subscriber drops an event.
var ErrQueueFull = errors.New("queue full")

// Option configures a subscription.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the subscriber async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered subscriber block the publisher when its queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the subscriber.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type subscription struct {
	id      uint64
	topic   string
	handler HandlerFunc

	// buffered subscribers only
	mu       sync.RWMutex
	buffer   chan Event
	blocking bool
	closed   bool
}

// Dispatcher fans published events out to every subscriber of the topic.
// Unbuffered subscribers run synchronously on the publishing goroutine.
type Dispatcher struct {
	logger Logger

	mu     sync.RWMutex
	subs   map[string][]*subscription
	nextID uint64

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	published metric.Int64Counter
	dropped   metric.Int64Counter
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger: logger,
		subs:   make(map[string][]*subscription),
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events waiting in subscriber queues"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for topic, subs := range d.subs {
				var n int
				for _, s := range subs {
					if s.buffer != nil {
						n += len(s.buffer)
					}
				}
				o.ObserveInt64(d.queueSize, int64(n),
					metric.WithAttributes(attribute.String("topic", topic)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.published, err = m.Int64Counter(
		"dispatcher.events.published",
		metric.WithDescription("Total events published"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating published counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full subscriber queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Subscribe registers h for topic. The returned function detaches the subscriber;
// calling it more than once is harmless.
func (d *Dispatcher) Subscribe(topic string, h HandlerFunc, opts ...Option) (cancel func()) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h
	if cfg.logged {
		handler = d.withLogging(topic, handler)
	}

	d.mu.Lock()
	d.nextID++
	sub := &subscription{id: d.nextID, topic: topic, handler: handler}
	if cfg.bufferSize > 0 {
		sub.buffer = make(chan Event, cfg.bufferSize)
		sub.blocking = cfg.blocking
		go d.drain(sub)
	}
	d.subs[topic] = append(d.subs[topic], sub)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.unsubscribe(sub) })
	}
}

// Subscribers returns the number of live subscribers on topic.
func (d *Dispatcher) Subscribers(topic string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[topic])
}

// Publish delivers e to every subscriber of e.Topic. Errors from synchronous handlers and
// dropped deliveries are joined into the returned error.
func (d *Dispatcher) Publish(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.mu.RLock()
	subs := make([]*subscription, len(d.subs[e.Topic]))
	copy(subs, d.subs[e.Topic])
	d.mu.RUnlock()

	topicAttr := metric.WithAttributes(attribute.String("topic", e.Topic))
	d.published.Add(context.Background(), 1, topicAttr)

	var errs []error
	for _, s := range subs {
		if s.buffer == nil {
			if err := s.handler(e); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if !s.enqueue(e) {
			d.dropped.Add(context.Background(), 1, topicAttr)
			errs = append(errs, fmt.Errorf("%w: %s", ErrQueueFull, e.Topic))
		}
	}
	return errors.Join(errs...)
}

// Close detaches every subscriber and stops all buffered workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	all := d.subs
	d.subs = make(map[string][]*subscription)
	d.mu.Unlock()

	for _, subs := range all {
		for _, s := range subs {
			s.close()
		}
	}
}

func (d *Dispatcher) unsubscribe(sub *subscription) {
	d.mu.Lock()
	subs := d.subs[sub.topic]
	for i, s := range subs {
		if s.id == sub.id {
			d.subs[sub.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(d.subs[sub.topic]) == 0 {
		delete(d.subs, sub.topic)
	}
	d.mu.Unlock()

	sub.close()
}

func (d *Dispatcher) drain(s *subscription) {
	for e := range s.buffer {
		if err := s.handler(e); err != nil {
			d.logger.Error("buffered handler failed", "topic", s.topic, "error", err)
		}
	}
}

func (s *subscription) enqueue(e Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	if s.blocking {
		s.buffer <- e
		return true
	}
	select {
	case s.buffer <- e:
		return true
	default:
		return false
	}
}

func (s *subscription) close() {
	if s.buffer == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.buffer)
}

func (d *Dispatcher) withLogging(topic string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "topic", topic, "payload", fmt.Sprintf("%T", e.Payload))

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "topic", topic, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "topic", topic, "duration", time.Since(start))
		}

		return err
	}
}
