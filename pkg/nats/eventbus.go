// Package nats publishes factory events on NATS JetStream.
package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/idgen"
	"github.com/plaenen/refactory/pkg/messaging"
)

var (
	_ messaging.EventBus         = (*EventBus)(nil)
	_ messaging.DurableSubscriber = (*EventBus)(nil)
)

// EventBus is a JetStream implementation of messaging.EventBus with
// at-least-once delivery.
type EventBus struct {
	nc         *nats.Conn
	js         nats.JetStreamContext
	streamName string
	logger     *slog.Logger
	mu         sync.RWMutex
	subs       map[string]*nats.Subscription
}

// Config holds configuration for the NATS event bus.
type Config struct {
	// URL is the NATS server URL
	URL string

	// StreamName is the JetStream stream name for events
	StreamName string

	// StreamSubjects are the subjects captured by the stream (default: "events.>")
	StreamSubjects []string

	// MaxAge is how long to retain events in the stream
	MaxAge time.Duration

	// MaxBytes is the maximum bytes the stream can store
	MaxBytes int64

	// Storage selects file or memory storage for the stream
	Storage nats.StorageType

	// Logger receives delivery failures (default: slog.Default())
	Logger *slog.Logger
}

// DefaultConfig returns defaults for a long-running service.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		StreamName:     "FACTORY_EVENTS",
		StreamSubjects: []string{"events.>"},
		MaxAge:         7 * 24 * time.Hour,
		MaxBytes:       1024 * 1024 * 1024,
		Storage:        nats.FileStorage,
	}
}

// TestConfig returns a config suitable for tests against an embedded server.
func TestConfig(serverURL string) Config {
	return Config{
		URL:            serverURL,
		StreamName:     "TEST_EVENTS",
		StreamSubjects: []string{"events.>"},
		MaxAge:         time.Minute,
		MaxBytes:       10 * 1024 * 1024,
		Storage:        nats.MemoryStorage,
	}
}

// NewEventBus connects to NATS and ensures the event stream exists.
func NewEventBus(config Config) (*EventBus, error) {
	nc, err := nats.Connect(config.URL, nats.Name("refactory-eventbus"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bus := &EventBus{
		nc:         nc,
		js:         js,
		streamName: config.StreamName,
		logger:     logger.With("component", "nats-eventbus"),
		subs:       make(map[string]*nats.Subscription),
	}

	if err := bus.ensureStream(config); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	return bus, nil
}

func (b *EventBus) ensureStream(config Config) error {
	streamConfig := &nats.StreamConfig{
		Name:      config.StreamName,
		Subjects:  config.StreamSubjects,
		Retention: nats.InterestPolicy,
		MaxAge:    config.MaxAge,
		MaxBytes:  config.MaxBytes,
		Storage:   config.Storage,
		Replicas:  1,
	}

	stream, err := b.js.StreamInfo(config.StreamName)
	if err != nil {
		if _, err := b.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		return nil
	}

	if stream.Config.MaxAge != config.MaxAge || stream.Config.MaxBytes != config.MaxBytes {
		if _, err := b.js.UpdateStream(streamConfig); err != nil {
			return fmt.Errorf("failed to update stream: %w", err)
		}
	}
	return nil
}

// Subject returns the subject an event is published on.
func Subject(event *domain.Event) string {
	return fmt.Sprintf("events.%s.%s", token(event.AggregateType), token(event.EventType))
}

// token makes a value safe for use as a single subject token.
func token(s string) string {
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}

// Publish publishes events in order. The event ID is the JetStream
// message ID, so republishing an event is deduplicated.
func (b *EventBus) Publish(events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize event %s: %w", event.ID, err)
		}
		if _, err := b.js.Publish(Subject(event), data, nats.MsgId(event.ID)); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}
	}
	return nil
}

// Subscribe delivers new events matching filter through an ephemeral
// consumer. The consumer is removed on Unsubscribe.
func (b *EventBus) Subscribe(filter messaging.EventFilter, handler messaging.EventHandler) (messaging.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.js.Subscribe(
		buildSubject(filter),
		b.deliver(filter, handler),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverNew(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return b.track("ephemeral_"+strings.ToLower(idgen.MustGenerateSortableID()), sub), nil
}

// SubscribeDurable delivers events matching filter through the durable
// consumer name. The consumer outlives Unsubscribe and Close: subscribing
// again under the same name resumes after the last acknowledged event, and
// subscribers sharing a name split the events between them.
func (b *EventBus) SubscribeDurable(name string, filter messaging.EventFilter, handler messaging.EventHandler) (messaging.Subscription, error) {
	durable := token(name)
	if durable == "" {
		return nil, errors.New("durable consumer name is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subject := buildSubject(filter)
	if err := b.ensureConsumer(durable, subject); err != nil {
		return nil, err
	}

	sub, err := b.js.QueueSubscribe(
		subject,
		durable,
		b.deliver(filter, handler),
		nats.Bind(b.streamName, durable),
		nats.ManualAck(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe consumer %s: %w", durable, err)
	}
	return b.track(durable, sub), nil
}

// ensureConsumer creates the durable push consumer unless it exists.
// Consumers created here are not deleted when a subscription ends.
func (b *EventBus) ensureConsumer(durable, subject string) error {
	_, err := b.js.ConsumerInfo(b.streamName, durable)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("failed to look up consumer %s: %w", durable, err)
	}

	_, err = b.js.AddConsumer(b.streamName, &nats.ConsumerConfig{
		Durable:        durable,
		DeliverSubject: fmt.Sprintf("deliver.%s.%s", token(b.streamName), durable),
		DeliverGroup:   durable,
		FilterSubject:  subject,
		AckPolicy:      nats.AckExplicitPolicy,
		DeliverPolicy:  nats.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", durable, err)
	}
	return nil
}

// deliver decodes, filters and acknowledges messages for handler.
func (b *EventBus) deliver(filter messaging.EventFilter, handler messaging.EventHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var event domain.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Error("dropping undecodable message", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}

		if !filter.Matches(&event) {
			_ = msg.Ack()
			return
		}

		if err := handler(&event); err != nil {
			b.logger.Warn("event handler failed, redelivering",
				"event_id", event.ID,
				"event_type", event.EventType,
				"error", err,
			)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}
}

// track registers sub for Close. Callers hold b.mu.
func (b *EventBus) track(key string, sub *nats.Subscription) *subscription {
	b.subs[key] = sub
	return &subscription{bus: b, sub: sub, key: key}
}

// buildSubject narrows the subscription subject where the filter allows.
// Other filters subscribe to everything and are applied per message.
func buildSubject(filter messaging.EventFilter) string {
	switch {
	case len(filter.AggregateTypes) == 1 && len(filter.EventTypes) == 0:
		return fmt.Sprintf("events.%s.>", token(filter.AggregateTypes[0]))
	case len(filter.AggregateTypes) == 1 && len(filter.EventTypes) == 1:
		return fmt.Sprintf("events.%s.%s", token(filter.AggregateTypes[0]), token(filter.EventTypes[0]))
	default:
		return "events.>"
	}
}

// Close unsubscribes everything and closes the connection.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn("failed to unsubscribe", "consumer", name, "error", err)
		}
	}
	b.subs = make(map[string]*nats.Subscription)
	b.nc.Close()
	return nil
}

type subscription struct {
	bus *EventBus
	sub *nats.Subscription
	key string
}

func (s *subscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subs, s.key)
	return s.sub.Unsubscribe()
}

// Connected reports whether the underlying connection is up.
func (b *EventBus) Connected() bool {
	return b.nc.IsConnected()
}
