// Package eventbus runs the NATS event bus under the runner.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/messaging"
	natsbus "github.com/plaenen/refactory/pkg/nats"
	"github.com/plaenen/refactory/pkg/observability"
	"github.com/plaenen/refactory/pkg/runner"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	_ runner.Service       = (*Service)(nil)
	_ runner.HealthChecker = (*Service)(nil)
	_ messaging.EventBus   = (*Service)(nil)

	_ messaging.DurableSubscriber = (*Service)(nil)
)

// ErrNotConnected is returned while the bus is not connected.
var ErrNotConnected = errors.New("event bus not connected")

// Service connects a natsbus.EventBus on Start and closes it on Stop.
// It forwards the messaging.EventBus methods, so it can be handed to a
// command bus before it is started.
type Service struct {
	config natsbus.Config
	url    func() string
	logger *slog.Logger

	mu  sync.RWMutex
	bus *natsbus.EventBus

	tracer trace.Tracer
}

// Option configures the EventBus service.
type Option func(*Service)

// WithConfig sets the NATS configuration.
func WithConfig(config natsbus.Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithURLFunc resolves the server URL at start time, for servers whose
// address is only known once they run (such as an embedded server
// started earlier by the same runner).
func WithURLFunc(url func() string) Option {
	return func(s *Service) {
		s.url = url
	}
}

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets the OpenTelemetry tracer for the service.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New creates an event bus service.
func New(opts ...Option) *Service {
	s := &Service{
		config: natsbus.DefaultConfig(),
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("eventbus"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Name() string {
	return "eventbus"
}

// Start connects to NATS and ensures the stream exists.
func (s *Service) Start(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "eventbus.Start")
	defer span.End()

	config := s.config
	if s.url != nil {
		config.URL = s.url()
	}
	if config.Logger == nil {
		config.Logger = s.logger
	}

	s.logger.Debug("connecting event bus", "url", config.URL, "stream", config.StreamName)

	bus, err := natsbus.NewEventBus(config)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("nats.url", config.URL),
		attribute.String("stream.name", config.StreamName),
	)
	s.logger.Info("event bus connected", "url", config.URL, "stream", config.StreamName)
	return nil
}

// Stop closes the bus.
func (s *Service) Stop(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "eventbus.Stop")
	defer span.End()

	s.mu.Lock()
	bus := s.bus
	s.bus = nil
	s.mu.Unlock()

	if bus == nil {
		return nil
	}
	err := bus.Close()
	s.logger.Info("event bus closed")
	return err
}

// current returns the connected bus, or nil before Start and after Stop.
func (s *Service) current() *natsbus.EventBus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bus
}

// HealthCheck reports whether the bus is connected.
func (s *Service) HealthCheck(context.Context) error {
	if bus := s.current(); bus == nil || !bus.Connected() {
		return ErrNotConnected
	}
	return nil
}

// Publish implements messaging.EventBus.
func (s *Service) Publish(events []*domain.Event) error {
	bus := s.current()
	if bus == nil {
		return ErrNotConnected
	}
	return bus.Publish(events)
}

// Subscribe implements messaging.EventBus.
func (s *Service) Subscribe(filter messaging.EventFilter, handler messaging.EventHandler) (messaging.Subscription, error) {
	bus := s.current()
	if bus == nil {
		return nil, ErrNotConnected
	}
	return bus.Subscribe(filter, handler)
}

// SubscribeDurable implements messaging.DurableSubscriber.
func (s *Service) SubscribeDurable(name string, filter messaging.EventFilter, handler messaging.EventHandler) (messaging.Subscription, error) {
	bus := s.current()
	if bus == nil {
		return nil, ErrNotConnected
	}
	return bus.SubscribeDurable(name, filter, handler)
}

// Close implements messaging.EventBus. It is the same as Stop.
func (s *Service) Close() error {
	return s.Stop(context.Background())
}
