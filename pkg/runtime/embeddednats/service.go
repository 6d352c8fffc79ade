// Package embeddednats runs an in-process NATS server under the runner.
package embeddednats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/plaenen/refactory/pkg/observability"
	natsbus "github.com/plaenen/refactory/pkg/nats"
	"github.com/plaenen/refactory/pkg/runner"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	_ runner.Service       = (*Service)(nil)
	_ runner.HealthChecker = (*Service)(nil)
)

// ErrNotStarted is returned by HealthCheck before Start.
var ErrNotStarted = errors.New("nats server not started")

// Service wraps an embedded NATS server as a runner.Service.
type Service struct {
	server      *natsbus.EmbeddedServer
	logger      runner.Logger
	tracer      trace.Tracer
	natsOptions []natsbus.EmbeddedOption
}

// Option configures the NATS service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger runner.Logger) Option {
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

// WithNATSOptions sets the options passed to natsbus.StartEmbeddedServer.
//
//	service := embeddednats.New(
//	    embeddednats.WithNATSOptions(
//	        natsbus.WithPort(4222),
//	        natsbus.WithStoreDir("/var/lib/factory/nats"),
//	    ),
//	)
func WithNATSOptions(opts ...natsbus.EmbeddedOption) Option {
	return func(s *Service) {
		s.natsOptions = opts
	}
}

// New creates an embedded NATS service.
func New(opts ...Option) *Service {
	s := &Service{
		logger: runner.NewNoopLogger(),
		tracer: noop.NewTracerProvider().Tracer("embeddednats"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Name() string {
	return "embedded-nats"
}

// Start starts the server and waits until it accepts connections.
func (s *Service) Start(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "embeddednats.Start")
	defer span.End()

	s.logger.Info("starting embedded NATS server")

	srv, err := natsbus.StartEmbeddedServer(s.natsOptions...)
	if err != nil {
		observability.SetSpanError(ctx, err)
		s.logger.Error("failed to start embedded NATS", "error", err)
		return fmt.Errorf("failed to start embedded NATS: %w", err)
	}
	s.server = srv

	span.SetAttributes(attribute.String("nats.url", srv.URL()))
	s.logger.Info("embedded NATS server started", "url", srv.URL())
	return nil
}

// Stop shuts the server down. It is safe to call before Start.
func (s *Service) Stop(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "embeddednats.Stop")
	defer span.End()

	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
		s.logger.Info("embedded NATS server stopped")
	}
	return nil
}

// HealthCheck connects to the server once.
func (s *Service) HealthCheck(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "embeddednats.HealthCheck")
	defer span.End()

	if s.server == nil {
		observability.SetSpanError(ctx, ErrNotStarted)
		return ErrNotStarted
	}

	nc, err := nats.Connect(s.server.URL(), nats.Name("refactory-healthcheck"))
	if err != nil {
		observability.SetSpanError(ctx, err)
		return fmt.Errorf("nats server not responsive: %w", err)
	}
	nc.Close()

	span.SetAttributes(attribute.Bool("healthy", true))
	return nil
}

// URL returns the client URL, or "" before Start.
func (s *Service) URL() string {
	if s.server == nil {
		return ""
	}
	return s.server.URL()
}
