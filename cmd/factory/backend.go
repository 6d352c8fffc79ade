package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/factory"
	"github.com/plaenen/refactory/pkg/factory/handlers"
	"github.com/plaenen/refactory/pkg/factory/report"
	"github.com/plaenen/refactory/pkg/messaging"
	"github.com/plaenen/refactory/pkg/middleware"
	natsbus "github.com/plaenen/refactory/pkg/nats"
	"github.com/plaenen/refactory/pkg/observability"
	"github.com/plaenen/refactory/pkg/store"
	"github.com/plaenen/refactory/pkg/store/sqlite"
	"github.com/plaenen/refactory/pkg/transport/rpc"
)

// backend runs commands either in-process or against a server.
type backend interface {
	Send(ctx context.Context, cmd eventsourcing.Command) (rpc.CommandResult, error)
	History(ctx context.Context) ([]rpc.EventView, error)
	State(ctx context.Context) (rpc.StateView, error)
	Close() error
}

// localBackend replays the factory from the sqlite database for every command.
type localBackend struct {
	cfg     Config
	store   store.EventStore
	handler *handlers.Handler
	bus     *eventsourcing.CommandBus
	closers []func() error
}

func newLocalBackend(cfg Config, logger *slog.Logger, tel *observability.Telemetry) (*localBackend, error) {
	es, err := sqlite.NewEventStore(sqlite.WithDSN(cfg.DB))
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	b := &localBackend{cfg: cfg, closers: []func() error{es.Close}}
	b.store = observability.InstrumentEventStore(es, tel)

	b.handler = handlers.New(b.store, factory.WithWorkObserver(func(kind factory.WorkKind, description string) {
		logger.Debug("factory work", "kind", string(kind), "description", description)
	}))

	var busOpts []eventsourcing.BusOption
	if cfg.NATSURL != "" {
		config := natsbus.DefaultConfig()
		config.URL = cfg.NATSURL
		config.Logger = logger
		eb, err := natsbus.NewEventBus(config)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, eb.Close)
		busOpts = append(busOpts, publishOptions(eb, tel)...)
	}

	b.bus = newCommandBus(logger, tel, busOpts...)
	b.handler.Register(b.bus)
	return b, nil
}

// newCommandBus assembles the command pipeline shared by local runs and serve.
func newCommandBus(logger *slog.Logger, tel *observability.Telemetry, opts ...eventsourcing.BusOption) *eventsourcing.CommandBus {
	bus := eventsourcing.NewCommandBus(opts...)
	bus.Use(middleware.RecoveryMiddleware(logger))
	bus.Use(middleware.TracingMiddleware(tel.Tracer()))
	bus.Use(middleware.MetricsMiddleware(tel.Metrics))
	bus.Use(middleware.LoggingMiddleware(logger))
	bus.Use(middleware.ValidationMiddleware(middleware.SelfValidator))
	return bus
}

func publishOptions(eb messaging.EventBus, tel *observability.Telemetry) []eventsourcing.BusOption {
	return []eventsourcing.BusOption{
		eventsourcing.WithEventBus(eb),
		eventsourcing.WithPublishHook(func(ctx context.Context, events []*domain.Event) {
			tel.Metrics.RecordPublished(ctx, len(events))
		}),
	}
}

func (b *localBackend) Send(ctx context.Context, cmd eventsourcing.Command) (rpc.CommandResult, error) {
	env := eventsourcing.NewCommandEnvelope(b.cfg.AggregateID, cmd).WithPrincipal(b.cfg.Principal)
	events, err := b.bus.Send(ctx, env)
	published := true
	if errors.Is(err, eventsourcing.ErrPublishFailed) {
		published, err = false, nil
	}
	if err != nil {
		return rpc.CommandResult{}, err
	}
	views, err := rpc.EventViews(events)
	if err != nil {
		return rpc.CommandResult{}, err
	}
	return rpc.CommandResult{Events: views, Published: published}, nil
}

func (b *localBackend) History(ctx context.Context) ([]rpc.EventView, error) {
	f, err := b.handler.Load(ctx, b.cfg.AggregateID)
	if err != nil {
		return nil, err
	}
	return rpc.JournalViews(f.Journal().Events()), nil
}

func (b *localBackend) State(ctx context.Context) (rpc.StateView, error) {
	f, err := b.handler.Load(ctx, b.cfg.AggregateID)
	if err != nil {
		return rpc.StateView{}, err
	}
	return rpc.StateOf(f), nil
}

// Report builds the production report from the whole log.
func (b *localBackend) Report(ctx context.Context) ([]report.Summary, error) {
	r := report.New()
	projector := store.NewProjector(b.store, store.NewMemoryCheckpointStore(), 500)
	if _, err := projector.CatchUp(ctx, r.Projection()); err != nil {
		return nil, err
	}
	return r.Factories(), nil
}

func (b *localBackend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// remoteBackend talks to a running serve instance.
type remoteBackend struct {
	cfg    Config
	client *rpc.Client
}

func newRemoteBackend(cfg Config) *remoteBackend {
	return &remoteBackend{
		cfg:    cfg,
		client: rpc.NewClient(http.DefaultClient, cfg.RemoteURL, rpc.WithPrincipal(cfg.Principal)),
	}
}

func (b *remoteBackend) Send(ctx context.Context, cmd eventsourcing.Command) (rpc.CommandResult, error) {
	id := b.cfg.AggregateID
	switch c := cmd.(type) {
	case factory.AssignEmployee:
		return b.client.AssignEmployee(ctx, id, c.EmployeeName)
	case factory.TransferShipmentToCargoBay:
		return b.client.TransferShipmentToCargoBay(ctx, id, c.ShipmentName, c.Parts...)
	case factory.UnloadShipmentFromCargoBay:
		return b.client.UnloadShipmentFromCargoBay(ctx, id, c.EmployeeName)
	case factory.ProduceCar:
		return b.client.ProduceCar(ctx, id, c.EmployeeName, c.CarModel)
	}
	return rpc.CommandResult{}, fmt.Errorf("%w: %s", eventsourcing.ErrCommandNotFound, cmd.CommandType())
}

func (b *remoteBackend) History(ctx context.Context) ([]rpc.EventView, error) {
	return b.client.History(ctx, b.cfg.AggregateID)
}

func (b *remoteBackend) State(ctx context.Context) (rpc.StateView, error) {
	return b.client.State(ctx, b.cfg.AggregateID)
}

func (b *remoteBackend) Close() error { return nil }
