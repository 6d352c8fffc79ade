package main

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/factory"
	"github.com/plaenen/refactory/pkg/factory/handlers"
	"github.com/plaenen/refactory/pkg/factory/report"
	"github.com/plaenen/refactory/pkg/messaging"
	natsbus "github.com/plaenen/refactory/pkg/nats"
	"github.com/plaenen/refactory/pkg/observability"
	"github.com/plaenen/refactory/pkg/runner"
	"github.com/plaenen/refactory/pkg/runtime/embeddednats"
	"github.com/plaenen/refactory/pkg/runtime/eventbus"
	"github.com/plaenen/refactory/pkg/store/sqlite"
	"github.com/plaenen/refactory/pkg/transport/rpc"
)

func serve(ctx context.Context, cfg Config, logger *slog.Logger, tel *observability.Telemetry) error {
	es, err := sqlite.NewEventStore(sqlite.WithDSN(cfg.DB))
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer es.Close()

	var services []runner.Service
	var busOpts []eventsourcing.BusOption

	if cfg.EmbeddedNATS || cfg.NATSURL != "" {
		busConfig := natsbus.DefaultConfig()
		busOptions := []eventbus.Option{
			eventbus.WithLogger(logger),
			eventbus.WithTracer(tel.Tracer()),
		}

		if cfg.EmbeddedNATS {
			var natsOpts []natsbus.EmbeddedOption
			if cfg.NATSStoreDir != "" {
				natsOpts = append(natsOpts, natsbus.WithStoreDir(cfg.NATSStoreDir))
			}
			server := embeddednats.New(
				embeddednats.WithLogger(logger),
				embeddednats.WithTracer(tel.Tracer()),
				embeddednats.WithNATSOptions(natsOpts...),
			)
			services = append(services, server)
			busOptions = append(busOptions, eventbus.WithURLFunc(server.URL))
		} else {
			busConfig.URL = cfg.NATSURL
		}

		busService := eventbus.New(append(busOptions, eventbus.WithConfig(busConfig))...)
		services = append(services, busService, productionLog(busService, logger))
		busOpts = publishOptions(busService, tel)
	}

	h := handlers.New(observability.InstrumentEventStore(es, tel))
	bus := newCommandBus(logger, tel, busOpts...)
	h.Register(bus)

	rpcHandler := rpc.NewHandler(bus, h,
		rpc.WithDefaultFactoryID(cfg.AggregateID),
		rpc.WithHandlerLogger(logger),
		rpc.WithConnectOptions(connect.WithReadMaxBytes(cfg.MaxRequestBytes)),
	)
	services = append(services, rpc.NewHTTPService(cfg.ListenAddr, rpcHandler, logger))

	return runner.New(services, runner.WithLogger(logger)).Run(ctx)
}

// productionLogConsumer is the durable consumer behind productionLog. Events
// published while the server was down are logged once it is back.
const productionLogConsumer = "production-log"

// productionLog subscribes to published factory events and logs a running
// production summary.
func productionLog(bus messaging.DurableSubscriber, logger *slog.Logger) runner.Service {
	var sub messaging.Subscription
	r := report.New()

	return runner.ServiceFunc{
		ServiceName: "production-log",
		StartFunc: func(context.Context) error {
			var err error
			sub, err = bus.SubscribeDurable(
				productionLogConsumer,
				messaging.EventFilter{AggregateTypes: []string{factory.AggregateType}},
				func(event *domain.Event) error {
					if err := r.Apply(event); err != nil {
						return err
					}
					if event.EventType == factory.EventTypeCarProduced {
						s, _ := r.Factory(event.AggregateID)
						logger.Info("car produced", "factory_id", s.FactoryID, "cars_seen", s.CarsProduced)
					}
					return nil
				},
			)
			return err
		},
		StopFunc: func(context.Context) error {
			if sub == nil {
				return nil
			}
			return sub.Unsubscribe()
		},
	}
}
