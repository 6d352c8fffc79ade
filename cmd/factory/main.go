// Command factory runs the car factory: one-off commands against a local
// database or a remote server, and a serve mode exposing the factory over
// HTTP.
//
// Usage:
//
//	factory assign -name yoda
//	factory transfer -shipment chassis -part wheels=6 -part engine=1 -part "bits and pieces=2"
//	factory unload -name yoda
//	factory produce -name yoda -model "Model T"
//	factory history | inventory | report | traces
//	factory serve
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/factory"
	"github.com/plaenen/refactory/pkg/observability"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	_ "modernc.org/sqlite"
)

const usage = `usage: factory <command> [flags]

commands:
  assign     -name NAME                      assign an employee
  transfer   -shipment NAME -part NAME=QTY   transfer a shipment to the cargo bay
  unload     -name NAME                      unload the cargo bay
  produce    -name NAME [-model MODEL]       produce a car
  history                                    print the factory journal
  inventory                                  print employees and parts on hand
  report                                     print production per factory
  traces     [-limit N]                      print recorded spans (sqlite exporter)
  serve                                      serve the factory over HTTP
`

// exitRejected is the exit status for a command refused by a business rule.
const exitRejected = 2

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdout)
	if err == nil {
		return
	}
	if r, ok := factory.IsRejection(err); ok {
		fmt.Fprintf(os.Stderr, "rejected (%s): %s\n", r.Code, r.Message)
		os.Exit(exitRejected)
	}
	fmt.Fprintln(os.Stderr, "factory:", err)
	os.Exit(1)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("missing command")
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	p := message.NewPrinter(language.English)

	tel, traceDB, err := initTelemetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
		if traceDB != nil {
			traceDB.Close()
		}
	}()

	name, args := args[0], args[1:]
	switch name {
	case "serve":
		return serve(ctx, cfg, logger, tel)
	case "traces":
		return printTraces(ctx, cfg, args, p, out)
	}

	cmd, err := parseCommand(name, args)
	if err != nil {
		return err
	}

	var b backend
	if cfg.RemoteURL != "" {
		b = newRemoteBackend(cfg)
	} else {
		local, err := newLocalBackend(cfg, logger, tel)
		if err != nil {
			return err
		}
		b = local
	}
	defer b.Close()

	switch name {
	case "history":
		history, err := b.History(ctx)
		if err != nil {
			return err
		}
		renderHistory(p, out, history)
		return nil
	case "inventory":
		state, err := b.State(ctx)
		if err != nil {
			return err
		}
		renderState(p, out, state)
		return nil
	case "report":
		local, ok := b.(*localBackend)
		if !ok {
			return errors.New("report reads the local database; unset FACTORY_REMOTE_URL")
		}
		summaries, err := local.Report(ctx)
		if err != nil {
			return err
		}
		renderReport(p, out, summaries)
		return nil
	}

	result, err := b.Send(ctx, cmd)
	if err != nil {
		return err
	}
	renderResult(p, out, result)
	return nil
}

// parseCommand parses the flags of a command subcommand. Read-only
// subcommands return a nil command.
func parseCommand(name string, args []string) (eventsourcing.Command, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var (
		employee = fs.String("name", "", "employee name")
		shipment = fs.String("shipment", "", "shipment name")
		model    = fs.String("model", "Model T", "car model")
		parts    partsFlag
	)
	fs.Var(&parts, "part", "part as NAME=QTY (repeatable)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch name {
	case "assign":
		return factory.AssignEmployee{EmployeeName: *employee}, nil
	case "transfer":
		return factory.TransferShipmentToCargoBay{ShipmentName: *shipment, Parts: parts}, nil
	case "unload":
		return factory.UnloadShipmentFromCargoBay{EmployeeName: *employee}, nil
	case "produce":
		return factory.ProduceCar{EmployeeName: *employee, CarModel: *model}, nil
	case "history", "inventory", "report":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown command %q\n\n%s", name, usage)
}

// partsFlag collects repeated -part NAME=QTY flags.
type partsFlag []factory.CarPart

func (f *partsFlag) String() string {
	if f == nil {
		return ""
	}
	items := make([]string, len(*f))
	for i, p := range *f {
		items[i] = fmt.Sprintf("%s=%d", p.Name, p.Quantity)
	}
	return strings.Join(items, ",")
}

func (f *partsFlag) Set(value string) error {
	name, qty, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("part %q is not NAME=QTY", value)
	}
	n, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return fmt.Errorf("part %q: %w", value, err)
	}
	*f = append(*f, factory.CarPart{Name: strings.TrimSpace(name), Quantity: n})
	return nil
}

func newLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// initTelemetry builds the configured trace exporter. The sqlite exporter
// gets its own database so spans never contend with event appends.
func initTelemetry(ctx context.Context, cfg Config, logger *slog.Logger) (*observability.Telemetry, *sql.DB, error) {
	exporterConfig := observability.ExporterConfig{
		Kind:         cfg.TraceExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Writer:       os.Stderr,
	}

	var traceDB *sql.DB
	if cfg.TraceExporter == observability.ExporterSQLite {
		db, err := sql.Open("sqlite", cfg.TraceDB)
		if err != nil {
			return nil, nil, fmt.Errorf("open trace database: %w", err)
		}
		db.SetMaxOpenConns(1)
		traceDB = db
		exporterConfig.DB = db
	}

	exporter, err := observability.NewTraceExporter(ctx, exporterConfig)
	if err != nil {
		if traceDB != nil {
			traceDB.Close()
		}
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tel, err := observability.Init(ctx, observability.Config{
		ServiceName:     "factory",
		TraceExporter:   exporter,
		TraceSampleRate: cfg.TraceSampleRate,
		Logger:          logger,
	})
	if err != nil {
		if traceDB != nil {
			traceDB.Close()
		}
		return nil, nil, err
	}
	return tel, traceDB, nil
}

func printTraces(ctx context.Context, cfg Config, args []string, p *message.Printer, out io.Writer) error {
	fs := flag.NewFlagSet("traces", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of spans to print")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", cfg.TraceDB)
	if err != nil {
		return fmt.Errorf("open trace database: %w", err)
	}
	defer db.Close()

	exporter, err := observability.NewSQLiteSpanExporter(ctx, db)
	if err != nil {
		return err
	}
	spans, err := exporter.RecentSpans(ctx, *limit)
	if err != nil {
		return err
	}
	renderSpans(p, out, spans)
	return nil
}
