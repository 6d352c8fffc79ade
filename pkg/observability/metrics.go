package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metric instruments for command handling and storage.
type Metrics struct {
	CommandDuration   metric.Float64Histogram
	CommandTotal      metric.Int64Counter
	CommandRejections metric.Int64Counter
	CommandErrors     metric.Int64Counter

	EventsAppended    metric.Int64Counter
	EventsPublished   metric.Int64Counter
	EventStoreLatency metric.Float64Histogram
}

// NewMetrics creates all metric instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.CommandDuration, err = meter.Float64Histogram(
		"factory.command.duration",
		metric.WithDescription("Command execution duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating command.duration: %w", err)
	}

	if m.CommandTotal, err = meter.Int64Counter(
		"factory.command.total",
		metric.WithDescription("Commands handled"),
	); err != nil {
		return nil, fmt.Errorf("creating command.total: %w", err)
	}

	if m.CommandRejections, err = meter.Int64Counter(
		"factory.command.rejections",
		metric.WithDescription("Commands refused by a business rule"),
	); err != nil {
		return nil, fmt.Errorf("creating command.rejections: %w", err)
	}

	if m.CommandErrors, err = meter.Int64Counter(
		"factory.command.errors",
		metric.WithDescription("Commands that failed for reasons other than a business rule"),
	); err != nil {
		return nil, fmt.Errorf("creating command.errors: %w", err)
	}

	if m.EventsAppended, err = meter.Int64Counter(
		"factory.events.appended",
		metric.WithDescription("Events appended to the event store"),
	); err != nil {
		return nil, fmt.Errorf("creating events.appended: %w", err)
	}

	if m.EventsPublished, err = meter.Int64Counter(
		"factory.events.published",
		metric.WithDescription("Events published to the event bus"),
	); err != nil {
		return nil, fmt.Errorf("creating events.published: %w", err)
	}

	if m.EventStoreLatency, err = meter.Float64Histogram(
		"factory.eventstore.latency",
		metric.WithDescription("Event store operation latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating eventstore.latency: %w", err)
	}

	return m, nil
}

// CommandOutcome classifies how a command ended.
type CommandOutcome string

const (
	OutcomeAccepted CommandOutcome = "accepted"
	OutcomeRejected CommandOutcome = "rejected"
	OutcomeFailed   CommandOutcome = "failed"
)

// RecordCommand records one handled command. rejectionCode is only used
// for rejected commands.
func (m *Metrics) RecordCommand(ctx context.Context, commandType string, duration time.Duration, outcome CommandOutcome, rejectionCode string) {
	attrs := metric.WithAttributes(
		AttrCommandType.String(commandType),
		attribute.String("outcome", string(outcome)),
	)
	m.CommandDuration.Record(ctx, duration.Seconds(), attrs)
	m.CommandTotal.Add(ctx, 1, attrs)

	switch outcome {
	case OutcomeRejected:
		m.CommandRejections.Add(ctx, 1, metric.WithAttributes(
			AttrCommandType.String(commandType),
			AttrRejectionCode.String(rejectionCode),
		))
	case OutcomeFailed:
		m.CommandErrors.Add(ctx, 1, metric.WithAttributes(AttrCommandType.String(commandType)))
	}
}

// RecordEventStoreOperation records the latency of a store call and, for
// appends, the number of events written.
func (m *Metrics) RecordEventStoreOperation(ctx context.Context, operation string, duration time.Duration, eventCount int) {
	attrs := metric.WithAttributes(AttrOperation.String(operation))
	m.EventStoreLatency.Record(ctx, duration.Seconds(), attrs)
	if operation == "append" && eventCount > 0 {
		m.EventsAppended.Add(ctx, int64(eventCount), attrs)
	}
}

// RecordPublished records events handed to the event bus.
func (m *Metrics) RecordPublished(ctx context.Context, eventCount int) {
	m.EventsPublished.Add(ctx, int64(eventCount))
}
