package eventsourcing_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/factory"
	"github.com/plaenen/refactory/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCommand struct{ name string }

func (c testCommand) CommandType() string { return c.name }

type recordingBus struct {
	mu        sync.Mutex
	published []*domain.Event
	err       error
}

func (b *recordingBus) Publish(events []*domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, events...)
	return nil
}

func (b *recordingBus) Subscribe(messaging.EventFilter, messaging.EventHandler) (messaging.Subscription, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBus) Close() error { return nil }

func emitOne(_ context.Context, cmd *eventsourcing.CommandEnvelope) ([]*domain.Event, error) {
	return []*domain.Event{{
		ID:          "event-1",
		AggregateID: cmd.AggregateID,
		EventType:   "test.Happened",
		Version:     1,
		Metadata:    cmd.Metadata.EventMetadata(),
	}}, nil
}

func TestCommandBus(t *testing.T) {
	t.Run("routes by command type and fills metadata", func(t *testing.T) {
		bus := eventsourcing.NewCommandBus()
		bus.Register("test.Command", eventsourcing.CommandHandlerFunc(emitOne))

		env := eventsourcing.NewCommandEnvelope("agg-1", testCommand{"test.Command"}).WithPrincipal("user-1")
		events, err := bus.Send(context.Background(), env)
		require.NoError(t, err)
		require.Len(t, events, 1)

		assert.NotEmpty(t, env.Metadata.CommandID)
		assert.Equal(t, env.Metadata.CommandID, env.Metadata.CorrelationID)
		assert.False(t, env.Metadata.Timestamp.IsZero())
		assert.Equal(t, env.Metadata.CommandID, events[0].Metadata.CausationID)
		assert.Equal(t, "user-1", events[0].Metadata.PrincipalID)
	})

	t.Run("keeps caller metadata", func(t *testing.T) {
		bus := eventsourcing.NewCommandBus()
		bus.Register("test.Command", eventsourcing.CommandHandlerFunc(emitOne))

		env := eventsourcing.NewCommandEnvelope("agg-1", testCommand{"test.Command"}).WithCorrelationID("corr-9")
		env.Metadata.CommandID = "cmd-9"
		_, err := bus.Send(context.Background(), env)
		require.NoError(t, err)
		assert.Equal(t, "cmd-9", env.Metadata.CommandID)
		assert.Equal(t, "corr-9", env.Metadata.CorrelationID)
	})

	t.Run("invalid envelopes", func(t *testing.T) {
		bus := eventsourcing.NewCommandBus()
		_, err := bus.Send(context.Background(), nil)
		assert.ErrorIs(t, err, eventsourcing.ErrInvalidCommand)

		_, err = bus.Send(context.Background(), &eventsourcing.CommandEnvelope{AggregateID: "agg-1"})
		assert.ErrorIs(t, err, eventsourcing.ErrInvalidCommand)

		_, err = bus.Send(context.Background(), eventsourcing.NewCommandEnvelope("", testCommand{"test.Command"}))
		assert.ErrorIs(t, err, eventsourcing.ErrInvalidCommand)
	})

	t.Run("unknown command type", func(t *testing.T) {
		bus := eventsourcing.NewCommandBus()
		_, err := bus.Send(context.Background(), eventsourcing.NewCommandEnvelope("agg-1", testCommand{"nope"}))
		assert.ErrorIs(t, err, eventsourcing.ErrCommandNotFound)
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		bus := eventsourcing.NewCommandBus()
		bus.Register("test.Command", eventsourcing.CommandHandlerFunc(emitOne))
		assert.Panics(t, func() {
			bus.Register("test.Command", eventsourcing.CommandHandlerFunc(emitOne))
		})
		assert.Equal(t, []string{"test.Command"}, bus.RegisteredCommands())
	})

	t.Run("middleware order", func(t *testing.T) {
		bus := eventsourcing.NewCommandBus()
		var order []int
		layer := func(before, after int) eventsourcing.CommandMiddleware {
			return func(next eventsourcing.CommandHandler) eventsourcing.CommandHandler {
				return eventsourcing.CommandHandlerFunc(func(ctx context.Context, cmd *eventsourcing.CommandEnvelope) ([]*domain.Event, error) {
					order = append(order, before)
					events, err := next.Handle(ctx, cmd)
					order = append(order, after)
					return events, err
				})
			}
		}
		bus.Use(layer(1, 4))
		bus.Use(layer(2, 3))
		bus.Register("test.Command", eventsourcing.CommandHandlerFunc(emitOne))

		_, err := bus.Send(context.Background(), eventsourcing.NewCommandEnvelope("agg-1", testCommand{"test.Command"}))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4}, order)
	})

	t.Run("publishes produced events", func(t *testing.T) {
		eventBus := &recordingBus{}
		var hooked []*domain.Event
		bus := eventsourcing.NewCommandBus(
			eventsourcing.WithEventBus(eventBus),
			eventsourcing.WithPublishHook(func(_ context.Context, events []*domain.Event) { hooked = events }),
		)
		bus.Register("test.Command", eventsourcing.CommandHandlerFunc(emitOne))

		events, err := bus.Send(context.Background(), eventsourcing.NewCommandEnvelope("agg-1", testCommand{"test.Command"}))
		require.NoError(t, err)
		assert.Equal(t, events, eventBus.published)
		assert.Equal(t, events, hooked)
	})

	t.Run("rejections propagate and publish nothing", func(t *testing.T) {
		eventBus := &recordingBus{}
		bus := eventsourcing.NewCommandBus(eventsourcing.WithEventBus(eventBus))
		bus.Register("test.Command", eventsourcing.CommandHandlerFunc(
			func(context.Context, *eventsourcing.CommandEnvelope) ([]*domain.Event, error) {
				return nil, &factory.Rejection{Code: factory.CodeCargoBayFull, Message: "full"}
			}))

		events, err := bus.Send(context.Background(), eventsourcing.NewCommandEnvelope("agg-1", testCommand{"test.Command"}))
		assert.Nil(t, events)
		assert.ErrorIs(t, err, factory.ErrCargoBayFull)
		assert.Empty(t, eventBus.published)
	})

	t.Run("publish failure still returns events", func(t *testing.T) {
		bus := eventsourcing.NewCommandBus(eventsourcing.WithEventBus(&recordingBus{err: errors.New("nats down")}))
		bus.Register("test.Command", eventsourcing.CommandHandlerFunc(emitOne))

		events, err := bus.Send(context.Background(), eventsourcing.NewCommandEnvelope("agg-1", testCommand{"test.Command"}))
		assert.ErrorIs(t, err, eventsourcing.ErrPublishFailed)
		assert.Len(t, events, 1)
	})

	t.Run("one command at a time", func(t *testing.T) {
		bus := eventsourcing.NewCommandBus()
		var running, maxRunning atomic.Int32
		bus.Register("test.Command", eventsourcing.CommandHandlerFunc(
			func(context.Context, *eventsourcing.CommandEnvelope) ([]*domain.Event, error) {
				n := running.Add(1)
				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil, nil
			}))

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := bus.Send(context.Background(), eventsourcing.NewCommandEnvelope("agg-1", testCommand{"test.Command"}))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxRunning.Load())
	})

	t.Run("waiting respects context", func(t *testing.T) {
		bus := eventsourcing.NewCommandBus()
		release := make(chan struct{})
		started := make(chan struct{})
		bus.Register("test.Slow", eventsourcing.CommandHandlerFunc(
			func(context.Context, *eventsourcing.CommandEnvelope) ([]*domain.Event, error) {
				close(started)
				<-release
				return nil, nil
			}))
		bus.Register("test.Command", eventsourcing.CommandHandlerFunc(emitOne))

		go bus.Send(context.Background(), eventsourcing.NewCommandEnvelope("agg-1", testCommand{"test.Slow"}))
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := bus.Send(ctx, eventsourcing.NewCommandEnvelope("agg-1", testCommand{"test.Command"}))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		close(release)
	})
}
