package factory

import (
	"fmt"

	"github.com/plaenen/refactory/pkg/domain"
)

// AggregateType is the stream type under which factory events are stored.
const AggregateType = "Factory"

// Fixed business rules.
const (
	forbiddenEmployeeName = "bender"
	supportedCarModel     = "Model T"
	maxPendingShipments   = 2
	curseThreshold        = 10

	CurseWord        = "Boltov tebe v korobky peredach"
	CurseWordMeaning = "awe in the face of the amount of parts delivered"
)

// WorkKind classifies side work a command performs before recording events.
type WorkKind string

const (
	Paperwork WorkKind = "paperwork"
	RealWork  WorkKind = "real work"
)

// WorkObserver receives descriptions of side work. It must not affect state.
type WorkObserver func(kind WorkKind, description string)

// Option configures a Factory.
type Option func(*Factory)

// WithWorkObserver reports side work to observer.
func WithWorkObserver(observer WorkObserver) Option {
	return func(f *Factory) {
		if observer != nil {
			f.observer = observer
		}
	}
}

// Factory is the aggregate. It binds one journal to the state folded from it.
type Factory struct {
	domain.AggregateRoot

	journal  Journal
	state    State
	observer WorkObserver
}

// New returns a factory with an empty journal and empty state.
func New(id string, opts ...Option) *Factory {
	f := &Factory{
		AggregateRoot: domain.NewAggregateRoot(id, AggregateType),
		state:         EmptyState(),
		observer:      func(WorkKind, string) {},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Rehydrate rebuilds a factory from its full history. The returned
// factory's journal is history and its version is len(history).
func Rehydrate(id string, history []Event, opts ...Option) (*Factory, error) {
	f, err := rehydrate(id, history, opts)
	if err != nil {
		return nil, err
	}
	f.SetVersion(int64(len(history)))
	return f, nil
}

// FromHistory rehydrates a factory from stored envelopes. The version is
// the one carried by the last envelope.
func FromHistory(id string, history []*domain.Event, opts ...Option) (*Factory, error) {
	events, err := DecodeEnvelopes(history)
	if err != nil {
		return nil, fmt.Errorf("failed to decode history of factory %s: %w", id, err)
	}
	f, err := rehydrate(id, events, opts)
	if err != nil {
		return nil, err
	}
	f.LoadFromHistory(history)
	return f, nil
}

func rehydrate(id string, history []Event, opts []Option) (*Factory, error) {
	state, err := Rebuild(history)
	if err != nil {
		return nil, fmt.Errorf("failed to rehydrate factory %s: %w", id, err)
	}
	f := New(id, opts...)
	f.journal = NewJournal(history...)
	f.state = state
	return f, nil
}

// State returns the current projection.
func (f *Factory) State() State {
	return f.state
}

// Journal returns the factory's history.
func (f *Factory) Journal() Journal {
	return NewJournal(f.journal.events...)
}

// record folds events into a candidate state and commits them only if
// every event applies and encodes. Nothing changes on failure.
func (f *Factory) record(events ...Event) ([]Event, error) {
	next := f.state
	payloads := make([][]byte, len(events))
	for i, e := range events {
		var err error
		if next, err = Apply(next, e); err != nil {
			return nil, err
		}
		if payloads[i], err = EncodeEvent(e); err != nil {
			return nil, err
		}
	}

	f.journal.append(events...)
	f.state = next
	for i, e := range events {
		f.Raise(e.EventType(), payloads[i])
	}
	return events, nil
}

func (f *Factory) work(kind WorkKind, format string, args ...any) {
	f.observer(kind, fmt.Sprintf(format, args...))
}
