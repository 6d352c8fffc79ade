package factory

// Journal is the ordered, append-only history of a factory. It is the
// only channel through which state changes. Events are copied on the way
// in and on the way out.
type Journal struct {
	events []Event
}

// NewJournal returns a journal holding a copy of events.
func NewJournal(events ...Event) Journal {
	return Journal{events: cloneEvents(events)}
}

// Events returns a copy of the recorded events in order.
func (j Journal) Events() []Event {
	return cloneEvents(j.events)
}

// Len returns the number of recorded events.
func (j Journal) Len() int {
	return len(j.events)
}

// Rebuild folds the whole journal into a fresh state.
func (j Journal) Rebuild() (State, error) {
	return Rebuild(j.events)
}

func (j *Journal) append(events ...Event) {
	for _, e := range events {
		j.events = append(j.events, cloneEvent(e))
	}
}
