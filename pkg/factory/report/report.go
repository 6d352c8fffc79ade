// Package report keeps a production read model built from the global
// event log.
package report

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/factory"
	"github.com/plaenen/refactory/pkg/store"
)

// ProjectionName is the checkpoint name of the production report.
const ProjectionName = "factory_production"

// Summary is the production of one factory.
type Summary struct {
	FactoryID         string
	Employees         int
	ShipmentsReceived int
	PartsReceived     int
	CursesHeard       int
	CarsProduced      int
	CarsByEmployee    map[string]int
}

// Report accumulates production summaries per factory.
type Report struct {
	mu        sync.RWMutex
	factories map[string]*Summary
}

// New returns an empty report.
func New() *Report {
	return &Report{factories: make(map[string]*Summary)}
}

// Projection returns the projection feeding r, for use with a store.Projector.
func (r *Report) Projection() *store.HandlerProjection {
	return store.NewHandlerProjection(ProjectionName).
		On(factory.EventTypeEmployeeAssigned, r.handle).
		On(factory.EventTypeShipmentTransferredToCargoBay, r.handle).
		On(factory.EventTypeCurseWordUttered, r.handle).
		On(factory.EventTypeCarProduced, r.handle).
		OnReset(func(context.Context) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			clear(r.factories)
			return nil
		})
}

// Apply folds one stored event into the report. Events of other
// aggregates are ignored.
func (r *Report) Apply(event *domain.Event) error {
	return r.handle(context.Background(), event)
}

func (r *Report) handle(_ context.Context, event *domain.Event) error {
	if event.AggregateType != factory.AggregateType {
		return nil
	}
	decoded, err := factory.DecodeEvent(event.EventType, event.Data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.factories[event.AggregateID]
	if !ok {
		s = &Summary{FactoryID: event.AggregateID, CarsByEmployee: make(map[string]int)}
		r.factories[event.AggregateID] = s
	}

	switch e := decoded.(type) {
	case factory.EmployeeAssigned:
		s.Employees++
	case factory.ShipmentTransferredToCargoBay:
		s.ShipmentsReceived++
		for _, p := range e.Parts {
			s.PartsReceived += p.Quantity
		}
	case factory.CurseWordUttered:
		s.CursesHeard++
	case factory.CarProduced:
		s.CarsProduced++
		s.CarsByEmployee[e.EmployeeName]++
	}
	return nil
}

// Factory returns the summary of one factory.
func (r *Report) Factory(id string) (Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.factories[id]
	if !ok {
		return Summary{}, false
	}
	return copySummary(s), true
}

// Factories returns every summary ordered by factory id.
func (r *Report) Factories() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.factories))
	for _, id := range slices.Sorted(maps.Keys(r.factories)) {
		out = append(out, copySummary(r.factories[id]))
	}
	return out
}

func copySummary(s *Summary) Summary {
	c := *s
	c.CarsByEmployee = maps.Clone(s.CarsByEmployee)
	return c
}
