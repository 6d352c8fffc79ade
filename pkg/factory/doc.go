// Package factory implements the car factory aggregate.
//
// The factory never stores its state directly. Every accepted command
// appends one or more events to the journal and folds them into a
// projection (State) that is only ever produced by Apply. Rebuilding the
// projection from the journal with Rebuild always yields the state the
// aggregate currently holds.
//
// A Factory is not safe for concurrent use. Hosts serialize commands per
// aggregate instance (see eventsourcing.CommandBus).
package factory
