// Package monitor implements the core of the equipment monitor: the
// equipment registry, the sensor update pipeline, the door/siren state
// machine and the periodic sync loop that drains the durable event queue
// to the remote API.
//
// The Service owns all mutable state behind one RWMutex and exposes it only
// through accessor methods returning clones. Door timers live in a map keyed
// by equipment id; map membership is the single source of truth for whether
// a timer is pending, which makes starts idempotent and lets a firing timer
// detect that it has been cancelled.
package monitor
