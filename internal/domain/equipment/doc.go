// Package equipment holds the domain model of the monitor: equipment
// configuration with sensor bindings, the in-memory runtime state derived
// from sensor readings, and the immutable events queued for the remote API.
package equipment
