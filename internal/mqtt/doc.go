// Package mqtt adapts the monitor to the home-automation state bus.
//
// The Ingest side subscribes to per-entity state topics and forwards decoded
// updates into the sensor pipeline; the Actuator side publishes siren on/off
// commands. Both degrade gracefully when no broker is configured.
package mqtt
