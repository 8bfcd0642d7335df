// Package server hosts the monitor process: it wires configuration,
// persistence, the API client, the sensor bus and the sync loop together,
// and exposes the HTTP admin surface over a narrow Service interface.
package server
