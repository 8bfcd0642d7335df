// Package config defines monitor settings used by binaries and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type holds the remote API endpoint and credentials, the sync
// interval, the state directory and the optional MQTT state-bus parameters.
// Credentials can be overridden through environment variables (optionally
// loaded from a .env file) so they never need to live in the YAML file.
package config
