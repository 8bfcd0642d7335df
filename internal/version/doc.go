// Package version exposes build metadata (version, commit, build time)
// injected via ldflags and a helper to attach a `version` subcommand to
// cobra roots.
package version
