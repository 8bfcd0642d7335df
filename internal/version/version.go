package version

import "fmt"

// Build metadata, overridden via -ldflags at release time.
// The defaults mark a build made without the release pipeline.
var (
	// Version is the semantic version of the monitor build.
	Version = "0.1.0"
	// Commit is the short git SHA of the build, "none" outside the pipeline.
	Commit = "none"
	// BuildTime is the UTC timestamp the binary was built at.
	BuildTime = "unknown"
)

// Short returns just the semantic version.
func Short() string {
	return Version
}

// Full returns the version together with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}
