// Package version holds build-time version information.
package version

// These are overridden at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)
