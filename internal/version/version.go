// Package version holds build information, overridden at release time
// via -ldflags.
package version

var (
	// Version is the semantic version of the running binary
	Version = "dev"

	// Commit is the git commit the binary was built from
	Commit = "unknown"
)
