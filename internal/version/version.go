// Package version holds build metadata, set at link time via ldflags.
package version

var (
	// Version is the release version, e.g. "v0.3.0".
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)
