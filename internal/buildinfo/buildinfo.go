// Package buildinfo holds version information injected at build time via ldflags.
package buildinfo

var (
	// Version is the semantic version of this build.
	Version = "dev"
	// GitCommit is the git commit hash of this build.
	GitCommit = "unknown"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)
