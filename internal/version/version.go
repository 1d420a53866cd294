// Package version holds the ragchat build metadata reported on startup.
package version

// Set at build time, e.g.:
//
//	go build -ldflags "-X .../internal/version.Version=$(git describe --tags)" ./cmd/ragchat
//
//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
