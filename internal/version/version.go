// Package version holds the build-time version string for wreckit.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev"
