// Package version holds the service version string.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev"
