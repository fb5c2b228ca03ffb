// version.go - Node & API version info for the Dharohar node
package server

// Version is overridden at build time with -ldflags "-X dharohar/api/server.Version=...".
var Version = "v1.0.0-dev"

// NodeVersion returns the current node software version.
func NodeVersion() string {
	return Version
}

// APIVersion returns the current API version.
func APIVersion() string {
	return "v1"
}
