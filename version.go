// Package heapscope provides the version information for heapscope.
package heapscope

// Version is the current version of heapscope.
const Version = "0.1.0"

// UserAgent identifies heapscope clients on the wire.
const UserAgent = "heapscope/" + Version

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
