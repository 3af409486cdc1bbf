package common

// Version is overridden at build time via -ldflags.
var Version = "0.3.1-dev"

// GetVersion returns the current build version
func GetVersion() string {
	return Version
}
