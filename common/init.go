// Package common holds the gateway's process-wide leaves: CLI flags and the
// MySQL DSN normalization helper. Everything else lives under common/<pkg>.
package common

import "flag"

var (
	// Port is the listening port when the PORT environment variable is unset.
	Port = flag.Int("port", 3000, "the listening port")
	// PrintVersion prints the gateway version and exits.
	PrintVersion = flag.Bool("version", false, "print version and exit")
	// PrintHelp prints usage and exits.
	PrintHelp = flag.Bool("help", false, "print help and exit")
)

// Version is set at build time via -ldflags; "dev" otherwise.
var Version = "dev"

// Init parses CLI flags. Call once at process startup before reading Port.
func Init() {
	flag.Parse()
}
