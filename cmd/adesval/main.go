// Command adesval validates AdES signatures described by diagnostic data.
//
// Usage:
//
//	adesval <command> [flags] <args>
//
// Commands:
//
//	validate  Validate the signatures of a diagnostic data document
//	policy    Inspect validation policies
//	version   Show version information
//
// Examples:
//
//	# Validate with the built-in policy
//	adesval validate --trust-store anchors.pem diagnostic.json
//
//	# Print the full report as JSON
//	adesval validate --config adesval.yaml --output json diagnostic.cbor
package main

import (
	"os"

	"github.com/georgepadayatti/adesval/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/adesval
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime

	os.Exit(cli.Run(os.Args))
}
