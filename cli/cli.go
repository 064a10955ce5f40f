// Package cli provides the command-line interface of the AdES validator.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// ErrNotPassed is returned by the validate command when at least one
// signature did not reach TOTAL_PASSED.
var ErrNotPassed = errors.New("not every signature passed validation")

// Exit codes returned by Run.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitNotPassed = 2
)

// NewRootCommand builds the command tree. Every call returns fresh
// commands and flags.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "adesval",
		Short: "Validate AdES signatures against a validation policy",
		Long: `adesval runs the ETSI EN 319 102-1 validation processes (basic, long-term
and archival) on the diagnostic data of signed documents and reports one
indication per signature.

Examples:
  # Validate with the built-in policy, trusting the anchors of a PEM bundle
  adesval validate --trust-store anchors.pem diagnostic.json

  # Validate with a configuration file and print the full report
  adesval validate --config adesval.yaml --output json diagnostic.cbor

  # Print the built-in policy as XML
  adesval policy show --xml`,
		Version:       fmt.Sprintf("%s (built: %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCommand())
	root.AddCommand(newPolicyCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Run executes the CLI with the given arguments and returns the exit code.
// args[0] is the program name.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return run(ctx, args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrNotPassed):
		return ExitNotPassed
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitError
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "adesval version %s\n", Version)
			fmt.Fprintf(out, "Build time: %s\n", BuildTime)
		},
	}
}
