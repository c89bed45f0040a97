// Package cli provides the pdfcompose command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// osExit is a variable for os.Exit to allow testing
var osExit = os.Exit

// Command output, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Run executes the CLI with the given arguments.
// This is the main entry point for the CLI.
func Run(args []string) {
	if len(args) < 2 {
		Usage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	command := args[1]
	switch command {
	case "compose":
		err = ComposeCommand(ctx, args[2:])
	case "render":
		err = RenderCommand(ctx, args[2:])
	case "batch":
		err = BatchCommand(ctx, args[2:])
	case "backends":
		err = BackendsCommand(ctx, args[2:])
	case "info":
		err = InfoCommand(args[2:])
	case "version":
		VersionCommand()
	case "help", "-h", "--help":
		Usage()
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		Usage()
		err = usageError("unknown command %q", command)
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		osExit(exitCodeFor(err))
	}
}

// Usage prints the CLI usage information.
func Usage() {
	fmt.Fprintf(stdout, "pdfcompose - compose, replicate and encrypt PDF documents\n\n")
	fmt.Fprintf(stdout, "Usage: %s <command> [options] <args>\n\n", os.Args[0])
	fmt.Fprintln(stdout, "Commands:")
	fmt.Fprintln(stdout, "  compose   Compose body, header and footer PDFs into final pages")
	fmt.Fprintln(stdout, "  render    Render a markdown layout with a backend and compose it")
	fmt.Fprintln(stdout, "  batch     Write several jobs into one document")
	fmt.Fprintln(stdout, "  backends  List rendering backends and the one that would be used")
	fmt.Fprintln(stdout, "  info      Show page count and page sizes of a PDF")
	fmt.Fprintln(stdout, "  version   Show version information")
	fmt.Fprintln(stdout, "  help      Show this help message")
	fmt.Fprintln(stdout, "")
	fmt.Fprintf(stdout, "Use '%s <command> -h' for command-specific help\n", os.Args[0])
	fmt.Fprintln(stdout, "")
	fmt.Fprintln(stdout, "Examples:")
	fmt.Fprintf(stdout, "  %s compose --header header.pdf --copies 2 body.pdf out.pdf\n", os.Args[0])
	fmt.Fprintf(stdout, "  %s render --backend chrome --password s3cret invoice.yaml out.pdf\n", os.Args[0])
	fmt.Fprintf(stdout, "  %s batch jobs.yaml all.pdf\n", os.Args[0])
}

// VersionCommand prints version information.
func VersionCommand() {
	fmt.Fprintf(stdout, "pdfcompose version %s\n", Version)
	fmt.Fprintf(stdout, "Build time: %s\n", BuildTime)
}
