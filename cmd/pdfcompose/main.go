// Command pdfcompose composes rendered header, body and footer PDFs into
// final pages, writes labeled copies and encrypts the result.
//
// Usage:
//
//	pdfcompose <command> [options] <args>
//
// Commands:
//
//	compose   Compose body, header and footer PDFs into final pages
//	render    Render a markdown layout with a backend and compose it
//	batch     Write several jobs into one document
//	backends  List rendering backends and the one that would be used
//	info      Show page count and page sizes of a PDF
//	version   Show version information
//	help      Show help message
//
// Examples:
//
//	# Two labeled copies with a header on every page
//	pdfcompose compose --header header.pdf --copies 2 body.pdf out.pdf
//
//	# Render a layout with headless Chrome and encrypt it
//	pdfcompose render --backend chrome --password s3cret invoice.yaml out.pdf
package main

import (
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/georgepadayatti/pdfcompose/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/pdfcompose
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Error ignored: maxprocs.Set only fails on an invalid GOMAXPROCS
	// environment value, in which case the runtime default stays.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	cli.Version = version
	cli.BuildTime = buildTime

	cli.Run(os.Args)
}
