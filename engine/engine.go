// Package engine runs the document pipeline: it selects a backend, renders
// the body, header and footer streams, composes them into final pages and
// replicates the result into labeled copies.
package engine

import (
	"context"
	"log/slog"

	"github.com/georgepadayatti/pdfcompose/backend"
	"github.com/georgepadayatti/pdfcompose/compose"
	"github.com/georgepadayatti/pdfcompose/replicate"
)

// Streams are rendered body, header and footer page streams.
type Streams = backend.Streams

// Request is one document to generate.
type Request struct {
	// Backend is the requested backend name. Empty means auto.
	Backend string
	Layout  backend.Layout
	Copies  replicate.CopyRequest
	// Sink receives the pages. Nil produces a standalone document.
	Sink replicate.Sink
}

// Result describes a generated document.
type Result struct {
	// Data is the output, or nil when the pages went to an accumulating
	// sink.
	Data []byte
	// Backend is the backend that rendered the streams.
	Backend string
	// Pages is the page count of one copy.
	Pages  int
	Copies int
}

// Engine generates documents.
type Engine struct {
	selector *backend.Selector
	logger   *slog.Logger
}

// New creates an engine. A nil selector registers the default backends.
func New(logger *slog.Logger, selector *backend.Selector) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if selector == nil {
		selector = backend.NewDefaultSelector(logger, backend.Options{})
	}
	return &Engine{selector: selector, logger: logger}
}

// Selector returns the engine's backend selector.
func (e *Engine) Selector() *backend.Selector { return e.selector }

// Close releases the backends.
func (e *Engine) Close() error { return e.selector.Close() }

// Generate renders req.Layout with the selected backend and runs the
// composition pipeline on the result.
func (e *Engine) Generate(ctx context.Context, req Request) (*Result, error) {
	b, err := e.selector.Resolve(ctx, req.Backend)
	if err != nil {
		return nil, err
	}
	streams, err := backend.RenderStreams(ctx, b, req.Layout)
	if err != nil {
		return nil, err
	}
	doc, err := ComposeDocument(ctx, *streams)
	if err != nil {
		return nil, err
	}
	data, err := replicate.Replicate(ctx, doc, req.Copies, req.Sink)
	if err != nil {
		return nil, err
	}

	res := &Result{Data: data, Backend: b.Name(), Pages: doc.PageCount(), Copies: req.Copies.Copies()}
	e.logger.Info("document generated",
		slog.String("backend", res.Backend),
		slog.Int("pages", res.Pages),
		slog.Int("copies", res.Copies),
		slog.Int("bytes", len(data)),
	)
	return res, nil
}

// ComposeStreams composes already rendered streams and replicates the
// result into sink. It returns nil bytes when sink accumulates.
func (e *Engine) ComposeStreams(ctx context.Context, s Streams, copies replicate.CopyRequest, sink replicate.Sink) ([]byte, error) {
	doc, err := ComposeDocument(ctx, s)
	if err != nil {
		return nil, err
	}
	data, err := replicate.Replicate(ctx, doc, copies, sink)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("streams composed",
		slog.Int("pages", doc.PageCount()),
		slog.Int("copies", copies.Copies()),
	)
	return data, nil
}

// ComposeDocument parses the streams and composes one copy.
func ComposeDocument(ctx context.Context, s Streams) (*compose.PageStream, error) {
	plan, err := PlanFor(s)
	if err != nil {
		return nil, err
	}
	return compose.Compose(ctx, plan)
}

// PlanFor parses the streams into a composition plan. Empty header or
// footer bytes mean the section is absent.
func PlanFor(s Streams) (compose.Plan, error) {
	body, err := compose.ParseStream(compose.StreamBody, s.Body)
	if err != nil {
		return compose.Plan{}, err
	}
	header, err := parseOptional(compose.StreamHeader, s.Header)
	if err != nil {
		return compose.Plan{}, err
	}
	footer, err := parseOptional(compose.StreamFooter, s.Footer)
	if err != nil {
		return compose.Plan{}, err
	}
	return compose.PlanFromFlags(body, header, footer, s.HeaderDynamic, s.FooterDynamic, s.Structured), nil
}

func parseOptional(name string, data []byte) (*compose.PageStream, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return compose.ParseStream(name, data)
}
