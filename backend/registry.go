package backend

import "log/slog"

// Options configures the standard set of backends.
type Options struct {
	// Priority overrides DefaultPriority.
	Priority       []string
	Chrome         ChromeOptions
	WeasyPrintBin  string
	WkHTMLToPDFBin string
	Builtin        BuiltinOptions
	// Runner runs the external converters. Nil means ExecRunner.
	Runner CommandRunner
}

// NewDefaultSelector registers Chrome, WeasyPrint, wkhtmltopdf and the
// builtin backend.
func NewDefaultSelector(logger *slog.Logger, opts Options) *Selector {
	return NewSelector(logger, opts.Priority,
		NewChromeBackend(opts.Chrome),
		NewWeasyPrintBackend(opts.WeasyPrintBin, opts.Runner),
		NewWkHTMLToPDFBackend(opts.WkHTMLToPDFBin, opts.Runner),
		NewBuiltinBackend(opts.Builtin),
	)
}
