package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/georgepadayatti/pdfcompose/backend"
	"github.com/georgepadayatti/pdfcompose/config"
	"github.com/georgepadayatti/pdfcompose/engine"
	"github.com/georgepadayatti/pdfcompose/replicate"
)

// passwordEnv is read when --password is not given.
const passwordEnv = "PDFCOMPOSE_PASSWORD"

var (
	// ErrUsage marks invalid command lines.
	ErrUsage = errors.New("usage error")
	// ErrWriteOutput marks failures writing the output document.
	ErrWriteOutput = errors.New("failed to write output")
)

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// newFlagSet creates a flag set whose usage names the command's
// arguments.
func newFlagSet(name, arguments, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s %s [options] %s\n\n", os.Args[0], name, arguments)
		fmt.Fprintln(stderr, summary)
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses args and checks the positional argument count. done
// is set when help was shown.
func parseArgs(fs *flag.FlagSet, args []string, positional int) (done bool, err error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return true, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != positional {
		fs.Usage()
		return true, usageError("%s takes %d arguments, got %d", fs.Name(), positional, fs.NArg())
	}
	return false, nil
}

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config   string
	logLevel string
	verbose  bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVarP(&c.config, "config", "c", "", "YAML configuration file")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (default warn)")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "Log at debug level")
}

// session is the loaded configuration of one command run.
type session struct {
	config   *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func (s *session) Close() error { return s.closeLog() }

// load reads the configuration file, applies flag overrides and builds
// the logger.
func (c *commonFlags) load() (*session, error) {
	cfg := &config.Config{}
	if c.config != "" {
		loaded, err := config.LoadConfig(c.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cfg.Logging == nil {
		cfg.Logging = &config.LoggingConfig{}
	}
	switch {
	case c.verbose:
		cfg.Logging.Level = "debug"
	case c.logLevel != "":
		cfg.Logging.Level = c.logLevel
	case cfg.Logging.Level == "":
		cfg.Logging.Level = "warn"
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, closeLog, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, err
	}
	return &session{config: cfg, logger: logger, closeLog: closeLog}, nil
}

// newEngine creates an engine over the configured backends.
func (s *session) newEngine() *engine.Engine {
	selector := backend.NewDefaultSelector(s.logger, s.config.Backend.BackendOptions())
	return engine.New(s.logger, selector)
}

// copyFlags holds replication flags.
type copyFlags struct {
	count       int
	labels      []string
	watermark   bool
	noWatermark bool
	fontFile    string
	password    string
}

func (f *copyFlags) register(fs *flag.FlagSet) {
	fs.IntVarP(&f.count, "copies", "n", 0, "Number of copies (default from config, else 1)")
	fs.StringSliceVar(&f.labels, "label", nil, "Copy labels in order (repeatable or comma separated)")
	fs.BoolVar(&f.watermark, "watermark", false, "Stamp copy labels even on a single copy")
	fs.BoolVar(&f.noWatermark, "no-watermark", false, "Never stamp copy labels")
	fs.StringVar(&f.fontFile, "watermark-font", "", "TrueType font for labels outside Windows-1252")
	fs.StringVar(&f.password, "password", "", "Encrypt the output; defaults to $"+passwordEnv)
}

func (f *copyFlags) userPassword() string {
	if f.password != "" {
		return f.password
	}
	return os.Getenv(passwordEnv)
}

// request builds the copy request from the configuration and flags.
func (f *copyFlags) request(cfg *config.Config) (replicate.CopyRequest, error) {
	if f.count < 0 {
		return replicate.CopyRequest{}, usageError("--copies must not be negative")
	}
	if f.watermark && f.noWatermark {
		return replicate.CopyRequest{}, usageError("--watermark and --no-watermark are exclusive")
	}
	req := cfg.CopyRequest(f.count, f.userPassword())
	if len(f.labels) > 0 {
		req.Labels = f.labels
	}
	if f.fontFile != "" {
		req.Style.FontFile = f.fontFile
	}
	switch {
	case f.watermark:
		on := true
		req.Watermark = &on
	case f.noWatermark:
		off := false
		req.Watermark = &off
	}
	return req, nil
}

// writeOutput writes data to path, or to stdout for "-".
func writeOutput(path string, data []byte) error {
	if path == "-" {
		if _, err := stdout.Write(data); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}

// report prints a summary line unless the document went to stdout.
func report(path, format string, args ...any) {
	if path == "-" {
		return
	}
	fmt.Fprintf(stdout, format+"\n", args...)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
