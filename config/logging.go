package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level,omitempty"`

	// Format is the log format (text, json).
	Format string `yaml:"format" json:"format,omitempty"`

	// Output is the log output (stdout, stderr, or file path).
	Output string `yaml:"output" json:"output,omitempty"`
}

// SetDefaults sets default values for logging configuration.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	if c.Level != "" {
		if _, err := c.level(); err != nil {
			return &ConfigError{Field: "logging.level", Message: err.Error(), Err: err}
		}
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return NewConfigError("logging.format", fmt.Sprintf("%q is not text or json", c.Format))
	}
	return nil
}

func (c *LoggingConfig) level() (slog.Level, error) {
	var level slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	err := level.UnmarshalText([]byte(c.Level))
	return level, err
}

// NewLogger builds the configured logger. The returned close function
// releases a log file and is a no-op for the standard streams.
func (c *LoggingConfig) NewLogger() (*slog.Logger, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	level, _ := c.level()

	var (
		out     io.Writer
		closeFn = func() error { return nil }
	)
	switch c.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log output: %w", err)
		}
		out, closeFn = f, f.Close
	}
	return slog.New(newHandler(c.Format, out, level)), closeFn, nil
}

func newHandler(format string, out io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}
