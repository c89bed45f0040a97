package cli

import (
	"errors"
	"os"

	"github.com/georgepadayatti/pdfcompose/backend"
	"github.com/georgepadayatti/pdfcompose/compose"
	"github.com/georgepadayatti/pdfcompose/config"
	"github.com/georgepadayatti/pdfcompose/pdf/fonts"
	"github.com/georgepadayatti/pdfcompose/replicate"
)

// Exit codes follow Unix conventions: 0 success, 1 general, 2 usage.
const (
	ExitSuccess = 0 // Document written
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, layout or labels
	ExitIO      = 3 // File not found, permission denied
	ExitBackend = 4 // No usable backend or rendering failed
	ExitInput   = 5 // Input PDFs cannot be composed or encrypted
)

// exitCodeFor returns the exit code for an error. Errors must be wrapped
// with %w to be classified.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrUsage),
		errors.Is(err, config.ErrConfigurationError),
		errors.Is(err, config.ErrUnexpectedField),
		errors.Is(err, config.ErrInvalidConfigType),
		errors.Is(err, backend.ErrLayout),
		errors.Is(err, fonts.ErrUnencodable):
		return ExitUsage
	case errors.Is(err, os.ErrNotExist),
		errors.Is(err, os.ErrPermission),
		errors.Is(err, ErrWriteOutput):
		return ExitIO
	case errors.Is(err, backend.ErrBackendUnavailable),
		errors.Is(err, backend.ErrRender):
		return ExitBackend
	case errors.Is(err, compose.ErrInvalidInput),
		errors.Is(err, replicate.ErrEncryption):
		return ExitInput
	}
	return ExitGeneral
}
