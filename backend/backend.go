// Package backend renders markdown fragments to PDF and picks the backend
// that does it.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// Backend names.
const (
	Auto        = "auto"
	Chrome      = "chrome"
	WeasyPrint  = "weasyprint"
	WkHTMLToPDF = "wkhtmltopdf"
	Builtin     = "builtin"
)

// Fallback is returned by selection when nothing else is available.
const Fallback = Builtin

// DefaultPriority returns the selection order, best first.
func DefaultPriority() []string {
	return []string{Chrome, WeasyPrint, WkHTMLToPDF, Builtin}
}

// Sentinel errors.
var (
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrRender             = errors.New("render failed")
)

// BackendUnavailableError reports that no usable backend could be found,
// not even the fallback.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %q unavailable: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("backend %q unavailable", e.Backend)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrBackendUnavailable.
func (e *BackendUnavailableError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// Fragment is a piece of markdown rendered onto pages of a fixed size.
type Fragment struct {
	Markdown string
	// Width and Height are the page size in points.
	Width, Height float64
	// Margin is the page margin in points.
	Margin float64
	// Align is "left", "center" or "right".
	Align string
	// Flow lets content continue onto further pages. Without it the
	// fragment is one page and overflow is clipped.
	Flow bool
}

// Backend turns fragments into PDF documents.
type Backend interface {
	Name() string
	// Check reports whether the backend can run in this environment.
	Check(ctx context.Context) error
	Render(ctx context.Context, f Fragment) ([]byte, error)
}

// renderError wraps a backend failure.
func renderError(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRender, name, err)
}
