package generic

import (
	"fmt"
	"time"
)

// PdfError is the base error type for PDF operations.
type PdfError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PdfError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PdfError) Unwrap() error {
	return e.Cause
}

// PdfReadError represents an error during PDF reading.
type PdfReadError struct {
	PdfError
}

// NewPdfReadError creates a new PdfReadError wrapping cause, which may be nil.
func NewPdfReadError(msg string, cause error) *PdfReadError {
	return &PdfReadError{PdfError: PdfError{Message: msg, Cause: cause}}
}

// PdfWriteError represents an error during PDF writing.
type PdfWriteError struct {
	PdfError
}

// NewPdfWriteError creates a new PdfWriteError wrapping cause, which may be nil.
func NewPdfWriteError(msg string, cause error) *PdfWriteError {
	return &PdfWriteError{PdfError: PdfError{Message: msg, Cause: cause}}
}

// FormatDate renders t as a PDF date string, D:YYYYMMDDHHmmSS+HH'mm'.
func FormatDate(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	if offset == 0 {
		return t.Format("D:20060102150405") + "Z"
	}
	return fmt.Sprintf("%s%c%02d'%02d'", t.Format("D:20060102150405"), sign, offset/3600, (offset%3600)/60)
}
