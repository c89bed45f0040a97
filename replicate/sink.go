package replicate

import (
	"fmt"
	"io"

	"github.com/georgepadayatti/pdfcompose/pdf/crypt"
	"github.com/georgepadayatti/pdfcompose/pdf/writer"
)

// Sink receives replicated pages.
type Sink interface {
	// Document returns the document pages are appended to.
	Document() *writer.PdfFileWriter
	// Finish is called after all pages of a request were appended. It
	// returns the output bytes, or nil when the sink finalizes later.
	Finish(enc *Encryption) ([]byte, error)
}

// BufferSink produces one standalone document per request.
type BufferSink struct {
	w *writer.PdfFileWriter
}

// NewBufferSink creates an empty buffer sink.
func NewBufferSink() *BufferSink {
	return &BufferSink{w: writer.NewPdfFileWriter("")}
}

// Document implements Sink.
func (s *BufferSink) Document() *writer.PdfFileWriter { return s.w }

// Finish encrypts the document if requested and serializes it.
func (s *BufferSink) Finish(enc *Encryption) ([]byte, error) {
	return serialize(s.w, enc)
}

// Accumulator collects the pages of many requests into one document. It
// is finalized by its owner with Bytes or WriteTo.
type Accumulator struct {
	w   *writer.PdfFileWriter
	enc *Encryption
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{w: writer.NewPdfFileWriter("")}
}

// Document implements Sink.
func (a *Accumulator) Document() *writer.PdfFileWriter { return a.w }

// Finish records the encryption settings and returns no bytes. The first
// settings with a password win; an empty password never clears them and a
// different one is an error.
func (a *Accumulator) Finish(enc *Encryption) ([]byte, error) {
	if enc == nil || enc.Password == "" {
		return nil, nil
	}
	if a.enc == nil {
		recorded := *enc
		a.enc = &recorded
		return nil, nil
	}
	if *a.enc != *enc {
		return nil, &EncryptionError{Reason: "conflicting password for accumulated document"}
	}
	return nil, nil
}

// PageCount returns the number of pages collected so far.
func (a *Accumulator) PageCount() int { return a.w.PageCount() }

// Bytes finalizes the document.
func (a *Accumulator) Bytes() ([]byte, error) {
	return serialize(a.w, a.enc)
}

// WriteTo finalizes the document into out.
func (a *Accumulator) WriteTo(out io.Writer) (int64, error) {
	data, err := a.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := out.Write(data)
	return int64(n), err
}

func serialize(w *writer.PdfFileWriter, enc *Encryption) ([]byte, error) {
	if enc == nil {
		return w.Bytes()
	}
	if err := encrypt(w, enc); err != nil {
		return nil, err
	}
	data, err := w.Bytes()
	if err != nil {
		return nil, &EncryptionError{Reason: "write encrypted document", Err: err}
	}
	return data, nil
}

func encrypt(w *writer.PdfFileWriter, enc *Encryption) error {
	if enc.Password == "" {
		return &EncryptionError{Reason: "empty password"}
	}
	var (
		h   *crypt.StandardSecurityHandler
		err error
	)
	switch enc.AESBits {
	case 0, 256:
		h, err = crypt.NewAES256Handler(enc.Password, enc.OwnerPassword, crypt.PermAll)
	case 128:
		h, err = crypt.NewAES128Handler(enc.Password, enc.OwnerPassword, crypt.PermAll, w.FileID)
	default:
		return &EncryptionError{Reason: fmt.Sprintf("unsupported key length %d", enc.AESBits)}
	}
	if err != nil {
		return &EncryptionError{Reason: "security handler", Err: err}
	}
	w.Encrypt(h)
	return nil
}
