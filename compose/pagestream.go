// Package compose stacks header, body and footer page streams into one
// paginated document.
package compose

import (
	"errors"
	"fmt"

	"github.com/georgepadayatti/pdfcompose/pdf/generic"
	"github.com/georgepadayatti/pdfcompose/pdf/reader"
	"github.com/georgepadayatti/pdfcompose/pdf/writer"
)

// PageStream is an ordered, immutable sequence of pages.
type PageStream struct {
	// data holds the bytes the stream was parsed from. Composed streams
	// have none.
	data  []byte
	pages []Page
}

// Parse parses PDF bytes into a page stream.
func Parse(data []byte) (*PageStream, error) {
	return ParseStream("input", data)
}

// ParseStream parses PDF bytes, naming the stream in errors.
func ParseStream(name string, data []byte) (*PageStream, error) {
	doc, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		reason := "unparsable PDF"
		if errors.Is(err, reader.ErrEncrypted) {
			reason = "encrypted PDF"
		}
		return nil, &InvalidInputError{Stream: name, Reason: reason, Err: err}
	}
	if doc.Encrypted {
		return nil, &InvalidInputError{Stream: name, Reason: "encrypted PDF"}
	}

	n := doc.GetPageCount()
	if n == 0 {
		return nil, &InvalidInputError{Stream: name, Reason: "no pages"}
	}
	pages := make([]Page, n)
	for i := range pages {
		page, err := doc.GetPage(i)
		if err != nil {
			return nil, &InvalidInputError{Stream: name, Reason: fmt.Sprintf("page %d", i), Err: err}
		}
		pages[i] = newSourcePage(doc, i, doc.PageBox(page))
	}
	return &PageStream{data: data, pages: pages}, nil
}

// PageCount returns the number of pages.
func (s *PageStream) PageCount() int { return len(s.pages) }

// MediaBox returns the box of page i.
func (s *PageStream) MediaBox(i int) generic.Rectangle { return s.pages[i].box }

// Page returns page i.
func (s *PageStream) Page(i int) Page { return s.pages[i] }

// Pages returns a copy of the pages.
func (s *PageStream) Pages() []Page {
	return append([]Page(nil), s.pages...)
}

// Parsed reports whether the stream holds the bytes it was parsed from.
func (s *PageStream) Parsed() bool { return s.data != nil }

// Bytes serializes the stream. A parsed stream returns its original bytes.
func (s *PageStream) Bytes() ([]byte, error) {
	if s.data != nil {
		return s.data, nil
	}
	w := writer.NewPdfFileWriter("")
	im := writer.NewImporter(w)
	for i, p := range s.pages {
		if _, err := p.Write(im); err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
	}
	return w.Bytes()
}
