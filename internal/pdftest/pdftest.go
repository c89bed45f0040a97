// Package pdftest builds small PDF documents for tests.
package pdftest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/georgepadayatti/pdfcompose/pdf/fonts"
	"github.com/georgepadayatti/pdfcompose/pdf/generic"
	"github.com/georgepadayatti/pdfcompose/pdf/writer"
)

// Page describes one test page. Text is shown near the lower left corner
// of the box.
type Page struct {
	Box  generic.Rectangle
	Text string
}

// Content returns the content stream written for text.
func Content(text string) string {
	return fmt.Sprintf("BT /F1 12 Tf 10 10 Td (%s) Tj ET", generic.EscapeLiteral([]byte(text)))
}

// New returns a document with the given pages.
func New(tb testing.TB, pages ...Page) []byte {
	tb.Helper()
	w := writer.NewPdfFileWriter("")
	font, err := fonts.NewStandardFont(fonts.Helvetica)
	if err != nil {
		tb.Fatal(err)
	}
	fontRef := w.AddObject(font.Dictionary())

	for _, p := range pages {
		fontsDict := generic.NewDictionary()
		fontsDict.Set("F1", fontRef)
		resources := generic.NewDictionary()
		resources.Set("Font", fontsDict)
		if _, err := w.AddContentPage(p.Box, resources, []byte(Content(p.Text))); err != nil {
			tb.Fatal(err)
		}
	}
	data, err := w.Bytes()
	if err != nil {
		tb.Fatal(err)
	}
	return data
}

// Uniform returns a document of n pages of the same size, labeled
// "<label> 1" to "<label> n".
func Uniform(tb testing.TB, n int, width, height float64, label string) []byte {
	tb.Helper()
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{
			Box:  generic.Rectangle{URX: width, URY: height},
			Text: fmt.Sprintf("%s %d", label, i+1),
		}
	}
	return New(tb, pages...)
}

// TrueTypeFile writes the Go Regular font to a temporary file and returns
// its path. The font covers Latin, Greek and Cyrillic but not CJK or
// Arabic.
func TrueTypeFile(tb testing.TB) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "GoRegular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		tb.Fatal(err)
	}
	return path
}
