package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/georgepadayatti/pdfcompose/compose"
	"github.com/georgepadayatti/pdfcompose/pdf/reader"
	"github.com/georgepadayatti/pdfcompose/pdf/writer"
)

// ErrLayout is returned for layouts that cannot be rendered.
var ErrLayout = errors.New("invalid layout")

// Streams are the three rendered page streams with the flags saying how
// header and footer pages map onto body pages.
type Streams struct {
	Body   []byte
	Header []byte
	Footer []byte

	HeaderDynamic bool
	FooterDynamic bool
	Structured    bool
}

// Section is a header or footer.
type Section struct {
	Mode compose.Mode
	// Height of the section in points.
	Height float64
	// Pages holds the markdown of each page. Single uses the first entry,
	// Structured the first, odd, even and last entries, and Dynamic one
	// entry per body page. Missing entries repeat the last one. Dynamic
	// entries may use {page} and {pages}.
	Pages []string
	Align string
}

// Layout describes a document to render.
type Layout struct {
	// Width and Height are the final page size in points. The body gets
	// what the header and footer leave.
	Width, Height float64
	Margin        float64
	Body          string
	Header        Section
	Footer        Section
}

// DefaultLayout returns a US Letter layout without header or footer.
func DefaultLayout() Layout {
	return Layout{Width: 612, Height: 792, Margin: 36}
}

func (l Layout) bodyHeight() float64 {
	h := l.Height
	for _, s := range []Section{l.Header, l.Footer} {
		if s.Mode != compose.ModeAbsent {
			h -= s.Height
		}
	}
	return h
}

// Validate checks page geometry and section entries.
func (l Layout) Validate() error {
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("%w: page size %vx%v", ErrLayout, l.Width, l.Height)
	}
	for _, s := range []struct {
		name string
		Section
	}{{compose.StreamHeader, l.Header}, {compose.StreamFooter, l.Footer}} {
		if s.Mode == compose.ModeAbsent {
			continue
		}
		if s.Height <= 0 {
			return fmt.Errorf("%w: %s height %v", ErrLayout, s.name, s.Height)
		}
		if len(s.Pages) == 0 {
			return fmt.Errorf("%w: %s has no pages", ErrLayout, s.name)
		}
	}
	if l.bodyHeight() <= 2*l.Margin {
		return fmt.Errorf("%w: no room left for the body", ErrLayout)
	}
	return nil
}

// RenderStreams renders the body and the header and footer pages of l
// with b.
func RenderStreams(ctx context.Context, b Backend, l Layout) (*Streams, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	body, err := b.Render(ctx, Fragment{
		Markdown: l.Body,
		Width:    l.Width,
		Height:   l.bodyHeight(),
		Margin:   l.Margin,
		Flow:     true,
	})
	if err != nil {
		return nil, err
	}
	doc, err := reader.NewPdfFileReaderFromBytes(body)
	if err != nil {
		return nil, renderError(b.Name(), fmt.Errorf("body: %w", err))
	}
	pages := doc.GetPageCount()

	out := &Streams{
		Body:          body,
		HeaderDynamic: l.Header.Mode == compose.ModeDynamic,
		FooterDynamic: l.Footer.Mode == compose.ModeDynamic,
		Structured:    l.Header.Mode == compose.ModeStructured || l.Footer.Mode == compose.ModeStructured,
	}
	if out.Header, err = renderSection(ctx, b, l, l.Header, pages, out.Structured); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if out.Footer, err = renderSection(ctx, b, l, l.Footer, pages, out.Structured); err != nil {
		return nil, fmt.Errorf("footer: %w", err)
	}
	return out, nil
}

// renderSection renders one page per entry the mode needs and joins them.
// A single page is repeated four times when the layout is structured.
func renderSection(ctx context.Context, b Backend, l Layout, s Section, bodyPages int, structured bool) ([]byte, error) {
	mode := s.Mode
	switch {
	case mode == compose.ModeAbsent:
		return nil, nil
	case mode == compose.ModeSingle && structured:
		mode = compose.ModeStructured
	}
	n := mode.ExpectedPages(bodyPages)

	var (
		pages    []*reader.PdfFileReader
		rendered = make(map[string]*reader.PdfFileReader)
	)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source := s.Pages[min(i, len(s.Pages)-1)]
		if s.Mode == compose.ModeSingle {
			source = s.Pages[0]
		}
		if mode == compose.ModeDynamic {
			source = expandPageNumbers(source, i+1, bodyPages)
		}
		if r, ok := rendered[source]; ok {
			pages = append(pages, r)
			continue
		}
		data, err := b.Render(ctx, Fragment{
			Markdown: source,
			Width:    l.Width,
			Height:   s.Height,
			Margin:   min(l.Margin, s.Height/4),
			Align:    s.Align,
		})
		if err != nil {
			return nil, err
		}
		r, err := reader.NewPdfFileReaderFromBytes(data)
		if err != nil {
			return nil, renderError(b.Name(), fmt.Errorf("page %d: %w", i, err))
		}
		if n == 1 && r.GetPageCount() == 1 {
			return data, nil
		}
		rendered[source] = r
		pages = append(pages, r)
	}
	return joinFirstPages(pages)
}

func expandPageNumbers(s string, page, pages int) string {
	return strings.NewReplacer("{page}", strconv.Itoa(page), "{pages}", strconv.Itoa(pages)).Replace(s)
}

// joinFirstPages builds one document from the first page of each input.
func joinFirstPages(docs []*reader.PdfFileReader) ([]byte, error) {
	w := writer.NewPdfFileWriter("")
	im := writer.NewImporter(w)
	for i, r := range docs {
		if _, err := im.ImportPage(r, 0); err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
	}
	return w.Bytes()
}
