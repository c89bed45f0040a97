// Package fonts provides the fonts labels are drawn in: the standard Type 1
// fonts with WinAnsi encoding and embedded TrueType fonts.
package fonts

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/georgepadayatti/pdfcompose/pdf/generic"
)

// Common errors
var (
	ErrFontNotFound      = errors.New("font not found")
	ErrInvalidFont       = errors.New("invalid font")
	ErrUnsupportedFormat = errors.New("unsupported font format")
	// ErrUnencodable is returned for text the font has no glyph for.
	ErrUnencodable = errors.New("text not encodable in font")
)

// ObjectAdder stores indirect objects. writer.PdfFileWriter implements it.
type ObjectAdder interface {
	AddObject(obj generic.PdfObject) generic.Reference
}

// Font is a font that text can be shown in.
type Font interface {
	// Name returns the PostScript name of the font.
	Name() string
	// Encode returns the operand of a show text operator for s. It fails
	// with ErrUnencodable when a character has no glyph.
	Encode(s string) ([]byte, error)
	// StringWidth returns the width of s set at size points.
	StringWidth(s string, size float64) float64
	// CapHeight returns the cap height in thousandths of the font size.
	CapHeight() float64
	// Embed adds the font to w and returns its font dictionary.
	Embed(w ObjectAdder) (generic.Reference, error)
}

var (
	_ Font = (*StandardType1Font)(nil)
	_ Font = (*TrueTypeFont)(nil)
)

// StandardFont represents a PDF standard font name.
type StandardFont string

// Standard 14 fonts available in all PDF readers
const (
	Helvetica            StandardFont = "Helvetica"
	HelveticaBold        StandardFont = "Helvetica-Bold"
	HelveticaOblique     StandardFont = "Helvetica-Oblique"
	HelveticaBoldOblique StandardFont = "Helvetica-BoldOblique"
	Times                StandardFont = "Times-Roman"
	TimesBold            StandardFont = "Times-Bold"
	TimesItalic          StandardFont = "Times-Italic"
	TimesBoldItalic      StandardFont = "Times-BoldItalic"
	Courier              StandardFont = "Courier"
	CourierBold          StandardFont = "Courier-Bold"
	CourierOblique       StandardFont = "Courier-Oblique"
	CourierBoldOblique   StandardFont = "Courier-BoldOblique"
	Symbol               StandardFont = "Symbol"
	ZapfDingbats         StandardFont = "ZapfDingbats"
)

// IsStandardFont checks if a font name is a standard font.
func IsStandardFont(name string) bool {
	switch StandardFont(name) {
	case Helvetica, HelveticaBold, HelveticaOblique, HelveticaBoldOblique,
		Times, TimesBold, TimesItalic, TimesBoldItalic,
		Courier, CourierBold, CourierOblique, CourierBoldOblique,
		Symbol, ZapfDingbats:
		return true
	}
	return false
}

// FontMetrics holds the metrics needed to place a line of text. Widths are
// in thousandths of the font size.
type FontMetrics struct {
	Ascender  float64
	Descender float64
	CapHeight float64
	// ascii holds the widths of codes 32 to 126.
	ascii        *[95]float64
	DefaultWidth float64
}

// Width returns the width of one WinAnsi code.
func (m *FontMetrics) Width(code byte) float64 {
	if m.ascii != nil && code >= 32 && code <= 126 {
		return m.ascii[code-32]
	}
	return m.DefaultWidth
}

// StandardType1Font is a standard Type 1 font using WinAnsiEncoding.
type StandardType1Font struct {
	name    StandardFont
	metrics *FontMetrics
}

// NewStandardFont returns the named font. Symbol and ZapfDingbats have no
// WinAnsi text metrics and are rejected.
func NewStandardFont(name StandardFont) (*StandardType1Font, error) {
	m := &FontMetrics{DefaultWidth: 556}
	switch name {
	case Helvetica, HelveticaOblique:
		m.Ascender, m.Descender, m.CapHeight = 718, -207, 718
		m.ascii = &helveticaWidths
	case HelveticaBold, HelveticaBoldOblique:
		m.Ascender, m.Descender, m.CapHeight = 718, -207, 718
		m.ascii = &helveticaBoldWidths
	case Times, TimesItalic:
		m.Ascender, m.Descender, m.CapHeight = 683, -217, 662
		m.ascii, m.DefaultWidth = &timesWidths, 500
	case TimesBold, TimesBoldItalic:
		m.Ascender, m.Descender, m.CapHeight = 683, -217, 676
		m.ascii, m.DefaultWidth = &timesBoldWidths, 500
	case Courier, CourierBold, CourierOblique, CourierBoldOblique:
		// Monospaced.
		m.Ascender, m.Descender, m.CapHeight = 629, -157, 562
		m.DefaultWidth = 600
	default:
		return nil, fmt.Errorf("%w: %q", ErrFontNotFound, name)
	}
	return &StandardType1Font{name: name, metrics: m}, nil
}

// Name returns the PostScript name of the font.
func (f *StandardType1Font) Name() string {
	return string(f.name)
}

// Metrics returns the font metrics.
func (f *StandardType1Font) Metrics() *FontMetrics {
	return f.metrics
}

// CapHeight implements Font.
func (f *StandardType1Font) CapHeight() float64 {
	return f.metrics.CapHeight
}

// Encode converts s to Windows-1252, which WinAnsiEncoding matches for
// every printable code.
func (f *StandardType1Font) Encode(s string) ([]byte, error) {
	out, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %s: %v", ErrUnencodable, s, f.name, err)
	}
	return []byte(out), nil
}

// StringWidth returns the width of s set at size points. Characters
// outside the encoding count with the default width.
func (f *StandardType1Font) StringWidth(s string, size float64) float64 {
	var w float64
	for _, r := range s {
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			w += f.metrics.Width(b)
		} else {
			w += f.metrics.DefaultWidth
		}
	}
	return w * size / 1000
}

// Dictionary returns the font resource dictionary.
func (f *StandardType1Font) Dictionary() *generic.DictionaryObject {
	d := generic.NewDictionary()
	d.Set("Type", generic.NameObject("Font"))
	d.Set("Subtype", generic.NameObject("Type1"))
	d.Set("BaseFont", generic.NameObject(f.name))
	d.Set("Encoding", generic.NameObject("WinAnsiEncoding"))
	return d
}

// Embed implements Font. Standard fonts need no font program.
func (f *StandardType1Font) Embed(w ObjectAdder) (generic.Reference, error) {
	return w.AddObject(f.Dictionary()), nil
}

// AFM widths for codes 32 (space) through 126 (asciitilde).
var (
	helveticaWidths = [95]float64{
		278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
		556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
		1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
		667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
		333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
		556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
	}
	helveticaBoldWidths = [95]float64{
		278, 333, 474, 556, 556, 889, 722, 238, 333, 333, 389, 584, 278, 333, 278, 278,
		556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 333, 333, 584, 584, 584, 611,
		975, 722, 722, 722, 722, 667, 611, 778, 722, 278, 556, 722, 611, 833, 722, 778,
		667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 333, 278, 333, 584, 556,
		333, 556, 611, 556, 611, 556, 333, 611, 611, 278, 278, 556, 278, 889, 611, 611,
		611, 611, 389, 556, 333, 611, 556, 778, 556, 556, 500, 389, 280, 389, 584,
	}
	timesWidths = [95]float64{
		250, 333, 408, 500, 500, 833, 778, 180, 333, 333, 500, 564, 250, 333, 250, 278,
		500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 278, 278, 564, 564, 564, 444,
		921, 722, 667, 667, 722, 611, 556, 722, 722, 333, 389, 722, 611, 889, 722, 722,
		556, 722, 667, 556, 611, 722, 722, 944, 722, 722, 611, 333, 278, 333, 469, 500,
		333, 444, 500, 444, 500, 444, 333, 500, 500, 278, 278, 500, 278, 778, 500, 500,
		500, 500, 333, 389, 278, 500, 500, 722, 500, 500, 444, 480, 200, 480, 541,
	}
	timesBoldWidths = [95]float64{
		250, 333, 555, 500, 500, 1000, 833, 278, 333, 333, 500, 570, 250, 333, 250, 278,
		500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 333, 333, 570, 570, 570, 500,
		930, 722, 667, 722, 722, 667, 611, 778, 778, 389, 500, 778, 667, 944, 722, 778,
		611, 778, 722, 556, 667, 722, 722, 1000, 722, 722, 667, 333, 278, 333, 581, 500,
		333, 500, 556, 444, 556, 444, 333, 500, 556, 278, 333, 556, 278, 833, 556, 500,
		556, 556, 444, 389, 333, 556, 500, 722, 500, 500, 444, 394, 220, 394, 520,
	}
)
