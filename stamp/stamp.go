// Package stamp draws copy labels as watermarks over composed pages.
package stamp

import (
	"fmt"
	"math"

	"github.com/georgepadayatti/pdfcompose/pdf/content"
	"github.com/georgepadayatti/pdfcompose/pdf/fonts"
	"github.com/georgepadayatti/pdfcompose/pdf/generic"
	"github.com/georgepadayatti/pdfcompose/pdf/writer"
)

// Resource names used inside watermark forms.
const (
	fontResource   = "F1"
	gstateResource = "GS1"
)

// Style configures the appearance of a watermark.
type Style struct {
	// Font is one of the standard fonts with text metrics. It can only
	// show labels in Windows-1252.
	Font fonts.StandardFont
	// FontFile is a TrueType font to embed instead of Font, for labels in
	// other scripts.
	FontFile string
	// FontSize in points. Zero fits the label to 60% of the page diagonal.
	FontSize float64
	// Opacity applies to both fill and stroke, 0-1.
	Opacity float64
	// Gray is the fill color, 0 (black) to 1 (white).
	Gray float64
	// Angle in degrees counter-clockwise. Zero follows the page diagonal.
	Angle float64
}

// DefaultStyle returns the default watermark style.
func DefaultStyle() Style {
	return Style{
		Font:    fonts.HelveticaBold,
		Opacity: 0.25,
		Gray:    0.5,
	}
}

// withDefaults fills zero fields from DefaultStyle.
func (s Style) withDefaults() Style {
	d := DefaultStyle()
	if s.Font == "" {
		s.Font = d.Font
	}
	if s.Opacity <= 0 || s.Opacity > 1 {
		s.Opacity = d.Opacity
	}
	if s.Gray < 0 || s.Gray > 1 {
		s.Gray = d.Gray
	}
	return s
}

// loadFont returns the font FontFile names, or the standard Font.
func (s Style) loadFont() (fonts.Font, error) {
	if s.FontFile != "" {
		f, err := fonts.LoadTrueTypeFile(s.FontFile)
		if err != nil {
			return nil, fmt.Errorf("watermark font: %w", err)
		}
		return f, nil
	}
	f, err := fonts.NewStandardFont(s.Font)
	if err != nil {
		return nil, fmt.Errorf("watermark font: %w", err)
	}
	return f, nil
}

// Watermark renders one label for pages of one size.
type Watermark struct {
	Label string
	Style Style
	font  fonts.Font
}

// NewWatermark creates a watermark for label. It fails with
// fonts.ErrUnencodable when the style's font cannot show the label.
func NewWatermark(label string, style Style) (*Watermark, error) {
	style = style.withDefaults()
	font, err := style.loadFont()
	if err != nil {
		return nil, err
	}
	if err := checkLabel(font, label); err != nil {
		return nil, err
	}
	return &Watermark{Label: label, Style: style, font: font}, nil
}

func checkLabel(font fonts.Font, label string) error {
	if _, err := font.Encode(label); err != nil {
		return fmt.Errorf("watermark %q: %w", label, err)
	}
	return nil
}

// Layout returns the font size and the matrix that maps text space onto a
// page of the given size, centering the label.
func (w *Watermark) Layout(width, height float64) (float64, content.Matrix) {
	angle := math.Atan2(height, width)
	if w.Style.Angle != 0 {
		angle = w.Style.Angle * math.Pi / 180
	}

	size := w.Style.FontSize
	if unit := w.font.StringWidth(w.Label, 1); size <= 0 && unit > 0 {
		size = 0.6 * math.Hypot(width, height) / unit
	}
	textWidth := w.font.StringWidth(w.Label, size)
	capHeight := w.font.CapHeight() * size / 1000

	m := content.Translation(-textWidth/2, -capHeight/2).
		Multiply(content.Rotation(angle)).
		Multiply(content.Translation(width/2, height/2))
	return size, m
}

// Render renders the watermark content for a page of the given size.
func (w *Watermark) Render(width, height float64) ([]byte, error) {
	if w.Label == "" {
		return nil, nil
	}
	text, err := w.font.Encode(w.Label)
	if err != nil {
		return nil, fmt.Errorf("watermark %q: %w", w.Label, err)
	}
	size, m := w.Layout(width, height)
	return content.NewBuilder().
		SaveState().
		SetGState(gstateResource).
		SetFillGray(w.Style.Gray).
		BeginText().
		SetFont(fontResource, size).
		SetTextMatrix(m).
		ShowText(text).
		EndText().
		RestoreState().
		Render(), nil
}

// CreateExtGState creates the external graphics state for transparency.
func (w *Watermark) CreateExtGState() *generic.DictionaryObject {
	gs := generic.NewDictionary()
	gs.Set("Type", generic.NameObject("ExtGState"))
	gs.Set("CA", generic.RealObject(w.Style.Opacity))
	gs.Set("ca", generic.RealObject(w.Style.Opacity))
	return gs
}

type formKey struct {
	label         string
	width, height float64
}

// Stamper adds watermark forms to a document. Each (label, page size)
// pair becomes one Form XObject; font and graphics state are shared.
type Stamper struct {
	w     *writer.PdfFileWriter
	style Style
	font  fonts.Font

	resources generic.Reference
	forms     map[formKey]generic.Reference
}

// NewStamper creates a stamper writing into w.
func NewStamper(w *writer.PdfFileWriter, style Style) (*Stamper, error) {
	style = style.withDefaults()
	font, err := style.loadFont()
	if err != nil {
		return nil, err
	}
	return &Stamper{w: w, style: style, font: font, forms: make(map[formKey]generic.Reference)}, nil
}

// CheckLabel reports whether the stamper's font can show label.
func (s *Stamper) CheckLabel(label string) error {
	return checkLabel(s.font, label)
}

func (s *Stamper) sharedResources() (generic.Reference, error) {
	if s.resources.ObjectNumber != 0 {
		return s.resources, nil
	}
	wm := &Watermark{Style: s.style, font: s.font}

	fontRef, err := s.font.Embed(s.w)
	if err != nil {
		return generic.Reference{}, fmt.Errorf("watermark font: %w", err)
	}
	fontsDict := generic.NewDictionary()
	fontsDict.Set(fontResource, fontRef)
	gstates := generic.NewDictionary()
	gstates.Set(gstateResource, s.w.AddObject(wm.CreateExtGState()))

	res := generic.NewDictionary()
	res.Set("Font", fontsDict)
	res.Set("ExtGState", gstates)
	s.resources = s.w.AddObject(res)
	return s.resources, nil
}

// Placement returns a placement that draws label over a page with the
// given box, adding the form on first use.
func (s *Stamper) Placement(label string, box generic.Rectangle) (writer.Placement, error) {
	bbox := generic.Rectangle{URX: box.Width(), URY: box.Height()}
	key := formKey{label: label, width: bbox.URX, height: bbox.URY}

	ref, ok := s.forms[key]
	if !ok {
		wm := &Watermark{Label: label, Style: s.style, font: s.font}
		data, err := wm.Render(bbox.URX, bbox.URY)
		if err != nil {
			return writer.Placement{}, err
		}
		resources, err := s.sharedResources()
		if err != nil {
			return writer.Placement{}, err
		}
		dict := generic.NewDictionary()
		dict.Set("Type", generic.NameObject("XObject"))
		dict.Set("Subtype", generic.NameObject("Form"))
		dict.Set("BBox", bbox.ToArray())
		dict.Set("Resources", resources)
		form, err := writer.NewFlateStream(dict, data)
		if err != nil {
			return writer.Placement{}, fmt.Errorf("watermark %q: %w", label, err)
		}
		ref = s.w.AddObject(form)
		s.forms[key] = ref
	}
	return writer.Placement{Form: ref, BBox: bbox, DX: box.LLX, DY: box.LLY}, nil
}
