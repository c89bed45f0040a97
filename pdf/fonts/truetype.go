package fonts

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/georgepadayatti/pdfcompose/pdf/filters"
	"github.com/georgepadayatti/pdfcompose/pdf/generic"
)

// TrueTypeFont is an embedded TrueType font. It is shown through a Type 0
// font with Identity-H encoding, so every character is a two byte glyph ID
// and any script the font covers can be drawn.
type TrueTypeFont struct {
	name   string
	data   []byte
	parsed *sfnt.Font

	unitsPerEm float64
	// widths holds glyph advances in font units, indexed by glyph ID.
	widths    []float64
	bbox      generic.Rectangle
	ascent    float64
	descent   float64
	capHeight float64
}

// LoadTrueTypeFont parses a TrueType font. name is used when the font has
// no PostScript name of its own. Fonts with CFF outlines are rejected.
func LoadTrueTypeFont(name string, data []byte) (*TrueTypeFont, error) {
	if len(data) < 12 {
		return nil, ErrInvalidFont
	}
	switch string(data[:4]) {
	case "\x00\x01\x00\x00", "true":
	case "OTTO":
		return nil, fmt.Errorf("%w: CFF outlines", ErrUnsupportedFormat)
	default:
		return nil, ErrUnsupportedFormat
	}

	sf, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFont, err)
	}
	var buf sfnt.Buffer
	upem := int(sf.UnitsPerEm())
	if upem <= 0 {
		return nil, fmt.Errorf("%w: units per em %d", ErrInvalidFont, upem)
	}
	// At one pixel per font unit every value below is in font units.
	ppem := fixed.I(upem)

	f := &TrueTypeFont{
		name:       name,
		data:       data,
		parsed:     sf,
		unitsPerEm: float64(upem),
		widths:     make([]float64, sf.NumGlyphs()),
	}
	if ps, err := sf.Name(&buf, sfnt.NameIDPostScript); err == nil && ps != "" {
		f.name = ps
	}
	f.name = postScriptName(f.name)

	for gid := range f.widths {
		adv, err := sf.GlyphAdvance(&buf, sfnt.GlyphIndex(gid), ppem, font.HintingNone)
		if err != nil {
			return nil, fmt.Errorf("%w: advance of glyph %d: %v", ErrInvalidFont, gid, err)
		}
		f.widths[gid] = fixedToFloat(adv)
	}

	m, err := sf.Metrics(&buf, ppem, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFont, err)
	}
	f.ascent = fixedToFloat(m.Ascent)
	f.descent = -fixedToFloat(m.Descent)
	f.capHeight = fixedToFloat(m.CapHeight)
	if f.capHeight <= 0 {
		f.capHeight = f.ascent
	}

	// sfnt bounds grow downwards.
	b, err := sf.Bounds(&buf, ppem, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFont, err)
	}
	f.bbox = generic.Rectangle{
		LLX: fixedToFloat(b.Min.X),
		LLY: -fixedToFloat(b.Max.Y),
		URX: fixedToFloat(b.Max.X),
		URY: -fixedToFloat(b.Min.Y),
	}
	return f, nil
}

// LoadTrueTypeFile loads a TrueType font from a file.
func LoadTrueTypeFile(path string) (*TrueTypeFont, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	f, err := LoadTrueTypeFont(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Name returns the PostScript name of the font.
func (f *TrueTypeFont) Name() string {
	return f.name
}

// CapHeight implements Font.
func (f *TrueTypeFont) CapHeight() float64 {
	return f.toText(f.capHeight)
}

// Encode returns the big-endian glyph IDs of s.
func (f *TrueTypeFont) Encode(s string) ([]byte, error) {
	gids, err := f.glyphs(s)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 2*len(gids))
	for _, gid := range gids {
		out = append(out, byte(gid>>8), byte(gid))
	}
	return out, nil
}

// StringWidth returns the width of s set at size points. Characters
// without a glyph count with the width of the missing glyph.
func (f *TrueTypeFont) StringWidth(s string, size float64) float64 {
	var buf sfnt.Buffer
	var w float64
	for _, r := range s {
		gid, _ := f.parsed.GlyphIndex(&buf, r)
		if int(gid) < len(f.widths) {
			w += f.widths[gid]
		}
	}
	return f.toText(w) * size / 1000
}

// glyphs maps s to glyph IDs. Glyph 0 is .notdef, which a font uses for
// characters it does not cover.
func (f *TrueTypeFont) glyphs(s string) ([]sfnt.GlyphIndex, error) {
	var buf sfnt.Buffer
	gids := make([]sfnt.GlyphIndex, 0, len(s))
	for _, r := range s {
		gid, err := f.parsed.GlyphIndex(&buf, r)
		if err != nil || gid == 0 {
			return nil, fmt.Errorf("%w: %q in %s has no glyph for %q", ErrUnencodable, s, f.name, r)
		}
		gids = append(gids, gid)
	}
	return gids, nil
}

// toText converts font units to thousandths of the font size.
func (f *TrueTypeFont) toText(v float64) float64 {
	return v * 1000 / f.unitsPerEm
}

// Embed writes the font program, its descriptor and the CIDFontType2
// descendant, and returns the Type 0 font. The whole font is embedded.
func (f *TrueTypeFont) Embed(w ObjectAdder) (generic.Reference, error) {
	program, err := filters.FlateEncode(f.data)
	if err != nil {
		return generic.Reference{}, fmt.Errorf("embedding %s: %w", f.name, err)
	}
	file := generic.NewStream(nil, program)
	file.Dictionary.Set("Filter", generic.NameObject("FlateDecode"))
	file.Dictionary.Set("Length1", generic.IntegerObject(len(f.data)))

	bbox := generic.Rectangle{
		LLX: math.Round(f.toText(f.bbox.LLX)),
		LLY: math.Round(f.toText(f.bbox.LLY)),
		URX: math.Round(f.toText(f.bbox.URX)),
		URY: math.Round(f.toText(f.bbox.URY)),
	}
	descriptor := generic.NewDictionary()
	descriptor.Set("Type", generic.NameObject("FontDescriptor"))
	descriptor.Set("FontName", generic.NameObject(f.name))
	descriptor.Set("Flags", generic.IntegerObject(32)) // nonsymbolic
	descriptor.Set("FontBBox", bbox.ToArray())
	descriptor.Set("ItalicAngle", generic.IntegerObject(0))
	descriptor.Set("Ascent", generic.IntegerObject(math.Round(f.toText(f.ascent))))
	descriptor.Set("Descent", generic.IntegerObject(math.Round(f.toText(f.descent))))
	descriptor.Set("CapHeight", generic.IntegerObject(math.Round(f.CapHeight())))
	// Not stored in sfnt files.
	descriptor.Set("StemV", generic.IntegerObject(80))
	descriptor.Set("FontFile2", w.AddObject(file))

	widths := make(generic.ArrayObject, len(f.widths))
	for i, adv := range f.widths {
		widths[i] = generic.IntegerObject(math.Round(f.toText(adv)))
	}
	sysInfo := generic.NewDictionary()
	sysInfo.Set("Registry", generic.NewLiteralString("Adobe"))
	sysInfo.Set("Ordering", generic.NewLiteralString("Identity"))
	sysInfo.Set("Supplement", generic.IntegerObject(0))

	cidFont := generic.NewDictionary()
	cidFont.Set("Type", generic.NameObject("Font"))
	cidFont.Set("Subtype", generic.NameObject("CIDFontType2"))
	cidFont.Set("BaseFont", generic.NameObject(f.name))
	cidFont.Set("CIDSystemInfo", sysInfo)
	cidFont.Set("FontDescriptor", w.AddObject(descriptor))
	cidFont.Set("W", generic.ArrayObject{generic.IntegerObject(0), widths})
	cidFont.Set("CIDToGIDMap", generic.NameObject("Identity"))

	type0 := generic.NewDictionary()
	type0.Set("Type", generic.NameObject("Font"))
	type0.Set("Subtype", generic.NameObject("Type0"))
	type0.Set("BaseFont", generic.NameObject(f.name))
	type0.Set("Encoding", generic.NameObject("Identity-H"))
	type0.Set("DescendantFonts", generic.ArrayObject{w.AddObject(cidFont)})
	return w.AddObject(type0), nil
}

// postScriptName keeps the characters allowed in a font name.
func postScriptName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, name)
	if clean == "" {
		return "EmbeddedFont"
	}
	return clean
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
