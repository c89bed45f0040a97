package fonts

import (
	"bytes"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"github.com/georgepadayatti/pdfcompose/pdf/filters"
	"github.com/georgepadayatti/pdfcompose/pdf/generic"
)

// objectTable is an ObjectAdder that keeps objects in memory.
type objectTable []generic.PdfObject

func (t *objectTable) AddObject(obj generic.PdfObject) generic.Reference {
	*t = append(*t, obj)
	return generic.NewReference(len(*t), 0)
}

func (t objectTable) dict(tb testing.TB, obj generic.PdfObject) *generic.DictionaryObject {
	tb.Helper()
	if ref, ok := obj.(generic.Reference); ok {
		obj = t[ref.ObjectNumber-1]
	}
	d, ok := obj.(*generic.DictionaryObject)
	if !ok {
		tb.Fatalf("Expected dictionary, got %T", obj)
	}
	return d
}

func goRegular(t *testing.T) *TrueTypeFont {
	t.Helper()
	f, err := LoadTrueTypeFont("Go Regular", goregular.TTF)
	if err != nil {
		t.Fatalf("LoadTrueTypeFont: %v", err)
	}
	return f
}

func TestLoadTrueTypeFont(t *testing.T) {
	f := goRegular(t)
	if f.Name() == "" || f.Name() != postScriptName(f.Name()) {
		t.Errorf("Name() = %q is not a valid font name", f.Name())
	}
	if ch := f.CapHeight(); ch < 500 || ch > 1200 {
		t.Errorf("CapHeight() = %v, want a value between 500 and 1200", ch)
	}
	if f.StringWidth("", 12) != 0 {
		t.Error("Empty string should have no width")
	}
	one, two := f.StringWidth("Ж", 10), f.StringWidth("ЖЖ", 10)
	if one <= 0 || math.Abs(two-2*one) > 1e-9 {
		t.Errorf("StringWidth not additive: %v, %v", one, two)
	}
	if f.StringWidth("W", 10) <= f.StringWidth("i", 10) {
		t.Error("Go Regular is proportional: W should be wider than i")
	}
}

func TestLoadTrueTypeFontErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidFont},
		{"short", []byte{0, 1, 0, 0}, ErrInvalidFont},
		{"cff", append([]byte("OTTO"), make([]byte, 16)...), ErrUnsupportedFormat},
		{"not a font", []byte("%PDF-1.7 not a font file"), ErrUnsupportedFormat},
		{"truncated", goregular.TTF[:64], ErrInvalidFont},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTrueTypeFont("x", tt.data); !errors.Is(err, tt.want) {
				t.Errorf("LoadTrueTypeFont error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadTrueTypeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Go-Regular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTrueTypeFile(path); err != nil {
		t.Errorf("LoadTrueTypeFile: %v", err)
	}
	if _, err := LoadTrueTypeFile(filepath.Join(t.TempDir(), "missing.ttf")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Missing file error = %v, want fs.ErrNotExist", err)
	}
}

func TestTrueTypeEncode(t *testing.T) {
	f := goRegular(t)
	parsed, err := sfnt.Parse(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}

	var buf sfnt.Buffer
	for _, label := range []string{"Original", "Оригинал", "Αντίγραφο"} {
		got, err := f.Encode(label)
		if err != nil {
			t.Errorf("Encode(%q) failed: %v", label, err)
			continue
		}
		runes := []rune(label)
		if len(got) != 2*len(runes) {
			t.Fatalf("Encode(%q) gave %d bytes, want %d", label, len(got), 2*len(runes))
		}
		for i, r := range runes {
			want, _ := parsed.GlyphIndex(&buf, r)
			if gid := sfnt.GlyphIndex(got[2*i])<<8 | sfnt.GlyphIndex(got[2*i+1]); gid != want || gid == 0 {
				t.Errorf("Encode(%q)[%d] = glyph %d, want %d", label, i, gid, want)
			}
		}
	}

	for _, label := range []string{"副本", "نسخة"} {
		if _, err := f.Encode(label); !errors.Is(err, ErrUnencodable) {
			t.Errorf("Encode(%q) error = %v, want ErrUnencodable", label, err)
		}
	}
}

func TestTrueTypeEmbed(t *testing.T) {
	f := goRegular(t)
	var table objectTable
	ref, err := f.Embed(&table)
	if err != nil {
		t.Fatal(err)
	}

	type0 := table.dict(t, ref)
	for key, want := range map[string]string{
		"Type":     "Font",
		"Subtype":  "Type0",
		"Encoding": "Identity-H",
		"BaseFont": f.Name(),
	} {
		if got := type0.GetName(key); got != want {
			t.Errorf("Type0 /%s = %q, want %q", key, got, want)
		}
	}

	descendants := type0.GetArray("DescendantFonts")
	if len(descendants) != 1 {
		t.Fatalf("DescendantFonts = %v, want one font", descendants)
	}
	cid := table.dict(t, descendants[0])
	if cid.GetName("Subtype") != "CIDFontType2" || cid.GetName("CIDToGIDMap") != "Identity" {
		t.Errorf("Descendant font %v", cid)
	}
	w := cid.GetArray("W")
	if len(w) != 2 {
		t.Fatalf("W = %d entries, want a start and one width array", len(w))
	}
	widths, _ := w[1].(generic.ArrayObject)
	if len(widths) != len(f.widths) {
		t.Errorf("W covers %d glyphs, want %d", len(widths), len(f.widths))
	}
	gid, _ := f.glyphs("W")
	if got, _ := generic.Number(widths[gid[0]]); got != math.Round(f.StringWidth("W", 1000)) {
		t.Errorf("Width of W = %v, want %v", got, math.Round(f.StringWidth("W", 1000)))
	}

	descriptor := table.dict(t, cid.Get("FontDescriptor"))
	if descriptor.GetName("FontName") != f.Name() {
		t.Errorf("FontName = %q, want %q", descriptor.GetName("FontName"), f.Name())
	}
	if ascent, _ := descriptor.GetInt("Ascent"); ascent <= 0 {
		t.Errorf("Ascent = %d, want positive", ascent)
	}
	if descent, _ := descriptor.GetInt("Descent"); descent >= 0 {
		t.Errorf("Descent = %d, want negative", descent)
	}
	fileRef, _ := descriptor.Get("FontFile2").(generic.Reference)
	file, ok := table[fileRef.ObjectNumber-1].(*generic.StreamObject)
	if !ok {
		t.Fatalf("FontFile2 is %T, want stream", table[fileRef.ObjectNumber-1])
	}
	if n, _ := file.Dictionary.GetInt("Length1"); int(n) != len(goregular.TTF) {
		t.Errorf("Length1 = %d, want %d", n, len(goregular.TTF))
	}
	program, err := filters.DecodeStreamObject(file)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(program, goregular.TTF) {
		t.Error("Embedded program differs from the font file")
	}
}

func TestStandardEmbed(t *testing.T) {
	f, _ := NewStandardFont(Times)
	var table objectTable
	ref, err := f.Embed(&table)
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 1 {
		t.Errorf("Standard font added %d objects, want 1", len(table))
	}
	if got := table.dict(t, ref).GetName("BaseFont"); got != "Times-Roman" {
		t.Errorf("BaseFont = %q, want Times-Roman", got)
	}
}

func TestPostScriptName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"GoRegular", "GoRegular"},
		{"Go Regular", "GoRegular"},
		{"Noto Sans (CJK)", "NotoSansCJK"},
		{"Times-Bold_1", "Times-Bold_1"},
		{"日本", "EmbeddedFont"},
	}
	for _, tt := range tests {
		if got := postScriptName(tt.in); got != tt.want {
			t.Errorf("postScriptName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
