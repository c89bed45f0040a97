package stamp

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/georgepadayatti/pdfcompose/internal/pdftest"
	"github.com/georgepadayatti/pdfcompose/pdf/content"
	"github.com/georgepadayatti/pdfcompose/pdf/filters"
	"github.com/georgepadayatti/pdfcompose/pdf/fonts"
	"github.com/georgepadayatti/pdfcompose/pdf/generic"
	"github.com/georgepadayatti/pdfcompose/pdf/writer"
)

func TestDefaultStyle(t *testing.T) {
	style := DefaultStyle()
	if style.Font != fonts.HelveticaBold {
		t.Errorf("Font = %q, want Helvetica-Bold", style.Font)
	}
	if style.Opacity != 0.25 {
		t.Errorf("Opacity = %v, want 0.25", style.Opacity)
	}
	if style.FontSize != 0 || style.Angle != 0 {
		t.Errorf("FontSize and Angle should default to automatic, got %+v", style)
	}
}

func TestWatermarkRender(t *testing.T) {
	wm, err := NewWatermark("COPY 1", Style{})
	if err != nil {
		t.Fatal(err)
	}
	data, err := wm.Render(612, 792)
	if err != nil {
		t.Fatal(err)
	}
	cs, err := content.Parse(data)
	if err != nil {
		t.Fatalf("Rendered content does not parse: %v", err)
	}
	var ops []content.Operator
	for _, op := range cs.Operations {
		ops = append(ops, op.Operator)
	}
	want := []content.Operator{"q", "gs", "g", "BT", "Tf", "Tm", "Tj", "ET", "Q"}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("Operators mismatch (-want +got):\n%s", diff)
	}
	if s, ok := cs.Operations[6].Operands[0].(*generic.StringObject); !ok || string(s.Value) != "COPY 1" {
		t.Errorf("Tj operand = %v", cs.Operations[6].Operands)
	}
}

func TestWatermarkEmptyLabel(t *testing.T) {
	wm, err := NewWatermark("", DefaultStyle())
	if err != nil {
		t.Fatal(err)
	}
	if got, err := wm.Render(612, 792); err != nil || len(got) != 0 {
		t.Errorf("Empty label rendered %q, %v", got, err)
	}
}

func TestWatermarkLayout(t *testing.T) {
	font, _ := fonts.NewStandardFont(fonts.HelveticaBold)

	tests := []struct {
		name          string
		style         Style
		width, height float64
		wantSize      float64
		wantAngle     float64
	}{
		{"fit letter", Style{}, 612, 792, 0, math.Atan2(792, 612)},
		{"fit landscape", Style{}, 842, 595, 0, math.Atan2(595, 842)},
		{"fixed", Style{FontSize: 20, Angle: 90}, 612, 792, 20, math.Pi / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wm, err := NewWatermark("Original", tt.style)
			if err != nil {
				t.Fatal(err)
			}
			size, m := wm.Layout(tt.width, tt.height)
			textWidth := font.StringWidth("Original", size)
			if tt.wantSize != 0 && size != tt.wantSize {
				t.Errorf("Size = %v, want %v", size, tt.wantSize)
			}
			if tt.wantSize == 0 {
				fit := 0.6 * math.Hypot(tt.width, tt.height)
				if math.Abs(textWidth-fit) > 1e-6 {
					t.Errorf("Text width = %v, want %v", textWidth, fit)
				}
			}

			// The center of the label lands on the center of the page.
			capHeight := font.Metrics().CapHeight * size / 1000
			x, y := m.Apply(textWidth/2, capHeight/2)
			if math.Abs(x-tt.width/2) > 1e-6 || math.Abs(y-tt.height/2) > 1e-6 {
				t.Errorf("Label center at (%v, %v), want (%v, %v)", x, y, tt.width/2, tt.height/2)
			}
			if got := math.Atan2(m[1], m[0]); math.Abs(got-tt.wantAngle) > 1e-9 {
				t.Errorf("Angle = %v, want %v", got, tt.wantAngle)
			}
		})
	}
}

func TestCreateExtGState(t *testing.T) {
	wm, _ := NewWatermark("x", Style{Opacity: 0.4})
	gs := wm.CreateExtGState()
	if gs.GetName("Type") != "ExtGState" {
		t.Errorf("Type = %q", gs.GetName("Type"))
	}
	for _, key := range []string{"CA", "ca"} {
		if v, _ := generic.Number(gs.Get(key)); v != 0.4 {
			t.Errorf("/%s = %v, want 0.4", key, v)
		}
	}
}

func TestStamperPlacement(t *testing.T) {
	w := writer.NewPdfFileWriter("")
	s, err := NewStamper(w, DefaultStyle())
	if err != nil {
		t.Fatal(err)
	}

	box := generic.Rectangle{LLX: 10, LLY: 20, URX: 622, URY: 812}
	first, err := s.Placement("Original", box)
	if err != nil {
		t.Fatal(err)
	}
	if want := (generic.Rectangle{URX: 612, URY: 792}); first.BBox != want {
		t.Errorf("BBox = %+v, want %+v", first.BBox, want)
	}
	if first.DX != 10 || first.DY != 20 {
		t.Errorf("Offset = (%v, %v), want (10, 20)", first.DX, first.DY)
	}

	moved, _ := s.Placement("Original", generic.Rectangle{URX: 612, URY: 792})
	if moved.Form != first.Form {
		t.Error("Same label and size should reuse the form")
	}
	other, _ := s.Placement("Copy", box)
	if other.Form == first.Form {
		t.Error("Different labels should use different forms")
	}

	form, ok := w.Object(first.Form).(*generic.StreamObject)
	if !ok {
		t.Fatalf("Form is %T, want stream", w.Object(first.Form))
	}
	if form.Dictionary.GetName("Subtype") != "Form" {
		t.Errorf("Subtype = %q, want Form", form.Dictionary.GetName("Subtype"))
	}
	if form.Dictionary.Get("Resources") != w.Object(other.Form).(*generic.StreamObject).Dictionary.Get("Resources") {
		t.Error("Forms should share one resource dictionary")
	}
	data, err := filters.DecodeStreamObject(form)
	if err != nil {
		t.Fatal(err)
	}
	cs, err := content.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Count(content.OpShowText) != 1 {
		t.Errorf("Form shows text %d times, want 1", cs.Count(content.OpShowText))
	}
}

func TestNewStamperRejectsSymbolFont(t *testing.T) {
	w := writer.NewPdfFileWriter("")
	if _, err := NewStamper(w, Style{Font: fonts.ZapfDingbats}); err == nil {
		t.Error("ZapfDingbats has no text metrics and should be rejected")
	}
}

var nonLatinLabels = []string{"Оригинал", "副本", "نسخة"}

func TestWatermarkUnencodableLabel(t *testing.T) {
	for _, label := range nonLatinLabels {
		if _, err := NewWatermark(label, DefaultStyle()); !errors.Is(err, fonts.ErrUnencodable) {
			t.Errorf("NewWatermark(%q) error = %v, want ErrUnencodable", label, err)
		}
	}

	w := writer.NewPdfFileWriter("")
	s, err := NewStamper(w, DefaultStyle())
	if err != nil {
		t.Fatal(err)
	}
	objects := w.ObjectCount()
	for _, label := range nonLatinLabels {
		if err := s.CheckLabel(label); !errors.Is(err, fonts.ErrUnencodable) {
			t.Errorf("CheckLabel(%q) error = %v, want ErrUnencodable", label, err)
		}
		if _, err := s.Placement(label, generic.Rectangle{URX: 612, URY: 792}); !errors.Is(err, fonts.ErrUnencodable) {
			t.Errorf("Placement(%q) error = %v, want ErrUnencodable", label, err)
		}
	}
	if w.ObjectCount() != objects {
		t.Errorf("Rejected labels added %d objects", w.ObjectCount()-objects)
	}
}

func TestTrueTypeWatermark(t *testing.T) {
	style := Style{FontFile: pdftest.TrueTypeFile(t)}

	wm, err := NewWatermark("Оригинал", style)
	if err != nil {
		t.Fatal(err)
	}
	data, err := wm.Render(612, 792)
	if err != nil {
		t.Fatal(err)
	}
	cs, err := content.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	var shown []byte
	for _, op := range cs.Operations {
		if op.Operator == content.OpShowText {
			s, _ := op.Operands[0].(*generic.StringObject)
			shown = s.Value
		}
	}
	if len(shown) != 2*len([]rune("Оригинал")) {
		t.Errorf("Shown %d bytes, want two per character", len(shown))
	}
	for i := 0; i+1 < len(shown); i += 2 {
		if shown[i] == 0 && shown[i+1] == 0 {
			t.Errorf("Character %d shown as the missing glyph", i/2)
		}
	}

	// Go Regular has no CJK or Arabic glyphs.
	for _, label := range nonLatinLabels[1:] {
		if _, err := NewWatermark(label, style); !errors.Is(err, fonts.ErrUnencodable) {
			t.Errorf("NewWatermark(%q) error = %v, want ErrUnencodable", label, err)
		}
	}
}

func TestStamperTrueType(t *testing.T) {
	w := writer.NewPdfFileWriter("")
	s, err := NewStamper(w, Style{FontFile: pdftest.TrueTypeFile(t)})
	if err != nil {
		t.Fatal(err)
	}
	pl, err := s.Placement("Копия", generic.Rectangle{URX: 595, URY: 842})
	if err != nil {
		t.Fatal(err)
	}
	form := w.Object(pl.Form).(*generic.StreamObject)
	resources, ok := w.Object(form.Dictionary.Get("Resources").(generic.Reference)).(*generic.DictionaryObject)
	if !ok {
		t.Fatal("Form resources are not an indirect dictionary")
	}
	fontRef, _ := resources.GetDict("Font").Get(fontResource).(generic.Reference)
	font, ok := w.Object(fontRef).(*generic.DictionaryObject)
	if !ok {
		t.Fatalf("Font resource is %T", w.Object(fontRef))
	}
	if font.GetName("Subtype") != "Type0" || font.GetName("Encoding") != "Identity-H" {
		t.Errorf("Font is /%s /%s, want Type0 Identity-H", font.GetName("Subtype"), font.GetName("Encoding"))
	}
}

func TestStyleFontFileErrors(t *testing.T) {
	w := writer.NewPdfFileWriter("")
	if _, err := NewStamper(w, Style{FontFile: "missing.ttf"}); err == nil {
		t.Error("Missing font file should be rejected")
	}
}
