package generic

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseScalars(t *testing.T) {
	tests := []struct {
		input    string
		expected PdfObject
	}{
		{"null", NullObject{}},
		{"true", BooleanObject(true)},
		{"false", BooleanObject(false)},
		{"0", IntegerObject(0)},
		{"-123", IntegerObject(-123)},
		{"+456", IntegerObject(456)},
		{"3.5", RealObject(3.5)},
		{"-.25", RealObject(-0.25)},
		{"/Type", NameObject("Type")},
		{"/A#20B", NameObject("A B")},
	}

	for _, tt := range tests {
		obj, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Fatalf("ParseObject(%q) failed: %v", tt.input, err)
		}
		if obj != tt.expected {
			t.Errorf("ParseObject(%q) = %#v, want %#v", tt.input, obj, tt.expected)
		}
	}
}

func TestParseLiteralString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"(Hello)", "Hello"},
		{"(a (nested) b)", "a (nested) b"},
		{`(line\nbreak)`, "line\nbreak"},
		{`(esc\(aped\))`, "esc(aped)"},
		{`(\101\102)`, "AB"},
		{"(split\\\nline)", "splitline"},
	}

	for _, tt := range tests {
		obj, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Fatalf("ParseObject(%q) failed: %v", tt.input, err)
		}
		s, ok := obj.(*StringObject)
		if !ok {
			t.Fatalf("Expected *StringObject, got %T", obj)
		}
		if string(s.Value) != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, s.Value)
		}
	}
}

func TestParseHexString(t *testing.T) {
	obj, err := NewParserFromBytes([]byte("<48 65 6C6C 6F7>")).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	s := obj.(*StringObject)
	if !s.IsHex {
		t.Error("Expected hex string")
	}
	if !bytes.Equal(s.Value, []byte("Hellp")) {
		t.Errorf("Expected 'Hellp', got %q", s.Value)
	}
}

func TestParseContainers(t *testing.T) {
	input := "<< /Type /Page /MediaBox [0 0 612.0 792] /Parent 3 0 R /Kids [1 0 R 2 0 R] /Gone null /Sub << /A 1 >> >>"
	obj, err := NewParserFromBytes([]byte(input)).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	dict, ok := obj.(*DictionaryObject)
	if !ok {
		t.Fatalf("Expected dictionary, got %T", obj)
	}
	if dict.GetName("Type") != "Page" {
		t.Errorf("Type = %q", dict.GetName("Type"))
	}
	if dict.Has("Gone") {
		t.Error("null entries should be dropped")
	}
	if ref, ok := dict.Get("Parent").(Reference); !ok || ref.ObjectNumber != 3 {
		t.Errorf("Parent = %#v", dict.Get("Parent"))
	}
	if kids := dict.GetArray("Kids"); len(kids) != 2 {
		t.Errorf("Kids has %d entries, want 2", len(kids))
	}
	box, err := ParseRectangle(dict.Get("MediaBox"))
	if err != nil {
		t.Fatalf("ParseRectangle failed: %v", err)
	}
	if box.Width() != 612 || box.Height() != 792 {
		t.Errorf("Unexpected box %+v", box)
	}
	if v, _ := dict.GetDict("Sub").GetInt("A"); v != 1 {
		t.Errorf("Sub/A = %d", v)
	}
}

func TestParseNumbersAreNotReferences(t *testing.T) {
	p := NewParserFromBytes([]byte("[1 2 3 0 R 4]"))
	obj, err := p.ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	arr := obj.(ArrayObject)
	if len(arr) != 4 {
		t.Fatalf("Expected 4 items, got %d: %#v", len(arr), arr)
	}
	if arr[0] != IntegerObject(1) {
		t.Errorf("arr[0] = %#v", arr[0])
	}
	if arr[2] != (Reference{ObjectNumber: 3}) {
		t.Errorf("arr[2] = %#v", arr[2])
	}
}

func TestParseWhitespaceAndComments(t *testing.T) {
	obj, err := NewParserFromBytes([]byte("  % comment\n\r\t 42")).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	if obj != IntegerObject(42) {
		t.Errorf("Expected 42, got %#v", obj)
	}
}

func TestParseIndirectObject(t *testing.T) {
	p := NewParserFromBytes([]byte("12 0 obj\n<< /A (x) >>\nendobj"))
	ind, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if ind.ObjectNumber != 12 || ind.GenerationNumber != 0 {
		t.Errorf("Unexpected header %d %d", ind.ObjectNumber, ind.GenerationNumber)
	}
	if _, ok := ind.Object.(*DictionaryObject); !ok {
		t.Errorf("Expected dictionary, got %T", ind.Object)
	}
}

func TestParseStream(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"direct length", "1 0 obj\n<< /Length 5 >>\nstream\nhello\nendstream\nendobj"},
		{"wrong length", "1 0 obj\n<< /Length 99 >>\nstream\nhello\nendstream\nendobj"},
		{"indirect length", "1 0 obj\n<< /Length 7 0 R >>\nstream\r\nhello\r\nendstream\nendobj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParserFromBytes([]byte(tt.input))
			p.ResolveLength = func(ref Reference) (int64, bool) {
				if ref.ObjectNumber == 7 {
					return 5, true
				}
				return 0, false
			}
			ind, err := p.ParseIndirectObject()
			if err != nil {
				t.Fatalf("ParseIndirectObject failed: %v", err)
			}
			stream, ok := ind.Object.(*StreamObject)
			if !ok {
				t.Fatalf("Expected stream, got %T", ind.Object)
			}
			if string(stream.Data) != "hello" {
				t.Errorf("Expected 'hello', got %q", stream.Data)
			}
		})
	}
}

func TestParseStreamWithoutEndstream(t *testing.T) {
	p := NewParserFromBytes([]byte("1 0 obj\n<< >>\nstream\nhello"))
	_, err := p.ParseIndirectObject()
	if !errors.Is(err, ErrInvalidStream) {
		t.Errorf("Expected ErrInvalidStream, got %v", err)
	}
}

func TestParseNestingLimit(t *testing.T) {
	input := bytes.Repeat([]byte("["), maxNesting+1)
	_, err := NewParserFromBytes(input).ParseObject()
	if !errors.Is(err, ErrInvalidArray) {
		t.Errorf("Expected ErrInvalidArray, got %v", err)
	}
}

func TestRoundTripThroughWriter(t *testing.T) {
	dict := NewDictionary()
	dict.Set("Type", NameObject("XObject"))
	dict.Set("BBox", Rectangle{0, 0, 100, 50.5}.ToArray())
	dict.Set("Text", NewLiteralString("a(b)c\\"))
	dict.Set("Ref", NewReference(4, 0))

	var buf bytes.Buffer
	if err := dict.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	obj, err := NewParserFromBytes(buf.Bytes()).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject(%q) failed: %v", buf.String(), err)
	}
	parsed := obj.(*DictionaryObject)
	if s := parsed.Get("Text").(*StringObject); string(s.Value) != "a(b)c\\" {
		t.Errorf("Text = %q", s.Value)
	}
	box, _ := ParseRectangle(parsed.Get("BBox"))
	if box.URY != 50.5 {
		t.Errorf("BBox = %+v", box)
	}
}
