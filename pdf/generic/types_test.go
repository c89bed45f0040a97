package generic

import (
	"bytes"
	"errors"
	"testing"
)

func writeString(t *testing.T, obj PdfObject) string {
	t.Helper()
	var buf bytes.Buffer
	if err := obj.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return buf.String()
}

func TestObjectWrite(t *testing.T) {
	dict := NewDictionary()
	dict.Set("Type", NameObject("Page"))
	dict.Set("Count", IntegerObject(3))

	tests := []struct {
		obj      PdfObject
		expected string
	}{
		{NullObject{}, "null"},
		{BooleanObject(true), "true"},
		{IntegerObject(-42), "-42"},
		{RealObject(1.5), "1.5"},
		{RealObject(2), "2"},
		{RealObject(-0.000001), "0"},
		{RealObject(0.123456), "0.12346"},
		{NameObject("Type"), "/Type"},
		{NameObject("A B#"), "/A#20B#23"},
		{NewLiteralString("a(b)"), `(a\(b\))`},
		{NewHexString([]byte{0xAB, 0x01}), "<ab01>"},
		{ArrayObject{IntegerObject(1), nil, NameObject("X")}, "[1 null /X]"},
		{dict, "<< /Type /Page /Count 3 >>"},
		{NewReference(5, 0), "5 0 R"},
		{NewIndirectObject(7, 0, IntegerObject(1)), "7 0 obj\n1\nendobj\n"},
	}

	for _, tt := range tests {
		if got := writeString(t, tt.obj); got != tt.expected {
			t.Errorf("Write(%#v) = %q, want %q", tt.obj, got, tt.expected)
		}
	}
}

func TestTextString(t *testing.T) {
	ascii := NewTextString("Copy 1")
	if string(ascii.Value) != "Copy 1" {
		t.Errorf("ASCII text should stay as-is, got %q", ascii.Value)
	}

	for _, s := range []string{"Kopie für Anna", "契約 𝄞"} {
		obj := NewTextString(s)
		if !bytes.HasPrefix(obj.Value, []byte{0xFE, 0xFF}) {
			t.Errorf("Expected UTF-16 BOM for %q", s)
		}
		if obj.Text() != s {
			t.Errorf("Text() = %q, want %q", obj.Text(), s)
		}
	}
}

func TestDictionaryOrderAndDelete(t *testing.T) {
	d := NewDictionary()
	d.Set("B", IntegerObject(1))
	d.Set("A", IntegerObject(2))
	d.Set("B", IntegerObject(3))
	d.Delete("A")
	d.Set("C", IntegerObject(4))

	keys := d.Keys()
	if len(keys) != 2 || keys[0] != "B" || keys[1] != "C" {
		t.Errorf("Keys() = %v", keys)
	}
	if v, _ := d.GetInt("B"); v != 3 {
		t.Errorf("B = %d, want 3", v)
	}
	keys[0] = "Z"
	if d.Keys()[0] != "B" {
		t.Error("Keys() must return a copy")
	}
}

func TestStreamWriteRewritesLength(t *testing.T) {
	dict := NewDictionary()
	dict.Set("Length", IntegerObject(999))
	s := NewStream(dict, []byte("abc"))

	got := writeString(t, s)
	want := "<< /Length 3 >>\nstream\nabc\nendstream"
	if got != want {
		t.Errorf("Write = %q, want %q", got, want)
	}
	if v, _ := dict.GetInt("Length"); v != 999 {
		t.Error("Write must not mutate the stream dictionary")
	}
}

func TestStreamFilters(t *testing.T) {
	single := NewStream(nil, nil)
	single.Dictionary.Set("Filter", NameObject("FlateDecode"))
	if f := single.Filters(); len(f) != 1 || f[0] != "FlateDecode" {
		t.Errorf("Filters() = %v", f)
	}

	chain := NewStream(nil, nil)
	chain.Dictionary.Set("Filter", ArrayObject{NameObject("ASCIIHexDecode"), NameObject("FlateDecode")})
	if f := chain.Filters(); len(f) != 2 {
		t.Errorf("Filters() = %v", f)
	}
}

func TestRectangleNormalizes(t *testing.T) {
	r, err := NewRectangle(ArrayObject{IntegerObject(600), RealObject(800), IntegerObject(0), IntegerObject(0)})
	if err != nil {
		t.Fatalf("NewRectangle failed: %v", err)
	}
	if r.LLX != 0 || r.LLY != 0 || r.URX != 600 || r.URY != 800 {
		t.Errorf("Unexpected rectangle %+v", r)
	}
	if _, err := NewRectangle(ArrayObject{IntegerObject(1)}); err == nil {
		t.Error("Expected error for short array")
	}
	if _, err := NewRectangle(ArrayObject{IntegerObject(1), IntegerObject(1), NameObject("x"), IntegerObject(1)}); err == nil {
		t.Error("Expected error for non-numeric element")
	}
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewDictionary()
	inner.Set("X", IntegerObject(1))
	outer := NewDictionary()
	outer.Set("Inner", inner)
	outer.Set("Arr", ArrayObject{NewLiteralString("s")})

	clone := outer.Clone().(*DictionaryObject)
	clone.GetDict("Inner").Set("X", IntegerObject(2))
	clone.GetArray("Arr")[0].(*StringObject).Value[0] = 'z'

	if v, _ := inner.GetInt("X"); v != 1 {
		t.Error("Clone shares nested dictionary")
	}
	if string(outer.GetArray("Arr")[0].(*StringObject).Value) != "s" {
		t.Error("Clone shares nested string bytes")
	}
}

type mapResolver map[int]PdfObject

func (m mapResolver) GetObject(n int) (PdfObject, error) {
	if obj, ok := m[n]; ok {
		return obj, nil
	}
	return nil, errors.New("missing")
}

func TestResolve(t *testing.T) {
	r := mapResolver{1: NewReference(2, 0), 2: IntegerObject(9), 3: NewReference(3, 0)}

	obj, err := Resolve(r, NewReference(1, 0))
	if err != nil || obj != IntegerObject(9) {
		t.Errorf("Resolve = %v, %v", obj, err)
	}
	if _, err := Resolve(r, NewReference(3, 0)); !errors.Is(err, ErrInvalidReference) {
		t.Errorf("Expected cycle error, got %v", err)
	}
	if obj, err := Resolve(nil, IntegerObject(4)); err != nil || obj != IntegerObject(4) {
		t.Errorf("Direct objects resolve to themselves, got %v, %v", obj, err)
	}
}

func TestTrailerDictionary(t *testing.T) {
	tr := NewTrailer()
	tr.Set("Root", NewReference(1, 0))
	tr.Set("Size", IntegerObject(10))
	tr.Set("ID", ArrayObject{NewHexString([]byte{1, 2}), NewHexString([]byte{1, 2})})

	if root := tr.GetRoot(); root == nil || root.ObjectNumber != 1 {
		t.Errorf("GetRoot() = %v", root)
	}
	if tr.GetInfo() != nil {
		t.Error("GetInfo() should be nil")
	}
	if tr.GetSize() != 10 {
		t.Errorf("GetSize() = %d", tr.GetSize())
	}
	if !bytes.Equal(tr.FirstID(), []byte{1, 2}) {
		t.Errorf("FirstID() = %v", tr.FirstID())
	}
}
