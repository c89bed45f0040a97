package reader

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/georgepadayatti/pdfcompose/pdf/generic"
)

// XRefType represents different types of cross-reference entries.
type XRefType int

const (
	// XRefTypeFree represents a freeing instruction.
	XRefTypeFree XRefType = iota
	// XRefTypeStandard represents a regular top-level object.
	XRefTypeStandard
	// XRefTypeInObjStream represents an object that's part of an object stream.
	XRefTypeInObjStream
)

// String returns the string representation of the XRef type.
func (t XRefType) String() string {
	switch t {
	case XRefTypeFree:
		return "free"
	case XRefTypeStandard:
		return "standard"
	case XRefTypeInObjStream:
		return "in_obj_stream"
	default:
		return "unknown"
	}
}

// XRefEntry locates one object. For standard entries Offset is the byte
// offset; for object stream entries StreamObject and Index locate it.
type XRefEntry struct {
	Type         XRefType
	Offset       int64
	Generation   int
	StreamObject int
	Index        int
}

// XRefSection is one xref table or stream together with its trailer.
type XRefSection struct {
	Entries map[int]XRefEntry
	Trailer *generic.TrailerDictionary
}

// parseXRefTable parses a classic table starting at the "xref" keyword,
// followed by its trailer dictionary.
func parseXRefTable(data []byte, offset int) (*XRefSection, error) {
	p := generic.NewParserFromBytes(data)
	p.Seek(offset)
	if kw := p.ReadKeyword(); kw != "xref" {
		return nil, fmt.Errorf("%w: expected 'xref', got %q", ErrInvalidXRef, kw)
	}

	section := &XRefSection{Entries: make(map[int]XRefEntry)}
	for {
		save := p.Position()
		if p.ReadKeyword() == "trailer" {
			break
		}
		p.Seek(save)

		start, err := readInt(p)
		if err != nil {
			return nil, fmt.Errorf("%w: subsection header: %v", ErrInvalidXRef, err)
		}
		count, err := readInt(p)
		if err != nil {
			return nil, fmt.Errorf("%w: subsection header: %v", ErrInvalidXRef, err)
		}
		for i := 0; i < count; i++ {
			off, err1 := readInt(p)
			gen, err2 := readInt(p)
			status := p.ReadKeyword()
			if err1 != nil || err2 != nil || (status != "n" && status != "f") {
				return nil, fmt.Errorf("%w: malformed entry for object %d", ErrInvalidXRef, start+i)
			}
			entry := XRefEntry{Type: XRefTypeFree, Offset: int64(off), Generation: gen}
			if status == "n" {
				entry.Type = XRefTypeStandard
			}
			if _, seen := section.Entries[start+i]; !seen {
				section.Entries[start+i] = entry
			}
		}
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse trailer: %w", err)
	}
	dict, ok := obj.(*generic.DictionaryObject)
	if !ok {
		return nil, fmt.Errorf("%w: trailer must be dictionary", ErrInvalidXRef)
	}
	section.Trailer = &generic.TrailerDictionary{DictionaryObject: dict}
	return section, nil
}

func readInt(p *generic.Parser) (int, error) {
	obj, err := p.ParseObject()
	if err != nil {
		return 0, err
	}
	v, ok := obj.(generic.IntegerObject)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %T", obj)
	}
	return int(v), nil
}

// parseXRefStream decodes the entries of an xref stream. data is the
// stream's decoded content.
func parseXRefStream(dict *generic.DictionaryObject, data []byte) (*XRefSection, error) {
	wArray := dict.GetArray("W")
	if len(wArray) != 3 {
		return nil, fmt.Errorf("%w: invalid W array", ErrInvalidXRef)
	}
	var w [3]int
	for i, v := range wArray {
		n, ok := v.(generic.IntegerObject)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("%w: invalid W array", ErrInvalidXRef)
		}
		w[i] = int(n)
	}
	entrySize := w[0] + w[1] + w[2]
	if entrySize == 0 {
		return nil, fmt.Errorf("%w: zero entry size", ErrInvalidXRef)
	}

	var subsections [][2]int
	if index := dict.GetArray("Index"); index != nil {
		for i := 0; i+1 < len(index); i += 2 {
			start, _ := index[i].(generic.IntegerObject)
			count, _ := index[i+1].(generic.IntegerObject)
			subsections = append(subsections, [2]int{int(start), int(count)})
		}
	} else {
		size, _ := dict.GetInt("Size")
		subsections = [][2]int{{0, int(size)}}
	}

	section := &XRefSection{
		Entries: make(map[int]XRefEntry),
		Trailer: &generic.TrailerDictionary{DictionaryObject: dict},
	}
	pos := 0
	for _, sub := range subsections {
		for i := 0; i < sub[1] && pos+entrySize <= len(data); i++ {
			row := data[pos : pos+entrySize]
			pos += entrySize

			typ := int64(1)
			if w[0] > 0 {
				typ = readField(row[:w[0]])
			}
			f2 := readField(row[w[0] : w[0]+w[1]])
			f3 := readField(row[w[0]+w[1]:])

			var entry XRefEntry
			switch typ {
			case 0:
				entry = XRefEntry{Type: XRefTypeFree, Offset: f2, Generation: int(f3)}
			case 1:
				entry = XRefEntry{Type: XRefTypeStandard, Offset: f2, Generation: int(f3)}
			case 2:
				entry = XRefEntry{Type: XRefTypeInObjStream, StreamObject: int(f2), Index: int(f3)}
			default:
				continue
			}
			section.Entries[sub[0]+i] = entry
		}
	}
	return section, nil
}

// readField reads a big-endian unsigned field.
func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// objectStream is a decoded object stream: N pairs of object number and
// offset, then the objects themselves from First.
type objectStream struct {
	data    []byte
	first   int
	offsets []int
}

func parseObjectStream(dict *generic.DictionaryObject, data []byte) (*objectStream, error) {
	n, ok1 := dict.GetInt("N")
	first, ok2 := dict.GetInt("First")
	if !ok1 || !ok2 || first < 0 || int(first) > len(data) {
		return nil, fmt.Errorf("%w: object stream missing N or First", ErrInvalidPDF)
	}

	p := generic.NewParserFromBytes(data[:first])
	os := &objectStream{data: data, first: int(first)}
	for i := int64(0); i < n; i++ {
		if _, err := readInt(p); err != nil {
			break
		}
		off, err := readInt(p)
		if err != nil {
			break
		}
		os.offsets = append(os.offsets, off)
	}
	return os, nil
}

func (os *objectStream) object(index int) (generic.PdfObject, error) {
	if index < 0 || index >= len(os.offsets) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrObjectNotFound, index)
	}
	start := os.first + os.offsets[index]
	if start >= len(os.data) {
		return nil, fmt.Errorf("%w: object data out of bounds", ErrObjectNotFound)
	}
	p := generic.NewParserFromBytes(os.data)
	p.Seek(start)
	return p.ParseObject()
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)\s+(\d+)\s+obj\b`)

// reconstructXRef rebuilds the cross-reference information by scanning for
// "n g obj" headers. Later definitions win, matching incremental updates.
func reconstructXRef(data []byte) (*XRefSection, error) {
	section := &XRefSection{Entries: make(map[int]XRefEntry)}
	for _, m := range objHeader.FindAllSubmatchIndex(data, -1) {
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		section.Entries[num] = XRefEntry{Type: XRefTypeStandard, Offset: int64(m[2]), Generation: gen}
	}
	if len(section.Entries) == 0 {
		return nil, fmt.Errorf("%w: no objects found", ErrInvalidPDF)
	}

	// Prefer an explicit trailer; otherwise look for a catalog.
	trailer := generic.NewTrailer()
	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		p := generic.NewParserFromBytes(data)
		p.Seek(idx + len("trailer"))
		if obj, err := p.ParseObject(); err == nil {
			if dict, ok := obj.(*generic.DictionaryObject); ok {
				trailer = &generic.TrailerDictionary{DictionaryObject: dict}
			}
		}
	}
	section.Trailer = trailer
	return section, nil
}
