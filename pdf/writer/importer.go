package writer

import (
	"bytes"
	"fmt"

	"github.com/georgepadayatti/pdfcompose/pdf/filters"
	"github.com/georgepadayatti/pdfcompose/pdf/generic"
	"github.com/georgepadayatti/pdfcompose/pdf/reader"
)

// Importer copies objects from source documents into a writer. Each source
// object is copied at most once, so pages imported repeatedly share their
// resources and forms.
type Importer struct {
	w       *PdfFileWriter
	sources map[*reader.PdfFileReader]*importState
}

type importState struct {
	refs  map[int]generic.Reference
	forms map[int]generic.Reference
}

// NewImporter creates an importer that writes into w.
func NewImporter(w *PdfFileWriter) *Importer {
	return &Importer{w: w, sources: make(map[*reader.PdfFileReader]*importState)}
}

// Writer returns the writer objects are imported into.
func (im *Importer) Writer() *PdfFileWriter {
	return im.w
}

func (im *Importer) state(src *reader.PdfFileReader) *importState {
	st, ok := im.sources[src]
	if !ok {
		st = &importState{refs: make(map[int]generic.Reference), forms: make(map[int]generic.Reference)}
		im.sources[src] = st
	}
	return st
}

// ImportPage copies page index of src as a page of the writer. Annotations
// are dropped.
func (im *Importer) ImportPage(src *reader.PdfFileReader, index int) (generic.Reference, error) {
	page, err := src.GetPage(index)
	if err != nil {
		return generic.Reference{}, err
	}
	copied := generic.NewDictionary()
	for _, key := range page.Keys() {
		switch key {
		case "Parent", "Annots", "Type", "B", "StructParents":
			continue
		}
		v, err := im.importObject(src, page.Get(key))
		if err != nil {
			return generic.Reference{}, fmt.Errorf("page %d /%s: %w", index, key, err)
		}
		copied.Set(key, v)
	}
	copied.Set("MediaBox", src.PageBox(page).ToArray())
	copied.Delete("CropBox")
	return im.w.AddPage(copied), nil
}

// PageForm returns a Form XObject that draws page index of src. The form's
// bounding box is the page box.
func (im *Importer) PageForm(src *reader.PdfFileReader, index int) (generic.Reference, generic.Rectangle, error) {
	page, err := src.GetPage(index)
	if err != nil {
		return generic.Reference{}, generic.Rectangle{}, err
	}
	box := src.PageBox(page)
	st := im.state(src)
	if ref, ok := st.forms[index]; ok {
		return ref, box, nil
	}

	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("XObject"))
	dict.Set("Subtype", generic.NameObject("Form"))
	dict.Set("BBox", box.ToArray())

	resources := generic.PdfObject(generic.NewDictionary())
	if res := page.Get("Resources"); res != nil {
		if resources, err = im.importObject(src, res); err != nil {
			return generic.Reference{}, box, fmt.Errorf("page %d resources: %w", index, err)
		}
	}
	dict.Set("Resources", resources)

	form, err := im.formStream(src, dict, page.Get("Contents"))
	if err != nil {
		return generic.Reference{}, box, fmt.Errorf("page %d contents: %w", index, err)
	}
	ref := im.w.AddObject(form)
	st.forms[index] = ref
	return ref, box, nil
}

// formStream builds the form's stream from the page contents. A single
// content stream keeps its encoded bytes; several are decoded and joined.
func (im *Importer) formStream(src *reader.PdfFileReader, dict *generic.DictionaryObject, contents generic.PdfObject) (*generic.StreamObject, error) {
	obj, err := generic.Resolve(src, contents)
	if err != nil {
		return nil, err
	}

	var parts []*generic.StreamObject
	switch v := obj.(type) {
	case nil:
	case *generic.StreamObject:
		parts = append(parts, v)
	case generic.ArrayObject:
		for _, item := range v {
			resolved, err := generic.Resolve(src, item)
			if err != nil {
				return nil, err
			}
			if s, ok := resolved.(*generic.StreamObject); ok {
				parts = append(parts, s)
			}
		}
	default:
		return nil, fmt.Errorf("unexpected Contents type %T", obj)
	}

	if len(parts) == 1 {
		s := parts[0]
		for _, key := range []string{"Filter", "DecodeParms"} {
			if v := s.Dictionary.Get(key); v != nil {
				imported, err := im.importObject(src, v)
				if err != nil {
					return nil, err
				}
				dict.Set(key, imported)
			}
		}
		return generic.NewStream(dict, bytes.Clone(s.Data)), nil
	}

	var joined bytes.Buffer
	for _, s := range parts {
		data, err := filters.DecodeStreamObject(s)
		if err != nil {
			return nil, err
		}
		joined.Write(data)
		joined.WriteByte('\n')
	}
	return NewFlateStream(dict, joined.Bytes())
}

// importObject deep copies obj, copying referenced objects into the writer.
// References to page tree nodes become null so that no foreign pages leak
// into the output.
func (im *Importer) importObject(src *reader.PdfFileReader, obj generic.PdfObject) (generic.PdfObject, error) {
	switch v := obj.(type) {
	case generic.Reference:
		return im.importReference(src, v)
	case generic.ArrayObject:
		out := make(generic.ArrayObject, len(v))
		for i, item := range v {
			c, err := im.importObject(src, item)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case *generic.DictionaryObject:
		return im.importDict(src, v)
	case *generic.StreamObject:
		dict, err := im.importDict(src, v.Dictionary)
		if err != nil {
			return nil, err
		}
		return generic.NewStream(dict, bytes.Clone(v.Data)), nil
	case nil:
		return generic.NullObject{}, nil
	}
	return obj.Clone(), nil
}

func (im *Importer) importDict(src *reader.PdfFileReader, d *generic.DictionaryObject) (*generic.DictionaryObject, error) {
	out := generic.NewDictionary()
	for _, key := range d.Keys() {
		if key == "Parent" {
			continue
		}
		c, err := im.importObject(src, d.Get(key))
		if err != nil {
			return nil, err
		}
		out.Set(key, c)
	}
	return out, nil
}

func (im *Importer) importReference(src *reader.PdfFileReader, ref generic.Reference) (generic.PdfObject, error) {
	st := im.state(src)
	if mapped, ok := st.refs[ref.ObjectNumber]; ok {
		return mapped, nil
	}
	target, err := src.GetObject(ref.ObjectNumber)
	if err != nil {
		// Dangling references read as null.
		return generic.NullObject{}, nil
	}
	if d, ok := target.(*generic.DictionaryObject); ok {
		if t := d.GetName("Type"); t == "Page" || t == "Pages" {
			return generic.NullObject{}, nil
		}
	}

	// Reserve first so that cycles resolve to the same number.
	mapped := im.w.ReserveObject()
	st.refs[ref.ObjectNumber] = mapped
	copied, err := im.importObject(src, target)
	if err != nil {
		return nil, err
	}
	im.w.SetObject(mapped, copied)
	return mapped, nil
}
