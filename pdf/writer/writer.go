// Package writer provides PDF file writing.
package writer

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/georgepadayatti/pdfcompose/pdf/crypt"
	"github.com/georgepadayatti/pdfcompose/pdf/filters"
	"github.com/georgepadayatti/pdfcompose/pdf/generic"
)

// Placement draws a Form XObject on a page with its box's lower left corner
// moved to (DX, DY).
type Placement struct {
	Form generic.Reference
	// BBox is the form's bounding box.
	BBox   generic.Rectangle
	DX, DY float64
}

// PdfFileWriter creates new PDF files.
type PdfFileWriter struct {
	Version    string
	objects    map[int]*generic.IndirectObject
	nextObjNum int

	Root  *generic.DictionaryObject
	Info  *generic.DictionaryObject
	Pages *generic.DictionaryObject

	rootRef  generic.Reference
	infoRef  generic.Reference
	pagesRef generic.Reference

	FileID []byte

	security   crypt.SecurityHandler
	encryptRef generic.Reference
}

// NewPdfFileWriter creates a new PDF writer.
func NewPdfFileWriter(version string) *PdfFileWriter {
	if version == "" {
		version = "1.7"
	}

	w := &PdfFileWriter{
		Version:    version,
		objects:    make(map[int]*generic.IndirectObject),
		nextObjNum: 1,
	}

	w.Pages = generic.NewDictionary()
	w.Pages.Set("Type", generic.NameObject("Pages"))
	w.Pages.Set("Kids", generic.ArrayObject{})
	w.Pages.Set("Count", generic.IntegerObject(0))
	w.pagesRef = w.AddObject(w.Pages)

	w.Root = generic.NewDictionary()
	w.Root.Set("Type", generic.NameObject("Catalog"))
	w.Root.Set("Pages", w.pagesRef)
	w.rootRef = w.AddObject(w.Root)

	w.Info = generic.NewDictionary()
	w.Info.Set("Producer", generic.NewTextString("pdfcompose"))
	w.Info.Set("CreationDate", generic.NewLiteralString(generic.FormatDate(time.Now())))
	w.infoRef = w.AddObject(w.Info)

	w.FileID = make([]byte, 16)
	if _, err := rand.Read(w.FileID); err != nil {
		panic(fmt.Sprintf("writer: reading random file ID: %v", err))
	}
	return w
}

// AddObject adds an object and returns its reference.
func (w *PdfFileWriter) AddObject(obj generic.PdfObject) generic.Reference {
	ref := w.ReserveObject()
	w.SetObject(ref, obj)
	return ref
}

// ReserveObject allocates an object number to be filled by SetObject.
func (w *PdfFileWriter) ReserveObject() generic.Reference {
	objNum := w.nextObjNum
	w.nextObjNum++
	return generic.NewReference(objNum, 0)
}

// SetObject stores obj under a previously reserved reference.
func (w *PdfFileWriter) SetObject(ref generic.Reference, obj generic.PdfObject) {
	w.objects[ref.ObjectNumber] = generic.NewIndirectObject(ref.ObjectNumber, 0, obj)
}

// Object returns the object stored under ref, or nil.
func (w *PdfFileWriter) Object(ref generic.Reference) generic.PdfObject {
	if ind, ok := w.objects[ref.ObjectNumber]; ok {
		return ind.Object
	}
	return nil
}

// PageCount returns the number of pages added so far.
func (w *PdfFileWriter) PageCount() int {
	return len(w.Pages.GetArray("Kids"))
}

// AddPage appends a page dictionary to the page tree.
func (w *PdfFileWriter) AddPage(page *generic.DictionaryObject) generic.Reference {
	page.Set("Type", generic.NameObject("Page"))
	page.Set("Parent", w.pagesRef)
	ref := w.AddObject(page)

	kids := append(w.Pages.GetArray("Kids"), ref)
	w.Pages.Set("Kids", kids)
	w.Pages.Set("Count", generic.IntegerObject(len(kids)))
	return ref
}

// ObjectCount returns the number of objects that Write would emit.
func (w *PdfFileWriter) ObjectCount() int {
	return len(w.objects)
}

// Mark records the state of the page tree and the object table.
type Mark struct {
	pages   int
	objects int
}

// Mark returns the current state for a later Rollback.
func (w *PdfFileWriter) Mark() Mark {
	return Mark{pages: w.PageCount(), objects: w.nextObjNum}
}

// Rollback removes every page and object added since m and frees their
// object numbers. Objects from before m must not refer to the removed ones.
func (w *PdfFileWriter) Rollback(m Mark) {
	w.TruncatePages(m.pages)
	if m.objects < 1 || m.objects >= w.nextObjNum {
		return
	}
	for num := m.objects; num < w.nextObjNum; num++ {
		delete(w.objects, num)
	}
	w.nextObjNum = m.objects
	if w.encryptRef.ObjectNumber >= m.objects {
		w.encryptRef = generic.Reference{}
		w.security = nil
	}
}

// TruncatePages drops every page after the first n from the page tree.
// Objects only those pages used stay in the file but are unreachable; use
// Rollback to drop them too.
func (w *PdfFileWriter) TruncatePages(n int) {
	kids := w.Pages.GetArray("Kids")
	if n < 0 || n >= len(kids) {
		return
	}
	kids = append(generic.ArrayObject{}, kids[:n]...)
	w.Pages.Set("Kids", kids)
	w.Pages.Set("Count", generic.IntegerObject(len(kids)))
}

// AddContentPage adds a page with the given box, resources and content
// stream. The content is Flate compressed.
func (w *PdfFileWriter) AddContentPage(box generic.Rectangle, resources *generic.DictionaryObject, content []byte) (generic.Reference, error) {
	stream, err := NewFlateStream(nil, content)
	if err != nil {
		return generic.Reference{}, err
	}
	if resources == nil {
		resources = generic.NewDictionary()
	}
	page := generic.NewDictionary()
	page.Set("MediaBox", box.ToArray())
	page.Set("Resources", resources)
	page.Set("Contents", w.AddObject(stream))
	return w.AddPage(page), nil
}

// AddComposedPage adds a page of the given box that draws each placement
// in order, later placements on top.
func (w *PdfFileWriter) AddComposedPage(box generic.Rectangle, placements []Placement) (generic.Reference, error) {
	xobjects := generic.NewDictionary()
	var content bytes.Buffer
	for i, pl := range placements {
		name := fmt.Sprintf("L%d", i)
		xobjects.Set(name, pl.Form)
		fmt.Fprintf(&content, "q 1 0 0 1 %s %s cm /%s Do Q\n",
			generic.FormatReal(pl.DX-pl.BBox.LLX), generic.FormatReal(pl.DY-pl.BBox.LLY), name)
	}
	resources := generic.NewDictionary()
	resources.Set("XObject", xobjects)
	return w.AddContentPage(box, resources, content.Bytes())
}

// NewFlateStream builds a Flate compressed stream from raw content.
func NewFlateStream(dict *generic.DictionaryObject, content []byte) (*generic.StreamObject, error) {
	encoded, err := filters.FlateEncode(content)
	if err != nil {
		return nil, err
	}
	stream := generic.NewStream(dict, encoded)
	stream.Dictionary.Set("Filter", generic.NameObject("FlateDecode"))
	return stream, nil
}

// SetInfo sets a document information entry.
func (w *PdfFileWriter) SetInfo(key string, value string) {
	w.Info.Set(key, generic.NewTextString(value))
}

// Encrypt makes Write encrypt every string and stream with handler.
func (w *PdfFileWriter) Encrypt(handler crypt.SecurityHandler) {
	w.security = handler
	if w.encryptRef.ObjectNumber == 0 {
		w.encryptRef = w.ReserveObject()
	}
	w.SetObject(w.encryptRef, handler.EncryptDict())
}

// Write serializes the document. Write does not modify the writer and may
// be called more than once.
func (w *PdfFileWriter) Write(out io.Writer) error {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%%PDF-%s\n", w.Version)
	buf.Write([]byte{0x25, 0xE2, 0xE3, 0xCF, 0xD3, 0x0A})

	offsets := make([]int64, w.nextObjNum)
	for objNum := 1; objNum < w.nextObjNum; objNum++ {
		ind := w.objects[objNum]
		if ind == nil {
			continue
		}
		if w.security != nil && objNum != w.encryptRef.ObjectNumber {
			obj, err := encryptObject(w.security, ind.Object.Clone(), objNum, 0)
			if err != nil {
				return generic.NewPdfWriteError(fmt.Sprintf("encrypting object %d", objNum), err)
			}
			ind = generic.NewIndirectObject(objNum, 0, obj)
		}
		offsets[objNum] = int64(buf.Len())
		if err := ind.Write(&buf); err != nil {
			return generic.NewPdfWriteError(fmt.Sprintf("writing object %d", objNum), err)
		}
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", w.nextObjNum)
	buf.WriteString("0000000000 65535 f \n")
	for objNum := 1; objNum < w.nextObjNum; objNum++ {
		if w.objects[objNum] == nil {
			buf.WriteString("0000000000 65535 f \n")
			continue
		}
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[objNum])
	}

	trailer := generic.NewDictionary()
	trailer.Set("Size", generic.IntegerObject(w.nextObjNum))
	trailer.Set("Root", w.rootRef)
	trailer.Set("Info", w.infoRef)
	if w.security != nil {
		trailer.Set("Encrypt", w.encryptRef)
	}
	trailer.Set("ID", generic.ArrayObject{
		generic.NewHexString(w.FileID),
		generic.NewHexString(w.FileID),
	})

	buf.WriteString("trailer\n")
	if err := trailer.Write(&buf); err != nil {
		return err
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

// Bytes returns the serialized document.
func (w *PdfFileWriter) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encryptObject encrypts the strings and streams inside obj, which the
// caller owns.
func encryptObject(h crypt.SecurityHandler, obj generic.PdfObject, num, gen int) (generic.PdfObject, error) {
	switch v := obj.(type) {
	case *generic.StringObject:
		enc, err := h.EncryptString(v.Value, num, gen)
		if err != nil {
			return nil, err
		}
		return generic.NewHexString(enc), nil
	case generic.ArrayObject:
		for i, item := range v {
			enc, err := encryptObject(h, item, num, gen)
			if err != nil {
				return nil, err
			}
			v[i] = enc
		}
	case *generic.DictionaryObject:
		for _, key := range v.Keys() {
			enc, err := encryptObject(h, v.Get(key), num, gen)
			if err != nil {
				return nil, err
			}
			v.Set(key, enc)
		}
	case *generic.StreamObject:
		if _, err := encryptObject(h, v.Dictionary, num, gen); err != nil {
			return nil, err
		}
		enc, err := h.EncryptStream(v.Data, num, gen)
		if err != nil {
			return nil, err
		}
		v.Data = enc
	}
	return obj, nil
}
