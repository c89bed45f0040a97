// Package reader provides PDF file reading and parsing.
package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/georgepadayatti/pdfcompose/pdf/crypt"
	"github.com/georgepadayatti/pdfcompose/pdf/filters"
	"github.com/georgepadayatti/pdfcompose/pdf/generic"
)

// Common errors
var (
	ErrInvalidPDF     = errors.New("invalid PDF file")
	ErrNoXRef         = errors.New("no xref found")
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidXRef    = errors.New("invalid xref")
	ErrEncrypted      = errors.New("PDF is encrypted")
)

// inheritable lists the page attributes a leaf may inherit from its
// ancestors in the page tree.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// Options controls how a document is opened.
type Options struct {
	// Password opens encrypted documents. It is tried as the user password
	// and then as the owner password.
	Password string
}

// PdfFileReader reads and parses PDF files.
type PdfFileReader struct {
	data    []byte
	Version string
	Trailer *generic.TrailerDictionary

	xref    map[int]XRefEntry
	objects map[int]generic.PdfObject
	streams map[int]*objectStream
	loading map[int]bool

	// Document structure
	Root  *generic.DictionaryObject
	Info  *generic.DictionaryObject
	Pages []*generic.DictionaryObject

	// Encrypted reports whether the file carried an Encrypt dictionary.
	Encrypted  bool
	security   crypt.SecurityHandler
	encryptNum int

	// Reconstructed is set when the xref was rebuilt by scanning the file.
	Reconstructed bool
}

// NewPdfFileReader creates a new PDF reader.
func NewPdfFileReader(r io.Reader) (*PdfFileReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF data: %w", err)
	}
	return Open(data, Options{})
}

// NewPdfFileReaderFromBytes opens an unencrypted document, or one encrypted
// with an empty user password.
func NewPdfFileReaderFromBytes(data []byte) (*PdfFileReader, error) {
	return Open(data, Options{})
}

// Open parses data as a PDF document.
func Open(data []byte, opts Options) (*PdfFileReader, error) {
	r := &PdfFileReader{
		data:    data,
		xref:    make(map[int]XRefEntry),
		objects: make(map[int]generic.PdfObject),
		streams: make(map[int]*objectStream),
		loading: make(map[int]bool),
	}
	if err := r.parseHeader(); err != nil {
		return nil, err
	}
	if err := r.findAndParseXRef(); err != nil {
		if rerr := r.reconstruct(); rerr != nil {
			return nil, fmt.Errorf("%w (reconstruction failed: %v)", err, rerr)
		}
	}
	if err := r.setupSecurity(opts.Password); err != nil {
		return nil, err
	}
	if err := r.loadDocumentStructure(); err != nil {
		if r.Reconstructed {
			return nil, err
		}
		// The xref looked valid but pointed at garbage; try scanning.
		if rerr := r.reconstruct(); rerr != nil {
			return nil, err
		}
		if err := r.loadDocumentStructure(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

var headerRegex = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

// parseHeader parses the PDF header.
func (r *PdfFileReader) parseHeader() error {
	if len(r.data) < 8 {
		return fmt.Errorf("%w: file too short", ErrInvalidPDF)
	}
	m := headerRegex.FindSubmatch(r.data[:min(1024, len(r.data))])
	if m == nil {
		return fmt.Errorf("%w: missing PDF header", ErrInvalidPDF)
	}
	r.Version = string(m[1])
	return nil
}

// findAndParseXRef follows startxref and the Prev chain.
func (r *PdfFileReader) findAndParseXRef() error {
	idx := bytes.LastIndex(r.data, []byte("startxref"))
	if idx == -1 {
		return ErrNoXRef
	}
	p := generic.NewParserFromBytes(r.data)
	p.Seek(idx + len("startxref"))
	offset, err := readInt(p)
	if err != nil {
		return fmt.Errorf("%w: missing xref offset", ErrInvalidXRef)
	}

	visited := make(map[int]bool)
	for {
		if offset <= 0 || offset >= len(r.data) {
			return fmt.Errorf("%w: offset %d out of bounds", ErrInvalidXRef, offset)
		}
		if visited[offset] {
			break
		}
		visited[offset] = true

		section, err := r.parseSection(offset)
		if err != nil {
			return err
		}
		for num, entry := range section.Entries {
			if _, exists := r.xref[num]; !exists {
				r.xref[num] = entry
			}
		}
		if r.Trailer == nil {
			r.Trailer = section.Trailer
		}

		// Hybrid files point at an extra xref stream.
		if stm, ok := section.Trailer.GetInt("XRefStm"); ok && !visited[int(stm)] {
			visited[int(stm)] = true
			if extra, err := r.parseSection(int(stm)); err == nil {
				for num, entry := range extra.Entries {
					if _, exists := r.xref[num]; !exists {
						r.xref[num] = entry
					}
				}
			}
		}

		prev, ok := section.Trailer.GetPrev()
		if !ok {
			break
		}
		offset = int(prev)
	}
	if r.Trailer.GetRoot() == nil {
		return fmt.Errorf("%w: trailer has no Root", ErrInvalidXRef)
	}
	return nil
}

func (r *PdfFileReader) parseSection(offset int) (*XRefSection, error) {
	p := generic.NewParserFromBytes(r.data)
	p.Seek(offset)
	save := p.Position()
	if p.ReadKeyword() == "xref" {
		return parseXRefTable(r.data, save)
	}
	p.Seek(save)

	p.ResolveLength = r.resolveLength
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidXRef, err)
	}
	stream, ok := ind.Object.(*generic.StreamObject)
	if !ok || stream.Dictionary.GetName("Type") != "XRef" {
		return nil, fmt.Errorf("%w: xref stream expected at %d", ErrInvalidXRef, offset)
	}
	data, err := filters.DecodeStreamObject(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to decode xref stream: %w", err)
	}
	return parseXRefStream(stream.Dictionary, data)
}

// reconstruct discards xref state and rebuilds it by scanning.
func (r *PdfFileReader) reconstruct() error {
	section, err := reconstructXRef(r.data)
	if err != nil {
		return err
	}
	r.xref = section.Entries
	r.objects = make(map[int]generic.PdfObject)
	r.streams = make(map[int]*objectStream)
	r.Trailer = section.Trailer
	r.Reconstructed = true

	if r.Trailer.GetRoot() == nil {
		for num := range r.xref {
			obj, err := r.GetObject(num)
			if err != nil {
				continue
			}
			if dict, ok := obj.(*generic.DictionaryObject); ok && dict.GetName("Type") == "Catalog" {
				r.Trailer.Set("Root", generic.NewReference(num, 0))
				break
			}
		}
	}
	if r.Trailer.GetRoot() == nil {
		return fmt.Errorf("%w: no catalog found", ErrInvalidPDF)
	}
	return nil
}

// setupSecurity authenticates against the Encrypt dictionary, if any.
func (r *PdfFileReader) setupSecurity(password string) error {
	enc := r.Trailer.Get("Encrypt")
	if enc == nil {
		return nil
	}
	r.Encrypted = true
	if ref, ok := enc.(generic.Reference); ok {
		r.encryptNum = ref.ObjectNumber
	}
	obj, err := generic.Resolve(r, enc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncrypted, err)
	}
	dict, ok := obj.(*generic.DictionaryObject)
	if !ok {
		return fmt.Errorf("%w: Encrypt is not a dictionary", ErrEncrypted)
	}
	handler, err := crypt.HandlerFromDict(dict, r.Trailer.FirstID())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncrypted, err)
	}
	if err := handler.Authenticate(password); err != nil {
		return fmt.Errorf("%w: %v", ErrEncrypted, err)
	}
	r.security = handler
	// Anything loaded before authentication is still encrypted.
	for num := range r.objects {
		if num != r.encryptNum {
			delete(r.objects, num)
		}
	}
	return nil
}

// loadDocumentStructure loads the document catalog and other structures.
func (r *PdfFileReader) loadDocumentStructure() error {
	rootRef := r.Trailer.GetRoot()
	if rootRef == nil {
		return fmt.Errorf("%w: missing Root", ErrInvalidPDF)
	}
	rootObj, err := r.GetObject(rootRef.ObjectNumber)
	if err != nil {
		return fmt.Errorf("failed to load Root: %w", err)
	}
	root, ok := rootObj.(*generic.DictionaryObject)
	if !ok {
		return fmt.Errorf("%w: Root must be dictionary", ErrInvalidPDF)
	}
	r.Root = root

	if infoRef := r.Trailer.GetInfo(); infoRef != nil {
		if infoObj, err := r.GetObject(infoRef.ObjectNumber); err == nil {
			r.Info, _ = infoObj.(*generic.DictionaryObject)
		}
	}

	pagesObj, err := generic.Resolve(r, r.Root.Get("Pages"))
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	pages, ok := pagesObj.(*generic.DictionaryObject)
	if !ok {
		return fmt.Errorf("%w: Pages must be dictionary", ErrInvalidPDF)
	}
	r.Pages = nil
	return r.loadPageTree(pages, nil, make(map[*generic.DictionaryObject]bool))
}

// loadPageTree walks the page tree depth first, copying inherited
// attributes down onto each leaf.
func (r *PdfFileReader) loadPageTree(node *generic.DictionaryObject, inherited map[string]generic.PdfObject, seen map[*generic.DictionaryObject]bool) error {
	if seen[node] {
		return fmt.Errorf("%w: page tree cycle", ErrInvalidPDF)
	}
	seen[node] = true
	defer delete(seen, node)

	attrs := make(map[string]generic.PdfObject, len(inheritable))
	for k, v := range inherited {
		attrs[k] = v
	}
	for _, key := range inheritable {
		if v := node.Get(key); v != nil {
			attrs[key] = v
		}
	}

	if node.GetName("Type") == "Page" || (!node.Has("Kids") && node.Has("Contents")) {
		for key, v := range attrs {
			if !node.Has(key) {
				node.Set(key, v)
			}
		}
		r.Pages = append(r.Pages, node)
		return nil
	}

	kidsObj, err := generic.Resolve(r, node.Get("Kids"))
	if err != nil {
		return err
	}
	kids, _ := kidsObj.(generic.ArrayObject)
	for _, kid := range kids {
		kidObj, err := generic.Resolve(r, kid)
		if err != nil {
			continue
		}
		kidDict, ok := kidObj.(*generic.DictionaryObject)
		if !ok {
			continue
		}
		if err := r.loadPageTree(kidDict, attrs, seen); err != nil {
			return err
		}
	}
	return nil
}

// GetObject retrieves an object by object number. Strings and streams come
// back decrypted; stream data is still filter encoded.
func (r *PdfFileReader) GetObject(objNum int) (generic.PdfObject, error) {
	if obj, ok := r.objects[objNum]; ok {
		return obj, nil
	}
	entry, ok := r.xref[objNum]
	if !ok || entry.Type == XRefTypeFree {
		return nil, fmt.Errorf("%w: object %d", ErrObjectNotFound, objNum)
	}
	if r.loading[objNum] {
		return nil, fmt.Errorf("%w: object %d refers to itself", ErrInvalidPDF, objNum)
	}
	r.loading[objNum] = true
	defer delete(r.loading, objNum)

	var (
		obj generic.PdfObject
		err error
	)
	if entry.Type == XRefTypeInObjStream {
		obj, err = r.getObjectFromStream(entry.StreamObject, entry.Index)
	} else {
		obj, err = r.getObjectAtOffset(objNum, entry)
	}
	if err != nil {
		return nil, err
	}
	r.objects[objNum] = obj
	return obj, nil
}

// getObjectAtOffset reads an object at the given file offset.
func (r *PdfFileReader) getObjectAtOffset(objNum int, entry XRefEntry) (generic.PdfObject, error) {
	if entry.Offset < 0 || entry.Offset >= int64(len(r.data)) {
		return nil, fmt.Errorf("%w: object %d offset out of bounds", ErrObjectNotFound, objNum)
	}
	p := generic.NewParserFromBytes(r.data)
	p.Seek(int(entry.Offset))
	p.ResolveLength = r.resolveLength
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", objNum, err)
	}
	if ind.ObjectNumber != objNum {
		return nil, fmt.Errorf("%w: expected object %d at offset %d, found %d", ErrInvalidXRef, objNum, entry.Offset, ind.ObjectNumber)
	}

	obj := ind.Object
	if r.security != nil && objNum != r.encryptNum {
		if s, ok := obj.(*generic.StreamObject); !ok || s.Dictionary.GetName("Type") != "XRef" {
			if obj, err = r.decrypt(obj, objNum, ind.GenerationNumber); err != nil {
				return nil, fmt.Errorf("object %d: %w", objNum, err)
			}
		}
	}
	return obj, nil
}

// decrypt decrypts every string and stream reachable inside obj.
func (r *PdfFileReader) decrypt(obj generic.PdfObject, num, gen int) (generic.PdfObject, error) {
	switch v := obj.(type) {
	case *generic.StringObject:
		plain, err := r.security.DecryptString(v.Value, num, gen)
		if err != nil {
			return nil, err
		}
		return &generic.StringObject{Value: plain, IsHex: v.IsHex}, nil
	case generic.ArrayObject:
		for i, item := range v {
			d, err := r.decrypt(item, num, gen)
			if err != nil {
				return nil, err
			}
			v[i] = d
		}
		return v, nil
	case *generic.DictionaryObject:
		for _, key := range v.Keys() {
			d, err := r.decrypt(v.Get(key), num, gen)
			if err != nil {
				return nil, err
			}
			v.Set(key, d)
		}
		return v, nil
	case *generic.StreamObject:
		if _, err := r.decrypt(v.Dictionary, num, gen); err != nil {
			return nil, err
		}
		plain, err := r.security.DecryptStream(v.Data, num, gen)
		if err != nil {
			return nil, err
		}
		v.Data = plain
		return v, nil
	}
	return obj, nil
}

// getObjectFromStream retrieves an object from an object stream.
func (r *PdfFileReader) getObjectFromStream(streamNum, index int) (generic.PdfObject, error) {
	os, ok := r.streams[streamNum]
	if !ok {
		obj, err := r.GetObject(streamNum)
		if err != nil {
			return nil, err
		}
		stream, ok := obj.(*generic.StreamObject)
		if !ok {
			return nil, fmt.Errorf("%w: object stream %d is not a stream", ErrInvalidPDF, streamNum)
		}
		data, err := filters.DecodeStreamObject(stream)
		if err != nil {
			return nil, err
		}
		if os, err = parseObjectStream(stream.Dictionary, data); err != nil {
			return nil, err
		}
		r.streams[streamNum] = os
	}
	return os.object(index)
}

// resolveLength looks up an indirect stream Length.
func (r *PdfFileReader) resolveLength(ref generic.Reference) (int64, bool) {
	obj, err := r.GetObject(ref.ObjectNumber)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(generic.IntegerObject)
	return int64(n), ok
}

// DecodedStream returns the filter-decoded data of a stream.
func (r *PdfFileReader) DecodedStream(s *generic.StreamObject) ([]byte, error) {
	return filters.DecodeStreamObject(s)
}

// GetPageCount returns the number of pages.
func (r *PdfFileReader) GetPageCount() int {
	return len(r.Pages)
}

// GetPage returns a page by index (0-based).
func (r *PdfFileReader) GetPage(index int) (*generic.DictionaryObject, error) {
	if index < 0 || index >= len(r.Pages) {
		return nil, fmt.Errorf("page index %d out of bounds", index)
	}
	return r.Pages[index], nil
}

// PageBox returns the effective box of a page: CropBox when present,
// otherwise MediaBox, defaulting to US Letter.
func (r *PdfFileReader) PageBox(page *generic.DictionaryObject) generic.Rectangle {
	for _, key := range []string{"CropBox", "MediaBox"} {
		obj, err := generic.Resolve(r, page.Get(key))
		if err != nil || obj == nil {
			continue
		}
		if arr, ok := obj.(generic.ArrayObject); ok {
			resolved := make(generic.ArrayObject, len(arr))
			for i, item := range arr {
				resolved[i] = item
				if v, err := generic.Resolve(r, item); err == nil {
					resolved[i] = v
				}
			}
			if box, err := generic.NewRectangle(resolved); err == nil && box.Width() > 0 && box.Height() > 0 {
				return box
			}
		}
	}
	return generic.Rectangle{URX: 612, URY: 792}
}

// Data returns the raw PDF data.
func (r *PdfFileReader) Data() []byte {
	return r.data
}

// String describes the reader for logs.
func (r *PdfFileReader) String() string {
	return "PDF-" + r.Version + " pages=" + strconv.Itoa(len(r.Pages))
}
