package writer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/georgepadayatti/pdfcompose/pdf/crypt"
	"github.com/georgepadayatti/pdfcompose/pdf/generic"
	"github.com/georgepadayatti/pdfcompose/pdf/reader"
)

var letter = generic.Rectangle{URX: 612, URY: 792}

func pageContent(t *testing.T, r *reader.PdfFileReader, index int) string {
	t.Helper()
	page, err := r.GetPage(index)
	if err != nil {
		t.Fatalf("GetPage(%d): %v", index, err)
	}
	obj, err := generic.Resolve(r, page.Get("Contents"))
	if err != nil {
		t.Fatalf("Contents: %v", err)
	}
	stream, ok := obj.(*generic.StreamObject)
	if !ok {
		t.Fatalf("Contents is %T, want stream", obj)
	}
	data, err := r.DecodedStream(stream)
	if err != nil {
		t.Fatalf("DecodedStream: %v", err)
	}
	return string(data)
}

func TestWriteIsIdempotent(t *testing.T) {
	w := NewPdfFileWriter("")
	if _, err := w.AddContentPage(letter, nil, []byte("0 0 m 10 10 l S")); err != nil {
		t.Fatal(err)
	}
	first, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	second, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Second Write produced different output")
	}
	if !bytes.HasPrefix(first, []byte("%PDF-1.7\n")) {
		t.Errorf("Unexpected header %q", first[:9])
	}
	if !bytes.HasSuffix(first, []byte("%%EOF\n")) {
		t.Error("Missing EOF marker")
	}
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewPdfFileWriter("1.7")
	boxes := []generic.Rectangle{letter, {URX: 595, URY: 842}}
	for i, box := range boxes {
		content := []byte("BT /F1 12 Tf (page " + string(rune('1'+i)) + ") Tj ET")
		if _, err := w.AddContentPage(box, nil, content); err != nil {
			t.Fatal(err)
		}
	}
	w.SetInfo("Title", "Round trip")
	if got := w.PageCount(); got != 2 {
		t.Fatalf("PageCount = %d, want 2", got)
	}

	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	r, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		t.Fatalf("Reading written file: %v", err)
	}
	if r.Reconstructed {
		t.Error("Written xref should not need reconstruction")
	}
	if r.GetPageCount() != 2 {
		t.Fatalf("Page count = %d, want 2", r.GetPageCount())
	}
	for i, want := range boxes {
		page, _ := r.GetPage(i)
		if got := r.PageBox(page); got != want {
			t.Errorf("Page %d box = %+v, want %+v", i, got, want)
		}
	}
	if got := pageContent(t, r, 1); got != "BT /F1 12 Tf (page 2) Tj ET" {
		t.Errorf("Page 2 content = %q", got)
	}
	if title, ok := r.Info.Get("Title").(*generic.StringObject); !ok || title.Text() != "Round trip" {
		t.Errorf("Unexpected Title %v", r.Info.Get("Title"))
	}
}

func TestAddComposedPage(t *testing.T) {
	w := NewPdfFileWriter("")
	form := w.AddObject(generic.NewStream(nil, nil))
	_, err := w.AddComposedPage(generic.Rectangle{URX: 612, URY: 900}, []Placement{
		{Form: form, BBox: letter},
		{Form: form, BBox: generic.Rectangle{LLX: 10, LLY: 20, URX: 110, URY: 70}, DY: 792.5},
	})
	if err != nil {
		t.Fatal(err)
	}

	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	r, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	want := "q 1 0 0 1 0 0 cm /L0 Do Q\nq 1 0 0 1 -10 772.5 cm /L1 Do Q\n"
	if got := pageContent(t, r, 0); got != want {
		t.Errorf("Content = %q, want %q", got, want)
	}
	page, _ := r.GetPage(0)
	xobjects := page.GetDict("Resources").GetDict("XObject")
	if xobjects == nil || !xobjects.Has("L0") || !xobjects.Has("L1") {
		t.Fatalf("Missing XObject resources")
	}
	if got := r.PageBox(page); got.URY != 900 {
		t.Errorf("Page height = %v, want 900", got.URY)
	}
}

func TestReservedButUnsetObjectsAreFree(t *testing.T) {
	w := NewPdfFileWriter("")
	w.ReserveObject()
	if _, err := w.AddContentPage(letter, nil, nil); err != nil {
		t.Fatal(err)
	}
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reader.NewPdfFileReaderFromBytes(data); err != nil {
		t.Errorf("File with a free entry should open: %v", err)
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		handler func(fileID []byte) (*crypt.StandardSecurityHandler, error)
	}{
		{"AES-256", func([]byte) (*crypt.StandardSecurityHandler, error) {
			return crypt.NewAES256Handler("secret", "", crypt.PermAll)
		}},
		{"AES-128", func(id []byte) (*crypt.StandardSecurityHandler, error) {
			return crypt.NewAES128Handler("secret", "", crypt.PermAll, id)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewPdfFileWriter("")
			if _, err := w.AddContentPage(letter, nil, []byte("BT (Original) Tj ET")); err != nil {
				t.Fatal(err)
			}
			w.SetInfo("Title", "Confidential")
			h, err := tt.handler(w.FileID)
			if err != nil {
				t.Fatal(err)
			}
			w.Encrypt(h)
			data, err := w.Bytes()
			if err != nil {
				t.Fatal(err)
			}
			if bytes.Contains(data, []byte("Confidential")) {
				t.Error("Plain text title found in encrypted output")
			}

			if _, err := reader.NewPdfFileReaderFromBytes(data); !errors.Is(err, reader.ErrEncrypted) {
				t.Errorf("Open without password: got %v, want ErrEncrypted", err)
			}
			r, err := reader.Open(data, reader.Options{Password: "secret"})
			if err != nil {
				t.Fatalf("Open with password: %v", err)
			}
			if !r.Encrypted {
				t.Error("Encrypted flag not set")
			}
			if got := pageContent(t, r, 0); got != "BT (Original) Tj ET" {
				t.Errorf("Content = %q", got)
			}
			if title, _ := r.Info.Get("Title").(*generic.StringObject); title == nil || title.Text() != "Confidential" {
				t.Errorf("Title not decrypted: %v", r.Info.Get("Title"))
			}
		})
	}
}

func TestEncryptTwiceKeepsOneDictionary(t *testing.T) {
	w := NewPdfFileWriter("")
	h, err := crypt.NewAES256Handler("a", "", crypt.PermAll)
	if err != nil {
		t.Fatal(err)
	}
	w.Encrypt(h)
	w.Encrypt(h)
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "/Filter /Standard"); n != 1 {
		t.Errorf("Found %d Encrypt dictionaries, want 1", n)
	}
}

func TestTruncatePages(t *testing.T) {
	w := NewPdfFileWriter("")
	for i := 0; i < 3; i++ {
		if _, err := w.AddContentPage(letter, nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	w.TruncatePages(5)
	if w.PageCount() != 3 {
		t.Errorf("TruncatePages beyond the end changed the count to %d", w.PageCount())
	}
	w.TruncatePages(1)
	if w.PageCount() != 1 {
		t.Fatalf("PageCount = %d, want 1", w.PageCount())
	}
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	r, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if r.GetPageCount() != 1 {
		t.Errorf("Written page count = %d, want 1", r.GetPageCount())
	}
}

func TestRollback(t *testing.T) {
	w := NewPdfFileWriter("")
	if _, err := w.AddContentPage(letter, nil, []byte("0 0 m 10 10 l S")); err != nil {
		t.Fatal(err)
	}
	mark := w.Mark()
	objects := w.ObjectCount()

	shared := w.AddObject(generic.NewDictionary())
	for i := 0; i < 2; i++ {
		if _, err := w.AddComposedPage(letter, []Placement{{Form: shared, BBox: letter}}); err != nil {
			t.Fatal(err)
		}
	}
	h, err := crypt.NewAES256Handler("secret", "", crypt.PermAll)
	if err != nil {
		t.Fatal(err)
	}
	w.Encrypt(h)
	w.Rollback(mark)

	if w.PageCount() != 1 {
		t.Errorf("PageCount = %d, want 1", w.PageCount())
	}
	if got := w.ObjectCount(); got != objects {
		t.Errorf("ObjectCount = %d, want %d", got, objects)
	}
	if w.Object(shared) != nil {
		t.Error("Object added after the mark is still present")
	}
	if ref := w.AddObject(generic.IntegerObject(1)); ref.ObjectNumber != shared.ObjectNumber {
		t.Errorf("Freed object number %d was not reused, got %d", shared.ObjectNumber, ref.ObjectNumber)
	}

	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "/Encrypt") {
		t.Error("Encryption set after the mark survived the rollback")
	}
	r, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if r.GetPageCount() != 1 {
		t.Errorf("Written page count = %d, want 1", r.GetPageCount())
	}
}
