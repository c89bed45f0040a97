package compose

import (
	"fmt"

	"github.com/georgepadayatti/pdfcompose/pdf/generic"
	"github.com/georgepadayatti/pdfcompose/pdf/reader"
	"github.com/georgepadayatti/pdfcompose/pdf/writer"
)

// Layer is one source page drawn onto a composed page.
type Layer struct {
	doc   *reader.PdfFileReader
	index int
	// box is the visible box of the source page in its own coordinates.
	box    generic.Rectangle
	dx, dy float64
}

// Document returns the reader the layer's page comes from.
func (l Layer) Document() *reader.PdfFileReader { return l.doc }

// SourceIndex returns the 0-based index of the page in its document.
func (l Layer) SourceIndex() int { return l.index }

// Offset returns where the lower left corner of the source page is drawn.
func (l Layer) Offset() (dx, dy float64) { return l.dx, l.dy }

// Page is an immutable stack of layers over a bounding box. Page values
// are cheap to copy; every operation returns a new Page.
type Page struct {
	box    generic.Rectangle
	layers []Layer
}

func newSourcePage(doc *reader.PdfFileReader, index int, box generic.Rectangle) Page {
	return Page{
		box:    generic.Rectangle{URX: box.Width(), URY: box.Height()},
		layers: []Layer{{doc: doc, index: index, box: box}},
	}
}

// MediaBox returns the page box. Its lower left corner is the origin.
func (p Page) MediaBox() generic.Rectangle { return p.box }

// Width returns the page width in points.
func (p Page) Width() float64 { return p.box.Width() }

// Height returns the page height in points.
func (p Page) Height() float64 { return p.box.Height() }

// Layers returns the layers bottom to top.
func (p Page) Layers() []Layer {
	return append([]Layer(nil), p.layers...)
}

// Translate returns a page whose layers are moved by (dx, dy). The box is
// unchanged.
func (p Page) Translate(dx, dy float64) Page {
	layers := make([]Layer, len(p.layers))
	for i, l := range p.layers {
		l.dx += dx
		l.dy += dy
		layers[i] = l
	}
	return Page{box: p.box, layers: layers}
}

// ExtendTop returns a page whose box is h points tall, keeping the bottom
// edge.
func (p Page) ExtendTop(h float64) Page {
	box := p.box
	box.URY = box.LLY + h
	return Page{box: box, layers: p.layers}
}

// Merge returns a page with the layers of overlay drawn on top of those of
// p. The box of p is kept.
func (p Page) Merge(overlay Page) Page {
	layers := make([]Layer, 0, len(p.layers)+len(overlay.layers))
	layers = append(layers, p.layers...)
	layers = append(layers, overlay.layers...)
	return Page{box: p.box, layers: layers}
}

// simple reports whether p is a source page drawn as is.
func (p Page) simple() bool {
	if len(p.layers) != 1 {
		return false
	}
	l := p.layers[0]
	return l.dx == 0 && l.dy == 0 &&
		p.box == generic.Rectangle{URX: l.box.Width(), URY: l.box.Height()}
}

// Write adds the page to the importer's document. Extra placements are
// drawn on top of the page's layers. A source page without extras is
// imported directly; anything else becomes a page of Form XObjects.
func (p Page) Write(im *writer.Importer, extra ...writer.Placement) (generic.Reference, error) {
	if len(extra) == 0 && p.simple() {
		l := p.layers[0]
		ref, err := im.ImportPage(l.doc, l.index)
		if err != nil {
			return generic.Reference{}, fmt.Errorf("import page %d: %w", l.index, err)
		}
		return ref, nil
	}

	placements := make([]writer.Placement, 0, len(p.layers)+len(extra))
	for _, l := range p.layers {
		form, bbox, err := im.PageForm(l.doc, l.index)
		if err != nil {
			return generic.Reference{}, fmt.Errorf("page %d as form: %w", l.index, err)
		}
		placements = append(placements, writer.Placement{Form: form, BBox: bbox, DX: l.dx, DY: l.dy})
	}
	placements = append(placements, extra...)
	return im.Writer().AddComposedPage(p.box, placements)
}
