// Package content builds and tokenizes PDF content streams.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/georgepadayatti/pdfcompose/pdf/generic"
)

// ErrInvalidContent is returned for content streams that cannot be tokenized.
var ErrInvalidContent = errors.New("invalid content stream")

// Operator represents a PDF content stream operator.
type Operator string

// Operators used when composing and stamping pages.
const (
	// Graphics state operators
	OpSaveState    Operator = "q"
	OpRestoreState Operator = "Q"
	OpSetCTM       Operator = "cm"
	OpSetGState    Operator = "gs"

	// Text operators
	OpBeginText     Operator = "BT"
	OpEndText       Operator = "ET"
	OpSetFont       Operator = "Tf"
	OpSetTextMatrix Operator = "Tm"
	OpTextMove      Operator = "Td"
	OpShowText      Operator = "Tj"

	// Color operators
	OpSetStrokeGray Operator = "G"
	OpSetFillGray   Operator = "g"

	// XObject operators
	OpPaintXObject Operator = "Do"

	// Inline images
	OpBeginInlineImage Operator = "BI"
	OpBeginImageData   Operator = "ID"
	OpEndInlineImage   Operator = "EI"
)

// Operation represents a single operation in a content stream.
type Operation struct {
	Operator Operator
	Operands []generic.PdfObject
}

// ContentStream is a sequence of operations.
type ContentStream struct {
	Operations []Operation
}

// NewContentStream creates a new empty content stream.
func NewContentStream() *ContentStream {
	return &ContentStream{}
}

// AddOperation adds an operation to the content stream.
func (cs *ContentStream) AddOperation(op Operator, operands ...generic.PdfObject) {
	cs.Operations = append(cs.Operations, Operation{Operator: op, Operands: operands})
}

// Count returns how many times op occurs.
func (cs *ContentStream) Count(op Operator) int {
	n := 0
	for _, o := range cs.Operations {
		if o.Operator == op {
			n++
		}
	}
	return n
}

// Render renders the content stream to bytes, one operation per line.
func (cs *ContentStream) Render() []byte {
	var buf bytes.Buffer
	for _, op := range cs.Operations {
		for _, operand := range op.Operands {
			operand.Write(&buf)
			buf.WriteByte(' ')
		}
		buf.WriteString(string(op.Operator))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Parse tokenizes a decoded content stream. Inline image data is skipped.
func Parse(data []byte) (*ContentStream, error) {
	cs := NewContentStream()
	p := generic.NewParserFromBytes(data)
	var operands []generic.PdfObject

	for {
		start := p.Position()
		obj, err := p.ParseObject()
		if err == nil {
			operands = append(operands, obj)
			continue
		}
		if errors.Is(err, generic.ErrUnexpectedEOF) {
			break
		}

		p.Seek(start)
		kw := p.ReadKeyword()
		if kw == "" {
			return nil, fmt.Errorf("%w: unexpected byte at offset %d", ErrInvalidContent, p.Position())
		}
		cs.AddOperation(Operator(kw), operands...)
		operands = nil

		if Operator(kw) == OpBeginImageData {
			if !skipInlineImage(p) {
				return nil, fmt.Errorf("%w: unterminated inline image", ErrInvalidContent)
			}
			cs.AddOperation(OpEndInlineImage)
		}
	}
	return cs, nil
}

// skipInlineImage moves p past the EI that ends inline image data.
func skipInlineImage(p *generic.Parser) bool {
	for {
		pos := p.Position()
		if p.AtEOF() {
			return false
		}
		if p.ReadKeyword() == "EI" {
			return true
		}
		if p.Position() == pos {
			p.Seek(pos + 1)
		}
	}
}

// Builder provides a fluent interface for building content streams.
type Builder struct {
	stream *ContentStream
}

// NewBuilder creates a new content builder.
func NewBuilder() *Builder {
	return &Builder{stream: NewContentStream()}
}

func reals(values ...float64) []generic.PdfObject {
	out := make([]generic.PdfObject, len(values))
	for i, v := range values {
		out[i] = generic.RealObject(v)
	}
	return out
}

// SaveState saves the graphics state.
func (b *Builder) SaveState() *Builder {
	b.stream.AddOperation(OpSaveState)
	return b
}

// RestoreState restores the graphics state.
func (b *Builder) RestoreState() *Builder {
	b.stream.AddOperation(OpRestoreState)
	return b
}

// Transform concatenates a matrix to the CTM.
func (b *Builder) Transform(m Matrix) *Builder {
	b.stream.AddOperation(OpSetCTM, reals(m[:]...)...)
	return b
}

// SetGState applies a named ExtGState resource.
func (b *Builder) SetGState(name string) *Builder {
	b.stream.AddOperation(OpSetGState, generic.NameObject(name))
	return b
}

// SetFillGray sets the fill color (grayscale).
func (b *Builder) SetFillGray(gray float64) *Builder {
	b.stream.AddOperation(OpSetFillGray, generic.RealObject(gray))
	return b
}

// BeginText begins a text object.
func (b *Builder) BeginText() *Builder {
	b.stream.AddOperation(OpBeginText)
	return b
}

// EndText ends a text object.
func (b *Builder) EndText() *Builder {
	b.stream.AddOperation(OpEndText)
	return b
}

// SetFont selects a font resource and size.
func (b *Builder) SetFont(name string, size float64) *Builder {
	b.stream.AddOperation(OpSetFont, generic.NameObject(name), generic.RealObject(size))
	return b
}

// SetTextMatrix sets the text matrix.
func (b *Builder) SetTextMatrix(m Matrix) *Builder {
	b.stream.AddOperation(OpSetTextMatrix, reals(m[:]...)...)
	return b
}

// ShowText shows text already encoded for the current font.
func (b *Builder) ShowText(encoded []byte) *Builder {
	b.stream.AddOperation(OpShowText, generic.NewLiteralString(string(encoded)))
	return b
}

// PaintXObject paints a named XObject.
func (b *Builder) PaintXObject(name string) *Builder {
	b.stream.AddOperation(OpPaintXObject, generic.NameObject(name))
	return b
}

// Build returns the content stream.
func (b *Builder) Build() *ContentStream {
	return b.stream
}

// Render renders the content stream to bytes.
func (b *Builder) Render() []byte {
	return b.stream.Render()
}

// Matrix is a PDF transformation matrix [a b c d e f].
type Matrix [6]float64

// Identity is the identity matrix.
var Identity = Matrix{1, 0, 0, 1, 0, 0}

// Translation returns a matrix that moves the origin to (tx, ty).
func Translation(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Rotation returns a counter-clockwise rotation by angle radians.
func Rotation(angle float64) Matrix {
	sin, cos := math.Sincos(angle)
	return Matrix{cos, sin, -sin, cos, 0, 0}
}

// Multiply returns m followed by n.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// Apply transforms the point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}
