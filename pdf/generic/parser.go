package generic

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// Common errors
var (
	ErrUnexpectedEOF     = errors.New("unexpected end of file")
	ErrInvalidObject     = errors.New("invalid PDF object")
	ErrInvalidStream     = errors.New("invalid PDF stream")
	ErrInvalidDictionary = errors.New("invalid PDF dictionary")
	ErrInvalidArray      = errors.New("invalid PDF array")
	ErrInvalidString     = errors.New("invalid PDF string")
	ErrInvalidName       = errors.New("invalid PDF name")
	ErrInvalidNumber     = errors.New("invalid PDF number")
	ErrInvalidReference  = errors.New("invalid PDF reference")
)

// maxNesting bounds array and dictionary nesting.
const maxNesting = 256

// Parser parses PDF objects from an in-memory byte slice.
type Parser struct {
	data  []byte
	pos   int
	depth int

	// ResolveLength, when set, resolves an indirect /Length entry of a
	// stream dictionary.
	ResolveLength func(ref Reference) (int64, bool)
}

// NewParserFromBytes creates a parser positioned at the start of data.
func NewParserFromBytes(data []byte) *Parser {
	return &Parser{data: data}
}

// Position returns the current offset into the data.
func (p *Parser) Position() int { return p.pos }

// Seek moves the parser to an absolute offset.
func (p *Parser) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(p.data) {
		pos = len(p.data)
	}
	p.pos = pos
}

// AtEOF reports whether only whitespace and comments remain.
func (p *Parser) AtEOF() bool {
	p.skipWhitespace()
	return p.pos >= len(p.data)
}

func (p *Parser) peek() (byte, bool) {
	if p.pos >= len(p.data) {
		return 0, false
	}
	return p.data[p.pos], true
}

// skipWhitespace skips whitespace and comments.
func (p *Parser) skipWhitespace() {
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		switch {
		case isWhitespace(b):
			p.pos++
		case b == '%':
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

// isWhitespace returns true if the byte is PDF whitespace.
func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == 0 || b == '\f'
}

// isDelimiter returns true if the byte is a PDF delimiter.
func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// ReadKeyword reads a regular-character token such as "obj" or an operator.
func (p *Parser) ReadKeyword() string {
	p.skipWhitespace()
	start := p.pos
	for p.pos < len(p.data) && !isWhitespace(p.data[p.pos]) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// ParseObject parses one object. A sequence "n g R" is returned as a
// Reference.
func (p *Parser) ParseObject() (PdfObject, error) {
	p.skipWhitespace()
	b, ok := p.peek()
	if !ok {
		return nil, ErrUnexpectedEOF
	}

	switch {
	case b == '(':
		return p.parseString()
	case b == '<':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
			return p.parseDictionary()
		}
		return p.parseHexString()
	case b == '[':
		return p.parseArray()
	case b == '/':
		return p.parseName()
	case b == '-' || b == '+' || b == '.' || (b >= '0' && b <= '9'):
		return p.parseNumberOrReference()
	}

	start := p.pos
	switch kw := p.ReadKeyword(); kw {
	case "true":
		return BooleanObject(true), nil
	case "false":
		return BooleanObject(false), nil
	case "null":
		return NullObject{}, nil
	default:
		p.pos = start
		return nil, fmt.Errorf("%w: unexpected token %q at offset %d", ErrInvalidObject, kw, start)
	}
}

// parseString parses a literal string.
func (p *Parser) parseString() (*StringObject, error) {
	p.pos++ // (
	var buf bytes.Buffer
	depth := 1
	for {
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("%w: unterminated string", ErrInvalidString)
		}
		b := p.data[p.pos]
		p.pos++
		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth == 0 {
				return &StringObject{Value: buf.Bytes()}, nil
			}
			buf.WriteByte(b)
		case '\\':
			if p.pos >= len(p.data) {
				return nil, fmt.Errorf("%w: unterminated escape", ErrInvalidString)
			}
			esc := p.data[p.pos]
			p.pos++
			switch esc {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if c, ok := p.peek(); ok && c == '\n' {
					p.pos++
				}
			case '\n':
			default:
				if esc >= '0' && esc <= '7' {
					val := int(esc - '0')
					for i := 0; i < 2; i++ {
						c, ok := p.peek()
						if !ok || c < '0' || c > '7' {
							break
						}
						val = val*8 + int(c-'0')
						p.pos++
					}
					buf.WriteByte(byte(val))
				} else {
					buf.WriteByte(esc)
				}
			}
		default:
			buf.WriteByte(b)
		}
	}
}

// parseHexString parses a hexadecimal string.
func (p *Parser) parseHexString() (*StringObject, error) {
	p.pos++ // <
	var digits []byte
	for {
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("%w: unterminated hex string", ErrInvalidString)
		}
		b := p.data[p.pos]
		p.pos++
		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		digits = append(digits, b)
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	data := make([]byte, len(digits)/2)
	if _, err := hex.Decode(data, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidString, err)
	}
	return &StringObject{Value: data, IsHex: true}, nil
}

// parseDictionary parses a dictionary starting at "<<".
func (p *Parser) parseDictionary() (*DictionaryObject, error) {
	p.pos += 2
	if p.depth++; p.depth > maxNesting {
		return nil, fmt.Errorf("%w: nesting too deep", ErrInvalidDictionary)
	}
	defer func() { p.depth-- }()

	dict := NewDictionary()
	for {
		p.skipWhitespace()
		b, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated dictionary", ErrInvalidDictionary)
		}
		if b == '>' {
			if p.pos+1 < len(p.data) && p.data[p.pos+1] == '>' {
				p.pos += 2
				return dict, nil
			}
			return nil, fmt.Errorf("%w: expected '>>'", ErrInvalidDictionary)
		}
		if b != '/' {
			return nil, fmt.Errorf("%w: key must be a name at offset %d", ErrInvalidDictionary, p.pos)
		}
		key, err := p.parseName()
		if err != nil {
			return nil, err
		}
		value, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: value for key %q: %v", ErrInvalidDictionary, key, err)
		}
		if _, isNull := value.(NullObject); isNull {
			continue
		}
		dict.Set(string(key), value)
	}
}

// parseArray parses an array.
func (p *Parser) parseArray() (ArrayObject, error) {
	p.pos++ // [
	if p.depth++; p.depth > maxNesting {
		return nil, fmt.Errorf("%w: nesting too deep", ErrInvalidArray)
	}
	defer func() { p.depth-- }()

	arr := ArrayObject{}
	for {
		p.skipWhitespace()
		b, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated array", ErrInvalidArray)
		}
		if b == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArray, err)
		}
		arr = append(arr, obj)
	}
}

// parseName parses a name object.
func (p *Parser) parseName() (NameObject, error) {
	p.pos++ // /
	var buf bytes.Buffer
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		p.pos++
		if b == '#' && p.pos+1 < len(p.data) {
			v, err := strconv.ParseUint(string(p.data[p.pos:p.pos+2]), 16, 8)
			if err != nil {
				return "", fmt.Errorf("%w: bad escape in name", ErrInvalidName)
			}
			buf.WriteByte(byte(v))
			p.pos += 2
			continue
		}
		buf.WriteByte(b)
	}
	return NameObject(buf.String()), nil
}

// parseNumber parses an integer or real.
func (p *Parser) parseNumber() (PdfObject, error) {
	start := p.pos
	real := false
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		switch {
		case b >= '0' && b <= '9':
		case b == '.':
			real = true
		case (b == '-' || b == '+') && p.pos == start:
		default:
			goto done
		}
		p.pos++
	}
done:
	tok := string(p.data[start:p.pos])
	if tok == "" || tok == "-" || tok == "+" || tok == "." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, tok)
	}
	if real {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNumber, err)
		}
		return RealObject(v), nil
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNumber, err)
	}
	return IntegerObject(v), nil
}

// parseNumberOrReference parses a number, looking ahead for "g R".
func (p *Parser) parseNumberOrReference() (PdfObject, error) {
	first, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	objNum, ok := first.(IntegerObject)
	if !ok || objNum < 0 {
		return first, nil
	}

	save := p.pos
	p.skipWhitespace()
	if b, ok := p.peek(); !ok || b < '0' || b > '9' {
		p.pos = save
		return first, nil
	}
	second, err := p.parseNumber()
	gen, isInt := second.(IntegerObject)
	if err != nil || !isInt {
		p.pos = save
		return first, nil
	}
	p.skipWhitespace()
	if b, ok := p.peek(); ok && b == 'R' {
		next := p.pos + 1
		if next >= len(p.data) || isWhitespace(p.data[next]) || isDelimiter(p.data[next]) {
			p.pos = next
			return Reference{ObjectNumber: int(objNum), GenerationNumber: int(gen)}, nil
		}
	}
	p.pos = save
	return first, nil
}

// ParseIndirectObject parses "n g obj ... endobj", including stream data.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	p.skipWhitespace()
	numObj, err := p.parseNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: object number: %v", ErrInvalidObject, err)
	}
	p.skipWhitespace()
	genObj, err := p.parseNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: generation number: %v", ErrInvalidObject, err)
	}
	objNum, ok1 := numObj.(IntegerObject)
	genNum, ok2 := genObj.(IntegerObject)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: object header must be integers", ErrInvalidObject)
	}
	if kw := p.ReadKeyword(); kw != "obj" {
		return nil, fmt.Errorf("%w: expected 'obj', got %q", ErrInvalidObject, kw)
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, err
	}

	if dict, ok := obj.(*DictionaryObject); ok {
		save := p.pos
		if p.ReadKeyword() == "stream" {
			data, err := p.readStreamData(dict)
			if err != nil {
				return nil, err
			}
			obj = NewStream(dict, data)
		} else {
			p.pos = save
		}
	}

	// Some producers omit endobj; tolerate it.
	save := p.pos
	if p.ReadKeyword() != "endobj" {
		p.pos = save
	}
	return NewIndirectObject(int(objNum), int(genNum), obj), nil
}

// readStreamData reads stream bytes after the "stream" keyword.
func (p *Parser) readStreamData(dict *DictionaryObject) ([]byte, error) {
	if p.pos < len(p.data) && p.data[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.data) && p.data[p.pos] == '\n' {
		p.pos++
	}
	start := p.pos

	length := int64(-1)
	switch l := dict.Get("Length").(type) {
	case IntegerObject:
		length = int64(l)
	case Reference:
		if p.ResolveLength != nil {
			if v, ok := p.ResolveLength(l); ok {
				length = v
			}
		}
	}

	if length >= 0 && start+int(length) <= len(p.data) {
		end := start + int(length)
		ahead := &Parser{data: p.data, pos: end}
		if ahead.ReadKeyword() == "endstream" {
			p.pos = ahead.pos
			return p.data[start:end], nil
		}
	}

	// Length missing or wrong: scan for the keyword instead.
	idx := bytes.Index(p.data[start:], []byte("endstream"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing endstream", ErrInvalidStream)
	}
	end := start + idx
	for end > start && (p.data[end-1] == '\n' || p.data[end-1] == '\r') {
		end--
	}
	p.pos = start + idx + len("endstream")
	return p.data[start:end], nil
}

// ParseRectangle parses a rectangle from an array object.
func ParseRectangle(obj PdfObject) (Rectangle, error) {
	arr, ok := obj.(ArrayObject)
	if !ok {
		return Rectangle{}, fmt.Errorf("expected array for rectangle")
	}
	return NewRectangle(arr)
}
