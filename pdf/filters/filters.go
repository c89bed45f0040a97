// Package filters decodes PDF stream data. Writing only ever needs Flate,
// so FlateEncode is the single encoder.
package filters

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/georgepadayatti/pdfcompose/pdf/generic"
)

// Common errors
var (
	ErrUnsupportedFilter = errors.New("unsupported filter")
	ErrDecodeFailed      = errors.New("decode failed")
)

// Params holds the integer entries of a DecodeParms dictionary, such as
// Predictor, Columns and EarlyChange.
type Params map[string]int

// Get returns the named parameter or def when it is absent.
func (p Params) Get(name string, def int) int {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// ParamsFromDict extracts integer parameters from a DecodeParms dictionary.
func ParamsFromDict(dict *generic.DictionaryObject) Params {
	if dict == nil {
		return nil
	}
	params := Params{}
	for _, key := range dict.Keys() {
		if v, ok := dict.GetInt(key); ok {
			params[key] = int(v)
		}
	}
	return params
}

// Decoder decodes the output of one filter stage.
type Decoder func(data []byte, params Params) ([]byte, error)

// decoders maps filter names, including the inline image abbreviations,
// to their decoders.
var decoders = map[string]Decoder{
	"FlateDecode":     decodeFlate,
	"Fl":              decodeFlate,
	"LZWDecode":       decodeLZW,
	"LZW":             decodeLZW,
	"ASCIIHexDecode":  decodeASCIIHex,
	"AHx":             decodeASCIIHex,
	"ASCII85Decode":   decodeASCII85,
	"A85":             decodeASCII85,
	"RunLengthDecode": decodeRunLength,
	"RL":              decodeRunLength,
}

// Supported reports whether the named filter can be decoded.
func Supported(name string) bool {
	_, ok := decoders[name]
	return ok
}

// Decode applies a single named filter.
func Decode(name string, data []byte, params Params) ([]byte, error) {
	decode, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
	}
	out, err := decode(data, params)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", name, err)
	}
	return out, nil
}

// DecodeStream applies filters in order. parms[i] belongs to filters[i]
// and may be missing.
func DecodeStream(data []byte, filters []string, parms []Params) ([]byte, error) {
	for i, name := range filters {
		var params Params
		if i < len(parms) {
			params = parms[i]
		}
		var err error
		if data, err = Decode(name, data, params); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// DecodeStreamObject returns the fully decoded data of a stream, applying
// every filter named in its dictionary together with its DecodeParms.
func DecodeStreamObject(s *generic.StreamObject) ([]byte, error) {
	names := s.Filters()
	if len(names) == 0 {
		return s.Data, nil
	}
	var parms []Params
	switch dp := s.Dictionary.Get("DecodeParms").(type) {
	case *generic.DictionaryObject:
		parms = []Params{ParamsFromDict(dp)}
	case generic.ArrayObject:
		for _, item := range dp {
			d, _ := item.(*generic.DictionaryObject)
			parms = append(parms, ParamsFromDict(d))
		}
	}
	return DecodeStream(s.Data, names, parms)
}

// FlateEncode compresses data for a /FlateDecode stream.
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("flate encode failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flate encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeFlate(data []byte, params Params) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		// Truncated streams are common; keep what was inflated.
		if len(out) == 0 || !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
	}
	return unpredict(out, params)
}

func decodeASCIIHex(data []byte, _ Params) ([]byte, error) {
	digits := make([]byte, 0, len(data))
	for _, b := range data {
		if b == '>' {
			break
		}
		if !isSpace(b) {
			digits = append(digits, b)
		}
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

func decodeASCII85(data []byte, _ Params) ([]byte, error) {
	if end := bytes.Index(data, []byte("~>")); end != -1 {
		data = data[:end]
	}
	data = bytes.TrimPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("<~"))
	out, err := io.ReadAll(ascii85.NewDecoder(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

func decodeRunLength(data []byte, _ Params) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out.Bytes(), nil
		case n < 128:
			if i+n+1 > len(data) {
				return nil, fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			out.Write(data[i : i+n+1])
			i += n + 1
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			out.Write(bytes.Repeat(data[i:i+1], 257-n))
			i++
		}
	}
	return out.Bytes(), nil
}

// decodeLZW decodes MSB-first LZW with 9 to 12 bit codes. EarlyChange
// (default 1) widens codes one entry early.
func decodeLZW(data []byte, params Params) ([]byte, error) {
	const (
		clearCode = 256
		eodCode   = 257
	)
	early := params.Get("EarlyChange", 1)

	var (
		table  [][]byte
		width  int
		bitPos int
		prev   []byte
		out    bytes.Buffer
	)
	reset := func() {
		table = make([][]byte, 258, 4096)
		for i := 0; i < 256; i++ {
			table[i] = []byte{byte(i)}
		}
		width = 9
		prev = nil
	}
	reset()

	for bitPos+width <= len(data)*8 {
		code := 0
		for i := 0; i < width; i++ {
			bit := bitPos + i
			code = code<<1 | int(data[bit/8]>>(7-bit%8)&1)
		}
		bitPos += width

		switch {
		case code == eodCode:
			return unpredict(out.Bytes(), params)
		case code == clearCode:
			reset()
			continue
		}

		var seq []byte
		switch {
		case code < len(table):
			seq = table[code]
		case code == len(table) && prev != nil:
			seq = append(append([]byte{}, prev...), prev[0])
		default:
			return nil, fmt.Errorf("%w: invalid LZW code %d", ErrDecodeFailed, code)
		}
		out.Write(seq)

		if prev != nil && len(table) < 4096 {
			entry := append(append([]byte{}, prev...), seq[0])
			table = append(table, entry)
			if len(table)+early >= 1<<width && width < 12 {
				width++
			}
		}
		prev = seq
	}
	return unpredict(out.Bytes(), params)
}

// unpredict reverses a PNG predictor (Predictor >= 10). Other predictors
// leave the data unchanged.
func unpredict(data []byte, params Params) ([]byte, error) {
	if params.Get("Predictor", 1) < 10 || len(data) == 0 {
		return data, nil
	}
	colors := params.Get("Colors", 1)
	bpc := params.Get("BitsPerComponent", 8)
	columns := params.Get("Columns", 1)

	bpp := (colors*bpc + 7) / 8
	stride := (columns*colors*bpc + 7) / 8

	out := make([]byte, 0, len(data)/(stride+1)*stride)
	prev := make([]byte, stride)
	for i := 0; i+stride+1 <= len(data); i += stride + 1 {
		kind, row := data[i], append([]byte{}, data[i+1:i+1+stride]...)
		for j := range row {
			var left, upLeft byte
			if j >= bpp {
				left, upLeft = row[j-bpp], prev[j-bpp]
			}
			up := prev[j]
			switch kind {
			case 1:
				row[j] += left
			case 2:
				row[j] += up
			case 3:
				row[j] += byte((int(left) + int(up)) / 2)
			case 4:
				row[j] += paeth(left, up, upLeft)
			}
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}
