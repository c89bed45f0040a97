package compose

import "fmt"

// Mode says how an attachment's pages map onto body pages.
type Mode int

const (
	// ModeAbsent means there is no attachment.
	ModeAbsent Mode = iota
	// ModeSingle reuses one page on every body page.
	ModeSingle
	// ModeStructured picks one of four variant pages per body page.
	ModeStructured
	// ModeDynamic maps attachment page i onto body page i.
	ModeDynamic
)

func (m Mode) String() string {
	switch m {
	case ModeAbsent:
		return "absent"
	case ModeSingle:
		return "single"
	case ModeStructured:
		return "structured"
	case ModeDynamic:
		return "dynamic"
	}
	return "unknown"
}

// ParseMode parses a mode name as returned by String. The empty string
// and "none" mean ModeAbsent.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "none", "absent":
		return ModeAbsent, nil
	case "single":
		return ModeSingle, nil
	case "structured":
		return ModeStructured, nil
	case "dynamic":
		return ModeDynamic, nil
	}
	return ModeAbsent, fmt.Errorf("unknown mode %q", s)
}

// ExpectedPages returns how many attachment pages the mode needs for a body
// of bodyPages pages.
func (m Mode) ExpectedPages(bodyPages int) int {
	switch m {
	case ModeSingle:
		return 1
	case ModeStructured:
		return 4
	case ModeDynamic:
		return bodyPages
	}
	return 0
}

// pageIndex returns the attachment page used for body page i of n.
func (m Mode) pageIndex(i, n int) int {
	switch m {
	case ModeStructured:
		return int(SelectVariant(i, n))
	case ModeDynamic:
		return i
	}
	return 0
}

// Variant names a page of a structured attachment.
type Variant int

const (
	VariantFirst Variant = iota
	VariantOdd
	VariantEven
	VariantLast
)

func (v Variant) String() string {
	switch v {
	case VariantFirst:
		return "first"
	case VariantOdd:
		return "odd"
	case VariantEven:
		return "even"
	case VariantLast:
		return "last"
	}
	return "unknown"
}

// SelectVariant returns the variant for body page i of n. The first page
// wins over the last when n is 1.
func SelectVariant(i, n int) Variant {
	switch {
	case i == 0:
		return VariantFirst
	case i == n-1:
		return VariantLast
	case i%2 == 0:
		return VariantEven
	default:
		return VariantOdd
	}
}

// Attachment is a header or footer with its mode.
type Attachment struct {
	Mode   Mode
	Stream *PageStream
}

// ModeFor derives the mode of an attachment from the external flags.
// Dynamic wins over structured; a nil stream is absent.
func ModeFor(stream *PageStream, dynamic, structured bool) Mode {
	switch {
	case stream == nil:
		return ModeAbsent
	case dynamic:
		return ModeDynamic
	case structured:
		return ModeStructured
	}
	return ModeSingle
}

// Plan describes one composition.
type Plan struct {
	Body   *PageStream
	Header Attachment
	Footer Attachment
}

// PlanFromFlags builds a plan from the boolean flags rendering backends
// report.
func PlanFromFlags(body, header, footer *PageStream, headerDynamic, footerDynamic, structured bool) Plan {
	return Plan{
		Body:   body,
		Header: Attachment{Mode: ModeFor(header, headerDynamic, structured), Stream: header},
		Footer: Attachment{Mode: ModeFor(footer, footerDynamic, structured), Stream: footer},
	}
}

// Validate checks the body and the attachment page counts.
func (p Plan) Validate() error {
	if p.Body == nil || p.Body.PageCount() == 0 {
		return &InvalidInputError{Stream: StreamBody, Reason: "body has no pages"}
	}
	n := p.Body.PageCount()
	for _, a := range []struct {
		name string
		Attachment
	}{{StreamHeader, p.Header}, {StreamFooter, p.Footer}} {
		if a.Mode == ModeAbsent {
			continue
		}
		if a.Stream == nil {
			return &InvalidInputError{Stream: a.name, Reason: "missing stream", Mode: a.Mode, Expected: a.Mode.ExpectedPages(n)}
		}
		if want, got := a.Mode.ExpectedPages(n), a.Stream.PageCount(); want != got {
			return &InvalidInputError{
				Stream:   a.name,
				Reason:   "page count does not match mode",
				Mode:     a.Mode,
				Expected: want,
				Actual:   got,
			}
		}
	}
	return nil
}

// page returns the attachment page for body page i of n.
func (a Attachment) page(i, n int) (Page, bool) {
	if a.Mode == ModeAbsent || a.Stream == nil {
		return Page{}, false
	}
	return a.Stream.Page(a.Mode.pageIndex(i, n)), true
}
