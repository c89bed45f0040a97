package crypt

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/bidi"
	"golang.org/x/text/unicode/norm"
)

// SASLprep errors
var (
	ErrSASLprepProhibited    = errors.New("SASLprep: prohibited character")
	ErrSASLprepBidirectional = errors.New("SASLprep: failed bidirectional check")
)

// maxPasswordBytes is the longest password revision 6 hashes.
const maxPasswordBytes = 127

// SASLprep applies the RFC 4013 profile: map, NFKC normalize, reject
// prohibited code points and check bidirectional text.
func SASLprep(data string) (string, error) {
	var mapped strings.Builder
	mapped.Grow(len(data))
	for _, r := range data {
		switch {
		case mapsToNothing(r):
		case r != ' ' && unicode.Is(unicode.Zs, r):
			mapped.WriteRune(' ')
		default:
			mapped.WriteRune(r)
		}
	}

	normalized := norm.NFKC.String(mapped.String())
	if normalized == "" {
		return "", nil
	}

	var hasRandAL, hasL bool
	for _, r := range normalized {
		if prohibited(r) {
			return "", ErrSASLprepProhibited
		}
		switch bidiClass(r) {
		case bidi.R, bidi.AL:
			hasRandAL = true
		case bidi.L:
			hasL = true
		}
	}

	if hasRandAL {
		runes := []rune(normalized)
		first, last := bidiClass(runes[0]), bidiClass(runes[len(runes)-1])
		if hasL || !isRandAL(first) || !isRandAL(last) {
			return "", ErrSASLprepBidirectional
		}
	}
	return normalized, nil
}

// PreparePassword prepares a revision 6 password: SASLprep followed by
// truncation to 127 bytes.
func PreparePassword(password string) ([]byte, error) {
	if password == "" {
		return nil, nil
	}
	prepared, err := SASLprep(password)
	if err != nil {
		return nil, err
	}
	b := []byte(prepared)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b, nil
}

func bidiClass(r rune) bidi.Class {
	props, _ := bidi.LookupRune(r)
	return props.Class()
}

func isRandAL(c bidi.Class) bool {
	return c == bidi.R || c == bidi.AL
}

// mapsToNothing covers RFC 3454 table B.1.
func mapsToNothing(r rune) bool {
	switch r {
	case 0x00AD, 0x034F, 0x1806, 0x180B, 0x180C, 0x180D, 0x200B, 0x200C,
		0x200D, 0x2060, 0xFEFF:
		return true
	}
	return r >= 0xFE00 && r <= 0xFE0F
}

// prohibited covers RFC 3454 tables C.2 through C.9 as used by SASLprep.
func prohibited(r rune) bool {
	switch {
	case r != ' ' && unicode.Is(unicode.Zs, r):
		return true
	case unicode.IsControl(r):
		return true
	case r >= 0x2028 && r <= 0x2029, r >= 0x206A && r <= 0x206F, r >= 0xFFF9 && r <= 0xFFFC:
		return true
	case r >= 0x200E && r <= 0x200F, r >= 0x202A && r <= 0x202E:
		return true
	case r >= 0x1D173 && r <= 0x1D17A, r == 0x06DD, r == 0x070F, r == 0x180E:
		return true
	case unicode.Is(unicode.Co, r), unicode.Is(unicode.Cs, r):
		return true
	case r >= 0xFDD0 && r <= 0xFDEF, r&0xFFFE == 0xFFFE:
		return true
	case r >= 0x2FF0 && r <= 0x2FFB, r == 0xFFFD:
		return true
	case r == 0xE0001, r >= 0xE0020 && r <= 0xE007F:
		return true
	}
	return false
}
