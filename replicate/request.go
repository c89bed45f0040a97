// Package replicate turns a composed document into labeled copies and
// writes them to a sink, optionally encrypted.
package replicate

import (
	"fmt"

	"github.com/georgepadayatti/pdfcompose/stamp"
)

// DefaultLabels returns the labels used when a request names none.
func DefaultLabels() []string {
	return []string{"Original", "Copy"}
}

// Encryption holds password settings for the output document.
type Encryption struct {
	// Password is required to open the document.
	Password string
	// OwnerPassword defaults to Password.
	OwnerPassword string
	// AESBits is 128 or 256. Zero means 256.
	AESBits int
}

// CopyRequest says how many copies to produce and how to mark them.
type CopyRequest struct {
	// Count is the number of copies. Zero means one.
	Count int
	// Labels names copies in order. Nil means DefaultLabels.
	Labels []string
	// Watermark stamps each copy's label on its pages. Nil means stamp
	// when there is more than one copy.
	Watermark *bool
	// Style is the watermark appearance.
	Style stamp.Style
	// Encryption is applied to the whole output. Nil means none.
	Encryption *Encryption
}

// Copies returns the effective copy count.
func (r CopyRequest) Copies() int {
	if r.Count < 1 {
		return 1
	}
	return r.Count
}

// Label returns the label of copy k.
func (r CopyRequest) Label(k int) string {
	labels := r.Labels
	if labels == nil {
		labels = DefaultLabels()
	}
	if k >= 0 && k < len(labels) {
		return labels[k]
	}
	return fmt.Sprintf("COPY %d", k)
}

// Watermarked reports whether copies are stamped.
func (r CopyRequest) Watermarked() bool {
	if r.Watermark != nil {
		return *r.Watermark
	}
	return r.Copies() > 1
}
