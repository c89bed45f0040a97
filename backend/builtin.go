package backend

import (
	"bytes"
	"context"
	"strings"

	"github.com/go-pdf/fpdf"
)

// BuiltinOptions configures the builtin renderer.
type BuiltinOptions struct {
	// Font is a core font family: Helvetica, Times or Courier.
	Font string
	// FontSize is the body text size in points.
	FontSize float64
}

// BuiltinBackend renders markdown as plain styled text with fpdf. It has
// no external dependencies and is always available.
type BuiltinBackend struct {
	opts BuiltinOptions
	md   *Markdown
}

// NewBuiltinBackend creates the builtin backend.
func NewBuiltinBackend(opts BuiltinOptions) *BuiltinBackend {
	if opts.Font == "" {
		opts.Font = "Helvetica"
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 11
	}
	return &BuiltinBackend{opts: opts, md: NewMarkdown()}
}

// Name implements Backend.
func (b *BuiltinBackend) Name() string { return Builtin }

// Check implements Backend.
func (b *BuiltinBackend) Check(ctx context.Context) error {
	return ctx.Err()
}

// Render implements Backend.
func (b *BuiltinBackend) Render(ctx context.Context, f Fragment) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: f.Width, Ht: f.Height},
	})
	pdf.SetMargins(f.Margin, f.Margin, f.Margin)
	pdf.SetAutoPageBreak(f.Flow, f.Margin)
	pdf.SetCreator("pdfcompose", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	align := fpdfAlign(f.Align)
	size := b.opts.FontSize
	lineHeight := size * 1.3

	pdf.AddPage()
	for _, block := range b.md.Blocks(f.Markdown) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch block.Kind {
		case BlockHeading:
			hs := size * headingScale(block.Level)
			pdf.SetFont(b.opts.Font, "B", hs)
			pdf.MultiCell(0, hs*1.3, tr(block.Text), "", align, false)
			pdf.Ln(hs * 0.3)
		case BlockListItem:
			pdf.SetFont(b.opts.Font, "", size)
			indent := float64(block.Level) * size * 1.5
			pdf.SetX(f.Margin + indent - size*1.2)
			pdf.CellFormat(size*1.2, lineHeight, tr(block.Marker), "", 0, "L", false, 0, "")
			pdf.SetLeftMargin(f.Margin + indent)
			pdf.MultiCell(0, lineHeight, tr(block.Text), "", "L", false)
			pdf.SetLeftMargin(f.Margin)
		case BlockCode:
			pdf.SetFont("Courier", "", size*0.9)
			for _, line := range strings.Split(block.Text, "\n") {
				pdf.MultiCell(0, lineHeight, tr(line), "", "L", false)
			}
			pdf.Ln(size * 0.5)
		case BlockRule:
			y := pdf.GetY() + lineHeight/2
			pdf.Line(f.Margin, y, f.Width-f.Margin, y)
			pdf.Ln(lineHeight)
		default:
			pdf.SetFont(b.opts.Font, "", size)
			pdf.MultiCell(0, lineHeight, tr(block.Text), "", align, false)
			if f.Flow {
				pdf.Ln(size * 0.5)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, renderError(Builtin, err)
	}
	return buf.Bytes(), nil
}

func headingScale(level int) float64 {
	switch level {
	case 1:
		return 1.8
	case 2:
		return 1.5
	case 3:
		return 1.25
	}
	return 1.1
}

func fpdfAlign(align string) string {
	switch align {
	case "center":
		return "C"
	case "right":
		return "R"
	}
	return "L"
}
