package backend

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// documentTemplate wraps a rendered fragment in a standalone page whose
// @page rule fixes the paper size.
const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
@page { size: %spt %spt; margin: %spt; }
html, body { margin: 0; padding: 0; }
body { font-family: Helvetica, Arial, sans-serif; font-size: 11pt; text-align: %s; }
</style>
</head>
<body>
%s
</body>
</html>`

// Markdown converts fragment markdown to HTML and to plain text blocks.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a converter with GitHub flavored markdown.
func NewMarkdown() *Markdown {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
		),
	)
	return &Markdown{md: md}
}

// HTML converts markdown to an HTML fragment.
func (m *Markdown) HTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Document converts a fragment to a standalone HTML document sized to its
// page.
func (m *Markdown) Document(f Fragment) (string, error) {
	body, err := m.HTML(f.Markdown)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(documentTemplate, formatPoints(f.Width), formatPoints(f.Height), formatPoints(f.Margin),
		html.EscapeString(cssAlign(f.Align)), body), nil
}

func formatPoints(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func cssAlign(align string) string {
	switch align {
	case "center", "right":
		return align
	}
	return "left"
}

// BlockKind classifies text blocks.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockCode
	BlockRule
)

// Block is one block of plain text.
type Block struct {
	Kind BlockKind
	// Level is the heading level or the list nesting depth, from 1.
	Level int
	// Marker is the bullet or number of a list item.
	Marker string
	Text   string
}

// Blocks flattens markdown into plain text blocks in document order.
func (m *Markdown) Blocks(src string) []Block {
	source := []byte(src)
	doc := m.md.Parser().Parse(text.NewReader(source))

	var blocks []Block
	consumed := make(map[ast.Node]bool)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || consumed[n] {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			blocks = append(blocks, Block{Kind: BlockHeading, Level: n.Level, Text: inlineText(n, source)})
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			item := Block{Kind: BlockListItem, Level: listDepth(n), Marker: listMarker(n)}
			if first := n.FirstChild(); first != nil && isTextBlock(first) {
				item.Text = inlineText(first, source)
				consumed[first] = true
			}
			blocks = append(blocks, item)
		case *ast.Paragraph, *ast.TextBlock:
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: inlineText(n, source)})
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			var lines []string
			for i := 0; i < n.Lines().Len(); i++ {
				seg := n.Lines().At(i)
				lines = append(lines, strings.TrimRight(string(seg.Value(source)), "\r\n"))
			}
			blocks = append(blocks, Block{Kind: BlockCode, Text: strings.Join(lines, "\n")})
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			blocks = append(blocks, Block{Kind: BlockRule})
		case *east.TableHeader, *east.TableRow:
			var cells []string
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				cells = append(cells, inlineText(c, source))
			}
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: strings.Join(cells, " | ")})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return blocks
}

func isTextBlock(n ast.Node) bool {
	switch n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return true
	}
	return false
}

func listDepth(n ast.Node) int {
	depth := 0
	for p := n.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.List); ok {
			depth++
		}
	}
	return depth
}

func listMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "•"
	}
	index := 0
	for s := item.PreviousSibling(); s != nil; s = s.PreviousSibling() {
		index++
	}
	return fmt.Sprintf("%d.", list.Start+index)
}

// inlineText concatenates the text below n.
func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			switch {
			case t.HardLineBreak():
				sb.WriteByte('\n')
			case t.SoftLineBreak():
				sb.WriteByte(' ')
			}
			return
		case *ast.String:
			sb.Write(t.Value)
			return
		case *ast.AutoLink:
			sb.Write(t.Label(source))
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
