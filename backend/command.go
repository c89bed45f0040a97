package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var errNotPDF = errors.New("output is not a PDF")

// CommandRunner runs external programs. Tests substitute a fake.
type CommandRunner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, stdin []byte, name string, args ...string) (stdout []byte, stderr string, err error)
}

// ExecRunner implements CommandRunner with os/exec.
type ExecRunner struct{}

// LookPath implements CommandRunner.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.String(), err
}

// CommandBackend converts the fragment's HTML document with an external
// program reading stdin and writing the PDF to stdout.
type CommandBackend struct {
	name   string
	bin    string
	args   func(f Fragment) []string
	runner CommandRunner
	md     *Markdown
}

// NewWeasyPrintBackend creates a backend running weasyprint. Page size and
// margins come from the document's @page rule.
func NewWeasyPrintBackend(bin string, runner CommandRunner) *CommandBackend {
	if bin == "" {
		bin = WeasyPrint
	}
	return newCommandBackend(WeasyPrint, bin, runner, func(Fragment) []string {
		return []string{"--quiet", "--encoding", "utf-8", "-", "-"}
	})
}

// NewWkHTMLToPDFBackend creates a backend running wkhtmltopdf.
func NewWkHTMLToPDFBackend(bin string, runner CommandRunner) *CommandBackend {
	if bin == "" {
		bin = WkHTMLToPDF
	}
	return newCommandBackend(WkHTMLToPDF, bin, runner, func(f Fragment) []string {
		margin := millimeters(f.Margin)
		args := []string{
			"--quiet",
			"--encoding", "utf-8",
			"--page-width", millimeters(f.Width),
			"--page-height", millimeters(f.Height),
			"--margin-top", margin,
			"--margin-bottom", margin,
			"--margin-left", margin,
			"--margin-right", margin,
		}
		return append(args, "-", "-")
	})
}

func newCommandBackend(name, bin string, runner CommandRunner, args func(Fragment) []string) *CommandBackend {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &CommandBackend{name: name, bin: bin, args: args, runner: runner, md: NewMarkdown()}
}

// Name implements Backend.
func (c *CommandBackend) Name() string { return c.name }

// Check reports whether the program is on the PATH.
func (c *CommandBackend) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.runner.LookPath(c.bin)
	return err
}

// Render implements Backend.
func (c *CommandBackend) Render(ctx context.Context, f Fragment) ([]byte, error) {
	doc, err := c.md.Document(f)
	if err != nil {
		return nil, renderError(c.name, err)
	}
	stdout, stderr, err := c.runner.Run(ctx, []byte(doc), c.bin, c.args(f)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, renderError(c.name, fmt.Errorf("%s: %w", strings.TrimSpace(stderr), err))
	}
	if !bytes.HasPrefix(stdout, []byte("%PDF-")) {
		return nil, renderError(c.name, errNotPDF)
	}
	return stdout, nil
}

func millimeters(points float64) string {
	return formatPoints(points*25.4/72) + "mm"
}
