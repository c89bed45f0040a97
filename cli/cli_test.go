package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/georgepadayatti/pdfcompose/backend"
	"github.com/georgepadayatti/pdfcompose/compose"
	"github.com/georgepadayatti/pdfcompose/config"
	"github.com/georgepadayatti/pdfcompose/internal/pdftest"
	"github.com/georgepadayatti/pdfcompose/pdf/fonts"
	"github.com/georgepadayatti/pdfcompose/pdf/generic"
	"github.com/georgepadayatti/pdfcompose/pdf/reader"
	"github.com/georgepadayatti/pdfcompose/replicate"
)

// run executes the CLI and captures its output and exit code.
func run(t *testing.T, args ...string) (out, errOut string, code int) {
	t.Helper()
	t.Setenv(passwordEnv, "")

	var outBuf, errBuf bytes.Buffer
	oldOut, oldErr, oldExit := stdout, stderr, osExit
	stdout, stderr = &outBuf, &errBuf
	osExit = func(c int) { code = c }
	defer func() { stdout, stderr, osExit = oldOut, oldErr, oldExit }()

	Run(append([]string{"pdfcompose"}, args...))
	return outBuf.String(), errBuf.String(), code
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readPDF(t *testing.T, path, password string) *reader.PdfFileReader {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	r, err := reader.Open(data, reader.Options{Password: password})
	if err != nil {
		t.Fatalf("Output is not readable: %v", err)
	}
	return r
}

func TestVersionCommand(t *testing.T) {
	out, _, code := run(t, "version")
	if code != 0 || !strings.Contains(out, "pdfcompose version dev") {
		t.Errorf("Unexpected version output %q (exit %d)", out, code)
	}
}

func TestUsage(t *testing.T) {
	out, _, code := run(t, "help")
	if code != 0 {
		t.Errorf("Exit code = %d", code)
	}
	for _, command := range []string{"compose", "render", "batch", "backends", "info"} {
		if !strings.Contains(out, "  "+command) {
			t.Errorf("Usage does not list %s", command)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	_, errOut, code := run(t, "sign")
	if code != ExitUsage {
		t.Errorf("Exit code = %d, want %d", code, ExitUsage)
	}
	if !strings.Contains(errOut, "Unknown command: sign") {
		t.Errorf("Unexpected stderr %q", errOut)
	}
}

func TestComposeCommand(t *testing.T) {
	dir := t.TempDir()
	body := writeFile(t, dir, "body.pdf", pdftest.Uniform(t, 3, 612, 700, "body"))
	header := writeFile(t, dir, "header.pdf", pdftest.Uniform(t, 1, 612, 92, "header"))
	output := filepath.Join(dir, "out.pdf")

	out, errOut, code := run(t, "compose", "--header", header, "--copies", "2", body, output)
	if code != 0 {
		t.Fatalf("Exit code %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Wrote 2 copies to "+output) {
		t.Errorf("Unexpected output %q", out)
	}
	r := readPDF(t, output, "")
	if r.GetPageCount() != 6 {
		t.Fatalf("Page count = %d, want 6", r.GetPageCount())
	}
	page, _ := r.GetPage(5)
	if h := r.PageBox(page).Height(); h != 792 {
		t.Errorf("Page height = %v, want 792", h)
	}
}

func TestComposeCommandEncrypted(t *testing.T) {
	dir := t.TempDir()
	body := writeFile(t, dir, "body.pdf", pdftest.Uniform(t, 2, 612, 792, "body"))
	output := filepath.Join(dir, "out.pdf")

	if _, errOut, code := run(t, "compose", "--password", "s3cret", body, output); code != 0 {
		t.Fatalf("Exit code %d: %s", code, errOut)
	}
	if r := readPDF(t, output, "s3cret"); !r.Encrypted || r.GetPageCount() != 2 {
		t.Errorf("Encrypted = %v, pages = %d", r.Encrypted, r.GetPageCount())
	}
}

func TestComposeCommandLabels(t *testing.T) {
	dir := t.TempDir()
	body := writeFile(t, dir, "body.pdf", pdftest.Uniform(t, 1, 612, 792, "body"))
	output := filepath.Join(dir, "out.pdf")

	_, errOut, code := run(t, "compose", "--copies", "2", "--label", "Оригинал,Копия", body, output)
	if code != ExitUsage {
		t.Errorf("Exit code = %d, want %d: %s", code, ExitUsage, errOut)
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Error("No output should be written for unencodable labels")
	}

	font := pdftest.TrueTypeFile(t)
	if _, errOut, code := run(t, "compose", "--copies", "2", "--label", "Оригинал,Копия", "--watermark-font", font, body, output); code != 0 {
		t.Fatalf("Exit code %d: %s", code, errOut)
	}
	r := readPDF(t, output, "")
	if r.GetPageCount() != 2 {
		t.Errorf("Page count = %d, want 2", r.GetPageCount())
	}
	if !bytes.Contains(r.Data(), []byte("/Identity-H")) {
		t.Error("Labels should be drawn with the embedded Type 0 font")
	}
}

func TestComposeCommandErrors(t *testing.T) {
	dir := t.TempDir()
	body := writeFile(t, dir, "body.pdf", pdftest.Uniform(t, 3, 612, 700, "body"))
	footer := writeFile(t, dir, "footer.pdf", pdftest.Uniform(t, 1, 612, 40, "footer"))
	output := filepath.Join(dir, "out.pdf")

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing output argument", []string{body}, ExitUsage},
		{"unknown flag", []string{"--shiny", body, output}, ExitUsage},
		{"missing body", []string{filepath.Join(dir, "none.pdf"), output}, ExitIO},
		{"dynamic footer too short", []string{"--footer", footer, "--footer-dynamic", body, output}, ExitInput},
		{"exclusive watermark flags", []string{"--watermark", "--no-watermark", body, output}, ExitUsage},
		{"unwritable output", []string{body, filepath.Join(dir, "missing", "out.pdf")}, ExitIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, errOut, code := run(t, append([]string{"compose"}, tt.args...)...); code != tt.code {
				t.Errorf("Exit code = %d, want %d (%s)", code, tt.code, errOut)
			}
		})
	}
}

func TestComposeCommandHelp(t *testing.T) {
	_, errOut, code := run(t, "compose", "-h")
	if code != 0 {
		t.Errorf("Exit code = %d", code)
	}
	if !strings.Contains(errOut, "--header-dynamic") {
		t.Errorf("Help does not list flags: %q", errOut)
	}
}

const reportLayout = `
body: |
  # Report

  Quarterly numbers.
header:
  height: 60
  pages: ["ACME Corp"]
footer:
  mode: dynamic
  height: 30
  pages: ["Page {page} of {pages}"]
  align: center
`

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	layout := writeFile(t, dir, "report.yaml", []byte(reportLayout))
	output := filepath.Join(dir, "report.pdf")

	out, errOut, code := run(t, "render", "--backend", "builtin", "-n", "2", "--label", "Customer,Archive", layout, output)
	if code != 0 {
		t.Fatalf("Exit code %d: %s", code, errOut)
	}
	if !strings.Contains(out, "1 page x 2 copies with builtin") {
		t.Errorf("Unexpected output %q", out)
	}
	r := readPDF(t, output, "")
	if r.GetPageCount() != 2 {
		t.Fatalf("Page count = %d, want 2", r.GetPageCount())
	}
	page, _ := r.GetPage(0)
	if box := r.PageBox(page); box.Width() != 612 || box.Height() != 792 {
		t.Errorf("Page box = %+v", box)
	}
}

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "body.md", []byte("From file"))
	path := writeFile(t, dir, "layout.yaml", []byte("body-file: body.md\nheader:\n  mode: structured\n  pages: [a, b, c, d]\n"))

	layout, err := loadLayout(path, &config.PageConfig{Size: "a4", HeaderHeight: 50})
	if err != nil {
		t.Fatal(err)
	}
	want := backend.Section{Mode: compose.ModeStructured, Height: 50, Pages: []string{"a", "b", "c", "d"}}
	if diff := cmp.Diff(want, layout.Header); diff != "" {
		t.Errorf("Header mismatch (-want +got):\n%s", diff)
	}
	if layout.Body != "From file" || layout.Width != 595.28 || layout.Footer.Mode != compose.ModeAbsent {
		t.Errorf("Unexpected layout %+v", layout)
	}

	bad := writeFile(t, dir, "bad.yaml", []byte("header:\n  mode: sometimes\n  pages: [x]\n"))
	if _, err := loadLayout(bad, nil); !errors.Is(err, backend.ErrLayout) {
		t.Errorf("Expected ErrLayout, got %v", err)
	}
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.yaml", []byte(reportLayout))
	writeFile(t, dir, "annex.pdf", pdftest.Uniform(t, 2, 612, 792, "annex"))
	jobs := writeFile(t, dir, "jobs.yaml", []byte(`
jobs:
  - name: report
    layout: report.yaml
  - name: annex
    body: annex.pdf
    copies: 2
`))
	output := filepath.Join(dir, "all.pdf")

	out, errOut, code := run(t, "batch", "--backend", "builtin", "--password", "batch", jobs, output)
	if code != 0 {
		t.Fatalf("Exit code %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Wrote 5 pages from 2 jobs") {
		t.Errorf("Unexpected output %q", out)
	}
	if r := readPDF(t, output, "batch"); r.GetPageCount() != 5 {
		t.Errorf("Page count = %d, want 5", r.GetPageCount())
	}
}

func TestBatchCommandInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		yaml string
	}{
		{"no jobs", "jobs: []\n"},
		{"layout and body", "jobs:\n  - layout: a.yaml\n    body: b.pdf\n"},
		{"neither", "jobs:\n  - copies: 2\n"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := writeFile(t, dir, fmt.Sprintf("jobs%d.yaml", i), []byte(tt.yaml))
			if _, _, code := run(t, "batch", jobs, filepath.Join(dir, "out.pdf")); code != ExitUsage {
				t.Errorf("Exit code = %d, want %d", code, ExitUsage)
			}
		})
	}
}

func TestInfoCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.pdf", pdftest.New(t,
		pdftest.Page{Box: generic.Rectangle{URX: 612, URY: 792}, Text: "one"},
		pdftest.Page{Box: generic.Rectangle{URX: 300, URY: 100.5}, Text: "two"},
	))

	out, errOut, code := run(t, "info", "--json", path)
	if code != 0 {
		t.Fatalf("Exit code %d: %s", code, errOut)
	}
	var got InfoResult
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	want := []PageSize{{612, 792}, {300, 100.5}}
	if got.Pages != 2 || got.Encrypted {
		t.Errorf("Unexpected info %+v", got)
	}
	if diff := cmp.Diff(want, got.Sizes); diff != "" {
		t.Errorf("Sizes mismatch (-want +got):\n%s", diff)
	}

	out, _, _ = run(t, "info", path)
	if !strings.Contains(out, "  2: 300 x 100.5 pt") {
		t.Errorf("Unexpected text output %q", out)
	}
}

func TestBackendsCommand(t *testing.T) {
	out, errOut, code := run(t, "backends", "--backend", "builtin")
	if code != 0 {
		t.Fatalf("Exit code %d: %s", code, errOut)
	}
	for _, want := range []string{"builtin", "available", `Selected for "builtin": builtin`} {
		if !strings.Contains(out, want) {
			t.Errorf("Output lacks %q:\n%s", want, out)
		}
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{nil, ExitSuccess},
		{usageError("bad"), ExitUsage},
		{config.NewConfigError("page.size", "bad"), ExitUsage},
		{fmt.Errorf("read: %w", os.ErrNotExist), ExitIO},
		{&backend.BackendUnavailableError{Backend: backend.Builtin}, ExitBackend},
		{&compose.InvalidInputError{Stream: compose.StreamBody}, ExitInput},
		{&replicate.EncryptionError{Reason: "empty password"}, ExitInput},
		{fmt.Errorf("copy 0: %w", fonts.ErrUnencodable), ExitUsage},
		{errors.New("boom"), ExitGeneral},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.err); got != tt.code {
			t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.code)
		}
	}
}
