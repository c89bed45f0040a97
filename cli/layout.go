package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/pdfcompose/backend"
	"github.com/georgepadayatti/pdfcompose/compose"
	"github.com/georgepadayatti/pdfcompose/config"
)

// layoutFile is the YAML form of a document layout:
//
//	body-file: invoice.md
//	header:
//	  mode: structured
//	  height: 60
//	  pages: ["# ACME", "ACME", "ACME", "ACME, last page"]
//	footer:
//	  mode: dynamic
//	  pages: ["Page {page} of {pages}"]
//	  align: center
type layoutFile struct {
	Body     string       `yaml:"body"`
	BodyFile string       `yaml:"body-file"`
	Header   *sectionFile `yaml:"header"`
	Footer   *sectionFile `yaml:"footer"`
}

type sectionFile struct {
	Mode   string   `yaml:"mode"`
	Height float64  `yaml:"height"`
	Pages  []string `yaml:"pages"`
	Align  string   `yaml:"align"`
}

// loadLayout reads a layout file. Relative body files are resolved
// against the layout's directory.
func loadLayout(path string, page *config.PageConfig) (backend.Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backend.Layout{}, fmt.Errorf("failed to read layout: %w", err)
	}
	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return backend.Layout{}, fmt.Errorf("%w: %s: %v", backend.ErrLayout, path, err)
	}
	return f.layout(filepath.Dir(path), page)
}

func (f layoutFile) layout(dir string, page *config.PageConfig) (backend.Layout, error) {
	layout, err := page.Layout()
	if err != nil {
		return layout, err
	}

	layout.Body = f.Body
	if f.BodyFile != "" {
		path := f.BodyFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return layout, fmt.Errorf("failed to read body: %w", err)
		}
		layout.Body = string(data)
	}

	if layout.Header, err = f.Header.section(compose.StreamHeader, layout.Header.Height); err != nil {
		return layout, err
	}
	if layout.Footer, err = f.Footer.section(compose.StreamFooter, layout.Footer.Height); err != nil {
		return layout, err
	}
	return layout, layout.Validate()
}

// section converts a section. A missing mode with pages means single.
func (s *sectionFile) section(name string, defaultHeight float64) (backend.Section, error) {
	if s == nil {
		return backend.Section{Height: defaultHeight}, nil
	}
	mode, err := compose.ParseMode(s.Mode)
	if err != nil {
		return backend.Section{}, fmt.Errorf("%w: %s: %v", backend.ErrLayout, name, err)
	}
	if s.Mode == "" && len(s.Pages) > 0 {
		mode = compose.ModeSingle
	}
	height := s.Height
	if height == 0 {
		height = defaultHeight
	}
	return backend.Section{Mode: mode, Height: height, Pages: s.Pages, Align: s.Align}, nil
}
