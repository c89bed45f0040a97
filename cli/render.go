package cli

import (
	"context"

	"github.com/georgepadayatti/pdfcompose/engine"
)

// RenderCommand implements the 'render' command.
func RenderCommand(ctx context.Context, args []string) error {
	fs := newFlagSet("render", "<layout.yaml> <output.pdf>",
		"Render a markdown layout with the selected backend, compose it and write the requested copies.")
	var (
		common      commonFlags
		copies      copyFlags
		backendName string
	)
	fs.StringVarP(&backendName, "backend", "b", "", "Backend: auto, chrome, weasyprint, wkhtmltopdf, builtin")
	copies.register(fs)
	common.register(fs)
	if done, err := parseArgs(fs, args, 2); done {
		return err
	}

	s, err := common.load()
	if err != nil {
		return err
	}
	defer s.Close()

	req, err := copies.request(s.config)
	if err != nil {
		return err
	}
	layout, err := loadLayout(fs.Arg(0), s.config.Page)
	if err != nil {
		return err
	}
	if backendName == "" {
		backendName = s.config.Backend.Preferred
	}

	eng := s.newEngine()
	defer eng.Close()
	res, err := eng.Generate(ctx, engine.Request{Backend: backendName, Layout: layout, Copies: req})
	if err != nil {
		return err
	}
	if err := writeOutput(fs.Arg(1), res.Data); err != nil {
		return err
	}
	report(fs.Arg(1), "Rendered %d %s x %d %s with %s to %s",
		res.Pages, plural(res.Pages, "page", "pages"),
		res.Copies, plural(res.Copies, "copy", "copies"),
		res.Backend, fs.Arg(1))
	return nil
}
