package cli

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/georgepadayatti/pdfcompose/engine"
)

// streamFlags name the header and footer PDFs and how they map onto body
// pages.
type streamFlags struct {
	header        string
	footer        string
	headerDynamic bool
	footerDynamic bool
	structured    bool
}

func (f *streamFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.header, "header", "", "Header PDF placed above every body page")
	fs.StringVar(&f.footer, "footer", "", "Footer PDF placed below every body page")
	fs.BoolVar(&f.headerDynamic, "header-dynamic", false, "Header has one page per body page")
	fs.BoolVar(&f.footerDynamic, "footer-dynamic", false, "Footer has one page per body page")
	fs.BoolVar(&f.structured, "structured", false, "Header and footer have first, odd, even and last pages")
}

// readStreams reads the body and the configured attachments.
func (f *streamFlags) readStreams(body string) (engine.Streams, error) {
	s := engine.Streams{
		HeaderDynamic: f.headerDynamic,
		FooterDynamic: f.footerDynamic,
		Structured:    f.structured,
	}
	var err error
	if s.Body, err = readInput("body", body); err != nil {
		return s, err
	}
	if f.header != "" {
		if s.Header, err = readInput("header", f.header); err != nil {
			return s, err
		}
	}
	if f.footer != "" {
		if s.Footer, err = readInput("footer", f.footer); err != nil {
			return s, err
		}
	}
	return s, nil
}

func readInput(name, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// ComposeCommand implements the 'compose' command.
func ComposeCommand(ctx context.Context, args []string) error {
	fs := newFlagSet("compose", "<body.pdf> <output.pdf>",
		"Compose a body PDF with optional header and footer PDFs, then write the requested copies.")
	var (
		common  commonFlags
		streams streamFlags
		copies  copyFlags
	)
	streams.register(fs)
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
	input, err := streams.readStreams(fs.Arg(0))
	if err != nil {
		return err
	}

	eng := s.newEngine()
	defer eng.Close()
	data, err := eng.ComposeStreams(ctx, input, req, nil)
	if err != nil {
		return err
	}
	if err := writeOutput(fs.Arg(1), data); err != nil {
		return err
	}
	report(fs.Arg(1), "Wrote %d %s to %s", req.Copies(), plural(req.Copies(), "copy", "copies"), fs.Arg(1))
	return nil
}
