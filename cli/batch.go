package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/pdfcompose/config"
	"github.com/georgepadayatti/pdfcompose/engine"
	"github.com/georgepadayatti/pdfcompose/replicate"
)

// batchFile lists jobs written into one document. A job either renders a
// layout file or composes existing PDFs:
//
//	jobs:
//	  - layout: invoice.yaml
//	    copies: 2
//	  - body: annex.pdf
//	    footer: annex-footer.pdf
//	    labels: [Annex]
type batchFile struct {
	Jobs []batchJob `yaml:"jobs"`
}

type batchJob struct {
	Name   string `yaml:"name"`
	Layout string `yaml:"layout"`

	Body          string `yaml:"body"`
	Header        string `yaml:"header"`
	Footer        string `yaml:"footer"`
	HeaderDynamic bool   `yaml:"header-dynamic"`
	FooterDynamic bool   `yaml:"footer-dynamic"`
	Structured    bool   `yaml:"structured"`

	Copies    int      `yaml:"copies"`
	Labels    []string `yaml:"labels"`
	Watermark *bool    `yaml:"watermark"`
}

func (j batchJob) title(i int) string {
	if j.Name != "" {
		return j.Name
	}
	return fmt.Sprintf("job %d", i+1)
}

func loadBatch(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var b batchFile
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, usageError("%s: %v", path, err)
	}
	if len(b.Jobs) == 0 {
		return nil, usageError("%s has no jobs", path)
	}
	for i, job := range b.Jobs {
		if (job.Layout == "") == (job.Body == "") {
			return nil, usageError("%s: needs exactly one of layout and body", job.title(i))
		}
	}
	return &b, nil
}

// BatchCommand implements the 'batch' command.
func BatchCommand(ctx context.Context, args []string) error {
	fs := newFlagSet("batch", "<jobs.yaml> <output.pdf>",
		"Run every job of a batch file and write all pages into one document. Paths are relative to the batch file.")
	var (
		common      commonFlags
		backendName string
		password    string
	)
	fs.StringVarP(&backendName, "backend", "b", "", "Backend for layout jobs")
	fs.StringVar(&password, "password", "", "Encrypt the output; defaults to $"+passwordEnv)
	common.register(fs)
	if done, err := parseArgs(fs, args, 2); done {
		return err
	}

	s, err := common.load()
	if err != nil {
		return err
	}
	defer s.Close()

	batch, err := loadBatch(fs.Arg(0))
	if err != nil {
		return err
	}
	if backendName == "" {
		backendName = s.config.Backend.Preferred
	}
	if password == "" {
		password = os.Getenv(passwordEnv)
	}

	eng := s.newEngine()
	defer eng.Close()
	acc := replicate.NewAccumulator()
	dir := filepath.Dir(fs.Arg(0))
	for i, job := range batch.Jobs {
		if err := runJob(ctx, eng, s.config, acc, dir, job, backendName, password); err != nil {
			return fmt.Errorf("%s: %w", job.title(i), err)
		}
	}

	data, err := acc.Bytes()
	if err != nil {
		return err
	}
	if err := writeOutput(fs.Arg(1), data); err != nil {
		return err
	}
	report(fs.Arg(1), "Wrote %d %s from %d %s to %s",
		acc.PageCount(), plural(acc.PageCount(), "page", "pages"),
		len(batch.Jobs), plural(len(batch.Jobs), "job", "jobs"), fs.Arg(1))
	return nil
}

func runJob(ctx context.Context, eng *engine.Engine, cfg *config.Config, acc *replicate.Accumulator, dir string, job batchJob, backendName, password string) error {
	req := cfg.CopyRequest(job.Copies, password)
	if len(job.Labels) > 0 {
		req.Labels = job.Labels
	}
	if job.Watermark != nil {
		req.Watermark = job.Watermark
	}

	if job.Layout != "" {
		layout, err := loadLayout(relativeTo(dir, job.Layout), cfg.Page)
		if err != nil {
			return err
		}
		_, err = eng.Generate(ctx, engine.Request{Backend: backendName, Layout: layout, Copies: req, Sink: acc})
		return err
	}

	streams := streamFlags{
		header:        relativeTo(dir, job.Header),
		footer:        relativeTo(dir, job.Footer),
		headerDynamic: job.HeaderDynamic,
		footerDynamic: job.FooterDynamic,
		structured:    job.Structured,
	}
	input, err := streams.readStreams(relativeTo(dir, job.Body))
	if err != nil {
		return err
	}
	_, err = eng.ComposeStreams(ctx, input, req, acc)
	return err
}

func relativeTo(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
