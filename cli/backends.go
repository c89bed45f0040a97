package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/georgepadayatti/pdfcompose/backend"
)

// BackendsCommand implements the 'backends' command.
func BackendsCommand(ctx context.Context, args []string) error {
	fs := newFlagSet("backends", "",
		"Check the rendering backends and show which one a render would use.")
	var (
		common    commonFlags
		requested string
	)
	fs.StringVarP(&requested, "backend", "b", "", "Backend to request")
	common.register(fs)
	if done, err := parseArgs(fs, args, 0); done {
		return err
	}

	s, err := common.load()
	if err != nil {
		return err
	}
	defer s.Close()
	if requested == "" {
		requested = s.config.Backend.Preferred
	}

	selector := backend.NewDefaultSelector(s.logger, s.config.Backend.BackendOptions())
	defer selector.Close()

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	var available []string
	for _, r := range selector.Check(ctx) {
		status := "available"
		if r.Err != nil {
			status = "unavailable: " + r.Err.Error()
		} else {
			available = append(available, r.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Name, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nSelected for %q: %s\n", requested, backend.SelectWithPriority(s.logger, requested, available, priority(s)))
	return nil
}

func priority(s *session) []string {
	if p := s.config.Backend.Priority; len(p) > 0 {
		return p
	}
	return backend.DefaultPriority()
}
