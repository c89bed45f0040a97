package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
)

// Select picks a backend from available using DefaultPriority.
func Select(logger *slog.Logger, requested string, available []string) string {
	return SelectWithPriority(logger, requested, available, DefaultPriority())
}

// SelectWithPriority returns requested when it is available, otherwise the
// first available backend in priority order, otherwise Fallback. It never
// fails and depends only on its arguments.
func SelectWithPriority(logger *slog.Logger, requested string, available, priority []string) string {
	selected := Fallback
	switch {
	case requested != "" && requested != Auto && slices.Contains(available, requested):
		selected = requested
	default:
		for _, name := range priority {
			if slices.Contains(available, name) {
				selected = name
				break
			}
		}
	}
	if logger != nil {
		logger.Info("backend selected",
			slog.String("selected", selected),
			slog.String("requested", requested),
			slog.Any("available", available))
	}
	return selected
}

var errNotRegistered = errors.New("not registered")

// CheckResult is the outcome of checking one backend.
type CheckResult struct {
	Name string
	Err  error
}

// Selector picks among registered backends.
type Selector struct {
	backends []Backend
	priority []string
	logger   *slog.Logger
}

// NewSelector creates a selector. A nil priority means DefaultPriority and
// a nil logger discards.
func NewSelector(logger *slog.Logger, priority []string, backends ...Backend) *Selector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if priority == nil {
		priority = DefaultPriority()
	}
	return &Selector{backends: backends, priority: priority, logger: logger}
}

// Check runs the availability check of every backend in registration order.
func (s *Selector) Check(ctx context.Context) []CheckResult {
	results := make([]CheckResult, 0, len(s.backends))
	for _, b := range s.backends {
		results = append(results, CheckResult{Name: b.Name(), Err: b.Check(ctx)})
	}
	return results
}

// Available returns the names of the backends whose check succeeds.
// Failing checks are logged and skipped.
func (s *Selector) Available(ctx context.Context) []string {
	return s.available(s.Check(ctx))
}

func (s *Selector) available(results []CheckResult) []string {
	var names []string
	for _, r := range results {
		if r.Err != nil {
			s.logger.Debug("backend check failed", slog.String("backend", r.Name), slog.Any("error", r.Err))
			continue
		}
		names = append(names, r.Name)
	}
	return names
}

// Select returns the name of the backend to use for requested.
func (s *Selector) Select(ctx context.Context, requested string) string {
	return SelectWithPriority(s.logger, requested, s.Available(ctx), s.priority)
}

// Close releases backends that hold resources, such as a running browser.
func (s *Selector) Close() error {
	var errs []error
	for _, b := range s.backends {
		if c, ok := b.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Resolve returns the backend to use for requested. It fails only when
// the fallback is not registered or does not pass its check.
func (s *Selector) Resolve(ctx context.Context, requested string) (Backend, error) {
	results := s.Check(ctx)
	name := SelectWithPriority(s.logger, requested, s.available(results), s.priority)
	err := errNotRegistered
	for i, r := range results {
		if r.Name != name {
			continue
		}
		if r.Err == nil {
			return s.backends[i], nil
		}
		err = r.Err
	}
	return nil, &BackendUnavailableError{Backend: name, Err: err}
}
