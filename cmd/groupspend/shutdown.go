package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

type shutdownStep struct {
	name string
	fn   func(context.Context) error
}

// shutdown collects release steps as resources come up and runs them
// newest first.
type shutdown struct {
	timeout time.Duration
	steps   []shutdownStep
}

func (s *shutdown) add(name string, fn func(context.Context) error) {
	s.steps = append(s.steps, shutdownStep{name: name, fn: fn})
}

// run executes every step even when earlier ones fail. cause, when set, is
// reported first.
func (s *shutdown) run(cause error) error {
	var result *multierror.Error
	if cause != nil {
		result = multierror.Append(result, cause)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.fn(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	s.steps = nil
	return result.ErrorOrNil()
}
