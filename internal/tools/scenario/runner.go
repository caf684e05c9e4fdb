package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/louisbranch/deckledger/internal/deck/service"
	"github.com/louisbranch/deckledger/internal/platform/timeouts"
)

// Config controls scenario execution.
type Config struct {
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:    timeouts.Scenario,
		Assertions: AssertionStrict,
	}
}

// Runner replays scenarios against a deck service.
type Runner struct {
	svc        *service.Service
	assertions Assertions
	logger     *log.Logger
	verbose    bool
	timeout    time.Duration
}

// NewRunner prepares a runner over svc.
func NewRunner(svc *service.Service, cfg Config) (*Runner, error) {
	if svc == nil {
		return nil, errors.New("deck service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = timeouts.Scenario
	}
	return &Runner{
		svc:        svc,
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
	}, nil
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, svc *service.Service, cfg Config, path string) error {
	runner, err := NewRunner(svc, cfg)
	if err != nil {
		return err
	}
	scenario, err := LoadFile(path)
	if err != nil {
		return err
	}
	return runner.Run(ctx, scenario)
}

// Failures returns the number of expectations that failed in log-only mode.
func (r *Runner) Failures() int {
	return r.assertions.Failures
}

// Run executes the scenario steps in order. Each step gets its own timeout.
func (r *Runner) Run(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	st := &runState{}

	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, st, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
