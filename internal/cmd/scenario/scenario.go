// Package scenario parses scenario command flags and replays a Lua scenario.
package scenario

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/louisbranch/deckledger/internal/deck/service"
	entrypoint "github.com/louisbranch/deckledger/internal/platform/cmd"
	"github.com/louisbranch/deckledger/internal/storage/backend"
	"github.com/louisbranch/deckledger/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	DBPath     string        `env:"SCENARIO_DB_PATH" envDefault:":memory:"`
	Scenario   string        `env:"SCENARIO_FILE"`
	Assertions bool          `env:"SCENARIO_ASSERT"  envDefault:"true"`
	Verbose    bool          `env:"SCENARIO_VERBOSE"`
	Timeout    time.Duration `env:"SCENARIO_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.Load(fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "deck store path (:memory: for a throwaway store)")
		fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
		fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
		fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
		fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per step")
	})
}

// Run executes the scenario command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}

	mode := scenario.AssertionStrict
	if !cfg.Assertions {
		mode = scenario.AssertionLogOnly
	}

	return entrypoint.Run(ctx, entrypoint.ServiceScenario, func(ctx context.Context) error {
		store, err := backend.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open deck store: %w", err)
		}
		defer store.Close()

		logger := log.New(errOut, "", 0)
		runner, err := scenario.NewRunner(service.NewService(store, logger), scenario.Config{
			Timeout:    cfg.Timeout,
			Assertions: mode,
			Verbose:    cfg.Verbose,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		loaded, err := scenario.LoadFile(cfg.Scenario)
		if err != nil {
			return err
		}
		if err := runner.Run(ctx, loaded); err != nil {
			return err
		}
		if failures := runner.Failures(); failures > 0 {
			fmt.Fprintf(out, "%s: %d expectation(s) failed\n", loaded.Name, failures)
			return nil
		}
		fmt.Fprintf(out, "%s: ok (%d steps)\n", loaded.Name, len(loaded.Steps))
		return nil
	})
}
