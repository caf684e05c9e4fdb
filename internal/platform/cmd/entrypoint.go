// Package cmd holds the startup sequence shared by deckledger commands:
// environment defaults, flag overrides, then a traced run.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/louisbranch/deckledger/internal/platform/config"
	"github.com/louisbranch/deckledger/internal/platform/otel"
)

const telemetryShutdownTimeout = 5 * time.Second

// Command names. Each doubles as the OTel service name.
const (
	ServiceDeck     = "deckvc"
	ServiceMCP      = "mcp"
	ServiceScenario = "scenario"
)

// Load reads DECKLEDGER_* environment defaults into a T, lets bind register
// flags against it, and parses args. Flag defaults are the environment values.
func Load[T any](fs *flag.FlagSet, args []string, bind func(*flag.FlagSet, *T)) (T, error) {
	var cfg T
	if fs == nil {
		return cfg, errors.New("flag set is required")
	}
	if err := config.ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if bind != nil {
		bind(fs, &cfg)
	}
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Run sets up tracing for service and calls fn inside a root span named
// "<service>.run". Pending spans are flushed before Run returns.
func Run(ctx context.Context, service string, fn func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if fn == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s telemetry shutdown: %v", service, err)
		}
	}()

	ctx, span := otel.Tracer().Start(ctx, service+".run")
	defer span.End()
	span.SetAttributes(attribute.String("deckledger.command", service))
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
