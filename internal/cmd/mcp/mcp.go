// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/louisbranch/deckledger/internal/deck/service"
	deckmcp "github.com/louisbranch/deckledger/internal/mcp"
	entrypoint "github.com/louisbranch/deckledger/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/deckledger/internal/platform/grpc"
	"github.com/louisbranch/deckledger/internal/storage/backend"
)

// healthServiceName is the gRPC health service name the MCP process reports.
const healthServiceName = "deckledger.mcp"

// Config holds MCP command configuration.
type Config struct {
	DBPath     string `env:"DB_PATH"        envDefault:"deckledger.db"`
	Locale     string `env:"LOCALE"         envDefault:"en-US"`
	Transport  string `env:"MCP_TRANSPORT"  envDefault:"stdio"`
	HTTPAddr   string `env:"MCP_HTTP_ADDR"  envDefault:"localhost:8081"`
	HealthAddr string `env:"HEALTH_ADDR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.Load(fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (:memory: for a throwaway store)")
		fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for tool output and errors")
		fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
		fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
		fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health server address (empty disables)")
	})
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport != deckmcp.TransportStdio && cfg.Transport != deckmcp.TransportHTTP {
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
	return entrypoint.Run(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		store, err := backend.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open deck store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close deck store: %v", err)
			}
		}()

		svc := service.NewService(store, log.Default())
		server := deckmcp.NewServer(svc, cfg.Locale)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		healthErr := make(chan error, 1)
		if cfg.HealthAddr != "" {
			health := platformgrpc.NewHealthServer(healthServiceName)
			health.SetServing(true)
			go func() {
				healthErr <- health.ListenAndServe(ctx, cfg.HealthAddr)
			}()
			log.Printf("gRPC health listening on %s", cfg.HealthAddr)
		} else {
			close(healthErr)
		}

		var serveErr error
		switch cfg.Transport {
		case deckmcp.TransportHTTP:
			serveErr = deckmcp.ListenAndServeHTTP(ctx, server, cfg.HTTPAddr)
		default:
			serveErr = deckmcp.ServeStdio(ctx, server)
		}
		cancel()
		if err := <-healthErr; err != nil && serveErr == nil {
			serveErr = err
		}
		return serveErr
	})
}
