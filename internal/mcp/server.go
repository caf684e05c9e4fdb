// Package mcp exposes deck version control as Model Context Protocol tools
// and resources over stdio or streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/deckledger/internal/deck/render"
	"github.com/louisbranch/deckledger/internal/deck/service"
	"github.com/louisbranch/deckledger/internal/platform/timeouts"
)

const (
	// serverName identifies the MCP server to clients.
	serverName = "deckledger-mcp"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Supported transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// NewServer builds an MCP server with every deck tool and resource
// registered. Tool output and errors are rendered for locale.
func NewServer(svc *service.Service, locale string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerDeckTools(server, svc, render.New(locale))
	return server
}

func registerDeckTools(server *mcp.Server, svc *service.Service, r *render.Renderer) {
	mcp.AddTool(server, DeckCreateTool(), DeckCreateHandler(svc, r))
	mcp.AddTool(server, DeckAddCardTool(), DeckAddCardHandler(svc, r))
	mcp.AddTool(server, DeckSetCountTool(), DeckSetCountHandler(svc, r))
	mcp.AddTool(server, DeckRemoveCardTool(), DeckRemoveCardHandler(svc, r))
	mcp.AddTool(server, DeckStatusTool(), DeckStatusHandler(svc, r))
	mcp.AddTool(server, DeckCommitTool(), DeckCommitHandler(svc, r))
	mcp.AddTool(server, DeckHistoryTool(), DeckHistoryHandler(svc, r))
	mcp.AddTool(server, DeckCheckoutTool(), DeckCheckoutHandler(svc, r))
	mcp.AddTool(server, DeckCompareTool(), DeckCompareHandler(svc, r))
	mcp.AddTool(server, DeckRevertTool(), DeckRevertHandler(svc, r))
	mcp.AddTool(server, DeckImportTool(), DeckImportHandler(svc, r))
	server.AddResourceTemplate(DeckVersionsResourceTemplate(), DeckVersionsResourceHandler(svc, r))
}

// Serve runs server over transport until the client disconnects or ctx ends.
func Serve(ctx context.Context, server *mcp.Server, transport mcp.Transport) error {
	if server == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := server.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// ServeStdio runs server on stdin/stdout.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return Serve(ctx, server, &mcp.StdioTransport{})
}

// NewHTTPHandler routes /mcp to the streamable HTTP transport and /healthz to
// a liveness probe.
func NewHTTPHandler(server *mcp.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
	r.Handle("/mcp", streamable)
	r.Handle("/mcp/*", streamable)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "server": serverName, "version": serverVersion})
	})
	return r
}

// ServeHTTP serves NewHTTPHandler on lis until ctx ends.
func ServeHTTP(ctx context.Context, server *mcp.Server, lis net.Listener) error {
	if lis == nil {
		return fmt.Errorf("HTTP listener is required")
	}
	httpServer := &http.Server{
		Handler:           NewHTTPHandler(server),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	log.Printf("Starting MCP HTTP server on %s", lis.Addr())
	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down MCP HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return nil
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

// ListenAndServeHTTP listens on addr and calls ServeHTTP.
func ListenAndServeHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen MCP HTTP on %s: %w", addr, err)
	}
	return ServeHTTP(ctx, server, lis)
}
