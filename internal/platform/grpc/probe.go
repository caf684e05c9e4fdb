package grpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ProbeStage says which part of a health probe failed.
type ProbeStage string

const (
	// ProbeStageConnect means the client could not be created for the address.
	ProbeStageConnect ProbeStage = "connect"
	// ProbeStageCheck means the health service never reported SERVING.
	ProbeStageCheck ProbeStage = "check"
)

// ProbeError reports a failed probe against one address.
type ProbeError struct {
	Addr  string
	Stage ProbeStage
	Err   error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("health %s %s: %v", e.Stage, e.Addr, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// ClientDialOptions returns plaintext dial options with OTel client stats so
// probes join the caller's trace.
func ClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Probe checks the health service of a running deckledger process.
type Probe struct {
	// Service is the health service name; empty checks the whole process.
	Service string
	// Timeout bounds the whole probe. Zero relies on ctx alone.
	Timeout time.Duration
	// Logf receives progress lines when set.
	Logf func(string, ...any)
	// DialOptions overrides ClientDialOptions.
	DialOptions []gogrpc.DialOption
}

// Check connects to addr and polls until Service reports SERVING.
func (p Probe) Check(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return &ProbeError{Addr: addr, Stage: ProbeStageConnect, Err: fmt.Errorf("address is required")}
	}
	opts := p.DialOptions
	if opts == nil {
		opts = ClientDialOptions()
	}
	conn, err := gogrpc.NewClient(addr, opts...)
	if err != nil {
		return &ProbeError{Addr: addr, Stage: ProbeStageConnect, Err: err}
	}
	defer conn.Close()

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	if err := p.poll(ctx, grpc_health_v1.NewHealthClient(conn)); err != nil {
		return &ProbeError{Addr: addr, Stage: ProbeStageCheck, Err: err}
	}
	return nil
}

func (p Probe) poll(ctx context.Context, client grpc_health_v1.HealthClient) error {
	backoff := 100 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: p.Service})
		cancel()
		switch {
		case err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			p.logf("health %q is SERVING", p.Service)
			return nil
		case err != nil:
			p.logf("waiting for health %q: %v", p.Service, err)
		default:
			p.logf("waiting for health %q: %s", p.Service, resp.GetStatus())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, time.Second)
	}
}

func (p Probe) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}
