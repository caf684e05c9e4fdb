// Package timeouts defines shared timeout constants used across commands.
package timeouts

import "time"

// HealthProbe caps a gRPC health probe against a running process.
const HealthProbe = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Scenario caps a single scenario script run.
const Scenario = 10 * time.Second
