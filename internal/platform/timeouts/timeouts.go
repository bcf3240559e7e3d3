// Package timeouts collects the durations shared by the gateway's network
// boundaries.
package timeouts

import "time"

// HubRequest caps a single JSON API call to the HS4 hub.
const HubRequest = 10 * time.Second

// ReadHeader limits how long the MCP HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits graceful shutdown of the MCP HTTP server and telemetry.
const Shutdown = 5 * time.Second

// VerifyPoll is the default delay between device write verification polls.
const VerifyPoll = 250 * time.Millisecond
