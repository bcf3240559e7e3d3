// Package service runs the gateway MCP server over stdio or HTTP.
//
// It owns transport concerns only: tool and resource registration, host
// checks, and bearer authentication. Everything a tool does is delegated to
// the domain handlers.
package service
