// Package domain maps MCP tool calls onto the gateway pipeline.
//
// Every mutating tool hands its typed input to the pipeline as an opaque
// argument map and returns the pipeline envelope unchanged as structured
// output, so prepared changes, audit entries and direct calls all see the
// same argument shape.
package domain
