package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/hs4gate/internal/services/gateway/audit"
	"github.com/louisbranch/hs4gate/internal/services/gateway/mutation"
	"github.com/louisbranch/hs4gate/internal/services/gateway/policy"
)

// Envelope is the structured output of every gateway tool.
type Envelope = mutation.Envelope

// Pipeline is the guarded mutation pipeline behind the gateway tools.
type Pipeline interface {
	Execute(ctx context.Context, tool string, args map[string]any) mutation.Envelope
	Prepare(ctx context.Context, tool string, args map[string]any) mutation.Envelope
	Commit(ctx context.Context, token string) mutation.Envelope
	ListPrepared(ctx context.Context, limit int) mutation.Envelope
	Evaluate(tool string, args map[string]any) mutation.Envelope
	Policy() policy.Config
}

// AuditReader reads recorded pipeline outcomes.
type AuditReader interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// envelopeResult marks failed envelopes as tool errors so clients surface
// them; the envelope itself travels as structured content.
func envelopeResult(env Envelope) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: !env.OK}
}

// executeHandler runs a typed tool input through Pipeline.Execute.
func executeHandler[I any](pipeline Pipeline, tool string) mcp.ToolHandlerFor[I, Envelope] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input I) (*mcp.CallToolResult, Envelope, error) {
		args, err := mutation.ToArgs(input)
		if err != nil {
			env := mutation.Failure(err)
			return envelopeResult(env), env, nil
		}
		env := pipeline.Execute(ctx, tool, args)
		return envelopeResult(env), env, nil
	}
}
