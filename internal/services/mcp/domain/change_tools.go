package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/hs4gate/internal/services/gateway/mutation"
)

// ChangePrepareInput represents the MCP tool input for preparing a change.
type ChangePrepareInput struct {
	Tool string         `json:"tool" jsonschema:"mutating tool to prepare, for example hs4_admin_execute"`
	Args map[string]any `json:"args" jsonschema:"arguments of the prepared tool call"`
}

// ChangePrepareTool defines the MCP tool schema for preparing a change.
func ChangePrepareTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        mutation.ToolChangePrepare,
		Description: "Evaluates policy for a mutating tool call and returns a single-use token that hs4_change_commit executes. Nothing runs on the hub.",
	}
}

// ChangePrepareHandler prepares a change without executing it.
func ChangePrepareHandler(pipeline Pipeline) mcp.ToolHandlerFor[ChangePrepareInput, Envelope] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ChangePrepareInput) (*mcp.CallToolResult, Envelope, error) {
		env := pipeline.Prepare(ctx, input.Tool, input.Args)
		return envelopeResult(env), env, nil
	}
}

// ChangeCommitInput represents the MCP tool input for committing a change.
type ChangeCommitInput struct {
	Token string `json:"token" jsonschema:"token returned by hs4_change_prepare"`
}

// ChangeCommitTool defines the MCP tool schema for committing a change.
func ChangeCommitTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        mutation.ToolChangeCommit,
		Description: "Executes a prepared change. Policy is evaluated again against the stored arguments; a token commits at most once.",
	}
}

// ChangeCommitHandler commits a prepared change.
func ChangeCommitHandler(pipeline Pipeline) mcp.ToolHandlerFor[ChangeCommitInput, Envelope] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ChangeCommitInput) (*mcp.CallToolResult, Envelope, error) {
		env := pipeline.Commit(ctx, input.Token)
		return envelopeResult(env), env, nil
	}
}

// ChangeListInput represents the MCP tool input for listing prepared changes.
type ChangeListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of changes to return (default 50)"`
}

// ChangeListTool defines the MCP tool schema for listing prepared changes.
func ChangeListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "hs4_change_list",
		Description: "Lists unexpired prepared changes, newest first.",
	}
}

// ChangeListHandler lists prepared changes.
func ChangeListHandler(pipeline Pipeline) mcp.ToolHandlerFor[ChangeListInput, Envelope] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ChangeListInput) (*mcp.CallToolResult, Envelope, error) {
		env := pipeline.ListPrepared(ctx, input.Limit)
		return envelopeResult(env), env, nil
	}
}
