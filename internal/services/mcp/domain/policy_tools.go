package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
	"github.com/louisbranch/hs4gate/internal/services/gateway/audit"
	"github.com/louisbranch/hs4gate/internal/services/gateway/mutation"
	"github.com/louisbranch/hs4gate/internal/services/gateway/policy"
)

// PolicyEvaluateInput represents the MCP tool input for a policy preview.
type PolicyEvaluateInput struct {
	Tool string         `json:"tool" jsonschema:"mutating tool to evaluate"`
	Args map[string]any `json:"args" jsonschema:"arguments of the evaluated tool call"`
}

// PolicyEvaluateTool defines the MCP tool schema for a policy preview.
func PolicyEvaluateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "hs4_policy_evaluate",
		Description: "Shows the policy decision and execution summary for a mutating tool call without auditing or executing it.",
	}
}

// PolicyEvaluateHandler previews a policy decision.
func PolicyEvaluateHandler(pipeline Pipeline) mcp.ToolHandlerFor[PolicyEvaluateInput, Envelope] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input PolicyEvaluateInput) (*mcp.CallToolResult, Envelope, error) {
		env := pipeline.Evaluate(input.Tool, input.Args)
		return envelopeResult(env), env, nil
	}
}

// AuditQueryInput represents the MCP tool input for reading the audit log.
type AuditQueryInput struct {
	Tool   string `json:"tool,omitempty" jsonschema:"only entries for this tool"`
	Result string `json:"result,omitempty" jsonschema:"only entries with this result: blocked, dry_run, prepared, success or error"`
	Since  string `json:"since,omitempty" jsonschema:"only entries at or after this RFC3339 timestamp"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of entries (default 50)"`
}

// AuditQueryTool defines the MCP tool schema for reading the audit log.
func AuditQueryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "hs4_audit_query",
		Description: "Returns recorded pipeline outcomes, newest first.",
	}
}

var auditResults = []audit.Result{
	audit.ResultBlocked,
	audit.ResultDryRun,
	audit.ResultPrepared,
	audit.ResultSuccess,
	audit.ResultError,
}

// AuditQueryHandler reads the audit log.
func AuditQueryHandler(reader AuditReader) mcp.ToolHandlerFor[AuditQueryInput, Envelope] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AuditQueryInput) (*mcp.CallToolResult, Envelope, error) {
		filter, err := auditFilter(input)
		if err == nil && reader == nil {
			err = apperrors.New(apperrors.CodeInternal, "audit log is not configured")
		}
		if err != nil {
			env := mutation.Failure(err)
			return envelopeResult(env), env, nil
		}
		entries, err := reader.Query(ctx, filter)
		if err != nil {
			env := mutation.Failure(err)
			return envelopeResult(env), env, nil
		}
		env := mutation.Success(map[string]any{"items": entries, "count": len(entries)})
		return envelopeResult(env), env, nil
	}
}

func auditFilter(input AuditQueryInput) (audit.Filter, error) {
	filter := audit.Filter{Tool: strings.TrimSpace(input.Tool), Limit: input.Limit}
	if raw := strings.TrimSpace(input.Result); raw != "" {
		result := audit.Result(strings.ToLower(raw))
		if !slices.Contains(auditResults, result) {
			return audit.Filter{}, apperrors.Newf(apperrors.CodeBadRequest, "unknown audit result %q", raw)
		}
		filter.Result = result
	}
	if raw := strings.TrimSpace(input.Since); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, apperrors.Wrap(apperrors.CodeBadRequest, "since must be an RFC3339 timestamp", err)
		}
		filter.Since = since
	}
	if filter.Limit < 0 {
		return audit.Filter{}, apperrors.New(apperrors.CodeBadRequest, "limit must not be negative")
	}
	return filter, nil
}

// PolicySnapshot is the payload of the policy://current resource.
type PolicySnapshot struct {
	Policy               policy.Config `json:"policy"`
	RequireTwoPhaseAdmin bool          `json:"requireTwoPhaseAdmin"`
	AdminRouteMode       string        `json:"adminRouteMode,omitempty"`
	Tools                []string      `json:"tools"`
}

// ServerSettings are the runtime switches exposed next to the policy.
type ServerSettings struct {
	RequireTwoPhaseAdmin bool
	AdminRouteMode       string
}

// PolicyResource defines the MCP resource for the active policy.
func PolicyResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "policy_current",
		Title:       "Current Policy",
		Description: "Readable server policy, admin routing mode and mutating tool names",
		MIMEType:    "application/json",
		URI:         "policy://current",
	}
}

// PolicyResourceHandler returns a readable policy resource.
func PolicyResourceHandler(pipeline Pipeline, settings ServerSettings) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if pipeline == nil {
			return nil, fmt.Errorf("policy pipeline is not configured")
		}
		uri := "policy://current"
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		if uri != "policy://current" {
			return nil, fmt.Errorf("unknown policy resource %q", uri)
		}

		tools := append([]string(nil), mutation.Tools...)
		payload := PolicySnapshot{
			Policy:               pipeline.Policy(),
			RequireTwoPhaseAdmin: settings.RequireTwoPhaseAdmin,
			AdminRouteMode:       settings.AdminRouteMode,
			Tools:                tools,
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal policy: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}
