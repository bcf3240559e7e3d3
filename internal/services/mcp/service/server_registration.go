package service

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/hs4gate/internal/services/mcp/domain"
)

type mcpRegistrationKind int

const (
	mcpRegistrationKindTools mcpRegistrationKind = iota
	mcpRegistrationKindResources
)

type mcpRegistrationModule struct {
	name     string
	kind     mcpRegistrationKind
	register func(mcpRegistrationTarget) error
}

const (
	mcpMutationToolsModuleName   = "mutation-tools"
	mcpChangeToolsModuleName     = "change-tools"
	mcpInspectionToolsModuleName = "inspection-tools"
	mcpPolicyResourceModuleName  = "policy-resources"
)

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

func (r mcpServerRegistrationAdapter) AddResource(resource *mcp.Resource, handler mcp.ResourceHandler) {
	r.server.AddResource(resource, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.DeviceSetInput, domain.Envelope](),
	newMCPToolRegistrar[domain.EventRunInput, domain.Envelope](),
	newMCPToolRegistrar[domain.ScriptRunInput, domain.Envelope](),
	newMCPToolRegistrar[domain.PluginFunctionInput, domain.Envelope](),
	newMCPToolRegistrar[domain.CameraPanInput, domain.Envelope](),
	newMCPToolRegistrar[domain.AdminExecuteInput, domain.Envelope](),
	newMCPToolRegistrar[domain.ChangePrepareInput, domain.Envelope](),
	newMCPToolRegistrar[domain.ChangeCommitInput, domain.Envelope](),
	newMCPToolRegistrar[domain.ChangeListInput, domain.Envelope](),
	newMCPToolRegistrar[domain.PolicyEvaluateInput, domain.Envelope](),
	newMCPToolRegistrar[domain.AuditQueryInput, domain.Envelope](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

func newMCPRegistrationModules(deps Deps, settings domain.ServerSettings) []mcpRegistrationModule {
	return []mcpRegistrationModule{
		{
			name: mcpMutationToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerMutationTools(registrar, deps.Pipeline)
			},
		},
		{
			name: mcpChangeToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerChangeTools(registrar, deps.Pipeline)
			},
		},
		{
			name: mcpInspectionToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerInspectionTools(registrar, deps.Pipeline, deps.Audit)
			},
		},
		{
			name: mcpPolicyResourceModuleName,
			kind: mcpRegistrationKindResources,
			register: func(registrar mcpRegistrationTarget) error {
				registerPolicyResources(registrar, deps.Pipeline, settings)
				return nil
			},
		},
	}
}
