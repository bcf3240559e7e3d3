package service

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/hs4gate/internal/services/mcp/domain"
)

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
	AddResource(*mcp.Resource, mcp.ResourceHandler)
}

func registerMutationTools(registrar mcpRegistrationTarget, pipeline domain.Pipeline) error {
	registrations := []struct {
		tool    *mcp.Tool
		handler any
	}{
		{tool: domain.DeviceSetTool(), handler: domain.DeviceSetHandler(pipeline)},
		{tool: domain.EventRunTool(), handler: domain.EventRunHandler(pipeline)},
		{tool: domain.ScriptRunTool(), handler: domain.ScriptRunHandler(pipeline)},
		{tool: domain.PluginFunctionTool(), handler: domain.PluginFunctionHandler(pipeline)},
		{tool: domain.CameraPanTool(), handler: domain.CameraPanHandler(pipeline)},
		{tool: domain.AdminExecuteTool(), handler: domain.AdminExecuteHandler(pipeline)},
	}
	for _, registration := range registrations {
		if err := registerTool(registrar, registration.tool, registration.handler); err != nil {
			return err
		}
	}
	return nil
}

func registerChangeTools(registrar mcpRegistrationTarget, pipeline domain.Pipeline) error {
	if err := registerTool(registrar, domain.ChangePrepareTool(), domain.ChangePrepareHandler(pipeline)); err != nil {
		return err
	}
	if err := registerTool(registrar, domain.ChangeCommitTool(), domain.ChangeCommitHandler(pipeline)); err != nil {
		return err
	}
	return registerTool(registrar, domain.ChangeListTool(), domain.ChangeListHandler(pipeline))
}

func registerInspectionTools(registrar mcpRegistrationTarget, pipeline domain.Pipeline, reader domain.AuditReader) error {
	if err := registerTool(registrar, domain.PolicyEvaluateTool(), domain.PolicyEvaluateHandler(pipeline)); err != nil {
		return err
	}
	return registerTool(registrar, domain.AuditQueryTool(), domain.AuditQueryHandler(reader))
}

func registerTool(registrar mcpRegistrationTarget, tool *mcp.Tool, handler any) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	return registrar.AddTool(tool, handler)
}

// registerPolicyResources registers the readable policy resource.
func registerPolicyResources(registrar mcpRegistrationTarget, pipeline domain.Pipeline, settings domain.ServerSettings) {
	registrar.AddResource(domain.PolicyResource(), domain.PolicyResourceHandler(pipeline, settings))
}
