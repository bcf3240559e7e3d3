package domain

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/hs4gate/internal/services/gateway/mutation"
)

const guardDescription = " Real execution requires intent and reason (and confirm=true when the server demands it); dryRun=true plans and audits without touching the hub."

// DeviceSetInput represents the MCP tool input for writing a device.
type DeviceSetInput struct {
	Ref        int      `json:"ref" jsonschema:"device reference number"`
	Mode       string   `json:"mode,omitempty" jsonschema:"write mode: control_value (default) or set_status"`
	Value      *float64 `json:"value,omitempty" jsonschema:"target value; required for control_value"`
	StatusText string   `json:"statusText,omitempty" jsonschema:"target status text for set_status"`
	Source     string   `json:"source,omitempty" jsonschema:"source tag recorded by the hub for set_status"`
	Verify     *bool    `json:"verify,omitempty" jsonschema:"poll the device until it reaches the target (default true)"`
	Confirm    bool     `json:"confirm,omitempty" jsonschema:"explicit confirmation for real execution"`
	Intent     string   `json:"intent,omitempty" jsonschema:"what the change should achieve"`
	Reason     string   `json:"reason,omitempty" jsonschema:"why the change is needed"`
	DryRun     bool     `json:"dryRun,omitempty" jsonschema:"plan without executing"`
}

// DeviceSetTool defines the MCP tool schema for writing a device.
func DeviceSetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        mutation.ToolDeviceSet,
		Description: "Sets a device by control value or status and verifies the hub converges on the requested state." + guardDescription,
	}
}

// DeviceSetHandler executes a device write.
func DeviceSetHandler(pipeline Pipeline) mcp.ToolHandlerFor[DeviceSetInput, Envelope] {
	return executeHandler[DeviceSetInput](pipeline, mutation.ToolDeviceSet)
}

// EventRunInput represents the MCP tool input for running an event.
type EventRunInput struct {
	ID      int    `json:"id" jsonschema:"event id"`
	Confirm bool   `json:"confirm,omitempty" jsonschema:"explicit confirmation for real execution"`
	Intent  string `json:"intent,omitempty" jsonschema:"what the change should achieve"`
	Reason  string `json:"reason,omitempty" jsonschema:"why the change is needed"`
	DryRun  bool   `json:"dryRun,omitempty" jsonschema:"plan without executing"`
}

// EventRunTool defines the MCP tool schema for running an event.
func EventRunTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        mutation.ToolEventRun,
		Description: "Runs a hub event by id." + guardDescription,
	}
}

// EventRunHandler executes an event run.
func EventRunHandler(pipeline Pipeline) mcp.ToolHandlerFor[EventRunInput, Envelope] {
	return executeHandler[EventRunInput](pipeline, mutation.ToolEventRun)
}

// ScriptRunInput represents the MCP tool input for running a script command.
type ScriptRunInput struct {
	Command string `json:"command" jsonschema:"script command text, for example &hs.RunScript(\"lights.vb\")"`
	Confirm bool   `json:"confirm,omitempty" jsonschema:"explicit confirmation for real execution"`
	Intent  string `json:"intent,omitempty" jsonschema:"what the change should achieve"`
	Reason  string `json:"reason,omitempty" jsonschema:"why the change is needed"`
	DryRun  bool   `json:"dryRun,omitempty" jsonschema:"plan without executing"`
}

// ScriptRunTool defines the MCP tool schema for running a script command.
func ScriptRunTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        mutation.ToolScriptRun,
		Description: "Runs a script command on the hub. The script name is checked against the script allowlist." + guardDescription,
	}
}

// ScriptRunHandler executes a script command.
func ScriptRunHandler(pipeline Pipeline) mcp.ToolHandlerFor[ScriptRunInput, Envelope] {
	return executeHandler[ScriptRunInput](pipeline, mutation.ToolScriptRun)
}

// PluginFunctionInput represents the MCP tool input for calling a plugin function.
type PluginFunctionInput struct {
	Plugin   string   `json:"plugin" jsonschema:"plugin name"`
	Function string   `json:"function" jsonschema:"function name"`
	Instance string   `json:"instance,omitempty" jsonschema:"plugin instance"`
	Params   []string `json:"params,omitempty" jsonschema:"positional parameters"`
	Confirm  bool     `json:"confirm,omitempty" jsonschema:"explicit confirmation for real execution"`
	Intent   string   `json:"intent,omitempty" jsonschema:"what the change should achieve"`
	Reason   string   `json:"reason,omitempty" jsonschema:"why the change is needed"`
	DryRun   bool     `json:"dryRun,omitempty" jsonschema:"plan without executing"`
}

// PluginFunctionTool defines the MCP tool schema for calling a plugin function.
func PluginFunctionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        mutation.ToolPluginFunction,
		Description: "Calls a plugin function. plugin:function is checked against the plugin function allowlist." + guardDescription,
	}
}

// PluginFunctionHandler executes a plugin function call.
func PluginFunctionHandler(pipeline Pipeline) mcp.ToolHandlerFor[PluginFunctionInput, Envelope] {
	return executeHandler[PluginFunctionInput](pipeline, mutation.ToolPluginFunction)
}

// CameraPanInput represents the MCP tool input for moving a camera.
type CameraPanInput struct {
	ID        int    `json:"id" jsonschema:"camera id"`
	Direction string `json:"direction" jsonschema:"up, down, left, right, center, stop, zoomin or zoomout"`
	Confirm   bool   `json:"confirm,omitempty" jsonschema:"explicit confirmation for real execution"`
	Intent    string `json:"intent,omitempty" jsonschema:"what the change should achieve"`
	Reason    string `json:"reason,omitempty" jsonschema:"why the change is needed"`
	DryRun    bool   `json:"dryRun,omitempty" jsonschema:"plan without executing"`
}

// CameraPanTool defines the MCP tool schema for moving a camera.
func CameraPanTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        mutation.ToolCameraPan,
		Description: "Pans or zooms a camera." + guardDescription,
	}
}

// CameraPanHandler executes a camera move.
func CameraPanHandler(pipeline Pipeline) mcp.ToolHandlerFor[CameraPanInput, Envelope] {
	return executeHandler[CameraPanInput](pipeline, mutation.ToolCameraPan)
}

// AdminExecuteInput represents the MCP tool input for an admin mutation.
type AdminExecuteInput struct {
	Domain              string         `json:"domain" jsonschema:"admin domain: users, plugins, interfaces, categories, cameras, events, config or system"`
	Action              string         `json:"action" jsonschema:"domain action, for example enable, disable, restart, delete, create, set"`
	Payload             map[string]any `json:"payload,omitempty" jsonschema:"operation fields, for example {\"id\": \"zwave\"}"`
	RollbackHint        string         `json:"rollbackHint,omitempty" jsonschema:"not_needed, available, applied or failed"`
	MaintenanceWindowID string         `json:"maintenanceWindowId,omitempty" jsonschema:"approved maintenance window"`
	ChangeTicketID      string         `json:"changeTicketId,omitempty" jsonschema:"change-management ticket"`
	RiskLevel           string         `json:"riskLevel,omitempty" jsonschema:"declared risk level"`
	Confirm             bool           `json:"confirm,omitempty" jsonschema:"explicit confirmation for real execution"`
	Intent              string         `json:"intent,omitempty" jsonschema:"what the change should achieve"`
	Reason              string         `json:"reason,omitempty" jsonschema:"why the change is needed"`
	DryRun              bool           `json:"dryRun,omitempty" jsonschema:"plan without executing"`
}

// AdminExecuteTool defines the MCP tool schema for an admin mutation.
func AdminExecuteTool() *mcp.Tool {
	return &mcp.Tool{
		Name: mutation.ToolAdminExecute,
		Description: "Runs a privileged hub administration change through the direct API or the hub-side adapter. " +
			"Requires an enabled domain and a maintenance window; the server may require prepare/commit." + guardDescription,
	}
}

// AdminExecuteHandler executes an admin mutation.
func AdminExecuteHandler(pipeline Pipeline) mcp.ToolHandlerFor[AdminExecuteInput, Envelope] {
	return executeHandler[AdminExecuteInput](pipeline, mutation.ToolAdminExecute)
}
