package mutation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
)

// Guard carries the fields every mutating tool accepts.
type Guard struct {
	Confirm bool   `json:"confirm,omitempty"`
	Intent  string `json:"intent,omitempty"`
	Reason  string `json:"reason,omitempty"`
	DryRun  bool   `json:"dryRun,omitempty"`
}

// DeviceSetArgs are the arguments of hs4_device_set.
type DeviceSetArgs struct {
	Guard
	Ref        int      `json:"ref"`
	Mode       string   `json:"mode,omitempty"`
	Value      *float64 `json:"value,omitempty"`
	StatusText string   `json:"statusText,omitempty"`
	Source     string   `json:"source,omitempty"`
	Verify     *bool    `json:"verify,omitempty"`
}

// EventRunArgs are the arguments of hs4_event_run.
type EventRunArgs struct {
	Guard
	ID int `json:"id"`
}

// ScriptRunArgs are the arguments of hs4_script_run.
type ScriptRunArgs struct {
	Guard
	Command string `json:"command"`
}

// PluginFunctionArgs are the arguments of hs4_plugin_function.
type PluginFunctionArgs struct {
	Guard
	Plugin   string   `json:"plugin"`
	Function string   `json:"function"`
	Instance string   `json:"instance,omitempty"`
	Params   []string `json:"params,omitempty"`
}

// CameraPanArgs are the arguments of hs4_camera_pan.
type CameraPanArgs struct {
	Guard
	ID        int    `json:"id"`
	Direction string `json:"direction"`
}

// AdminExecuteArgs are the arguments of hs4_admin_execute.
type AdminExecuteArgs struct {
	Guard
	Domain              string         `json:"domain"`
	Action              string         `json:"action"`
	Payload             map[string]any `json:"payload,omitempty"`
	RollbackHint        string         `json:"rollbackHint,omitempty"`
	MaintenanceWindowID string         `json:"maintenanceWindowId,omitempty"`
	ChangeTicketID      string         `json:"changeTicketId,omitempty"`
	RiskLevel           string         `json:"riskLevel,omitempty"`
}

// ToArgs converts typed tool arguments into the opaque map stored with a
// prepared change.
func ToArgs(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeBadRequest, "encode arguments", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeBadRequest, "encode arguments", err)
	}
	return out, nil
}

// decodeArgs decodes an opaque argument map into a typed struct, rejecting
// unknown fields.
func decodeArgs(tool string, args map[string]any, target any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeBadRequest, fmt.Sprintf("%s: encode arguments", tool), err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return apperrors.WithDetails(apperrors.CodeBadRequest,
			fmt.Sprintf("%s: invalid arguments: %v", tool, err),
			map[string]any{"tool": tool})
	}
	return nil
}

func required(tool, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.WithDetails(apperrors.CodeBadRequest,
			fmt.Sprintf("%s: %s is required", tool, field),
			map[string]any{"field": field})
	}
	return nil
}

func positive(tool, field string, value int) error {
	if value <= 0 {
		return apperrors.WithDetails(apperrors.CodeBadRequest,
			fmt.Sprintf("%s: %s must be a positive integer", tool, field),
			map[string]any{"field": field})
	}
	return nil
}
