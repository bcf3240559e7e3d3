package mutation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
	"github.com/louisbranch/hs4gate/internal/services/gateway/devicewrite"
	"github.com/louisbranch/hs4gate/internal/services/gateway/policy"
)

// Mutating tool names.
const (
	ToolDeviceSet      = "hs4_device_set"
	ToolEventRun       = "hs4_event_run"
	ToolScriptRun      = "hs4_script_run"
	ToolPluginFunction = "hs4_plugin_function"
	ToolCameraPan      = "hs4_camera_pan"
	ToolAdminExecute   = "hs4_admin_execute"
)

// Tools lists every mutating tool the service executes.
var Tools = []string{
	ToolDeviceSet,
	ToolEventRun,
	ToolScriptRun,
	ToolPluginFunction,
	ToolCameraPan,
	ToolAdminExecute,
}

var panDirections = []string{"up", "down", "left", "right", "center", "stop", "zoomin", "zoomout"}

// outcome is what an executed plan reports back for audit and the caller.
type outcome struct {
	data   map[string]any
	before map[string]any
	after  map[string]any
	diff   []string
}

// plan is a decoded tool call ready for policy evaluation and execution.
type plan struct {
	tool    string
	action  string
	request policy.Request
	summary map[string]any
	execute func(ctx context.Context) (outcome, error)
}

type builder func(s *Service, args map[string]any) (plan, error)

var builders = map[string]builder{
	ToolDeviceSet:      buildDeviceSet,
	ToolEventRun:       buildEventRun,
	ToolScriptRun:      buildScriptRun,
	ToolPluginFunction: buildPluginFunction,
	ToolCameraPan:      buildCameraPan,
	ToolAdminExecute:   buildAdminExecute,
}

func (s *Service) build(tool string, args map[string]any) (plan, error) {
	tool = strings.TrimSpace(tool)
	b, ok := builders[tool]
	if !ok {
		return plan{}, apperrors.WithDetails(apperrors.CodeBadRequest,
			fmt.Sprintf("unknown mutating tool %q", tool),
			map[string]any{"tools": Tools})
	}
	return b(s, args)
}

func guardRequest(tool, action string, g Guard) policy.Request {
	return policy.Request{
		Tool:    tool,
		Action:  action,
		Confirm: g.Confirm,
		Intent:  g.Intent,
		Reason:  g.Reason,
		DryRun:  g.DryRun,
		Tier:    policy.TierOperator,
	}
}

func buildDeviceSet(s *Service, args map[string]any) (plan, error) {
	if s.verifier == nil {
		return plan{}, apperrors.New(apperrors.CodeInternal, "device verifier is not configured")
	}
	var in DeviceSetArgs
	if err := decodeArgs(ToolDeviceSet, args, &in); err != nil {
		return plan{}, err
	}
	mode, err := devicewrite.ParseMode(in.Mode)
	if err != nil {
		return plan{}, err
	}
	verify := in.Verify == nil || *in.Verify
	req := devicewrite.Request{
		Ref:        in.Ref,
		Mode:       mode,
		Value:      in.Value,
		StatusText: in.StatusText,
		Source:     in.Source,
		Verify:     verify,
	}
	if req.Source == "" {
		req.Source = s.source
	}
	if err := req.Validate(); err != nil {
		return plan{}, err
	}

	pr := guardRequest(ToolDeviceSet, "set", in.Guard)
	pr.Targets.DeviceRefs = []int{in.Ref}
	summary := map[string]any{"ref": in.Ref, "mode": string(mode), "verify": verify}
	if in.Value != nil {
		summary["value"] = *in.Value
	}
	if in.StatusText != "" {
		summary["statusText"] = in.StatusText
	}

	return plan{
		tool:    ToolDeviceSet,
		action:  "set",
		request: pr,
		summary: summary,
		execute: func(ctx context.Context) (outcome, error) {
			result, err := s.verifier.Execute(ctx, req)
			if err != nil {
				return outcome{}, err
			}
			data, err := ToArgs(result)
			if err != nil {
				return outcome{}, apperrors.Wrap(apperrors.CodeInternal, "encode device write summary", err)
			}
			return outcome{data: data}, nil
		},
	}, nil
}

func buildEventRun(s *Service, args map[string]any) (plan, error) {
	var in EventRunArgs
	if err := decodeArgs(ToolEventRun, args, &in); err != nil {
		return plan{}, err
	}
	if err := positive(ToolEventRun, "id", in.ID); err != nil {
		return plan{}, err
	}
	pr := guardRequest(ToolEventRun, "run", in.Guard)
	pr.Targets.EventIDs = []int{in.ID}
	return plan{
		tool:    ToolEventRun,
		action:  "run",
		request: pr,
		summary: map[string]any{"id": in.ID},
		execute: func(ctx context.Context) (outcome, error) {
			raw, err := s.hub.RunEvent(ctx, in.ID)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: responseData(raw)}, nil
		},
	}, nil
}

func buildScriptRun(s *Service, args map[string]any) (plan, error) {
	var in ScriptRunArgs
	if err := decodeArgs(ToolScriptRun, args, &in); err != nil {
		return plan{}, err
	}
	if err := required(ToolScriptRun, "command", in.Command); err != nil {
		return plan{}, err
	}
	pr := guardRequest(ToolScriptRun, "run", in.Guard)
	pr.Targets.ScriptCommand = in.Command
	return plan{
		tool:    ToolScriptRun,
		action:  "run",
		request: pr,
		summary: map[string]any{"command": in.Command, "scriptId": policy.ScriptID(in.Command)},
		execute: func(ctx context.Context) (outcome, error) {
			raw, err := s.hub.RunScriptCommand(ctx, in.Command)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: responseData(raw)}, nil
		},
	}, nil
}

func buildPluginFunction(s *Service, args map[string]any) (plan, error) {
	var in PluginFunctionArgs
	if err := decodeArgs(ToolPluginFunction, args, &in); err != nil {
		return plan{}, err
	}
	if err := required(ToolPluginFunction, "plugin", in.Plugin); err != nil {
		return plan{}, err
	}
	if err := required(ToolPluginFunction, "function", in.Function); err != nil {
		return plan{}, err
	}
	identifier := strings.TrimSpace(in.Plugin) + ":" + strings.TrimSpace(in.Function)
	pr := guardRequest(ToolPluginFunction, "call", in.Guard)
	pr.Targets.PluginFunction = identifier
	summary := map[string]any{"plugin": in.Plugin, "function": in.Function, "pluginFunction": identifier}
	if in.Instance != "" {
		summary["instance"] = in.Instance
	}
	if len(in.Params) > 0 {
		summary["params"] = slices.Clone(in.Params)
	}
	return plan{
		tool:    ToolPluginFunction,
		action:  "call",
		request: pr,
		summary: summary,
		execute: func(ctx context.Context) (outcome, error) {
			raw, err := s.hub.PluginFunction(ctx, in.Plugin, in.Function, in.Instance, in.Params)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: responseData(raw)}, nil
		},
	}, nil
}

func buildCameraPan(s *Service, args map[string]any) (plan, error) {
	var in CameraPanArgs
	if err := decodeArgs(ToolCameraPan, args, &in); err != nil {
		return plan{}, err
	}
	if err := positive(ToolCameraPan, "id", in.ID); err != nil {
		return plan{}, err
	}
	direction := strings.ToLower(strings.TrimSpace(in.Direction))
	if !slices.Contains(panDirections, direction) {
		return plan{}, apperrors.WithDetails(apperrors.CodeBadRequest,
			fmt.Sprintf("%s: unknown direction %q", ToolCameraPan, in.Direction),
			map[string]any{"field": "direction", "allowed": panDirections})
	}
	pr := guardRequest(ToolCameraPan, "pan", in.Guard)
	pr.Targets.CameraIDs = []int{in.ID}
	return plan{
		tool:    ToolCameraPan,
		action:  "pan",
		request: pr,
		summary: map[string]any{"id": in.ID, "direction": direction},
		execute: func(ctx context.Context) (outcome, error) {
			raw, err := s.hub.CameraPan(ctx, in.ID, direction)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: responseData(raw)}, nil
		},
	}, nil
}
