package adminexec

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
)

// DefaultAdapterScript is the hub-side script that executes adapter commands.
const DefaultAdapterScript = "hs4gate_admin.vb"

// adapterCommand builds the script command that hands an operation to the
// hub-side adapter. The envelope is embedded as a VB string literal, so
// quotes are doubled.
func adapterCommand(script string, req Request) (string, error) {
	payload, err := req.Payload.MarshalJSON()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeBadRequest, "encode admin payload", err)
	}
	envelope := []byte(`{}`)
	if envelope, err = sjson.SetBytes(envelope, "domain", req.Domain); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "build adapter envelope", err)
	}
	if envelope, err = sjson.SetBytes(envelope, "action", req.Action); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "build adapter envelope", err)
	}
	if envelope, err = sjson.SetRawBytes(envelope, "payload", payload); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "build adapter envelope", err)
	}
	if req.RollbackHint != "" {
		if envelope, err = sjson.SetBytes(envelope, "rollbackHint", string(req.RollbackHint)); err != nil {
			return "", apperrors.Wrap(apperrors.CodeInternal, "build adapter envelope", err)
		}
	}
	literal := strings.ReplaceAll(string(envelope), `"`, `""`)
	return fmt.Sprintf(`&hs.RunScriptFunc("%s","Main","%s",True,False)`, script, literal), nil
}

func (r *Router) viaAdapter(ctx context.Context, req Request) (Result, error) {
	command, err := adapterCommand(r.adapterScript, req)
	if err != nil {
		return Result{}, err
	}
	raw, err := r.api.RunScriptCommand(ctx, command)
	if err != nil {
		return Result{}, err
	}
	return parseAdapterResponse(req, raw), nil
}

// responseText unwraps the hub's {"Response": ...} envelope.
func responseText(raw []byte) string {
	if gjson.ValidBytes(raw) {
		for _, key := range []string{"Response", "response"} {
			if r := gjson.GetBytes(raw, key); r.Type == gjson.String {
				return strings.TrimSpace(r.String())
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

// parseAdapterResponse shapes the adapter's reply. Unstructured replies are
// treated as a single applied step.
func parseAdapterResponse(req Request, raw []byte) Result {
	result := Result{
		Result:   OutcomeApplied,
		Route:    RouteAdapter,
		Precheck: []Check{},
		Steps:    []Step{},
		Rollback: rollbackOrDefault(req.RollbackHint),
	}

	text := responseText(raw)
	body := gjson.Parse(text)
	if !gjson.Valid(text) || !body.IsObject() {
		result.Steps = append(result.Steps, syntheticStep(req.Domain, req.Action, RouteAdapter, transportScriptCommand))
		if text != "" {
			result.Data = map[string]any{"raw": text}
		}
		return result
	}

	if outcome, ok := parseOutcome(body.Get("result").String()); ok {
		result.Result = outcome
	}
	if rollback, ok := ParseRollback(body.Get("rollback").String()); ok {
		result.Rollback = rollback
	}
	body.Get("precheck").ForEach(func(_, item gjson.Result) bool {
		check := Check{
			Name:    firstString(item, "name", "check"),
			Passed:  item.Get("passed").Bool() || item.Get("ok").Bool(),
			Message: firstString(item, "message", "detail"),
		}
		if item.Type == gjson.String {
			check = Check{Name: item.String(), Passed: true}
		}
		result.Precheck = append(result.Precheck, check)
		return true
	})
	body.Get("steps").ForEach(func(_, item gjson.Result) bool {
		step := Step{
			Name:      firstString(item, "name", "step"),
			Route:     RouteAdapter,
			Transport: transportScriptCommand,
			Status:    firstString(item, "status", "result"),
			Message:   firstString(item, "message", "detail"),
		}
		if step.Name == "" {
			step.Name = req.Domain + "." + req.Action
		}
		if step.Status == "" {
			step.Status = string(result.Result)
		}
		result.Steps = append(result.Steps, step)
		return true
	})
	if len(result.Steps) == 0 {
		step := syntheticStep(req.Domain, req.Action, RouteAdapter, transportScriptCommand)
		step.Status = string(result.Result)
		result.Steps = append(result.Steps, step)
	}
	if data, ok := body.Get("data").Value().(map[string]any); ok {
		result.Data = data
	}
	return result
}

func firstString(item gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := item.Get(key); v.Exists() {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}
