package mutation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
	"github.com/louisbranch/hs4gate/internal/services/gateway/adminexec"
	"github.com/louisbranch/hs4gate/internal/services/gateway/normalize"
	"github.com/louisbranch/hs4gate/internal/services/gateway/policy"
)

func buildAdminExecute(s *Service, args map[string]any) (plan, error) {
	if s.router == nil {
		return plan{}, apperrors.New(apperrors.CodeInternal, "admin router is not configured")
	}
	var in AdminExecuteArgs
	if err := decodeArgs(ToolAdminExecute, args, &in); err != nil {
		return plan{}, err
	}
	if err := required(ToolAdminExecute, "domain", in.Domain); err != nil {
		return plan{}, err
	}
	if err := required(ToolAdminExecute, "action", in.Action); err != nil {
		return plan{}, err
	}
	action := strings.ToLower(strings.TrimSpace(in.Action))
	domain := policy.Domain(strings.ToLower(strings.TrimSpace(in.Domain)))

	var rollback adminexec.Rollback
	if hint := strings.TrimSpace(in.RollbackHint); hint != "" {
		parsed, ok := adminexec.ParseRollback(hint)
		if !ok {
			return plan{}, apperrors.WithDetails(apperrors.CodeBadRequest,
				fmt.Sprintf("%s: unknown rollbackHint %q", ToolAdminExecute, in.RollbackHint),
				map[string]any{"field": "rollbackHint"})
		}
		rollback = parsed
	}

	raw, err := json.Marshal(in.Payload)
	if err != nil {
		return plan{}, apperrors.Wrap(apperrors.CodeBadRequest, "encode admin payload", err)
	}
	payload, err := adminexec.ParsePayload(raw)
	if err != nil {
		return plan{}, err
	}

	pr := guardRequest(ToolAdminExecute, string(domain)+"."+action, in.Guard)
	pr.Tier = policy.TierAdmin
	pr.Admin = &policy.AdminFields{
		Domain:              domain,
		MaintenanceWindowID: in.MaintenanceWindowID,
		ChangeTicketID:      in.ChangeTicketID,
		RiskLevel:           in.RiskLevel,
	}
	pr.Targets = adminTargets(domain, payload)

	summary := map[string]any{
		"domain":  string(domain),
		"action":  action,
		"payload": redact(payload.Map()),
		"route":   string(s.router.Mode()),
		"direct":  adminexec.SupportsDirect(string(domain), action),
	}
	if rollback != "" {
		summary["rollbackHint"] = string(rollback)
	}

	req := adminexec.Request{
		Domain:       string(domain),
		Action:       action,
		Payload:      payload,
		RollbackHint: rollback,
	}
	if domain == policy.DomainEvents {
		if id, ok := payloadInt(payload, "id"); ok {
			req.Before = s.eventSnapshot(id)
			req.After = s.eventSnapshot(id)
		}
	}

	return plan{
		tool:    ToolAdminExecute,
		action:  pr.Action,
		request: pr,
		summary: summary,
		execute: func(ctx context.Context) (outcome, error) {
			result, err := s.router.Execute(ctx, req)
			if err != nil {
				return outcome{}, err
			}
			data, err := ToArgs(result)
			if err != nil {
				return outcome{}, apperrors.Wrap(apperrors.CodeInternal, "encode admin result", err)
			}
			out := outcome{data: data, before: result.Before, after: result.After, diff: result.Diff}
			switch result.Result {
			case adminexec.OutcomeFailed, adminexec.OutcomeRolledBack:
				return out, apperrors.WithDetails(apperrors.CodeHS4,
					fmt.Sprintf("admin %s.%s reported %s", domain, action, result.Result),
					data)
			}
			return out, nil
		},
	}, nil
}

// adminTargets lifts the entity ids a payload touches into policy targets.
func adminTargets(domain policy.Domain, payload adminexec.Payload) policy.Targets {
	var t policy.Targets
	switch domain {
	case policy.DomainUsers:
		if v, ok := payloadString(payload, "username"); ok {
			t.UserIDs = []string{v}
		}
	case policy.DomainPlugins:
		if v, ok := payloadString(payload, "id"); ok {
			t.PluginIDs = []string{v}
		}
	case policy.DomainInterfaces:
		if v, ok := payloadString(payload, "id"); ok {
			t.InterfaceIDs = []string{v}
		}
	case policy.DomainCategories:
		if v, ok := payloadString(payload, "id"); ok {
			t.CategoryIDs = []string{v}
		} else if v, ok := payloadString(payload, "name"); ok {
			t.CategoryIDs = []string{v}
		}
	case policy.DomainCameras:
		if v, ok := payloadInt(payload, "id"); ok {
			t.CameraIDs = []int{v}
		}
	case policy.DomainEvents:
		if v, ok := payloadInt(payload, "id"); ok {
			t.EventIDs = []int{v}
		}
	}
	return t
}

func payloadString(p adminexec.Payload, key string) (string, bool) {
	v, ok := p.Value(key)
	if !ok {
		return "", false
	}
	switch typed := v.(type) {
	case string:
		s := strings.TrimSpace(typed)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	}
	return "", false
}

func payloadInt(p adminexec.Payload, key string) (int, bool) {
	v, ok := p.Value(key)
	if !ok {
		return 0, false
	}
	switch typed := v.(type) {
	case float64:
		if typed == float64(int(typed)) {
			return int(typed), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// eventSnapshot captures one event record for before/after diffs.
func (s *Service) eventSnapshot(id int) adminexec.Snapshot {
	return func(ctx context.Context) (map[string]any, error) {
		events, err := s.hub.ListEvents(ctx)
		if err != nil {
			return nil, err
		}
		event, ok := normalize.FindEvent(events, id)
		if !ok {
			return map[string]any{"id": id, "exists": false}, nil
		}
		return map[string]any{"id": event.ID, "exists": true, "group": event.Group, "name": event.Name}, nil
	}
}

// redact returns a copy of values with credential-like fields masked at any
// depth, for summaries, audit entries and change listings.
func redact(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "password") || strings.Contains(lower, "secret") || strings.Contains(lower, "token") {
			out[k] = "***"
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return redact(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	}
	return v
}

// responseData shapes a raw hub reply for the caller.
func responseData(raw []byte) map[string]any {
	text := strings.TrimSpace(string(raw))
	if gjson.Valid(text) {
		root := gjson.Parse(text)
		if r := root.Get("Response"); r.Exists() {
			return map[string]any{"response": r.Value()}
		}
		return map[string]any{"response": root.Value()}
	}
	if text == "" {
		return map[string]any{}
	}
	return map[string]any{"response": text}
}
