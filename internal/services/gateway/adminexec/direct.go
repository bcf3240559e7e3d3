package adminexec

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
	"github.com/louisbranch/hs4gate/internal/services/gateway/policy"
)

// HubAPI is the subset of the hub client the router drives.
type HubAPI interface {
	RunScriptCommand(ctx context.Context, command string) ([]byte, error)

	CreateUser(ctx context.Context, username, password, rights string) ([]byte, error)
	DeleteUser(ctx context.Context, username string) ([]byte, error)
	SetUserRights(ctx context.Context, username, rights string) ([]byte, error)
	SetPluginEnabled(ctx context.Context, id string, enabled bool) ([]byte, error)
	RestartPlugin(ctx context.Context, id string) ([]byte, error)
	SetInterfaceEnabled(ctx context.Context, id string, enabled bool) ([]byte, error)
	RestartInterface(ctx context.Context, id string) ([]byte, error)
	RestartSystem(ctx context.Context) ([]byte, error)
	DeleteCamera(ctx context.Context, id int) ([]byte, error)
	SetEventEnabled(ctx context.Context, id int, enabled bool) ([]byte, error)
	DeleteEvent(ctx context.Context, id int) ([]byte, error)
	SetConfig(ctx context.Context, key, value string) ([]byte, error)
}

type directCall func(ctx context.Context, api HubAPI, p Payload) ([]byte, error)

// directCalls maps domain:action to its typed call. Pairs absent here have no
// direct equivalent and always report UNSUPPORTED_ON_TARGET.
var directCalls = map[string]directCall{
	capabilityKey(string(policy.DomainUsers), "create"): func(ctx context.Context, api HubAPI, p Payload) ([]byte, error) {
		f := extract("users.create", p)
		username, password, rights := f.str("username", true), f.str("password", true), f.str("rights", false)
		if err := f.done(); err != nil {
			return nil, err
		}
		return api.CreateUser(ctx, username, password, rights)
	},
	capabilityKey(string(policy.DomainUsers), "delete"): func(ctx context.Context, api HubAPI, p Payload) ([]byte, error) {
		f := extract("users.delete", p)
		username := f.str("username", true)
		if err := f.done(); err != nil {
			return nil, err
		}
		return api.DeleteUser(ctx, username)
	},
	capabilityKey(string(policy.DomainUsers), "set_rights"): func(ctx context.Context, api HubAPI, p Payload) ([]byte, error) {
		f := extract("users.set_rights", p)
		username, rights := f.str("username", true), f.str("rights", true)
		if err := f.done(); err != nil {
			return nil, err
		}
		return api.SetUserRights(ctx, username, rights)
	},
	capabilityKey(string(policy.DomainPlugins), "enable"):  toggleByString("plugins.enable", true, HubAPI.SetPluginEnabled),
	capabilityKey(string(policy.DomainPlugins), "disable"): toggleByString("plugins.disable", false, HubAPI.SetPluginEnabled),
	capabilityKey(string(policy.DomainPlugins), "restart"): byString("plugins.restart", HubAPI.RestartPlugin),

	capabilityKey(string(policy.DomainInterfaces), "enable"):  toggleByString("interfaces.enable", true, HubAPI.SetInterfaceEnabled),
	capabilityKey(string(policy.DomainInterfaces), "disable"): toggleByString("interfaces.disable", false, HubAPI.SetInterfaceEnabled),
	capabilityKey(string(policy.DomainInterfaces), "restart"): byString("interfaces.restart", HubAPI.RestartInterface),

	capabilityKey(string(policy.DomainSystem), "restart"): func(ctx context.Context, api HubAPI, p Payload) ([]byte, error) {
		if err := extract("system.restart", p).done(); err != nil {
			return nil, err
		}
		return api.RestartSystem(ctx)
	},
	capabilityKey(string(policy.DomainCameras), "delete"): byInt("cameras.delete", HubAPI.DeleteCamera),

	capabilityKey(string(policy.DomainEvents), "enable"):  toggleByInt("events.enable", true, HubAPI.SetEventEnabled),
	capabilityKey(string(policy.DomainEvents), "disable"): toggleByInt("events.disable", false, HubAPI.SetEventEnabled),
	capabilityKey(string(policy.DomainEvents), "delete"):  byInt("events.delete", HubAPI.DeleteEvent),

	capabilityKey(string(policy.DomainConfig), "set"): func(ctx context.Context, api HubAPI, p Payload) ([]byte, error) {
		f := extract("config.set", p)
		key, value := f.str("key", true), f.str("value", false)
		if err := f.done(); err != nil {
			return nil, err
		}
		return api.SetConfig(ctx, key, value)
	},
}

func byString(op string, call func(HubAPI, context.Context, string) ([]byte, error)) directCall {
	return func(ctx context.Context, api HubAPI, p Payload) ([]byte, error) {
		f := extract(op, p)
		id := f.str("id", true)
		if err := f.done(); err != nil {
			return nil, err
		}
		return call(api, ctx, id)
	}
}

func toggleByString(op string, enabled bool, call func(HubAPI, context.Context, string, bool) ([]byte, error)) directCall {
	return func(ctx context.Context, api HubAPI, p Payload) ([]byte, error) {
		f := extract(op, p)
		id := f.str("id", true)
		if err := f.done(); err != nil {
			return nil, err
		}
		return call(api, ctx, id, enabled)
	}
}

func byInt(op string, call func(HubAPI, context.Context, int) ([]byte, error)) directCall {
	return func(ctx context.Context, api HubAPI, p Payload) ([]byte, error) {
		f := extract(op, p)
		id := f.integer("id")
		if err := f.done(); err != nil {
			return nil, err
		}
		return call(api, ctx, id)
	}
}

func toggleByInt(op string, enabled bool, call func(HubAPI, context.Context, int, bool) ([]byte, error)) directCall {
	return func(ctx context.Context, api HubAPI, p Payload) ([]byte, error) {
		f := extract(op, p)
		id := f.integer("id")
		if err := f.done(); err != nil {
			return nil, err
		}
		return call(api, ctx, id, enabled)
	}
}

// SupportsDirect reports whether a direct mapping exists for the pair.
func SupportsDirect(domain, action string) bool {
	_, ok := directCalls[capabilityKey(domain, action)]
	return ok
}

func (r *Router) viaDirect(ctx context.Context, req Request) (Result, error) {
	call, ok := directCalls[capabilityKey(req.Domain, req.Action)]
	if !ok {
		return Result{}, apperrors.WithDetails(apperrors.CodeUnsupportedOnTarget,
			fmt.Sprintf("no direct route for %s.%s", req.Domain, req.Action),
			map[string]any{"domain": req.Domain, "action": req.Action})
	}
	raw, err := call(ctx, r.api, req.Payload)
	if err != nil {
		return Result{}, err
	}
	result := Result{
		Result:   OutcomeApplied,
		Route:    RouteDirect,
		Precheck: []Check{},
		Steps:    []Step{syntheticStep(req.Domain, req.Action, RouteDirect, transportJSONAPI)},
		Rollback: rollbackOrDefault(req.RollbackHint),
	}
	if response := responseText(raw); response != "" {
		result.Data = map[string]any{"response": response}
	}
	return result, nil
}
