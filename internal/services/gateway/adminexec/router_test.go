package adminexec

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
)

type fakeHub struct {
	mu       sync.Mutex
	calls    []string
	commands []string
	// unsupported lists direct calls that report UNSUPPORTED_ON_TARGET.
	unsupported map[string]bool
	directErr   error
	adapterBody string
	adapterErr  error
}

func (f *fakeHub) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.unsupported[name] {
		return apperrors.New(apperrors.CodeUnsupportedOnTarget, name+" not supported")
	}
	return f.directErr
}

func (f *fakeHub) direct(name string) ([]byte, error) {
	if err := f.record(name); err != nil {
		return nil, err
	}
	return []byte(`{"Response":"ok"}`), nil
}

func (f *fakeHub) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeHub) RunScriptCommand(_ context.Context, command string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "script")
	f.commands = append(f.commands, command)
	f.mu.Unlock()
	if f.adapterErr != nil {
		return nil, f.adapterErr
	}
	body := f.adapterBody
	if body == "" {
		body = `{"Response":"done"}`
	}
	return []byte(body), nil
}

func (f *fakeHub) CreateUser(context.Context, string, string, string) ([]byte, error) {
	return f.direct("createuser")
}
func (f *fakeHub) DeleteUser(context.Context, string) ([]byte, error) { return f.direct("deleteuser") }
func (f *fakeHub) SetUserRights(context.Context, string, string) ([]byte, error) {
	return f.direct("setuserrights")
}
func (f *fakeHub) SetPluginEnabled(_ context.Context, _ string, enabled bool) ([]byte, error) {
	if enabled {
		return f.direct("enableplugin")
	}
	return f.direct("disableplugin")
}
func (f *fakeHub) RestartPlugin(context.Context, string) ([]byte, error) {
	return f.direct("restartplugin")
}
func (f *fakeHub) SetInterfaceEnabled(context.Context, string, bool) ([]byte, error) {
	return f.direct("setinterface")
}
func (f *fakeHub) RestartInterface(context.Context, string) ([]byte, error) {
	return f.direct("restartinterface")
}
func (f *fakeHub) RestartSystem(context.Context) ([]byte, error) { return f.direct("restartsystem") }
func (f *fakeHub) DeleteCamera(context.Context, int) ([]byte, error) {
	return f.direct("deletecamera")
}
func (f *fakeHub) SetEventEnabled(_ context.Context, _ int, enabled bool) ([]byte, error) {
	if enabled {
		return f.direct("enableevent")
	}
	return f.direct("disableevent")
}
func (f *fakeHub) DeleteEvent(context.Context, int) ([]byte, error) { return f.direct("deleteevent") }
func (f *fakeHub) SetConfig(context.Context, string, string) ([]byte, error) {
	return f.direct("setconfig")
}

func newRouter(hub *fakeHub, mode Mode, fallback bool) *Router {
	return NewRouter(hub, Options{Mode: mode, Fallback: fallback, Logger: zerolog.Nop()})
}

func pluginRequest() Request {
	return Request{Domain: "plugins", Action: "disable", Payload: NewPayload(map[string]any{"id": "zwave"})}
}

func TestAdapterModeAlwaysUsesAdapter(t *testing.T) {
	hub := &fakeHub{}
	result, err := newRouter(hub, ModeAdapter, true).Execute(context.Background(), pluginRequest())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Route != RouteAdapter || result.FallbackFrom != "" {
		t.Fatalf("unexpected routing %#v", result)
	}
	if hub.callCount("disableplugin") != 0 {
		t.Fatal("adapter mode must not call direct")
	}
	if len(hub.commands) != 1 || !strings.HasPrefix(hub.commands[0], `&hs.RunScriptFunc("hs4gate_admin.vb","Main","{""domain"":""plugins""`) {
		t.Fatalf("unexpected adapter command %v", hub.commands)
	}
	if result.Result != OutcomeApplied || len(result.Steps) != 1 || result.Steps[0].Transport != transportScriptCommand {
		t.Fatalf("expected synthetic applied step, got %#v", result)
	}
	if result.Data["raw"] != "done" {
		t.Fatalf("expected raw adapter text, got %v", result.Data)
	}
}

func TestDirectModeSuccess(t *testing.T) {
	hub := &fakeHub{}
	req := pluginRequest()
	req.RollbackHint = RollbackNotNeeded

	result, err := newRouter(hub, ModeDirect, false).Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Route != RouteDirect || result.Result != OutcomeApplied {
		t.Fatalf("unexpected result %#v", result)
	}
	if result.Rollback != RollbackNotNeeded {
		t.Fatalf("expected rollback hint, got %q", result.Rollback)
	}
	if len(result.Steps) != 1 || result.Steps[0].Route != RouteDirect || result.Steps[0].Name != "plugins.disable" {
		t.Fatalf("unexpected steps %#v", result.Steps)
	}
	if hub.callCount("disableplugin") != 1 {
		t.Fatal("expected direct call")
	}
}

func TestDirectModeDefaultsRollbackAvailable(t *testing.T) {
	result, err := newRouter(&fakeHub{}, ModeDirect, false).Execute(context.Background(), pluginRequest())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Rollback != RollbackAvailable {
		t.Fatalf("expected available rollback, got %q", result.Rollback)
	}
}

func TestDirectModeUnsupportedWithoutFallback(t *testing.T) {
	hub := &fakeHub{unsupported: map[string]bool{"disableplugin": true}}
	_, err := newRouter(hub, ModeDirect, false).Execute(context.Background(), pluginRequest())
	if !apperrors.IsCode(err, apperrors.CodeUnsupportedOnTarget) {
		t.Fatalf("expected UNSUPPORTED_ON_TARGET, got %v", err)
	}
	if hub.callCount("script") != 0 {
		t.Fatal("fallback disabled must not call adapter")
	}
}

func TestDirectModeUnsupportedFallsBack(t *testing.T) {
	hub := &fakeHub{unsupported: map[string]bool{"disableplugin": true}}
	result, err := newRouter(hub, ModeDirect, true).Execute(context.Background(), pluginRequest())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	assertFallback(t, result)
}

func assertFallback(t *testing.T, result Result) {
	t.Helper()
	if result.Route != RouteAdapter || result.FallbackFrom != RouteDirect {
		t.Fatalf("expected adapter fallback, got route=%q from=%q", result.Route, result.FallbackFrom)
	}
	marker, ok := result.Data["fallback"].(map[string]any)
	if !ok {
		t.Fatalf("expected fallback marker, got %v", result.Data)
	}
	if marker["from"] != "direct" || marker["to"] != "adapter" || marker["reason"] != "unsupported_on_target" {
		t.Fatalf("unexpected fallback marker %v", marker)
	}
	if result.Steps[0].FallbackFrom != RouteDirect {
		t.Fatalf("expected first step annotated, got %#v", result.Steps[0])
	}
}

func TestDirectModeOtherErrorsPropagate(t *testing.T) {
	hub := &fakeHub{directErr: apperrors.New(apperrors.CodeAuth, "denied")}
	_, err := newRouter(hub, ModeDirect, true).Execute(context.Background(), pluginRequest())
	if !apperrors.IsCode(err, apperrors.CodeAuth) {
		t.Fatalf("expected AUTH, got %v", err)
	}
	if hub.callCount("script") != 0 {
		t.Fatal("non-unsupported errors must not fall back")
	}
}

func TestAutoModeCachesUnsupported(t *testing.T) {
	hub := &fakeHub{unsupported: map[string]bool{"disableplugin": true}}
	router := newRouter(hub, ModeAuto, true)
	ctx := context.Background()

	first, err := router.Execute(ctx, pluginRequest())
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	assertFallback(t, first)

	second, err := router.Execute(ctx, pluginRequest())
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if second.Route != RouteAdapter || second.FallbackFrom != "" {
		t.Fatalf("expected cached adapter route without marker, got %#v", second)
	}
	if _, marked := second.Data["fallback"]; marked {
		t.Fatal("cached route must not carry a fallback marker")
	}
	if n := hub.callCount("disableplugin"); n != 1 {
		t.Fatalf("expected one direct attempt, got %d", n)
	}
}

func TestAutoModeCachesSupported(t *testing.T) {
	hub := &fakeHub{}
	router := newRouter(hub, ModeAuto, true)
	if _, err := router.Execute(context.Background(), pluginRequest()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	supported, ok := router.cache.Lookup("plugins", "disable")
	if !ok || !supported {
		t.Fatalf("expected supported verdict, got %v %v", supported, ok)
	}
}

func TestAutoModeUnsupportedWithoutFallbackStillCaches(t *testing.T) {
	hub := &fakeHub{}
	router := newRouter(hub, ModeAuto, false)
	req := Request{Domain: "categories", Action: "create", Payload: NewPayload(map[string]any{"name": "Lights"})}

	_, err := router.Execute(context.Background(), req)
	if !apperrors.IsCode(err, apperrors.CodeUnsupportedOnTarget) {
		t.Fatalf("expected UNSUPPORTED_ON_TARGET, got %v", err)
	}
	if supported, ok := router.cache.Lookup("categories", "create"); !ok || supported {
		t.Fatal("expected unsupported verdict cached")
	}
}

func TestUnknownPayloadFieldRoutesToAdapter(t *testing.T) {
	hub := &fakeHub{}
	req := pluginRequest()
	req.Payload = NewPayload(map[string]any{"id": "zwave", "reason": "maintenance"})

	result, err := newRouter(hub, ModeAuto, true).Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.FallbackFrom != RouteDirect {
		t.Fatalf("expected fallback for inexpressible payload, got %#v", result)
	}
	if hub.callCount("disableplugin") != 0 {
		t.Fatal("direct call must not run with dropped fields")
	}
}

func TestMissingRequiredFieldIsBadRequest(t *testing.T) {
	req := Request{Domain: "events", Action: "delete", Payload: NewPayload(nil)}
	_, err := newRouter(&fakeHub{}, ModeDirect, true).Execute(context.Background(), req)
	if !apperrors.IsCode(err, apperrors.CodeBadRequest) {
		t.Fatalf("expected BAD_REQUEST, got %v", err)
	}
}

func TestExecuteRequiresDomainAndAction(t *testing.T) {
	_, err := newRouter(&fakeHub{}, ModeAuto, true).Execute(context.Background(), Request{Domain: "plugins"})
	if !apperrors.IsCode(err, apperrors.CodeBadRequest) {
		t.Fatalf("expected BAD_REQUEST, got %v", err)
	}
}

func TestAdapterErrorPropagates(t *testing.T) {
	hub := &fakeHub{adapterErr: apperrors.New(apperrors.CodeHS4, "script failed")}
	_, err := newRouter(hub, ModeAdapter, true).Execute(context.Background(), pluginRequest())
	if !apperrors.IsCode(err, apperrors.CodeHS4) {
		t.Fatalf("expected HS4_ERROR, got %v", err)
	}
}

func TestSnapshotsAndDiff(t *testing.T) {
	hub := &fakeHub{}
	req := Request{
		Domain:  "events",
		Action:  "disable",
		Payload: NewPayload(map[string]any{"id": 12.0}),
		Before: func(context.Context) (map[string]any, error) {
			return map[string]any{"enabled": true, "name": "Lights"}, nil
		},
		After: func(context.Context) (map[string]any, error) {
			return map[string]any{"enabled": false, "name": "Lights"}, nil
		},
	}
	result, err := newRouter(hub, ModeDirect, false).Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Diff) != 1 || result.Diff[0] != "enabled" {
		t.Fatalf("unexpected diff %v", result.Diff)
	}
	if result.Before["enabled"] != true || result.After["enabled"] != false {
		t.Fatalf("expected snapshots attached, got %#v", result)
	}
}

func TestSnapshotFailureIsIgnored(t *testing.T) {
	req := pluginRequest()
	req.Before = func(context.Context) (map[string]any, error) { return nil, errors.New("hub busy") }

	result, err := newRouter(&fakeHub{}, ModeDirect, false).Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Before != nil || result.Diff != nil {
		t.Fatalf("expected no snapshots, got %#v", result)
	}
}

func TestStructuredAdapterResponse(t *testing.T) {
	hub := &fakeHub{adapterBody: `{"Response":"{\"result\":\"partial\",\"rollback\":\"applied\",\"precheck\":[{\"name\":\"exists\",\"passed\":true},\"reachable\"],\"steps\":[{\"name\":\"disable\",\"status\":\"applied\"},{\"name\":\"notify\",\"status\":\"failed\",\"message\":\"smtp down\"}],\"data\":{\"affected\":2}}"}`}

	result, err := newRouter(hub, ModeAdapter, false).Execute(context.Background(), pluginRequest())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Result != OutcomePartial || result.Rollback != RollbackApplied {
		t.Fatalf("unexpected tags %#v", result)
	}
	if len(result.Precheck) != 2 || !result.Precheck[0].Passed || result.Precheck[1].Name != "reachable" {
		t.Fatalf("unexpected precheck %#v", result.Precheck)
	}
	if len(result.Steps) != 2 || result.Steps[1].Message != "smtp down" || result.Steps[1].Route != RouteAdapter {
		t.Fatalf("unexpected steps %#v", result.Steps)
	}
	if result.Data["affected"] != 2.0 {
		t.Fatalf("unexpected data %v", result.Data)
	}
}

func TestCapabilityCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCapabilityCache(time.Minute, func() time.Time { return now })

	cache.Store("events", "delete", false)
	if supported, ok := cache.Lookup("events", "delete"); !ok || supported {
		t.Fatal("expected cached unsupported verdict")
	}
	now = now.Add(time.Minute)
	if _, ok := cache.Lookup("events", "delete"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{"": ModeAuto, "Adapter": ModeAdapter, " direct ": ModeDirect, "auto": ModeAuto}
	for in, want := range tests {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("carrier-pigeon"); err == nil {
		t.Fatal("expected error")
	}
}
