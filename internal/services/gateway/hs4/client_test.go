package hs4

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
)

type recordedRequest struct {
	path  string
	query url.Values
	user  string
	pass  string
}

type fakeHub struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(w http.ResponseWriter, q url.Values)
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, pass, _ := r.BasicAuth()
	h.mu.Lock()
	h.requests = append(h.requests, recordedRequest{path: r.URL.Path, query: r.URL.Query(), user: user, pass: pass})
	h.mu.Unlock()
	if h.respond != nil {
		h.respond(w, r.URL.Query())
		return
	}
	_, _ = w.Write([]byte(`{"Response":"ok"}`))
}

func (h *fakeHub) last(t *testing.T) recordedRequest {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.requests) == 0 {
		t.Fatal("expected a hub request")
	}
	return h.requests[len(h.requests)-1]
}

func newTestClient(t *testing.T, hub *fakeHub) *Client {
	t.Helper()
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)
	client, err := New(Config{BaseURL: server.URL + "/", User: "admin", Password: "secret", Timeout: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, base := range []string{"", "  ", "not a url", "/relative"} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Fatalf("expected error for %q", base)
		}
	}
}

func TestWriteRequests(t *testing.T) {
	hub := &fakeHub{}
	client := newTestClient(t, hub)
	ctx := context.Background()
	value := 42.5

	tests := []struct {
		name string
		call func() error
		want map[string]string
	}{
		{
			name: "control by value",
			call: func() error { _, err := client.ControlDeviceByValue(ctx, 101, 100); return err },
			want: map[string]string{"request": "controldevicebyvalue", "ref": "101", "value": "100"},
		},
		{
			name: "set status",
			call: func() error { _, err := client.SetDeviceStatus(ctx, 101, &value, " Dim ", "hs4gate"); return err },
			want: map[string]string{"request": "setdevicestatus", "ref": "101", "value": "42.5", "string": "Dim", "source": "hs4gate"},
		},
		{
			name: "run event",
			call: func() error { _, err := client.RunEvent(ctx, 12); return err },
			want: map[string]string{"request": "runevent", "id": "12"},
		},
		{
			name: "script command",
			call: func() error { _, err := client.RunScriptCommand(ctx, `hs.WriteLog("a","b")`); return err },
			want: map[string]string{"request": "runscriptcommand", "command": `hs.WriteLog("a","b")`},
		},
		{
			name: "plugin function",
			call: func() error {
				_, err := client.PluginFunction(ctx, "Z-Wave", "Heal", "1", []string{"a", "b"})
				return err
			},
			want: map[string]string{"request": "pluginfunction", "plugin": "Z-Wave", "function": "Heal", "instance": "1", "P1": "a", "P2": "b"},
		},
		{
			name: "camera pan",
			call: func() error { _, err := client.CameraPan(ctx, 3, "left"); return err },
			want: map[string]string{"request": "camerapan", "id": "3", "direction": "left"},
		},
		{
			name: "disable plugin",
			call: func() error { _, err := client.SetPluginEnabled(ctx, "zwave", false); return err },
			want: map[string]string{"request": "disableplugin", "id": "zwave"},
		},
		{
			name: "enable event",
			call: func() error { _, err := client.SetEventEnabled(ctx, 9, true); return err },
			want: map[string]string{"request": "enableevent", "id": "9"},
		},
		{
			name: "set config",
			call: func() error { _, err := client.SetConfig(ctx, "log_level", "debug"); return err },
			want: map[string]string{"request": "setconfig", "key": "log_level", "value": "debug"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("call: %v", err)
			}
			got := hub.last(t)
			if got.path != "/JSON" {
				t.Fatalf("expected /JSON path, got %q", got.path)
			}
			if got.user != "admin" || got.pass != "secret" {
				t.Fatalf("expected basic auth, got %q/%q", got.user, got.pass)
			}
			for key, want := range tt.want {
				if v := got.query.Get(key); v != want {
					t.Fatalf("query %s = %q, want %q", key, v, want)
				}
			}
		})
	}
}

func TestReadDevice(t *testing.T) {
	hub := &fakeHub{respond: func(w http.ResponseWriter, q url.Values) {
		switch q.Get("request") {
		case "getstatus":
			_, _ = w.Write([]byte(`{"Devices":[{"ref":101,"name":"Lamp","status":"Off","value":0}]}`))
		case "getcontrol":
			_, _ = w.Write([]byte(`{"Devices":[{"ref":101,"ControlPairs":[{"Label":"On","ControlValue":100}]}]}`))
		}
	}}
	client := newTestClient(t, hub)

	device, err := client.ReadDevice(context.Background(), 101)
	if err != nil {
		t.Fatalf("read device: %v", err)
	}
	if device.Name != "Lamp" || len(device.ControlPairs) != 1 || device.ControlPairs[0].Value != 100 {
		t.Fatalf("unexpected device %#v", device)
	}

	_, err = client.ReadDevice(context.Background(), 5)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestListEvents(t *testing.T) {
	hub := &fakeHub{respond: func(w http.ResponseWriter, _ url.Values) {
		_, _ = w.Write([]byte(`{"Events":[{"id":4,"Group":"Lights","Name":"Off"}]}`))
	}}
	events, err := newTestClient(t, hub).ListEvents(context.Background())
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].ID != 4 {
		t.Fatalf("unexpected events %v", events)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperrors.Code
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: apperrors.CodeAuth},
		{name: "forbidden", status: http.StatusForbidden, want: apperrors.CodeAuth},
		{name: "bad request", status: http.StatusBadRequest, want: apperrors.CodeBadRequest},
		{name: "not found", status: http.StatusNotFound, want: apperrors.CodeNotFound},
		{name: "not implemented", status: http.StatusNotImplemented, want: apperrors.CodeUnsupportedOnTarget},
		{name: "server error", status: http.StatusInternalServerError, want: apperrors.CodeHS4},
		{name: "json error response", status: http.StatusOK, body: `{"Response":"Error, bad ref"}`, want: apperrors.CodeHS4},
		{name: "json unknown request", status: http.StatusOK, body: `{"Response":"Error: unknown request"}`, want: apperrors.CodeUnsupportedOnTarget},
		{name: "plain text unsupported", status: http.StatusOK, body: "Request not supported", want: apperrors.CodeUnsupportedOnTarget},
		{name: "plain text error", status: http.StatusOK, body: "error processing request", want: apperrors.CodeHS4},
		{name: "ok", status: http.StatusOK, body: `{"Response":"ok"}`, want: ""},
		{name: "payload", status: http.StatusOK, body: `{"Devices":[]}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := &fakeHub{respond: func(w http.ResponseWriter, _ url.Values) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}}
			_, err := newTestClient(t, hub).RunEvent(context.Background(), 1)
			if got := apperrors.CodeOf(err); got != tt.want {
				t.Fatalf("code = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestNetworkAndTimeoutErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	slow, err := New(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := slow.RunEvent(context.Background(), 1); !apperrors.IsCode(err, apperrors.CodeTimeout) {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()
	dead, err := New(Config{BaseURL: closedURL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := dead.RunEvent(context.Background(), 1); !apperrors.IsCode(err, apperrors.CodeNetwork) {
		t.Fatalf("expected NETWORK, got %v", err)
	}
}
