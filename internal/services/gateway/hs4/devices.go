package hs4

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
	"github.com/louisbranch/hs4gate/internal/services/gateway/normalize"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GetStatus returns the raw status payload for ref, or every device when ref
// is zero.
func (c *Client) GetStatus(ctx context.Context, ref int) ([]byte, error) {
	params := url.Values{}
	if ref > 0 {
		params.Set("ref", strconv.Itoa(ref))
	}
	return c.call(ctx, "getstatus", params)
}

// GetControl returns the raw control-pair payload for ref.
func (c *Client) GetControl(ctx context.Context, ref int) ([]byte, error) {
	params := url.Values{}
	if ref > 0 {
		params.Set("ref", strconv.Itoa(ref))
	}
	return c.call(ctx, "getcontrol", params)
}

// ReadDevice returns the normalized device with its control pairs. A failed
// control read leaves ControlPairs empty.
func (c *Client) ReadDevice(ctx context.Context, ref int) (normalize.Device, error) {
	status, err := c.GetStatus(ctx, ref)
	if err != nil {
		return normalize.Device{}, err
	}
	device, ok := normalize.FindDevice(normalize.Devices(status), ref)
	if !ok {
		return normalize.Device{}, apperrors.WithDetails(apperrors.CodeNotFound, fmt.Sprintf("device %d not found", ref), map[string]any{"ref": ref})
	}
	if control, err := c.GetControl(ctx, ref); err == nil {
		device.ControlPairs = normalize.ControlPairs(control, ref)
	}
	return device, nil
}

// ListEvents returns every event known to the hub.
func (c *Client) ListEvents(ctx context.Context) ([]normalize.Event, error) {
	raw, err := c.call(ctx, "getevents", nil)
	if err != nil {
		return nil, err
	}
	return normalize.Events(raw), nil
}

// ControlDeviceByValue sets ref to a control-pair value.
func (c *Client) ControlDeviceByValue(ctx context.Context, ref int, value float64) ([]byte, error) {
	return c.call(ctx, "controldevicebyvalue", url.Values{
		"ref":   {strconv.Itoa(ref)},
		"value": {formatFloat(value)},
	})
}

// SetDeviceStatus writes a raw value and/or status text without running the
// device's control logic.
func (c *Client) SetDeviceStatus(ctx context.Context, ref int, value *float64, statusText, source string) ([]byte, error) {
	params := url.Values{"ref": {strconv.Itoa(ref)}}
	if value != nil {
		params.Set("value", formatFloat(*value))
	}
	if statusText = strings.TrimSpace(statusText); statusText != "" {
		params.Set("string", statusText)
	}
	if source = strings.TrimSpace(source); source != "" {
		params.Set("source", source)
	}
	return c.call(ctx, "setdevicestatus", params)
}

// RunEvent triggers an event by id.
func (c *Client) RunEvent(ctx context.Context, id int) ([]byte, error) {
	return c.call(ctx, "runevent", url.Values{"id": {strconv.Itoa(id)}})
}

// RunScriptCommand runs a script command string on the hub.
func (c *Client) RunScriptCommand(ctx context.Context, command string) ([]byte, error) {
	return c.call(ctx, "runscriptcommand", url.Values{"command": {command}})
}

// PluginFunction calls a plugin function with positional parameters.
func (c *Client) PluginFunction(ctx context.Context, plugin, function, instance string, params []string) ([]byte, error) {
	values := url.Values{
		"plugin":   {plugin},
		"function": {function},
	}
	if instance != "" {
		values.Set("instance", instance)
	}
	for i, p := range params {
		values.Set("P"+strconv.Itoa(i+1), p)
	}
	return c.call(ctx, "pluginfunction", values)
}

// CameraPan moves a camera.
func (c *Client) CameraPan(ctx context.Context, id int, direction string) ([]byte, error) {
	return c.call(ctx, "camerapan", url.Values{
		"id":        {strconv.Itoa(id)},
		"direction": {direction},
	})
}
