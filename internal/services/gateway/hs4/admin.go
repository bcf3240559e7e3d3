package hs4

import (
	"context"
	"net/url"
	"strconv"
)

func enableRequest(enabled bool, on, off string) string {
	if enabled {
		return on
	}
	return off
}

// CreateUser adds a hub user.
func (c *Client) CreateUser(ctx context.Context, username, password, rights string) ([]byte, error) {
	params := url.Values{"username": {username}, "password": {password}}
	if rights != "" {
		params.Set("rights", rights)
	}
	return c.call(ctx, "createuser", params)
}

// DeleteUser removes a hub user.
func (c *Client) DeleteUser(ctx context.Context, username string) ([]byte, error) {
	return c.call(ctx, "deleteuser", url.Values{"username": {username}})
}

// SetUserRights replaces a user's rights.
func (c *Client) SetUserRights(ctx context.Context, username, rights string) ([]byte, error) {
	return c.call(ctx, "setuserrights", url.Values{"username": {username}, "rights": {rights}})
}

// SetPluginEnabled enables or disables a plugin.
func (c *Client) SetPluginEnabled(ctx context.Context, id string, enabled bool) ([]byte, error) {
	return c.call(ctx, enableRequest(enabled, "enableplugin", "disableplugin"), url.Values{"id": {id}})
}

// RestartPlugin restarts a plugin.
func (c *Client) RestartPlugin(ctx context.Context, id string) ([]byte, error) {
	return c.call(ctx, "restartplugin", url.Values{"id": {id}})
}

// SetInterfaceEnabled enables or disables an interface.
func (c *Client) SetInterfaceEnabled(ctx context.Context, id string, enabled bool) ([]byte, error) {
	return c.call(ctx, enableRequest(enabled, "enableinterface", "disableinterface"), url.Values{"id": {id}})
}

// RestartInterface restarts an interface.
func (c *Client) RestartInterface(ctx context.Context, id string) ([]byte, error) {
	return c.call(ctx, "restartinterface", url.Values{"id": {id}})
}

// RestartSystem restarts the hub.
func (c *Client) RestartSystem(ctx context.Context) ([]byte, error) {
	return c.call(ctx, "restartsystem", nil)
}

// DeleteCamera removes a camera.
func (c *Client) DeleteCamera(ctx context.Context, id int) ([]byte, error) {
	return c.call(ctx, "deletecamera", url.Values{"id": {strconv.Itoa(id)}})
}

// SetEventEnabled enables or disables an event.
func (c *Client) SetEventEnabled(ctx context.Context, id int, enabled bool) ([]byte, error) {
	return c.call(ctx, enableRequest(enabled, "enableevent", "disableevent"), url.Values{"id": {strconv.Itoa(id)}})
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, id int) ([]byte, error) {
	return c.call(ctx, "deleteevent", url.Values{"id": {strconv.Itoa(id)}})
}

// SetConfig writes one hub setting.
func (c *Client) SetConfig(ctx context.Context, key, value string) ([]byte, error) {
	return c.call(ctx, "setconfig", url.Values{"key": {key}, "value": {value}})
}
