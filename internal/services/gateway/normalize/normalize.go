// Package normalize converts raw hub JSON into canonical device and event
// records. Every function is pure and tolerates the hub's mixed key casing.
package normalize

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ControlPair is one discrete control a device accepts.
type ControlPair struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Device is the canonical device record.
type Device struct {
	Ref          int           `json:"ref"`
	Name         string        `json:"name"`
	Location     string        `json:"location,omitempty"`
	Location2    string        `json:"location2,omitempty"`
	Status       string        `json:"status"`
	Value        float64       `json:"value"`
	ControlPairs []ControlPair `json:"controlPairs,omitempty"`
}

// Event is the canonical event record.
type Event struct {
	ID    int    `json:"id"`
	Group string `json:"group"`
	Name  string `json:"name"`
}

// field returns the first key of obj that exists.
func field(obj gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := obj.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// list returns the array under one of keys, or the root itself when the
// payload is a bare array.
func list(raw []byte, keys ...string) []gjson.Result {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	root := gjson.ParseBytes(raw)
	if root.IsArray() {
		return root.Array()
	}
	if v := field(root, keys...); v.IsArray() {
		return v.Array()
	}
	return nil
}

// Devices parses a getstatus payload.
func Devices(raw []byte) []Device {
	items := list(raw, "Devices", "devices")
	out := make([]Device, 0, len(items))
	for _, item := range items {
		ref := field(item, "ref", "Ref")
		if !ref.Exists() {
			continue
		}
		out = append(out, Device{
			Ref:       int(ref.Int()),
			Name:      strings.TrimSpace(field(item, "name", "Name").String()),
			Location:  strings.TrimSpace(field(item, "location", "Location").String()),
			Location2: strings.TrimSpace(field(item, "location2", "Location2").String()),
			Status:    strings.TrimSpace(field(item, "status", "Status").String()),
			Value:     field(item, "value", "Value").Float(),
		})
	}
	return out
}

// ControlPairs extracts the control pairs of ref from a getcontrol payload.
func ControlPairs(raw []byte, ref int) []ControlPair {
	for _, item := range list(raw, "Devices", "devices") {
		if int(field(item, "ref", "Ref").Int()) != ref {
			continue
		}
		return pairsOf(item)
	}
	return nil
}

func pairsOf(item gjson.Result) []ControlPair {
	raw := field(item, "ControlPairs", "controlPairs", "controlpairs")
	if !raw.IsArray() {
		return nil
	}
	var out []ControlPair
	raw.ForEach(func(_, pair gjson.Result) bool {
		value := field(pair, "ControlValue", "controlValue", "value", "Value")
		if !value.Exists() {
			return true
		}
		out = append(out, ControlPair{
			Label: strings.TrimSpace(field(pair, "Label", "label").String()),
			Value: value.Float(),
		})
		return true
	})
	return out
}

// MergeControls attaches control pairs from a getcontrol payload to devices.
func MergeControls(devices []Device, raw []byte) []Device {
	pairs := make(map[int][]ControlPair)
	for _, item := range list(raw, "Devices", "devices") {
		ref := field(item, "ref", "Ref")
		if !ref.Exists() {
			continue
		}
		pairs[int(ref.Int())] = pairsOf(item)
	}
	out := make([]Device, len(devices))
	for i, device := range devices {
		if cp, ok := pairs[device.Ref]; ok {
			device.ControlPairs = cp
		}
		out[i] = device
	}
	return out
}

// FindDevice returns the device with ref.
func FindDevice(devices []Device, ref int) (Device, bool) {
	for _, device := range devices {
		if device.Ref == ref {
			return device, true
		}
	}
	return Device{}, false
}

// Events parses a getevents payload.
func Events(raw []byte) []Event {
	items := list(raw, "Events", "events")
	out := make([]Event, 0, len(items))
	for _, item := range items {
		id := field(item, "id", "ID", "Id", "evRef")
		if !id.Exists() {
			continue
		}
		out = append(out, Event{
			ID:    int(id.Int()),
			Group: strings.TrimSpace(field(item, "Group", "group").String()),
			Name:  strings.TrimSpace(field(item, "Name", "name").String()),
		})
	}
	return out
}

// FindEvent returns the event with id.
func FindEvent(events []Event, id int) (Event, bool) {
	for _, event := range events {
		if event.ID == id {
			return event, true
		}
	}
	return Event{}, false
}
