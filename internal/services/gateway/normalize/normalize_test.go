package normalize

import "testing"

const statusPayload = `{
  "Name": "HomeSeer Devices",
  "Devices": [
    {"ref": 101, "name": "Lamp", "location": "Kitchen", "location2": "Main", "value": 0, "status": "Off"},
    {"Ref": 102, "Name": "Fan", "Location": "Office", "Value": 50.5, "Status": "Medium"},
    {"name": "no ref"}
  ]
}`

const controlPayload = `{
  "Devices": [
    {"ref": 101, "ControlPairs": [
      {"Label": "On", "ControlValue": 100},
      {"Label": "Off", "ControlValue": 0},
      {"Label": "broken"}
    ]},
    {"ref": 102, "controlPairs": [{"label": "High", "value": 99}]}
  ]
}`

func TestDevices(t *testing.T) {
	devices := Devices([]byte(statusPayload))
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	lamp := devices[0]
	if lamp.Ref != 101 || lamp.Name != "Lamp" || lamp.Location != "Kitchen" || lamp.Location2 != "Main" || lamp.Status != "Off" {
		t.Fatalf("unexpected lamp %#v", lamp)
	}
	fan := devices[1]
	if fan.Ref != 102 || fan.Value != 50.5 || fan.Status != "Medium" {
		t.Fatalf("unexpected fan %#v", fan)
	}
}

func TestDevicesToleratesBadInput(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"Devices": 3}`, `{}`} {
		if got := Devices([]byte(raw)); len(got) != 0 {
			t.Fatalf("expected no devices for %q, got %v", raw, got)
		}
	}
}

func TestDevicesBareArray(t *testing.T) {
	devices := Devices([]byte(`[{"ref": 7, "name": "Lock", "status": "Locked"}]`))
	if len(devices) != 1 || devices[0].Ref != 7 {
		t.Fatalf("unexpected devices %v", devices)
	}
}

func TestControlPairs(t *testing.T) {
	pairs := ControlPairs([]byte(controlPayload), 101)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %v", pairs)
	}
	if pairs[0] != (ControlPair{Label: "On", Value: 100}) {
		t.Fatalf("unexpected first pair %#v", pairs[0])
	}
	if got := ControlPairs([]byte(controlPayload), 999); got != nil {
		t.Fatalf("expected nil for unknown ref, got %v", got)
	}
}

func TestMergeControls(t *testing.T) {
	devices := MergeControls(Devices([]byte(statusPayload)), []byte(controlPayload))
	fan, ok := FindDevice(devices, 102)
	if !ok {
		t.Fatal("expected fan")
	}
	if len(fan.ControlPairs) != 1 || fan.ControlPairs[0].Label != "High" || fan.ControlPairs[0].Value != 99 {
		t.Fatalf("unexpected fan controls %#v", fan.ControlPairs)
	}
	if _, ok := FindDevice(devices, 5); ok {
		t.Fatal("unexpected device")
	}
}

func TestEvents(t *testing.T) {
	raw := `{"Events": [
	  {"Group": "Lights", "Name": "All Off", "id": 12},
	  {"group": "Security", "name": "Arm", "ID": 13},
	  {"Name": "missing id"}
	]}`
	events := Events([]byte(raw))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	arm, ok := FindEvent(events, 13)
	if !ok || arm.Group != "Security" || arm.Name != "Arm" {
		t.Fatalf("unexpected event %#v", arm)
	}
}
