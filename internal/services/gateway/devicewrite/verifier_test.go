package devicewrite

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
	"github.com/louisbranch/hs4gate/internal/services/gateway/normalize"
)

type writeCall struct {
	mode   Mode
	value  *float64
	status string
}

// fakeDevices serves reads from a script; the last read repeats once the
// script runs out.
type fakeDevices struct {
	reads     []normalize.Device
	readErrs  []error
	readCount int
	writes    []writeCall
	writeErr  error
}

func (f *fakeDevices) ReadDevice(_ context.Context, ref int) (normalize.Device, error) {
	i := f.readCount
	f.readCount++
	if i < len(f.readErrs) && f.readErrs[i] != nil {
		return normalize.Device{}, f.readErrs[i]
	}
	if len(f.reads) == 0 {
		return normalize.Device{}, apperrors.New(apperrors.CodeNotFound, "missing")
	}
	if i >= len(f.reads) {
		i = len(f.reads) - 1
	}
	device := f.reads[i]
	device.Ref = ref
	return device, nil
}

func (f *fakeDevices) ControlDeviceByValue(_ context.Context, _ int, value float64) ([]byte, error) {
	f.writes = append(f.writes, writeCall{mode: ModeControlValue, value: &value})
	return nil, f.writeErr
}

func (f *fakeDevices) SetDeviceStatus(_ context.Context, _ int, value *float64, statusText, _ string) ([]byte, error) {
	f.writes = append(f.writes, writeCall{mode: ModeSetStatus, value: value, status: statusText})
	return nil, f.writeErr
}

func newVerifier(api DeviceAPI, attempts int) *Verifier {
	return NewVerifier(api, Options{Attempts: attempts, Delay: 0, Logger: zerolog.Nop()})
}

func ptr(v float64) *float64 { return &v }

var onOff = []normalize.ControlPair{{Label: "Off", Value: 0}, {Label: "On", Value: 100}}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{name: "control value", req: Request{Ref: 1, Mode: ModeControlValue, Value: ptr(1)}, ok: true},
		{name: "control value without value", req: Request{Ref: 1, Mode: ModeControlValue}},
		{name: "set status text only", req: Request{Ref: 1, Mode: ModeSetStatus, StatusText: "On"}, ok: true},
		{name: "set status value only", req: Request{Ref: 1, Mode: ModeSetStatus, Value: ptr(3)}, ok: true},
		{name: "set status empty", req: Request{Ref: 1, Mode: ModeSetStatus, StatusText: "  "}},
		{name: "bad ref", req: Request{Mode: ModeControlValue, Value: ptr(1)}},
		{name: "bad mode", req: Request{Ref: 1, Mode: "toggle", Value: ptr(1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !apperrors.IsCode(err, apperrors.CodeBadRequest) {
				t.Fatalf("expected BAD_REQUEST, got %v", err)
			}
		})
	}
}

func TestConvergesOnNthPoll(t *testing.T) {
	api := &fakeDevices{reads: []normalize.Device{
		{Status: "Off", Value: 0},
		{Status: "Off", Value: 0},
		{Status: "On", Value: 100},
	}}
	summary, err := newVerifier(api, 5).Execute(context.Background(), Request{
		Ref: 101, Mode: ModeControlValue, Value: ptr(100), Verify: true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !summary.Verification.Matched || summary.Verification.Attempts != 3 {
		t.Fatalf("expected match on attempt 3, got %#v", summary.Verification)
	}
	if summary.Verification.Observed == nil || summary.Verification.Observed.Ref != 101 {
		t.Fatalf("expected observed device, got %#v", summary.Verification.Observed)
	}
	if len(api.writes) != 1 || api.writes[0].mode != ModeControlValue {
		t.Fatalf("unexpected writes %#v", api.writes)
	}
}

func TestVerifyDisabled(t *testing.T) {
	api := &fakeDevices{}
	summary, err := newVerifier(api, 3).Execute(context.Background(), Request{
		Ref: 5, Mode: ModeSetStatus, StatusText: "Away",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Verification.Performed || api.readCount != 0 {
		t.Fatalf("expected no verification, got %#v reads=%d", summary.Verification, api.readCount)
	}
}

func TestModeAutoSwitch(t *testing.T) {
	api := &fakeDevices{reads: []normalize.Device{
		{Status: "Off", Value: 0, ControlPairs: onOff},
		{Status: "On", Value: 100, ControlPairs: onOff},
	}}
	summary, err := newVerifier(api, 3).Execute(context.Background(), Request{
		Ref: 7, Mode: ModeSetStatus, Value: ptr(100), Verify: true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.ExecutedMode != ModeControlValue || summary.ModeSwitch == nil || summary.ModeSwitch.Label != "On" {
		t.Fatalf("expected switch to control_value, got %#v", summary)
	}
	if summary.ModeSwitch.Reason == "" {
		t.Fatal("expected switch reason")
	}
	if api.writes[0].mode != ModeControlValue {
		t.Fatalf("expected control write, got %#v", api.writes)
	}
}

func TestNoSwitchWithoutMatchingPair(t *testing.T) {
	api := &fakeDevices{reads: []normalize.Device{
		{Status: "20", Value: 20, ControlPairs: onOff},
		{Status: "42", Value: 42, ControlPairs: onOff},
	}}
	summary, err := newVerifier(api, 3).Execute(context.Background(), Request{
		Ref: 7, Mode: ModeSetStatus, Value: ptr(42), Verify: true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.ExecutedMode != ModeSetStatus || summary.ModeSwitch != nil {
		t.Fatalf("expected set_status unchanged, got %#v", summary)
	}
}

func TestPreflightFailureIsIgnored(t *testing.T) {
	api := &fakeDevices{
		readErrs: []error{apperrors.New(apperrors.CodeNetwork, "down")},
		reads:    []normalize.Device{{}, {Status: "42", Value: 42}},
	}
	summary, err := newVerifier(api, 3).Execute(context.Background(), Request{
		Ref: 7, Mode: ModeSetStatus, Value: ptr(42), Verify: true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.ExecutedMode != ModeSetStatus || !summary.Verification.Matched {
		t.Fatalf("unexpected summary %#v", summary)
	}
}

func TestFallbackToControlValue(t *testing.T) {
	// Preflight has no matching pair; the verification reads reveal one.
	pairs := []normalize.ControlPair{{Label: "Dim 50%", Value: 50}}
	api := &fakeDevices{reads: []normalize.Device{
		{Status: "Off", Value: 0},
		{Status: "Off", Value: 0, ControlPairs: pairs},
		{Status: "Off", Value: 0, ControlPairs: pairs},
		{Status: "Dim 50%", Value: 50, ControlPairs: pairs},
	}}
	summary, err := newVerifier(api, 2).Execute(context.Background(), Request{
		Ref: 9, Mode: ModeSetStatus, Value: ptr(50), Verify: true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if summary.Verification.Matched {
		t.Fatal("primary verification should not match")
	}
	fb := summary.Fallback
	if fb == nil || !fb.Attempted || !fb.Matched || fb.Mode != ModeControlValue || fb.Label != "Dim 50%" {
		t.Fatalf("unexpected fallback %#v", fb)
	}
	if len(api.writes) != 2 || api.writes[1].mode != ModeControlValue || *api.writes[1].value != 50 {
		t.Fatalf("unexpected writes %#v", api.writes)
	}
}

func TestFallbackNotAttemptedWithoutPair(t *testing.T) {
	api := &fakeDevices{reads: []normalize.Device{{Status: "Off", Value: 0}}}
	_, err := newVerifier(api, 2).Execute(context.Background(), Request{
		Ref: 9, Mode: ModeSetStatus, Value: ptr(50), Verify: true,
	})
	if !apperrors.IsCode(err, apperrors.CodeHS4) {
		t.Fatalf("expected HS4_ERROR, got %v", err)
	}
	appErr, _ := apperrors.As(err)
	fb, ok := appErr.Details["fallback"].(*Fallback)
	if !ok || fb.Attempted || fb.Reason == "" {
		t.Fatalf("expected recorded non-attempt, got %#v", appErr.Details["fallback"])
	}
	if _, ok := appErr.Details["verification"].(Verification); !ok {
		t.Fatalf("expected verification detail, got %#v", appErr.Details)
	}
	if len(api.writes) != 1 {
		t.Fatalf("expected single write, got %d", len(api.writes))
	}
}

func TestNonConvergence(t *testing.T) {
	api := &fakeDevices{reads: []normalize.Device{{Status: "Off", Value: 0}}}
	_, err := newVerifier(api, 4).Execute(context.Background(), Request{
		Ref: 3, Mode: ModeControlValue, Value: ptr(1), Verify: true,
	})
	if !apperrors.IsCode(err, apperrors.CodeHS4) {
		t.Fatalf("expected HS4_ERROR, got %v", err)
	}
	if api.readCount != 4 {
		t.Fatalf("expected 4 reads, got %d", api.readCount)
	}
	appErr, _ := apperrors.As(err)
	if _, ok := appErr.Details["fallback"]; ok {
		t.Fatal("control_value writes never fall back")
	}
}

func TestWriteErrorPropagates(t *testing.T) {
	api := &fakeDevices{writeErr: apperrors.New(apperrors.CodeAuth, "denied")}
	_, err := newVerifier(api, 2).Execute(context.Background(), Request{
		Ref: 3, Mode: ModeControlValue, Value: ptr(1), Verify: true,
	})
	if !apperrors.IsCode(err, apperrors.CodeAuth) {
		t.Fatalf("expected AUTH, got %v", err)
	}
}

func TestMissingDeviceNeverMatches(t *testing.T) {
	api := &fakeDevices{}
	_, err := newVerifier(api, 2).Execute(context.Background(), Request{
		Ref: 3, Mode: ModeSetStatus, StatusText: "On", Verify: true,
	})
	if !apperrors.IsCode(err, apperrors.CodeHS4) {
		t.Fatalf("expected HS4_ERROR, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	api := &fakeDevices{reads: []normalize.Device{{Status: "Off"}}}
	_, err := newVerifier(api, 3).Execute(ctx, Request{
		Ref: 3, Mode: ModeSetStatus, Value: ptr(5), Verify: true,
	})
	if err == nil || apperrors.IsCode(err, apperrors.CodeHS4) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if errors.Is(err, errNotConverged) {
		t.Fatal("sentinel must not leak")
	}
}

func TestFailedReadClearsObserved(t *testing.T) {
	api := &fakeDevices{
		reads:    []normalize.Device{{Status: "Off", Value: 0}},
		readErrs: []error{nil, errors.New("connection reset")},
	}
	verification, last := newVerifier(api, 2).verify(context.Background(), 3, Expected{Value: ptr(1)})
	if verification.Matched || verification.Attempts != 2 {
		t.Fatalf("expected two unmatched attempts, got %#v", verification)
	}
	if verification.Observed != nil {
		t.Fatalf("observed must describe the final attempt, got %#v", verification.Observed)
	}
	if last == nil || last.Status != "Off" {
		t.Fatalf("expected last successful read to be kept, got %#v", last)
	}
}
