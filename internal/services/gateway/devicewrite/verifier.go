// Package devicewrite executes device state changes and polls the hub until
// the observed state converges on the requested one.
package devicewrite

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
	"github.com/louisbranch/hs4gate/internal/platform/timeouts"
	"github.com/louisbranch/hs4gate/internal/services/gateway/normalize"
)

// DefaultAttempts bounds verification reads per write.
const DefaultAttempts = 6

// Mode selects how a device is written.
type Mode string

const (
	ModeControlValue Mode = "control_value"
	ModeSetStatus    Mode = "set_status"
)

// ParseMode validates a write mode. Empty means control_value.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeControlValue, ModeSetStatus:
		return m, nil
	case "":
		return ModeControlValue, nil
	default:
		return "", apperrors.WithDetails(apperrors.CodeBadRequest,
			fmt.Sprintf("unknown device write mode %q", raw),
			map[string]any{"allowed": []string{string(ModeControlValue), string(ModeSetStatus)}})
	}
}

// DeviceAPI is the subset of the hub client the verifier drives.
type DeviceAPI interface {
	ReadDevice(ctx context.Context, ref int) (normalize.Device, error)
	ControlDeviceByValue(ctx context.Context, ref int, value float64) ([]byte, error)
	SetDeviceStatus(ctx context.Context, ref int, value *float64, statusText, source string) ([]byte, error)
}

// Request is one device write.
type Request struct {
	Ref        int
	Mode       Mode
	Value      *float64
	StatusText string
	Source     string
	Verify     bool
}

// Validate checks the mode-specific required fields.
func (r Request) Validate() error {
	if r.Ref <= 0 {
		return apperrors.New(apperrors.CodeBadRequest, "ref must be a positive device reference")
	}
	switch r.Mode {
	case ModeControlValue:
		if r.Value == nil {
			return apperrors.New(apperrors.CodeBadRequest, "control_value mode requires value")
		}
	case ModeSetStatus:
		if r.Value == nil && strings.TrimSpace(r.StatusText) == "" {
			return apperrors.New(apperrors.CodeBadRequest, "set_status mode requires value or statusText")
		}
	default:
		return apperrors.Newf(apperrors.CodeBadRequest, "unknown device write mode %q", r.Mode)
	}
	return nil
}

// Options configures a Verifier.
type Options struct {
	Attempts int
	Delay    time.Duration
	Logger   zerolog.Logger
}

// Verifier writes devices and confirms convergence.
type Verifier struct {
	api      DeviceAPI
	attempts int
	delay    time.Duration
	logger   zerolog.Logger
}

// NewVerifier builds a verifier over api. A negative delay means the default;
// zero polls without waiting.
func NewVerifier(api DeviceAPI, opts Options) *Verifier {
	v := &Verifier{
		api:      api,
		attempts: opts.Attempts,
		delay:    opts.Delay,
		logger:   opts.Logger.With().Str("component", "devicewrite").Logger(),
	}
	if v.attempts <= 0 {
		v.attempts = DefaultAttempts
	}
	if v.delay < 0 {
		v.delay = timeouts.VerifyPoll
	}
	return v
}

var errNotConverged = errors.New("device state has not converged")

// Execute writes the device and, when requested, verifies the result.
func (v *Verifier) Execute(ctx context.Context, req Request) (Summary, error) {
	if req.Mode == "" {
		req.Mode = ModeControlValue
	}
	if err := req.Validate(); err != nil {
		return Summary{}, err
	}
	summary := Summary{Ref: req.Ref, RequestedMode: req.Mode, ExecutedMode: req.Mode}

	var preflight *normalize.Device
	if req.Mode == ModeSetStatus && req.Value != nil {
		preflight = v.inspect(ctx, req.Ref)
		if preflight != nil {
			if pair, ok := findPair(preflight.ControlPairs, *req.Value); ok {
				summary.ExecutedMode = ModeControlValue
				summary.ModeSwitch = &ModeSwitch{
					From:   ModeSetStatus,
					To:     ModeControlValue,
					Reason: fmt.Sprintf("value %s matches control pair %q", formatValue(*req.Value), pair.Label),
					Label:  pair.Label,
				}
			}
		}
	}

	if err := v.write(ctx, req, summary.ExecutedMode); err != nil {
		return Summary{}, err
	}
	if !req.Verify {
		summary.Verification = Verification{Performed: false}
		return summary, nil
	}

	expected := Expected{Value: req.Value, StatusText: strings.TrimSpace(req.StatusText)}
	verification, last := v.verify(ctx, req.Ref, expected)
	summary.Verification = verification
	if verification.Matched {
		return summary, nil
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, apperrors.Normalize(err)
	}

	if req.Mode == ModeSetStatus && req.Value != nil && summary.ExecutedMode == ModeSetStatus {
		fallback := v.fallback(ctx, req, expected, preflight, last)
		summary.Fallback = &fallback
		if fallback.Matched {
			return summary, nil
		}
	}

	details := map[string]any{
		"ref":           req.Ref,
		"requestedMode": string(summary.RequestedMode),
		"executedMode":  string(summary.ExecutedMode),
		"verification":  summary.Verification,
	}
	if summary.ModeSwitch != nil {
		details["modeSwitch"] = summary.ModeSwitch
	}
	if summary.Fallback != nil {
		details["fallback"] = summary.Fallback
	}
	return Summary{}, apperrors.WithDetails(apperrors.CodeHS4,
		fmt.Sprintf("device %d did not reach the requested state after %d attempts", req.Ref, verification.Attempts),
		details)
}

// inspect reads the device before a write. Failures are logged and ignored.
func (v *Verifier) inspect(ctx context.Context, ref int) *normalize.Device {
	device, err := v.api.ReadDevice(ctx, ref)
	if err != nil {
		v.logger.Warn().Err(err).Int("ref", ref).Msg("device preflight read failed")
		return nil
	}
	return &device
}

func (v *Verifier) write(ctx context.Context, req Request, mode Mode) error {
	var err error
	switch mode {
	case ModeControlValue:
		_, err = v.api.ControlDeviceByValue(ctx, req.Ref, *req.Value)
	case ModeSetStatus:
		_, err = v.api.SetDeviceStatus(ctx, req.Ref, req.Value, req.StatusText, req.Source)
	}
	return err
}

// verify polls the device until it matches expected or attempts run out. It
// returns the last successful read, if any.
func (v *Verifier) verify(ctx context.Context, ref int, expected Expected) (Verification, *normalize.Device) {
	result := Verification{Performed: true, Expected: &expected, Checks: &Checks{}}
	var last *normalize.Device

	poll := func() (struct{}, error) {
		result.Attempts++
		device, err := v.api.ReadDevice(ctx, ref)
		if err != nil {
			if !apperrors.IsCode(err, apperrors.CodeNotFound) {
				v.logger.Debug().Err(err).Int("ref", ref).Int("attempt", result.Attempts).Msg("verification read failed")
			}
			*result.Checks = Checks{}
			result.Observed = nil
			return struct{}{}, errNotConverged
		}
		last = &device
		checks, matched := evaluate(device, true, expected)
		*result.Checks = checks
		result.Observed = observe(device)
		if !matched {
			return struct{}{}, errNotConverged
		}
		result.Matched = true
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, poll,
		backoff.WithBackOff(backoff.NewConstantBackOff(v.delay)),
		backoff.WithMaxTries(uint(v.attempts)),
	)
	if err != nil && !errors.Is(err, errNotConverged) {
		v.logger.Debug().Err(err).Int("ref", ref).Msg("verification stopped")
	}
	return result, last
}

func (v *Verifier) fallback(ctx context.Context, req Request, expected Expected, preflight, last *normalize.Device) Fallback {
	value := *req.Value
	var (
		pair  normalize.ControlPair
		found bool
	)
	for _, device := range []*normalize.Device{preflight, last} {
		if device == nil {
			continue
		}
		if pair, found = findPair(device.ControlPairs, value); found {
			break
		}
	}
	if !found {
		return Fallback{
			Attempted: false,
			Reason:    fmt.Sprintf("no control pair matches value %s", formatValue(value)),
		}
	}

	fb := Fallback{
		Attempted: true,
		Reason:    "set_status did not converge",
		Mode:      ModeControlValue,
		Label:     pair.Label,
	}
	v.logger.Info().Int("ref", req.Ref).Str("label", pair.Label).Msg("retrying device write via control_value")
	if _, err := v.api.ControlDeviceByValue(ctx, req.Ref, value); err != nil {
		fb.Reason = "control_value write failed: " + err.Error()
		return fb
	}
	verification, _ := v.verify(ctx, req.Ref, expected)
	fb.Verification = &verification
	fb.Matched = verification.Matched
	return fb
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
