package devicewrite

import (
	"math"
	"strings"

	"golang.org/x/text/cases"

	"github.com/louisbranch/hs4gate/internal/services/gateway/normalize"
)

// valueTolerance absorbs float noise in hub-reported values.
const valueTolerance = 1e-6

// maxObservedPairs bounds the control pairs echoed back in a result.
const maxObservedPairs = 20

func equalValue(a, b float64) bool {
	return math.Abs(a-b) <= valueTolerance
}

// textMatches reports a case-insensitive substring match in either direction.
// Empty strings never match.
func textMatches(observed, expected string) bool {
	fold := cases.Fold()
	o := strings.TrimSpace(fold.String(observed))
	e := strings.TrimSpace(fold.String(expected))
	if o == "" || e == "" {
		return false
	}
	return strings.Contains(o, e) || strings.Contains(e, o)
}

// findPair returns the first control pair whose value equals value.
func findPair(pairs []normalize.ControlPair, value float64) (normalize.ControlPair, bool) {
	for _, pair := range pairs {
		if equalValue(pair.Value, value) {
			return pair, true
		}
	}
	return normalize.ControlPair{}, false
}

// evaluate checks one device read against the expected target. Value and
// status criteria are ORed when both are present.
func evaluate(device normalize.Device, found bool, expected Expected) (Checks, bool) {
	checks := Checks{DeviceFound: found}
	if !found {
		return checks, false
	}

	hasValue := expected.Value != nil
	hasStatus := strings.TrimSpace(expected.StatusText) != ""

	if hasValue {
		target := *expected.Value
		if equalValue(device.Value, target) {
			checks.ValueMatch = true
		} else {
			for _, pair := range device.ControlPairs {
				if equalValue(pair.Value, target) && textMatches(device.Status, pair.Label) {
					checks.ValueMatch = true
					checks.MatchedControlPairLabel = pair.Label
					break
				}
			}
		}
	}
	if hasStatus {
		checks.StatusMatch = textMatches(device.Status, expected.StatusText)
	}

	switch {
	case hasValue && hasStatus:
		return checks, checks.ValueMatch || checks.StatusMatch
	case hasValue:
		return checks, checks.ValueMatch
	case hasStatus:
		return checks, checks.StatusMatch
	default:
		return checks, true
	}
}

func observe(device normalize.Device) *Observed {
	pairs := device.ControlPairs
	truncated := len(pairs) > maxObservedPairs
	if truncated {
		pairs = pairs[:maxObservedPairs]
	}
	return &Observed{
		Ref:                   device.Ref,
		Name:                  device.Name,
		Status:                device.Status,
		Value:                 device.Value,
		ControlPairs:          append([]normalize.ControlPair(nil), pairs...),
		ControlPairsTruncated: truncated,
	}
}
