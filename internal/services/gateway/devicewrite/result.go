package devicewrite

import "github.com/louisbranch/hs4gate/internal/services/gateway/normalize"

// Expected is the state a write should converge to.
type Expected struct {
	Value      *float64 `json:"value,omitempty"`
	StatusText string   `json:"statusText,omitempty"`
}

// Checks records which criteria a read satisfied.
type Checks struct {
	DeviceFound             bool   `json:"deviceFound"`
	ValueMatch              bool   `json:"valueMatch"`
	StatusMatch             bool   `json:"statusMatch"`
	MatchedControlPairLabel string `json:"matchedControlPairLabel,omitempty"`
}

// Observed summarizes the last device read.
type Observed struct {
	Ref                   int                     `json:"ref"`
	Name                  string                  `json:"name"`
	Status                string                  `json:"status"`
	Value                 float64                 `json:"value"`
	ControlPairs          []normalize.ControlPair `json:"controlPairs,omitempty"`
	ControlPairsTruncated bool                    `json:"controlPairsTruncated,omitempty"`
}

// Verification is the outcome of polling after a write.
type Verification struct {
	Performed bool      `json:"performed"`
	Matched   bool      `json:"matched"`
	Attempts  int       `json:"attempts,omitempty"`
	Expected  *Expected `json:"expected,omitempty"`
	Observed  *Observed `json:"observed,omitempty"`
	Checks    *Checks   `json:"checks,omitempty"`
}

// ModeSwitch explains why the executed mode differs from the requested one.
type ModeSwitch struct {
	From   Mode   `json:"from"`
	To     Mode   `json:"to"`
	Reason string `json:"reason"`
	Label  string `json:"label,omitempty"`
}

// Fallback records the control_value retry after a failed set_status write.
type Fallback struct {
	Attempted    bool          `json:"attempted"`
	Reason       string        `json:"reason"`
	Mode         Mode          `json:"mode,omitempty"`
	Label        string        `json:"label,omitempty"`
	Matched      bool          `json:"matched"`
	Verification *Verification `json:"verification,omitempty"`
}

// Summary describes one device write.
type Summary struct {
	Ref           int          `json:"ref"`
	RequestedMode Mode         `json:"requestedMode"`
	ExecutedMode  Mode         `json:"executedMode"`
	ModeSwitch    *ModeSwitch  `json:"modeSwitch,omitempty"`
	Verification  Verification `json:"verification"`
	Fallback      *Fallback    `json:"fallback,omitempty"`
}
