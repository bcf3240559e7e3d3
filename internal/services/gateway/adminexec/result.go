package adminexec

// Outcome tags the overall admin execution.
type Outcome string

const (
	OutcomePlanned    Outcome = "planned"
	OutcomeApplied    Outcome = "applied"
	OutcomePartial    Outcome = "partial"
	OutcomeFailed     Outcome = "failed"
	OutcomeRolledBack Outcome = "rolled_back"
)

func parseOutcome(raw string) (Outcome, bool) {
	switch o := Outcome(raw); o {
	case OutcomePlanned, OutcomeApplied, OutcomePartial, OutcomeFailed, OutcomeRolledBack:
		return o, true
	}
	return "", false
}

// Rollback tags rollback availability.
type Rollback string

const (
	RollbackNotNeeded Rollback = "not_needed"
	RollbackAvailable Rollback = "available"
	RollbackApplied   Rollback = "applied"
	RollbackFailed    Rollback = "failed"
)

// ParseRollback validates a rollback tag.
func ParseRollback(raw string) (Rollback, bool) {
	switch r := Rollback(raw); r {
	case RollbackNotNeeded, RollbackAvailable, RollbackApplied, RollbackFailed:
		return r, true
	}
	return "", false
}

// Route names a transport strategy.
type Route string

const (
	RouteAdapter Route = "adapter"
	RouteDirect  Route = "direct"
)

const (
	transportScriptCommand = "script_command"
	transportJSONAPI       = "json_api"

	fallbackReasonUnsupported = "unsupported_on_target"
)

// Check is one precheck outcome.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Step is one executed step.
type Step struct {
	Name         string `json:"name"`
	Route        Route  `json:"route"`
	Transport    string `json:"transport"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	FallbackFrom Route  `json:"fallbackFrom,omitempty"`
}

// Result describes one admin execution.
type Result struct {
	Result       Outcome        `json:"result"`
	Route        Route          `json:"route"`
	FallbackFrom Route          `json:"fallbackFrom,omitempty"`
	Precheck     []Check        `json:"precheck"`
	Steps        []Step         `json:"steps"`
	Rollback     Rollback       `json:"rollback"`
	Before       map[string]any `json:"before,omitempty"`
	After        map[string]any `json:"after,omitempty"`
	Diff         []string       `json:"diff,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

func syntheticStep(domain, action string, route Route, transport string) Step {
	return Step{
		Name:      domain + "." + action,
		Route:     route,
		Transport: transport,
		Status:    string(OutcomeApplied),
	}
}

func rollbackOrDefault(hint Rollback) Rollback {
	if hint == "" {
		return RollbackAvailable
	}
	return hint
}
