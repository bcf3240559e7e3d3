// Package errors provides the gateway's structured error taxonomy.
//
// Every failure that crosses a pipeline boundary is classified into one Code.
// Callers never sniff messages: they match on the code (errors.Is with a
// sentinel, or CodeOf) and render guidance that depends only on the code.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error that could not be classified.
	CodeUnknown Code = "UNKNOWN"

	// CodeAuth means the hub rejected the configured credentials.
	CodeAuth Code = "AUTH"
	// CodeNetwork means the hub could not be reached.
	CodeNetwork Code = "NETWORK"
	// CodeBadRequest means caller input is invalid.
	CodeBadRequest Code = "BAD_REQUEST"
	// CodeNotFound means a token or entity is absent or expired.
	CodeNotFound Code = "NOT_FOUND"
	// CodeHS4 means the hub reported a logical failure, including writes that
	// never converged.
	CodeHS4 Code = "HS4_ERROR"
	// CodePolicyDeny means the policy engine denied the mutation.
	CodePolicyDeny Code = "POLICY_DENY"
	// CodeTimeout means a hub call exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"
	// CodeUnsupportedOnTarget means the operation is not available on this hub
	// deployment. The admin router treats it as a routing signal.
	CodeUnsupportedOnTarget Code = "UNSUPPORTED_ON_TARGET"
	// CodeInternal means a gateway bug or invariant violation.
	CodeInternal Code = "INTERNAL"
)

// Codes lists every code in the taxonomy.
var Codes = []Code{
	CodeAuth,
	CodeNetwork,
	CodeBadRequest,
	CodeNotFound,
	CodeHS4,
	CodePolicyDeny,
	CodeTimeout,
	CodeUnsupportedOnTarget,
	CodeInternal,
	CodeUnknown,
}

// Guidance is the caller-facing remediation attached to an error code.
type Guidance struct {
	Retryable          bool
	FixHint            string
	SuggestedNextCalls []string
}

var guidance = map[Code]Guidance{
	CodeAuth: {
		FixHint:            "Check HS4GATE_HUB_USER and HS4GATE_HUB_PASSWORD; the hub rejected the credentials.",
		SuggestedNextCalls: []string{},
	},
	CodeNetwork: {
		Retryable:          true,
		FixHint:            "The hub is unreachable. Verify HS4GATE_HUB_URL and that the hub web server is running.",
		SuggestedNextCalls: []string{"hs4_audit_query"},
	},
	CodeBadRequest: {
		FixHint:            "Correct the arguments named in the message and call again.",
		SuggestedNextCalls: []string{"hs4_policy_evaluate"},
	},
	CodeNotFound: {
		FixHint:            "The token or entity does not exist or has expired. Prepare the change again or re-resolve the target.",
		SuggestedNextCalls: []string{"hs4_change_list", "hs4_change_prepare"},
	},
	CodeHS4: {
		Retryable:          true,
		FixHint:            "The hub reported a failure. Inspect details, confirm the device state, then retry if appropriate.",
		SuggestedNextCalls: []string{"hs4_audit_query"},
	},
	CodePolicyDeny: {
		FixHint:            "Resolve every listed policy reason (confirm, intent, reason, allowlists, admin gates) before retrying.",
		SuggestedNextCalls: []string{"hs4_policy_evaluate"},
	},
	CodeTimeout: {
		Retryable:          true,
		FixHint:            "The hub did not answer in time. Check the device state before retrying to avoid duplicate writes.",
		SuggestedNextCalls: []string{"hs4_audit_query"},
	},
	CodeUnsupportedOnTarget: {
		FixHint:            "This hub deployment does not support the operation directly. Enable adapter fallback or use the adapter route.",
		SuggestedNextCalls: []string{"hs4_policy_evaluate"},
	},
	CodeInternal: {
		FixHint:            "The gateway hit an internal error. Check the gateway logs.",
		SuggestedNextCalls: []string{},
	},
	CodeUnknown: {
		FixHint:            "An unclassified error occurred. Check the gateway logs.",
		SuggestedNextCalls: []string{},
	},
}

// GuidanceFor returns the static guidance for a code. Unknown codes receive the
// UNKNOWN guidance.
func GuidanceFor(code Code) Guidance {
	g, ok := guidance[code]
	if !ok {
		g = guidance[CodeUnknown]
	}
	next := make([]string, len(g.SuggestedNextCalls))
	copy(next, g.SuggestedNextCalls)
	g.SuggestedNextCalls = next
	return g
}
