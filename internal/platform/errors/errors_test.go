package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("route: %w", New(CodeUnsupportedOnTarget, "unknown request"))
	if !stderrors.Is(err, Sentinel(CodeUnsupportedOnTarget)) {
		t.Fatal("expected wrapped error to match unsupported sentinel")
	}
	if stderrors.Is(err, Sentinel(CodeHS4)) {
		t.Fatal("did not expect match for a different code")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "nil", err: nil, want: ""},
		{name: "gateway error", err: New(CodeAuth, "denied"), want: CodeAuth},
		{name: "wrapped gateway error", err: fmt.Errorf("call: %w", New(CodeNotFound, "x")), want: CodeNotFound},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: CodeTimeout},
		{name: "foreign", err: stderrors.New("boom"), want: CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Fatalf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeKeepsGatewayErrors(t *testing.T) {
	original := WithDetails(CodeHS4, "did not converge", map[string]any{"attempts": 3})
	got := Normalize(fmt.Errorf("wrap: %w", original))
	if got != original {
		t.Fatalf("expected original error, got %#v", got)
	}

	foreign := Normalize(stderrors.New("boom"))
	if foreign.Code != CodeUnknown || foreign.Message != "boom" {
		t.Fatalf("unexpected normalized foreign error: %#v", foreign)
	}
}

func TestGuidanceCoversEveryCode(t *testing.T) {
	for _, code := range Codes {
		g := GuidanceFor(code)
		if g.FixHint == "" {
			t.Errorf("missing fix hint for %s", code)
		}
		if g.SuggestedNextCalls == nil {
			t.Errorf("nil next calls for %s", code)
		}
	}
	if !GuidanceFor(CodeNetwork).Retryable {
		t.Fatal("expected NETWORK to be retryable")
	}
	if GuidanceFor(CodePolicyDeny).Retryable {
		t.Fatal("expected POLICY_DENY to be non-retryable")
	}
}

func TestGuidanceForReturnsCopy(t *testing.T) {
	g := GuidanceFor(CodeNotFound)
	g.SuggestedNextCalls[0] = "mutated"
	if GuidanceFor(CodeNotFound).SuggestedNextCalls[0] == "mutated" {
		t.Fatal("guidance table leaked through returned slice")
	}
}
