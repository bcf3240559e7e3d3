package adminexec

import (
	"reflect"
	"testing"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
)

func TestParsePayloadKeepsOrder(t *testing.T) {
	p, err := ParsePayload([]byte(`{"z": 1, "a": "x", "m": {"k": true}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := p.Keys(); !reflect.DeepEqual(got, []string{"z", "a", "m"}) {
		t.Fatalf("unexpected key order %v", got)
	}
	raw, err := p.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"z":1,"a":"x","m":{"k":true}}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
}

func TestParsePayloadRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`[1]`, `"x"`, `{bad`} {
		if _, err := ParsePayload([]byte(raw)); !apperrors.IsCode(err, apperrors.CodeBadRequest) {
			t.Fatalf("expected BAD_REQUEST for %s, got %v", raw, err)
		}
	}
	p, err := ParsePayload(nil)
	if err != nil || p.Len() != 0 {
		t.Fatalf("expected empty payload, got %v %v", p, err)
	}
}

func TestNewPayloadSortsKeys(t *testing.T) {
	p := NewPayload(map[string]any{"b": 1, "a": 2})
	if got := p.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected keys %v", got)
	}
	if v, ok := p.Value("a"); !ok || v != 2 {
		t.Fatalf("unexpected value %v", v)
	}
	if m := p.Map(); len(m) != 2 {
		t.Fatalf("unexpected map %v", m)
	}
}

func TestFieldExtraction(t *testing.T) {
	p := NewPayload(map[string]any{"id": "7", "count": 3.0, "flag": true})
	f := extract("op", p)
	if got := f.integer("id"); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := f.str("count", true); got != "3" {
		t.Fatalf("expected \"3\", got %q", got)
	}
	if err := f.done(); !apperrors.IsCode(err, apperrors.CodeUnsupportedOnTarget) {
		t.Fatalf("expected unused flag to be unsupported, got %v", err)
	}

	bad := extract("op", NewPayload(map[string]any{"id": 1.5}))
	bad.integer("id")
	if err := bad.done(); !apperrors.IsCode(err, apperrors.CodeBadRequest) {
		t.Fatalf("expected BAD_REQUEST for fractional id, got %v", err)
	}
}

func TestDiff(t *testing.T) {
	before := map[string]any{"a": 1, "b": map[string]any{"x": 1}, "gone": true}
	after := map[string]any{"a": 1.0, "b": map[string]any{"x": 2}, "new": "v"}
	if got := Diff(before, after); !reflect.DeepEqual(got, []string{"b", "gone", "new"}) {
		t.Fatalf("unexpected diff %v", got)
	}
	if got := Diff(nil, nil); got != nil {
		t.Fatalf("expected nil diff, got %v", got)
	}
}
