package adminexec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	apperrors "github.com/louisbranch/hs4gate/internal/platform/errors"
)

// Payload is an ordered key-value object passed to an admin operation.
type Payload struct {
	keys   []string
	values map[string]any
}

// ParsePayload decodes a JSON object, keeping key order. Empty input is an
// empty payload.
func ParsePayload(raw []byte) (Payload, error) {
	p := Payload{values: map[string]any{}}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return p, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return Payload{}, apperrors.New(apperrors.CodeBadRequest, "payload is not valid JSON")
	}
	root := gjson.ParseBytes(trimmed)
	if !root.IsObject() {
		return Payload{}, apperrors.New(apperrors.CodeBadRequest, "payload must be a JSON object")
	}
	root.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if _, dup := p.values[k]; !dup {
			p.keys = append(p.keys, k)
		}
		p.values[k] = value.Value()
		return true
	})
	return p, nil
}

// NewPayload builds a payload from a map with keys in sorted order.
func NewPayload(values map[string]any) Payload {
	p := Payload{values: make(map[string]any, len(values))}
	for k, v := range values {
		p.keys = append(p.keys, k)
		p.values[k] = v
	}
	slices.Sort(p.keys)
	return p
}

// Keys returns the keys in order.
func (p Payload) Keys() []string {
	return slices.Clone(p.keys)
}

// Len returns the number of keys.
func (p Payload) Len() int {
	return len(p.keys)
}

// Value returns the raw value of key.
func (p Payload) Value(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Map returns a shallow copy as a map.
func (p Payload) Map() map[string]any {
	out := make(map[string]any, len(p.keys))
	for _, k := range p.keys {
		out[k] = p.values[k]
	}
	return out
}

// MarshalJSON writes keys in payload order.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal payload field %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// fields pulls typed values out of a payload for one operation and rejects
// any key the operation cannot express.
type fields struct {
	op      string
	payload Payload
	used    map[string]struct{}
	err     error
}

func extract(op string, p Payload) *fields {
	return &fields{op: op, payload: p, used: map[string]struct{}{}}
}

func (f *fields) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *fields) lookup(key string, required bool) (any, bool) {
	f.used[key] = struct{}{}
	v, ok := f.payload.values[key]
	if !ok || v == nil {
		if required {
			f.fail(apperrors.WithDetails(apperrors.CodeBadRequest,
				fmt.Sprintf("%s requires payload field %q", f.op, key),
				map[string]any{"field": key}))
		}
		return nil, false
	}
	return v, true
}

func (f *fields) str(key string, required bool) string {
	v, ok := f.lookup(key, required)
	if !ok {
		return ""
	}
	switch typed := v.(type) {
	case string:
		s := strings.TrimSpace(typed)
		if s == "" && required {
			f.fail(apperrors.Newf(apperrors.CodeBadRequest, "%s requires non-empty payload field %q", f.op, key))
		}
		return s
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		f.fail(apperrors.Newf(apperrors.CodeBadRequest, "%s payload field %q must be a string", f.op, key))
		return ""
	}
}

func (f *fields) integer(key string) int {
	v, ok := f.lookup(key, true)
	if !ok {
		return 0
	}
	switch typed := v.(type) {
	case float64:
		if typed == math.Trunc(typed) {
			return int(typed)
		}
	case int:
		return typed
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil {
			return n
		}
	}
	f.fail(apperrors.Newf(apperrors.CodeBadRequest, "%s payload field %q must be an integer", f.op, key))
	return 0
}

// done reports the first extraction error, or UNSUPPORTED_ON_TARGET when the
// payload carries fields the direct call would drop.
func (f *fields) done() error {
	if f.err != nil {
		return f.err
	}
	var unknown []string
	for _, k := range f.payload.keys {
		if _, ok := f.used[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return apperrors.WithDetails(apperrors.CodeUnsupportedOnTarget,
			fmt.Sprintf("direct %s cannot express payload fields: %s", f.op, strings.Join(unknown, ", ")),
			map[string]any{"fields": unknown})
	}
	return nil
}
