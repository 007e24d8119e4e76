package parsing

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Tagged is a payload field that arrives either as a bare scalar or wrapped
// as {"#Value": scalar}. Both forms normalize through Text.
type Tagged struct {
	raw json.RawMessage
}

// UnmarshalJSON never fails: shapes other than a scalar or a wrapper leave
// the value absent.
func (t *Tagged) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var w struct {
			Value json.RawMessage `json:"#Value"`
		}
		if err := json.Unmarshal(b, &w); err == nil {
			t.raw = w.Value
		}
		return nil
	}
	t.raw = append(json.RawMessage(nil), b...)
	return nil
}

// StringValue is Text restricted to JSON strings; numbers and bools are
// reported as absent.
func (t *Tagged) StringValue() (string, bool) {
	if t == nil {
		return "", false
	}
	raw := bytes.TrimSpace(t.raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	return t.Text()
}

// Text returns the scalar as a string. ok is false when the field is absent,
// null, or not a string/number/bool.
func (t *Tagged) Text() (string, bool) {
	if t == nil {
		return "", false
	}
	raw := bytes.TrimSpace(t.raw)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[', 'n':
		return "", false
	default:
		return strings.TrimSpace(string(raw)), true
	}
}
