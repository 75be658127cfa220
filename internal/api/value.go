package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Value is an undecoded JSON value from a response. Callers decode it into
// typed structs with Decode or walk objects with Field.
type Value struct {
	raw json.RawMessage
}

// NewValue marshals v into a Value.
func NewValue(v any) (Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Value{}, fmt.Errorf("encode value: %w", err)
	}
	return Value{raw: b}, nil
}

// RawValue wraps already-encoded JSON.
func RawValue(b []byte) Value {
	return Value{raw: append(json.RawMessage(nil), b...)}
}

// IsNull reports whether the value is absent or JSON null.
func (v Value) IsNull() bool {
	trimmed := bytes.TrimSpace(v.raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Decode unmarshals the value into out.
func (v Value) Decode(out any) error {
	if v.IsNull() {
		return fmt.Errorf("decode value: %w", ErrNullValue)
	}
	if err := json.Unmarshal(v.raw, out); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

// Field returns the named member of an object. A missing member, or a value
// that is not an object, yields a null Value.
func (v Value) Field(name string) Value {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(v.raw, &obj); err != nil {
		return Value{}
	}
	return Value{raw: obj[name]}
}

// String returns the value as a string if it is a JSON string.
func (v Value) String() (string, bool) {
	var s string
	if err := json.Unmarshal(v.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Raw returns the encoded JSON.
func (v Value) Raw() json.RawMessage {
	return v.raw
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	v.raw = append(v.raw[:0], b...)
	return nil
}
