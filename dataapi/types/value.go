package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies which variant of a Value is populated.
type Kind int

const (
	KindBlob Kind = iota
	KindBoolean
	KindDouble
	KindIsNull
	KindLong
	KindString
)

var kindKeys = map[Kind]string{
	KindBlob:    "blobValue",
	KindBoolean: "booleanValue",
	KindDouble:  "doubleValue",
	KindIsNull:  "isNull",
	KindLong:    "longValue",
	KindString:  "stringValue",
}

// String returns the JSON key used for the kind.
func (k Kind) String() string {
	if key, ok := kindKeys[k]; ok {
		return key
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a single typed field as it appears on the wire. Exactly one
// variant is populated; use the constructors to build one.
type Value struct {
	kind Kind
	blob []byte
	b    bool
	d    float64
	l    int64
	s    string
}

func BlobValue(b []byte) Value    { return Value{kind: KindBlob, blob: b} }
func BooleanValue(b bool) Value   { return Value{kind: KindBoolean, b: b} }
func DoubleValue(d float64) Value { return Value{kind: KindDouble, d: d} }
func NullValue() Value            { return Value{kind: KindIsNull} }
func LongValue(l int64) Value     { return Value{kind: KindLong, l: l} }
func StringValue(s string) Value  { return Value{kind: KindString, s: s} }
func (v Value) Kind() Kind        { return v.kind }
func (v Value) Blob() []byte      { return v.blob }
func (v Value) Bool() bool        { return v.b }
func (v Value) Double() float64   { return v.d }
func (v Value) Long() int64       { return v.l }
func (v Value) Str() string       { return v.s }
func (v Value) IsNull() bool      { return v.kind == KindIsNull }

// MarshalJSON encodes the value as a single-key object, e.g. {"longValue":1}.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindBlob:
		payload = v.blob
		if v.blob == nil {
			payload = []byte{}
		}
	case KindBoolean:
		payload = v.b
	case KindDouble:
		payload = v.d
	case KindIsNull:
		payload = true
	case KindLong:
		payload = v.l
	case KindString:
		payload = v.s
	default:
		return nil, fmt.Errorf("invalid value kind %d", int(v.kind))
	}
	return json.Marshal(map[string]any{v.kind.String(): payload})
}

// UnmarshalJSON accepts exactly one of the known variant keys.
func (v *Value) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("value must be an object, got %s", bytes.TrimSpace(data))
	}
	if len(fields) != 1 {
		return fmt.Errorf("value must have exactly one field, got %d", len(fields))
	}
	for key, raw := range fields {
		var err error
		switch key {
		case "blobValue":
			var b []byte
			err = json.Unmarshal(raw, &b)
			*v = BlobValue(b)
		case "booleanValue":
			var b bool
			err = json.Unmarshal(raw, &b)
			*v = BooleanValue(b)
		case "doubleValue":
			var d float64
			err = json.Unmarshal(raw, &d)
			*v = DoubleValue(d)
		case "isNull":
			var b bool
			err = json.Unmarshal(raw, &b)
			*v = NullValue()
		case "longValue":
			var l int64
			err = json.Unmarshal(raw, &l)
			*v = LongValue(l)
		case "stringValue":
			var s string
			err = json.Unmarshal(raw, &s)
			*v = StringValue(s)
		default:
			return fmt.Errorf("unknown value field %q", key)
		}
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}
