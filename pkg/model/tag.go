package model

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// TagKind identifies which variant a TagValue holds
type TagKind int

const (
	TagKindNone TagKind = iota
	TagKindString
	TagKindNumber
	TagKindBool
)

// TagValue is a span tag or metadata value: a string, a number or a bool.
// The zero value holds nothing and reports false from Truthy.
type TagValue struct {
	kind TagKind
	str  string
	num  float64
	b    bool
}

// StringTag wraps a string value
func StringTag(s string) TagValue { return TagValue{kind: TagKindString, str: s} }

// NumberTag wraps a numeric value
func NumberTag(n float64) TagValue { return TagValue{kind: TagKindNumber, num: n} }

// BoolTag wraps a boolean value
func BoolTag(b bool) TagValue { return TagValue{kind: TagKindBool, b: b} }

// Kind returns the held variant
func (v TagValue) Kind() TagKind { return v.kind }

// Str returns the string variant and whether v holds one
func (v TagValue) Str() (string, bool) { return v.str, v.kind == TagKindString }

// Number returns the numeric variant and whether v holds one
func (v TagValue) Number() (float64, bool) { return v.num, v.kind == TagKindNumber }

// Bool returns the boolean variant and whether v holds one
func (v TagValue) Bool() (bool, bool) { return v.b, v.kind == TagKindBool }

// Truthy mirrors how instrumentation treats a tag as "present": non-empty
// strings, non-zero numbers and true.
func (v TagValue) Truthy() bool {
	switch v.kind {
	case TagKindString:
		return v.str != ""
	case TagKindNumber:
		return v.num != 0
	case TagKindBool:
		return v.b
	}
	return false
}

func (v TagValue) String() string {
	switch v.kind {
	case TagKindString:
		return v.str
	case TagKindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case TagKindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

func (v TagValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case TagKindString:
		return json.Marshal(v.str)
	case TagKindNumber:
		return json.Marshal(v.num)
	case TagKindBool:
		return json.Marshal(v.b)
	}
	return []byte("null"), nil
}

func (v *TagValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return v.fromAny(raw)
}

func (v TagValue) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case TagKindString:
		return v.str, nil
	case TagKindNumber:
		return v.num, nil
	case TagKindBool:
		return v.b, nil
	}
	return nil, nil
}

func (v *TagValue) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return v.fromAny(raw)
}

// fromAny converts a decoded scalar. Nested structures are kept as their
// textual form so that pass-through metadata is never dropped.
func (v *TagValue) fromAny(raw interface{}) error {
	switch x := raw.(type) {
	case nil:
		*v = TagValue{}
	case string:
		*v = StringTag(x)
	case bool:
		*v = BoolTag(x)
	case float64:
		*v = NumberTag(x)
	case int:
		*v = NumberTag(float64(x))
	case int64:
		*v = NumberTag(float64(x))
	case uint64:
		*v = NumberTag(float64(x))
	default:
		encoded, err := json.Marshal(x)
		if err != nil {
			return fmt.Errorf("unsupported tag value %T: %w", raw, err)
		}
		*v = StringTag(string(encoded))
	}
	return nil
}
