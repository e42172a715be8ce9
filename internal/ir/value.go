package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Value is a sealed interface over the setting value variants.
// Only String, Number, Bool and WeightMap implement it.
type Value interface {
	Kind() ValueKind
	value() // sealed
}

// ValueKind names the variant held by a Value.
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindWeightMap
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindWeightMap:
		return "weightMap"
	default:
		return "invalid"
	}
}

// String is a string setting value.
type String string

func (String) Kind() ValueKind { return KindString }
func (String) value()          {}

// Number is a numeric setting value.
type Number float64

func (Number) Kind() ValueKind { return KindNumber }
func (Number) value()          {}

// Bool is a boolean setting value.
type Bool bool

func (Bool) Kind() ValueKind { return KindBool }
func (Bool) value()          {}

// WeightMap maps sibling noise-module ids to weights.
// Use SortedKeys for deterministic iteration.
type WeightMap map[NodeID]float64

func (WeightMap) Kind() ValueKind { return KindWeightMap }
func (WeightMap) value()          {}

// SortedKeys returns the map's node ids in ascending order.
func (w WeightMap) SortedKeys() []NodeID {
	keys := make([]NodeID, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns an independent copy of w.
func (w WeightMap) Clone() WeightMap {
	out := make(WeightMap, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// KindOf returns v's kind, or KindInvalid for nil.
func KindOf(v Value) ValueKind {
	if v == nil {
		return KindInvalid
	}
	return v.Kind()
}

// ValuesEqual reports whether two values hold the same variant and content.
func ValuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case WeightMap:
		bv, ok := b.(WeightMap)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, w := range av {
			if ow, ok := bv[k]; !ok || ow != w {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// FormatValue renders v the way the backend reads setting values: plain
// strings, shortest-form numbers, true/false, and a JSON object for maps.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Number:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case WeightMap:
		data, err := json.Marshal(map[NodeID]float64(val))
		if err != nil {
			return "{}"
		}
		return string(data)
	default:
		return ""
	}
}

// MarshalValue encodes v as JSON.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return json.Marshal(string(val))
	case Number:
		return json.Marshal(float64(val))
	case Bool:
		return json.Marshal(bool(val))
	case WeightMap:
		return json.Marshal(map[NodeID]float64(val))
	case nil:
		return nil, fmt.Errorf("nil setting value")
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes a JSON value into the matching Value variant.
// Arrays and null are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case '{':
		var m map[NodeID]float64
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("weight map: %w", err)
		}
		return WeightMap(m), nil

	case 'n':
		return nil, fmt.Errorf("null is not a valid setting value")

	case '[':
		return nil, fmt.Errorf("arrays are not valid setting values")

	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return Number(f), nil
	}
}

// ValueFromAny converts a decoded YAML/JSON scalar or map into a Value.
func ValueFromAny(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case float64:
		return Number(val), nil
	case map[string]any:
		out := make(WeightMap, len(val))
		for k, elem := range val {
			n, err := ValueFromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("weight %q: %w", k, err)
			}
			num, ok := n.(Number)
			if !ok {
				return nil, fmt.Errorf("weight %q: expected number, got %s", k, n.Kind())
			}
			out[NodeID(k)] = float64(num)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("null is not a valid setting value")
	default:
		return nil, fmt.Errorf("unsupported setting value type: %T", v)
	}
}
