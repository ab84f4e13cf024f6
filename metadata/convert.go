package metadata

import (
	"encoding/json"
	"fmt"
	"math"
)

// FromAny converts decoded transport input into a Value. Accepted inputs
// are nil, bool, string, the Go integer and float types, json.Number,
// Value and slices of those. Maps are rejected; documents are flat.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		return fromNumber(x)
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return fromUint(x)
	case []Value:
		return Array(x), nil
	case []string:
		return Strings(x...), nil
	case []any:
		return arrayOf(x, FromAny)
	case []int:
		return arrayOf(x, func(i int) (Value, error) { return Int(int64(i)), nil })
	case []int64:
		return arrayOf(x, func(i int64) (Value, error) { return Int(i), nil })
	case []float64:
		return arrayOf(x, func(f float64) (Value, error) { return Float(f), nil })
	default:
		return Value{}, fmt.Errorf("metadata: unsupported value type %T", v)
	}
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("metadata: integer %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

func arrayOf[T any](in []T, conv func(T) (Value, error)) (Value, error) {
	out := make([]Value, len(in))
	for i, e := range in {
		v, err := conv(e)
		if err != nil {
			return Value{}, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return Array(out), nil
}

// DocumentFromAny converts a decoded JSON object. A nil map yields a nil
// document.
func DocumentFromAny(m map[string]any) (Document, error) {
	if m == nil {
		return nil, nil
	}
	doc := make(Document, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("metadata key %q: %w", k, err)
		}
		doc[k] = v
	}
	return doc, nil
}

// ToAny is the inverse of FromAny: int64, float64, string, bool, nil or
// []any.
func (v Value) ToAny() any {
	switch v.Kind {
	case KindInt:
		return v.I64
	case KindFloat:
		return v.F64
	case KindString:
		return v.s.Value()
	case KindBool:
		return v.B
	case KindArray:
		out := make([]any, len(v.A))
		for i, e := range v.A {
			out[i] = e.ToAny()
		}
		return out
	}
	return nil
}

// ToMap converts d to plain Go values.
func (d Document) ToMap() map[string]any {
	if d == nil {
		return nil
	}
	m := make(map[string]any, len(d))
	for k, v := range d {
		m[k] = v.ToAny()
	}
	return m
}
