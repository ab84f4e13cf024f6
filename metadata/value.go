package metadata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unique"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNull
	KindInt
	KindFloat
	KindString
	KindBool
	KindArray
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindNull:    "null",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindBool:    "bool",
	KindArray:   "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindInvalid]
}

// Value is one metadata value. Only the field matching Kind is meaningful.
// String contents are interned; payloads repeat a small vocabulary of
// labels across many records.
type Value struct {
	Kind Kind
	I64  int64
	F64  float64
	B    bool
	A    []Value
	s    unique.Handle[string]
}

func Null() Value            { return Value{Kind: KindNull} }
func Int(v int64) Value      { return Value{Kind: KindInt, I64: v} }
func Float(v float64) Value  { return Value{Kind: KindFloat, F64: v} }
func String(v string) Value  { return Value{Kind: KindString, s: unique.Make(v)} }
func Bool(v bool) Value      { return Value{Kind: KindBool, B: v} }
func Array(vs []Value) Value { return Value{Kind: KindArray, A: vs} }

// Strings builds an array of string values.
func Strings(vs ...string) Value {
	arr := make([]Value, len(vs))
	for i, s := range vs {
		arr[i] = String(s)
	}
	return Array(arr)
}

// StringValue returns the string for KindString and "" otherwise.
func (v Value) StringValue() string {
	s, _ := v.AsString()
	return s
}

func (v Value) AsInt64() (int64, bool)     { return v.I64, v.Kind == KindInt }
func (v Value) AsFloat64() (float64, bool) { return v.F64, v.Kind == KindFloat }
func (v Value) AsBool() (bool, bool)       { return v.B, v.Kind == KindBool }

func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.s.Value(), true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.Kind != KindArray {
		return nil, false
	}
	return v.A, true
}

// Validate rejects values that cannot be stored: unknown kinds and
// non-finite floats, at any nesting depth.
func (v Value) Validate() error {
	switch v.Kind {
	case KindNull, KindInt, KindString, KindBool:
		return nil
	case KindFloat:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return fmt.Errorf("metadata: non-finite float %v", v.F64)
		}
		return nil
	case KindArray:
		for i, e := range v.A {
			if err := e.Validate(); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("metadata: invalid value kind %d", v.Kind)
	}
}

// Key renders v as a map key that differs between kinds, so Int(1) and
// Float(1) never collide.
func (v Value) Key() string {
	var sb strings.Builder
	v.appendKey(&sb)
	return sb.String()
}

func (v Value) appendKey(sb *strings.Builder) {
	switch v.Kind {
	case KindNull:
		sb.WriteString("null")
	case KindInt:
		sb.WriteString("i:")
		sb.WriteString(strconv.FormatInt(v.I64, 10))
	case KindFloat:
		sb.WriteString("f:")
		sb.WriteString(strconv.FormatUint(math.Float64bits(v.F64), 16))
	case KindString:
		sb.WriteString("s:")
		sb.WriteString(v.s.Value())
	case KindBool:
		if v.B {
			sb.WriteString("b:1")
		} else {
			sb.WriteString("b:0")
		}
	case KindArray:
		sb.WriteString("a:")
		for i, e := range v.A {
			if i > 0 {
				sb.WriteByte(0x1f)
			}
			e.appendKey(sb)
		}
	default:
		sb.WriteString("invalid")
	}
}

// Equal is strict: kinds must match, so Int(2) is not Equal to Float(2).
// Filters compare numbers across kinds instead.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt:
		return v.I64 == o.I64
	case KindFloat:
		return v.F64 == o.F64
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.B == o.B
	case KindArray:
		if len(v.A) != len(o.A) {
			return false
		}
		for i := range v.A {
			if !v.A[i].Equal(o.A[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) clone() Value {
	if v.Kind != KindArray || v.A == nil {
		return v
	}
	arr := make([]Value, len(v.A))
	for i := range v.A {
		arr[i] = v.A[i].clone()
	}
	return Array(arr)
}

// Document is the metadata attached to a record.
type Document map[string]Value

// Clone deep-copies d, including nested arrays.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v.clone()
	}
	return out
}

// CloneIfNeeded is Clone that collapses empty documents to nil.
func CloneIfNeeded(d Document) Document {
	if len(d) == 0 {
		return nil
	}
	return d.Clone()
}

// Equal compares key sets and values with Value.Equal. Nil and empty
// documents are equal.
func (d Document) Equal(o Document) bool {
	if len(d) != len(o) {
		return false
	}
	for k, v := range d {
		if ov, ok := o[k]; !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Validate checks every value in d.
func (d Document) Validate() error {
	for k, v := range d {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("metadata key %q: %w", k, err)
		}
	}
	return nil
}
