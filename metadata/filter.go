package metadata

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFilter is returned for malformed filters.
var ErrInvalidFilter = errors.New("metadata: invalid filter")

// Operator names a comparison.
type Operator string

const (
	OpEqual        Operator = "eq"
	OpNotEqual     Operator = "ne"
	OpGreaterThan  Operator = "gt"
	OpGreaterEqual Operator = "gte"
	OpLessThan     Operator = "lt"
	OpLessEqual    Operator = "lte"
	OpIn           Operator = "in"
	OpContains     Operator = "contains"
)

var operatorAliases = map[string]Operator{
	"eq": OpEqual, "=": OpEqual, "==": OpEqual,
	"ne": OpNotEqual, "!=": OpNotEqual, "<>": OpNotEqual,
	"gt": OpGreaterThan, ">": OpGreaterThan,
	"gte": OpGreaterEqual, ">=": OpGreaterEqual,
	"lt": OpLessThan, "<": OpLessThan,
	"lte": OpLessEqual, "<=": OpLessEqual,
	"in":       OpIn,
	"contains": OpContains,
}

// ParseOperator resolves an operator by name or symbol, case-insensitively.
func ParseOperator(s string) (Operator, error) {
	if op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, s)
}

func (op Operator) ordered() bool {
	return op == OpGreaterThan || op == OpGreaterEqual || op == OpLessThan || op == OpLessEqual
}

// Filter is a predicate on a single metadata key.
type Filter struct {
	Key      string   `json:"key"`
	Operator Operator `json:"op"`
	Value    Value    `json:"value"`
}

func Eq(key string, v Value) Filter  { return Filter{key, OpEqual, v} }
func Ne(key string, v Value) Filter  { return Filter{key, OpNotEqual, v} }
func Gt(key string, v Value) Filter  { return Filter{key, OpGreaterThan, v} }
func Gte(key string, v Value) Filter { return Filter{key, OpGreaterEqual, v} }
func Lt(key string, v Value) Filter  { return Filter{key, OpLessThan, v} }
func Lte(key string, v Value) Filter { return Filter{key, OpLessEqual, v} }

// In matches when the key equals any of vs.
func In(key string, vs ...Value) Filter { return Filter{key, OpIn, Array(vs)} }

// Contains matches string values containing substr.
func Contains(key, substr string) Filter { return Filter{key, OpContains, String(substr)} }

// Validate checks that the operand suits the operator. Errors wrap
// ErrInvalidFilter.
func (f Filter) Validate() error {
	if f.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidFilter)
	}

	var want string
	switch {
	case f.Operator == OpEqual || f.Operator == OpNotEqual:
		if f.Value.Kind == KindInvalid {
			return fmt.Errorf("%w: %s on %q has no value", ErrInvalidFilter, f.Operator, f.Key)
		}
	case f.Operator.ordered():
		if !numeric(f.Value) {
			want = "a numeric"
		}
	case f.Operator == OpIn:
		if f.Value.Kind != KindArray {
			want = "an array"
		}
	case f.Operator == OpContains:
		if f.Value.Kind != KindString {
			want = "a string"
		}
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, f.Operator)
	}
	if want != "" {
		return fmt.Errorf("%w: %s on %q needs %s value, got %s", ErrInvalidFilter, f.Operator, f.Key, want, f.Value.Kind)
	}
	return nil
}

// Matches evaluates f against doc. A missing key never matches, for ne
// as well.
func (f *Filter) Matches(doc Document) bool {
	got, ok := doc[f.Key]
	if !ok {
		return false
	}

	switch f.Operator {
	case OpEqual:
		return looseEqual(got, f.Value)
	case OpNotEqual:
		return !looseEqual(got, f.Value)
	case OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual:
		c, ok := compareNumbers(got, f.Value)
		if !ok {
			return false
		}
		switch f.Operator {
		case OpGreaterThan:
			return c > 0
		case OpGreaterEqual:
			return c >= 0
		case OpLessThan:
			return c < 0
		default:
			return c <= 0
		}
	case OpIn:
		for _, candidate := range f.Value.A {
			if looseEqual(got, candidate) {
				return true
			}
		}
		return false
	case OpContains:
		s, ok := got.AsString()
		return ok && f.Value.Kind == KindString && strings.Contains(s, f.Value.s.Value())
	}
	return false
}

// FilterSet is the conjunction of its filters. A nil or empty set matches
// everything.
type FilterSet struct {
	Filters []Filter `json:"filters"`
}

func NewFilterSet(filters ...Filter) *FilterSet {
	return &FilterSet{Filters: filters}
}

func (fs *FilterSet) IsEmpty() bool {
	return fs == nil || len(fs.Filters) == 0
}

// Validate returns the first invalid filter's error.
func (fs *FilterSet) Validate() error {
	if fs == nil {
		return nil
	}
	for _, f := range fs.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FilterSet) Matches(doc Document) bool {
	if fs == nil {
		return true
	}
	for i := range fs.Filters {
		if !fs.Filters[i].Matches(doc) {
			return false
		}
	}
	return true
}

func numeric(v Value) bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// compareNumbers orders two numeric values, exactly when both are ints.
func compareNumbers(a, b Value) (int, bool) {
	if !numeric(a) || !numeric(b) {
		return 0, false
	}
	if a.Kind == KindInt && b.Kind == KindInt {
		return cmp.Compare(a.I64, b.I64), true
	}
	x, y := toFloat(a), toFloat(b)
	if x != x || y != y {
		return 0, false
	}
	return cmp.Compare(x, y), true
}

func toFloat(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.I64)
	}
	return v.F64
}

// looseEqual is Equal except that numbers compare by value across kinds.
func looseEqual(a, b Value) bool {
	if numeric(a) && numeric(b) {
		c, ok := compareNumbers(a, b)
		return ok && c == 0
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind != KindArray {
		return a.Equal(b)
	}
	if len(a.A) != len(b.A) {
		return false
	}
	for i := range a.A {
		if !looseEqual(a.A[i], b.A[i]) {
			return false
		}
	}
	return true
}
