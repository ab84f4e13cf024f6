package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// MarshalJSON renders v as plain JSON. Floats always carry a fraction or
// an exponent so that they decode back as floats.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil)
}

func (v Value) appendJSON(b []byte) ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return append(b, "null"...), nil
	case KindInt:
		return strconv.AppendInt(b, v.I64, 10), nil
	case KindFloat:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return nil, fmt.Errorf("metadata: non-finite float %v", v.F64)
		}
		start := len(b)
		b = strconv.AppendFloat(b, v.F64, 'g', -1, 64)
		if !bytes.ContainsAny(b[start:], ".e") {
			b = append(b, ".0"...)
		}
		return b, nil
	case KindString:
		s, err := json.Marshal(v.s.Value())
		if err != nil {
			return nil, err
		}
		return append(b, s...), nil
	case KindBool:
		return strconv.AppendBool(b, v.B), nil
	case KindArray:
		b = append(b, '[')
		for i, e := range v.A {
			if i > 0 {
				b = append(b, ',')
			}
			var err error
			if b, err = e.appendJSON(b); err != nil {
				return nil, err
			}
		}
		return append(b, ']'), nil
	default:
		return nil, fmt.Errorf("metadata: invalid value kind %d", v.Kind)
	}
}

// UnmarshalJSON accepts null, booleans, numbers, strings and arrays of
// those. Numbers without a fraction or exponent become KindInt.
func (v *Value) UnmarshalJSON(data []byte) error {
	raw, err := decodeNumbers(data)
	if err != nil {
		return err
	}
	val, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// UnmarshalJSON decodes a JSON object into a document.
func (d *Document) UnmarshalJSON(data []byte) error {
	raw, err := decodeNumbers(data)
	if err != nil {
		return err
	}
	if raw == nil {
		*d = nil
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return errors.New("metadata: document must be a JSON object")
	}
	doc, err := DocumentFromAny(m)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

func decodeNumbers(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	return raw, nil
}

func fromNumber(n json.Number) (Value, error) {
	if !bytes.ContainsAny([]byte(n), ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("metadata: number %s: %w", n, err)
	}
	return Float(f), nil
}
