package metadata

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		metadata Document
		want     bool
	}{
		{"OpEqual string match", Eq("category", String("tech")), Document{"category": String("tech")}, true},
		{"OpEqual string no match", Eq("category", String("tech")), Document{"category": String("sports")}, false},
		{"OpEqual int match", Eq("count", Int(10)), Document{"count": Int(10)}, true},
		{"OpEqual int float cross kind", Eq("count", Float(10)), Document{"count": Int(10)}, true},
		{"OpEqual bool", Eq("published", Bool(true)), Document{"published": Bool(true)}, true},
		{"OpEqual kind mismatch", Eq("count", String("10")), Document{"count": Int(10)}, false},
		{"OpNotEqual", Ne("status", String("active")), Document{"status": String("inactive")}, true},
		{"OpNotEqual same", Ne("status", String("active")), Document{"status": String("active")}, false},
		{"OpNotEqual missing key", Ne("status", String("active")), Document{}, false},
		{"OpGreaterThan", Gt("score", Int(50)), Document{"score": Int(75)}, true},
		{"OpGreaterThan false", Gt("score", Int(50)), Document{"score": Int(25)}, false},
		{"OpGreaterThan mixed", Gt("score", Float(49.5)), Document{"score": Int(50)}, true},
		{"OpGreaterThan string value", Gt("score", Int(50)), Document{"score": String("75")}, false},
		{"OpGreaterEqual equal", Gte("age", Int(18)), Document{"age": Int(18)}, true},
		{"OpGreaterEqual less", Gte("age", Int(18)), Document{"age": Int(17)}, false},
		{"OpLessThan", Lt("price", Float(9.99)), Document{"price": Float(5)}, true},
		{"OpLessEqual equal", Lte("price", Float(9.99)), Document{"price": Float(9.99)}, true},
		{"OpLessEqual greater", Lte("price", Float(9.99)), Document{"price": Float(10)}, false},
		{"OpIn match", In("lang", String("go"), String("rust")), Document{"lang": String("go")}, true},
		{"OpIn no match", In("lang", String("go"), String("rust")), Document{"lang": String("c")}, false},
		{"OpContains", Contains("title", "vector"), Document{"title": String("a vector db")}, true},
		{"OpContains no match", Contains("title", "graph"), Document{"title": String("a vector db")}, false},
		{"OpContains non-string", Contains("title", "1"), Document{"title": Int(1)}, false},
		{"Missing key", Eq("category", String("tech")), Document{"other": String("tech")}, false},
		{"Nil document", Eq("category", String("tech")), nil, false},
		{"Null equals null", Eq("deleted_at", Null()), Document{"deleted_at": Null()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.metadata))
		})
	}
}

func TestFilterSetMatches(t *testing.T) {
	doc := Document{
		"category": String("tech"),
		"year":     Int(2024),
	}

	fs := NewFilterSet(
		Eq("category", String("tech")),
		Gte("year", Int(2023)),
	)
	assert.True(t, fs.Matches(doc))

	fs = NewFilterSet(
		Eq("category", String("tech")),
		Gte("year", Int(2025)),
	)
	assert.False(t, fs.Matches(doc))

	var nilSet *FilterSet
	assert.True(t, nilSet.Matches(doc))
	assert.True(t, nilSet.IsEmpty())
	assert.True(t, NewFilterSet().Matches(nil))
}

func TestFilterValidate(t *testing.T) {
	valid := []Filter{
		Eq("a", String("x")),
		Ne("a", Null()),
		Gt("a", Int(1)),
		Lte("a", Float(1.5)),
		In("a", Int(1), Int(2)),
		In("a"),
		Contains("a", "x"),
	}
	for _, f := range valid {
		assert.NoError(t, f.Validate(), "%s %s", f.Key, f.Operator)
	}

	invalid := []Filter{
		{Key: "", Operator: OpEqual, Value: Int(1)},
		{Key: "a", Operator: OpEqual},
		{Key: "a", Operator: "like", Value: String("x")},
		Gt("a", String("x")),
		Lt("a", Bool(true)),
		{Key: "a", Operator: OpIn, Value: Int(1)},
		{Key: "a", Operator: OpContains, Value: Int(1)},
	}
	for _, f := range invalid {
		err := f.Validate()
		require.Error(t, err, "%s %s", f.Key, f.Operator)
		assert.True(t, errors.Is(err, ErrInvalidFilter))
	}

	fs := NewFilterSet(Eq("a", Int(1)), Gt("b", String("x")))
	assert.ErrorIs(t, fs.Validate(), ErrInvalidFilter)

	var nilSet *FilterSet
	assert.NoError(t, nilSet.Validate())
}

func TestParseOperator(t *testing.T) {
	tests := map[string]Operator{
		"eq":       OpEqual,
		"==":       OpEqual,
		"!=":       OpNotEqual,
		">":        OpGreaterThan,
		"GTE":      OpGreaterEqual,
		"<":        OpLessThan,
		"<=":       OpLessEqual,
		"in":       OpIn,
		"contains": OpContains,
	}
	for in, want := range tests {
		got, err := ParseOperator(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOperator("~=")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestValueJSON(t *testing.T) {
	doc := Document{
		"n":     Null(),
		"i":     Int(2),
		"f":     Float(2),
		"zero":  Float(0),
		"s":     String("hello"),
		"b":     Bool(false),
		"array": Array([]Value{Int(1), String("a"), Array([]Value{Bool(true)})}),
	}

	b, err := json.Marshal(doc)
	require.NoError(t, err)

	var got Document
	require.NoError(t, json.Unmarshal(b, &got))

	assert.True(t, doc.Equal(got))
	assert.Equal(t, KindInt, got["i"].Kind)
	assert.Equal(t, KindFloat, got["f"].Kind)
	assert.Equal(t, "hello", got["s"].StringValue())
}

func TestValueJSONIsPlain(t *testing.T) {
	doc := Document{
		"lang":  String("go"),
		"stars": Int(5),
		"score": Float(2),
		"tags":  Strings("a", "b"),
		"gone":  Null(),
	}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lang":"go","stars":5,"score":2.0,"tags":["a","b"],"gone":null}`, string(b))
	assert.Contains(t, string(b), `"score":2.0`)

	var v Value
	require.NoError(t, json.Unmarshal([]byte(`"plain"`), &v))
	assert.True(t, v.Equal(String("plain")))

	require.NoError(t, json.Unmarshal([]byte(`1e3`), &v))
	assert.True(t, v.Equal(Float(1000)))

	require.NoError(t, json.Unmarshal([]byte(`99999999999999999999`), &v))
	assert.Equal(t, KindFloat, v.Kind)
}

func TestValueJSONRejects(t *testing.T) {
	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"k":1}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`[{"nested":true}]`), &v))

	var d Document
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &d))
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Nil(t, d)

	_, err := json.Marshal(Document{"x": Float(math.NaN())})
	assert.Error(t, err)
	_, err = json.Marshal(Value{})
	assert.Error(t, err)
}

func TestDocumentValidate(t *testing.T) {
	assert.NoError(t, Document{"a": Int(1), "b": Strings("x")}.Validate())
	assert.NoError(t, Document(nil).Validate())
	assert.Error(t, Document{"a": Float(math.Inf(1))}.Validate())
	assert.Error(t, Document{"a": Array([]Value{Float(math.NaN())})}.Validate())
	assert.Error(t, Document{"a": {}}.Validate())
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Int(1).Equal(Int(1)))
	assert.False(t, Int(1).Equal(Float(1)))
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, Array([]Value{Int(1)}).Equal(Array([]Value{Int(2)})))
	assert.True(t, Document(nil).Equal(Document{}))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "s:tech", String("tech").Key())
	assert.Equal(t, "i:7", Int(7).Key())
	assert.Equal(t, "a:s:x\x1fi:1", Array([]Value{String("x"), Int(1)}).Key())
	assert.Equal(t, "b:1", Bool(true).Key())
	assert.NotEqual(t, Int(1).Key(), Float(1).Key())
}

func TestClone(t *testing.T) {
	orig := Document{
		"tags": Array([]Value{String("a"), String("b")}),
		"n":    Int(1),
	}
	clone := orig.Clone()
	clone["tags"].A[0] = String("z")
	clone["n"] = Int(2)

	assert.Equal(t, "a", orig["tags"].A[0].StringValue())
	assert.Equal(t, int64(1), orig["n"].I64)

	assert.Nil(t, CloneIfNeeded(nil))
	assert.Nil(t, CloneIfNeeded(Document{}))
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Value
	}{
		{"nil", nil, Null()},
		{"bool", true, Bool(true)},
		{"string", "x", String("x")},
		{"float64", 1.5, Float(1.5)},
		{"int", 3, Int(3)},
		{"uint32", uint32(4), Int(4)},
		{"[]any", []any{"a", 1}, Array([]Value{String("a"), Int(1)})},
		{"[]string", []string{"a"}, Array([]Value{String("a")})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
		})
	}

	_, err := FromAny(struct{}{})
	assert.Error(t, err)
}

func TestDocumentRoundTripAny(t *testing.T) {
	in := map[string]any{
		"category": "tech",
		"year":     int64(2024),
		"score":    0.5,
		"tags":     []any{"a", "b"},
		"draft":    false,
	}
	doc, err := DocumentFromAny(in)
	require.NoError(t, err)
	assert.Equal(t, in, doc.ToMap())

	_, err = DocumentFromAny(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)

	doc, err = DocumentFromAny(nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}
