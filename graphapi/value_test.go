package graphapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputValueDecodeKinds(t *testing.T) {
	tests := []struct {
		name string
		json string
		kind ValueKind
	}{
		{"null", `null`, NullKind},
		{"string", `"euler"`, StringKind},
		{"integer", `20`, NumberKind},
		{"float", `7.5`, NumberKind},
		{"bool", `true`, BoolKind},
		{"link", `["4", 1]`, LinkKind},
		{"string pair is an array", `["4", "1"]`, ArrayKind},
		{"fractional slot is an array", `["4", 1.5]`, ArrayKind},
		{"numeric id is an array", `[4, 1]`, ArrayKind},
		{"three elements", `["4", 1, 2]`, ArrayKind},
		{"empty array", `[]`, ArrayKind},
		{"object", `{"a": 1}`, ObjectKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v InputValue
			require.NoError(t, json.Unmarshal([]byte(tt.json), &v))
			assert.Equal(t, tt.kind, v.Kind())

			out, err := json.Marshal(v)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(out))
		})
	}
}

func TestInputValueAccessors(t *testing.T) {
	s, ok := StringValue("x").AsString()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = StringValue("x").AsInt()
	assert.False(t, ok)

	_, ok = FloatValue(1.5).AsInt()
	assert.False(t, ok)

	f, ok := IntValue(3).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	b, ok := BoolValue(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	arr, ok := ArrayValue(IntValue(1), StringValue("a")).AsArray()
	require.True(t, ok)
	assert.Len(t, arr, 2)

	link, ok := LinkValue("7", 2).AsLink()
	require.True(t, ok)
	assert.Equal(t, NodeLink{NodeID: "7", Slot: 2}, link)

	assert.True(t, InputValue{}.IsNull())
}

func TestInputValueLargeIntegersSurvive(t *testing.T) {
	var v InputValue
	require.NoError(t, json.Unmarshal([]byte(`18446744073709551615`), &v))

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", string(out))
}

func TestInputValueEncodeConstructors(t *testing.T) {
	out, err := json.Marshal(map[string]InputValue{
		"link":  LinkValue("3", 0),
		"seed":  IntValue(42),
		"cfg":   FloatValue(6.5),
		"text":  StringValue("hi"),
		"empty": ArrayValue(),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"link":["3",0],"seed":42,"cfg":6.5,"text":"hi","empty":[]}`, string(out))
}

func TestInputValueRejectsGarbage(t *testing.T) {
	var v InputValue
	assert.Error(t, v.UnmarshalJSON([]byte(`nope`)))
	assert.Error(t, v.UnmarshalJSON([]byte(``)))
}
