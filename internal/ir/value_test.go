package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Value
	}{
		{"string", `"Billow"`, String("Billow")},
		{"integer", `6`, Number(6)},
		{"float", `0.015`, Number(0.015)},
		{"bool", `true`, Bool(true)},
		{"weights", `{"a":0.5,"b":0}`, WeightMap{"a": 0.5, "b": 0}},
		{"padded", "  false ", Bool(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := UnmarshalValue([]byte(tt.input))
			require.NoError(t, err)
			assert.True(t, ValuesEqual(tt.expected, v), "got %#v", v)
		})
	}
}

func TestUnmarshalValueRejects(t *testing.T) {
	for _, input := range []string{``, `null`, `[1,2]`, `{"a":"x"}`} {
		_, err := UnmarshalValue([]byte(input))
		assert.Error(t, err, "input %q", input)
	}
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual(String("a"), String("a")))
	assert.False(t, ValuesEqual(String("1"), Number(1)))
	assert.False(t, ValuesEqual(WeightMap{"a": 1}, String("a")))
	assert.True(t, ValuesEqual(WeightMap{"a": 1, "b": 2}, WeightMap{"b": 2, "a": 1}))
	assert.False(t, ValuesEqual(WeightMap{"a": 1}, WeightMap{"a": 1, "b": 0}))
	assert.True(t, ValuesEqual(nil, nil))
	assert.False(t, ValuesEqual(nil, Bool(false)))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "Fbm", FormatValue(String("Fbm")))
	assert.Equal(t, "0.008", FormatValue(Number(0.008)))
	assert.Equal(t, "6", FormatValue(Number(6)))
	assert.Equal(t, "true", FormatValue(Bool(true)))
	assert.Equal(t, `{"a":1}`, FormatValue(WeightMap{"a": 1}))
}

func TestValueFromAny(t *testing.T) {
	v, err := ValueFromAny(3)
	require.NoError(t, err)
	assert.Equal(t, Number(3), v)

	v, err = ValueFromAny(map[string]any{"x": 1, "y": 0.25})
	require.NoError(t, err)
	assert.True(t, ValuesEqual(WeightMap{"x": 1, "y": 0.25}, v))

	_, err = ValueFromAny(map[string]any{"x": "heavy"})
	assert.Error(t, err)

	_, err = ValueFromAny([]int{1})
	assert.Error(t, err)
}

func TestNodeDefJSON(t *testing.T) {
	input := `{
		"id": "00000000-0000-0000-0000-000000000000",
		"type": "root",
		"settings": [{"id": "s1", "key": "moduleType", "value": "Composed"}],
		"children": [{
			"id": "scheme",
			"type": "compositionScheme",
			"settings": [
				{"id": "s2", "key": "compositionScheme", "value": "weightedAverage"},
				{"id": "s3", "key": "weights", "value": {"m1": 1}}
			],
			"children": []
		}]
	}`

	def, err := ParseNodeDef([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, RootID, def.ID)
	assert.Equal(t, 2, def.Count())

	weights, ok := def.Children[0].Setting("weights")
	require.True(t, ok)
	assert.True(t, ValuesEqual(WeightMap{"m1": 1}, weights.Value))

	out, err := json.Marshal(def)
	require.NoError(t, err)
	again, err := ParseNodeDef(out)
	require.NoError(t, err)
	assert.Equal(t, def.Children[0].Settings[0], again.Children[0].Settings[0])
}

func TestNodeDefRejectsMissingKey(t *testing.T) {
	_, err := ParseNodeDef([]byte(`{"type":"root","settings":[{"id":"s","value":1}],"children":[]}`))
	assert.Error(t, err)
}
