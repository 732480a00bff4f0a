package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"min int64", Int(-9223372036854775808), "-9223372036854775808"},
		{"bool", Bool(true), "true"},
		{"null", Null{}, "null"},
		{"go nil", nil, "null"},
		{"empty array", NewArray(), "[]"},
		{"empty record", NewRecord(), "{}"},
		{"array of ints", NewArray(Int(1), Int(2)), "[1,2]"},
		{"go map", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortsRecordKeys(t *testing.T) {
	r := NewRecord(P("zebra", Int(1)), P("alpha", Int(2)), P("nested", NewRecord(P("b", Int(1)), P("a", Int(2)))))

	result, err := MarshalCanonical(r)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"nested":{"a":2,"b":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("<a&b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(result))
}

func TestMarshalCanonicalLineSeparatorsStayLiteral(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))

	result, err = MarshalCanonical(String(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(result), "escaped backslash is preserved")
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + COMBINING ACUTE ACCENT normalizes to U+00E9
	result, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(Undefined{})
	assert.Error(t, err)

	_, err = MarshalCanonical(NewFunction("f", 0, nil))
	assert.Error(t, err)
}

func TestSortKeysUTF16Order(t *testing.T) {
	keys := SortKeys([]string{"a", "A", "aa", "aA", "Aa", "AA"})
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, keys)

	// U+FFFD sorts after a surrogate pair in UTF-16 but before it in UTF-8
	keys = SortKeys([]string{"\uFFFD", "\U0001F600"})
	assert.Equal(t, []string{"\U0001F600", "\uFFFD"}, keys)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "\u00e9", NormalizeName("e\u0301"))
}
