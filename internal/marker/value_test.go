package marker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"1", Int(1)},
		{"0", Int(0)},
		{"1.5", Float(1.5)},
		{"1.0", Float(1)},
		{".5", Float(0.5)},
		{"1e3", Float(1000)},
		{"0x1F", Int(31)},
		{"0o17", Int(15)},
		{"0b101", Int(5)},
		{"017", Int(15)},
		{"019", Int(19)},
		{"1_000", Int(1000)},
		{"4294967295", Int(4294967295)},
		{"4294967296", Null()},
		{"10n", Null()},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseNumber(tt.in))
		})
	}
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `"abc"`, "abc"},
		{"single quotes", `'it\'s'`, "it's"},
		{"controls", `"a\nb\tc\\d"`, "a\nb\tc\\d"},
		{"hex and unicode", `'\x41B\u{43}'`, "ABC"},
		{"surrogate pair", `"\uD83D\uDE00"`, "\U0001F600"},
		{"astral braces", `"\u{1F600}"`, "\U0001F600"},
		{"line continuation", "\"a\\\nb\"", "ab"},
		{"crlf continuation", "\"a\\\r\nb\"", "ab"},
		{"nul", `"\0"`, "\x00"},
		{"legacy octal", `"\101\7"`, "A\a"},
		{"unknown escape", `"\q"`, "q"},
		{"utf8 passthrough", `"héllo"`, "héllo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeString(tt.raw))
		})
	}
}

func TestTruthy(t *testing.T) {
	assert.True(t, Bool(true).Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.False(t, Int(0).Truthy())
	assert.True(t, Int(-3).Truthy())
	assert.False(t, Float(0).Truthy())
	assert.True(t, Float(0.1).Truthy())
	assert.True(t, String("x").Truthy())
	assert.False(t, String("").Truthy())
	assert.True(t, Array().Truthy())
	assert.True(t, Object(nil).Truthy())
	assert.False(t, Null().Truthy())
}

func TestValueJSON(t *testing.T) {
	v := Object(map[string]Value{
		"b":    Array(Int(1), Float(1), Float(2.5e-7), Null()),
		"a":    String("<x>"),
		"flag": Bool(false),
	})

	data, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":[1,1.0,2.5e-07,null],"flag":false}`, string(data))

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, v.Equal(back))
	assert.Equal(t, []string{"a", "b", "flag"}, back.Keys())

	field, ok := back.Field("b")
	require.True(t, ok)
	assert.Equal(t, KindFloat, field.Elems()[1].Kind())
}

func TestEqualDistinguishesIntAndFloat(t *testing.T) {
	assert.False(t, Int(1).Equal(Float(1)))
	assert.True(t, Array(Int(1)).Equal(Array(Int(1))))
	assert.False(t, Object(map[string]Value{"a": Int(1)}).Equal(Object(map[string]Value{"b": Int(1)})))
}

func TestFloatRejectsNonFinite(t *testing.T) {
	assert.True(t, parseNumber("1e999").IsNull())
}

func TestParseMagicComment(t *testing.T) {
	v, err := ParseMagicComment(` webpackChunkName: "a", lazy: true, list: [1, 2] `)
	require.NoError(t, err)
	assert.Equal(t, KindObject, v.Kind())

	name, _ := v.Field("webpackChunkName")
	assert.Equal(t, "a", name.AsString())
	list, _ := v.Field("list")
	assert.Equal(t, Array(Int(1), Int(2)), list)

	_, err = ParseMagicComment(" not ( json ")
	assert.Error(t, err)
}

func TestParseMagicCommentKeepsNumberForm(t *testing.T) {
	v, err := ParseMagicComment(" lazy: 2.0, count: 3 ")
	require.NoError(t, err)

	lazy, _ := v.Field("lazy")
	assert.Equal(t, KindFloat, lazy.Kind())
	count, _ := v.Field("count")
	assert.Equal(t, Int(3), count)

	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":3,"lazy":2.0}`, string(out))
	assert.Contains(t, string(out), `"lazy":2.0`)
}

func TestParseMagicCommentRejectsTrailingData(t *testing.T) {
	_, err := ParseMagicComment(` a: 1 } { b: 2 `)
	assert.Error(t, err)
}
