package plcdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDataType(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		input    string
		expected DataType
	}{
		{"bool", Bool},
		{"BITS16", BitArray16},
		{"u16", U16},
		{"i16", I16},
		{"u32", U32},
		{"i32", I32},
		{"f32", F32},
		{"f64", F64},
		{"string[8]", String(8)},
		{"string:4", String(4)},
	}

	for _, tt := range tests {
		typ, err := ParseDataType(tt.input)
		require.NoError(err, tt.input)
		require.Equal(tt.expected, typ, tt.input)

		reparsed, err := ParseDataType(typ.String())
		require.NoError(err, tt.input)
		require.Equal(typ, reparsed, tt.input)
	}

	for _, bad := range []string{"", "u64", "string[0]", "string[33]", "string[x]"} {
		_, err := ParseDataType(bad)
		require.Error(err, bad)
	}
}

func TestDataTypeSizes(t *testing.T) {
	require := require.New(t)

	require.True(Bool.IsBit())
	require.Equal(1, Bool.Words())
	require.True(U32.IsDoubleWord())
	require.True(F32.IsDoubleWord())
	require.False(F64.IsDoubleWord())
	require.True(F64.IsMultiWord())
	require.True(String(3).IsMultiWord())
	require.Equal(6, String(3).Bytes())
	require.Error(DataType{}.Validate())
}

func TestParseValue(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		description string
		typ         DataType
		text        string
		expected    Value
	}{
		{"bool on", Bool, "on", NewBool(true)},
		{"bool zero", Bool, "0", NewBool(false)},
		{"bits hex", BitArray16, "0x8001", NewBitArray16(0x8001)},
		{"u16", U16, "65535", NewU16(65535)},
		{"i16", I16, "-32768", NewI16(-32768)},
		{"u32 hex", U32, "0xDEADBEEF", NewU32(0xDEADBEEF)},
		{"i32", I32, "-5", NewI32(-5)},
		{"f32", F32, "1.5", NewF32(1.5)},
		{"f64", F64, "-2.25", NewF64(-2.25)},
		{"string", String(4), "AB", NewString("AB", 4)},
	}

	for _, tt := range tests {
		v, err := ParseValue(tt.typ, tt.text)
		require.NoError(err, tt.description)
		require.True(tt.expected.Equal(v), tt.description)
	}

	for _, bad := range []struct {
		typ  DataType
		text string
	}{
		{Bool, "maybe"},
		{U16, "65536"},
		{I16, "40000"},
		{U32, "-1"},
		{F32, "abc"},
	} {
		_, err := ParseValue(bad.typ, bad.text)
		require.ErrorIs(err, ErrInvalidText, bad.text)
	}
}
