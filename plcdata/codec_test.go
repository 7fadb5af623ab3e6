package plcdata

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		description string
		value       Value
	}{
		{"bool false", NewBool(false)},
		{"bool true", NewBool(true)},
		{"bits zero", NewBitArray16(0)},
		{"bits max", NewBitArray16(math.MaxUint16)},
		{"bits pattern", NewBitArray16(0xA5C3)},
		{"u16 zero", NewU16(0)},
		{"u16 max", NewU16(math.MaxUint16)},
		{"i16 min", NewI16(math.MinInt16)},
		{"i16 max", NewI16(math.MaxInt16)},
		{"i16 minus one", NewI16(-1)},
		{"u32 zero", NewU32(0)},
		{"u32 max", NewU32(math.MaxUint32)},
		{"i32 min", NewI32(math.MinInt32)},
		{"i32 max", NewI32(math.MaxInt32)},
		{"f32 zero", NewF32(0)},
		{"f32 max", NewF32(math.MaxFloat32)},
		{"f32 smallest", NewF32(math.SmallestNonzeroFloat32)},
		{"f32 negative", NewF32(-12.5)},
		{"f64 zero", NewF64(0)},
		{"f64 max", NewF64(math.MaxFloat64)},
		{"f64 negative", NewF64(-3.141592653589793)},
		{"f64 inf", NewF64(math.Inf(-1))},
		{"string empty", NewString("", 4)},
		{"string ascii", NewString("LINE-01", 4)},
		{"string exact", NewString("ABCDEFGH", 4)},
		{"string japanese", NewString("温度計", 4)},
		{"string max words", NewString("Z", MaxStringWords)},
	}

	for _, tt := range tests {
		words, err := Encode(tt.value)
		require.NoError(err, tt.description)
		require.Len(words, tt.value.Type().Words(), tt.description)

		decoded, err := Decode(words, tt.value.Type())
		require.NoError(err, tt.description)
		require.True(tt.value.Equal(decoded), "%s: got %s want %s", tt.description, decoded, tt.value)
	}
}

func TestEncode_WordOrder(t *testing.T) {
	require := require.New(t)

	words, err := Encode(NewU32(0x12345678))
	require.NoError(err)
	require.Equal([]uint16{0x5678, 0x1234}, words)
	require.Equal([]byte{0x78, 0x56, 0x34, 0x12}, WordsToBytes(words))

	words, err = Encode(NewI16(-2))
	require.NoError(err)
	require.Equal([]uint16{0xFFFE}, words)

	words, err = Encode(NewF32(1.0))
	require.NoError(err)
	require.Equal([]uint16{0x0000, 0x3F80}, words)

	words, err = Encode(NewF64(1.0))
	require.NoError(err)
	require.Equal([]uint16{0, 0, 0, 0x3FF0}, words)

	words, err = Encode(NewString("ABC", 2))
	require.NoError(err)
	require.Equal([]uint16{0x4241, 0x0043}, words)
}

func TestDecode_BitArray(t *testing.T) {
	require := require.New(t)

	v, err := Decode([]uint16{0x0005}, BitArray16)
	require.NoError(err)
	bits := v.Bits()
	require.True(bits[0])
	require.False(bits[1])
	require.True(bits[2])
	require.False(bits[15])

	require.Equal(uint16(0x8001), NewBits([16]bool{0: true, 15: true}).BitArray16())
}

func TestDecode_BoolUsesBitZero(t *testing.T) {
	require := require.New(t)

	v, err := Decode([]uint16{0xFFFE}, Bool)
	require.NoError(err)
	require.False(v.Bool())

	v, err = Decode([]uint16{0x0001}, Bool)
	require.NoError(err)
	require.True(v.Bool())
}

func TestDecode_Insufficient(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		description string
		words       []uint16
		typ         DataType
	}{
		{"u16 from nothing", nil, U16},
		{"u32 from one word", []uint16{1}, U32},
		{"f64 from three words", []uint16{1, 2, 3}, F64},
		{"string from short input", []uint16{0x4241}, String(3)},
	}

	for _, tt := range tests {
		_, err := Decode(tt.words, tt.typ)
		require.Error(err, tt.description)

		var merr *MarshalError
		require.True(errors.As(err, &merr), tt.description)
		require.ErrorIs(err, ErrInsufficientData, tt.description)
		require.Equal(tt.typ.Words(), merr.Need, tt.description)
		require.Equal(len(tt.words), merr.Have, tt.description)
	}

	_, err := DecodeBytes([]byte{0x01}, U16)
	require.ErrorIs(err, ErrInsufficientData)

	_, err = BytesToWords([]byte{1, 2, 3})
	require.ErrorIs(err, ErrInsufficientData)
}

func TestString_TerminatesAtNUL(t *testing.T) {
	require := require.New(t)

	words := []uint16{0x4241, 0x0043, 0x4545}
	v, err := Decode(words, String(3))
	require.NoError(err)
	require.Equal("ABC", v.Text())
}

func TestString_TruncatesOnCharacterBoundary(t *testing.T) {
	require := require.New(t)

	// each kanji is two bytes in Shift-JIS, so three of them do not fit in two words
	words, err := Encode(NewString("温度計", 2))
	require.NoError(err)
	v, err := Decode(words, String(2))
	require.NoError(err)
	require.Equal("温度", v.Text())

	words, err = Encode(NewString("A温度", 2))
	require.NoError(err)
	v, err = Decode(words, String(2))
	require.NoError(err)
	require.Equal("A温", v.Text())
}

func TestString_InvalidLength(t *testing.T) {
	require := require.New(t)

	_, err := Encode(NewString("x", 0))
	require.ErrorIs(err, ErrInvalidType)

	_, err = Decode(make([]uint16, 40), String(MaxStringWords+1))
	require.ErrorIs(err, ErrInvalidType)
}

func TestString_Unencodable(t *testing.T) {
	_, err := Encode(NewString("😀", 4))
	require.ErrorIs(t, err, ErrUnencodable)
}

func TestEncodeBytes(t *testing.T) {
	require := require.New(t)

	b, err := EncodeBytes(NewU16(0x1234))
	require.NoError(err)
	require.Equal([]byte{0x34, 0x12}, b)

	v, err := DecodeBytes([]byte{0xFF, 0xFF, 0xFF, 0xFF}, I32)
	require.NoError(err)
	require.Equal(int32(-1), v.I32())
}

func TestValue_AccessorKindMismatch(t *testing.T) {
	require := require.New(t)

	v := NewU16(7)
	require.Equal(uint16(7), v.U16())
	require.Zero(v.I16())
	require.Zero(v.U32())
	require.False(v.Bool())
	require.Empty(v.Text())
	require.Equal(uint16(7), v.Any())
	require.True(Value{}.IsZero())
}
