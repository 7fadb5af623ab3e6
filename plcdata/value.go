package plcdata

import (
	"math"
	"strconv"
)

// Value is a typed value read from or written to device memory.
//
// Accessors for a kind other than the value's own return the zero value of the accessor type.
type Value struct {
	typ  DataType
	raw  uint64
	text string
}

func NewBool(v bool) Value {
	var raw uint64
	if v {
		raw = 1
	}

	return Value{typ: Bool, raw: raw}
}

// NewBitArray16 returns a BitArray16 value whose bit i is (v>>i)&1.
func NewBitArray16(v uint16) Value { return Value{typ: BitArray16, raw: uint64(v)} }

// NewBits returns a BitArray16 value from sixteen booleans, bits[0] being the least significant bit.
func NewBits(bits [16]bool) Value {
	var v uint16
	for i, b := range bits {
		if b {
			v |= 1 << i
		}
	}

	return NewBitArray16(v)
}

func NewU16(v uint16) Value  { return Value{typ: U16, raw: uint64(v)} }
func NewI16(v int16) Value   { return Value{typ: I16, raw: uint64(uint16(v))} }
func NewU32(v uint32) Value  { return Value{typ: U32, raw: uint64(v)} }
func NewI32(v int32) Value   { return Value{typ: I32, raw: uint64(uint32(v))} }
func NewF32(v float32) Value { return Value{typ: F32, raw: uint64(math.Float32bits(v))} }
func NewF64(v float64) Value { return Value{typ: F64, raw: math.Float64bits(v)} }

// NewString returns a string value occupying words device words.
// Text longer than the device area is truncated on a character boundary by Encode.
func NewString(s string, words int) Value {
	return Value{typ: String(words), text: s}
}

// Type returns the value's data type.
func (v Value) Type() DataType { return v.typ }

// IsZero reports whether v is the zero Value, which carries no type.
func (v Value) IsZero() bool { return v.typ.kind == KindInvalid }

func (v Value) Bool() bool {
	return v.typ.kind == KindBool && v.raw != 0
}

func (v Value) BitArray16() uint16 {
	if v.typ.kind != KindBitArray16 {
		return 0
	}

	return uint16(v.raw) //nolint:gosec
}

// Bits returns the sixteen bits of a BitArray16 value, index 0 being the least significant bit.
func (v Value) Bits() [16]bool {
	var bits [16]bool
	word := v.BitArray16()
	for i := range bits {
		bits[i] = word&(1<<i) != 0
	}

	return bits
}

func (v Value) U16() uint16 {
	if v.typ.kind != KindU16 {
		return 0
	}

	return uint16(v.raw) //nolint:gosec
}

func (v Value) I16() int16 {
	if v.typ.kind != KindI16 {
		return 0
	}

	return int16(uint16(v.raw)) //nolint:gosec
}

func (v Value) U32() uint32 {
	if v.typ.kind != KindU32 {
		return 0
	}

	return uint32(v.raw) //nolint:gosec
}

func (v Value) I32() int32 {
	if v.typ.kind != KindI32 {
		return 0
	}

	return int32(uint32(v.raw)) //nolint:gosec
}

func (v Value) F32() float32 {
	if v.typ.kind != KindF32 {
		return 0
	}

	return math.Float32frombits(uint32(v.raw)) //nolint:gosec
}

func (v Value) F64() float64 {
	if v.typ.kind != KindF64 {
		return 0
	}

	return math.Float64frombits(v.raw)
}

// Text returns the content of a string value.
func (v Value) Text() string {
	if v.typ.kind != KindString {
		return ""
	}

	return v.text
}

// Any returns the value as the matching Go type.
func (v Value) Any() any {
	switch v.typ.kind {
	case KindBool:
		return v.Bool()
	case KindBitArray16:
		return v.Bits()
	case KindU16:
		return v.U16()
	case KindI16:
		return v.I16()
	case KindU32:
		return v.U32()
	case KindI32:
		return v.I32()
	case KindF32:
		return v.F32()
	case KindF64:
		return v.F64()
	case KindString:
		return v.text
	default:
		return nil
	}
}

// Equal reports whether v and other have the same type and content.
// Floats compare by bit pattern, so NaN equals an identical NaN.
func (v Value) Equal(other Value) bool {
	return v.typ == other.typ && v.raw == other.raw && v.text == other.text
}

func (v Value) String() string {
	switch v.typ.kind {
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindBitArray16:
		return "0x" + strconv.FormatUint(uint64(v.BitArray16()), 16)
	case KindU16, KindU32:
		return strconv.FormatUint(v.raw, 10)
	case KindI16:
		return strconv.FormatInt(int64(v.I16()), 10)
	case KindI32:
		return strconv.FormatInt(int64(v.I32()), 10)
	case KindF32:
		return strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case KindF64:
		return strconv.FormatFloat(v.F64(), 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.text)
	default:
		return "<invalid>"
	}
}
