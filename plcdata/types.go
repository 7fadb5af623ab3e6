package plcdata

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the family of a DataType.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindBitArray16
	KindU16
	KindI16
	KindU32
	KindI32
	KindF32
	KindF64
	KindString
)

// MaxStringWords is the longest string, in words, that can be marshalled.
const MaxStringWords = 32

// DataType describes how a value is laid out in device memory.
// The zero value is invalid.
type DataType struct {
	kind  Kind
	words uint8
}

var (
	Bool       = DataType{kind: KindBool, words: 1}
	BitArray16 = DataType{kind: KindBitArray16, words: 1}
	U16        = DataType{kind: KindU16, words: 1}
	I16        = DataType{kind: KindI16, words: 1}
	U32        = DataType{kind: KindU32, words: 2}
	I32        = DataType{kind: KindI32, words: 2}
	F32        = DataType{kind: KindF32, words: 2}
	F64        = DataType{kind: KindF64, words: 4}
)

// String returns a string type occupying words device words.
// The length is checked by Validate, Encode and Decode.
func String(words int) DataType {
	if words < 0 || words > 255 {
		words = 0
	}

	return DataType{kind: KindString, words: uint8(words)} //nolint:gosec
}

// Kind returns the type family.
func (t DataType) Kind() Kind { return t.kind }

// Words returns the number of device words the type occupies when accessed word-wise.
func (t DataType) Words() int { return int(t.words) }

// Bytes returns Words()*2.
func (t DataType) Bytes() int { return int(t.words) * 2 }

// IsBit reports whether the type is a single bit.
func (t DataType) IsBit() bool { return t.kind == KindBool }

// IsDoubleWord reports whether the type is a native two-word type that random access
// transfers as one double-word point.
func (t DataType) IsDoubleWord() bool {
	return t.kind == KindU32 || t.kind == KindI32 || t.kind == KindF32
}

// IsMultiWord reports whether the type spans more words than random access can carry in one point.
// Such values are split into consecutive single-word points.
func (t DataType) IsMultiWord() bool {
	return t.kind == KindF64 || t.kind == KindString
}

// Validate checks that t is a known type with a usable size.
func (t DataType) Validate() error {
	switch t.kind {
	case KindBool, KindBitArray16, KindU16, KindI16, KindU32, KindI32, KindF32, KindF64:
		return nil
	case KindString:
		if t.words == 0 || int(t.words) > MaxStringWords {
			return &MarshalError{Type: t, Err: fmt.Errorf("%w: string length must be 1..%d words", ErrInvalidType, MaxStringWords)}
		}
		return nil
	default:
		return &MarshalError{Type: t, Err: ErrInvalidType}
	}
}

func (t DataType) String() string {
	switch t.kind {
	case KindBool:
		return "bool"
	case KindBitArray16:
		return "bits16"
	case KindU16:
		return "u16"
	case KindI16:
		return "i16"
	case KindU32:
		return "u32"
	case KindI32:
		return "i32"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindString:
		return "string[" + strconv.Itoa(int(t.words)) + "]"
	default:
		return "invalid"
	}
}

// ParseDataType parses the textual form produced by DataType.String.
// Strings accept both "string[8]" and "string:8".
func ParseDataType(s string) (DataType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "bool", "bit":
		return Bool, nil
	case "bits16", "bitarray16":
		return BitArray16, nil
	case "u16", "word":
		return U16, nil
	case "i16":
		return I16, nil
	case "u32", "dword":
		return U32, nil
	case "i32":
		return I32, nil
	case "f32", "float":
		return F32, nil
	case "f64", "double":
		return F64, nil
	}

	var size string
	switch {
	case strings.HasPrefix(name, "string[") && strings.HasSuffix(name, "]"):
		size = name[len("string[") : len(name)-1]
	case strings.HasPrefix(name, "string:"):
		size = name[len("string:"):]
	default:
		return DataType{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}

	words, err := strconv.Atoi(size)
	if err != nil {
		return DataType{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	t := String(words)
	if err := t.Validate(); err != nil {
		return DataType{}, err
	}

	return t, nil
}
