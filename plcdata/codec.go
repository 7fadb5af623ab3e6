package plcdata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
)

// Encode converts v into its device memory words.
func Encode(v Value) ([]uint16, error) {
	if err := v.typ.Validate(); err != nil {
		return nil, err
	}

	switch v.typ.kind {
	case KindBool, KindBitArray16, KindU16, KindI16:
		return []uint16{uint16(v.raw)}, nil //nolint:gosec
	case KindU32, KindI32, KindF32:
		return []uint16{uint16(v.raw), uint16(v.raw >> 16)}, nil //nolint:gosec
	case KindF64:
		return []uint16{uint16(v.raw), uint16(v.raw >> 16), uint16(v.raw >> 32), uint16(v.raw >> 48)}, nil //nolint:gosec
	case KindString:
		raw, err := encodeShiftJIS(v.text, v.typ.Bytes())
		if err != nil {
			return nil, &MarshalError{Type: v.typ, Err: err}
		}
		padded := make([]byte, v.typ.Bytes())
		copy(padded, raw)

		return BytesToWords(padded)
	default:
		return nil, &MarshalError{Type: v.typ, Err: ErrInvalidType}
	}
}

// Decode converts the first t.Words() words into a value of type t.
// Extra trailing words are ignored.
func Decode(words []uint16, t DataType) (Value, error) {
	if err := t.Validate(); err != nil {
		return Value{}, err
	}
	if len(words) < t.Words() {
		return Value{}, insufficient(t, t.Words(), len(words), "")
	}

	switch t.kind {
	case KindBool:
		return NewBool(words[0]&0x0001 != 0), nil
	case KindBitArray16, KindU16, KindI16:
		return Value{typ: t, raw: uint64(words[0])}, nil
	case KindU32, KindI32, KindF32:
		return Value{typ: t, raw: uint64(words[0]) | uint64(words[1])<<16}, nil
	case KindF64:
		raw := uint64(words[0]) | uint64(words[1])<<16 | uint64(words[2])<<32 | uint64(words[3])<<48
		return Value{typ: t, raw: raw}, nil
	case KindString:
		raw := WordsToBytes(words[:t.Words()])
		if i := bytes.IndexByte(raw, 0x00); i >= 0 {
			raw = raw[:i]
		}
		text, err := japanese.ShiftJIS.NewDecoder().Bytes(raw)
		if err != nil {
			return Value{}, &MarshalError{Type: t, Err: err}
		}

		return Value{typ: t, text: string(text)}, nil
	default:
		return Value{}, &MarshalError{Type: t, Err: ErrInvalidType}
	}
}

// EncodeBytes returns the little-endian byte form of v, as carried in request payloads.
func EncodeBytes(v Value) ([]byte, error) {
	words, err := Encode(v)
	if err != nil {
		return nil, err
	}

	return WordsToBytes(words), nil
}

// DecodeBytes decodes a value of type t from little-endian bytes.
func DecodeBytes(b []byte, t DataType) (Value, error) {
	if len(b) < t.Bytes() {
		return Value{}, insufficient(t, t.Bytes(), len(b), "bytes")
	}
	words, err := BytesToWords(b[:t.Bytes()])
	if err != nil {
		return Value{}, err
	}

	return Decode(words, t)
}

// WordsToBytes serialises words little-endian.
func WordsToBytes(words []uint16) []byte {
	return AppendWords(make([]byte, 0, len(words)*2), words...)
}

// AppendWords appends the little-endian form of words to dst.
func AppendWords(dst []byte, words ...uint16) []byte {
	for _, w := range words {
		dst = binary.LittleEndian.AppendUint16(dst, w)
	}

	return dst
}

// BytesToWords parses little-endian words. b must have an even length.
func BytesToWords(b []byte) ([]uint16, error) {
	if len(b)%2 != 0 {
		return nil, &MarshalError{Type: U16, Need: len(b) + 1, Have: len(b), Unit: "bytes", Err: ErrInsufficientData}
	}
	words := make([]uint16, len(b)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(b[i*2:])
	}

	return words, nil
}

// encodeShiftJIS encodes s and truncates it to at most limit bytes without splitting a character.
func encodeShiftJIS(s string, limit int) ([]byte, error) {
	enc := japanese.ShiftJIS.NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}
	if len(out) <= limit {
		return out, nil
	}

	out = out[:0]
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		ch, err := enc.String(string(r))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
		}
		if len(out)+len(ch) > limit {
			break
		}
		out = append(out, ch...)
		s = s[size:]
	}

	return out, nil
}
