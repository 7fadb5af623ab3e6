package plcdata

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseValue parses text into a value of type t.
//
// Integers accept Go literal prefixes (0x, 0b, 0o). Bool accepts 1/0, true/false and on/off.
// BitArray16 accepts an unsigned integer literal whose bit 0 is the first point.
func ParseValue(t DataType, text string) (Value, error) {
	if err := t.Validate(); err != nil {
		return Value{}, err
	}
	s := strings.TrimSpace(text)

	switch t.kind {
	case KindBool:
		switch strings.ToLower(s) {
		case "1", "true", "on":
			return NewBool(true), nil
		case "0", "false", "off":
			return NewBool(false), nil
		}
		return Value{}, invalidText(t, text, nil)
	case KindBitArray16, KindU16:
		n, err := strconv.ParseUint(s, 0, 16)
		if err != nil {
			return Value{}, invalidText(t, text, err)
		}
		return Value{typ: t, raw: n}, nil
	case KindI16:
		n, err := strconv.ParseInt(s, 0, 16)
		if err != nil {
			return Value{}, invalidText(t, text, err)
		}
		return NewI16(int16(n)), nil
	case KindU32:
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return Value{}, invalidText(t, text, err)
		}
		return NewU32(uint32(n)), nil
	case KindI32:
		n, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return Value{}, invalidText(t, text, err)
		}
		return NewI32(int32(n)), nil
	case KindF32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, invalidText(t, text, err)
		}
		return NewF32(float32(f)), nil
	case KindF64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, invalidText(t, text, err)
		}
		return NewF64(f), nil
	case KindString:
		return NewString(text, t.Words()), nil
	default:
		return Value{}, &MarshalError{Type: t, Err: ErrInvalidType}
	}
}

func invalidText(t DataType, text string, cause error) error {
	if cause != nil {
		return &MarshalError{Type: t, Err: fmt.Errorf("%w %q: %v", ErrInvalidText, text, cause)}
	}

	return &MarshalError{Type: t, Err: fmt.Errorf("%w %q", ErrInvalidText, text)}
}
