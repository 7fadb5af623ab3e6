package plcdata

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData indicates that fewer words or bytes are available than the type needs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidType indicates an unknown data type or an out-of-range string length.
	ErrInvalidType = errors.New("invalid data type")

	// ErrUnencodable indicates that a string contains characters that Shift-JIS cannot represent.
	ErrUnencodable = errors.New("text is not representable in Shift-JIS")

	// ErrInvalidText indicates that a textual value could not be parsed for the requested type.
	ErrInvalidText = errors.New("invalid value text")
)

// MarshalError reports a failed conversion between a typed value and device memory.
type MarshalError struct {
	Type DataType
	// Need and Have are the required and available sizes, in words unless Unit says otherwise.
	Need int
	Have int
	Unit string
	Err  error
}

func (e *MarshalError) Error() string {
	if e.Need > 0 || e.Have > 0 {
		unit := e.Unit
		if unit == "" {
			unit = "words"
		}
		return fmt.Sprintf("plcdata: %s: %v (need %d %s, have %d)", e.Type, e.Err, e.Need, unit, e.Have)
	}

	return fmt.Sprintf("plcdata: %s: %v", e.Type, e.Err)
}

func (e *MarshalError) Unwrap() error { return e.Err }

func insufficient(t DataType, need, have int, unit string) error {
	return &MarshalError{Type: t, Need: need, Have: have, Unit: unit, Err: ErrInsufficientData}
}
