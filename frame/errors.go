package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrBadSubheader indicates that the frame does not start with a 4E subheader.
	ErrBadSubheader = errors.New("bad 4E subheader")

	// ErrLengthTooLarge indicates a data length field above MaxDataLength.
	ErrLengthTooLarge = errors.New("data length exceeds maximum")

	// ErrLengthTooSmall indicates a data length field too short for the mandatory fields.
	ErrLengthTooSmall = errors.New("data length shorter than mandatory fields")

	// ErrTruncated indicates that the input ends before the frame is complete.
	ErrTruncated = errors.New("truncated frame")

	// ErrTrailingData indicates bytes after a complete frame where exactly one frame was expected.
	ErrTrailingData = errors.New("trailing data after frame")

	// ErrIncomplete is returned by Decoder.Next while more bytes are needed. It is not a FrameError.
	ErrIncomplete = errors.New("incomplete frame")
)

// FrameError reports a frame that cannot be decoded.
type FrameError struct {
	// Offset is the byte position where the problem was detected.
	Offset int
	Err    error
	Detail string
}

func (e *FrameError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("frame: %v at offset %d: %s", e.Err, e.Offset, e.Detail)
	}

	return fmt.Sprintf("frame: %v at offset %d", e.Err, e.Offset)
}

func (e *FrameError) Unwrap() error { return e.Err }

func frameErr(offset int, err error, format string, args ...any) error {
	return &FrameError{Offset: offset, Err: err, Detail: fmt.Sprintf(format, args...)}
}
