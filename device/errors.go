package device

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDevice indicates a device name or code that is not in the device table.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrUnsupportedDevice indicates a device that exists but is not available on the selected CPU series.
	ErrUnsupportedDevice = errors.New("device not supported by CPU series")

	// ErrOutOfRange indicates that offset and count exceed the device's addressable range.
	ErrOutOfRange = errors.New("address out of device range")

	// ErrTooManyPoints indicates a request that exceeds the per-frame point limit.
	ErrTooManyPoints = errors.New("too many points for one frame")

	// ErrNoPoints indicates a request with no points.
	ErrNoPoints = errors.New("no points requested")

	// ErrUnitMismatch indicates bit-unit access to a word device.
	ErrUnitMismatch = errors.New("bit access to a word device")

	// ErrInvalidAddress indicates an address string that cannot be parsed.
	ErrInvalidAddress = errors.New("invalid device address")

	// ErrInvalidSeries indicates an unknown CPU series.
	ErrInvalidSeries = errors.New("invalid CPU series")
)

// AddressError reports an address or point count rejected before any bytes are sent.
type AddressError struct {
	Address Address
	// Count is the number of points involved, Limit the bound that was exceeded, when applicable.
	Count int
	Limit int
	Err   error
}

func (e *AddressError) Error() string {
	switch {
	case e.Limit > 0:
		return fmt.Sprintf("device: %s: %v (%d points, limit %d)", e.Address, e.Err, e.Count, e.Limit)
	case e.Count > 0:
		return fmt.Sprintf("device: %s: %v (%d points)", e.Address, e.Err, e.Count)
	default:
		return fmt.Sprintf("device: %s: %v", e.Address, e.Err)
	}
}

func (e *AddressError) Unwrap() error { return e.Err }
