package device

import (
	"encoding/binary"
	"fmt"
)

// Space is the device address space of one CPU: its series, device table and frame limits.
// The zero value is not usable; build one with NewSpace.
type Space struct {
	Series Series
	Table  *Table
	Limits Limits
}

// NewSpace returns a Space for series using the default table and limits.
func NewSpace(series Series) Space {
	return Space{Series: series, Table: DefaultTable(), Limits: DefaultLimits}
}

// Code resolves the device of addr and checks that it exists on the series.
func (s Space) Code(addr Address) (Code, error) {
	c, ok := s.Table.Lookup(addr.Device)
	if !ok {
		return Code{}, &AddressError{Address: addr, Err: ErrUnknownDevice}
	}
	if c.Max(s.Series) == 0 {
		return Code{}, &AddressError{Address: addr, Err: fmt.Errorf("%w %s", ErrUnsupportedDevice, s.Series)}
	}

	return c, nil
}

// CheckRange validates count points starting at addr, counted in unit.
// Word-unit access to a bit device covers sixteen points per word.
func (s Space) CheckRange(addr Address, count int, unit Unit) error {
	c, err := s.Code(addr)
	if err != nil {
		return err
	}
	if count <= 0 {
		return &AddressError{Address: addr, Count: count, Err: ErrNoPoints}
	}
	if unit == UnitBit && !c.IsBit() {
		return &AddressError{Address: addr, Count: count, Err: ErrUnitMismatch}
	}

	span := uint64(count)
	if unit == UnitWord && c.IsBit() {
		span *= 16
	}
	limit := uint64(c.Max(s.Series))
	if uint64(addr.Offset)+span > limit {
		return &AddressError{Address: addr, Count: count, Limit: int(limit), Err: ErrOutOfRange} //nolint:gosec
	}

	return nil
}

// AppendSpec appends the device specification of addr: the device number followed by the
// device code, sized for the series.
func (s Space) AppendSpec(dst []byte, addr Address) ([]byte, error) {
	c, err := s.Code(addr)
	if err != nil {
		return dst, err
	}
	if addr.Offset >= c.Max(s.Series) {
		return dst, &AddressError{Address: addr, Count: 1, Limit: int(c.Max(s.Series)), Err: ErrOutOfRange}
	}

	return appendSpec(dst, s.Series, addr.Offset, c.Value), nil
}

// ParseSpec decodes one device specification from the front of src.
func (s Space) ParseSpec(src []byte) (Address, error) {
	size := s.Series.SpecSize()
	if len(src) < size {
		return Address{}, fmt.Errorf("%w: device specification needs %d bytes, have %d", ErrInvalidAddress, size, len(src))
	}

	var offset uint32
	var value uint16
	if s.Series == SeriesR {
		offset = binary.LittleEndian.Uint32(src)
		value = binary.LittleEndian.Uint16(src[4:])
	} else {
		offset = uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
		value = uint16(src[3])
	}

	c, ok := s.Table.ByValue(value)
	if !ok {
		return Address{Offset: offset}, &AddressError{
			Address: Address{Device: fmt.Sprintf("0x%02X", value), Offset: offset},
			Err:     ErrUnknownDevice,
		}
	}

	return Address{Device: c.Name, Offset: offset}, nil
}

func appendSpec(dst []byte, series Series, offset uint32, code uint16) []byte {
	if series == SeriesR {
		dst = binary.LittleEndian.AppendUint32(dst, offset)
		return binary.LittleEndian.AppendUint16(dst, code)
	}

	return append(dst, byte(offset), byte(offset>>8), byte(offset>>16), byte(code))
}
