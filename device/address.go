package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-slmp/plcdata"
)

// Address identifies one device point, for example D100 or X1F.
type Address struct {
	Device string
	Offset uint32
}

// Addr is a shorthand constructor for Address.
func Addr(dev string, offset uint32) Address {
	return Address{Device: strings.ToUpper(dev), Offset: offset}
}

// Add returns the address n points further.
func (a Address) Add(n uint32) Address {
	return Address{Device: a.Device, Offset: a.Offset + n}
}

// String formats the address using the numbering base of the default device table.
func (a Address) String() string {
	if c, ok := defaultTable.Lookup(a.Device); ok && c.Hex {
		return a.Device + strings.ToUpper(strconv.FormatUint(uint64(a.Offset), 16))
	}

	return a.Device + strconv.FormatUint(uint64(a.Offset), 10)
}

// ParseAddress parses an address such as "D100", "X1F" or "ZR2000" with the default table.
func ParseAddress(s string) (Address, error) {
	return defaultTable.ParseAddress(s)
}

// MustParseAddress is like ParseAddress but panics on error. It is intended for tests and constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}

	return a
}

// ParseAddress parses s using the device names and numbering bases of t.
func (t *Table) ParseAddress(s string) (Address, error) {
	text := strings.ToUpper(strings.TrimSpace(s))
	for _, name := range t.names {
		if !strings.HasPrefix(text, name) || len(text) == len(name) {
			continue
		}
		code := t.byName[name]
		base := 10
		if code.Hex {
			base = 16
		}
		offset, err := strconv.ParseUint(text[len(name):], base, 32)
		if err != nil {
			continue
		}

		return Address{Device: name, Offset: uint32(offset)}, nil
	}

	return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
}

// Point is a typed device point used by random access and monitor registration.
type Point struct {
	Address Address
	Type    plcdata.DataType
}

// NewPoint returns a Point at addr of type t.
func NewPoint(addr Address, t plcdata.DataType) Point {
	return Point{Address: addr, Type: t}
}

func (p Point) String() string {
	return p.Address.String() + ":" + p.Type.String()
}

// ParsePoint parses "D100:u32" style text. A missing type defaults to u16, or bool for bit devices.
func ParsePoint(s string) (Point, error) {
	addrText, typeText, hasType := strings.Cut(s, ":")
	addr, err := ParseAddress(addrText)
	if err != nil {
		return Point{}, err
	}
	if !hasType {
		if c, ok := defaultTable.Lookup(addr.Device); ok && c.IsBit() {
			return Point{Address: addr, Type: plcdata.Bool}, nil
		}
		return Point{Address: addr, Type: plcdata.U16}, nil
	}
	typ, err := plcdata.ParseDataType(typeText)
	if err != nil {
		return Point{}, err
	}

	return Point{Address: addr, Type: typ}, nil
}

// Range is a contiguous run of Count points starting at Start.
//
// Unit selects bit-unit access (one point per bit) or word-unit access (one point per word,
// sixteen bits at a time for bit devices).
type Range struct {
	Start Address
	Count int
	Unit  Unit
}

// WordRange returns a word-unit range.
func WordRange(start Address, count int) Range {
	return Range{Start: start, Count: count, Unit: UnitWord}
}

// BitRange returns a bit-unit range.
func BitRange(start Address, count int) Range {
	return Range{Start: start, Count: count, Unit: UnitBit}
}

func (r Range) String() string {
	return fmt.Sprintf("%s[%d %s]", r.Start, r.Count, r.Unit)
}
