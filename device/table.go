package device

import (
	"sort"
	"strings"
)

// Unit is the natural access unit of a device.
type Unit uint8

const (
	UnitBit Unit = iota + 1
	UnitWord
)

func (u Unit) String() string {
	switch u {
	case UnitBit:
		return "bit"
	case UnitWord:
		return "word"
	default:
		return "unknown"
	}
}

// Code describes one device type.
type Code struct {
	// Name is the device symbol, for example "D" or "ZR".
	Name string
	// Value is the binary device code sent on the wire.
	Value uint16
	Unit  Unit
	// Hex reports whether device numbers are written in hexadecimal (X, Y, B, W, ...).
	Hex bool
	// MaxQ and MaxR are the number of addressable points per series; zero means unavailable.
	MaxQ uint32
	MaxR uint32
}

// Max returns the number of addressable points on series.
func (c Code) Max(series Series) uint32 {
	if series == SeriesR {
		return c.MaxR
	}

	return c.MaxQ
}

// IsBit reports whether the device is bit-addressed.
func (c Code) IsBit() bool { return c.Unit == UnitBit }

var defaultCodes = []Code{
	{Name: "X", Value: 0x9C, Unit: UnitBit, Hex: true, MaxQ: 8192, MaxR: 12288},
	{Name: "Y", Value: 0x9D, Unit: UnitBit, Hex: true, MaxQ: 8192, MaxR: 12288},
	{Name: "M", Value: 0x90, Unit: UnitBit, MaxQ: 61440, MaxR: 1048576},
	{Name: "L", Value: 0x92, Unit: UnitBit, MaxQ: 32768, MaxR: 1048576},
	{Name: "F", Value: 0x93, Unit: UnitBit, MaxQ: 32768, MaxR: 32768},
	{Name: "V", Value: 0x94, Unit: UnitBit, MaxQ: 32768, MaxR: 32768},
	{Name: "B", Value: 0xA0, Unit: UnitBit, Hex: true, MaxQ: 61440, MaxR: 1048576},
	{Name: "D", Value: 0xA8, Unit: UnitWord, MaxQ: 4184064, MaxR: 5242880},
	{Name: "W", Value: 0xB4, Unit: UnitWord, Hex: true, MaxQ: 4184064, MaxR: 5242880},
	{Name: "S", Value: 0x98, Unit: UnitBit, MaxQ: 8192, MaxR: 16},
	{Name: "Z", Value: 0xCC, Unit: UnitWord, MaxQ: 20, MaxR: 24},
	{Name: "R", Value: 0xAF, Unit: UnitWord, MaxQ: 32768, MaxR: 32768},
	{Name: "TS", Value: 0xC1, Unit: UnitBit, MaxQ: 32768, MaxR: 1048576},
	{Name: "TC", Value: 0xC0, Unit: UnitBit, MaxQ: 32768, MaxR: 1048576},
	{Name: "TN", Value: 0xC2, Unit: UnitWord, MaxQ: 32768, MaxR: 1048576},
	{Name: "SS", Value: 0xC7, Unit: UnitBit, MaxQ: 32768, MaxR: 1048576},
	{Name: "SC", Value: 0xC6, Unit: UnitBit, MaxQ: 32768, MaxR: 1048576},
	{Name: "SN", Value: 0xC8, Unit: UnitWord, MaxQ: 32768, MaxR: 1048576},
	{Name: "CS", Value: 0xC4, Unit: UnitBit, MaxQ: 32768, MaxR: 1048576},
	{Name: "CC", Value: 0xC3, Unit: UnitBit, MaxQ: 32768, MaxR: 1048576},
	{Name: "CN", Value: 0xC5, Unit: UnitWord, MaxQ: 32768, MaxR: 1048576},
	{Name: "SB", Value: 0xA1, Unit: UnitBit, Hex: true, MaxQ: 32768, MaxR: 1048576},
	{Name: "SD", Value: 0xA9, Unit: UnitWord, MaxQ: 2048, MaxR: 4096},
	{Name: "SM", Value: 0x91, Unit: UnitBit, MaxQ: 2048, MaxR: 4096},
	{Name: "SW", Value: 0xB5, Unit: UnitWord, Hex: true, MaxQ: 32768, MaxR: 1048576},
	{Name: "DX", Value: 0xA2, Unit: UnitBit, Hex: true, MaxQ: 8192, MaxR: 12288},
	{Name: "DY", Value: 0xA3, Unit: UnitBit, Hex: true, MaxQ: 8192, MaxR: 12288},
	{Name: "ZR", Value: 0xB0, Unit: UnitWord, MaxQ: 4184064, MaxR: 134217728},
}

// Table maps device names and binary codes to their descriptions.
// A Table is immutable once built and safe for concurrent use.
type Table struct {
	byName  map[string]Code
	byValue map[uint16]Code
	// names sorted longest first so that "SB" wins over "S" when parsing
	names []string
}

var defaultTable = NewTable(defaultCodes...)

// DefaultTable returns the built-in device table.
// The ranges are those of the largest CPU of each series; use With to narrow them for a specific CPU.
func DefaultTable() *Table { return defaultTable }

// NewTable builds a table from codes. Later entries replace earlier ones with the same name.
func NewTable(codes ...Code) *Table {
	t := &Table{
		byName:  make(map[string]Code, len(codes)),
		byValue: make(map[uint16]Code, len(codes)),
	}
	for _, c := range codes {
		c.Name = strings.ToUpper(c.Name)
		if old, ok := t.byName[c.Name]; ok {
			delete(t.byValue, old.Value)
		}
		t.byName[c.Name] = c
		t.byValue[c.Value] = c
	}

	t.names = make([]string, 0, len(t.byName))
	for name := range t.byName {
		t.names = append(t.names, name)
	}
	sort.Slice(t.names, func(i, j int) bool {
		if len(t.names[i]) != len(t.names[j]) {
			return len(t.names[i]) > len(t.names[j])
		}
		return t.names[i] < t.names[j]
	})

	return t
}

// With returns a copy of t where codes override or extend the existing entries.
func (t *Table) With(codes ...Code) *Table {
	return NewTable(append(t.Codes(), codes...)...)
}

// Lookup returns the code registered under name, ignoring case.
func (t *Table) Lookup(name string) (Code, bool) {
	c, ok := t.byName[strings.ToUpper(name)]
	return c, ok
}

// ByValue returns the code registered for the binary device code v.
func (t *Table) ByValue(v uint16) (Code, bool) {
	c, ok := t.byValue[v]
	return c, ok
}

// Codes returns all entries ordered by name.
func (t *Table) Codes() []Code {
	codes := make([]Code, 0, len(t.byName))
	for _, c := range t.byName {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].Name < codes[j].Name })

	return codes
}
