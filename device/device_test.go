package device

import (
	"errors"
	"testing"

	"github.com/arloliu/go-slmp/plcdata"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		input    string
		expected Address
		text     string
	}{
		{"D100", Addr("D", 100), "D100"},
		{"d100", Addr("D", 100), "D100"},
		{"X1F", Addr("X", 0x1F), "X1F"},
		{"Y0", Addr("Y", 0), "Y0"},
		{"B7FF", Addr("B", 0x7FF), "B7FF"},
		{"W10", Addr("W", 0x10), "W10"},
		{"SB1F", Addr("SB", 0x1F), "SB1F"},
		{"SW100", Addr("SW", 0x100), "SW100"},
		{"SM400", Addr("SM", 400), "SM400"},
		{"SD210", Addr("SD", 210), "SD210"},
		{"ZR2000", Addr("ZR", 2000), "ZR2000"},
		{"Z5", Addr("Z", 5), "Z5"},
		{"DX10", Addr("DX", 0x10), "DX10"},
		{"TN3", Addr("TN", 3), "TN3"},
		{" CN12 ", Addr("CN", 12), "CN12"},
	}

	for _, tt := range tests {
		addr, err := ParseAddress(tt.input)
		require.NoError(err, tt.input)
		require.Equal(tt.expected, addr, tt.input)
		require.Equal(tt.text, addr.String(), tt.input)
	}

	for _, bad := range []string{"", "D", "Q100", "DZ", "M1F", "100"} {
		_, err := ParseAddress(bad)
		require.ErrorIs(err, ErrInvalidAddress, bad)
	}
}

func TestParsePoint(t *testing.T) {
	require := require.New(t)

	p, err := ParsePoint("D100:f32")
	require.NoError(err)
	require.Equal(NewPoint(Addr("D", 100), plcdata.F32), p)
	require.Equal("D100:f32", p.String())

	p, err = ParsePoint("M10")
	require.NoError(err)
	require.Equal(plcdata.Bool, p.Type)

	p, err = ParsePoint("W1A")
	require.NoError(err)
	require.Equal(plcdata.U16, p.Type)

	_, err = ParsePoint("D1:nope")
	require.Error(err)
}

func TestSpace_AppendSpec(t *testing.T) {
	require := require.New(t)

	q := NewSpace(SeriesQ)
	spec, err := q.AppendSpec(nil, Addr("D", 0x123456))
	require.NoError(err)
	require.Equal([]byte{0x56, 0x34, 0x12, 0xA8}, spec)

	r := NewSpace(SeriesR)
	spec, err = r.AppendSpec([]byte{0xFF}, Addr("X", 0x1F))
	require.NoError(err)
	require.Equal([]byte{0xFF, 0x1F, 0x00, 0x00, 0x00, 0x9C, 0x00}, spec)

	addr, err := r.ParseSpec(spec[1:])
	require.NoError(err)
	require.Equal(Addr("X", 0x1F), addr)

	addr, err = q.ParseSpec([]byte{0x64, 0x00, 0x00, 0xA8})
	require.NoError(err)
	require.Equal(Addr("D", 100), addr)

	_, err = q.ParseSpec([]byte{0x00, 0x00, 0x00, 0x01})
	require.ErrorIs(err, ErrUnknownDevice)

	_, err = q.ParseSpec([]byte{0x00})
	require.ErrorIs(err, ErrInvalidAddress)
}

func TestSpace_RejectsUnknownDevice(t *testing.T) {
	require := require.New(t)

	space := NewSpace(SeriesR)
	_, err := space.AppendSpec(nil, Address{Device: "QQ", Offset: 1})
	require.ErrorIs(err, ErrUnknownDevice)

	var aerr *AddressError
	require.True(errors.As(err, &aerr))
	require.Equal("QQ", aerr.Address.Device)

	narrowed := space.Table.With(Code{Name: "R", Value: 0xAF, Unit: UnitWord, MaxQ: 32768})
	space.Table = narrowed
	_, err = space.AppendSpec(nil, Addr("R", 0))
	require.ErrorIs(err, ErrUnsupportedDevice)
}

func TestSpace_CheckRange(t *testing.T) {
	require := require.New(t)

	space := NewSpace(SeriesQ)
	table := space.Table.With(Code{Name: "D", Value: 0xA8, Unit: UnitWord, MaxQ: 1000, MaxR: 1000})
	space.Table = table

	tests := []struct {
		description string
		addr        Address
		count       int
		unit        Unit
		expectErr   error
	}{
		{"fits exactly", Addr("D", 990), 10, UnitWord, nil},
		{"one past end", Addr("D", 991), 10, UnitWord, ErrOutOfRange},
		{"zero count", Addr("D", 0), 0, UnitWord, ErrNoPoints},
		{"bit access to word device", Addr("D", 0), 1, UnitBit, ErrUnitMismatch},
		{"word access to bit device", Addr("X", 0), 512, UnitWord, nil},
		{"word access to bit device past end", Addr("X", 0), 513, UnitWord, ErrOutOfRange},
		{"bit access to bit device", Addr("M", 61439), 1, UnitBit, nil},
		{"unknown device", Address{Device: "AA"}, 1, UnitWord, ErrUnknownDevice},
	}

	for _, tt := range tests {
		err := space.CheckRange(tt.addr, tt.count, tt.unit)
		if tt.expectErr == nil {
			require.NoError(err, tt.description)
			continue
		}
		require.ErrorIs(err, tt.expectErr, tt.description)
	}
}

func TestSeries(t *testing.T) {
	require := require.New(t)

	s, err := ParseSeries("iQ-R")
	require.NoError(err)
	require.Equal(SeriesR, s)
	require.Equal(6, s.SpecSize())
	require.Equal(uint16(0x0002), s.Subcommand(false))
	require.Equal(uint16(0x0003), s.Subcommand(true))

	s, err = ParseSeries("L")
	require.NoError(err)
	require.Equal(SeriesQ, s)
	require.Equal(4, s.SpecSize())
	require.Equal(uint16(0x0000), s.WordSubcommand())
	require.Equal(uint16(0x0001), s.BitSubcommand())

	_, err = ParseSeries("fx")
	require.ErrorIs(err, ErrInvalidSeries)
	require.Error(Series(9).Validate())
}

func TestDefaultTable(t *testing.T) {
	require := require.New(t)

	table := DefaultTable()
	require.Len(table.Codes(), 28)

	c, ok := table.ByValue(0xB0)
	require.True(ok)
	require.Equal("ZR", c.Name)

	c, ok = table.Lookup("sw")
	require.True(ok)
	require.True(c.Hex)
	require.False(c.IsBit())
}

func TestLimitCosts(t *testing.T) {
	require := require.New(t)

	require.Equal(1920, RandomWriteCost(160, 0))
	require.Equal(26, RandomWriteCost(1, 1))
	require.Equal(960, BlockWriteCost(10, 920))
}
