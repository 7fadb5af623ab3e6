package device

import (
	"fmt"
	"strings"
)

// Series selects the CPU family, which decides the device specification format and subcommands.
type Series uint8

const (
	// SeriesQ covers MELSEC-Q and MELSEC-L CPUs: 3-byte device number and 1-byte device code.
	SeriesQ Series = iota + 1
	// SeriesR covers MELSEC iQ-R CPUs: 4-byte device number and 2-byte device code.
	SeriesR
)

// ParseSeries accepts "q", "l", "ql" for SeriesQ and "r", "iq-r", "iqr" for SeriesR.
func ParseSeries(s string) (Series, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "q", "l", "ql", "q/l":
		return SeriesQ, nil
	case "r", "iq-r", "iqr":
		return SeriesR, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSeries, s)
	}
}

func (s Series) Validate() error {
	if s != SeriesQ && s != SeriesR {
		return fmt.Errorf("%w: %d", ErrInvalidSeries, s)
	}

	return nil
}

func (s Series) String() string {
	switch s {
	case SeriesQ:
		return "Q/L"
	case SeriesR:
		return "iQ-R"
	default:
		return "unknown"
	}
}

// SpecSize returns the encoded size of one device specification.
func (s Series) SpecSize() int {
	if s == SeriesR {
		return 6
	}

	return 4
}

// WordSubcommand returns the subcommand for word-unit device access.
func (s Series) WordSubcommand() uint16 {
	if s == SeriesR {
		return 0x0002
	}

	return 0x0000
}

// BitSubcommand returns the subcommand for bit-unit device access.
func (s Series) BitSubcommand() uint16 {
	if s == SeriesR {
		return 0x0003
	}

	return 0x0001
}

// Subcommand returns BitSubcommand when bit is true, otherwise WordSubcommand.
func (s Series) Subcommand(bit bool) uint16 {
	if bit {
		return s.BitSubcommand()
	}

	return s.WordSubcommand()
}
