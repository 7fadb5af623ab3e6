package command

import (
	"encoding/binary"

	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/plcdata"
)

// bulkPoints returns the wire point count and unit of a bulk access of count values of t.
func bulkPoints(t plcdata.DataType, count int) (int, device.Unit) {
	if t.IsBit() {
		return count, device.UnitBit
	}

	return count * t.Words(), device.UnitWord
}

func checkBulk(space device.Space, start device.Address, points int, unit device.Unit) error {
	limit := space.Limits.BulkWords
	if unit == device.UnitBit {
		limit = space.Limits.BulkBits
	}
	if points > limit {
		return &device.AddressError{Address: start, Count: points, Limit: limit, Err: device.ErrTooManyPoints}
	}

	return space.CheckRange(start, points, unit)
}

func bulkHeader(space device.Space, start device.Address, points int) ([]byte, error) {
	payload, err := space.AppendSpec(make([]byte, 0, space.Series.SpecSize()+2), start)
	if err != nil {
		return nil, err
	}

	return binary.LittleEndian.AppendUint16(payload, uint16(points)), nil //nolint:gosec
}

func encodeBulkRead(r BulkRead, space device.Space) (Packet, error) {
	if err := r.Type.Validate(); err != nil {
		return Packet{}, invalidArg(r, "%v", err)
	}
	points, unit := bulkPoints(r.Type, r.Count)
	if err := checkBulk(space, r.Start, points, unit); err != nil {
		return Packet{}, err
	}
	payload, err := bulkHeader(space, r.Start, points)
	if err != nil {
		return Packet{}, err
	}

	return Packet{
		Command:    CodeBulkRead,
		Subcommand: space.Series.Subcommand(unit == device.UnitBit),
		Payload:    payload,
	}, nil
}

func decodeBulkRead(r BulkRead, _ device.Space, data []byte) (*Result, error) {
	points, unit := bulkPoints(r.Type, r.Count)

	if unit == device.UnitBit {
		if want := (points + 1) / 2; len(data) != want {
			return nil, malformed(r, "%d bytes for %d bit points, want %d", len(data), points, want)
		}
		bits, err := plcdata.UnpackNibbles(data, points)
		if err != nil {
			return nil, err
		}
		values := make([]plcdata.Value, len(bits))
		for i, b := range bits {
			values[i] = plcdata.NewBool(b)
		}

		return &Result{Bits: bits, Values: values}, nil
	}

	if len(data) != points*2 {
		return nil, malformed(r, "%d bytes for %d words", len(data), points)
	}
	words, err := plcdata.BytesToWords(data)
	if err != nil {
		return nil, err
	}
	values, err := decodeConsecutive(words, r.Type, r.Count)
	if err != nil {
		return nil, err
	}

	return &Result{Words: words, Values: values}, nil
}

func decodeConsecutive(words []uint16, t plcdata.DataType, count int) ([]plcdata.Value, error) {
	values := make([]plcdata.Value, count)
	for i := range values {
		v, err := plcdata.Decode(words[i*t.Words():], t)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	return values, nil
}

func encodeBulkWrite(r BulkWrite, space device.Space) (Packet, error) {
	if len(r.Values) == 0 {
		return Packet{}, &device.AddressError{Address: r.Start, Err: device.ErrNoPoints}
	}

	bit := r.Values[0].Type().IsBit()
	var body []byte
	var points int
	if bit {
		bits := make([]bool, len(r.Values))
		for i, v := range r.Values {
			if !v.Type().IsBit() {
				return Packet{}, invalidArg(r, "value %d is %s, bit and word values cannot be mixed", i, v.Type())
			}
			bits[i] = v.Bool()
		}
		points, body = len(bits), plcdata.PackNibbles(bits)
	} else {
		words := make([]uint16, 0, len(r.Values))
		for i, v := range r.Values {
			if v.Type().IsBit() {
				return Packet{}, invalidArg(r, "value %d is bool, bit and word values cannot be mixed", i)
			}
			enc, err := plcdata.Encode(v)
			if err != nil {
				return Packet{}, invalidArg(r, "value %d: %v", i, err)
			}
			words = append(words, enc...)
		}
		points, body = len(words), plcdata.WordsToBytes(words)
	}

	unit := device.UnitWord
	if bit {
		unit = device.UnitBit
	}
	if err := checkBulk(space, r.Start, points, unit); err != nil {
		return Packet{}, err
	}
	payload, err := bulkHeader(space, r.Start, points)
	if err != nil {
		return Packet{}, err
	}

	return Packet{
		Command:    CodeBulkWrite,
		Subcommand: space.Series.Subcommand(bit),
		Payload:    append(payload, body...),
	}, nil
}
