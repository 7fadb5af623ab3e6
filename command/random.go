package command

import (
	"encoding/binary"

	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/plcdata"
)

// slot locates the words of one caller point in a random access layout.
type slot struct {
	dword bool
	index int
	n     int
}

// randomLayout is the wire layout of a random read or monitor registration: single-word access
// points first, then double-word access points. Multi-word values are split into consecutive
// single-word points.
type randomLayout struct {
	words  []device.Address
	dwords []device.Address
	slots  []slot
}

func checkPoint(req Request, space device.Space, p device.Point) error {
	if err := p.Type.Validate(); err != nil {
		return invalidArg(req, "point %s: %v", p, err)
	}
	if p.Type.IsBit() {
		return space.CheckRange(p.Address, 1, device.UnitBit)
	}

	return space.CheckRange(p.Address, p.Type.Words(), device.UnitWord)
}

func planRandom(req Request, space device.Space, points []device.Point, limit int) (*randomLayout, error) {
	if len(points) == 0 {
		return nil, &device.AddressError{Err: device.ErrNoPoints}
	}

	l := &randomLayout{slots: make([]slot, len(points))}
	for i, p := range points {
		if err := checkPoint(req, space, p); err != nil {
			return nil, err
		}

		if p.Type.IsDoubleWord() {
			l.slots[i] = slot{dword: true, index: len(l.dwords), n: 1}
			l.dwords = append(l.dwords, p.Address)
			continue
		}
		n := p.Type.Words()
		l.slots[i] = slot{index: len(l.words), n: n}
		for w := range n {
			l.words = append(l.words, p.Address.Add(uint32(w))) //nolint:gosec
		}
	}

	total := len(l.words) + len(l.dwords)
	if total > limit || len(l.words) > 0xFF || len(l.dwords) > 0xFF {
		return nil, &device.AddressError{Address: points[0].Address, Count: total, Limit: limit, Err: device.ErrTooManyPoints}
	}

	return l, nil
}

func (l *randomLayout) appendTo(dst []byte, space device.Space) ([]byte, error) {
	dst = append(dst, byte(len(l.words)), byte(len(l.dwords)))
	var err error
	for _, addr := range l.words {
		if dst, err = space.AppendSpec(dst, addr); err != nil {
			return nil, err
		}
	}
	for _, addr := range l.dwords {
		if dst, err = space.AppendSpec(dst, addr); err != nil {
			return nil, err
		}
	}

	return dst, nil
}

func (l *randomLayout) payloadSize(space device.Space) int {
	return 2 + (len(l.words)+len(l.dwords))*space.Series.SpecSize()
}

// decode zips the positional response values back onto the caller's points.
func (l *randomLayout) decode(req Request, points []device.Point, data []byte) ([]plcdata.Value, error) {
	want := len(l.words)*2 + len(l.dwords)*4
	if len(data) != want {
		return nil, malformed(req, "%d bytes for %d word and %d double-word points, want %d",
			len(data), len(l.words), len(l.dwords), want)
	}
	all, err := plcdata.BytesToWords(data)
	if err != nil {
		return nil, err
	}
	words, dwords := all[:len(l.words)], all[len(l.words):]

	values := make([]plcdata.Value, len(points))
	for i, p := range points {
		s := l.slots[i]
		src := words[s.index : s.index+s.n]
		if s.dword {
			src = dwords[s.index*2 : s.index*2+2]
		}
		if values[i], err = plcdata.Decode(src, p.Type); err != nil {
			return nil, err
		}
	}

	return values, nil
}

func encodeRandomRead(r RandomRead, space device.Space) (Packet, error) {
	l, err := planRandom(r, space, r.Points, space.Limits.RandomReadPoints)
	if err != nil {
		return Packet{}, err
	}
	payload, err := l.appendTo(make([]byte, 0, l.payloadSize(space)), space)
	if err != nil {
		return Packet{}, err
	}

	return Packet{Command: CodeRandomRead, Subcommand: space.Series.WordSubcommand(), Payload: payload}, nil
}

func decodeRandomRead(r RandomRead, space device.Space, data []byte) (*Result, error) {
	l, err := planRandom(r, space, r.Points, space.Limits.RandomReadPoints)
	if err != nil {
		return nil, err
	}
	values, err := l.decode(r, r.Points, data)
	if err != nil {
		return nil, err
	}

	return &Result{Values: values}, nil
}

func encodeMonitorRegister(r MonitorRegister, space device.Space) (Packet, error) {
	l, err := planRandom(r, space, r.Points, space.Limits.MonitorPoints)
	if err != nil {
		return Packet{}, err
	}
	payload, err := l.appendTo(make([]byte, 0, l.payloadSize(space)), space)
	if err != nil {
		return Packet{}, err
	}

	return Packet{Command: CodeMonitorRegister, Subcommand: space.Series.WordSubcommand(), Payload: payload}, nil
}

func encodeMonitorRead(r MonitorRead, space device.Space) (Packet, error) {
	if _, err := planRandom(r, space, r.Points, space.Limits.MonitorPoints); err != nil {
		return Packet{}, err
	}

	return Packet{Command: CodeMonitorRead}, nil
}

func decodeMonitorRead(r MonitorRead, space device.Space, data []byte) (*Result, error) {
	l, err := planRandom(r, space, r.Points, space.Limits.MonitorPoints)
	if err != nil {
		return nil, err
	}
	values, err := l.decode(r, r.Points, data)
	if err != nil {
		return nil, err
	}

	return &Result{Values: values}, nil
}

func splitRandomWrite(r RandomWrite) (bits, words []DeviceValue) {
	for _, dv := range r.Values {
		if dv.Value.Type().IsBit() {
			bits = append(bits, dv)
		} else {
			words = append(words, dv)
		}
	}

	return bits, words
}

func randomWritePackets(r RandomWrite) int {
	bits, words := splitRandomWrite(r)
	n := 0
	if len(words) > 0 {
		n++
	}
	if len(bits) > 0 {
		n++
	}

	return n
}

// encodeRandomWrite returns the word-unit packet first, then the bit-unit packet.
func encodeRandomWrite(r RandomWrite, space device.Space) ([]Packet, error) {
	if len(r.Values) == 0 {
		return nil, &device.AddressError{Err: device.ErrNoPoints}
	}
	bits, words := splitRandomWrite(r)

	var packets []Packet
	if len(words) > 0 {
		p, err := encodeRandomWriteWords(r, space, words)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}
	if len(bits) > 0 {
		p, err := encodeRandomWriteBits(space, bits)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}

	return packets, nil
}

func encodeRandomWriteWords(r RandomWrite, space device.Space, values []DeviceValue) (Packet, error) {
	var singles, doubles []byte
	nw, nd := 0, 0
	for _, dv := range values {
		p := dv.point()
		if err := checkPoint(r, space, p); err != nil {
			return Packet{}, err
		}
		enc, err := plcdata.Encode(dv.Value)
		if err != nil {
			return Packet{}, invalidArg(r, "point %s: %v", p, err)
		}

		if p.Type.IsDoubleWord() {
			if doubles, err = space.AppendSpec(doubles, p.Address); err != nil {
				return Packet{}, err
			}
			doubles = plcdata.AppendWords(doubles, enc...)
			nd++
			continue
		}
		for w, word := range enc {
			if singles, err = space.AppendSpec(singles, p.Address.Add(uint32(w))); err != nil { //nolint:gosec
				return Packet{}, err
			}
			singles = binary.LittleEndian.AppendUint16(singles, word)
			nw++
		}
	}

	limit := space.Limits.RandomWriteWeight
	if cost := device.RandomWriteCost(nw, nd); cost > limit || nw > 0xFF || nd > 0xFF {
		return Packet{}, &device.AddressError{Address: values[0].Address, Count: nw + nd, Limit: limit, Err: device.ErrTooManyPoints}
	}

	payload := make([]byte, 0, 2+len(singles)+len(doubles))
	payload = append(payload, byte(nw), byte(nd))
	payload = append(payload, singles...)
	payload = append(payload, doubles...)

	return Packet{Command: CodeRandomWrite, Subcommand: space.Series.WordSubcommand(), Payload: payload}, nil
}

func encodeRandomWriteBits(space device.Space, values []DeviceValue) (Packet, error) {
	limit := space.Limits.RandomWriteBits
	if len(values) > limit || len(values) > 0xFF {
		return Packet{}, &device.AddressError{Address: values[0].Address, Count: len(values), Limit: limit, Err: device.ErrTooManyPoints}
	}

	payload := make([]byte, 0, 1+len(values)*(space.Series.SpecSize()+2))
	payload = append(payload, byte(len(values)))
	for _, dv := range values {
		if err := space.CheckRange(dv.Address, 1, device.UnitBit); err != nil {
			return Packet{}, err
		}
		var err error
		if payload, err = space.AppendSpec(payload, dv.Address); err != nil {
			return Packet{}, err
		}
		var on byte
		if dv.Value.Bool() {
			on = 1
		}
		payload = append(payload, on)
		if space.Series == device.SeriesR {
			payload = append(payload, 0x00)
		}
	}

	return Packet{Command: CodeRandomWrite, Subcommand: space.Series.BitSubcommand(), Payload: payload}, nil
}
