package simulator

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/arloliu/go-slmp/command"
	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/frame"
	"github.com/arloliu/go-slmp/plcdata"
)

// End codes returned by the simulator.
const (
	EndStateError       uint16 = 0x408B
	EndCountRange       uint16 = 0xC051
	EndDeviceRange      uint16 = 0xC056
	EndWrongCommand     uint16 = 0xC059
	EndWrongFormat      uint16 = 0xC05C
	EndLengthMismatch   uint16 = 0xC061
	EndPasswordMismatch uint16 = 0xC810
)

var errShort = errors.New("request data too short")

// endCodeFor maps a decoding or memory error to the end code a CPU would return.
func endCodeFor(err error) uint16 {
	switch {
	case errors.Is(err, errShort):
		return EndLengthMismatch
	case errors.Is(err, device.ErrOutOfRange):
		return EndDeviceRange
	case errors.Is(err, device.ErrTooManyPoints), errors.Is(err, device.ErrNoPoints):
		return EndCountRange
	default:
		return EndWrongFormat
	}
}

// payload reads the fields of a request. The first error sticks.
type payload struct {
	b     []byte
	space device.Space
	err   error
}

func (p *payload) take(n int) []byte {
	if p.err != nil {
		return nil
	}
	if len(p.b) < n {
		p.err = errShort
		return nil
	}
	out := p.b[:n]
	p.b = p.b[n:]

	return out
}

func (p *payload) u8() int {
	b := p.take(1)
	if b == nil {
		return 0
	}

	return int(b[0])
}

func (p *payload) u16() int {
	b := p.take(2)
	if b == nil {
		return 0
	}

	return int(binary.LittleEndian.Uint16(b))
}

func (p *payload) words(n int) []uint16 {
	b := p.take(n * 2)
	if b == nil {
		return nil
	}
	w, _ := plcdata.BytesToWords(b)

	return w
}

func (p *payload) spec() device.Address {
	b := p.take(p.space.Series.SpecSize())
	if b == nil {
		return device.Address{}
	}
	addr, err := p.space.ParseSpec(b)
	if err != nil {
		p.err = err
	}

	return addr
}

// done checks that the payload was consumed exactly.
func (p *payload) done() error {
	if p.err == nil && len(p.b) != 0 {
		p.err = errShort
	}

	return p.err
}

// handle executes req and returns the end code and response data.
func (s *Server) handle(connID uint64, req *frame.Frame) (uint16, []byte) {
	p := &payload{b: req.Data, space: s.space}
	series := s.space.Series

	deviceSub := func() (bit bool, ok bool) {
		switch req.Subcommand {
		case series.WordSubcommand():
			return false, true
		case series.BitSubcommand():
			return true, true
		default:
			return false, false
		}
	}

	switch req.Command {
	case command.CodeBulkRead, command.CodeBulkWrite:
		bit, ok := deviceSub()
		if !ok {
			return EndWrongCommand, nil
		}
		if req.Command == command.CodeBulkRead {
			return s.bulkRead(p, bit)
		}
		return s.bulkWrite(p, bit)

	case command.CodeRandomRead, command.CodeMonitorRegister:
		if req.Subcommand != series.WordSubcommand() {
			return EndWrongCommand, nil
		}
		points, err := s.parseRandom(p, s.space.Limits.RandomReadPoints)
		if err != nil {
			return endCodeFor(err), nil
		}
		if req.Command == command.CodeMonitorRegister {
			s.monitors.Store(connID, points)
			return 0, nil
		}
		return s.readRandom(points)

	case command.CodeMonitorRead:
		if req.Subcommand != 0 || p.done() != nil {
			return EndWrongCommand, nil
		}
		points, ok := s.monitors.Load(connID)
		if !ok {
			return EndWrongCommand, nil
		}
		return s.readRandom(points)

	case command.CodeRandomWrite:
		bit, ok := deviceSub()
		if !ok {
			return EndWrongCommand, nil
		}
		if bit {
			return s.randomWriteBits(p)
		}
		return s.randomWriteWords(p)

	case command.CodeBlockRead, command.CodeBlockWrite:
		if req.Subcommand != series.WordSubcommand() {
			return EndWrongCommand, nil
		}
		return s.block(p, req.Command == command.CodeBlockWrite)

	case command.CodeRemoteRun, command.CodeRemoteStop, command.CodeRemotePause,
		command.CodeRemoteLatchClr, command.CodeRemoteReset:
		return s.remote(req.Command, p)

	case command.CodeReadCPUModel:
		if p.done() != nil {
			return EndLengthMismatch, nil
		}
		name := []byte(s.model.Name + strings.Repeat(" ", 16))[:16]
		return 0, binary.LittleEndian.AppendUint16(name, s.model.Code)

	case command.CodeUnlock, command.CodeLock:
		return s.lockControl(req.Command, p)

	case command.CodeEcho:
		n := p.u16()
		data := p.take(n)
		if err := p.done(); err != nil {
			return EndLengthMismatch, nil
		}
		out := binary.LittleEndian.AppendUint16(make([]byte, 0, 2+n), uint16(n)) //nolint:gosec
		return 0, append(out, data...)
	}

	return EndWrongCommand, nil
}
