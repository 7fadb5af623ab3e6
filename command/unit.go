package command

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/arloliu/go-slmp/device"
)

const (
	modeNormal uint16 = 0x0001
	modeForce  uint16 = 0x0003

	cpuModelNameSize = 16
	maxEchoData      = 960

	qPasswordLen    = 4
	rPasswordMinLen = 6
	rPasswordMaxLen = 32
)

func unitPacket(cmd uint16, word uint16) Packet {
	return Packet{Command: cmd, Payload: binary.LittleEndian.AppendUint16(nil, word)}
}

func operationMode(force bool) uint16 {
	if force {
		return modeForce
	}

	return modeNormal
}

func encodeRemoteRun(r RemoteRun) (Packet, error) {
	if r.Clear > ClearAll {
		return Packet{}, invalidArg(r, "clear mode %d", r.Clear)
	}
	p := unitPacket(CodeRemoteRun, operationMode(r.Force))
	p.Payload = append(p.Payload, byte(r.Clear), 0x00)

	return p, nil
}

func encodeRemotePause(r RemotePause) Packet {
	return unitPacket(CodeRemotePause, operationMode(r.Force))
}

func encodeRemoteReset(r RemoteReset) (Packet, error) {
	if !r.Confirm {
		return Packet{}, &CommandError{Command: r.Name(), Err: ErrUnconfirmedReset}
	}

	return unitPacket(CodeRemoteReset, 0x0001), nil
}

// ValidatePassword checks the remote password rules of series: exactly four characters on Q/L,
// six to thirty-two on iQ-R, ASCII only.
func ValidatePassword(password string, series device.Series) error {
	for i := 0; i < len(password); i++ {
		if password[i] < 0x20 || password[i] > 0x7E {
			return ErrInvalidPassword
		}
	}
	n := len(password)
	switch series {
	case device.SeriesQ:
		if n != qPasswordLen {
			return ErrInvalidPassword
		}
	case device.SeriesR:
		if n < rPasswordMinLen || n > rPasswordMaxLen {
			return ErrInvalidPassword
		}
	default:
		return device.ErrInvalidSeries
	}

	return nil
}

func encodePassword(req Request, cmd uint16, password string, series device.Series) (Packet, error) {
	if err := ValidatePassword(password, series); err != nil {
		return Packet{}, &CommandError{Command: req.Name(), Err: err, Detail: series.String()}
	}
	payload := binary.LittleEndian.AppendUint16(make([]byte, 0, 2+len(password)), uint16(len(password))) //nolint:gosec

	return Packet{Command: cmd, Payload: append(payload, password...)}, nil
}

func decodeCPUModel(r ReadCPUModel, data []byte) (*Result, error) {
	if len(data) != cpuModelNameSize+2 {
		return nil, malformed(r, "%d bytes, want %d", len(data), cpuModelNameSize+2)
	}
	name := strings.TrimRight(string(data[:cpuModelNameSize]), " \x00")

	return &Result{Model: CPUModel{Name: name, Code: binary.LittleEndian.Uint16(data[cpuModelNameSize:])}}, nil
}

func echoData(r Echo) []byte {
	if len(r.Data) == 0 {
		return DefaultEchoData
	}

	return r.Data
}

func encodeEcho(r Echo) (Packet, error) {
	data := echoData(r)
	if len(data) > maxEchoData {
		return Packet{}, invalidArg(r, "%d bytes, limit %d", len(data), maxEchoData)
	}
	payload := binary.LittleEndian.AppendUint16(make([]byte, 0, 2+len(data)), uint16(len(data))) //nolint:gosec

	return Packet{Command: CodeEcho, Payload: append(payload, data...)}, nil
}

func decodeEcho(r Echo, data []byte) (*Result, error) {
	if len(data) < 2 {
		return nil, malformed(r, "%d bytes", len(data))
	}
	n := int(binary.LittleEndian.Uint16(data))
	if len(data) != 2+n {
		return nil, malformed(r, "length field %d, %d data bytes", n, len(data)-2)
	}
	got := data[2:]
	if want := echoData(r); !bytes.Equal(got, want) {
		return nil, &ProtocolError{Command: r.Name(), Err: ErrEchoMismatch, Detail: "sent " + string(want) + ", got " + string(got)}
	}

	return &Result{Echo: append([]byte(nil), got...)}, nil
}
