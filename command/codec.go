package command

import (
	"fmt"

	"github.com/arloliu/go-slmp/device"
)

// Encode validates req against space and returns the packets to send, in order.
// No packet is returned when validation fails.
func Encode(req Request, space device.Space) ([]Packet, error) {
	switch r := req.(type) {
	case BulkRead:
		return one(encodeBulkRead(r, space))
	case BulkWrite:
		return one(encodeBulkWrite(r, space))
	case RandomRead:
		return one(encodeRandomRead(r, space))
	case RandomWrite:
		return encodeRandomWrite(r, space)
	case BlockRead:
		return one(encodeBlockRead(r, space))
	case BlockWrite:
		return one(encodeBlockWrite(r, space))
	case MonitorRegister:
		return one(encodeMonitorRegister(r, space))
	case MonitorRead:
		return one(encodeMonitorRead(r, space))
	case RemoteRun:
		return one(encodeRemoteRun(r))
	case RemoteStop:
		return one(unitPacket(CodeRemoteStop, 0x0001), nil)
	case RemotePause:
		return one(encodeRemotePause(r), nil)
	case RemoteLatchClear:
		return one(unitPacket(CodeRemoteLatchClr, 0x0001), nil)
	case RemoteReset:
		return one(encodeRemoteReset(r))
	case ReadCPUModel:
		return one(Packet{Command: CodeReadCPUModel}, nil)
	case Unlock:
		return one(encodePassword(r, CodeUnlock, r.Password, space.Series))
	case Lock:
		return one(encodePassword(r, CodeLock, r.Password, space.Series))
	case Echo:
		return one(encodeEcho(r))
	default:
		return nil, &CommandError{Command: fmt.Sprintf("%T", req), Err: ErrUnknownRequest}
	}
}

// Decode interprets the response payloads of the packets Encode returned for req.
// payloads must hold one entry per packet, in the same order.
func Decode(req Request, space device.Space, payloads [][]byte) (*Result, error) {
	if req == nil {
		return nil, &CommandError{Command: "<nil>", Err: ErrUnknownRequest}
	}
	want := 1
	if r, ok := req.(RandomWrite); ok {
		want = randomWritePackets(r)
	}
	if len(payloads) != want {
		return nil, malformed(req, "%d responses for %d packets", len(payloads), want)
	}
	data := payloads[0]

	switch r := req.(type) {
	case BulkRead:
		return decodeBulkRead(r, space, data)
	case RandomRead:
		return decodeRandomRead(r, space, data)
	case BlockRead:
		return decodeBlockRead(r, space, data)
	case MonitorRead:
		return decodeMonitorRead(r, space, data)
	case ReadCPUModel:
		return decodeCPUModel(r, data)
	case Echo:
		return decodeEcho(r, data)
	case BulkWrite, RandomWrite, BlockWrite, MonitorRegister,
		RemoteRun, RemoteStop, RemotePause, RemoteLatchClear, RemoteReset, Unlock, Lock:
		return &Result{}, nil
	default:
		return nil, &CommandError{Command: fmt.Sprintf("%T", req), Err: ErrUnknownRequest}
	}
}

func one(p Packet, err error) ([]Packet, error) {
	if err != nil {
		return nil, err
	}

	return []Packet{p}, nil
}
