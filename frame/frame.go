package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// HeaderSize is the number of bytes up to and including the data length field.
	HeaderSize = 13
	// MaxDataLength bounds the data length field accepted on parse.
	MaxDataLength = 8192

	requestFixedData  = 6 // timer, command, subcommand
	responseFixedData = 2 // end code
	errorInfoSize     = 9
)

var (
	requestSubheader  = [2]byte{0x54, 0x00}
	responseSubheader = [2]byte{0xD4, 0x00}
)

// Route is the access route of a frame: the destination network, station and module.
type Route struct {
	NetworkNo uint8
	PCNo      uint8
	ModuleIO  uint16
	StationNo uint8
}

// DefaultRoute addresses the CPU the client is directly connected to.
func DefaultRoute() Route {
	return Route{NetworkNo: 0x00, PCNo: 0xFF, ModuleIO: 0x03FF, StationNo: 0x00}
}

func (r Route) String() string {
	return fmt.Sprintf("net=%d pc=0x%02X io=0x%04X st=%d", r.NetworkNo, r.PCNo, r.ModuleIO, r.StationNo)
}

// Frame is one decoded 4E message.
type Frame struct {
	Response bool
	Serial   uint16
	Route    Route

	// Timer, Command and Subcommand are set on requests only.
	Timer      uint16
	Command    uint16
	Subcommand uint16

	// EndCode is set on responses only; zero means success.
	EndCode uint16

	// Data is the command payload of a request, or the data following the end code of a response.
	Data []byte
}

// ErrorInfo is the block that follows a non-zero end code in an error response.
type ErrorInfo struct {
	Route      Route
	Command    uint16
	Subcommand uint16
}

func (i ErrorInfo) String() string {
	return fmt.Sprintf("%s cmd=0x%04X sub=0x%04X", i.Route, i.Command, i.Subcommand)
}

// ErrorInfo parses the error information of a failed response.
func (f *Frame) ErrorInfo() (ErrorInfo, bool) {
	if !f.Response || f.EndCode == 0 || len(f.Data) < errorInfoSize {
		return ErrorInfo{}, false
	}
	d := f.Data

	return ErrorInfo{
		Route: Route{
			NetworkNo: d[0],
			PCNo:      d[1],
			ModuleIO:  binary.LittleEndian.Uint16(d[2:]),
			StationNo: d[4],
		},
		Command:    binary.LittleEndian.Uint16(d[5:]),
		Subcommand: binary.LittleEndian.Uint16(d[7:]),
	}, true
}

// Bytes encodes f.
func (f *Frame) Bytes() []byte {
	if f.Response {
		return AppendResponse(nil, f.Serial, f.Route, f.EndCode, f.Data)
	}

	return AppendRequest(nil, f.Serial, f.Route, f.Timer, f.Command, f.Subcommand, f.Data)
}

func (f *Frame) String() string {
	if f.Response {
		return fmt.Sprintf("response serial=%d end=0x%04X data=%d bytes", f.Serial, f.EndCode, len(f.Data))
	}

	return fmt.Sprintf("request serial=%d cmd=0x%04X sub=0x%04X data=%d bytes", f.Serial, f.Command, f.Subcommand, len(f.Data))
}

// AppendRequest appends a request frame to dst. The length field is computed from payload.
func AppendRequest(dst []byte, serial uint16, route Route, timer, command, subcommand uint16, payload []byte) []byte {
	dst = appendHeader(dst, requestSubheader, serial, route, requestFixedData+len(payload))
	dst = binary.LittleEndian.AppendUint16(dst, timer)
	dst = binary.LittleEndian.AppendUint16(dst, command)
	dst = binary.LittleEndian.AppendUint16(dst, subcommand)

	return append(dst, payload...)
}

// BuildRequest returns a new request frame.
func BuildRequest(serial uint16, route Route, timer, command, subcommand uint16, payload []byte) []byte {
	dst := make([]byte, 0, HeaderSize+requestFixedData+len(payload))
	return AppendRequest(dst, serial, route, timer, command, subcommand, payload)
}

// AppendResponse appends a response frame to dst.
func AppendResponse(dst []byte, serial uint16, route Route, endCode uint16, payload []byte) []byte {
	dst = appendHeader(dst, responseSubheader, serial, route, responseFixedData+len(payload))
	dst = binary.LittleEndian.AppendUint16(dst, endCode)

	return append(dst, payload...)
}

// BuildResponse returns a new response frame.
func BuildResponse(serial uint16, route Route, endCode uint16, payload []byte) []byte {
	dst := make([]byte, 0, HeaderSize+responseFixedData+len(payload))
	return AppendResponse(dst, serial, route, endCode, payload)
}

// AppendErrorResponse appends a failed response carrying info as error information.
func AppendErrorResponse(dst []byte, serial uint16, route Route, endCode uint16, info ErrorInfo) []byte {
	payload := make([]byte, 0, errorInfoSize)
	payload = append(payload, info.Route.NetworkNo, info.Route.PCNo)
	payload = binary.LittleEndian.AppendUint16(payload, info.Route.ModuleIO)
	payload = append(payload, info.Route.StationNo)
	payload = binary.LittleEndian.AppendUint16(payload, info.Command)
	payload = binary.LittleEndian.AppendUint16(payload, info.Subcommand)

	return AppendResponse(dst, serial, route, endCode, payload)
}

func appendHeader(dst []byte, subheader [2]byte, serial uint16, route Route, dataLen int) []byte {
	dst = append(dst, subheader[0], subheader[1])
	dst = binary.LittleEndian.AppendUint16(dst, serial)
	dst = append(dst, 0x00, 0x00, route.NetworkNo, route.PCNo)
	dst = binary.LittleEndian.AppendUint16(dst, route.ModuleIO)
	dst = append(dst, route.StationNo)

	return binary.LittleEndian.AppendUint16(dst, uint16(dataLen)) //nolint:gosec
}

// Parse decodes raw, which must hold exactly one complete frame.
func Parse(raw []byte) (*Frame, error) {
	total, err := Length(raw)
	if err != nil {
		if errors.Is(err, ErrIncomplete) {
			return nil, frameErr(len(raw), ErrTruncated, "need at least %d header bytes, have %d", HeaderSize, len(raw))
		}
		return nil, err
	}
	if len(raw) < total {
		return nil, frameErr(len(raw), ErrTruncated, "need %d bytes, have %d", total, len(raw))
	}
	if len(raw) > total {
		return nil, frameErr(total, ErrTrailingData, "%d extra bytes", len(raw)-total)
	}

	return decode(raw), nil
}

// Length validates the header at the front of buf and returns the total size of the frame.
// It returns ErrIncomplete when buf is shorter than HeaderSize.
func Length(buf []byte) (int, error) {
	if len(buf) >= 2 && !isSubheader(buf) {
		return 0, frameErr(0, ErrBadSubheader, "got % X", buf[:2])
	}
	if len(buf) < HeaderSize {
		return 0, ErrIncomplete
	}
	if buf[4] != 0x00 || buf[5] != 0x00 {
		return 0, frameErr(4, ErrBadSubheader, "reserved bytes % X", buf[4:6])
	}

	dataLen := int(binary.LittleEndian.Uint16(buf[11:]))
	if dataLen > MaxDataLength {
		return 0, frameErr(11, ErrLengthTooLarge, "%d > %d", dataLen, MaxDataLength)
	}
	minLen := requestFixedData
	if buf[0] == responseSubheader[0] {
		minLen = responseFixedData
	}
	if dataLen < minLen {
		return 0, frameErr(11, ErrLengthTooSmall, "%d < %d", dataLen, minLen)
	}

	return HeaderSize + dataLen, nil
}

func isSubheader(b []byte) bool {
	return (b[0] == requestSubheader[0] || b[0] == responseSubheader[0]) && b[1] == 0x00
}

// decode converts a validated frame. The returned Data does not alias raw.
func decode(raw []byte) *Frame {
	f := &Frame{
		Response: raw[0] == responseSubheader[0],
		Serial:   binary.LittleEndian.Uint16(raw[2:]),
		Route: Route{
			NetworkNo: raw[6],
			PCNo:      raw[7],
			ModuleIO:  binary.LittleEndian.Uint16(raw[8:]),
			StationNo: raw[10],
		},
	}

	body := raw[HeaderSize:]
	if f.Response {
		f.EndCode = binary.LittleEndian.Uint16(body)
		body = body[responseFixedData:]
	} else {
		f.Timer = binary.LittleEndian.Uint16(body)
		f.Command = binary.LittleEndian.Uint16(body[2:])
		f.Subcommand = binary.LittleEndian.Uint16(body[4:])
		body = body[requestFixedData:]
	}
	f.Data = append([]byte(nil), body...)

	return f
}

// HexString formats b as space separated upper-case hex bytes for debug logs.
func HexString(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}

	return sb.String()
}
