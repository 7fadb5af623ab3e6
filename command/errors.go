package command

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-slmp/frame"
)

var (
	// ErrUnconfirmedReset indicates a RemoteReset without Confirm set.
	ErrUnconfirmedReset = errors.New("remote reset requires explicit confirmation")

	// ErrInvalidPassword indicates a password whose length does not fit the CPU series.
	ErrInvalidPassword = errors.New("invalid password length")

	// ErrInvalidArgument indicates a request whose arguments cannot be encoded.
	ErrInvalidArgument = errors.New("invalid request argument")

	// ErrUnknownRequest indicates a Request implementation not defined by this package.
	ErrUnknownRequest = errors.New("unknown request type")

	// ErrEchoMismatch indicates an echo response that differs from the data sent.
	ErrEchoMismatch = errors.New("echo data mismatch")

	// ErrMalformedResponse indicates a response payload that does not match the request.
	ErrMalformedResponse = errors.New("malformed response payload")
)

// CommandError reports a request rejected before encoding.
type CommandError struct {
	Command string
	Err     error
	Detail  string
}

func (e *CommandError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("command %s: %v: %s", e.Command, e.Err, e.Detail)
	}

	return fmt.Sprintf("command %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ProtocolError reports a successful end code whose payload is not what the request expects.
type ProtocolError struct {
	Command string
	Err     error
	Detail  string
}

func (e *ProtocolError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("command %s: %v: %s", e.Command, e.Err, e.Detail)
	}

	return fmt.Sprintf("command %s: %v", e.Command, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// PlcError is a non-zero end code returned by the PLC or a relaying module.
// EndCode is the literal code; its meaning is defined by the vendor documentation.
type PlcError struct {
	EndCode    uint16
	Command    uint16
	Subcommand uint16

	// Info is the error information block of the response, valid when HasInfo is true.
	Info    frame.ErrorInfo
	HasInfo bool
}

func (e *PlcError) Error() string {
	desc := e.Description()
	if desc == "" {
		return fmt.Sprintf("plc: end code 0x%04X (command 0x%04X)", e.EndCode, e.Command)
	}

	return fmt.Sprintf("plc: end code 0x%04X %s (command 0x%04X)", e.EndCode, desc, e.Command)
}

// Is matches another *PlcError with the same end code, or any *PlcError when target's code is zero.
func (e *PlcError) Is(target error) bool {
	t, ok := target.(*PlcError)
	if !ok {
		return false
	}

	return t.EndCode == 0 || t.EndCode == e.EndCode
}

// Description returns a short name for well-known gateway end codes, or "" for other codes.
func (e *PlcError) Description() string {
	return EndCodeDescriptions[e.EndCode]
}

// EndCodeDescriptions names common end codes for diagnostics.
var EndCodeDescriptions = map[uint16]string{
	0x408B: "remote request not executable in current CPU state",
	0xC051: "point count out of range",
	0xC056: "device out of range",
	0xC059: "wrong command",
	0xC05C: "wrong format",
	0xC061: "wrong length",
	0xCEE0: "busy",
	0xCEE1: "request length exceeded",
	0xCEE2: "response length exceeded",
	0xCF10: "server not found",
	0xCF20: "wrong config item",
	0xCF30: "parameter id not found",
	0xCF31: "exclusive write not started",
	0xCF70: "relay failure",
	0xCF71: "timeout",
	0xC810: "remote password mismatch",
}

// CheckResponse returns a *PlcError for a response frame with a non-zero end code.
// cmd and sub identify the request the response belongs to.
func CheckResponse(f *frame.Frame, cmd, sub uint16) error {
	if f.EndCode == 0 {
		return nil
	}
	perr := &PlcError{EndCode: f.EndCode, Command: cmd, Subcommand: sub}
	perr.Info, perr.HasInfo = f.ErrorInfo()

	return perr
}

func invalidArg(req Request, format string, args ...any) error {
	return &CommandError{Command: req.Name(), Err: ErrInvalidArgument, Detail: fmt.Sprintf(format, args...)}
}

func malformed(req Request, format string, args ...any) error {
	return &ProtocolError{Command: req.Name(), Err: ErrMalformedResponse, Detail: fmt.Sprintf(format, args...)}
}
