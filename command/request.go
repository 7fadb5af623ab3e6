package command

import (
	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/plcdata"
)

// Command codes.
const (
	CodeBulkRead        uint16 = 0x0401
	CodeBulkWrite       uint16 = 0x1401
	CodeRandomRead      uint16 = 0x0403
	CodeRandomWrite     uint16 = 0x1402
	CodeBlockRead       uint16 = 0x0406
	CodeBlockWrite      uint16 = 0x1406
	CodeMonitorRegister uint16 = 0x0801
	CodeMonitorRead     uint16 = 0x0802
	CodeRemoteRun       uint16 = 0x1001
	CodeRemoteStop      uint16 = 0x1002
	CodeRemotePause     uint16 = 0x1003
	CodeRemoteLatchClr  uint16 = 0x1005
	CodeRemoteReset     uint16 = 0x1006
	CodeReadCPUModel    uint16 = 0x0101
	CodeUnlock          uint16 = 0x1630
	CodeLock            uint16 = 0x1631
	CodeEcho            uint16 = 0x0619
)

// Request is a command that can be sent to a PLC. The set of implementations is closed.
type Request interface {
	// Name is a short lower-case name used in errors and logs.
	Name() string
	isRequest()
}

// Packet is one encoded exchange: the command, subcommand and request payload of a frame.
type Packet struct {
	Command    uint16
	Subcommand uint16
	Payload    []byte
}

// DeviceValue is a typed value at a device address.
type DeviceValue struct {
	Address device.Address
	Value   plcdata.Value
}

func (dv DeviceValue) point() device.Point {
	return device.Point{Address: dv.Address, Type: dv.Value.Type()}
}

// Block is one contiguous range of a block access with its data.
//
// Word ranges carry Words. Bit ranges on bit devices carry Bits, sixteen points per word on the wire.
type Block struct {
	Range device.Range
	Words []uint16
	Bits  []bool
}

// CPUModel is the answer of ReadCPUModel.
type CPUModel struct {
	Name string
	Code uint16
}

// Result holds the decoded response of a request. Only the fields relevant to the request are set.
type Result struct {
	// Values are typed values in request order: BulkRead, RandomRead and MonitorRead.
	Values []plcdata.Value
	// Words are the raw words of a word-unit BulkRead.
	Words []uint16
	// Bits are the points of a bit-unit BulkRead.
	Bits []bool
	// Blocks are the ranges of a BlockRead in request order.
	Blocks []Block
	Model  CPUModel
	Echo   []byte
}

// BulkRead reads Count values of Type from consecutive device memory starting at Start.
// A Bool type reads Count bit points in bit units, any other type reads Count*Type.Words() words.
type BulkRead struct {
	Start device.Address
	Type  plcdata.DataType
	Count int
}

// BulkWrite writes Values to consecutive device memory starting at Start.
// Either every value is a Bool, written in bit units, or none is.
type BulkWrite struct {
	Start  device.Address
	Values []plcdata.Value
}

// RandomRead reads individual points, which may mix devices and types.
type RandomRead struct {
	Points []device.Point
}

// RandomWrite writes individual points. Bool values are sent as a bit-unit random write and
// the rest as a word-unit random write, so a mixed request produces two packets.
type RandomWrite struct {
	Values []DeviceValue
}

// BlockRead reads several contiguous ranges in one exchange.
type BlockRead struct {
	Ranges []device.Range
}

// BlockWrite writes several contiguous ranges in one exchange.
// Bit ranges must cover whole words, a multiple of sixteen points.
type BlockWrite struct {
	Blocks []Block
}

// MonitorRegister registers Points for subsequent MonitorRead requests.
type MonitorRegister struct {
	Points []device.Point
}

// MonitorRead reads the points of the last MonitorRegister. Points must repeat that registration;
// sessions fill it in from their own state.
type MonitorRead struct {
	Points []device.Point
}

// ClearMode selects which device memory RemoteRun clears.
type ClearMode uint8

const (
	ClearNone        ClearMode = 0x00
	ClearExceptLatch ClearMode = 0x01
	ClearAll         ClearMode = 0x02
)

// RemoteRun switches the CPU to RUN. Force runs even when another device holds a remote STOP or PAUSE.
type RemoteRun struct {
	Force bool
	Clear ClearMode
}

// RemoteStop switches the CPU to STOP.
type RemoteStop struct{}

// RemotePause switches the CPU to PAUSE.
type RemotePause struct {
	Force bool
}

// RemoteLatchClear clears latched devices. The CPU must be in STOP.
type RemoteLatchClear struct{}

// RemoteReset resets the CPU. The CPU must be in STOP and outputs are cleared, so the caller has to
// set Confirm explicitly. The PLC may reset before it answers.
type RemoteReset struct {
	Confirm bool
}

// ReadCPUModel reads the CPU model name and code.
type ReadCPUModel struct{}

// Unlock releases the remote password lock.
type Unlock struct {
	Password string
}

// Lock re-enables the remote password lock.
type Lock struct {
	Password string
}

// DefaultEchoData is sent by Echo when no data is given.
var DefaultEchoData = []byte("A1G5")

// Echo asks the PLC to send Data back. It is used as a liveness check.
type Echo struct {
	Data []byte
}

func (BulkRead) Name() string         { return "bulk read" }
func (BulkWrite) Name() string        { return "bulk write" }
func (RandomRead) Name() string       { return "random read" }
func (RandomWrite) Name() string      { return "random write" }
func (BlockRead) Name() string        { return "block read" }
func (BlockWrite) Name() string       { return "block write" }
func (MonitorRegister) Name() string  { return "monitor register" }
func (MonitorRead) Name() string      { return "monitor read" }
func (RemoteRun) Name() string        { return "remote run" }
func (RemoteStop) Name() string       { return "remote stop" }
func (RemotePause) Name() string      { return "remote pause" }
func (RemoteLatchClear) Name() string { return "remote latch clear" }
func (RemoteReset) Name() string      { return "remote reset" }
func (ReadCPUModel) Name() string     { return "read cpu model" }
func (Unlock) Name() string           { return "unlock" }
func (Lock) Name() string             { return "lock" }
func (Echo) Name() string             { return "echo" }

func (BulkRead) isRequest()         {}
func (BulkWrite) isRequest()        {}
func (RandomRead) isRequest()       {}
func (RandomWrite) isRequest()      {}
func (BlockRead) isRequest()        {}
func (BlockWrite) isRequest()       {}
func (MonitorRegister) isRequest()  {}
func (MonitorRead) isRequest()      {}
func (RemoteRun) isRequest()        {}
func (RemoteStop) isRequest()       {}
func (RemotePause) isRequest()      {}
func (RemoteLatchClear) isRequest() {}
func (RemoteReset) isRequest()      {}
func (ReadCPUModel) isRequest()     {}
func (Unlock) isRequest()           {}
func (Lock) isRequest()             {}
func (Echo) isRequest()             {}
