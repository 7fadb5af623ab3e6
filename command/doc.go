// Package command builds SLMP command payloads and decodes their responses.
//
// Every request is one of the variants defined in this package. Encode turns a request into one or
// more Packets (command code, subcommand and payload) after validating addresses and per-frame point
// limits, so an oversized or malformed request fails before anything is written to the wire.
// Decode interprets the response payloads of those packets, in the same order, and returns the
// values in the order the caller supplied them.
//
// Device access:
//
//	BulkRead / BulkWrite       0x0401 / 0x1401
//	RandomRead / RandomWrite   0x0403 / 0x1402
//	BlockRead / BlockWrite     0x0406 / 0x1406
//	MonitorRegister            0x0801
//	MonitorRead                0x0802
//
// Unit control:
//
//	RemoteRun, RemoteStop, RemotePause, RemoteLatchClear, RemoteReset   0x1001 .. 0x1006
//	ReadCPUModel                                                        0x0101
//	Unlock / Lock                                                       0x1630 / 0x1631
//	Echo                                                                0x0619
package command
