// Package frame builds and parses SLMP 4E binary frames.
//
// Request layout (all multi-byte fields little-endian):
//
//	54 00 | serial(2) | 00 00 | network(1) | pc(1) | module I/O(2) | station(1) | length(2) | timer(2) | command(2) | subcommand(2) | payload
//
// Response layout:
//
//	D4 00 | serial(2) | 00 00 | network(1) | pc(1) | module I/O(2) | station(1) | length(2) | end code(2) | payload
//
// The length field counts every byte after itself. The codec treats the payload as opaque bytes.
package frame
