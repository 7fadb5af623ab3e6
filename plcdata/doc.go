// Package plcdata converts typed values to and from PLC device memory words.
//
// Device memory is addressed in 16-bit words. Multi-word values are stored low word first
// and every word is transmitted little-endian, so a U32 0x12345678 occupies the words
// [0x5678, 0x1234] and travels as the bytes 78 56 34 12.
//
// Supported types:
//   - Bool:        one bit, carried in bit 0 of a word when accessed word-wise
//   - BitArray16:  sixteen bits, bit 0 is the least significant bit
//   - U16, I16:    one word
//   - U32, I32, F32: two words
//   - F64:         four words
//   - String(n):   n words of Shift-JIS text, NUL padded, NUL terminated on decode
package plcdata
