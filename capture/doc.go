// Package capture extracts SLMP frames from packet captures and records SLMP traffic as pcap files.
//
// Reading reassembles each TCP direction independently with a frame.Decoder, so frames split over
// several segments, or several frames in one segment, are recovered in order. Retransmissions and
// out-of-order segments are not handled; captures taken next to the client are assumed.
package capture
