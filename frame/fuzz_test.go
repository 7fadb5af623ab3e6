package frame

import (
	"testing"
)

// FuzzParse checks that Parse and Decoder never panic and agree on valid input.
func FuzzParse(f *testing.F) {
	f.Add(BuildRequest(1, DefaultRoute(), 16, 0x0401, 0x0002, []byte{0x00, 0x00, 0x00, 0x00, 0xA8, 0x00, 0x01, 0x00}))
	f.Add(BuildResponse(1, DefaultRoute(), 0, []byte{0x34, 0x12}))
	f.Add(AppendErrorResponse(nil, 2, DefaultRoute(), 0xC059, ErrorInfo{Route: DefaultRoute(), Command: 0x0401}))
	f.Add([]byte{0xD4, 0x00, 0x01})
	f.Add([]byte{0xD4, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0x03, 0x00, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, raw []byte) {
		parsed, err := Parse(raw)

		dec := NewResponseDecoder()
		if len(raw) > 0 && raw[0] == requestSubheader[0] {
			dec = NewRequestDecoder()
		}
		_, _ = dec.Write(raw)
		streamed, serr := dec.Next()

		if err == nil {
			if serr != nil {
				t.Fatalf("Parse accepted input rejected by Decoder: %v", serr)
			}
			if parsed.Serial != streamed.Serial || len(parsed.Data) != len(streamed.Data) {
				t.Fatalf("Parse and Decoder disagree")
			}
		}
	})
}
