package plcdata

// PackNibbles packs bit points two per byte, the first point in the high nibble.
// This is the layout of bit-unit bulk access. An odd count leaves the last low nibble zero.
func PackNibbles(bits []bool) []byte {
	out := make([]byte, (len(bits)+1)/2)
	for i, b := range bits {
		if !b {
			continue
		}
		if i%2 == 0 {
			out[i/2] |= 0x10
		} else {
			out[i/2] |= 0x01
		}
	}

	return out
}

// UnpackNibbles is the inverse of PackNibbles for count points.
func UnpackNibbles(data []byte, count int) ([]bool, error) {
	need := (count + 1) / 2
	if len(data) < need {
		return nil, insufficient(Bool, need, len(data), "bytes")
	}

	bits := make([]bool, count)
	for i := range bits {
		if i%2 == 0 {
			bits[i] = data[i/2]&0xF0 != 0
		} else {
			bits[i] = data[i/2]&0x0F != 0
		}
	}

	return bits, nil
}

// PackWordBits packs bit points sixteen per word, the first point in bit 0.
// This is the layout of word-unit access to bit devices, used by block access.
func PackWordBits(bits []bool) []uint16 {
	out := make([]uint16, (len(bits)+15)/16)
	for i, b := range bits {
		if b {
			out[i/16] |= 1 << (i % 16)
		}
	}

	return out
}

// UnpackWordBits is the inverse of PackWordBits for count points.
func UnpackWordBits(words []uint16, count int) ([]bool, error) {
	need := (count + 15) / 16
	if len(words) < need {
		return nil, insufficient(Bool, need, len(words), "")
	}

	bits := make([]bool, count)
	for i := range bits {
		bits[i] = words[i/16]&(1<<(i%16)) != 0
	}

	return bits, nil
}
