package command

import (
	"encoding/binary"

	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/internal/util"
	"github.com/arloliu/go-slmp/plcdata"
)

// blockEntry is one range placed on the wire. Word device blocks precede bit device blocks.
type blockEntry struct {
	caller int
	rng    device.Range
	words  int
}

type blockLayout struct {
	wordBlocks []blockEntry
	bitBlocks  []blockEntry
	words      int
}

func (l *blockLayout) ordered() []blockEntry {
	return append(append(make([]blockEntry, 0, len(l.wordBlocks)+len(l.bitBlocks)), l.wordBlocks...), l.bitBlocks...)
}

func planBlocks(space device.Space, ranges []device.Range) (*blockLayout, error) {
	if len(ranges) == 0 {
		return nil, &device.AddressError{Err: device.ErrNoPoints}
	}
	if limit := space.Limits.BlockCount; len(ranges) > limit || len(ranges) > 0xFF {
		return nil, &device.AddressError{Address: ranges[0].Start, Count: len(ranges), Limit: limit, Err: device.ErrTooManyPoints}
	}

	l := &blockLayout{}
	for i, rng := range ranges {
		c, err := space.Code(rng.Start)
		if err != nil {
			return nil, err
		}

		if rng.Count <= 0 {
			return nil, &device.AddressError{Address: rng.Start, Count: rng.Count, Err: device.ErrNoPoints}
		}
		words := rng.Count
		if rng.Unit == device.UnitBit {
			if !c.IsBit() {
				return nil, &device.AddressError{Address: rng.Start, Count: rng.Count, Err: device.ErrUnitMismatch}
			}
			words = util.DivCeil(rng.Count, 16)
		}
		if err := space.CheckRange(rng.Start, words, device.UnitWord); err != nil {
			return nil, err
		}

		e := blockEntry{caller: i, rng: rng, words: words}
		if c.IsBit() {
			l.bitBlocks = append(l.bitBlocks, e)
		} else {
			l.wordBlocks = append(l.wordBlocks, e)
		}
		l.words += words
	}

	return l, nil
}

func (l *blockLayout) appendEntry(dst []byte, space device.Space, e blockEntry) ([]byte, error) {
	dst, err := space.AppendSpec(dst, e.rng.Start)
	if err != nil {
		return nil, err
	}

	return binary.LittleEndian.AppendUint16(dst, uint16(e.words)), nil //nolint:gosec
}

func encodeBlockRead(r BlockRead, space device.Space) (Packet, error) {
	l, err := planBlocks(space, r.Ranges)
	if err != nil {
		return Packet{}, err
	}
	if limit := space.Limits.BlockReadPoints; l.words > limit {
		return Packet{}, &device.AddressError{Address: r.Ranges[0].Start, Count: l.words, Limit: limit, Err: device.ErrTooManyPoints}
	}

	payload := make([]byte, 0, 2+len(r.Ranges)*(space.Series.SpecSize()+2))
	payload = append(payload, byte(len(l.wordBlocks)), byte(len(l.bitBlocks)))
	for _, e := range l.ordered() {
		if payload, err = l.appendEntry(payload, space, e); err != nil {
			return Packet{}, err
		}
	}

	return Packet{Command: CodeBlockRead, Subcommand: space.Series.WordSubcommand(), Payload: payload}, nil
}

// decodeBlockRead re-splits the flat response by the word count of each block and
// returns the blocks in the caller's order.
func decodeBlockRead(r BlockRead, space device.Space, data []byte) (*Result, error) {
	l, err := planBlocks(space, r.Ranges)
	if err != nil {
		return nil, err
	}
	if len(data) != l.words*2 {
		return nil, malformed(r, "%d bytes for %d words", len(data), l.words)
	}
	words, err := plcdata.BytesToWords(data)
	if err != nil {
		return nil, err
	}

	blocks := make([]Block, len(r.Ranges))
	for _, e := range l.ordered() {
		chunk := words[:e.words:e.words]
		words = words[e.words:]

		b := Block{Range: e.rng, Words: chunk}
		if e.rng.Unit == device.UnitBit {
			if b.Bits, err = plcdata.UnpackWordBits(chunk, e.rng.Count); err != nil {
				return nil, err
			}
		}
		blocks[e.caller] = b
	}

	return &Result{Blocks: blocks}, nil
}

func encodeBlockWrite(r BlockWrite, space device.Space) (Packet, error) {
	ranges := make([]device.Range, len(r.Blocks))
	data := make([][]uint16, len(r.Blocks))
	for i, b := range r.Blocks {
		ranges[i] = b.Range
		switch {
		case b.Range.Unit == device.UnitBit:
			if b.Range.Count%16 != 0 {
				return Packet{}, invalidArg(r, "block %s: bit blocks must cover whole words", b.Range)
			}
			if len(b.Bits) != b.Range.Count {
				return Packet{}, invalidArg(r, "block %s: %d bits for %d points", b.Range, len(b.Bits), b.Range.Count)
			}
			data[i] = plcdata.PackWordBits(b.Bits)
		default:
			if len(b.Words) != b.Range.Count {
				return Packet{}, invalidArg(r, "block %s: %d words for %d points", b.Range, len(b.Words), b.Range.Count)
			}
			data[i] = b.Words
		}
	}

	l, err := planBlocks(space, ranges)
	if err != nil {
		return Packet{}, err
	}
	limit := space.Limits.BlockWriteWeight
	if cost := device.BlockWriteCost(len(ranges), l.words); cost > limit {
		return Packet{}, &device.AddressError{Address: ranges[0].Start, Count: l.words, Limit: limit, Err: device.ErrTooManyPoints}
	}

	payload := make([]byte, 0, 2+len(ranges)*(space.Series.SpecSize()+2)+l.words*2)
	payload = append(payload, byte(len(l.wordBlocks)), byte(len(l.bitBlocks)))
	for _, e := range l.ordered() {
		if payload, err = l.appendEntry(payload, space, e); err != nil {
			return Packet{}, err
		}
		payload = plcdata.AppendWords(payload, data[e.caller]...)
	}

	return Packet{Command: CodeBlockWrite, Subcommand: space.Series.WordSubcommand(), Payload: payload}, nil
}
