package device

// Limits are the per-frame point limits of each access kind.
type Limits struct {
	// BulkWords and BulkBits bound one bulk read or write in word and bit units.
	BulkWords int
	BulkBits  int
	// RandomReadPoints bounds word points plus double-word points of one random read.
	RandomReadPoints int
	// RandomWriteWeight bounds word points*12 + double-word points*14 of one word-unit random write.
	RandomWriteWeight int
	// RandomWriteBits bounds the points of one bit-unit random write.
	RandomWriteBits int
	// MonitorPoints bounds word points plus double-word points of one monitor registration.
	MonitorPoints int
	// BlockCount bounds word blocks plus bit blocks of one block request.
	BlockCount int
	// BlockReadPoints bounds the total words of one block read.
	BlockReadPoints int
	// BlockWriteWeight bounds blocks*4 + total words of one block write.
	BlockWriteWeight int
}

// DefaultLimits are the limits published for 4E binary frames.
var DefaultLimits = Limits{
	BulkWords:         960,
	BulkBits:          7168,
	RandomReadPoints:  192,
	RandomWriteWeight: 1920,
	RandomWriteBits:   188,
	MonitorPoints:     192,
	BlockCount:        120,
	BlockReadPoints:   960,
	BlockWriteWeight:  960,
}

const (
	randomWriteWordWeight  = 12
	randomWriteDWordWeight = 14
	blockWriteBlockWeight  = 4
)

// RandomWriteCost returns the weight of a word-unit random write with the given point counts.
func RandomWriteCost(words, dwords int) int {
	return words*randomWriteWordWeight + dwords*randomWriteDWordWeight
}

// BlockWriteCost returns the weight of a block write with the given block count and total words.
func BlockWriteCost(blocks, words int) int {
	return blocks*blockWriteBlockWeight + words
}
