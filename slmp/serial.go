package slmp

import "sync/atomic"

// serialGenerator hands out 4E serial numbers. It wraps at 0xFFFF.
type serialGenerator struct {
	next atomic.Uint32
}

func (g *serialGenerator) reset(initial uint16) {
	g.next.Store(uint32(initial))
}

func (g *serialGenerator) gen() uint16 {
	return uint16(g.next.Add(1) - 1) //nolint:gosec
}
