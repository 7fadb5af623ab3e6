package simulator

import (
	"sync"

	"github.com/TheCount/go-multilocker/multilocker"
	"github.com/arloliu/go-slmp/device"
)

// area is the memory of one device. Word devices keep words, bit devices keep bits; both are
// sparse and read as zero when unset.
type area struct {
	mu    sync.RWMutex
	code  device.Code
	words map[uint32]uint16
	bits  map[uint32]bool
}

func newArea(c device.Code) *area {
	a := &area{code: c}
	if c.IsBit() {
		a.bits = make(map[uint32]bool)
	} else {
		a.words = make(map[uint32]uint16)
	}

	return a
}

// getWords returns n words from offset. On a bit device each word holds 16 bits, lowest first.
// The caller holds the lock.
func (a *area) getWords(offset uint32, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		base := offset + uint32(i) //nolint:gosec
		if a.bits == nil {
			out[i] = a.words[base]
			continue
		}
		base = offset + uint32(i)*16 //nolint:gosec
		var w uint16
		for b := range uint32(16) {
			if a.bits[base+b] {
				w |= 1 << b
			}
		}
		out[i] = w
	}

	return out
}

func (a *area) putWords(offset uint32, words []uint16) {
	for i, w := range words {
		if a.bits == nil {
			a.words[offset+uint32(i)] = w //nolint:gosec
			continue
		}
		base := offset + uint32(i)*16 //nolint:gosec
		for b := range uint32(16) {
			a.bits[base+b] = w&(1<<b) != 0
		}
	}
}

func (a *area) getBits(offset uint32, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = a.bits[offset+uint32(i)] //nolint:gosec
	}

	return out
}

func (a *area) putBits(offset uint32, bits []bool) {
	for i, b := range bits {
		a.bits[offset+uint32(i)] = b //nolint:gosec
	}
}

func (a *area) clear() {
	if a.bits != nil {
		clear(a.bits)
	} else {
		clear(a.words)
	}
}

// Memory is the device memory of a simulated CPU. Every access checks the range against the
// device table of the series. Memory is safe for concurrent use; an access that spans several
// devices locks all of them at once.
type Memory struct {
	space device.Space
	areas map[string]*area
}

// NewMemory creates zeroed memory for every device of space.
func NewMemory(space device.Space) *Memory {
	m := &Memory{space: space, areas: make(map[string]*area)}
	for _, c := range space.Table.Codes() {
		m.areas[c.Name] = newArea(c)
	}

	return m
}

func (m *Memory) area(addr device.Address) (*area, error) {
	if _, err := m.space.Code(addr); err != nil {
		return nil, err
	}

	return m.areas[addr.Device], nil
}

func unique(areas []*area) []*area {
	seen := make(map[*area]struct{}, len(areas))
	out := areas[:0:0]
	for _, a := range areas {
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}

	return out
}

// readLocker returns a locker that read-locks every area at once.
func readLocker(areas []*area) sync.Locker {
	areas = unique(areas)
	lockers := make([]sync.Locker, len(areas))
	for i, a := range areas {
		lockers[i] = a.mu.RLocker()
	}

	return multilocker.New(lockers...)
}

// writeLocker returns a locker that write-locks every area at once.
func writeLocker(areas []*area) sync.Locker {
	areas = unique(areas)
	lockers := make([]sync.Locker, len(areas))
	for i, a := range areas {
		lockers[i] = &a.mu
	}

	return multilocker.New(lockers...)
}

// ReadWords reads n words from addr. Bit devices are read sixteen bits per word.
func (m *Memory) ReadWords(addr device.Address, n int) ([]uint16, error) {
	a, err := m.area(addr)
	if err != nil {
		return nil, err
	}
	if err := m.space.CheckRange(addr, n, device.UnitWord); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.getWords(addr.Offset, n), nil
}

// WriteWords writes words from addr.
func (m *Memory) WriteWords(addr device.Address, words ...uint16) error {
	a, err := m.area(addr)
	if err != nil {
		return err
	}
	if err := m.space.CheckRange(addr, len(words), device.UnitWord); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.putWords(addr.Offset, words)

	return nil
}

// ReadBits reads n bits of a bit device from addr.
func (m *Memory) ReadBits(addr device.Address, n int) ([]bool, error) {
	a, err := m.area(addr)
	if err != nil {
		return nil, err
	}
	if err := m.space.CheckRange(addr, n, device.UnitBit); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.getBits(addr.Offset, n), nil
}

// WriteBits writes bits of a bit device from addr.
func (m *Memory) WriteBits(addr device.Address, bits ...bool) error {
	a, err := m.area(addr)
	if err != nil {
		return err
	}
	if err := m.space.CheckRange(addr, len(bits), device.UnitBit); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.putBits(addr.Offset, bits)

	return nil
}

// Clear zeroes the named devices.
func (m *Memory) Clear(devices ...string) {
	for _, name := range devices {
		a, ok := m.areas[name]
		if !ok {
			continue
		}
		a.mu.Lock()
		a.clear()
		a.mu.Unlock()
	}
}
