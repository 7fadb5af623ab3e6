package simulator

import (
	"github.com/arloliu/go-slmp/command"
	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/internal/util"
	"github.com/arloliu/go-slmp/plcdata"
)

func (s *Server) bulkRead(p *payload, bit bool) (uint16, []byte) {
	addr := p.spec()
	n := p.u16()
	if err := p.done(); err != nil {
		return endCodeFor(err), nil
	}

	if bit {
		if n > s.space.Limits.BulkBits {
			return EndCountRange, nil
		}
		bits, err := s.mem.ReadBits(addr, n)
		if err != nil {
			return endCodeFor(err), nil
		}
		return 0, plcdata.PackNibbles(bits)
	}

	if n > s.space.Limits.BulkWords {
		return EndCountRange, nil
	}
	words, err := s.mem.ReadWords(addr, n)
	if err != nil {
		return endCodeFor(err), nil
	}

	return 0, plcdata.AppendWords(make([]byte, 0, n*2), words...)
}

func (s *Server) bulkWrite(p *payload, bit bool) (uint16, []byte) {
	addr := p.spec()
	n := p.u16()

	if bit {
		if n > s.space.Limits.BulkBits {
			return EndCountRange, nil
		}
		data := p.take(util.DivCeil(n, 2))
		if err := p.done(); err != nil {
			return endCodeFor(err), nil
		}
		bits, err := plcdata.UnpackNibbles(data, n)
		if err != nil {
			return EndWrongFormat, nil
		}
		if err := s.mem.WriteBits(addr, bits...); err != nil {
			return endCodeFor(err), nil
		}
		return 0, nil
	}

	if n > s.space.Limits.BulkWords {
		return EndCountRange, nil
	}
	words := p.words(n)
	if err := p.done(); err != nil {
		return endCodeFor(err), nil
	}
	if err := s.mem.WriteWords(addr, words...); err != nil {
		return endCodeFor(err), nil
	}

	return 0, nil
}

// parseRandom decodes the point list of a random read or monitor registration. Word access
// points come back as U16 points, double-word access points as U32 points.
func (s *Server) parseRandom(p *payload, limit int) ([]device.Point, error) {
	nw, nd := p.u8(), p.u8()
	if nw+nd == 0 {
		return nil, &device.AddressError{Err: device.ErrNoPoints}
	}
	if nw+nd > limit {
		return nil, &device.AddressError{Count: nw + nd, Limit: limit, Err: device.ErrTooManyPoints}
	}

	points := make([]device.Point, 0, nw+nd)
	for range nw {
		points = append(points, device.NewPoint(p.spec(), plcdata.U16))
	}
	for range nd {
		points = append(points, device.NewPoint(p.spec(), plcdata.U32))
	}
	if err := p.done(); err != nil {
		return nil, err
	}

	for _, pt := range points {
		if err := s.space.CheckRange(pt.Address, pt.Type.Words(), device.UnitWord); err != nil {
			return nil, err
		}
	}

	return points, nil
}

func (s *Server) areasOf(addrs []device.Address) ([]*area, error) {
	areas := make([]*area, len(addrs))
	for i, addr := range addrs {
		a, err := s.mem.area(addr)
		if err != nil {
			return nil, err
		}
		areas[i] = a
	}

	return areas, nil
}

func (s *Server) readRandom(points []device.Point) (uint16, []byte) {
	addrs := make([]device.Address, len(points))
	for i, pt := range points {
		addrs[i] = pt.Address
	}
	areas, err := s.areasOf(addrs)
	if err != nil {
		return endCodeFor(err), nil
	}

	lk := readLocker(areas)
	lk.Lock()
	defer lk.Unlock()

	out := make([]byte, 0, len(points)*4)
	for i, pt := range points {
		out = plcdata.AppendWords(out, areas[i].getWords(pt.Address.Offset, pt.Type.Words())...)
	}

	return 0, out
}

type wordWrite struct {
	addr  device.Address
	words []uint16
}

func (s *Server) randomWriteWords(p *payload) (uint16, []byte) {
	nw, nd := p.u8(), p.u8()
	if nw+nd == 0 || device.RandomWriteCost(nw, nd) > s.space.Limits.RandomWriteWeight {
		return EndCountRange, nil
	}

	writes := make([]wordWrite, 0, nw+nd)
	for range nw {
		addr := p.spec()
		writes = append(writes, wordWrite{addr: addr, words: p.words(1)})
	}
	for range nd {
		addr := p.spec()
		writes = append(writes, wordWrite{addr: addr, words: p.words(2)})
	}
	if err := p.done(); err != nil {
		return endCodeFor(err), nil
	}

	return s.writeWords(writes)
}

func (s *Server) writeWords(writes []wordWrite) (uint16, []byte) {
	addrs := make([]device.Address, len(writes))
	for i, w := range writes {
		if err := s.space.CheckRange(w.addr, len(w.words), device.UnitWord); err != nil {
			return endCodeFor(err), nil
		}
		addrs[i] = w.addr
	}
	areas, err := s.areasOf(addrs)
	if err != nil {
		return endCodeFor(err), nil
	}

	lk := writeLocker(areas)
	lk.Lock()
	defer lk.Unlock()

	for i, w := range writes {
		areas[i].putWords(w.addr.Offset, w.words)
	}

	return 0, nil
}

func (s *Server) randomWriteBits(p *payload) (uint16, []byte) {
	n := p.u8()
	if n == 0 || n > s.space.Limits.RandomWriteBits {
		return EndCountRange, nil
	}

	addrs := make([]device.Address, n)
	values := make([]bool, n)
	for i := range n {
		addrs[i] = p.spec()
		values[i] = p.u8() == 1
		if s.space.Series == device.SeriesR {
			_ = p.u8()
		}
	}
	if err := p.done(); err != nil {
		return endCodeFor(err), nil
	}
	for _, addr := range addrs {
		if err := s.space.CheckRange(addr, 1, device.UnitBit); err != nil {
			return endCodeFor(err), nil
		}
	}

	areas, err := s.areasOf(addrs)
	if err != nil {
		return endCodeFor(err), nil
	}

	lk := writeLocker(areas)
	lk.Lock()
	defer lk.Unlock()

	for i, addr := range addrs {
		areas[i].putBits(addr.Offset, values[i:i+1])
	}

	return 0, nil
}

// block serves block read and block write. Word device blocks come before bit device blocks.
func (s *Server) block(p *payload, write bool) (uint16, []byte) {
	nwb, nbb := p.u8(), p.u8()
	total := nwb + nbb
	if total == 0 || total > s.space.Limits.BlockCount {
		return EndCountRange, nil
	}

	entries := make([]wordWrite, 0, total)
	counts := make([]int, 0, total)
	sum := 0
	for range total {
		addr := p.spec()
		n := p.u16()
		e := wordWrite{addr: addr}
		if write {
			e.words = p.words(n)
		}
		entries = append(entries, e)
		counts = append(counts, n)
		sum += n
	}
	if err := p.done(); err != nil {
		return endCodeFor(err), nil
	}

	if write && device.BlockWriteCost(total, sum) > s.space.Limits.BlockWriteWeight {
		return EndCountRange, nil
	}
	if !write && sum > s.space.Limits.BlockReadPoints {
		return EndCountRange, nil
	}

	for i, e := range entries {
		c, err := s.space.Code(e.addr)
		if err != nil {
			return endCodeFor(err), nil
		}
		if c.IsBit() != (i >= nwb) {
			return EndWrongFormat, nil
		}
		if err := s.space.CheckRange(e.addr, counts[i], device.UnitWord); err != nil {
			return endCodeFor(err), nil
		}
	}

	if write {
		return s.writeWords(entries)
	}

	addrs := make([]device.Address, len(entries))
	for i, e := range entries {
		addrs[i] = e.addr
	}
	areas, err := s.areasOf(addrs)
	if err != nil {
		return endCodeFor(err), nil
	}

	lk := readLocker(areas)
	lk.Lock()
	defer lk.Unlock()

	out := make([]byte, 0, sum*2)
	for i, e := range entries {
		out = plcdata.AppendWords(out, areas[i].getWords(e.addr.Offset, counts[i])...)
	}

	return 0, out
}

const latchDevice = "L"

func (s *Server) clearDevices(keepLatch bool) {
	var names []string
	for _, c := range s.space.Table.Codes() {
		if keepLatch && c.Name == latchDevice {
			continue
		}
		names = append(names, c.Name)
	}
	s.mem.Clear(names...)
}

func validMode(mode int) bool {
	return mode == 0x0001 || mode == 0x0003
}

func (s *Server) remote(cmd uint16, p *payload) (uint16, []byte) {
	mode := p.u16()
	var clearMode int
	if cmd == command.CodeRemoteRun {
		clearMode = p.u8()
		_ = p.u8()
	}
	if err := p.done(); err != nil {
		return endCodeFor(err), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd {
	case command.CodeRemoteRun:
		if !validMode(mode) || clearMode > int(command.ClearAll) {
			return EndWrongFormat, nil
		}
		s.runState = Run
		switch command.ClearMode(clearMode) { //nolint:gosec
		case command.ClearExceptLatch:
			s.clearDevices(true)
		case command.ClearAll:
			s.clearDevices(false)
		}

	case command.CodeRemoteStop:
		if mode != 0x0001 {
			return EndWrongFormat, nil
		}
		s.runState = Stop

	case command.CodeRemotePause:
		if !validMode(mode) {
			return EndWrongFormat, nil
		}
		s.runState = Pause

	case command.CodeRemoteLatchClr:
		if mode != 0x0001 {
			return EndWrongFormat, nil
		}
		if s.runState != Stop {
			return EndStateError, nil
		}
		s.mem.Clear(latchDevice)

	case command.CodeRemoteReset:
		if mode != 0x0001 {
			return EndWrongFormat, nil
		}
		if s.runState != Stop {
			return EndStateError, nil
		}
		s.clearDevices(true)
	}
	s.logger.Info("simulator state changed", "command", cmd, "state", s.runState)

	return 0, nil
}

func (s *Server) lockControl(cmd uint16, p *payload) (uint16, []byte) {
	n := p.u16()
	password := string(p.take(n))
	if err := p.done(); err != nil {
		return EndLengthMismatch, nil
	}
	if err := command.ValidatePassword(password, s.space.Series); err != nil {
		return EndWrongFormat, nil
	}
	if s.password != "" && password != s.password {
		return EndPasswordMismatch, nil
	}

	s.mu.Lock()
	s.locked = cmd == command.CodeLock
	s.mu.Unlock()

	return 0, nil
}
