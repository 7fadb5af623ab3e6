package slmp

import (
	"context"

	"github.com/arloliu/go-slmp/command"
	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/plcdata"
)

// ReadWords reads count consecutive words starting at start.
func (s *Session) ReadWords(ctx context.Context, start device.Address, count int) ([]uint16, error) {
	res, err := s.Do(ctx, command.BulkRead{Start: start, Type: plcdata.U16, Count: count})
	if err != nil {
		return nil, err
	}

	return res.Words, nil
}

// ReadBits reads count consecutive bits of a bit device starting at start.
func (s *Session) ReadBits(ctx context.Context, start device.Address, count int) ([]bool, error) {
	res, err := s.Do(ctx, command.BulkRead{Start: start, Type: plcdata.Bool, Count: count})
	if err != nil {
		return nil, err
	}

	return res.Bits, nil
}

// ReadValues reads count consecutive values of type t starting at start.
func (s *Session) ReadValues(ctx context.Context, start device.Address, t plcdata.DataType, count int) ([]plcdata.Value, error) {
	res, err := s.Do(ctx, command.BulkRead{Start: start, Type: t, Count: count})
	if err != nil {
		return nil, err
	}

	return res.Values, nil
}

// WriteWords writes words consecutively starting at start.
func (s *Session) WriteWords(ctx context.Context, start device.Address, words ...uint16) error {
	values := make([]plcdata.Value, len(words))
	for i, w := range words {
		values[i] = plcdata.NewU16(w)
	}

	return s.WriteValues(ctx, start, values...)
}

// WriteBits writes bits consecutively starting at start.
func (s *Session) WriteBits(ctx context.Context, start device.Address, bits ...bool) error {
	values := make([]plcdata.Value, len(bits))
	for i, b := range bits {
		values[i] = plcdata.NewBool(b)
	}

	return s.WriteValues(ctx, start, values...)
}

// WriteValues writes values consecutively starting at start.
func (s *Session) WriteValues(ctx context.Context, start device.Address, values ...plcdata.Value) error {
	_, err := s.Do(ctx, command.BulkWrite{Start: start, Values: values})
	return err
}

// ReadRandom reads scattered points. Values are returned in the order of points.
func (s *Session) ReadRandom(ctx context.Context, points ...device.Point) ([]plcdata.Value, error) {
	res, err := s.Do(ctx, command.RandomRead{Points: points})
	if err != nil {
		return nil, err
	}

	return res.Values, nil
}

// WriteRandom writes scattered values.
func (s *Session) WriteRandom(ctx context.Context, values ...command.DeviceValue) error {
	_, err := s.Do(ctx, command.RandomWrite{Values: values})
	return err
}

// ReadBlocks reads several ranges in one exchange. Blocks are returned in the order of ranges.
func (s *Session) ReadBlocks(ctx context.Context, ranges ...device.Range) ([]command.Block, error) {
	res, err := s.Do(ctx, command.BlockRead{Ranges: ranges})
	if err != nil {
		return nil, err
	}

	return res.Blocks, nil
}

// WriteBlocks writes several ranges in one exchange.
func (s *Session) WriteBlocks(ctx context.Context, blocks ...command.Block) error {
	_, err := s.Do(ctx, command.BlockWrite{Blocks: blocks})
	return err
}

// RegisterMonitor registers points for ReadMonitor, replacing any earlier registration.
func (s *Session) RegisterMonitor(ctx context.Context, points ...device.Point) error {
	_, err := s.Do(ctx, command.MonitorRegister{Points: points})
	return err
}

// ReadMonitor reads the registered points.
func (s *Session) ReadMonitor(ctx context.Context) ([]plcdata.Value, error) {
	res, err := s.Do(ctx, command.MonitorRead{})
	if err != nil {
		return nil, err
	}

	return res.Values, nil
}

// RemoteRun switches the CPU to RUN.
func (s *Session) RemoteRun(ctx context.Context, force bool, clear command.ClearMode) error {
	_, err := s.Do(ctx, command.RemoteRun{Force: force, Clear: clear})
	return err
}

// RemoteStop switches the CPU to STOP.
func (s *Session) RemoteStop(ctx context.Context) error {
	_, err := s.Do(ctx, command.RemoteStop{})
	return err
}

// RemotePause switches the CPU to PAUSE.
func (s *Session) RemotePause(ctx context.Context, force bool) error {
	_, err := s.Do(ctx, command.RemotePause{Force: force})
	return err
}

// RemoteLatchClear clears latched devices. The CPU must be stopped.
func (s *Session) RemoteLatchClear(ctx context.Context) error {
	_, err := s.Do(ctx, command.RemoteLatchClear{})
	return err
}

// RemoteReset resets the CPU. confirm must be true.
//
// A CPU may reset before answering, so a *TimeoutError here does not mean the reset failed.
func (s *Session) RemoteReset(ctx context.Context, confirm bool) error {
	_, err := s.Do(ctx, command.RemoteReset{Confirm: confirm})
	return err
}

// ReadCPUModel returns the model name and code of the CPU.
func (s *Session) ReadCPUModel(ctx context.Context) (command.CPUModel, error) {
	res, err := s.Do(ctx, command.ReadCPUModel{})
	if err != nil {
		return command.CPUModel{}, err
	}

	return res.Model, nil
}

// Unlock releases the remote password lock.
func (s *Session) Unlock(ctx context.Context, password string) error {
	_, err := s.Do(ctx, command.Unlock{Password: password})
	return err
}

// Lock engages the remote password lock.
func (s *Session) Lock(ctx context.Context, password string) error {
	_, err := s.Do(ctx, command.Lock{Password: password})
	return err
}

// Echo sends a loopback test. Empty data sends command.DefaultEchoData.
func (s *Session) Echo(ctx context.Context, data []byte) ([]byte, error) {
	res, err := s.Do(ctx, command.Echo{Data: data})
	if err != nil {
		return nil, err
	}

	return res.Echo, nil
}
