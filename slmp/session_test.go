package slmp

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-slmp/command"
	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/frame"
	"github.com/arloliu/go-slmp/logger"
	"github.com/arloliu/go-slmp/plcdata"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSession_NotConnected(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte { return okResponse(req, nil) })
	sess := newTestSession(t, plc)

	_, err := sess.ReadWords(context.Background(), device.Addr("D", 0), 1)

	var stateErr *StateError
	require.ErrorAs(err, &stateErr)
	require.ErrorIs(err, ErrNotConnected)
	require.Equal(DisconnectedState, stateErr.State)
	require.Zero(plc.dials)
}

func TestSession_ReadWords(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte {
		return wordsResponse(req, 0x1234, 0x0000, 0xFFFF)
	})
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))
	require.Equal(ConnectedState, sess.State())

	words, err := sess.ReadWords(ctx, device.Addr("D", 100), 3)
	require.NoError(err)
	require.Equal([]uint16{0x1234, 0x0000, 0xFFFF}, words)

	reqs := plc.received()
	require.Len(reqs, 1)
	require.Equal(command.CodeBulkRead, reqs[0].Command)
	require.Equal(uint16(0x0002), reqs[0].Subcommand)
	require.Equal([]byte{0x64, 0x00, 0x00, 0x00, 0xA8, 0x00, 0x03, 0x00}, reqs[0].Data)
	require.Equal(uint16(0x0010), reqs[0].Timer)

	m := sess.Metrics()
	require.Equal(uint64(1), m.RequestCount.Load())
	require.Equal(uint64(1), m.ResponseCount.Load())
	require.Equal(uint64(1), m.ConnectCount.Load())
}

func TestSession_QSeriesBits(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte {
		return okResponse(req, []byte{0x10, 0x01})
	})
	sess := newTestSession(t, plc, WithSeries(device.SeriesQ))
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))

	bits, err := sess.ReadBits(ctx, device.Addr("M", 0), 4)
	require.NoError(err)
	require.Equal([]bool{true, false, false, true}, bits)

	reqs := plc.received()
	require.Len(reqs, 1)
	require.Equal(uint16(0x0001), reqs[0].Subcommand)
	require.Equal([]byte{0x00, 0x00, 0x00, 0x90, 0x04, 0x00}, reqs[0].Data)
}

func TestSession_SerialNumbers(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte { return wordsResponse(req, 1) })
	sess := newTestSession(t, plc, WithInitialSerial(0xFFFF))
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))
	for range 2 {
		_, err := sess.ReadWords(ctx, device.Addr("D", 0), 1)
		require.NoError(err)
	}

	require.NoError(sess.Close())
	require.NoError(sess.Connect(ctx))
	_, err := sess.ReadWords(ctx, device.Addr("D", 0), 1)
	require.NoError(err)

	reqs := plc.received()
	require.Len(reqs, 3)
	require.Equal(uint16(0xFFFF), reqs[0].Serial)
	require.Equal(uint16(0x0000), reqs[1].Serial)
	require.Equal(uint16(0xFFFF), reqs[2].Serial)
	require.Equal(2, plc.dials)
}

// TestSession_Timeout verifies that a timed out exchange leaves the session usable and that the
// late response is discarded.
func TestSession_Timeout(t *testing.T) {
	require := require.New(t)

	var calls int
	plc := newFakePLC(func(req *frame.Frame) []byte {
		calls++
		if calls == 1 {
			time.Sleep(150 * time.Millisecond)
			return wordsResponse(req, 0xDEAD)
		}

		return wordsResponse(req, 0x0042)
	})
	sess := newTestSession(t, plc, WithResponseTimeout(50*time.Millisecond))
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))

	_, err := sess.ReadWords(ctx, device.Addr("D", 0), 1)
	var timeoutErr *TimeoutError
	require.ErrorAs(err, &timeoutErr)
	require.ErrorIs(err, ErrResponseTimeout)
	require.True(timeoutErr.Timeout())
	require.Equal(50*time.Millisecond, timeoutErr.After)
	require.Equal(ConnectedState, sess.State())

	words, err := sess.ReadWords(ctx, device.Addr("D", 0), 1)
	require.NoError(err)
	require.Equal([]uint16{0x0042}, words)

	m := sess.Metrics()
	require.Equal(uint64(1), m.TimeoutCount.Load())
	require.Equal(uint64(1), m.UnexpectedCount.Load())
}

func TestSession_PlcError(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte {
		info := frame.ErrorInfo{Route: req.Route, Command: req.Command, Subcommand: req.Subcommand}
		return frame.AppendErrorResponse(nil, req.Serial, req.Route, 0x4031, info)
	})
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))

	_, err := sess.ReadWords(ctx, device.Addr("D", 0), 1)
	var plcErr *command.PlcError
	require.ErrorAs(err, &plcErr)
	require.Equal(uint16(0x4031), plcErr.EndCode)
	require.Equal(command.CodeBulkRead, plcErr.Command)
	require.True(plcErr.HasInfo)
	require.Equal(command.CodeBulkRead, plcErr.Info.Command)

	require.Equal(ConnectedState, sess.State())
	require.Equal(uint64(1), sess.Metrics().EndCodeErrCount.Load())
}

// TestSession_OversizedRequest verifies that address validation fails before anything is written
// and that Close releases the transport once.
func TestSession_OversizedRequest(t *testing.T) {
	require := require.New(t)

	closed := make(chan time.Time)
	conn := &MockConn{}
	conn.On("Read", mock.Anything).WaitUntil(closed).Return(0, io.EOF).Maybe()
	conn.On("Close").Run(func(mock.Arguments) { close(closed) }).Return(nil).Once()

	cfg, err := NewConnectionConfig("127.0.0.1", 5007,
		WithDialer(func(context.Context, string, string) (net.Conn, error) { return conn, nil }),
		WithLogger(logger.NewPermissiveMockLogger()),
	)
	require.NoError(err)
	sess, err := NewSession(context.Background(), cfg)
	require.NoError(err)

	ctx := context.Background()
	require.NoError(sess.Connect(ctx))

	_, err = sess.ReadWords(ctx, device.Addr("D", 0), 961)
	var addrErr *device.AddressError
	require.ErrorAs(err, &addrErr)
	require.ErrorIs(err, device.ErrTooManyPoints)

	_, err = sess.ReadWords(ctx, device.Addr("SD", 4095), 2)
	require.ErrorIs(err, device.ErrOutOfRange)

	require.Equal(ConnectedState, sess.State())

	require.NoError(sess.Close())
	require.NoError(sess.Close())
	require.Equal(DisconnectedState, sess.State())

	conn.AssertNotCalled(t, "Write", mock.Anything)
	conn.AssertNumberOfCalls(t, "Close", 1)
}

func TestSession_MonitorSequence(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte {
		switch req.Command {
		case command.CodeMonitorRegister:
			return okResponse(req, nil)
		case command.CodeMonitorRead:
			// one word point, then one double word point
			return okResponse(req, []byte{0x07, 0x00, 0x78, 0x56, 0x34, 0x12})
		default:
			return nil
		}
	})
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))

	_, err := sess.ReadMonitor(ctx)
	var seqErr *SequenceError
	require.ErrorAs(err, &seqErr)
	require.ErrorIs(err, ErrMonitorNotRegistered)
	require.Empty(plc.received())

	points := []device.Point{
		device.NewPoint(device.Addr("D", 10), plcdata.U32),
		device.NewPoint(device.Addr("D", 0), plcdata.U16),
	}
	require.NoError(sess.RegisterMonitor(ctx, points...))
	require.Equal(points, sess.MonitorPoints())

	values, err := sess.ReadMonitor(ctx)
	require.NoError(err)
	require.Len(values, 2)
	require.Equal(uint32(0x12345678), values[0].U32())
	require.Equal(uint16(7), values[1].U16())

	reqs := plc.received()
	require.Len(reqs, 2)
	require.Equal(command.CodeMonitorRead, reqs[1].Command)
	require.Empty(reqs[1].Data)

	// registration does not survive a reconnect
	require.NoError(sess.Close())
	require.NoError(sess.Connect(ctx))
	_, err = sess.ReadMonitor(ctx)
	require.ErrorIs(err, ErrMonitorNotRegistered)
}

// TestSession_MonitorRegisterDuringRead verifies that a monitor read issued while a registration
// is in flight decodes against the new registration.
func TestSession_MonitorRegisterDuringRead(t *testing.T) {
	require := require.New(t)

	var registers atomic.Int32
	plc := newFakePLC(func(req *frame.Frame) []byte {
		switch req.Command {
		case command.CodeMonitorRegister:
			if registers.Add(1) == 2 {
				time.Sleep(50 * time.Millisecond)
			}
			return okResponse(req, nil)
		case command.CodeMonitorRead:
			return wordsResponse(req, 0xFFFF)
		default:
			return nil
		}
	})
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))
	require.NoError(sess.RegisterMonitor(ctx, device.NewPoint(device.Addr("D", 0), plcdata.U16)))

	next := device.NewPoint(device.Addr("D", 5), plcdata.I16)
	errCh := make(chan error, 1)
	go func() { errCh <- sess.RegisterMonitor(ctx, next) }()

	require.Eventually(func() bool { return len(plc.received()) == 2 }, time.Second, time.Millisecond)
	values, err := sess.ReadMonitor(ctx)
	require.NoError(err)
	require.NoError(<-errCh)

	require.Len(values, 1)
	require.Equal(plcdata.I16, values[0].Type())
	require.Equal(int16(-1), values[0].I16())
	require.Equal([]device.Point{next}, sess.MonitorPoints())
}

func TestSession_RandomWriteMixed(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte { return okResponse(req, nil) })
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))
	require.NoError(sess.WriteRandom(ctx,
		command.DeviceValue{Address: device.Addr("M", 5), Value: plcdata.NewBool(true)},
		command.DeviceValue{Address: device.Addr("D", 1), Value: plcdata.NewU16(9)},
	))

	reqs := plc.received()
	require.Len(reqs, 2)
	require.Equal(command.CodeRandomWrite, reqs[0].Command)
	require.Equal(uint16(0x0002), reqs[0].Subcommand)
	require.Equal(uint16(0x0003), reqs[1].Subcommand)
}

// TestSession_RandomWriteHoldsExchange verifies that no other exchange is sent between the
// packets of a mixed random write.
func TestSession_RandomWriteHoldsExchange(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte {
		if req.Command == command.CodeRandomWrite && req.Subcommand == 0x0002 {
			time.Sleep(50 * time.Millisecond)
		}
		if req.Command == command.CodeBulkRead {
			return wordsResponse(req, 1)
		}

		return okResponse(req, nil)
	})
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))

	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.WriteRandom(ctx,
			command.DeviceValue{Address: device.Addr("M", 5), Value: plcdata.NewBool(true)},
			command.DeviceValue{Address: device.Addr("D", 1), Value: plcdata.NewU16(9)},
		)
	}()

	require.Eventually(func() bool { return len(plc.received()) == 1 }, time.Second, time.Millisecond)
	_, err := sess.ReadWords(ctx, device.Addr("D", 0), 1)
	require.NoError(err)
	require.NoError(<-errCh)

	reqs := plc.received()
	require.Len(reqs, 3)
	require.Equal(command.CodeRandomWrite, reqs[0].Command)
	require.Equal(command.CodeRandomWrite, reqs[1].Command)
	require.Equal(uint16(0x0003), reqs[1].Subcommand)
	require.Equal(command.CodeBulkRead, reqs[2].Command)
}

func TestSession_RandomWritePartial(t *testing.T) {
	require := require.New(t)

	var failAll atomic.Bool
	plc := newFakePLC(func(req *frame.Frame) []byte {
		if failAll.Load() || req.Subcommand == 0x0003 {
			info := frame.ErrorInfo{Route: req.Route, Command: req.Command, Subcommand: req.Subcommand}
			return frame.AppendErrorResponse(nil, req.Serial, req.Route, 0xC051, info)
		}

		return okResponse(req, nil)
	})
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))

	err := sess.WriteRandom(ctx,
		command.DeviceValue{Address: device.Addr("M", 5), Value: plcdata.NewBool(true)},
		command.DeviceValue{Address: device.Addr("D", 1), Value: plcdata.NewU16(9)},
	)
	var partialErr *PartialWriteError
	require.ErrorAs(err, &partialErr)
	require.Equal(1, partialErr.Applied)
	require.Equal(2, partialErr.Total)
	var plcErr *command.PlcError
	require.ErrorAs(err, &plcErr)
	require.Equal(uint16(0xC051), plcErr.EndCode)

	// a failure on the first packet is returned as is
	failAll.Store(true)
	err = sess.WriteRandom(ctx, command.DeviceValue{Address: device.Addr("D", 1), Value: plcdata.NewU16(9)})
	require.ErrorAs(err, &plcErr)
	require.False(errors.As(err, &partialErr))
	require.Equal(ConnectedState, sess.State())
}

func TestSession_ConnectFailure(t *testing.T) {
	require := require.New(t)

	dialErr := errors.New("connection refused")
	cfg, err := NewConnectionConfig("127.0.0.1", 5007,
		WithDialer(func(context.Context, string, string) (net.Conn, error) { return nil, dialErr }),
		WithLogger(logger.NewPermissiveMockLogger()),
	)
	require.NoError(err)
	sess, err := NewSession(context.Background(), cfg)
	require.NoError(err)

	err = sess.Connect(context.Background())
	var transportErr *TransportError
	require.ErrorAs(err, &transportErr)
	require.ErrorIs(err, dialErr)
	require.Equal(DisconnectedState, sess.State())
	require.NoError(sess.Close())
}

func TestSession_ConnectTwice(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte { return okResponse(req, nil) })
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))
	require.ErrorIs(sess.Connect(ctx), ErrAlreadyConnected)
	require.Equal(1, plc.dials)
}

func TestSession_PeerClose(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(*frame.Frame) []byte { return nil })
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))

	errCh := make(chan error, 1)
	go func() {
		_, err := sess.ReadWords(ctx, device.Addr("D", 0), 1)
		errCh <- err
	}()

	require.Eventually(func() bool { return len(plc.received()) == 1 }, time.Second, 5*time.Millisecond)
	plc.closeAll()

	err := <-errCh
	var transportErr *TransportError
	require.ErrorAs(err, &transportErr)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(sess.WaitState(waitCtx, DisconnectedState))

	_, err = sess.ReadWords(ctx, device.Addr("D", 0), 1)
	require.ErrorIs(err, ErrNotConnected)

	// a dropped session can be connected again
	require.NoError(sess.Connect(ctx))
	require.Equal(ConnectedState, sess.State())
}

func TestSession_CloseWakesPending(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(*frame.Frame) []byte { return nil })
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))

	errCh := make(chan error, 1)
	go func() {
		_, err := sess.ReadWords(ctx, device.Addr("D", 0), 1)
		errCh <- err
	}()

	require.Eventually(func() bool { return len(plc.received()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(sess.Close())

	err := <-errCh
	require.ErrorIs(err, ErrConnClosed)
}

func TestSession_ContextCancel(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(*frame.Frame) []byte { return nil })
	sess := newTestSession(t, plc)

	require.NoError(sess.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := sess.ReadWords(ctx, device.Addr("D", 0), 1)
	require.ErrorIs(err, context.DeadlineExceeded)
	require.Equal(ConnectedState, sess.State())
}

// TestSession_Concurrent verifies that concurrent callers are serialised and each gets its own answer.
func TestSession_Concurrent(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte {
		// answer with the requested head device number
		return wordsResponse(req, uint16(req.Data[0]))
	})
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			words, err := sess.ReadWords(ctx, device.Addr("D", uint32(i)), 1) //nolint:gosec
			if err != nil {
				errs <- err
				return
			}
			if words[0] != uint16(i) { //nolint:gosec
				errs <- errors.New("mismatched response")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(err)
	}
	require.Len(plc.received(), 16)
}

func TestSession_StateHandler(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte { return okResponse(req, nil) })
	sess := newTestSession(t, plc)

	var mu sync.Mutex
	var states []ConnState
	sess.AddStateHandler(func(s *Session, _ ConnState, cur ConnState) {
		require.Same(sess, s)
		mu.Lock()
		states = append(states, cur)
		mu.Unlock()
	})

	require.NoError(sess.Connect(context.Background()))
	require.NoError(sess.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Equal([]ConnState{ConnectingState, ConnectedState, DisconnectedState}, states)
}

func TestSession_UnitControl(t *testing.T) {
	require := require.New(t)

	plc := newFakePLC(func(req *frame.Frame) []byte {
		switch req.Command {
		case command.CodeReadCPUModel:
			name := []byte("R04CPU          ")
			return okResponse(req, append(name, 0x48, 0x48))
		case command.CodeEcho:
			return okResponse(req, req.Data)
		default:
			return okResponse(req, nil)
		}
	})
	sess := newTestSession(t, plc)
	ctx := context.Background()

	require.NoError(sess.Connect(ctx))

	model, err := sess.ReadCPUModel(ctx)
	require.NoError(err)
	require.Equal("R04CPU", model.Name)
	require.Equal(uint16(0x4848), model.Code)

	echo, err := sess.Echo(ctx, nil)
	require.NoError(err)
	require.Equal(command.DefaultEchoData, echo)

	require.NoError(sess.RemoteRun(ctx, false, command.ClearNone))
	require.NoError(sess.RemoteStop(ctx))
	require.NoError(sess.RemotePause(ctx, true))
	require.NoError(sess.RemoteLatchClear(ctx))
	require.NoError(sess.RemoteReset(ctx, true))
	require.NoError(sess.Unlock(ctx, "secret"))
	require.NoError(sess.Lock(ctx, "secret"))

	require.ErrorIs(sess.RemoteReset(ctx, false), command.ErrUnconfirmedReset)
	require.ErrorIs(sess.Unlock(ctx, "abc"), command.ErrInvalidPassword)

	reqs := plc.received()
	require.Len(reqs, 9)
	require.Equal(command.CodeRemoteRun, reqs[2].Command)
	require.Equal([]byte{0x01, 0x00, 0x00, 0x00}, reqs[2].Data)
	require.Equal(command.CodeRemotePause, reqs[4].Command)
	require.Equal([]byte{0x03, 0x00}, reqs[4].Data)
}
