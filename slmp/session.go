package slmp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/arloliu/go-slmp/command"
	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/frame"
	"github.com/arloliu/go-slmp/internal/pool"
	"github.com/arloliu/go-slmp/internal/task"
	"github.com/arloliu/go-slmp/internal/util"
	"github.com/arloliu/go-slmp/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

const readBufSize = 4096

// Session is a client connection to one SLMP endpoint.
//
// Session methods are safe for concurrent use. Exchanges are serialised: a request is only written
// after the previous exchange has received its response or failed.
type Session struct {
	cfg    *ConnectionConfig
	props  Properties
	space  device.Space
	logger logger.Logger

	stateMgr *ConnStateMgr
	taskMgr  *task.Manager
	reader   *frameReader
	serial   serialGenerator

	connMu sync.Mutex // guards conn, done and cause
	conn   net.Conn
	done   chan struct{} // closed when conn is dropped
	cause  error

	exchange chan struct{} // one-slot semaphore held for a whole exchange
	replies  *xsync.MapOf[uint16, chan *frame.Frame]

	monitorMu sync.Mutex
	monitor   []device.Point

	metrics SessionMetrics
}

// NewSession creates a disconnected session for cfg. Its goroutines end when ctx is done.
func NewSession(ctx context.Context, cfg *ConnectionConfig, handlers ...ConnStateChangeHandler) (*Session, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	props := cfg.Properties()
	l := cfg.Logger().With("endpoint", props.Address())
	s := &Session{
		cfg:      cfg,
		props:    props,
		space:    cfg.Space(),
		logger:   l,
		taskMgr:  task.NewManager(ctx, l),
		reader:   newFrameReader(),
		exchange: make(chan struct{}, 1),
		replies:  xsync.NewMapOf[uint16, chan *frame.Frame](),
	}
	s.stateMgr = NewConnStateMgr(s, l, handlers...)

	return s, nil
}

// Properties returns the endpoint identity of the session.
func (s *Session) Properties() Properties { return s.props }

// Space returns the device address space used to encode requests.
func (s *Session) Space() device.Space { return s.space }

// Logger returns the session logger.
func (s *Session) Logger() logger.Logger { return s.logger }

// Metrics returns the live counters of the session.
func (s *Session) Metrics() *SessionMetrics { return &s.metrics }

// State returns the current state.
func (s *Session) State() ConnState { return s.stateMgr.State() }

// AddStateHandler registers handlers invoked on state changes. Handlers run on the goroutine that
// changed the state, which may be the receiver; they must not call Close.
func (s *Session) AddStateHandler(handlers ...ConnStateChangeHandler) {
	s.stateMgr.AddHandler(handlers...)
}

// WaitState blocks until the session reaches state or ctx is done.
func (s *Session) WaitState(ctx context.Context, state ConnState) error {
	return s.stateMgr.WaitState(ctx, state)
}

// Connect opens the transport and starts the receiver. The serial counter restarts at the
// configured initial serial and any monitor registration is forgotten.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.stateMgr.ToConnecting(); err != nil {
		return &StateError{Op: "connect", State: s.State(), Err: ErrAlreadyConnected}
	}

	// the previous receiver must be gone before the reader is reused
	s.taskMgr.Stop()
	s.taskMgr.Wait()

	_, connectTimeout, _ := s.cfg.timeouts()
	dctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := s.dial(dctx)
	if err != nil {
		s.stateMgr.ToDisconnected()
		s.logger.Warn("failed to connect", "error", err)

		return &TransportError{Op: "connect", Err: err}
	}

	s.reader.Reset()
	s.cfg.mu.RLock()
	s.serial.reset(s.cfg.initialSerial)
	s.cfg.mu.RUnlock()
	s.setMonitor(nil)

	s.connMu.Lock()
	s.conn = conn
	s.done = make(chan struct{})
	s.cause = nil
	s.connMu.Unlock()

	if err := s.taskMgr.StartReceiver("receiver", readBufSize, s.receiverTask, nil); err != nil {
		s.dropConn(err)
		return &TransportError{Op: "connect", Err: err}
	}

	// Close may have run while dialling
	if err := s.stateMgr.ToConnected(); err != nil {
		s.dropConn(ErrConnClosed)
		return err
	}

	s.metrics.incConnectCount()
	s.logger.Info("session connected", "series", s.props.Series, "route", s.props.Route)

	return nil
}

func (s *Session) dial(ctx context.Context) (net.Conn, error) {
	s.cfg.mu.RLock()
	dial := s.cfg.dialer
	s.cfg.mu.RUnlock()

	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}

	return dial(ctx, "tcp", s.props.Address())
}

// Close releases the transport and stops the receiver. It can be called in any state, more than
// once, and after a failed exchange. Pending exchanges fail with a *TransportError.
func (s *Session) Close() error {
	s.dropConn(ErrConnClosed)
	s.stateMgr.ToDisconnected()

	s.taskMgr.Stop()
	s.taskMgr.Wait()

	return nil
}

// dropConn closes the current transport once and wakes every pending exchange.
func (s *Session) dropConn(cause error) {
	s.connMu.Lock()
	conn := s.conn
	if conn == nil {
		s.connMu.Unlock()
		return
	}
	s.conn = nil
	s.cause = cause
	close(s.done)
	s.connMu.Unlock()

	if err := conn.Close(); err != nil {
		s.logger.Debug("close transport", "error", err)
	}
	if s.stateMgr.ToDisconnected() && !errors.Is(cause, ErrConnClosed) {
		s.logger.Warn("session disconnected", "error", cause)
	}
}

func (s *Session) current() (net.Conn, <-chan struct{}) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	return s.conn, s.done
}

func (s *Session) dropCause() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.cause == nil {
		return ErrConnClosed
	}

	return s.cause
}

func (s *Session) receiverTask(buf []byte) bool {
	conn, _ := s.current()
	if conn == nil {
		return false
	}

	frames, n, err := s.reader.ReadFrames(conn, buf)
	s.metrics.addBytesRecv(n)
	for _, f := range frames {
		s.dispatch(f)
	}

	if err != nil {
		s.dropConn(err)
		return false
	}

	return true
}

// dispatch hands f to the exchange waiting for its serial.
func (s *Session) dispatch(f *frame.Frame) {
	if s.logger.Level() == logger.DebugLevel {
		s.logger.Debug("response received", "serial", f.Serial, "end_code", f.EndCode, "data", frame.HexString(f.Data))
	}

	ch, ok := s.replies.LoadAndDelete(f.Serial)
	if !ok {
		s.metrics.incUnexpectedCount()
		s.logger.Warn("drop response without pending request", "serial", f.Serial, "end_code", f.EndCode)

		return
	}
	ch <- f
}

// acquire takes the exchange slot. The caller releases it with release.
func (s *Session) acquire(ctx context.Context, op string) error {
	conn, done := s.current()
	if conn == nil {
		return &StateError{Op: op, State: s.State(), Err: ErrNotConnected}
	}

	select {
	case s.exchange <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return &TransportError{Op: op, Err: s.dropCause()}
	}
}

func (s *Session) release() { <-s.exchange }

// roundTrip writes one request and waits for the response with the same serial.
// The exchange slot must be held.
func (s *Session) roundTrip(ctx context.Context, op string, p command.Packet) (*frame.Frame, error) {
	conn, done := s.current()
	if conn == nil {
		return nil, &TransportError{Op: op, Err: s.dropCause()}
	}

	responseTimeout, _, writeTimeout := s.cfg.timeouts()

	serial := s.serial.gen()
	replyCh := make(chan *frame.Frame, 1)
	s.replies.Store(serial, replyCh)
	defer s.replies.Delete(serial)

	if err := s.writeRequest(conn, serial, p, writeTimeout); err != nil {
		s.dropConn(err)
		return nil, &TransportError{Op: op, Err: err}
	}

	timer := pool.GetTimer(responseTimeout)
	defer pool.PutTimer(timer)

	select {
	case f := <-replyCh:
		s.metrics.incResponseCount()
		return f, nil

	case <-timer.C:
		s.metrics.incTimeoutCount()
		s.logger.Warn("response timeout", "op", op, "serial", serial, "timeout", responseTimeout)

		return nil, &TimeoutError{Op: op, Serial: serial, After: responseTimeout}

	case <-done:
		return nil, &TransportError{Op: op, Err: s.dropCause()}

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) writeRequest(conn net.Conn, serial uint16, p command.Packet, timeout time.Duration) error {
	bufp := pool.GetFrameBuffer()
	defer pool.PutFrameBuffer(bufp)

	raw := frame.AppendRequest((*bufp)[:0], serial, s.props.Route, s.props.MonitoringTimer, p.Command, p.Subcommand, p.Payload)
	*bufp = raw

	if s.logger.Level() == logger.DebugLevel {
		s.logger.Debug("send request", "serial", serial, "command", p.Command, "subcommand", p.Subcommand, "frame", frame.HexString(raw))
	}

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	n, err := conn.Write(raw)
	s.metrics.addBytesSent(n)
	if err != nil {
		return err
	}
	s.metrics.incRequestCount()

	return nil
}

// Do validates, sends and decodes req. The exchange slot is held for the whole request, so the
// packets of a multi-packet request, such as a random write mixing bit and word values, are never
// interleaved with another caller's exchange.
//
// Packets are sent in order and sending stops at the first failure. When a later packet fails after
// an earlier one was acknowledged, the error is a *PartialWriteError carrying the acknowledged count.
//
// MonitorRead uses the points of the last successful MonitorRegister on this connection; without
// one it fails with a *SequenceError and nothing is sent.
func (s *Session) Do(ctx context.Context, req command.Request) (*command.Result, error) {
	if req == nil {
		return nil, &command.CommandError{Command: "<nil>", Err: command.ErrUnknownRequest}
	}
	if st := s.State(); !st.IsConnected() {
		return nil, &StateError{Op: req.Name(), State: st, Err: ErrNotConnected}
	}

	// validate before waiting for the slot; a monitor read is encoded once its points are known
	_, isMonitorRead := req.(command.MonitorRead)
	var packets []command.Packet
	if !isMonitorRead {
		var err error
		if packets, err = command.Encode(req, s.space); err != nil {
			return nil, err
		}
	}

	if err := s.acquire(ctx, req.Name()); err != nil {
		return nil, err
	}
	defer s.release()

	if isMonitorRead {
		points := s.MonitorPoints()
		if len(points) == 0 {
			return nil, &SequenceError{Op: req.Name(), Err: ErrMonitorNotRegistered}
		}
		req = command.MonitorRead{Points: points}

		var err error
		if packets, err = command.Encode(req, s.space); err != nil {
			return nil, err
		}
	}

	payloads := make([][]byte, 0, len(packets))
	for i, p := range packets {
		f, err := s.roundTrip(ctx, req.Name(), p)
		if err == nil {
			if err = command.CheckResponse(f, p.Command, p.Subcommand); err != nil {
				s.metrics.incEndCodeErrCount()
			}
		}
		if err != nil {
			if i > 0 {
				return nil, &PartialWriteError{Op: req.Name(), Applied: i, Total: len(packets), Err: err}
			}

			return nil, err
		}
		payloads = append(payloads, f.Data)
	}

	res, err := command.Decode(req, s.space, payloads)
	if err != nil {
		return nil, err
	}

	if r, ok := req.(command.MonitorRegister); ok {
		s.setMonitor(r.Points)
	}

	return res, nil
}

// MonitorPoints returns the points of the current monitor registration.
func (s *Session) MonitorPoints() []device.Point {
	s.monitorMu.Lock()
	defer s.monitorMu.Unlock()

	return util.CloneSlice(s.monitor, 0)
}

func (s *Session) setMonitor(points []device.Point) {
	s.monitorMu.Lock()
	defer s.monitorMu.Unlock()

	s.monitor = util.CloneSlice(points, 0)
}
