package simulator

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-slmp/command"
	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/frame"
	"github.com/arloliu/go-slmp/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// RunState is the operating state of the simulated CPU.
type RunState uint8

const (
	Run RunState = iota
	Stop
	Pause
)

func (s RunState) String() string {
	switch s {
	case Run:
		return "RUN"
	case Stop:
		return "STOP"
	case Pause:
		return "PAUSE"
	default:
		return "UNKNOWN"
	}
}

// Fault alters the answer to matching requests.
type Fault struct {
	// Command selects the requests affected; zero matches every command.
	Command uint16
	// Times is how many requests the fault applies to; zero means until ClearFaults.
	Times int
	// Delay postpones the response.
	Delay time.Duration
	// Drop suppresses the response.
	Drop bool
	// EndCode, when non-zero, replaces the response with an error response.
	EndCode uint16
	// Close drops the connection instead of answering.
	Close bool
}

// Option configures a Server.
type Option func(*Server)

// WithSeries selects the CPU series. The default is iQ-R.
func WithSeries(series device.Series) Option {
	return func(s *Server) { s.space.Series = series }
}

// WithDeviceTable replaces the device table.
func WithDeviceTable(table *device.Table) Option {
	return func(s *Server) {
		if table != nil {
			s.space.Table = table
		}
	}
}

// WithCPUModel sets the answer to the CPU model request.
func WithCPUModel(name string, code uint16) Option {
	return func(s *Server) { s.model = command.CPUModel{Name: name, Code: code} }
}

// WithPassword sets the remote password checked by unlock.
func WithPassword(password string) Option {
	return func(s *Server) { s.password = password }
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server is a simulated SLMP endpoint. Each connection is served by its own goroutine; requests
// on one connection are answered in order.
type Server struct {
	space    device.Space
	mem      *Memory
	logger   logger.Logger
	model    command.CPUModel
	password string

	mu       sync.Mutex // guards the fields below
	ln       net.Listener
	conns    map[uint64]net.Conn
	faults   []*Fault
	runState RunState
	locked   bool

	monitors *xsync.MapOf[uint64, []device.Point]
	ctx      context.Context // outlives dial contexts; cancelled by Close
	cancel   context.CancelFunc
	nextConn atomic.Uint64
	requests atomic.Uint64
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// New creates a server in RUN state with zeroed memory.
func New(opts ...Option) *Server {
	s := &Server{
		space:    device.NewSpace(device.SeriesR),
		logger:   logger.GetLogger(),
		model:    command.CPUModel{Name: "R04CPU", Code: 0x4800},
		conns:    make(map[uint64]net.Conn),
		monitors: xsync.NewMapOf[uint64, []device.Point](),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mem = NewMemory(s.space)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s
}

// Memory returns the device memory.
func (s *Server) Memory() *Memory { return s.mem }

// Space returns the address space the server decodes requests with.
func (s *Server) Space() device.Space { return s.space }

// RunState returns the operating state.
func (s *Server) RunState() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runState
}

// Locked reports whether the remote password lock is engaged.
func (s *Server) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.locked
}

// Requests returns the number of requests received.
func (s *Server) Requests() uint64 { return s.requests.Load() }

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conns)
}

// InjectFault adds a fault. Faults are matched in the order they were added.
func (s *Server) InjectFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faults = append(s.faults, &f)
}

// ClearFaults removes every fault.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faults = nil
}

// takeFault returns the first fault matching cmd and consumes one use of it.
func (s *Server) takeFault(cmd uint16) (Fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.faults {
		if f.Command != 0 && f.Command != cmd {
			continue
		}
		matched := *f
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				s.faults = append(s.faults[:i], s.faults[i+1:]...)
			}
		}

		return matched, true
	}

	return Fault{}, false
}

// ListenAndServe listens on the TCP address addr and serves until ctx is done or Close is called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.logger.Info("simulator listening", "addr", ln.Addr().String(), "series", s.space.Series)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			return err
		}
		s.goServe(conn)
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln == nil {
		return nil
	}

	return s.ln.Addr()
}

// Dial connects to the server over an in-memory pipe. It matches slmp.DialFunc.
// The connection lives until either side closes it or the server is closed; ctx only bounds
// the dial itself.
func (s *Server) Dial(ctx context.Context, _, _ string) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, server := net.Pipe()
	if !s.goServe(server) {
		_ = client.Close()
		return nil, net.ErrClosed
	}

	return client, nil
}

// goServe serves conn on the server context. It returns false when the server is closed.
func (s *Server) goServe(conn net.Conn) bool {
	id := s.nextConn.Add(1)

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		_ = conn.Close()

		return false
	}
	s.conns[id] = conn
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.ServeConn(s.ctx, id, conn)
	}()

	return true
}

// ServeConn answers requests on conn until it is closed. id keys the monitor registration of
// the connection.
func (s *Server) ServeConn(ctx context.Context, id uint64, conn net.Conn) {
	l := s.logger.With("conn", id)
	defer func() {
		_ = conn.Close()
		s.monitors.Delete(id)
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		l.Debug("simulator connection closed")
	}()

	dec := frame.NewRequestDecoder()
	buf := make([]byte, 4096)
	for ctx.Err() == nil {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		_, _ = dec.Write(buf[:n])

		for {
			req, err := dec.Next()
			if err != nil {
				if frame.IsFatal(err) {
					l.Warn("drop connection on bad frame", "error", err)
					return
				}

				break
			}
			if !s.respond(conn, id, req, l) {
				return
			}
		}
	}
}

// respond answers one request. It returns false when the connection should be dropped.
func (s *Server) respond(conn net.Conn, id uint64, req *frame.Frame, l logger.Logger) bool {
	s.requests.Add(1)

	fault, faulty := s.takeFault(req.Command)
	if faulty {
		if fault.Delay > 0 {
			time.Sleep(fault.Delay)
		}
		if fault.Close {
			return false
		}
		if fault.Drop {
			l.Debug("drop response", "serial", req.Serial, "command", req.Command)
			return true
		}
	}

	endCode, data := s.handle(id, req)
	if faulty && fault.EndCode != 0 {
		endCode = fault.EndCode
	}

	var raw []byte
	if endCode != 0 {
		info := frame.ErrorInfo{Route: req.Route, Command: req.Command, Subcommand: req.Subcommand}
		raw = frame.AppendErrorResponse(nil, req.Serial, req.Route, endCode, info)
		l.Debug("error response", "serial", req.Serial, "command", req.Command, "end_code", endCode)
	} else {
		raw = frame.BuildResponse(req.Serial, req.Route, 0, data)
	}

	if _, err := conn.Write(raw); err != nil {
		l.Debug("write response", "error", err)
		return false
	}

	return true
}

// Close stops the listener and closes every connection, then waits for their goroutines.
func (s *Server) Close() error {
	s.mu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	s.cancel()

	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	return err
}

// DropConnections closes every open connection but keeps the server running.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conns {
		_ = c.Close()
	}
}
