package slmp

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-slmp/frame"
	"github.com/arloliu/go-slmp/logger"
	"github.com/arloliu/go-slmp/plcdata"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)

	os.Exit(m.Run())
}

type MockConn struct {
	mock.Mock
}

var _ net.Conn = (*MockConn)(nil)

func (m *MockConn) Read(b []byte) (n int, err error) {
	args := m.Called(b)
	return args.Int(0), args.Error(1)
}

func (m *MockConn) Write(b []byte) (n int, err error) {
	args := m.Called(b)
	return args.Int(0), args.Error(1)
}

func (m *MockConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConn) LocalAddr() net.Addr {
	args := m.Called()
	return args.Get(0).(net.Addr)
}

func (m *MockConn) RemoteAddr() net.Addr {
	args := m.Called()
	return args.Get(0).(net.Addr)
}

func (m *MockConn) SetDeadline(t time.Time) error {
	args := m.Called(t)
	return args.Error(0)
}

func (m *MockConn) SetReadDeadline(t time.Time) error {
	args := m.Called(t)
	return args.Error(0)
}

func (m *MockConn) SetWriteDeadline(t time.Time) error {
	args := m.Called(t)
	return args.Error(0)
}

// plcHandler answers one request frame. A nil result sends nothing.
type plcHandler func(req *frame.Frame) []byte

// fakePLC serves sessions over net.Pipe connections.
type fakePLC struct {
	handler plcHandler

	mu       sync.Mutex
	requests []*frame.Frame
	conns    []net.Conn
	dials    int
}

func newFakePLC(handler plcHandler) *fakePLC {
	return &fakePLC{handler: handler}
}

func (p *fakePLC) dial(_ context.Context, _, _ string) (net.Conn, error) {
	client, server := net.Pipe()

	p.mu.Lock()
	p.conns = append(p.conns, server)
	p.dials++
	p.mu.Unlock()

	go p.serve(server)

	return client, nil
}

func (p *fakePLC) serve(conn net.Conn) {
	defer conn.Close()

	dec := frame.NewRequestDecoder()
	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		_, _ = dec.Write(buf[:n])

		for {
			req, err := dec.Next()
			if err != nil {
				if frame.IsFatal(err) {
					return
				}
				break
			}

			p.mu.Lock()
			p.requests = append(p.requests, req)
			p.mu.Unlock()

			if resp := p.handler(req); resp != nil {
				if _, err := conn.Write(resp); err != nil {
					return
				}
			}
		}
	}
}

func (p *fakePLC) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.conns {
		_ = c.Close()
	}
}

func (p *fakePLC) received() []*frame.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*frame.Frame(nil), p.requests...)
}

func okResponse(req *frame.Frame, data []byte) []byte {
	return frame.BuildResponse(req.Serial, req.Route, 0, data)
}

func wordsResponse(req *frame.Frame, words ...uint16) []byte {
	return okResponse(req, plcdata.AppendWords(nil, words...))
}

func newTestSession(t *testing.T, plc *fakePLC, opts ...ConnOption) *Session {
	t.Helper()

	opts = append([]ConnOption{
		WithDialer(plc.dial),
		WithResponseTimeout(time.Second),
		WithLogger(logger.NewPermissiveMockLogger()),
	}, opts...)

	cfg, err := NewConnectionConfig("127.0.0.1", 5007, opts...)
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	sess, err := NewSession(context.Background(), cfg)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	return sess
}
