package slmp

import "sync/atomic"

// SessionMetrics contains atomic counters of a session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// RequestCount indicates the number of request frames written.
	RequestCount atomic.Uint64
	// ResponseCount indicates the number of response frames matched to a request.
	ResponseCount atomic.Uint64
	// EndCodeErrCount indicates the number of responses with a non-zero end code.
	EndCodeErrCount atomic.Uint64
	// TimeoutCount indicates the number of exchanges that hit the response timeout.
	TimeoutCount atomic.Uint64
	// UnexpectedCount indicates the number of response frames whose serial matched no pending request.
	UnexpectedCount atomic.Uint64
	// BytesSent and BytesRecv count transport bytes.
	BytesSent atomic.Uint64
	BytesRecv atomic.Uint64
	// ConnectCount indicates the number of successful connects.
	ConnectCount atomic.Uint64
}

func (m *SessionMetrics) incRequestCount() { m.RequestCount.Add(1) }

func (m *SessionMetrics) incResponseCount() { m.ResponseCount.Add(1) }

func (m *SessionMetrics) incEndCodeErrCount() { m.EndCodeErrCount.Add(1) }

func (m *SessionMetrics) incTimeoutCount() { m.TimeoutCount.Add(1) }

func (m *SessionMetrics) incUnexpectedCount() { m.UnexpectedCount.Add(1) }

func (m *SessionMetrics) addBytesSent(n int) { m.BytesSent.Add(uint64(n)) } //nolint:gosec

func (m *SessionMetrics) addBytesRecv(n int) { m.BytesRecv.Add(uint64(n)) } //nolint:gosec

func (m *SessionMetrics) incConnectCount() { m.ConnectCount.Add(1) }
