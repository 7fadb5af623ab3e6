package capture

import (
	"bytes"
	"io"
	"net/netip"
	"testing"
	"time"

	"github.com/arloliu/go-slmp/command"
	"github.com/arloliu/go-slmp/frame"
	"github.com/stretchr/testify/require"
)

var (
	client = netip.MustParseAddrPort("192.168.3.10:50123")
	server = netip.MustParseAddrPort("192.168.3.39:5007")
)

func TestWriterReader_RoundTrip(t *testing.T) {
	require := require.New(t)

	route := frame.DefaultRoute()
	req1 := frame.BuildRequest(1, route, 0x10, command.CodeBulkRead, 0x0002, []byte{0x64, 0, 0, 0, 0xA8, 0, 1, 0})
	resp1 := frame.BuildResponse(1, route, 0, []byte{0x34, 0x12})
	req2 := frame.BuildRequest(2, route, 0x10, command.CodeEcho, 0, []byte{4, 0, 'A', '1', 'G', '5'})
	resp2 := frame.BuildResponse(2, route, 0xC059, nil)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, client, server)
	require.NoError(err)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(w.WriteRequest(start, req1))
	// split over two segments
	require.NoError(w.WriteResponse(start.Add(time.Millisecond), resp1[:5]))
	require.NoError(w.WriteResponse(start.Add(2*time.Millisecond), resp1[5:]))
	// two requests coalesced into one segment
	require.NoError(w.WriteRequest(start.Add(3*time.Millisecond), append(append([]byte{}, req2...), req2...)))
	require.NoError(w.WriteResponse(start.Add(4*time.Millisecond), resp2))

	rd, err := NewReader(&buf)
	require.NoError(err)
	records, err := rd.ReadAll()
	require.NoError(err)
	require.Len(records, 5)

	require.True(records[0].IsRequest())
	require.Equal(client, records[0].Src)
	require.Equal(server, records[0].Dst)
	require.Equal(command.CodeBulkRead, records[0].Frame.Command)
	require.Equal(start, records[0].Time.UTC())

	require.False(records[1].IsRequest())
	require.Equal(server, records[1].Src)
	require.Equal([]byte{0x34, 0x12}, records[1].Frame.Data)
	require.Equal(start.Add(2*time.Millisecond), records[1].Time.UTC())

	require.Equal(uint16(2), records[2].Frame.Serial)
	require.Equal(uint16(2), records[3].Frame.Serial)
	require.Equal(uint16(0xC059), records[4].Frame.EndCode)
	require.Contains(records[4].String(), "192.168.3.39:5007 -> 192.168.3.10:50123")
}

func TestReader_FiltersPorts(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, client, netip.MustParseAddrPort("192.168.3.39:6000"))
	require.NoError(err)
	require.NoError(w.WriteRequest(time.Now(), frame.BuildRequest(7, frame.DefaultRoute(), 0x10, command.CodeReadCPUModel, 0, nil)))
	data := buf.Bytes()

	rd, err := NewReader(bytes.NewReader(data))
	require.NoError(err)
	records, err := rd.ReadAll()
	require.NoError(err)
	require.Empty(records)

	rd, err = NewReader(bytes.NewReader(data), WithPorts(6000))
	require.NoError(err)
	rec, err := rd.Next()
	require.NoError(err)
	require.Equal(command.CodeReadCPUModel, rec.Frame.Command)
	_, err = rd.Next()
	require.ErrorIs(err, io.EOF)
}

func TestReader_BadStream(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, client, server)
	require.NoError(err)
	require.NoError(w.WriteRequest(time.Now(), []byte{0x50, 0x00, 0x00, 0xFF, 0xFF, 0x03, 0x00, 0x0C, 0x00, 0x10, 0x00, 0x01, 0x04}))
	require.NoError(w.WriteRequest(time.Now(), frame.BuildRequest(3, frame.DefaultRoute(), 0x10, command.CodeRemoteStop, 0, []byte{1, 0})))

	rd, err := NewReader(&buf)
	require.NoError(err)
	records, err := rd.ReadAll()
	require.NoError(err)
	require.Len(records, 2)
	require.ErrorIs(records[0].Err, frame.ErrBadSubheader)
	require.Nil(records[0].Frame)
	require.Contains(records[0].String(), "error")
	require.Equal(command.CodeRemoteStop, records[1].Frame.Command)
}

func TestReader_NotACapture(t *testing.T) {
	require := require.New(t)

	_, err := NewReader(bytes.NewReader([]byte{1, 2}))
	require.Error(err)

	_, err = NewReader(bytes.NewReader(bytes.Repeat([]byte{0x42}, 64)))
	require.Error(err)
}

func TestNewWriter_IPv6Rejected(t *testing.T) {
	require := require.New(t)

	_, err := NewWriter(io.Discard, netip.MustParseAddrPort("[::1]:1000"), server)
	require.Error(err)
}
