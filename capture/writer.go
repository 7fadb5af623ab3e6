package capture

import (
	"fmt"
	"io"
	"net/netip"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65535

var (
	clientMAC = []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverMAC = []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// Writer records one client/server conversation as an Ethernet pcap stream. Each write becomes a
// single TCP segment with consistent sequence numbers, so the file opens cleanly in Wireshark.
//
// Writer is safe for concurrent use.
type Writer struct {
	mu        sync.Mutex
	w         *pcapgo.Writer
	client    netip.AddrPort
	server    netip.AddrPort
	clientSeq uint32
	serverSeq uint32
}

// NewWriter writes the pcap file header to w. client and server must both be IPv4.
func NewWriter(w io.Writer, client, server netip.AddrPort) (*Writer, error) {
	if !client.Addr().Is4() || !server.Addr().Is4() {
		return nil, fmt.Errorf("capture writer needs IPv4 endpoints, got %s and %s", client, server)
	}

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}

	return &Writer{w: pw, client: client, server: server, clientSeq: 1, serverSeq: 1}, nil
}

// WriteRequest records data sent from the client to the server.
func (w *Writer) WriteRequest(ts time.Time, data []byte) error {
	return w.write(ts, true, data)
}

// WriteResponse records data sent from the server to the client.
func (w *Writer) WriteResponse(ts time.Time, data []byte) error {
	return w.write(ts, false, data)
}

func (w *Writer) write(ts time.Time, toServer bool, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	src, dst := w.client, w.server
	srcMAC, dstMAC := clientMAC, serverMAC
	seq, ack := &w.clientSeq, w.serverSeq
	if !toServer {
		src, dst = dst, src
		srcMAC, dstMAC = dstMAC, srcMAC
		seq, ack = &w.serverSeq, w.clientSeq
	}

	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	srcIP := src.Addr().As4()
	dstIP := dst.Addr().As4()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIP[:],
		DstIP:    dstIP[:],
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(src.Port()),
		DstPort: layers.TCPPort(dst.Port()),
		ACK:     true,
		PSH:     true,
		Seq:     *seq,
		Ack:     ack,
		Window:  65535,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(data)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}
	*seq += uint32(len(data)) //nolint:gosec

	raw := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(raw), Length: len(raw)}
	if err := w.w.WritePacket(ci, raw); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}

	return nil
}
