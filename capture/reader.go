package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/arloliu/go-slmp/frame"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// DefaultPort is the SLMP server port assumed when no port is given.
const DefaultPort = 5007

// pcapng section header block type
var ngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// Record is one frame found in a capture.
type Record struct {
	Time time.Time
	Src  netip.AddrPort
	Dst  netip.AddrPort
	// Frame is nil when Err is set.
	Frame *frame.Frame
	// Err reports a stream that could not be framed; the rest of that direction is skipped
	// until the next segment starting with a valid subheader.
	Err error
}

// IsRequest reports whether the record travels towards the server.
func (r Record) IsRequest() bool {
	return r.Frame != nil && !r.Frame.Response
}

func (r Record) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s %s -> %s error: %v", r.Time.Format(time.RFC3339Nano), r.Src, r.Dst, r.Err)
	}

	return fmt.Sprintf("%s %s -> %s %s", r.Time.Format(time.RFC3339Nano), r.Src, r.Dst, r.Frame)
}

// Option configures a Reader.
type Option func(*Reader)

// WithPorts sets the server ports whose traffic is decoded. The default is 5007.
func WithPorts(ports ...uint16) Option {
	return func(r *Reader) {
		if len(ports) == 0 {
			return
		}
		r.ports = make(map[uint16]struct{}, len(ports))
		for _, p := range ports {
			r.ports[p] = struct{}{}
		}
	}
}

type flowKey struct {
	src, dst netip.AddrPort
}

type packetSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Reader decodes SLMP frames from a pcap or pcapng stream.
type Reader struct {
	source  *gopacket.PacketSource
	ports   map[uint16]struct{}
	flows   map[flowKey]*frame.Decoder
	pending []Record
}

// NewReader detects the capture format of r and prepares to decode it.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(ngMagic))
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	var src packetSource
	if bytes.Equal(magic, ngMagic) {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	rd := &Reader{
		source: gopacket.NewPacketSource(src, src.LinkType()),
		ports:  map[uint16]struct{}{DefaultPort: {}},
		flows:  make(map[flowKey]*frame.Decoder),
	}
	for _, opt := range opts {
		opt(rd)
	}

	return rd, nil
}

// Next returns the next record, or io.EOF at the end of the capture.
func (r *Reader) Next() (Record, error) {
	for len(r.pending) == 0 {
		pkt, err := r.source.NextPacket()
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, fmt.Errorf("read packet: %w", err)
		}
		r.feed(pkt)
	}

	rec := r.pending[0]
	r.pending = r.pending[1:]

	return rec, nil
}

// ReadAll returns every record of the capture.
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

func (r *Reader) feed(pkt gopacket.Packet) {
	tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok || len(tcp.Payload) == 0 {
		return
	}

	toServer := r.isServerPort(uint16(tcp.DstPort))
	if !toServer && !r.isServerPort(uint16(tcp.SrcPort)) {
		return
	}

	srcIP, dstIP, ok := endpoints(pkt)
	if !ok {
		return
	}
	key := flowKey{
		src: netip.AddrPortFrom(srcIP, uint16(tcp.SrcPort)),
		dst: netip.AddrPortFrom(dstIP, uint16(tcp.DstPort)),
	}

	dec, ok := r.flows[key]
	if !ok {
		if toServer {
			dec = frame.NewRequestDecoder()
		} else {
			dec = frame.NewResponseDecoder()
		}
		r.flows[key] = dec
	}
	_, _ = dec.Write(tcp.Payload)

	ts := pkt.Metadata().Timestamp
	for {
		f, err := dec.Next()
		if errors.Is(err, frame.ErrIncomplete) {
			return
		}
		if err != nil {
			dec.Reset()
			r.pending = append(r.pending, Record{Time: ts, Src: key.src, Dst: key.dst, Err: err})

			return
		}
		r.pending = append(r.pending, Record{Time: ts, Src: key.src, Dst: key.dst, Frame: f})
	}
}

func (r *Reader) isServerPort(port uint16) bool {
	_, ok := r.ports[port]
	return ok
}

func endpoints(pkt gopacket.Packet) (netip.Addr, netip.Addr, bool) {
	var srcIP, dstIP []byte
	switch nl := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		srcIP, dstIP = nl.SrcIP.To4(), nl.DstIP.To4()
	case *layers.IPv6:
		srcIP, dstIP = nl.SrcIP, nl.DstIP
	default:
		return netip.Addr{}, netip.Addr{}, false
	}

	src, ok1 := netip.AddrFromSlice(srcIP)
	dst, ok2 := netip.AddrFromSlice(dstIP)

	return src, dst, ok1 && ok2
}
