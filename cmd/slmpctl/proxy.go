package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/arloliu/go-slmp/capture"
	"github.com/arloliu/go-slmp/frame"
	"github.com/arloliu/go-slmp/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type proxyFlags struct {
	listen string
	pcap   string
}

func newProxyCmd(gf *globalFlags) *cobra.Command {
	flags := &proxyFlags{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Forward clients to a PLC and log every frame",
		Long: `Accept SLMP clients and forward their traffic to --host/--port unchanged.
Every decoded frame is logged at info level; --pcap also records the
traffic of all clients to a capture file.`,
		Example: `  slmpctl proxy --listen :6000 --host 192.168.3.39 --pcap session.pcap`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if gf.host == "" {
				return errors.New("--host is required")
			}
			upstream := net.JoinHostPort(gf.host, fmt.Sprint(gf.port))

			var rec *recorder
			if flags.pcap != "" {
				f, err := os.Create(flags.pcap)
				if err != nil {
					return err
				}
				defer f.Close()
				rec = &recorder{file: f}
			}

			var lc net.ListenConfig
			ln, err := lc.Listen(cmd.Context(), "tcp", flags.listen)
			if err != nil {
				return err
			}

			return runProxy(cmd.Context(), ln, upstream, rec, logger.GetLogger())
		},
	}

	cmd.Flags().StringVar(&flags.listen, "listen", ":6000", "Listen address for clients")
	cmd.Flags().StringVar(&flags.pcap, "pcap", "", "Record forwarded traffic to this pcap file")

	return cmd
}

// recorder writes proxied traffic to a pcap file as one conversation, addressed as the first client.
type recorder struct {
	mu   sync.Mutex
	file io.Writer
	w    *capture.Writer
}

func (r *recorder) writer(client, server net.Addr) *capture.Writer {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w != nil {
		return r.w
	}
	c, cok := toAddrPort(client)
	s, sok := toAddrPort(server)
	if !cok || !sok {
		return nil
	}
	w, err := capture.NewWriter(r.file, c, s)
	if err != nil {
		logger.Warn("pcap recording disabled", "error", err)
		return nil
	}
	r.w = w

	return w
}

func toAddrPort(addr net.Addr) (netip.AddrPort, bool) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return netip.AddrPort{}, false
	}
	ap := tcp.AddrPort()

	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), true
}

func runProxy(ctx context.Context, ln net.Listener, upstream string, rec *recorder, l logger.Logger) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	l.Info("proxy listening", "addr", ln.Addr().String(), "upstream", upstream)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		client, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			proxyConn(ctx, client, upstream, rec, l.With("client", client.RemoteAddr().String()))
		}()
	}
}

func proxyConn(ctx context.Context, client net.Conn, upstream string, rec *recorder, l logger.Logger) {
	defer client.Close()

	var d net.Dialer
	server, err := d.DialContext(ctx, "tcp", upstream)
	if err != nil {
		l.Error("dial upstream", "error", err)
		return
	}
	defer server.Close()

	pw := rec.writer(client.RemoteAddr(), server.RemoteAddr())
	l.Info("client connected")

	stop := context.AfterFunc(ctx, func() {
		_ = client.Close()
		_ = server.Close()
	})
	defer stop()

	var g errgroup.Group
	g.Go(func() error {
		defer server.Close()
		return pipe(server, client, frame.NewRequestDecoder(), pw, true, l)
	})
	g.Go(func() error {
		defer client.Close()
		return pipe(client, server, frame.NewResponseDecoder(), pw, false, l)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		l.Warn("proxy connection ended", "error", err)
	}
	l.Info("client disconnected")
}

// pipe copies src to dst, logging every frame dec can recover. Undecodable traffic is still forwarded.
func pipe(dst io.Writer, src io.Reader, dec *frame.Decoder, pw *capture.Writer, toServer bool, l logger.Logger) error {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, werr := dst.Write(chunk); werr != nil {
				return werr
			}
			if pw != nil {
				record(pw, toServer, chunk, l)
			}
			logFrames(dec, chunk, l)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}
	}
}

func record(pw *capture.Writer, toServer bool, data []byte, l logger.Logger) {
	var err error
	if toServer {
		err = pw.WriteRequest(time.Now(), data)
	} else {
		err = pw.WriteResponse(time.Now(), data)
	}
	if err != nil {
		l.Warn("pcap write", "error", err)
	}
}

func logFrames(dec *frame.Decoder, data []byte, l logger.Logger) {
	_, _ = dec.Write(data)
	for {
		f, err := dec.Next()
		if errors.Is(err, frame.ErrIncomplete) {
			return
		}
		if err != nil {
			l.Warn("undecodable traffic", "error", err)
			dec.Reset()

			return
		}
		l.Info("frame", "frame", f.String(), "data", frame.HexString(f.Data))
	}
}
