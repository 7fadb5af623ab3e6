package slmp

import (
	"fmt"
	"net"

	"github.com/arloliu/go-slmp/frame"
)

// frameReader reads response frames from a net.Conn.
//
// Reads carry no deadline: a connection is allowed to idle between exchanges and the response
// timeout is enforced by the waiting exchange. Bytes are fed to a frame.Decoder so split and
// coalesced TCP segments are handled.
//
// frameReader is NOT goroutine-safe; a session has exactly one receiver task.
type frameReader struct {
	decoder *frame.Decoder
}

func newFrameReader() *frameReader {
	return &frameReader{decoder: frame.NewResponseDecoder()}
}

// ReadFrames performs one read into buf and returns every frame completed by it.
// n is the number of bytes read. A fatal framing error is returned together with the frames that
// were decoded before it.
func (fr *frameReader) ReadFrames(conn net.Conn, buf []byte) (frames []*frame.Frame, n int, err error) {
	n, err = conn.Read(buf)
	if n > 0 {
		_, _ = fr.decoder.Write(buf[:n])
	}

	for {
		f, ferr := fr.decoder.Next()
		if ferr != nil {
			if frame.IsFatal(ferr) {
				return frames, n, ferr
			}
			break
		}
		frames = append(frames, f)
	}

	if err != nil {
		return frames, n, fmt.Errorf("read response: %w", err)
	}

	return frames, n, nil
}

// Reset discards partial frames left by a previous connection.
func (fr *frameReader) Reset() {
	fr.decoder.Reset()
}
